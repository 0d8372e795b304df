package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
model:
  arch: mini_gpt4
  model_type: pretrain_vicuna
  endpoint: http://localhost:8000/v1
  name: proteinchat-7b
  device_8bit: 0
  timeout: 30s
  low_resource: true
datasets:
  cc_sbu_align:
    vis_processor:
      train:
        name: protein_embedding
        max_length: 512
run:
  seed: 7
chat:
  max_new_tokens: 128
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demo.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDecodesSections(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Arch != "mini_gpt4" || cfg.Model.Name != "proteinchat-7b" {
		t.Fatalf("unexpected model section: %+v", cfg.Model)
	}
	if cfg.Model.Timeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %v", cfg.Model.Timeout)
	}
	if cfg.Model.Extra["low_resource"] != true {
		t.Fatalf("expected unknown model keys to land in Extra, got %v", cfg.Model.Extra)
	}
	if cfg.Run.Seed != 7 {
		t.Fatalf("expected seed 7, got %d", cfg.Run.Seed)
	}
	if cfg.Chat.MaxNewTokens != 128 {
		t.Fatalf("expected max_new_tokens 128, got %d", cfg.Chat.MaxNewTokens)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Chat.MaxLength != 2000 || cfg.Chat.Temperature != 1e-3 {
		t.Fatalf("expected chat defaults to survive, got %+v", cfg.Chat)
	}
	if !reflect.DeepEqual(cfg.Chat.Roles, []string{"Human", "Assistant"}) {
		t.Fatalf("unexpected roles: %v", cfg.Chat.Roles)
	}

	pc, err := cfg.ProcessorConfig()
	if err != nil {
		t.Fatalf("ProcessorConfig: %v", err)
	}
	if pc.Name != "protein_embedding" || pc.MaxLength != 512 {
		t.Fatalf("unexpected processor config: %+v", pc)
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig), []string{
		"model.arch=echo",
		"run.seed=99",
		"chat.temperature=0.5",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Arch != "echo" {
		t.Fatalf("expected arch override, got %q", cfg.Model.Arch)
	}
	if cfg.Run.Seed != 99 {
		t.Fatalf("expected seed override, got %d", cfg.Run.Seed)
	}
	if cfg.Chat.Temperature != 0.5 {
		t.Fatalf("expected temperature override, got %v", cfg.Chat.Temperature)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load("  ", nil); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, sampleConfig), []string{"no-equals"}); err == nil {
		t.Fatal("expected error for malformed override")
	}

	noProcessor := strings.Replace(sampleConfig, "name: protein_embedding", "max_batch: 1", 1)
	_, err := Load(writeConfig(t, noProcessor), nil)
	if err == nil || !strings.Contains(err.Error(), "vis_processor.train.name") {
		t.Fatalf("expected missing processor error, got %v", err)
	}
}

func TestValidateRequiresArch(t *testing.T) {
	cfg := Normalize(Default())
	cfg.Datasets = map[string]DatasetConfig{
		DefaultDataset: {VisProcessor: ProcessorSplits{Train: ProcessorConfig{Name: "identity"}}},
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "model.arch") {
		t.Fatalf("expected arch error, got %v", err)
	}
	cfg.Model.Arch = "echo"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.GPUID = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative gpu id")
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := Normalize(Config{Chat: ChatConfig{Roles: []string{"only-one"}}})
	if cfg.Run.Dataset != DefaultDataset {
		t.Fatalf("expected default dataset, got %q", cfg.Run.Dataset)
	}
	if len(cfg.Chat.Roles) != 2 {
		t.Fatalf("expected two roles, got %v", cfg.Chat.Roles)
	}
	if cfg.Chat.StopSign != "###" {
		t.Fatalf("expected stop sign to follow end_sym, got %q", cfg.Chat.StopSign)
	}
	if cfg.Chat.NumBeams != 1 || cfg.Chat.MinLength != 1 {
		t.Fatalf("unexpected beam defaults: %+v", cfg.Chat)
	}
}

func TestEmbeddingRootDefaultsToWorkingDir(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if got := Default().Server.EmbeddingRoot; got != wd {
		t.Fatalf("expected default root %q, got %q", wd, got)
	}
	cfg := Normalize(Config{Server: ServerConfig{EmbeddingRoot: "  "}})
	if cfg.Server.EmbeddingRoot != wd {
		t.Fatalf("expected blank root to fall back to %q, got %q", wd, cfg.Server.EmbeddingRoot)
	}
	cfg = Normalize(Config{Server: ServerConfig{EmbeddingRoot: " /data/esm "}})
	if cfg.Server.EmbeddingRoot != "/data/esm" {
		t.Fatalf("expected configured root to be kept, got %q", cfg.Server.EmbeddingRoot)
	}
}

func TestParseOverride(t *testing.T) {
	tests := []struct {
		raw     string
		key     string
		value   any
		wantErr bool
	}{
		{raw: "run.seed=3", key: "run.seed", value: 3},
		{raw: "model.low_resource=true", key: "model.low_resource", value: true},
		{raw: "model.name = vicuna ", key: "model.name", value: "vicuna"},
		{raw: "chat.roles=[User, Bot]", key: "chat.roles", value: []any{"User", "Bot"}},
		{raw: "model.endpoint=", key: "model.endpoint", value: ""},
		{raw: "novalue", wantErr: true},
		{raw: "=3", wantErr: true},
		{raw: "model..arch=x", wantErr: true},
		{raw: "chat.roles=[unterminated", wantErr: true},
	}
	for _, tt := range tests {
		key, value, err := ParseOverride(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseOverride(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
		if tt.wantErr {
			continue
		}
		if key != tt.key || !reflect.DeepEqual(value, tt.value) {
			t.Fatalf("ParseOverride(%q) = (%q, %#v), want (%q, %#v)", tt.raw, key, value, tt.key, tt.value)
		}
	}
}
