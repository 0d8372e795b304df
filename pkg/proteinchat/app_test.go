package proteinchat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/proteinchat/proteinchat-go/pkg/config"
	"github.com/proteinchat/proteinchat-go/pkg/embedding"
)

func echoConfig() config.Config {
	cfg := config.Default()
	cfg.Model.Arch = "echo"
	cfg.Datasets = map[string]config.DatasetConfig{
		config.DefaultDataset: {
			VisProcessor: config.ProcessorSplits{
				Train: config.ProcessorConfig{Name: "protein_embedding", MaxLength: 2},
			},
		},
	}
	return cfg
}

func fakeEnv(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestNewRejectsUnknownClasses(t *testing.T) {
	cfg := echoConfig()
	cfg.Model.Arch = "blip2_vicuna"
	if _, err := New(context.Background(), cfg); err == nil || !strings.Contains(err.Error(), "build model") {
		t.Fatalf("expected model error, got %v", err)
	}

	cfg = echoConfig()
	cfg.Datasets[config.DefaultDataset] = config.DatasetConfig{
		VisProcessor: config.ProcessorSplits{Train: config.ProcessorConfig{Name: "blip2_image_train"}},
	}
	if _, err := New(context.Background(), cfg); err == nil || !strings.Contains(err.Error(), "build processor") {
		t.Fatalf("expected processor error, got %v", err)
	}
}

func TestNewRejectsNegativeGPU(t *testing.T) {
	cfg := echoConfig()
	cfg.GPUID = -2
	if _, err := New(nil, cfg); err == nil {
		t.Fatal("expected error for negative gpu id")
	}
}

func TestSeedIncludesRank(t *testing.T) {
	app, err := New(context.Background(), echoConfig(), WithGetenv(fakeEnv(map[string]string{"RANK": "3"})))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if app.Seed() != 45 {
		t.Fatalf("expected seed 42+3, got %d", app.Seed())
	}

	app, _ = New(context.Background(), echoConfig(), WithGetenv(fakeEnv(map[string]string{"RANK": "x"})))
	if app.Seed() != 42 {
		t.Fatalf("expected bad rank to be ignored, got %d", app.Seed())
	}
}

func TestDescribeRunsScriptedExchange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2wge.json")
	if err := os.WriteFile(path, []byte(`[[1,2],[3,4],[5,6]]`), 0o644); err != nil {
		t.Fatalf("write embedding: %v", err)
	}
	app, err := New(context.Background(), echoConfig(), WithGetenv(fakeEnv(nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := app.Describe(context.Background(), path, "")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	// The processor truncates to max_length rows.
	if !strings.Contains(res.Message, "2wge[2x2]") {
		t.Fatalf("unexpected message %q", res.Message)
	}
	if !strings.Contains(res.Message, "Describe this protein in a short paragraph.") {
		t.Fatalf("expected default prompt to be asked, got %q", res.Message)
	}
	if res.Elapsed <= 0 {
		t.Fatalf("expected positive elapsed time, got %v", res.Elapsed)
	}
}

func TestDescribeMissingFile(t *testing.T) {
	app, err := New(context.Background(), echoConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := app.Describe(context.Background(), filepath.Join(t.TempDir(), "none.npy"), "q"); err == nil {
		t.Fatal("expected error for missing embedding")
	}
}

func TestSessionOperations(t *testing.T) {
	cfg := echoConfig()
	cfg.Model.Extra = map[string]any{"reply": "It is a kinase.###Human:"}
	app, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	emb, _ := embedding.FromRows("p", [][]float64{{1, 2}})
	s, err := app.UploadProtein(emb)
	if err != nil {
		t.Fatalf("UploadProtein: %v", err)
	}
	if err := app.Ask(s, "What is it?"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	got, err := app.Answer(context.Background(), s, app.AnswerOptions())
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got != "It is a kinase." {
		t.Fatalf("unexpected answer %q", got)
	}
	if len(s.Conversation.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(s.Conversation.Messages))
	}

	app.Reset(s)
	if len(s.Conversation.Messages) != 0 || len(s.Conversation.Proteins) != 0 {
		t.Fatal("expected reset to clear the session")
	}
	app.Reset(nil)

	if err := app.Ask(nil, "x"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if _, err := app.Answer(context.Background(), nil, app.AnswerOptions()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestAnswerOptionsFollowConfig(t *testing.T) {
	app, err := New(context.Background(), echoConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	o := app.AnswerOptions()
	if o.NumBeams != 1 || o.Temperature != 1e-3 || o.MaxNewTokens != 300 || o.MaxLength != 2000 {
		t.Fatalf("unexpected options %+v", o)
	}
	if app.Device().String() != "cuda:0" {
		t.Fatalf("unexpected device %s", app.Device())
	}
}
