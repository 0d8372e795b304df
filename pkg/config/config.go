package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultDataset is the dataset whose processor section configures uploads.
const DefaultDataset = "cc_sbu_align"

// Config holds all runtime configuration for proteinchat.
type Config struct {
	Model    ModelConfig              `mapstructure:"model" yaml:"model"`
	Datasets map[string]DatasetConfig `mapstructure:"datasets" yaml:"datasets"`
	Run      RunConfig                `mapstructure:"run" yaml:"run"`
	Chat     ChatConfig               `mapstructure:"chat" yaml:"chat"`
	Server   ServerConfig             `mapstructure:"server" yaml:"server"`

	// Filled from flags and the environment, never from the file.
	Path   string `mapstructure:"-" yaml:"-"`
	GPUID  int    `mapstructure:"-" yaml:"gpu_id"`
	APIKey string `mapstructure:"-" yaml:"-"`
}

// ModelConfig selects the model class and how to reach it.
type ModelConfig struct {
	Arch       string        `mapstructure:"arch" yaml:"arch"`
	ModelType  string        `mapstructure:"model_type" yaml:"model_type,omitempty"`
	Name       string        `mapstructure:"name" yaml:"name,omitempty"`
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	APIKeyEnv  string        `mapstructure:"api_key_env" yaml:"api_key_env,omitempty"`
	Device8bit int           `mapstructure:"device_8bit" yaml:"device_8bit"`
	MaxTxtLen  int           `mapstructure:"max_txt_len" yaml:"max_txt_len,omitempty"`
	EndSym     string        `mapstructure:"end_sym" yaml:"end_sym,omitempty"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`

	Extra map[string]any `mapstructure:",remain" yaml:"extra,omitempty"`
}

// DatasetConfig mirrors one entry under datasets.
type DatasetConfig struct {
	VisProcessor  ProcessorSplits `mapstructure:"vis_processor" yaml:"vis_processor"`
	TextProcessor ProcessorSplits `mapstructure:"text_processor" yaml:"text_processor,omitempty"`
}

// ProcessorSplits holds per-split processor settings.
type ProcessorSplits struct {
	Train ProcessorConfig `mapstructure:"train" yaml:"train"`
	Eval  ProcessorConfig `mapstructure:"eval" yaml:"eval,omitempty"`
}

// ProcessorConfig names a registered processor and its parameters.
type ProcessorConfig struct {
	Name      string `mapstructure:"name" yaml:"name"`
	MaxLength int    `mapstructure:"max_length" yaml:"max_length,omitempty"`
	Dim       int    `mapstructure:"dim" yaml:"dim,omitempty"`
	Normalize bool   `mapstructure:"normalize" yaml:"normalize,omitempty"`

	Extra map[string]any `mapstructure:",remain" yaml:"extra,omitempty"`
}

// RunConfig carries run-level settings.
type RunConfig struct {
	Seed      int64  `mapstructure:"seed" yaml:"seed"`
	Dataset   string `mapstructure:"dataset" yaml:"dataset"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	Embedding string `mapstructure:"embedding" yaml:"embedding,omitempty"`
	Prompt    string `mapstructure:"prompt" yaml:"prompt"`
}

// ChatConfig holds the conversation template and generation settings.
type ChatConfig struct {
	System            string   `mapstructure:"system" yaml:"system"`
	Roles             []string `mapstructure:"roles" yaml:"roles"`
	Sep               string   `mapstructure:"sep" yaml:"sep"`
	StopSign          string   `mapstructure:"stop_sign" yaml:"stop_sign"`
	MaxNewTokens      int      `mapstructure:"max_new_tokens" yaml:"max_new_tokens"`
	MaxLength         int      `mapstructure:"max_length" yaml:"max_length"`
	NumBeams          int      `mapstructure:"num_beams" yaml:"num_beams"`
	MinLength         int      `mapstructure:"min_length" yaml:"min_length"`
	TopP              float64  `mapstructure:"top_p" yaml:"top_p"`
	RepetitionPenalty float64  `mapstructure:"repetition_penalty" yaml:"repetition_penalty"`
	LengthPenalty     float64  `mapstructure:"length_penalty" yaml:"length_penalty"`
	Temperature       float64  `mapstructure:"temperature" yaml:"temperature"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr          string `mapstructure:"addr" yaml:"addr"`
	EmbeddingRoot string `mapstructure:"embedding_root" yaml:"embedding_root,omitempty"`
	MaxSessions   int    `mapstructure:"max_sessions" yaml:"max_sessions"`
}

// Default returns a baseline configuration. Embedding paths are confined to
// the working directory unless server.embedding_root says otherwise.
func Default() Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return Config{
		Model: ModelConfig{
			APIKeyEnv:  "OPENAI_API_KEY",
			EndSym:     "###",
			Timeout:    120 * time.Second,
			MaxRetries: 2,
		},
		Run: RunConfig{
			Seed:     42,
			Dataset:  DefaultDataset,
			LogLevel: "info",
			Prompt:   "Describe this protein in a short paragraph.",
		},
		Chat: ChatConfig{
			System: "Give the following protein: <protein>proteinContent</protein>. " +
				"You will be able to see the protein once I provide it to you. Please answer my questions.",
			Roles:             []string{"Human", "Assistant"},
			Sep:               "###",
			StopSign:          "###",
			MaxNewTokens:      300,
			MaxLength:         2000,
			NumBeams:          1,
			MinLength:         1,
			TopP:              0.9,
			RepetitionPenalty: 1.0,
			LengthPenalty:     1,
			Temperature:       1e-3,
		},
		Server: ServerConfig{
			Addr:          ":7860",
			EmbeddingRoot: wd,
			MaxSessions:   64,
		},
	}
}

// Load reads the YAML file at path, applies key=value overrides on top and
// returns the normalized result.
func Load(path string, overrides []string) (Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Config{}, errors.New("config path is required")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	for _, raw := range overrides {
		key, value, err := ParseOverride(raw)
		if err != nil {
			return Config{}, err
		}
		v.Set(key, value)
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.Path = path

	cfg = Normalize(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize sanitizes configuration values and applies defaults.
func Normalize(cfg Config) Config {
	def := Default()

	cfg.Model.Arch = strings.TrimSpace(cfg.Model.Arch)
	cfg.Model.Name = strings.TrimSpace(cfg.Model.Name)
	cfg.Model.Endpoint = strings.TrimSpace(cfg.Model.Endpoint)
	cfg.Model.APIKeyEnv = strings.TrimSpace(cfg.Model.APIKeyEnv)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.Model.EndSym == "" {
		cfg.Model.EndSym = def.Model.EndSym
	}
	if cfg.Model.Timeout <= 0 {
		cfg.Model.Timeout = def.Model.Timeout
	}
	if cfg.Model.MaxRetries < 0 {
		cfg.Model.MaxRetries = 0
	}

	cfg.Run.Dataset = strings.TrimSpace(cfg.Run.Dataset)
	if cfg.Run.Dataset == "" {
		cfg.Run.Dataset = DefaultDataset
	}
	cfg.Run.Embedding = strings.TrimSpace(cfg.Run.Embedding)
	cfg.Run.Prompt = strings.TrimSpace(cfg.Run.Prompt)
	if cfg.Run.Prompt == "" {
		cfg.Run.Prompt = def.Run.Prompt
	}

	if len(cfg.Chat.Roles) != 2 {
		cfg.Chat.Roles = def.Chat.Roles
	}
	if cfg.Chat.Sep == "" {
		cfg.Chat.Sep = def.Chat.Sep
	}
	if cfg.Chat.StopSign == "" {
		cfg.Chat.StopSign = cfg.Model.EndSym
	}
	if cfg.Chat.MaxNewTokens <= 0 {
		cfg.Chat.MaxNewTokens = def.Chat.MaxNewTokens
	}
	if cfg.Chat.MaxLength <= 0 {
		cfg.Chat.MaxLength = def.Chat.MaxLength
	}
	if cfg.Chat.NumBeams <= 0 {
		cfg.Chat.NumBeams = 1
	}
	if cfg.Chat.MinLength <= 0 {
		cfg.Chat.MinLength = 1
	}

	cfg.Server.Addr = strings.TrimSpace(cfg.Server.Addr)
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	cfg.Server.EmbeddingRoot = strings.TrimSpace(cfg.Server.EmbeddingRoot)
	if cfg.Server.EmbeddingRoot == "" {
		cfg.Server.EmbeddingRoot = def.Server.EmbeddingRoot
	}
	if cfg.Server.MaxSessions <= 0 {
		cfg.Server.MaxSessions = def.Server.MaxSessions
	}
	return cfg
}

// Validate reports settings that cannot produce a working chat.
func (c Config) Validate() error {
	if c.Model.Arch == "" {
		return errors.New("model.arch is not set")
	}
	if c.GPUID < 0 {
		return fmt.Errorf("gpu id must be non-negative, got %d", c.GPUID)
	}
	if c.Chat.MaxNewTokens >= c.Chat.MaxLength {
		return fmt.Errorf("chat.max_new_tokens (%d) must be below chat.max_length (%d)", c.Chat.MaxNewTokens, c.Chat.MaxLength)
	}
	if _, err := c.ProcessorConfig(); err != nil {
		return err
	}
	return nil
}

// ProcessorConfig resolves datasets.<run.dataset>.vis_processor.train.
func (c Config) ProcessorConfig() (ProcessorConfig, error) {
	name := c.Run.Dataset
	if name == "" {
		name = DefaultDataset
	}
	ds, ok := c.Datasets[name]
	if !ok {
		return ProcessorConfig{}, fmt.Errorf("datasets.%s is not configured", name)
	}
	pc := ds.VisProcessor.Train
	pc.Name = strings.TrimSpace(pc.Name)
	if pc.Name == "" {
		return ProcessorConfig{}, fmt.Errorf("datasets.%s.vis_processor.train.name is not set", name)
	}
	return pc, nil
}
