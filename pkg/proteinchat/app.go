// Package proteinchat wires config, device, model, processor and chat into
// the session operations the front ends call.
package proteinchat

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/proteinchat/proteinchat-go/pkg/config"
	"github.com/proteinchat/proteinchat-go/pkg/conversation"
	"github.com/proteinchat/proteinchat-go/pkg/device"
	"github.com/proteinchat/proteinchat-go/pkg/embedding"
	loggerpkg "github.com/proteinchat/proteinchat-go/pkg/logger"
	"github.com/proteinchat/proteinchat-go/pkg/model"
	"github.com/proteinchat/proteinchat-go/pkg/processor"
)

// App holds the initialized model and chat.
type App struct {
	config  config.Config
	device  device.Device
	seed    int64
	model   model.Model
	chat    *conversation.Chat
	logger  loggerpkg.Logger
	verbose bool
}

// New resolves the model and processor classes named in cfg and builds the chat.
func New(ctx context.Context, cfg config.Config, opts ...AppOption) (*App, error) {
	cfg = config.Normalize(cfg)
	deps := appDeps{logger: loggerpkg.NopLogger{}, getenv: os.Getenv}
	for _, opt := range opts {
		if opt != nil {
			opt(&deps)
		}
	}
	deps.logger = loggerpkg.OrNop(deps.logger)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	loggerpkg.Info(deps.logger, "initializing chat", map[string]any{
		"arch":   cfg.Model.Arch,
		"gpu_id": cfg.GPUID,
	})

	dev, err := device.Resolve(cfg.GPUID)
	if err != nil {
		return nil, fmt.Errorf("resolve device: %w", err)
	}
	loggerpkg.Debug(deps.verbose, deps.logger, "device resolved", map[string]any{
		"device":   dev.String(),
		"probed":   dev.Probed,
		"name":     dev.Name,
		"host_cpu": dev.Host.CPU,
	})

	seed := setupSeed(cfg.Run.Seed, deps.getenv)

	// The quantized weights are loaded on the selected GPU.
	cfg.Model.Device8bit = cfg.GPUID

	apiKey := cfg.APIKey
	if apiKey == "" && cfg.Model.APIKeyEnv != "" {
		apiKey = strings.TrimSpace(deps.getenv(cfg.Model.APIKeyEnv))
	}

	m, err := model.FromConfig(cfg.Model, model.Deps{
		Device:     dev,
		Seed:       seed,
		APIKey:     apiKey,
		HTTPClient: deps.httpClient,
		Logger:     deps.logger,
		Verbose:    deps.verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}

	pcfg, err := cfg.ProcessorConfig()
	if err != nil {
		return nil, err
	}
	proc, err := processor.FromConfig(pcfg)
	if err != nil {
		return nil, fmt.Errorf("build processor: %w", err)
	}

	chat, err := conversation.New(m, proc,
		conversation.WithLogger(deps.logger),
		conversation.WithStopSign(cfg.Chat.StopSign),
		conversation.WithVerbose(deps.verbose),
	)
	if err != nil {
		return nil, err
	}

	loggerpkg.Info(deps.logger, "initialization finished", map[string]any{
		"device":    dev.String(),
		"processor": pcfg.Name,
		"seed":      seed,
	})
	return &App{
		config:  cfg,
		device:  dev,
		seed:    seed,
		model:   m,
		chat:    chat,
		logger:  deps.logger,
		verbose: deps.verbose,
	}, nil
}

// setupSeed offsets the configured seed by the distributed rank.
func setupSeed(base int64, getenv func(string) string) int64 {
	rank, err := strconv.ParseInt(strings.TrimSpace(getenv("RANK")), 10, 64)
	if err != nil || rank < 0 {
		rank = 0
	}
	return base + rank
}

// Config returns the normalized configuration the app was built with.
func (a *App) Config() config.Config { return a.config }

// Device returns the resolved device.
func (a *App) Device() device.Device { return a.device }

// Seed returns the effective generation seed.
func (a *App) Seed() int64 { return a.seed }

// Template returns a fresh conversation built from the chat config.
func (a *App) Template() *conversation.Conversation {
	conv := conversation.ProteinTemplate.Copy()
	if s := strings.TrimSpace(a.config.Chat.System); s != "" {
		conv.System = s
	}
	conv.Roles = [2]string{a.config.Chat.Roles[0], a.config.Chat.Roles[1]}
	conv.Sep = a.config.Chat.Sep
	return conv
}

// AnswerOptions returns decoding settings from the chat config.
func (a *App) AnswerOptions() model.Options {
	c := a.config.Chat
	return model.Options{
		MaxNewTokens:      c.MaxNewTokens,
		MaxLength:         c.MaxLength,
		NumBeams:          c.NumBeams,
		MinLength:         c.MinLength,
		TopP:              c.TopP,
		RepetitionPenalty: c.RepetitionPenalty,
		LengthPenalty:     c.LengthPenalty,
		Temperature:       c.Temperature,
	}
}

// Result is the outcome of one scripted exchange.
type Result struct {
	Message string
	Elapsed time.Duration
}

// Describe loads the embedding at path and runs upload, ask and answer once.
func (a *App) Describe(ctx context.Context, path, question string) (Result, error) {
	start := time.Now()
	if strings.TrimSpace(question) == "" {
		question = a.config.Run.Prompt
	}

	emb, err := embedding.Load(path)
	if err != nil {
		return Result{}, fmt.Errorf("load embedding: %w", err)
	}
	session, err := a.UploadProtein(emb)
	if err != nil {
		return Result{}, err
	}
	if err := a.Ask(session, question); err != nil {
		return Result{}, err
	}
	msg, err := a.Answer(ctx, session, a.AnswerOptions())
	if err != nil {
		return Result{}, err
	}
	return Result{Message: msg, Elapsed: time.Since(start)}, nil
}
