// Package model wraps the pretrained multimodal language models that turn a
// conversation plus protein embeddings into text. The models themselves run
// behind inference endpoints; this package only speaks their wire formats.
package model

import (
	"context"
	"net/http"
	"strings"

	"github.com/proteinchat/proteinchat-go/pkg/config"
	"github.com/proteinchat/proteinchat-go/pkg/device"
	"github.com/proteinchat/proteinchat-go/pkg/embedding"
	loggerpkg "github.com/proteinchat/proteinchat-go/pkg/logger"
	"github.com/proteinchat/proteinchat-go/pkg/registry"
)

// Role is the provider-neutral role of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one finished message of the conversation.
type Turn struct {
	Role    Role
	Content string
}

// Options are the decoding settings for one answer.
type Options struct {
	MaxNewTokens      int
	MaxLength         int
	NumBeams          int
	MinLength         int
	TopP              float64
	RepetitionPenalty float64
	LengthPenalty     float64
	Temperature       float64
}

// Request is everything a model needs to produce the next assistant turn.
// Turns keep Placeholder markers; the i-th marker stands for Proteins[i].
type Request struct {
	System      string
	Turns       []Turn
	Prompt      string
	Placeholder string
	Proteins    []*embedding.Embedding
	Options     Options
}

// Generation is the raw model output before stop-sign cleanup.
type Generation struct {
	Text             string
	PromptTokens     int64
	CompletionTokens int64
}

// Model generates text for a Request.
type Model interface {
	Arch() string
	Generate(ctx context.Context, req Request) (Generation, error)
}

// Deps carries runtime dependencies shared by all model classes.
type Deps struct {
	Device     device.Device
	Seed       int64
	APIKey     string
	HTTPClient *http.Client
	Logger     loggerpkg.Logger
	Verbose    bool
}

// Factory builds a Model from the model config section.
type Factory func(cfg config.ModelConfig, deps Deps) (Model, error)

// Registry holds the known model classes, keyed by model.arch.
var Registry = registry.New[Factory]("model")

func init() {
	Registry.MustRegister(ArchMiniGPT4, func(cfg config.ModelConfig, deps Deps) (Model, error) {
		return NewMiniGPT4(cfg, deps)
	})
	Registry.MustRegister(ArchClaudeDigest, func(cfg config.ModelConfig, deps Deps) (Model, error) {
		return NewClaudeDigest(cfg, deps)
	})
	Registry.MustRegister(ArchEcho, func(cfg config.ModelConfig, deps Deps) (Model, error) {
		return NewEcho(cfg), nil
	})
}

// FromConfig resolves cfg.Arch in Registry and builds the model.
func FromConfig(cfg config.ModelConfig, deps Deps) (Model, error) {
	factory, err := Registry.Get(cfg.Arch)
	if err != nil {
		return nil, err
	}
	deps.Logger = loggerpkg.OrNop(deps.Logger)
	return factory(cfg, deps)
}

// expandPlaceholders replaces each placeholder in text with the next value
// produced by next.
func expandPlaceholders(text, placeholder string, next func() string) string {
	if placeholder == "" || !strings.Contains(text, placeholder) {
		return text
	}
	parts := strings.Split(text, placeholder)
	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			b.WriteString(next())
		}
		b.WriteString(part)
	}
	return b.String()
}
