package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/proteinchat/proteinchat-go/pkg/config"
	loggerpkg "github.com/proteinchat/proteinchat-go/pkg/logger"
)

// ArchMiniGPT4 is the protein-conditioned Vicuna model served behind an
// OpenAI-compatible chat completions endpoint.
const ArchMiniGPT4 = "mini_gpt4"

// MiniGPT4 sends turns through chat completions and attaches the protein
// embeddings as extra body fields the serving side splices in at the
// placeholders.
type MiniGPT4 struct {
	client openai.Client
	cfg    config.ModelConfig
	deps   Deps
}

// NewMiniGPT4 builds the client for cfg.Endpoint.
func NewMiniGPT4(cfg config.ModelConfig, deps Deps) (*MiniGPT4, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("model.endpoint is not set")
	}
	if cfg.Name == "" {
		return nil, errors.New("model.name is not set")
	}

	opts := []option.RequestOption{
		option.WithBaseURL(cfg.Endpoint),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if deps.APIKey != "" {
		opts = append(opts, option.WithAPIKey(deps.APIKey))
	}
	if deps.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(deps.HTTPClient))
	}

	return &MiniGPT4{client: openai.NewClient(opts...), cfg: cfg, deps: deps}, nil
}

func (m *MiniGPT4) Arch() string { return ArchMiniGPT4 }

func (m *MiniGPT4) Generate(ctx context.Context, req Request) (Generation, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Turns)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for i, turn := range req.Turns {
		switch turn.Role {
		case RoleUser:
			messages = append(messages, openai.UserMessage(turn.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			return Generation{}, fmt.Errorf("invalid turn role at index %d: %q", i, turn.Role)
		}
	}

	o := req.Options
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(m.cfg.Name),
		Messages:    messages,
		MaxTokens:   openai.Int(int64(o.MaxNewTokens)),
		Temperature: openai.Float(o.Temperature),
		TopP:        openai.Float(o.TopP),
		Seed:        openai.Int(m.deps.Seed),
	}

	proteins := make([][][]float32, 0, len(req.Proteins))
	for _, p := range req.Proteins {
		proteins = append(proteins, p.Float32Rows())
	}
	reqOpts := []option.RequestOption{
		option.WithJSONSet("protein_embeddings", proteins),
		option.WithJSONSet("protein_placeholder", req.Placeholder),
		option.WithJSONSet("num_beams", o.NumBeams),
		option.WithJSONSet("min_length", o.MinLength),
		option.WithJSONSet("max_length", o.MaxLength),
		option.WithJSONSet("repetition_penalty", o.RepetitionPenalty),
		option.WithJSONSet("length_penalty", o.LengthPenalty),
		option.WithJSONSet("device", m.deps.Device.String()),
	}
	if m.cfg.ModelType != "" {
		reqOpts = append(reqOpts, option.WithJSONSet("model_type", m.cfg.ModelType))
	}

	loggerpkg.Debug(m.deps.Verbose, m.deps.Logger, "mini_gpt4 request", map[string]any{
		"turns":    len(req.Turns),
		"proteins": len(proteins),
		"beams":    o.NumBeams,
	})
	completion, err := m.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return Generation{}, err
	}
	if len(completion.Choices) == 0 {
		return Generation{}, errors.New("empty completion choices")
	}
	return Generation{
		Text:             completion.Choices[0].Message.Content,
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
	}, nil
}
