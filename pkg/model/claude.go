package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/proteinchat/proteinchat-go/pkg/config"
	loggerpkg "github.com/proteinchat/proteinchat-go/pkg/logger"
)

// ArchClaudeDigest is a text-only fallback: each protein placeholder is
// replaced with a numeric digest of its embedding.
const ArchClaudeDigest = "claude_digest"

const digestFeatures = 8

// ClaudeDigest talks to the Anthropic Messages API.
type ClaudeDigest struct {
	client *anthropic.Client
	model  anthropic.Model
	deps   Deps
}

// NewClaudeDigest builds the Anthropic client. An empty model.name selects
// the default Claude model.
func NewClaudeDigest(cfg config.ModelConfig, deps Deps) (*ClaudeDigest, error) {
	opts := []option.RequestOption{option.WithMaxRetries(cfg.MaxRetries)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
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

	name := anthropic.Model(cfg.Name)
	if cfg.Name == "" {
		name = anthropic.ModelClaude3_7SonnetLatest
	}
	c := anthropic.NewClient(opts...)
	return &ClaudeDigest{client: &c, model: name, deps: deps}, nil
}

func (m *ClaudeDigest) Arch() string { return ArchClaudeDigest }

func (m *ClaudeDigest) Generate(ctx context.Context, req Request) (Generation, error) {
	next := 0
	digest := func() string {
		if next >= len(req.Proteins) {
			return "[missing protein]"
		}
		d := req.Proteins[next].Digest(digestFeatures)
		next++
		return "[" + d.String() + "]"
	}

	messages, err := m.buildMessages(req, digest)
	if err != nil {
		return Generation{}, err
	}

	params := anthropic.MessageNewParams{
		Model:       m.model,
		MaxTokens:   int64(req.Options.MaxNewTokens),
		Messages:    messages,
		Temperature: anthropic.Float(req.Options.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	loggerpkg.Debug(m.deps.Verbose, m.deps.Logger, "claude_digest request", map[string]any{
		"messages": len(messages),
		"proteins": len(req.Proteins),
	})
	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return Generation{}, err
	}

	var parts []string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok && tb.Text != "" {
			parts = append(parts, tb.Text)
		}
	}
	if len(parts) == 0 {
		return Generation{}, errors.New("empty message content")
	}
	return Generation{
		Text:             strings.Join(parts, "\n"),
		PromptTokens:     msg.Usage.InputTokens,
		CompletionTokens: msg.Usage.OutputTokens,
	}, nil
}

// buildMessages merges consecutive turns of one role, which the Messages API
// rejects, and drops empty turns.
func (m *ClaudeDigest) buildMessages(req Request, digest func() string) ([]anthropic.MessageParam, error) {
	type pending struct {
		role Role
		text []string
	}
	var merged []pending
	for i, turn := range req.Turns {
		if turn.Role != RoleUser && turn.Role != RoleAssistant {
			return nil, fmt.Errorf("invalid turn role at index %d: %q", i, turn.Role)
		}
		text := strings.TrimSpace(expandPlaceholders(turn.Content, req.Placeholder, digest))
		if text == "" {
			continue
		}
		if n := len(merged); n > 0 && merged[n-1].role == turn.Role {
			merged[n-1].text = append(merged[n-1].text, text)
			continue
		}
		merged = append(merged, pending{role: turn.Role, text: []string{text}})
	}
	if len(merged) == 0 {
		return nil, errors.New("conversation has no content to send")
	}

	out := make([]anthropic.MessageParam, 0, len(merged))
	for _, p := range merged {
		block := anthropic.NewTextBlock(strings.Join(p.text, "\n"))
		if p.role == RoleUser {
			out = append(out, anthropic.NewUserMessage(block))
		} else {
			out = append(out, anthropic.NewAssistantMessage(block))
		}
	}
	return out, nil
}
