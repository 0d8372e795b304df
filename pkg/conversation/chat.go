package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/proteinchat/proteinchat-go/pkg/embedding"
	loggerpkg "github.com/proteinchat/proteinchat-go/pkg/logger"
	"github.com/proteinchat/proteinchat-go/pkg/model"
	"github.com/proteinchat/proteinchat-go/pkg/processor"
)

var (
	ErrPlaceholderMismatch = errors.New("unmatched numbers of protein placeholders and proteins")
	ErrEmptyMessage        = errors.New("message is empty")
	ErrNoConversation      = errors.New("conversation is not initialized")
	ErrReservedToken       = errors.New("message contains a reserved protein marker")
)

// UploadReply is returned to the front end after an upload.
const UploadReply = "Received."

// DefaultOptions are the decoding settings used when a caller has no opinion.
func DefaultOptions() model.Options {
	return model.Options{
		MaxNewTokens:      300,
		MaxLength:         2000,
		NumBeams:          1,
		MinLength:         1,
		TopP:              0.9,
		RepetitionPenalty: 1.0,
		LengthPenalty:     1,
		Temperature:       1.0,
	}
}

// Chat drives a model through upload, ask and answer on a Conversation.
// A Conversation must not be used by two goroutines at once.
type Chat struct {
	model     model.Model
	processor processor.Processor
	stopSign  string
	logger    loggerpkg.Logger
	verbose   bool
}

// Option configures a Chat.
type Option func(*Chat)

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) Option {
	return func(c *Chat) { c.logger = loggerpkg.OrNop(l) }
}

// WithStopSign sets the marker after which generated text is discarded.
func WithStopSign(s string) Option {
	return func(c *Chat) { c.stopSign = s }
}

// WithVerbose enables debug logging of each step.
func WithVerbose(v bool) Option {
	return func(c *Chat) { c.verbose = v }
}

// New builds a Chat around m and p.
func New(m model.Model, p processor.Processor, opts ...Option) (*Chat, error) {
	if m == nil {
		return nil, errors.New("model is required")
	}
	if p == nil {
		return nil, errors.New("processor is required")
	}
	c := &Chat{model: m, processor: p, stopSign: "###", logger: loggerpkg.NopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Upload processes e, attaches it to conv and adds the protein marker as a
// user message.
func (c *Chat) Upload(e *embedding.Embedding, conv *Conversation) (string, error) {
	if conv == nil {
		return "", ErrNoConversation
	}
	processed, err := c.processor.Process(e)
	if err != nil {
		return "", fmt.Errorf("process protein: %w", err)
	}
	conv.Proteins = append(conv.Proteins, processed)
	conv.Append(conv.Roles[0], uploadMessage())
	loggerpkg.Debug(c.verbose, c.logger, "protein uploaded", map[string]any{
		"name":     processed.Name,
		"residues": processed.Rows(),
		"dim":      processed.Dim(),
		"proteins": len(conv.Proteins),
	})
	return UploadReply, nil
}

// Ask records a user message. Text sent right after an upload joins the
// upload message so the question and the protein form one turn.
func (c *Chat) Ask(text string, conv *Conversation) error {
	if conv == nil {
		return ErrNoConversation
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	for _, token := range []string{Placeholder, openTag, closeTag} {
		if strings.Contains(text, token) {
			return fmt.Errorf("%w: %s", ErrReservedToken, token)
		}
	}
	if last, ok := conv.Last(); ok && last.Role == conv.Roles[0] && !last.Pending && strings.HasSuffix(last.Content, closeTag) {
		conv.Messages[len(conv.Messages)-1].Content = last.Content + " " + text
		return nil
	}
	conv.Append(conv.Roles[0], text)
	return nil
}

// Answer generates the next assistant message, stores it in conv and
// returns it. On failure conv is left as it was before the call.
func (c *Chat) Answer(ctx context.Context, conv *Conversation, opts model.Options) (string, error) {
	if conv == nil {
		return "", ErrNoConversation
	}
	before := len(conv.Messages)
	conv.appendPending(conv.Roles[1])
	rollback := func() { conv.Messages = conv.Messages[:before] }

	prompt := conv.Prompt()
	if n := strings.Count(prompt, Placeholder); n != len(conv.Proteins) {
		rollback()
		return "", fmt.Errorf("%w: %d placeholder(s), %d protein(s)", ErrPlaceholderMismatch, n, len(conv.Proteins))
	}

	current := estimateContext(prompt, conv.Proteins) + opts.MaxNewTokens
	if opts.MaxLength > 0 && current > opts.MaxLength {
		loggerpkg.Warn(c.logger, "conversation exceeds the max length; the model will not see the earliest context", map[string]any{
			"estimated":  current,
			"max_length": opts.MaxLength,
			"begin_idx":  current - opts.MaxLength,
		})
	}

	turns, err := c.turns(conv)
	if err != nil {
		rollback()
		return "", err
	}
	req := model.Request{
		System:      conv.System,
		Turns:       turns,
		Prompt:      prompt,
		Placeholder: Placeholder,
		Proteins:    append([]*embedding.Embedding{}, conv.Proteins...),
		Options:     opts,
	}

	loggerpkg.Debug(c.verbose, c.logger, "generating answer", map[string]any{
		"arch":      c.model.Arch(),
		"turns":     len(turns),
		"estimated": current,
	})
	gen, err := c.model.Generate(ctx, req)
	if err != nil {
		rollback()
		return "", fmt.Errorf("generate: %w", err)
	}

	text := c.clean(gen.Text, conv.Roles[1])
	conv.Messages[len(conv.Messages)-1] = Message{Role: conv.Roles[1], Content: text}
	loggerpkg.Debug(c.verbose, c.logger, "answer ready", map[string]any{
		"prompt_tokens":     gen.PromptTokens,
		"completion_tokens": gen.CompletionTokens,
	})
	return text, nil
}

// clean drops everything after the stop sign and any echoed role prefix.
func (c *Chat) clean(text, assistantRole string) string {
	if c.stopSign != "" {
		text, _, _ = strings.Cut(text, c.stopSign)
	}
	if prefix := assistantRole + ":"; strings.Contains(text, prefix) {
		parts := strings.Split(text, prefix)
		text = parts[len(parts)-1]
	}
	return strings.TrimSpace(text)
}

func (c *Chat) turns(conv *Conversation) ([]model.Turn, error) {
	out := make([]model.Turn, 0, len(conv.Messages))
	for i, m := range conv.Messages {
		if m.Pending {
			continue
		}
		switch m.Role {
		case conv.Roles[0]:
			out = append(out, model.Turn{Role: model.RoleUser, Content: m.Content})
		case conv.Roles[1]:
			out = append(out, model.Turn{Role: model.RoleAssistant, Content: m.Content})
		default:
			return nil, fmt.Errorf("message %d has unknown role %q", i, m.Role)
		}
	}
	return out, nil
}
