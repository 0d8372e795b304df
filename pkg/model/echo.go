package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/proteinchat/proteinchat-go/pkg/config"
)

// ArchEcho is an offline model for development and tests.
const ArchEcho = "echo"

// Echo reports what it received instead of generating. A "reply" entry in
// the model config makes it return that text verbatim.
type Echo struct {
	reply string
}

// NewEcho builds an Echo model.
func NewEcho(cfg config.ModelConfig) *Echo {
	e := &Echo{}
	if r, ok := cfg.Extra["reply"].(string); ok {
		e.reply = r
	}
	return e
}

func (e *Echo) Arch() string { return ArchEcho }

func (e *Echo) Generate(ctx context.Context, req Request) (Generation, error) {
	if err := ctx.Err(); err != nil {
		return Generation{}, err
	}
	if e.reply != "" {
		return Generation{Text: e.reply}, nil
	}

	question := ""
	for i := len(req.Turns) - 1; i >= 0; i-- {
		if req.Turns[i].Role == RoleUser {
			question = strings.TrimSpace(strings.ReplaceAll(req.Turns[i].Content, req.Placeholder, ""))
			break
		}
	}
	shapes := make([]string, 0, len(req.Proteins))
	for _, p := range req.Proteins {
		shapes = append(shapes, fmt.Sprintf("%s[%dx%d]", p.Name, p.Rows(), p.Dim()))
	}
	return Generation{
		Text: fmt.Sprintf("(echo) %d protein(s) %s; you asked: %q", len(req.Proteins), strings.Join(shapes, " "), question),
	}, nil
}
