package proteinchat

import (
	"context"
	"errors"

	"github.com/proteinchat/proteinchat-go/pkg/conversation"
	"github.com/proteinchat/proteinchat-go/pkg/embedding"
	"github.com/proteinchat/proteinchat-go/pkg/model"
)

// ErrNoSession is returned when a front end calls ask or answer before
// anything was uploaded.
var ErrNoSession = errors.New("no active session; upload a protein first")

// Session is the state one front-end user works on.
type Session struct {
	Conversation *conversation.Conversation
}

// NewSession starts an empty session from the configured template.
func (a *App) NewSession() *Session {
	return &Session{Conversation: a.Template()}
}

// Reset clears the session's messages and proteins. A nil session is a no-op.
func (a *App) Reset(s *Session) {
	if s == nil || s.Conversation == nil {
		return
	}
	s.Conversation.Reset()
}

// UploadProtein starts a fresh session holding emb.
func (a *App) UploadProtein(emb *embedding.Embedding) (*Session, error) {
	s := a.NewSession()
	if err := a.Upload(s, emb); err != nil {
		return nil, err
	}
	return s, nil
}

// Upload adds emb to an existing session.
func (a *App) Upload(s *Session, emb *embedding.Embedding) error {
	if s == nil || s.Conversation == nil {
		return ErrNoSession
	}
	_, err := a.chat.Upload(emb, s.Conversation)
	return err
}

// Ask records a user message in the session.
func (a *App) Ask(s *Session, text string) error {
	if s == nil || s.Conversation == nil {
		return ErrNoSession
	}
	return a.chat.Ask(text, s.Conversation)
}

// Answer generates the assistant reply for the session.
func (a *App) Answer(ctx context.Context, s *Session, opts model.Options) (string, error) {
	if s == nil || s.Conversation == nil {
		return "", ErrNoSession
	}
	return a.chat.Answer(ctx, s.Conversation, opts)
}
