// Package conversation keeps the per-session chat state and runs the
// upload, ask and answer steps against a model.
package conversation

import (
	"strings"

	"github.com/proteinchat/proteinchat-go/pkg/embedding"
)

const (
	// Placeholder marks where a protein embedding is spliced into the prompt.
	Placeholder = "<proteinHere>"
	openTag     = "<protein>"
	closeTag    = "</protein>"
)

// Message is one entry of the conversation. Pending marks the assistant
// slot that is being generated.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Pending bool   `json:"pending,omitempty"`
}

// Conversation is an ordered exchange between two roles under a system
// prompt, together with the proteins uploaded into it. The i-th placeholder
// in Messages refers to Proteins[i].
type Conversation struct {
	System   string                 `json:"system"`
	Roles    [2]string              `json:"roles"`
	Sep      string                 `json:"sep"`
	Messages []Message              `json:"messages"`
	Proteins []*embedding.Embedding `json:"-"`
}

// ProteinTemplate is the single-separator template for protein chats.
var ProteinTemplate = Conversation{
	System: "Give the following protein: <protein>proteinContent</protein>. " +
		"You will be able to see the protein once I provide it to you. Please answer my questions.",
	Roles: [2]string{"Human", "Assistant"},
	Sep:   "###",
}

// Copy returns a conversation that shares nothing with c.
func (c *Conversation) Copy() *Conversation {
	out := *c
	out.Messages = append([]Message{}, c.Messages...)
	out.Proteins = append([]*embedding.Embedding{}, c.Proteins...)
	return &out
}

// Append adds a finished message.
func (c *Conversation) Append(role, content string) {
	c.Messages = append(c.Messages, Message{Role: role, Content: content})
}

// appendPending adds an empty slot for role.
func (c *Conversation) appendPending(role string) {
	c.Messages = append(c.Messages, Message{Role: role, Pending: true})
}

// Last returns the newest message and whether there is one.
func (c *Conversation) Last() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Reset drops all messages and proteins and keeps the template fields.
func (c *Conversation) Reset() {
	c.Messages = []Message{}
	c.Proteins = []*embedding.Embedding{}
}

// Prompt renders the conversation as the single-string prompt:
// system###Human: ...###Assistant: ...###Assistant:
func (c *Conversation) Prompt() string {
	var b strings.Builder
	b.WriteString(c.System)
	b.WriteString(c.Sep)
	for _, m := range c.Messages {
		if m.Pending {
			b.WriteString(m.Role)
			b.WriteString(":")
			continue
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString(c.Sep)
	}
	return b.String()
}

func uploadMessage() string {
	return openTag + Placeholder + closeTag
}
