// Package chat holds the client-side conversation model: messages, the
// context window builder, the streaming controller, and the local cache.
package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/rotaworks/rotachat/pkg/llm"
)

// MessageState tracks where a message is in its lifecycle. Only Normal
// messages participate in future context windows.
type MessageState string

const (
	StateNormal    MessageState = "normal"
	StateStreaming MessageState = "streaming"
	StateFailed    MessageState = "failed"
	StateStopped   MessageState = "stopped"
)

// Message is one turn of a conversation as the client sees it.
type Message struct {
	ID          string           `json:"id"`
	Role        string           `json:"role"`
	Content     string           `json:"content"`
	Attachments []llm.Attachment `json:"attachments,omitempty"`
	State       MessageState     `json:"state"`
	FailReason  string           `json:"fail_reason,omitempty"`
	Usage       *llm.Usage       `json:"usage,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NewUserMessage builds a user turn ready to send.
func NewUserMessage(text string, attachments []llm.Attachment) Message {
	return Message{
		ID:          uuid.NewString(),
		Role:        llm.RoleUser,
		Content:     text,
		Attachments: attachments,
		State:       StateNormal,
		CreatedAt:   time.Now().UTC(),
	}
}

func newPendingAssistant() *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      llm.RoleAssistant,
		State:     StateStreaming,
		CreatedAt: time.Now().UTC(),
	}
}

// Finished reports whether the message reached a terminal state.
func (m *Message) Finished() bool {
	return m.State != StateStreaming
}
