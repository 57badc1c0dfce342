// Package llm defines the wire types shared by the rotachat relay and its
// clients: chat messages with multimodal content parts, the chat request
// envelope, and the normalized streaming chunk shape.
package llm

import (
	"encoding/json"
	"fmt"
)

// Roles carried by conversation messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content part types.
const (
	PartText     = "text"
	PartImageURL = "image_url"
)

// Message is a single message in a conversation. Content is an ordered list
// of parts so image attachments ride alongside text in a single message.
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart is one piece of message content. Type selects which of the
// remaining fields is populated.
type ContentPart struct {
	Type string `json:"type"`

	// Text content (type="text")
	Text string `json:"text,omitempty"`

	// Image content (type="image_url")
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL wraps a remote image reference, matching the OpenAI-style
// {"image_url": {"url": ...}} nesting.
type ImageURL struct {
	URL string `json:"url"`
}

// NewTextMessage creates a plain text message with the given role.
func NewTextMessage(role, text string) Message {
	return Message{
		Role: role,
		Content: []ContentPart{
			{Type: PartText, Text: text},
		},
	}
}

// GetText returns the concatenated text content from all text parts.
func (m *Message) GetText() string {
	var result string
	for _, part := range m.Content {
		if part.Type == PartText {
			result += part.Text
		}
	}
	return result
}

// UnmarshalJSON accepts both content shapes from the wire: a bare string
// ("content": "hi") or an ordered part list ("content": [{...}]). A bare
// string is normalized to a single text part.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Role = raw.Role
	m.Content = nil

	if len(raw.Content) == 0 || string(raw.Content) == "null" {
		return nil
	}

	switch raw.Content[0] {
	case '"':
		var text string
		if err := json.Unmarshal(raw.Content, &text); err != nil {
			return fmt.Errorf("parsing string content: %w", err)
		}
		m.Content = []ContentPart{{Type: PartText, Text: text}}
	case '[':
		var parts []ContentPart
		if err := json.Unmarshal(raw.Content, &parts); err != nil {
			return fmt.Errorf("parsing content parts: %w", err)
		}
		m.Content = parts
	default:
		return fmt.Errorf("content must be a string or an array of parts")
	}

	return nil
}
