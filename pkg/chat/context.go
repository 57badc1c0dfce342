package chat

import "github.com/rotaworks/rotachat/pkg/llm"

// DefaultWindow is how many user turns each request carries. The system
// prompt lives server-side, so the window only bounds conversation turns.
const DefaultWindow = 6

// ContextBuilder assembles the message payload for one generation from
// the conversation history.
type ContextBuilder struct {
	// Window bounds the number of user turns included, counting the
	// message being sent. Zero means DefaultWindow.
	Window int
}

// Build produces the request payload for sending latest against history.
// Failed, stopped, and still-streaming messages never enter the window;
// latest is included exactly once even when the caller already appended
// it to history.
func (b ContextBuilder) Build(history []Message, latest Message, modelIdentifier string) llm.ChatRequest {
	window := b.Window
	if window <= 0 {
		window = DefaultWindow
	}

	eligible := make([]Message, 0, len(history)+1)
	for _, m := range history {
		if m.State != StateNormal || m.ID == latest.ID {
			continue
		}
		eligible = append(eligible, m)
	}
	eligible = append(eligible, latest)

	// Walk backwards until the window's worth of user turns is in.
	start := len(eligible)
	users := 0
	for i := len(eligible) - 1; i >= 0; i-- {
		if eligible[i].Role == llm.RoleUser {
			users++
		}
		start = i
		if users == window {
			break
		}
	}

	windowed := eligible[start:]
	messages := make([]llm.Message, 0, len(windowed))
	for _, m := range windowed {
		messages = append(messages, toPayloadMessage(m))
	}

	return llm.ChatRequest{
		ModelIdentifier: modelIdentifier,
		Messages:        messages,
		ClientMessageID: latest.ID,
		Attachments:     latest.Attachments,
	}
}

func toPayloadMessage(m Message) llm.Message {
	parts := make([]llm.ContentPart, 0, 1+len(m.Attachments))
	if m.Content != "" {
		parts = append(parts, llm.ContentPart{Type: llm.PartText, Text: m.Content})
	}
	for _, a := range m.Attachments {
		parts = append(parts, llm.ContentPart{
			Type:     llm.PartImageURL,
			ImageURL: &llm.ImageURL{URL: a.URL},
		})
	}
	return llm.Message{Role: m.Role, Content: parts}
}
