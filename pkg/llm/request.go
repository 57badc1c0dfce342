package llm

// ChatRequest is the request body accepted by the relay's POST /v1/chat
// endpoint. Messages carry the windowed conversation context; the latest
// user turn's attachments are additionally surfaced as a flat list for
// audit metadata.
type ChatRequest struct {
	// ModelIdentifier selects the active model configuration by the
	// identifier string used with the upstream provider.
	ModelIdentifier string `json:"model_identifier"`

	// Messages is the windowed conversation, oldest first.
	Messages []Message `json:"messages"`

	// ClientMessageID is the client-generated UUID for this generation
	// attempt, recorded on the usage log row.
	ClientMessageID string `json:"client_message_id"`

	// Attachments lists the latest user turn's attachments.
	Attachments []Attachment `json:"attachments"`
}

// Attachment is an uploaded file referenced by a message. Immutable once
// created; only images are supported today.
type Attachment struct {
	Type        string `json:"type"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
}

// AttachmentImage is the only attachment kind currently supported.
const AttachmentImage = "image"

// UpstreamRequest is the streaming chat-completion request the relay sends
// to the upstream provider.
type UpstreamRequest struct {
	Model         string         `json:"model"`
	Messages      []Message      `json:"messages"`
	Stream        bool           `json:"stream"`
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`
}

// StreamOptions asks the provider to include usage metrics on the final
// streamed chunk.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// ErrorResponse is the JSON error body returned on non-streaming failures.
type ErrorResponse struct {
	Error string `json:"error"`
}
