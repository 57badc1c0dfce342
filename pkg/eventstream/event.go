// Package eventstream defines the transport-neutral usage event emitted
// after a usage log row is persisted, and the Publisher interface backends
// implement. Publishing is best effort: failures are logged by callers and
// never propagated to the request path.
package eventstream

import (
	"time"

	"github.com/rotaworks/rotachat/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeUsageRecorded is emitted after a usage log row is inserted.
	EventTypeUsageRecorded = "rotachat.usage.recorded"
)

// UsageRecordedEvent is the transport-neutral payload for a recorded
// generation attempt.
type UsageRecordedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	UserID          string `json:"user_id"`
	ModelIdentifier string `json:"model_identifier"`
	ClientMessageID string `json:"client_message_id"`
	Status          string `json:"status"`
	PromptTokens    *int   `json:"prompt_tokens,omitempty"`
	CompletionTok   *int   `json:"completion_tokens,omitempty"`
	TotalTokens     *int   `json:"total_tokens,omitempty"`
	ErrorCode       string `json:"error_code,omitempty"`
	LatencyMS       int64  `json:"latency_ms"`
}

// NewUsageRecordedEvent builds a v1 event from a persisted usage log entry.
func NewUsageRecordedEvent(eventID string, entry *storage.UsageLogEntry) *UsageRecordedEvent {
	return &UsageRecordedEvent{
		SchemaVersion:   SchemaVersionV1,
		EventType:       EventTypeUsageRecorded,
		EventID:         eventID,
		EmittedAt:       time.Now().UTC(),
		UserID:          entry.UserID,
		ModelIdentifier: entry.ModelIdentifier,
		ClientMessageID: entry.ClientMessageID,
		Status:          entry.Status,
		PromptTokens:    entry.PromptTokens,
		CompletionTok:   entry.CompletionTokens,
		TotalTokens:     entry.TotalTokens,
		ErrorCode:       entry.ErrorCode,
		LatencyMS:       entry.LatencyMS,
	}
}
