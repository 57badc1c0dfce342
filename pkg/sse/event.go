// Package sse implements the Server-Sent Events plumbing for the rotachat
// streaming pipeline: an event reader, a tee variant that forwards raw bytes
// verbatim while parsing (used by the relay), and a decoder that turns a
// provider SSE stream into normalized chunks (used by clients and relay
// telemetry).
//
// This package intentionally does NOT provide SSE server capabilities.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// DoneSentinel is the literal data payload that marks clean end-of-stream.
const DoneSentinel = "[DONE]"

// Event is a single parsed SSE event, delimited by a blank line in the
// source byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field. Empty means the
	// default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this
	// event, joined with "\n" per the SSE spec.
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}
