package testutils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
)

// ChunkEvent builds a wire-format SSE event carrying one content delta.
func ChunkEvent(delta string) string {
	payload, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"delta": map[string]string{"content": delta}},
		},
	})
	return fmt.Sprintf("data: %s\n\n", payload)
}

// UsageEvent builds a wire-format SSE event carrying token usage.
func UsageEvent(prompt, completion int) string {
	payload, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{},
		"usage": map[string]int{
			"prompt_tokens":     prompt,
			"completion_tokens": completion,
			"total_tokens":      prompt + completion,
		},
	})
	return fmt.Sprintf("data: %s\n\n", payload)
}

// DoneEvent is the wire-format terminal sentinel event.
func DoneEvent() string {
	return "data: [DONE]\n\n"
}

// RawEvent wraps arbitrary data in a wire-format SSE event. Useful for
// injecting malformed payloads.
func RawEvent(data string) string {
	return fmt.Sprintf("data: %s\n\n", data)
}

// UpstreamOption tweaks the scripted upstream's behavior.
type UpstreamOption func(*upstream)

// WithStatus makes the upstream answer with the given HTTP status and
// no body instead of streaming.
func WithStatus(status int) UpstreamOption {
	return func(u *upstream) { u.status = status }
}

// WithRequestCapture records each request body the upstream receives.
func WithRequestCapture(sink *[][]byte) UpstreamOption {
	return func(u *upstream) { u.capture = sink }
}

type upstream struct {
	events  []string
	status  int
	capture *[][]byte
}

// NewScriptedUpstream starts an httptest server that answers any POST
// with the given SSE events, flushing after each one. Callers own the
// returned server and must Close it.
func NewScriptedUpstream(events []string, opts ...UpstreamOption) *httptest.Server {
	u := &upstream{events: events, status: http.StatusOK}
	for _, opt := range opts {
		opt(u)
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u.capture != nil {
			body := make([]byte, 0)
			buf := make([]byte, 4096)
			for {
				n, err := r.Body.Read(buf)
				body = append(body, buf[:n]...)
				if err != nil {
					break
				}
			}
			*u.capture = append(*u.capture, body)
		}

		if u.status != http.StatusOK {
			w.WriteHeader(u.status)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		flusher, _ := w.(http.Flusher)
		for _, ev := range u.events {
			fmt.Fprint(w, ev)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
}
