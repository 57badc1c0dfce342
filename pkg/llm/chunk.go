package llm

import (
	"encoding/json"
	"fmt"
)

// Usage contains token counts surfaced by the provider on the final chunk
// of a stream. All counts are optional on the wire; a zero value means the
// provider did not report it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// StreamChunk is one decoded unit of streamed model output. Ephemeral:
// one instance per decoded SSE event, never persisted.
type StreamChunk struct {
	// Delta is the text fragment carried by this chunk. May be empty.
	Delta string

	// FinishReason is non-empty on the chunk that ends a choice
	// (e.g. "stop", "length").
	FinishReason string

	// Usage is the provider's token accounting, normally present only on
	// the final chunk.
	Usage *Usage
}

// chunkEnvelope is the provider's native streaming chunk shape:
// choices[].delta.content, choices[].finish_reason, and an optional
// trailing usage object.
type chunkEnvelope struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// ParseChunk parses a provider chunk payload into a normalized StreamChunk.
// Delta content is concatenated across all choices in the envelope
// (normally exactly one); the finish reason is taken from the first choice
// that reports one.
func ParseChunk(data []byte) (*StreamChunk, error) {
	var env chunkEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parsing chunk envelope: %w", err)
	}

	chunk := &StreamChunk{Usage: env.Usage}
	for _, choice := range env.Choices {
		chunk.Delta += choice.Delta.Content
		if chunk.FinishReason == "" && choice.FinishReason != nil {
			chunk.FinishReason = *choice.FinishReason
		}
	}

	return chunk, nil
}
