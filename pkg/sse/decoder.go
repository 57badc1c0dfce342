package sse

import (
	"errors"
	"fmt"

	"github.com/rotaworks/rotachat/pkg/llm"
)

// ErrMalformedChunk is returned when a data payload is not valid chunk JSON.
// Decoding fails fast: the sequence terminates and no further chunks are
// produced, rather than silently skipping the bad event.
var ErrMalformedChunk = errors.New("malformed stream chunk")

// ErrStreamTruncated is returned when the source ends without the [DONE]
// sentinel. Streams that error after headers are sent cannot change the
// status line, so a missing sentinel is the only abnormal-end signal.
var ErrStreamTruncated = errors.New("stream ended without [DONE] sentinel")

// Decoder turns an SSE byte stream of provider chunks into a lazy, finite,
// non-restartable sequence of normalized chunks.
type Decoder struct {
	reader *Reader
	done   bool
	err    error
}

// NewDecoder returns a Decoder reading SSE events from the given Reader.
func NewDecoder(r *Reader) *Decoder {
	return &Decoder{reader: r}
}

// Next returns the next normalized chunk. It returns nil, nil once the
// [DONE] sentinel has been seen. After any error the decoder is poisoned:
// every subsequent call returns the same error.
func (d *Decoder) Next() (*llm.StreamChunk, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.done {
		return nil, nil
	}

	for {
		ev, err := d.reader.Next()
		if err != nil {
			d.err = err
			return nil, err
		}
		if ev == nil {
			d.err = ErrStreamTruncated
			return nil, d.err
		}

		if ev.Data == DoneSentinel {
			d.done = true
			return nil, nil
		}
		if ev.Data == "" {
			continue
		}

		chunk, err := llm.ParseChunk([]byte(ev.Data))
		if err != nil {
			d.err = fmt.Errorf("%w: %v", ErrMalformedChunk, err)
			return nil, d.err
		}

		return chunk, nil
	}
}
