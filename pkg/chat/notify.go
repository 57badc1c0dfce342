package chat

import (
	"sync"
	"time"
)

// minPulseInterval bounds how often the Pulse hook fires while deltas
// stream in.
const minPulseInterval = 400 * time.Millisecond

// Hooks are optional callbacks the controller fires as a generation
// progresses. Nil fields are skipped. Callbacks run on the streaming
// goroutine, so they must return quickly.
type Hooks struct {
	// OnStateChange fires when a message enters or leaves streaming,
	// with a snapshot of the message at that point.
	OnStateChange func(Message)

	// OnDelta fires after every applied delta, for scroll-to-latest.
	OnDelta func(Message)

	// Pulse fires on applied deltas, rate-limited to one call per
	// minPulseInterval.
	Pulse func()

	// OnServiceError fires when a generation ends in error, with the
	// user-facing reason.
	OnServiceError func(error)
}

type pulser struct {
	mu   sync.Mutex
	last time.Time
	fire func()
}

func newPulser(fire func()) *pulser {
	return &pulser{fire: fire}
}

func (p *pulser) pulse(now time.Time) {
	if p.fire == nil {
		return
	}
	p.mu.Lock()
	due := p.last.IsZero() || now.Sub(p.last) >= minPulseInterval
	if due {
		p.last = now
	}
	p.mu.Unlock()
	if due {
		p.fire()
	}
}
