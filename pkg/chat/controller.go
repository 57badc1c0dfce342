package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotaworks/rotachat/pkg/llm"
	"github.com/rotaworks/rotachat/pkg/logger"
	"github.com/rotaworks/rotachat/pkg/sse"
)

// Config wires a Controller to a relay and a conversation cache.
type Config struct {
	// Target is the relay base URL, e.g. http://localhost:8787.
	Target string

	// AnonKey is sent as the apikey header on every request.
	AnonKey string

	// AccessToken is the caller's bearer token.
	AccessToken string

	// Window bounds user turns per request; zero means DefaultWindow.
	Window int

	// HTTPClient overrides the default streaming client. The default
	// has no overall timeout, since responses stream open-ended.
	HTTPClient *http.Client

	Hooks  Hooks
	Logger *slog.Logger
}

// Controller drives generations for one conversation: it sends user
// turns, applies streamed deltas in order, and finalizes each assistant
// message exactly once. At most one generation is in flight at a time.
type Controller struct {
	target      string
	anonKey     string
	accessToken string
	httpClient  *http.Client
	builder     ContextBuilder
	cache       *Cache
	hooks       Hooks
	pulser      *pulser
	logger      *slog.Logger

	mu        sync.Mutex
	gen       *generation
	lastFinal *Message
}

type generation struct {
	pending  *Message
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	finalize sync.Once
}

func NewController(config Config, cache *Cache) *Controller {
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Controller{
		target:      strings.TrimSuffix(config.Target, "/"),
		anonKey:     config.AnonKey,
		accessToken: config.AccessToken,
		httpClient:  httpClient,
		builder:     ContextBuilder{Window: config.Window},
		cache:       cache,
		hooks:       config.Hooks,
		pulser:      newPulser(config.Hooks.Pulse),
		logger:      log,
	}
}

// SetAccessToken swaps the bearer token used for subsequent requests.
func (c *Controller) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// Send records a user turn and starts a generation for it. It returns
// ErrGenerationInFlight without persisting anything if a response is
// already streaming.
func (c *Controller) Send(ctx context.Context, text string, attachments []llm.Attachment) (Message, error) {
	// Claim the slot before touching the cache so a racing Send cannot
	// persist a second user turn.
	gen, err := c.reserve()
	if err != nil {
		return Message{}, err
	}

	user := NewUserMessage(text, attachments)
	if err := c.cache.Append(ctx, user); err != nil {
		c.release(gen)
		return Message{}, fmt.Errorf("persisting user message: %w", err)
	}

	c.launch(gen, user)
	return user, nil
}

// Retry re-issues the last user turn. Any trailing failed or stopped
// assistant message is discarded first.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	busy := c.gen != nil
	c.mu.Unlock()
	if busy {
		return ErrGenerationInFlight
	}

	msgs := c.cache.Messages()
	if n := len(msgs); n > 0 && msgs[n-1].Role == llm.RoleAssistant && msgs[n-1].State != StateNormal {
		if err := c.cache.Remove(ctx, msgs[n-1].ID); err != nil {
			return err
		}
		msgs = msgs[:n-1]
	}

	user, ok := lastUser(msgs)
	if !ok {
		return ErrNoUserMessage
	}
	return c.start(user)
}

// Regenerate discards the last assistant message and re-issues the user
// turn it answered. It only applies when that message finished normally.
func (c *Controller) Regenerate(ctx context.Context) error {
	c.mu.Lock()
	busy := c.gen != nil
	c.mu.Unlock()
	if busy {
		return ErrGenerationInFlight
	}

	msgs := c.cache.Messages()
	n := len(msgs)
	if n == 0 || msgs[n-1].Role != llm.RoleAssistant || msgs[n-1].State != StateNormal {
		return ErrNotRegenerable
	}
	if err := c.cache.Remove(ctx, msgs[n-1].ID); err != nil {
		return err
	}

	user, ok := lastUser(msgs[:n-1])
	if !ok {
		return ErrNoUserMessage
	}
	return c.start(user)
}

// Cancel stops the in-flight generation, aborting the transport. The
// partial text streamed so far is kept on a stopped message. Calling
// Cancel with nothing in flight is a no-op, as is calling it twice.
func (c *Controller) Cancel() {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	if gen == nil {
		return
	}
	gen.cancel()
}

// Wait blocks until the in-flight generation (if any) finalizes and
// returns the resulting assistant message.
func (c *Controller) Wait() (Message, bool) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	if gen != nil {
		<-gen.done
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFinal == nil {
		return Message{}, false
	}
	return *c.lastFinal, true
}

// Streaming reports whether a generation is in flight.
func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen != nil
}

func (c *Controller) start(user Message) error {
	gen, err := c.reserve()
	if err != nil {
		return err
	}
	c.launch(gen, user)
	return nil
}

// reserve claims the in-flight slot with a fresh generation, or returns
// ErrGenerationInFlight if one is already streaming.
func (c *Controller) reserve() (*generation, error) {
	genCtx, cancel := context.WithCancel(context.Background())
	gen := &generation{
		pending: newPendingAssistant(),
		ctx:     genCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != nil {
		cancel()
		return nil, ErrGenerationInFlight
	}
	c.gen = gen
	return gen, nil
}

// release abandons a reserved generation that never started streaming.
func (c *Controller) release(gen *generation) {
	gen.cancel()
	c.mu.Lock()
	if c.gen == gen {
		c.gen = nil
	}
	c.mu.Unlock()
	close(gen.done)
}

func (c *Controller) launch(gen *generation, user Message) {
	payload := c.builder.Build(c.cache.Messages(), user, c.cache.Model())
	c.notifyState(gen.pending)
	go c.run(gen.ctx, payload, gen)
}

func (c *Controller) run(ctx context.Context, payload llm.ChatRequest, gen *generation) {
	resp, err := c.openStream(ctx, payload)
	if err != nil {
		if ctx.Err() != nil {
			c.finalizeStopped(gen)
			return
		}
		c.finalizeError(gen, err)
		return
	}
	defer resp.Body.Close()

	dec := sse.NewDecoder(sse.NewReader(resp.Body))
	for {
		if ctx.Err() != nil {
			c.finalizeStopped(gen)
			return
		}

		chunk, err := dec.Next()
		if err != nil {
			if ctx.Err() != nil {
				c.finalizeStopped(gen)
				return
			}
			c.logger.Debug("stream decode failed", "error", err)
			c.finalizeError(gen, ErrService)
			return
		}
		if chunk == nil {
			c.finalizeClean(gen)
			return
		}

		if chunk.Usage != nil {
			gen.pending.Usage = chunk.Usage
		}
		if chunk.Delta != "" {
			gen.pending.Content += chunk.Delta
			if c.hooks.OnDelta != nil {
				c.hooks.OnDelta(*gen.pending)
			}
			c.pulser.pulse(time.Now())
		}
	}
}

func (c *Controller) openStream(ctx context.Context, payload llm.ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.anonKey != "" {
		req.Header.Set("apikey", c.anonKey)
	}
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusUnauthorized:
		resp.Body.Close()
		return nil, ErrUnauthorized
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrModelNotAvailable
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: relay returned %d", ErrService, resp.StatusCode)
	}
}

func (c *Controller) finalizeClean(gen *generation) {
	gen.finalize.Do(func() {
		// Only a stream that accumulated zero text counts as empty;
		// whitespace is output the provider chose to send.
		if gen.pending.Content == "" {
			gen.pending.State = StateFailed
			gen.pending.FailReason = EmptyOutputReason
		} else {
			gen.pending.State = StateNormal
		}
		c.settle(gen)
	})
}

func (c *Controller) finalizeStopped(gen *generation) {
	gen.finalize.Do(func() {
		gen.pending.State = StateStopped
		c.settle(gen)
	})
}

func (c *Controller) finalizeError(gen *generation, reason error) {
	gen.finalize.Do(func() {
		gen.pending.State = StateFailed
		gen.pending.FailReason = reason.Error()
		c.settle(gen)
		if c.hooks.OnServiceError != nil {
			c.hooks.OnServiceError(reason)
		}
	})
}

// settle stamps the terminal timestamp, hands the finalized message to
// the cache, and releases the in-flight slot.
func (c *Controller) settle(gen *generation) {
	gen.pending.CreatedAt = time.Now().UTC()
	if err := c.cache.Append(context.Background(), *gen.pending); err != nil {
		c.logger.Warn("persisting assistant message failed", "error", err)
	}

	final := *gen.pending
	c.mu.Lock()
	c.lastFinal = &final
	c.gen = nil
	c.mu.Unlock()

	c.notifyState(gen.pending)
	close(gen.done)
}

func (c *Controller) notifyState(m *Message) {
	if c.hooks.OnStateChange != nil {
		c.hooks.OnStateChange(*m)
	}
}

func lastUser(msgs []Message) (Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llm.RoleUser {
			return msgs[i], true
		}
	}
	return Message{}, false
}
