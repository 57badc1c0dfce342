package chat

import (
	"context"
	"sync"
)

// Store persists finished messages per model so conversations survive
// restarts. Implementations live outside this package.
type Store interface {
	Load(ctx context.Context, modelIdentifier string) ([]Message, error)
	Append(ctx context.Context, modelIdentifier string, msg Message) error
	Remove(ctx context.Context, modelIdentifier, messageID string) error
	Clear(ctx context.Context, modelIdentifier string) error
	ClearAll(ctx context.Context) error
}

// Cache holds the in-memory conversation for the currently selected
// model, backed by a Store. Switching models swaps the whole history;
// sign-out drops everything.
type Cache struct {
	mu       sync.Mutex
	store    Store
	model    string
	messages []Message
}

func NewCache(store Store) *Cache {
	return &Cache{store: store}
}

// SwitchModel invalidates the in-memory history and loads the one
// cached for the given model. Switching to the current model reloads.
func (c *Cache) SwitchModel(ctx context.Context, modelIdentifier string) error {
	msgs, err := c.store.Load(ctx, modelIdentifier)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = modelIdentifier
	c.messages = msgs
	return nil
}

// Model returns the identifier of the conversation currently loaded.
func (c *Cache) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// Messages returns a copy of the current conversation.
func (c *Cache) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Append records a finished message in memory and in the store.
func (c *Cache) Append(ctx context.Context, msg Message) error {
	c.mu.Lock()
	model := c.model
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	return c.store.Append(ctx, model, msg)
}

// Remove drops a message by ID from memory and the store.
func (c *Cache) Remove(ctx context.Context, messageID string) error {
	c.mu.Lock()
	model := c.model
	for i, m := range c.messages {
		if m.ID == messageID {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	return c.store.Remove(ctx, model, messageID)
}

// Clear empties the current model's conversation.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	model := c.model
	c.messages = nil
	c.mu.Unlock()
	return c.store.Clear(ctx, model)
}

// SignOut drops every cached conversation across all models.
func (c *Cache) SignOut(ctx context.Context) error {
	c.mu.Lock()
	c.messages = nil
	c.model = ""
	c.mu.Unlock()
	return c.store.ClearAll(ctx)
}
