// Package storage defines the persistence interface for the relay's two
// server-side tables: the model configuration table read by the registry
// and the insert-only usage log written once per generation attempt.
package storage

import (
	"context"
	"time"
)

// Usage log statuses. A row is written exactly once per request that
// reaches the streaming state and is never mutated afterwards.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// ModelConfig is one row of the model configuration table. SecretRef names
// the environment variable holding the provider secret; it is never served
// to clients.
type ModelConfig struct {
	ID              string
	DisplayName     string
	ModelIdentifier string
	BaseURL         string
	SystemPrompt    string
	SecretRef       string
	IsActive        bool
	Ordering        int
}

// UsageLogEntry is one audit row for a generation attempt. Token counts are
// nil when the provider reported none (error and cancelled paths).
type UsageLogEntry struct {
	ID               int64
	UserID           string
	ModelIdentifier  string
	ClientMessageID  string
	Status           string
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
	ErrorCode        string
	ErrorMessage     string
	LatencyMS        int64
	CreatedAt        time.Time
}

// UsageStat is an aggregate over the usage log, grouped by model and status.
type UsageStat struct {
	ModelIdentifier string
	Status          string
	Requests        int64
	TotalTokens     int64
}

// Driver is the storage backend shared by the relay and the audit API.
type Driver interface {
	// ActiveModelConfigs returns all rows with is_active = true, ordered by
	// ordering ascending.
	ActiveModelConfigs(ctx context.Context) ([]ModelConfig, error)

	// InsertModelConfig adds a model configuration row. Used by seeding and
	// tests; the relay itself only reads.
	InsertModelConfig(ctx context.Context, cfg ModelConfig) error

	// InsertUsageLog appends one usage log row. Rows are never updated.
	InsertUsageLog(ctx context.Context, entry *UsageLogEntry) error

	// RecentUsage returns the newest usage rows, up to limit.
	RecentUsage(ctx context.Context, limit int) ([]UsageLogEntry, error)

	// UsageStats aggregates the usage log by model and status.
	UsageStats(ctx context.Context) ([]UsageStat, error)

	// Close releases any resources held by the driver.
	Close() error
}
