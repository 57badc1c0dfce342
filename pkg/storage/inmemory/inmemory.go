// Package inmemory provides an in-memory storage.Driver for tests and for
// running the relay without a database.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotaworks/rotachat/pkg/storage"
)

// Driver is a mutex-guarded in-memory implementation of storage.Driver.
type Driver struct {
	mu      sync.RWMutex
	configs []storage.ModelConfig
	usage   []storage.UsageLogEntry
	nextID  int64
}

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{nextID: 1}
}

func (d *Driver) ActiveModelConfigs(_ context.Context) ([]storage.ModelConfig, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var active []storage.ModelConfig
	for _, cfg := range d.configs {
		if cfg.IsActive {
			active = append(active, cfg)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Ordering < active[j].Ordering
	})

	return active, nil
}

func (d *Driver) InsertModelConfig(_ context.Context, cfg storage.ModelConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.configs = append(d.configs, cfg)
	return nil
}

func (d *Driver) InsertUsageLog(_ context.Context, entry *storage.UsageLogEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	row := *entry
	row.ID = d.nextID
	d.nextID++
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	d.usage = append(d.usage, row)
	entry.ID = row.ID

	return nil
}

func (d *Driver) RecentUsage(_ context.Context, limit int) ([]storage.UsageLogEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if limit <= 0 || limit > len(d.usage) {
		limit = len(d.usage)
	}

	// Newest first.
	out := make([]storage.UsageLogEntry, 0, limit)
	for i := len(d.usage) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, d.usage[i])
	}

	return out, nil
}

func (d *Driver) UsageStats(_ context.Context) ([]storage.UsageStat, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	type key struct{ model, status string }
	agg := make(map[key]*storage.UsageStat)
	var order []key

	for _, row := range d.usage {
		k := key{row.ModelIdentifier, row.Status}
		stat, ok := agg[k]
		if !ok {
			stat = &storage.UsageStat{ModelIdentifier: row.ModelIdentifier, Status: row.Status}
			agg[k] = stat
			order = append(order, k)
		}
		stat.Requests++
		if row.TotalTokens != nil {
			stat.TotalTokens += int64(*row.TotalTokens)
		}
	}

	stats := make([]storage.UsageStat, 0, len(order))
	for _, k := range order {
		stats = append(stats, *agg[k])
	}

	return stats, nil
}

func (d *Driver) Close() error {
	return nil
}
