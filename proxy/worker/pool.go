// Package worker provides the asynchronous worker pool that persists usage
// log entries and publishes usage events.
//
// The pool decouples the audit side effect from the relay's streaming hot
// path: the handler enqueues exactly one job per request that reached the
// streaming state and returns without waiting on the database.
package worker

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rotaworks/rotachat/pkg/eventstream"
	"github.com/rotaworks/rotachat/pkg/storage"
	"github.com/rotaworks/rotachat/proxy/metrics"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is one usage log entry to persist.
type Job struct {
	Entry *storage.UsageLogEntry
}

// Config holds the worker pool dependencies.
type Config struct {
	// Driver is the storage backend for usage log rows.
	Driver storage.Driver

	// Publisher receives a UsageRecordedEvent after each successful insert.
	// Optional; nil disables event publishing.
	Publisher eventstream.Publisher

	// Metrics is the relay's instrumentation. Optional.
	Metrics *metrics.Metrics

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Pool processes usage log jobs asynchronously.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewPool creates a Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing. Returns true if enqueued, false if
// the job was dropped because the queue is full or the pool is closed.
// Stream pump goroutines can outlive the HTTP server during shutdown, so
// a late Enqueue must degrade to a drop rather than a send on a closed
// channel.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.logger.Warn("usage job dropped, pool closed",
			zap.String("model", job.Entry.ModelIdentifier),
			zap.String("status", job.Entry.Status),
		)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("usage job queued",
			zap.String("model", job.Entry.ModelIdentifier),
			zap.String("status", job.Entry.Status),
		)
		return true
	default:
		p.logger.Error("usage job dropped, queue full",
			zap.String("model", job.Entry.ModelIdentifier),
			zap.String("status", job.Entry.Status),
		)
		return false
	}
}

// Close stops accepting jobs and waits for queued work to drain. Call
// during graceful shutdown after the HTTP server has stopped. Close is
// idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("usage worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("usage worker stopped", zap.Uint("worker_id", id))
}

func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	if err := p.config.Driver.InsertUsageLog(ctx, job.Entry); err != nil {
		if p.config.Metrics != nil {
			p.config.Metrics.UsageInsertFailures.Inc()
		}
		p.logger.Error("usage log insert failed",
			zap.String("model", job.Entry.ModelIdentifier),
			zap.String("status", job.Entry.Status),
			zap.Error(err),
		)
		return
	}

	if p.config.Metrics != nil {
		p.config.Metrics.UsageInserts.WithLabelValues(job.Entry.Status).Inc()
	}

	p.logger.Info("usage recorded",
		zap.String("user", job.Entry.UserID),
		zap.String("model", job.Entry.ModelIdentifier),
		zap.String("status", job.Entry.Status),
		zap.Int64("latency_ms", job.Entry.LatencyMS),
	)

	if p.config.Publisher == nil {
		return
	}

	event := eventstream.NewUsageRecordedEvent(uuid.NewString(), job.Entry)
	if err := p.config.Publisher.PublishUsage(ctx, event); err != nil {
		// Best effort: the usage row is already durable.
		p.logger.Warn("usage event publish failed",
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
	}
}
