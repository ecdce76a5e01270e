package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonesrussell/pageindexer/internal/logger"
	"github.com/jonesrussell/pageindexer/internal/metrics"
	"github.com/jonesrussell/pageindexer/internal/queue"
)

// ErrRetryLater tells the pool to leave the item unacknowledged so the
// pending-claim path redelivers it after the idle threshold. Used for
// rate-limited submissions.
var ErrRetryLater = errors.New("retry later")

// Handler processes one submission work item.
type Handler interface {
	Handle(ctx context.Context, item *queue.WorkItem) error
}

// Pool runs a fixed set of workers, each reading from the submission
// queue and dispatching items through the handler.
type Pool struct {
	cfg      Config
	consumer *queue.Consumer
	handler  Handler
	metrics  *metrics.Metrics
	log      logger.Logger

	running atomic.Bool

	processed atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
}

// NewPool creates a worker pool.
func NewPool(cfg Config, consumer *queue.Consumer, handler Handler, m *metrics.Metrics, log logger.Logger) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if consumer == nil {
		return nil, errors.New("consumer cannot be nil")
	}
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}
	return &Pool{cfg: cfg, consumer: consumer, handler: handler, metrics: m, log: log}, nil
}

// Run starts the workers and blocks until ctx is canceled and all
// in-flight items are finished or the drain timeout passes.
func (p *Pool) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("pool is already running")
	}
	defer p.running.Store(false)

	if err := p.consumer.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize consumer group: %w", err)
	}

	p.log.Info("worker pool started",
		logger.Int("count", p.cfg.Count),
		logger.String("group", p.consumer.ConsumerGroup()))

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.runLoop(ctx, id)
		}(i)
	}

	<-ctx.Done()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("worker pool stopped gracefully")
	case <-time.After(p.cfg.DrainTimeout):
		p.log.Warn("worker pool drain timeout exceeded")
	}

	return nil
}

func (p *Pool) runLoop(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}

		items, err := p.consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Error("queue read failed",
				logger.Int("worker_id", id), logger.Err(err))
			continue
		}

		for _, item := range items {
			p.process(ctx, id, item)
		}
	}
}

func (p *Pool) process(ctx context.Context, id int, consumed *queue.ConsumedItem) {
	itemCtx, cancel := context.WithTimeout(ctx, p.cfg.ItemTimeout)
	defer cancel()

	start := time.Now()
	err := p.handler.Handle(itemCtx, consumed.Item)
	duration := time.Since(start)

	p.processed.Add(1)

	switch {
	case err == nil:
		p.succeeded.Add(1)
		p.metrics.TasksProcessed.WithLabelValues("success").Inc()
		p.log.Debug("work item processed",
			logger.Int("worker_id", id),
			logger.String("url", consumed.Item.URL),
			logger.String("engine", consumed.Item.Engine),
			logger.Duration("duration", duration))

	case errors.Is(err, ErrRetryLater):
		p.retried.Add(1)
		p.metrics.TasksProcessed.WithLabelValues("retry").Inc()
		// Not acknowledged; the pending claim path redelivers it.
		return

	default:
		p.failed.Add(1)
		p.metrics.TasksProcessed.WithLabelValues("failure").Inc()
		p.log.Error("work item failed",
			logger.Int("worker_id", id),
			logger.String("url", consumed.Item.URL),
			logger.String("engine", consumed.Item.Engine),
			logger.Duration("duration", duration),
			logger.Err(err))
	}

	// Both success and hard failure are final: the outcome is recorded
	// in the ledger and on the page, so the item is acknowledged.
	if ackErr := p.consumer.Acknowledge(ctx, consumed); ackErr != nil {
		p.log.Error("failed to acknowledge work item",
			logger.String("message_id", consumed.MessageID), logger.Err(ackErr))
	}
}

// Stats returns pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Running:   p.running.Load(),
		Count:     p.cfg.Count,
		Processed: p.processed.Load(),
		Succeeded: p.succeeded.Load(),
		Failed:    p.failed.Load(),
		Retried:   p.retried.Load(),
	}
}

// Stats holds pool counters.
type Stats struct {
	Running   bool  `json:"running"`
	Count     int   `json:"count"`
	Processed int64 `json:"processed"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Retried   int64 `json:"retried"`
}
