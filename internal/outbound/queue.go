package outbound

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fekuna/omnipos-inventory-ledger/internal/metrics"
	"github.com/fekuna/omnipos-inventory-ledger/pkg/logger"
	"go.uber.org/zap"
)

type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

type Config struct {
	// Workers is the number of goroutines draining the queue. Zero runs
	// every task inline on Enqueue.
	Workers     int
	QueueSize   int
	MaxAttempts int
	TaskTimeout time.Duration
}

var ErrQueueClosed = errors.New("outbound queue closed")

// Queue carries best-effort side effects off the mutation path. A task that
// keeps failing is logged and counted, never propagated to the caller that
// enqueued it.
type Queue struct {
	cfg    Config
	logger logger.ZapLogger
	tasks  chan Task

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(cfg Config, log logger.ZapLogger) *Queue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 10 * time.Second
	}
	q := &Queue{cfg: cfg, logger: log}
	if cfg.Workers > 0 {
		q.tasks = make(chan Task, max(cfg.QueueSize, 1))
	}
	return q
}

func (q *Queue) Start() {
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for t := range q.tasks {
				metrics.OutboundQueueDepth.Dec()
				q.execute(t)
			}
		}()
	}
	q.logger.Info("Outbound queue started", zap.Int("workers", q.cfg.Workers), zap.Int("queue_size", cap(q.tasks)))
}

// Enqueue hands t to a worker without blocking. It reports false when the
// queue is full or closed and the task was dropped.
func (q *Queue) Enqueue(t Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.OutboundTasks.WithLabelValues(t.Name, "dropped").Inc()
		q.logger.Warn("outbound task dropped, queue closed", zap.String("task", t.Name))
		return false
	}
	if q.tasks == nil {
		q.execute(t)
		return true
	}

	select {
	case q.tasks <- t:
		metrics.OutboundQueueDepth.Inc()
		return true
	default:
		metrics.OutboundTasks.WithLabelValues(t.Name, "dropped").Inc()
		q.logger.Warn("outbound task dropped, queue full", zap.String("task", t.Name))
		return false
	}
}

// Do runs t on the caller's goroutine with the same retry and logging as a
// queued task. ctx bounds the whole run.
func (q *Queue) Do(ctx context.Context, t Task) {
	q.run(ctx, t)
}

// Close stops accepting tasks and waits for queued ones to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	if q.tasks != nil {
		close(q.tasks)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) execute(t Task) {
	q.run(context.Background(), t)
}

func (q *Queue) run(ctx context.Context, t Task) {
	attempt := 0
	op := func() error {
		attempt++
		tctx, cancel := context.WithTimeout(ctx, q.cfg.TaskTimeout)
		defer cancel()
		return t.Run(tctx)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 50 * time.Millisecond
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(q.cfg.MaxAttempts-1)), ctx)
	if err := backoff.Retry(op, b); err != nil {
		metrics.OutboundTasks.WithLabelValues(t.Name, "failed").Inc()
		q.logger.Error("outbound task failed",
			zap.String("task", t.Name),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return
	}
	metrics.OutboundTasks.WithLabelValues(t.Name, "succeeded").Inc()
}
