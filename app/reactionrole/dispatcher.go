package reactionrole

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
)

type eventIDKey struct{}

// WithEventID attaches an event id to ctx.
func WithEventID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, eventIDKey{}, id)
}

// EventIDFromContext returns the event id attached by the dispatcher, or "".
func EventIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(eventIDKey{}).(string)
	return id
}

// Dispatcher runs tasks on a bounded worker pool. Submit never blocks the caller on a busy pool;
// excess tasks wait in the pool's queue.
type Dispatcher struct {
	pool    *workerpool.WorkerPool
	timeout time.Duration
	metrics Metrics
	logger  *slog.Logger

	mu      sync.RWMutex
	stopped bool
}

// NewDispatcher starts a pool of size workers. Each task gets a context bounded by timeout.
func NewDispatcher(size int, timeout time.Duration, metrics Metrics, logger *slog.Logger) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Dispatcher{
		pool:    workerpool.New(size),
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
	}
}

// Submit queues task and returns the event id assigned to it. It returns an error once the
// dispatcher is stopped.
func (d *Dispatcher) Submit(name string, task func(ctx context.Context)) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return "", fmt.Errorf("dispatcher stopped, dropping %s", name)
	}

	eventID := uuid.NewString()
	d.pool.Submit(func() {
		defer d.metrics.QueueDepth(d.pool.WaitingQueueSize())
		d.run(name, eventID, task)
	})
	d.metrics.QueueDepth(d.pool.WaitingQueueSize())
	return eventID, nil
}

func (d *Dispatcher) run(name, eventID string, task func(ctx context.Context)) {
	ctx := WithEventID(context.Background(), eventID)
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			d.metrics.TaskPanicked()
			d.logger.Error("Recovered from panic in reaction task",
				attr.String("task", name),
				attr.EventID(eventID),
				attr.Any("panic", r),
				attr.String("stack", string(debug.Stack())),
			)
		}
	}()

	task(ctx)
}

// Stop rejects new tasks and waits for queued ones to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	d.pool.StopWait()
	d.metrics.QueueDepth(0)
}
