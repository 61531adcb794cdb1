package schedule

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/loomlabs/loom/internal/types"
)

// TaskExecutor performs the work of one claimed task, typically by
// dispatching to the orchestrator action handler the task names.
type TaskExecutor func(ctx context.Context, task ScheduledTask) error

// Poller periodically claims due tasks and executes them. Individual task
// failures are recorded on the task and never abort the polling loop.
type Poller struct {
	store    *TaskStore
	executor TaskExecutor
	interval time.Duration
	batch    int
	logger   *slog.Logger
	tracer   trace.Tracer
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithPollInterval sets the delay between polling ticks. Default: 5s.
func WithPollInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithBatchSize caps how many due tasks one tick claims. Default: 50.
func WithBatchSize(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.batch = n
		}
	}
}

// WithPollerLogger sets the poller's logger.
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPollerTracer sets the OpenTelemetry tracer for poll spans.
func WithPollerTracer(tracer trace.Tracer) PollerOption {
	return func(p *Poller) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// NewPoller creates a poller over the given store and executor.
func NewPoller(store *TaskStore, executor TaskExecutor, opts ...PollerOption) *Poller {
	p := &Poller{
		store:    store,
		executor: executor,
		interval: 5 * time.Second,
		batch:    defaultDueLimit,
		logger:   slog.Default(),
		tracer:   noop.NewTracerProvider().Tracer("loom/schedule"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run ticks until the context is cancelled. The first tick fires
// immediately so due work does not wait a full interval after startup.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick claims and executes one batch of due tasks. Exported so callers can
// drive the poller manually in tests or single-shot modes.
func (p *Poller) Tick(ctx context.Context) {
	ctx, span := p.tracer.Start(ctx, "schedule.poller.tick")
	defer span.End()

	due, err := p.store.FindDueTasks(ctx, p.batch)
	if err != nil {
		p.logger.Error("failed to query due tasks", "error", err)
		return
	}

	span.SetAttributes(attribute.Int("tasks.due", len(due)))

	for _, task := range due {
		p.runTask(ctx, task)
	}
}

func (p *Poller) runTask(ctx context.Context, task ScheduledTask) {
	if err := p.store.MarkRunning(ctx, task.ID); err != nil {
		if types.IsCode(err, types.TASK_ALREADY_CLAIMED) {
			// Another poller claimed it between the query and the claim.
			return
		}
		p.logger.Error("failed to claim task", "task", task.ID.String(), "error", err)
		return
	}

	if err := p.executor(ctx, task); err != nil {
		p.logger.Warn("scheduled task failed",
			"task", task.ID.String(), "handler", task.HandlerName, "error", err)
		if markErr := p.store.MarkCompleted(ctx, task.ID, true); markErr != nil {
			p.logger.Error("failed to record task failure", "task", task.ID.String(), "error", markErr)
		}
		return
	}

	if err := p.store.RescheduleIfRecurring(ctx, task); err != nil {
		p.logger.Error("failed to reschedule task", "task", task.ID.String(), "error", err)
	}
}
