// Package orchestrator implements the central dispatch engine: a
// name-keyed handler registry, direct dispatch paths for inputs, outputs,
// and actions, and the autonomous-flow work queue that routes processed
// content to suggested handlers and feeds action results back into the
// queue until it drains.
package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/loomlabs/loom/internal/memory"
	"github.com/loomlabs/loom/internal/types"
)

// defaultItemDelay throttles sequential processing of array content so a
// burst of items does not overload downstream dependencies.
const defaultItemDelay = 100 * time.Millisecond

// Orchestrator owns the handler registry and runs the autonomous flow.
// The registry is mutex-guarded; handler and processor registration may
// race with dispatch safely.
type Orchestrator struct {
	mu            sync.RWMutex
	handlers      map[string]IOHandler
	unsubscribers map[string]func()
	processors    []Processor

	rooms     *memory.RoomStore
	logger    *slog.Logger
	tracer    trace.Tracer
	itemDelay time.Duration
	sleep     func(time.Duration)
}

// Option is a functional option for configuring the Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger for orchestrator operations.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the OpenTelemetry tracer for flow spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithRoomStore injects a shared room-memory store.
func WithRoomStore(rooms *memory.RoomStore) Option {
	return func(o *Orchestrator) {
		if rooms != nil {
			o.rooms = rooms
		}
	}
}

// WithItemDelay sets the inter-item throttle applied when processing array
// content. Zero disables the throttle.
func WithItemDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.itemDelay = d
		}
	}
}

// New creates an Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		handlers:      make(map[string]IOHandler),
		unsubscribers: make(map[string]func()),
		rooms:         memory.NewRoomStore(),
		logger:        slog.Default(),
		tracer:        noop.NewTracerProvider().Tracer("loom/orchestrator"),
		itemDelay:     defaultItemDelay,
		sleep:         time.Sleep,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RegisterIOHandler adds a handler to the registry. Registering a
// duplicate name overwrites the previous handler with a warning, detaching
// its subscription if it had one. Input handlers with the Subscriber
// capability are subscribed immediately; arriving data feeds
// RunAutonomousFlow.
func (o *Orchestrator) RegisterIOHandler(h IOHandler) {
	name := h.Name()

	o.mu.Lock()
	if _, exists := o.handlers[name]; exists {
		o.logger.Warn("overwriting registered handler", "handler", name)
		if unsub, ok := o.unsubscribers[name]; ok {
			unsub()
			delete(o.unsubscribers, name)
		}
	}
	o.handlers[name] = h
	o.mu.Unlock()

	if h.Role() != RoleInput {
		return
	}

	sub, ok := h.(Subscriber)
	if !ok {
		return
	}

	unsub := sub.Subscribe(func(data any) {
		if _, err := o.RunAutonomousFlow(context.Background(), data, name); err != nil {
			o.logger.Error("autonomous flow failed for subscribed input",
				"handler", name, "error", err)
		}
	})

	o.mu.Lock()
	o.unsubscribers[name] = unsub
	o.mu.Unlock()
}

// RemoveIOHandler detaches a handler's subscription, if any, and removes
// it from the registry. An in-flight flow holding queued work runs to
// completion; only future dispatch stops.
func (o *Orchestrator) RemoveIOHandler(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if unsub, ok := o.unsubscribers[name]; ok {
		unsub()
		delete(o.unsubscribers, name)
	}
	delete(o.handlers, name)
}

// RegisterProcessor appends a processor. Processors are consulted in
// registration order; the first whose CanHandle matches wins.
func (o *Orchestrator) RegisterProcessor(p Processor) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.processors = append(o.processors, p)
}

// Handler returns the registered handler with the given name.
func (o *Orchestrator) Handler(name string) (IOHandler, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	h, ok := o.handlers[name]
	return h, ok
}

// resolve returns the handler with the given name and role, or the
// matching taxonomy error.
func (o *Orchestrator) resolve(name string, role HandlerRole) (IOHandler, error) {
	h, ok := o.Handler(name)
	if !ok {
		return nil, types.NewError(types.HANDLER_NOT_FOUND, "no handler named "+name)
	}
	if h.Role() != role {
		return nil, types.NewError(types.HANDLER_ROLE_MISMATCH,
			"handler "+name+" has role "+h.Role().String()+", want "+role.String())
	}
	return h, nil
}

// capabilities lists the currently registered output and action handler
// names, sorted for stable processor input.
func (o *Orchestrator) capabilities() Capabilities {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var caps Capabilities
	for name, h := range o.handlers {
		switch h.Role() {
		case RoleOutput:
			caps.AvailableOutputs = append(caps.AvailableOutputs, name)
		case RoleAction:
			caps.AvailableActions = append(caps.AvailableActions, name)
		}
	}
	sort.Strings(caps.AvailableOutputs)
	sort.Strings(caps.AvailableActions)
	return caps
}

// DispatchToInput runs data through the named input handler and feeds the
// result into the autonomous flow. Handler execution errors are logged and
// swallowed, yielding an empty result, so one bad input cannot crash the
// flow loop. Unknown names and role mismatches still fail: those are
// caller bugs, not bad input.
func (o *Orchestrator) DispatchToInput(ctx context.Context, name string, data any) ([]DispatchedOutput, error) {
	h, err := o.resolve(name, RoleInput)
	if err != nil {
		return nil, err
	}

	result, err := h.Execute(ctx, data)
	if err != nil {
		o.logger.Error("input handler failed", "handler", name, "error", err)
		return []DispatchedOutput{}, nil
	}

	if result == nil {
		result = data
	}
	return o.RunAutonomousFlow(ctx, result, name)
}

// DispatchToOutput invokes the named output handler directly. Handler
// errors are logged and rethrown.
func (o *Orchestrator) DispatchToOutput(ctx context.Context, name string, data any) (any, error) {
	h, err := o.resolve(name, RoleOutput)
	if err != nil {
		return nil, err
	}
	return o.executeHandler(ctx, h, data)
}

// DispatchToAction invokes the named action handler directly. Handler
// errors are logged and rethrown.
func (o *Orchestrator) DispatchToAction(ctx context.Context, name string, data any) (any, error) {
	h, err := o.resolve(name, RoleAction)
	if err != nil {
		return nil, err
	}
	return o.executeHandler(ctx, h, data)
}

func (o *Orchestrator) executeHandler(ctx context.Context, h IOHandler, data any) (any, error) {
	result, err := h.Execute(ctx, data)
	if err != nil {
		o.logger.Error("handler execution failed", "handler", h.Name(), "error", err)
		return nil, types.WrapError(types.HANDLER_EXECUTION_FAILED,
			"handler "+h.Name()+" failed", err)
	}
	return result, nil
}
