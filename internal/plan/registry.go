package plan

import (
	"fmt"
	"log/slog"
	"sync"
)

// Registry holds the operator and method tables the planner decomposes
// against. Operators are keyed by their id, methods by the compound task id
// they decompose. One method per task id: registering a second method for
// the same task overwrites the first with a warning, keeping the planner's
// no-alternative-search behavior explicit.
type Registry struct {
	mu        sync.RWMutex
	operators map[string]*Operator
	methods   map[string]*Method
	logger    *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger falls back to
// slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		operators: make(map[string]*Operator),
		methods:   make(map[string]*Method),
		logger:    logger,
	}
}

// RegisterOperator adds an operator to the registry. Last write wins on
// duplicate ids.
func (r *Registry) RegisterOperator(op *Operator) error {
	if op == nil || op.ID == "" {
		return fmt.Errorf("operator must have an id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.operators[op.ID]; exists {
		r.logger.Warn("overwriting registered operator", "operator", op.ID)
	}
	r.operators[op.ID] = op
	return nil
}

// RegisterMethod adds a decomposition method keyed by its compound task id.
// Last write wins on duplicate task ids.
func (r *Registry) RegisterMethod(m *Method) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("method must have an id")
	}
	if m.Task == "" {
		return fmt.Errorf("method %s must name a compound task", m.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.methods[m.Task]; exists {
		r.logger.Warn("overwriting method for compound task",
			"task", m.Task, "old_method", existing.ID, "new_method", m.ID)
	}
	r.methods[m.Task] = m
	return nil
}

// Operator returns the operator whose id matches taskID.
func (r *Registry) Operator(taskID string) (*Operator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, ok := r.operators[taskID]
	return op, ok
}

// Method returns the method decomposing the compound task taskID.
func (r *Registry) Method(taskID string) (*Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.methods[taskID]
	return m, ok
}

// OperatorIDs returns the registered operator ids in no particular order.
func (r *Registry) OperatorIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.operators))
	for id := range r.operators {
		out = append(out, id)
	}
	return out
}

// MethodTasks returns the compound task ids with a registered method.
func (r *Registry) MethodTasks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.methods))
	for task := range r.methods {
		out = append(out, task)
	}
	return out
}
