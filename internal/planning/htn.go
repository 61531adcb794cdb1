package planning

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loomlabs/loom/internal/plan"
)

// maxDecompositionDepth is the hard recursion ceiling of planHTN. Cyclic
// method decompositions terminate with no-plan instead of hanging.
const maxDecompositionDepth = 100

// HTNPlanner decomposes goal task networks into ordered operator
// sequences. Planning is greedy and depth-first: the first registered
// method for a compound task is the only one tried, a failed operator
// precondition fails the whole branch, and no backtracking occurs.
type HTNPlanner struct {
	registry *plan.Registry
	failures *FailureMemory
	memory   PlanMemory
	logger   *slog.Logger
}

// HTNPlannerOption configures an HTNPlanner.
type HTNPlannerOption func(*HTNPlanner)

// WithPlanMemory injects a plan cache consulted before decomposition.
func WithPlanMemory(memory PlanMemory) HTNPlannerOption {
	return func(p *HTNPlanner) {
		p.memory = memory
	}
}

// WithFailureMemory injects a shared failure-rate oracle.
func WithFailureMemory(failures *FailureMemory) HTNPlannerOption {
	return func(p *HTNPlanner) {
		if failures != nil {
			p.failures = failures
		}
	}
}

// WithPlannerLogger sets the planner's logger.
func WithPlannerLogger(logger *slog.Logger) HTNPlannerOption {
	return func(p *HTNPlanner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewHTNPlanner creates a planner over the given operator/method registry.
func NewHTNPlanner(registry *plan.Registry, opts ...HTNPlannerOption) *HTNPlanner {
	p := &HTNPlanner{
		registry: registry,
		failures: NewFailureMemory(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FailureMemory returns the planner's failure-rate oracle.
func (p *HTNPlanner) FailureMemory() *FailureMemory {
	return p.failures
}

// FindPlan produces an operator sequence achieving the goal, or (nil, nil)
// when no plan exists. Failing to find a plan is an expected outcome, not
// an error; errors are reserved for collaborator failures.
//
// The plan memory is consulted first: a cached plan for an equivalent goal
// shape is returned verbatim without re-decomposing. Cache errors are
// logged and planning falls through to decomposition.
func (p *HTNPlanner) FindPlan(ctx context.Context, g *plan.Goal) ([]string, error) {
	if g == nil {
		return nil, fmt.Errorf("goal cannot be nil")
	}

	if p.memory != nil {
		steps, ok, err := p.memory.FindSimilar(ctx, g)
		if err != nil {
			p.logger.Warn("plan memory lookup failed, decomposing from scratch",
				"goal", g.ID.String(), "error", err)
		} else if ok {
			p.logger.Debug("plan memory hit", "goal", g.ID.String(), "steps", len(steps))
			return steps, nil
		}
	}

	state := g.InitialState.Clone()
	if state == nil {
		state = plan.NewWorldState()
	}

	steps, ok := p.planHTN(ctx, g.TaskNetwork, state, 0)
	if !ok {
		return nil, nil
	}
	return steps, nil
}

// planHTN recursively decomposes tasks against state. The returned bool
// reports whether a plan exists; an empty task list yields an empty plan.
func (p *HTNPlanner) planHTN(ctx context.Context, tasks []string, state *plan.WorldState, depth int) ([]string, bool) {
	if depth > maxDecompositionDepth {
		p.logger.Warn("decomposition depth ceiling reached, abandoning branch", "depth", depth)
		return nil, false
	}

	if len(tasks) == 0 {
		return []string{}, true
	}

	head, rest := tasks[0], tasks[1:]

	if op, ok := p.registry.Operator(head); ok {
		if !op.Applicable(state) {
			p.logger.Debug("operator precondition failed", "operator", head)
			return nil, false
		}

		tail, ok := p.planHTN(ctx, rest, op.Apply(state), depth)
		if !ok {
			return nil, false
		}
		return append([]string{op.ID}, tail...), true
	}

	if method, ok := p.registry.Method(head); ok {
		if p.failures.ShouldPrune(method.ID) {
			p.logger.Debug("method pruned by failure rate",
				"method", method.ID, "rate", p.failures.FailureRate(method.ID))
			return nil, false
		}

		subtasks, ok := p.DecomposeTask(ctx, head, state)
		if !ok {
			return nil, false
		}

		// Subtasks replace the compound task at the head of the list.
		next := make([]string, 0, len(subtasks)+len(rest))
		next = append(next, subtasks...)
		next = append(next, rest...)
		return p.planHTN(ctx, next, state, depth+1)
	}

	p.logger.Debug("task matches no operator or method", "task", head)
	return nil, false
}

// DecomposeTask expands a compound task into its method's subtasks. The
// returned bool distinguishes "cannot decompose" from "decomposed into
// zero work". Precondition failures feed the failure-rate oracle.
func (p *HTNPlanner) DecomposeTask(ctx context.Context, taskID string, state *plan.WorldState) ([]string, bool) {
	method, ok := p.registry.Method(taskID)
	if !ok {
		return nil, false
	}

	if !method.Applicable(state) {
		p.failures.RecordFailure(method.ID, "precondition failed for task "+taskID)
		return nil, false
	}

	p.failures.RecordSuccess(method.ID)

	subtasks := make([]string, len(method.Subtasks))
	copy(subtasks, method.Subtasks)
	return subtasks, true
}

// ValidatePlan replays steps from a copy of state, checking each
// operator's precondition before applying its effects. Any missing
// operator or failed precondition invalidates the plan. The caller's state
// is never mutated.
func (p *HTNPlanner) ValidatePlan(ctx context.Context, steps []string, state *plan.WorldState) bool {
	current := state.Clone()
	if current == nil {
		current = plan.NewWorldState()
	}

	for _, id := range steps {
		op, ok := p.registry.Operator(id)
		if !ok {
			return false
		}
		if !op.Applicable(current) {
			return false
		}
		current = op.Apply(current)
	}
	return true
}

// ExecutePlan runs each operator's Execute function in order, threading
// the world state through. Execution stops at the first operator error. An
// operator without an Execute function advances the state through its
// planning-time effects instead.
func (p *HTNPlanner) ExecutePlan(ctx context.Context, steps []string, state *plan.WorldState) (*plan.WorldState, error) {
	current := state.Clone()
	if current == nil {
		current = plan.NewWorldState()
	}

	for _, id := range steps {
		op, ok := p.registry.Operator(id)
		if !ok {
			return current, fmt.Errorf("plan references unknown operator %q", id)
		}

		if op.Execute == nil {
			current = op.Apply(current)
			continue
		}

		next, err := op.Execute(ctx, current)
		if err != nil {
			return current, fmt.Errorf("operator %q failed: %w", id, err)
		}
		current = next
	}
	return current, nil
}
