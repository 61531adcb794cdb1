package planning

import (
	"context"

	"github.com/loomlabs/loom/internal/plan"
	"github.com/loomlabs/loom/internal/types"
)

// Objective is the raw planning input handed to a strategy: what kind of
// goal to pursue, with what data, and (for HTN strategies) the task network
// and world states to plan against.
type Objective struct {
	Type         string
	Priority     float64
	Data         map[string]types.Value
	TaskNetwork  []string
	InitialState *plan.WorldState
	TargetState  *plan.WorldState
}

// Strategy is the pluggable planning algorithm the goal manager applies.
// Implementations must treat the goal slices they receive as read-only and
// return fresh goals for any change.
type Strategy interface {
	// CreateGoals turns an objective into zero or more new goals.
	CreateGoals(ctx context.Context, obj Objective) ([]*plan.Goal, error)

	// EvaluateGoals attempts planning for every PENDING goal and returns
	// the full set, with planned goals transitioned to IN_PROGRESS and a
	// plan attached. Non-PENDING goals pass through unchanged.
	EvaluateGoals(ctx context.Context, goals []*plan.Goal) ([]*plan.Goal, error)

	// SelectNextGoals returns the goals the caller should execute next.
	SelectNextGoals(ctx context.Context, goals []*plan.Goal) []*plan.Goal

	// HandleGoalUpdate is invoked by the manager after a goal is updated
	// through its update path, giving the strategy a learning hook.
	HandleGoalUpdate(ctx context.Context, g *plan.Goal) error
}

// SequentialStrategy is the degenerate baseline strategy: every objective
// becomes a single PENDING goal with priority 1 and no task network,
// evaluation is a pass-through, and selection picks the highest-priority
// PENDING goal. It validates the strategy interface independent of HTN
// complexity.
type SequentialStrategy struct{}

// NewSequentialStrategy creates the baseline strategy.
func NewSequentialStrategy() *SequentialStrategy {
	return &SequentialStrategy{}
}

// CreateGoals wraps the objective into one PENDING goal with priority 1.
func (s *SequentialStrategy) CreateGoals(ctx context.Context, obj Objective) ([]*plan.Goal, error) {
	goalType := obj.Type
	if goalType == "" {
		goalType = "task"
	}

	g := plan.NewGoal(goalType, 1)
	for k, v := range obj.Data {
		g.Data[k] = v
	}
	return []*plan.Goal{g}, nil
}

// EvaluateGoals passes the goal set through unchanged.
func (s *SequentialStrategy) EvaluateGoals(ctx context.Context, goals []*plan.Goal) ([]*plan.Goal, error) {
	return goals, nil
}

// SelectNextGoals returns the single highest-priority PENDING goal.
func (s *SequentialStrategy) SelectNextGoals(ctx context.Context, goals []*plan.Goal) []*plan.Goal {
	var best *plan.Goal
	for _, g := range goals {
		if g.Status != plan.GoalStatusPending {
			continue
		}
		if best == nil || g.Priority > best.Priority {
			best = g
		}
	}

	if best == nil {
		return nil
	}
	return []*plan.Goal{best}
}

// HandleGoalUpdate is a no-op for the baseline strategy.
func (s *SequentialStrategy) HandleGoalUpdate(ctx context.Context, g *plan.Goal) error {
	return nil
}
