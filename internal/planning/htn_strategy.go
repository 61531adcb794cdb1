package planning

import (
	"context"
	"log/slog"
	"sort"

	"github.com/loomlabs/loom/internal/plan"
)

// HTNStrategy plans goals by HTN decomposition of their task networks.
// Completed goals feed their plans back into the plan memory, closing the
// learning loop that makes recurring goal shapes cheap to re-plan.
type HTNStrategy struct {
	planner *HTNPlanner
	memory  PlanMemory
	logger  *slog.Logger
}

// HTNStrategyOption configures an HTNStrategy.
type HTNStrategyOption func(*HTNStrategy)

// WithStrategyLogger sets the strategy's logger.
func WithStrategyLogger(logger *slog.Logger) HTNStrategyOption {
	return func(s *HTNStrategy) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHTNStrategy creates an HTN strategy over the given planner. The
// memory, when non-nil, should be the same PlanMemory the planner consults
// so HandleGoalUpdate hits populate FindPlan lookups.
func NewHTNStrategy(planner *HTNPlanner, memory PlanMemory, opts ...HTNStrategyOption) *HTNStrategy {
	s := &HTNStrategy{
		planner: planner,
		memory:  memory,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateGoals turns an objective into one PENDING HTN goal carrying the
// objective's task network and world states.
func (s *HTNStrategy) CreateGoals(ctx context.Context, obj Objective) ([]*plan.Goal, error) {
	goalType := obj.Type
	if goalType == "" {
		goalType = "htn"
	}

	priority := obj.Priority
	if priority == 0 {
		priority = 1
	}

	g := plan.NewGoal(goalType, priority)
	for k, v := range obj.Data {
		g.Data[k] = v
	}
	g.TaskNetwork = append([]string(nil), obj.TaskNetwork...)
	g.InitialState = obj.InitialState.Clone()
	g.TargetState = obj.TargetState.Clone()

	return []*plan.Goal{g}, nil
}

// EvaluateGoals attempts FindPlan for every PENDING goal. On success the
// returned copy carries the plan and status IN_PROGRESS; goals that cannot
// be planned stay PENDING for the next cycle. Non-PENDING goals pass
// through unchanged.
func (s *HTNStrategy) EvaluateGoals(ctx context.Context, goals []*plan.Goal) ([]*plan.Goal, error) {
	out := make([]*plan.Goal, 0, len(goals))

	for _, g := range goals {
		if g.Status != plan.GoalStatusPending {
			out = append(out, g)
			continue
		}

		steps, err := s.planner.FindPlan(ctx, g)
		if err != nil {
			s.logger.Warn("planning failed", "goal", g.ID.String(), "error", err)
			out = append(out, g)
			continue
		}

		if steps == nil {
			s.logger.Debug("no plan found", "goal", g.ID.String())
			out = append(out, g)
			continue
		}

		planned := g.Clone()
		planned.Plan = steps
		planned.Status = plan.GoalStatusInProgress
		out = append(out, planned)
	}

	return out, nil
}

// SelectNextGoals filters to IN_PROGRESS goals carrying a plan, orders by
// descending priority, and returns only the single highest-priority goal.
// Executing one goal at a time is the strategy's policy; concurrency is the
// caller's choice, not the strategy's.
func (s *HTNStrategy) SelectNextGoals(ctx context.Context, goals []*plan.Goal) []*plan.Goal {
	candidates := make([]*plan.Goal, 0, len(goals))
	for _, g := range goals {
		if g.Status == plan.GoalStatusInProgress && g.HasPlan() {
			candidates = append(candidates, g)
		}
	}

	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})
	return candidates[:1]
}

// HandleGoalUpdate persists the plan of a COMPLETED goal into plan memory
// for future FindPlan cache hits.
func (s *HTNStrategy) HandleGoalUpdate(ctx context.Context, g *plan.Goal) error {
	if s.memory == nil {
		return nil
	}
	if g.Status != plan.GoalStatusCompleted || !g.HasPlan() {
		return nil
	}

	if err := s.memory.Record(ctx, g, g.Plan, true); err != nil {
		s.logger.Warn("failed to record plan in memory", "goal", g.ID.String(), "error", err)
		return err
	}
	return nil
}
