package planning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomlabs/loom/internal/plan"
	"github.com/loomlabs/loom/internal/types"
)

func TestSequentialStrategyCreateGoals(t *testing.T) {
	ctx := context.Background()
	s := NewSequentialStrategy()

	goals, err := s.CreateGoals(ctx, Objective{
		Type: "cleanup",
		Data: map[string]types.Value{"target": types.String("cache")},
	})
	require.NoError(t, err)
	require.Len(t, goals, 1)

	g := goals[0]
	assert.Equal(t, "cleanup", g.Type)
	assert.Equal(t, plan.GoalStatusPending, g.Status)
	assert.Equal(t, float64(1), g.Priority)
	assert.True(t, g.Data["target"].Equal(types.String("cache")))

	// Empty type falls back to "task".
	goals, err = s.CreateGoals(ctx, Objective{})
	require.NoError(t, err)
	assert.Equal(t, "task", goals[0].Type)
}

func TestSequentialStrategySelectNextGoals(t *testing.T) {
	ctx := context.Background()
	s := NewSequentialStrategy()

	low := plan.NewGoal("a", 1)
	high := plan.NewGoal("b", 5)
	done := plan.NewGoal("c", 9)
	done.Status = plan.GoalStatusCompleted

	selected := s.SelectNextGoals(ctx, []*plan.Goal{low, high, done})
	require.Len(t, selected, 1)
	assert.Same(t, high, selected[0])

	assert.Nil(t, s.SelectNextGoals(ctx, []*plan.Goal{done}))
	assert.Nil(t, s.SelectNextGoals(ctx, nil))
}

func TestHTNStrategyCreateGoals(t *testing.T) {
	ctx := context.Background()
	s := NewHTNStrategy(NewHTNPlanner(patrolRegistry(t)), nil)

	initial := plan.NewWorldState().AddFact("at_base")
	target := plan.NewWorldState().AddFact("report_filed")

	goals, err := s.CreateGoals(ctx, Objective{
		Priority:     3,
		TaskNetwork:  []string{"patrol"},
		InitialState: initial,
		TargetState:  target,
	})
	require.NoError(t, err)
	require.Len(t, goals, 1)

	g := goals[0]
	assert.Equal(t, "htn", g.Type)
	assert.Equal(t, float64(3), g.Priority)
	assert.Equal(t, []string{"patrol"}, g.TaskNetwork)
	assert.True(t, g.InitialState.HasFact("at_base"))

	// The goal owns copies of the objective's states.
	initial.AddFact("mutated")
	assert.False(t, g.InitialState.HasFact("mutated"))
}

func TestHTNStrategyEvaluateGoals(t *testing.T) {
	ctx := context.Background()
	s := NewHTNStrategy(NewHTNPlanner(patrolRegistry(t)), nil)

	plannable := htnGoal("patrol")
	unplannable := htnGoal("teleport")
	completed := htnGoal("patrol")
	completed.Status = plan.GoalStatusCompleted

	out, err := s.EvaluateGoals(ctx, []*plan.Goal{plannable, unplannable, completed})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, plan.GoalStatusInProgress, out[0].Status)
	assert.Equal(t, []string{"walk_to_zone", "scan_zone", "report"}, out[0].Plan)
	assert.Equal(t, plan.GoalStatusPending, plannable.Status, "input goal is not mutated")

	assert.Equal(t, plan.GoalStatusPending, out[1].Status, "unplannable goal stays pending")
	assert.False(t, out[1].HasPlan())

	assert.Same(t, completed, out[2], "non-pending goals pass through unchanged")
}

func TestHTNStrategySelectNextGoals(t *testing.T) {
	ctx := context.Background()
	s := NewHTNStrategy(NewHTNPlanner(patrolRegistry(t)), nil)

	planless := htnGoal("patrol")
	planless.Status = plan.GoalStatusInProgress

	low := htnGoal("patrol")
	low.Status = plan.GoalStatusInProgress
	low.Plan = []string{"walk_to_zone"}
	low.Priority = 1

	high := htnGoal("patrol")
	high.Status = plan.GoalStatusInProgress
	high.Plan = []string{"walk_to_zone"}
	high.Priority = 5

	selected := s.SelectNextGoals(ctx, []*plan.Goal{planless, low, high})
	require.Len(t, selected, 1, "one goal executes at a time")
	assert.Same(t, high, selected[0])

	assert.Nil(t, s.SelectNextGoals(ctx, []*plan.Goal{planless}))
}

func TestHTNStrategyHandleGoalUpdateRecordsCompletedPlans(t *testing.T) {
	ctx := context.Background()
	memory := NewMemoryPlanCache()
	s := NewHTNStrategy(NewHTNPlanner(patrolRegistry(t), WithPlanMemory(memory)), memory)

	g := htnGoal("patrol")
	g.Plan = []string{"walk_to_zone", "scan_zone", "report"}
	g.Status = plan.GoalStatusCompleted

	require.NoError(t, s.HandleGoalUpdate(ctx, g))

	steps, ok, err := memory.FindSimilar(ctx, g)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, g.Plan, steps)

	// Failed or planless goals leave the memory untouched.
	failed := htnGoal("other")
	failed.Status = plan.GoalStatusFailed
	failed.Plan = []string{"x"}
	require.NoError(t, s.HandleGoalUpdate(ctx, failed))
	_, ok, err = memory.FindSimilar(ctx, failed)
	require.NoError(t, err)
	assert.False(t, ok)
}
