package planning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomlabs/loom/internal/plan"
)

func TestGoalKey(t *testing.T) {
	a := plan.NewGoal("htn", 1)
	a.TaskNetwork = []string{"patrol", "report"}
	a.TargetState = plan.NewWorldState().AddFact("zone_b_clear").AddFact("zone_a_clear")

	b := plan.NewGoal("htn", 7)
	b.TaskNetwork = []string{"patrol", "report"}
	b.TargetState = plan.NewWorldState().AddFact("zone_a_clear").AddFact("zone_b_clear")

	// Same shape, different ids and priorities: same key.
	assert.Equal(t, GoalKey(a), GoalKey(b))

	c := plan.NewGoal("htn", 1)
	c.TaskNetwork = []string{"report", "patrol"}
	c.TargetState = a.TargetState.Clone()
	assert.NotEqual(t, GoalKey(a), GoalKey(c), "task network order is part of the shape")

	d := plan.NewGoal("other", 1)
	d.TaskNetwork = a.TaskNetwork
	assert.NotEqual(t, GoalKey(a), GoalKey(d))
}

func TestMemoryPlanCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryPlanCache()

	g := plan.NewGoal("htn", 1)
	g.TaskNetwork = []string{"patrol"}

	_, ok, err := cache.FindSimilar(ctx, g)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Record(ctx, g, []string{"walk", "scan"}, true))

	steps, ok, err := cache.FindSimilar(ctx, g)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"walk", "scan"}, steps)

	// An equivalent goal hits the same entry.
	twin := plan.NewGoal("htn", 9)
	twin.TaskNetwork = []string{"patrol"}
	steps, ok, err = cache.FindSimilar(ctx, twin)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"walk", "scan"}, steps)
}

func TestMemoryPlanCacheFailureEvicts(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryPlanCache()

	g := plan.NewGoal("htn", 1)
	g.TaskNetwork = []string{"patrol"}

	require.NoError(t, cache.Record(ctx, g, []string{"walk"}, true))
	require.NoError(t, cache.Record(ctx, g, []string{"walk"}, false))

	_, ok, err := cache.FindSimilar(ctx, g)
	require.NoError(t, err)
	assert.False(t, ok, "a failed outcome evicts the cached plan")
}

func TestMemoryPlanCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryPlanCache()

	g := plan.NewGoal("htn", 1)
	g.TaskNetwork = []string{"patrol"}

	recorded := []string{"walk"}
	require.NoError(t, cache.Record(ctx, g, recorded, true))
	recorded[0] = "mutated"

	steps, ok, err := cache.FindSimilar(ctx, g)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"walk"}, steps)

	steps[0] = "mutated again"
	steps, _, err = cache.FindSimilar(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, []string{"walk"}, steps)
}
