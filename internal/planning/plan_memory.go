package planning

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/loomlabs/loom/internal/plan"
)

// PlanMemory caches previously successful plans so recurring goal shapes
// skip decomposition entirely. The similarity metric behind FindSimilar is
// a capability of the implementation, not of the planner; the bundled
// implementations use an exact goal-shape key, while vector-similarity
// variants can be injected by callers.
type PlanMemory interface {
	// FindSimilar returns a cached plan for a goal equivalent to g,
	// reporting false when no sufficiently similar plan is known.
	FindSimilar(ctx context.Context, g *plan.Goal) ([]string, bool, error)

	// Record stores the outcome of executing steps for g. Implementations
	// typically retain successful plans only.
	Record(ctx context.Context, g *plan.Goal, steps []string, success bool) error
}

// GoalKey derives the shape key under which plans are cached: the goal
// type, its task network in declaration order, and its target facts in
// sorted order. Two goals with the same key are planning-equivalent.
func GoalKey(g *plan.Goal) string {
	var sb strings.Builder
	sb.WriteString(g.Type)
	sb.WriteString("|")
	sb.WriteString(strings.Join(g.TaskNetwork, ","))
	sb.WriteString("|")

	if g.TargetState != nil {
		facts := g.TargetState.Facts()
		sort.Strings(facts)
		sb.WriteString(strings.Join(facts, ","))
	}
	return sb.String()
}

// MemoryPlanCache is the in-process PlanMemory. Safe for concurrent use.
type MemoryPlanCache struct {
	mu    sync.RWMutex
	plans map[string][]string
}

// NewMemoryPlanCache creates an empty in-process plan cache.
func NewMemoryPlanCache() *MemoryPlanCache {
	return &MemoryPlanCache{
		plans: make(map[string][]string),
	}
}

// FindSimilar looks up a cached plan by exact goal-shape key.
func (c *MemoryPlanCache) FindSimilar(ctx context.Context, g *plan.Goal) ([]string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	steps, ok := c.plans[GoalKey(g)]
	if !ok {
		return nil, false, nil
	}

	out := make([]string, len(steps))
	copy(out, steps)
	return out, true, nil
}

// Record stores successful plans; failed outcomes evict any cached plan for
// the goal shape so a stale plan is not replayed after the world changed.
func (c *MemoryPlanCache) Record(ctx context.Context, g *plan.Goal, steps []string, success bool) error {
	key := GoalKey(g)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !success {
		delete(c.plans, key)
		return nil
	}

	stored := make([]string, len(steps))
	copy(stored, steps)
	c.plans[key] = stored
	return nil
}
