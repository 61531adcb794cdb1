// Package plan holds the goal and task-network data model shared by the
// planning strategies and the goal manager: hierarchical goals with status
// and priority, world states, and the operator/method registry that HTN
// decomposition runs against.
package plan

import (
	"time"

	"github.com/loomlabs/loom/internal/types"
)

// GoalStatus represents the lifecycle state of a goal.
type GoalStatus string

const (
	// GoalStatusPending indicates the goal has not been planned yet.
	GoalStatusPending GoalStatus = "PENDING"

	// GoalStatusInProgress indicates a plan is attached and execution may
	// proceed.
	GoalStatusInProgress GoalStatus = "IN_PROGRESS"

	// GoalStatusCompleted indicates execution reported success.
	GoalStatusCompleted GoalStatus = "COMPLETED"

	// GoalStatusFailed indicates execution reported failure.
	GoalStatusFailed GoalStatus = "FAILED"

	// GoalStatusBlocked indicates unmet dependencies hold the goal back.
	GoalStatusBlocked GoalStatus = "BLOCKED"
)

// String returns the string representation of the goal status.
func (s GoalStatus) String() string {
	return string(s)
}

// IsValid checks if the GoalStatus is a known value.
func (s GoalStatus) IsValid() bool {
	switch s {
	case GoalStatusPending, GoalStatusInProgress, GoalStatusCompleted,
		GoalStatusFailed, GoalStatusBlocked:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for statuses no further transition leaves.
func (s GoalStatus) IsTerminal() bool {
	return s == GoalStatusCompleted || s == GoalStatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal
// transition. PENDING goals may start, block, or unblock; IN_PROGRESS goals
// may only terminate. Self-transitions are allowed so merges that do not
// change status pass validation.
func (s GoalStatus) CanTransitionTo(next GoalStatus) bool {
	if s == next {
		return true
	}

	switch s {
	case GoalStatusPending:
		return next == GoalStatusInProgress || next == GoalStatusBlocked
	case GoalStatusBlocked:
		return next == GoalStatusPending
	case GoalStatusInProgress:
		return next == GoalStatusCompleted || next == GoalStatusFailed
	default:
		return false
	}
}

// Goal is a unit of intended outcome. Goals form a hierarchy through
// ParentID and Subgoals; HTN goals additionally carry an initial and target
// world state plus the task network to decompose. Goals are owned by the
// goal manager and must only be mutated through its update path.
type Goal struct {
	ID        types.ID               `json:"id"`
	ParentID  types.ID               `json:"parent_id,omitempty"`
	Type      string                 `json:"type"`
	Status    GoalStatus             `json:"status"`
	Priority  float64                `json:"priority"`
	Data      map[string]types.Value `json:"data,omitempty"`
	Subgoals  []*Goal                `json:"subgoals,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`

	// InitialState is the planning-time starting state. Nil for goals that
	// are not HTN-planned.
	InitialState *WorldState `json:"initial_state,omitempty"`

	// TargetState is the partial world state the goal aims for.
	TargetState *WorldState `json:"target_state,omitempty"`

	// TaskNetwork lists the task ids to decompose when planning.
	TaskNetwork []string `json:"task_network,omitempty"`

	// Plan is the ordered operator id sequence attached once planning
	// succeeds. Nil means no plan has been found yet.
	Plan []string `json:"plan,omitempty"`
}

// NewGoal creates a PENDING goal of the given type and priority with a
// fresh id and timestamps.
func NewGoal(goalType string, priority float64) *Goal {
	now := time.Now().UTC()
	return &Goal{
		ID:        types.NewID(),
		Type:      goalType,
		Status:    GoalStatusPending,
		Priority:  priority,
		Data:      make(map[string]types.Value),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the goal. World states and subgoals are
// copied so callers can mutate the result without aliasing manager state.
func (g *Goal) Clone() *Goal {
	if g == nil {
		return nil
	}

	out := *g

	if g.Data != nil {
		out.Data = make(map[string]types.Value, len(g.Data))
		for k, v := range g.Data {
			out.Data[k] = v
		}
	}

	if g.Subgoals != nil {
		out.Subgoals = make([]*Goal, len(g.Subgoals))
		for i, sub := range g.Subgoals {
			out.Subgoals[i] = sub.Clone()
		}
	}

	out.InitialState = g.InitialState.Clone()
	out.TargetState = g.TargetState.Clone()

	if g.TaskNetwork != nil {
		out.TaskNetwork = append([]string(nil), g.TaskNetwork...)
	}
	if g.Plan != nil {
		out.Plan = append([]string(nil), g.Plan...)
	}

	return &out
}

// HasPlan reports whether a plan is attached.
func (g *Goal) HasPlan() bool {
	return len(g.Plan) > 0
}
