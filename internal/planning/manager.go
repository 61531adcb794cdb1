package planning

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/loomlabs/loom/internal/plan"
	"github.com/loomlabs/loom/internal/storage"
	"github.com/loomlabs/loom/internal/types"
)

// goalsKind is the storage repository kind holding persisted goal sets.
const goalsKind = "goals"

// Manager owns the authoritative goal set for one session. All mutation
// funnels through AddGoals and UpdateGoals, which persist the entire goal
// set as one unit keyed by the session id; UpdateGoals additionally runs
// the strategy's HandleGoalUpdate hook per goal so learning side effects
// happen exactly once per explicit update. The goal map is mutex-guarded;
// callers receive clones, never aliases.
type Manager struct {
	mu        sync.Mutex
	goals     map[types.ID]*plan.Goal
	order     []types.ID
	strategy  Strategy
	repo      storage.Repository
	sessionID string
	logger    *slog.Logger
	clock     func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the manager's logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerClock overrides the manager's time source.
func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewManager creates a goal manager persisting through store under the
// given session id.
func NewManager(strategy Strategy, store storage.Storage, sessionID string, opts ...ManagerOption) *Manager {
	m := &Manager{
		goals:     make(map[types.ID]*plan.Goal),
		strategy:  strategy,
		repo:      store.GetRepository(goalsKind),
		sessionID: sessionID,
		logger:    slog.Default(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load restores the persisted goal set for the session, replacing any
// in-memory goals. Missing persisted state is not an error.
func (m *Manager) Load(ctx context.Context) error {
	doc, err := m.repo.FindOne(ctx, storage.Eq("id", m.sessionID))
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	encoded, _ := doc["goals"].(string)
	var restored []*plan.Goal
	if encoded != "" {
		if err := json.Unmarshal([]byte(encoded), &restored); err != nil {
			return types.WrapError(types.STORAGE_QUERY_FAILED, "failed to decode persisted goals", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.goals = make(map[types.ID]*plan.Goal, len(restored))
	m.order = m.order[:0]
	for _, g := range restored {
		m.goals[g.ID] = g
		m.order = append(m.order, g.ID)
	}
	return nil
}

// AddGoals registers new goals and persists the full goal set. Goals
// without an id or status are given one. Adding never runs strategy hooks.
func (m *Manager) AddGoals(ctx context.Context, goals ...*plan.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, g := range goals {
		if g == nil {
			continue
		}

		stored := g.Clone()
		if stored.ID.IsZero() {
			stored.ID = types.NewID()
		}
		if stored.Status == "" {
			stored.Status = plan.GoalStatusPending
		}
		now := m.clock().UTC()
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		if stored.UpdatedAt.IsZero() {
			stored.UpdatedAt = now
		}

		if _, exists := m.goals[stored.ID]; !exists {
			m.order = append(m.order, stored.ID)
		}
		m.goals[stored.ID] = stored
	}

	return m.persistLocked(ctx)
}

// UpdateGoals merges each incoming goal onto the existing one (shallow
// field overwrite), refreshes UpdatedAt monotonically, persists the full
// goal set, then invokes the strategy's HandleGoalUpdate hook per goal.
// Illegal status transitions reject the whole batch before anything is
// persisted.
func (m *Manager) UpdateGoals(ctx context.Context, goals ...*plan.Goal) error {
	m.mu.Lock()

	updated := make([]*plan.Goal, 0, len(goals))
	for _, g := range goals {
		if g == nil {
			continue
		}

		existing, ok := m.goals[g.ID]
		if !ok {
			m.mu.Unlock()
			return types.NewError(types.GOAL_NOT_FOUND, "no goal with id "+g.ID.String())
		}

		if g.Status != "" && g.Status != existing.Status && !existing.Status.CanTransitionTo(g.Status) {
			m.mu.Unlock()
			return types.NewError(types.GOAL_INVALID_TRANSITION,
				"goal "+g.ID.String()+" cannot move "+existing.Status.String()+" -> "+g.Status.String())
		}
	}

	for _, g := range goals {
		if g == nil {
			continue
		}
		existing := m.goals[g.ID]
		mergeGoal(existing, g, m.clock().UTC())
		updated = append(updated, existing.Clone())
	}

	if err := m.persistLocked(ctx); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	// Hooks run outside the lock so a strategy may call back into the
	// manager.
	for _, g := range updated {
		if err := m.strategy.HandleGoalUpdate(ctx, g); err != nil {
			m.logger.Warn("goal update hook failed", "goal", g.ID.String(), "error", err)
		}
	}
	return nil
}

// GetGoal returns a clone of the goal with the given id.
func (m *Manager) GetGoal(id types.ID) (*plan.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[id]
	if !ok {
		return nil, types.NewError(types.GOAL_NOT_FOUND, "no goal with id "+id.String())
	}
	return g.Clone(), nil
}

// Goals returns clones of all goals in insertion order.
func (m *Manager) Goals() []*plan.Goal {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*plan.Goal, 0, len(m.order))
	for _, id := range m.order {
		if g, ok := m.goals[id]; ok {
			out = append(out, g.Clone())
		}
	}
	return out
}

// ProcessInput runs one planning cycle: create goals from the objective,
// persist them, reload the persisted set, re-evaluate every goal through
// the strategy, and persist the results. Full re-evaluation each cycle is
// intentional; goal sets are expected to stay small.
func (m *Manager) ProcessInput(ctx context.Context, obj Objective) error {
	created, err := m.strategy.CreateGoals(ctx, obj)
	if err != nil {
		return err
	}

	if err := m.AddGoals(ctx, created...); err != nil {
		return err
	}

	if err := m.Load(ctx); err != nil {
		return err
	}

	evaluated, err := m.strategy.EvaluateGoals(ctx, m.Goals())
	if err != nil {
		return err
	}

	return m.UpdateGoals(ctx, evaluated...)
}

// NextGoals returns the goals the strategy selects for execution next.
func (m *Manager) NextGoals(ctx context.Context) []*plan.Goal {
	return m.strategy.SelectNextGoals(ctx, m.Goals())
}

// persistLocked rewrites the whole goal set for the session as one
// document. Callers must hold m.mu.
func (m *Manager) persistLocked(ctx context.Context) error {
	all := make([]*plan.Goal, 0, len(m.order))
	for _, id := range m.order {
		if g, ok := m.goals[id]; ok {
			all = append(all, g)
		}
	}

	encoded, err := json.Marshal(all)
	if err != nil {
		return types.WrapError(types.STORAGE_UPDATE_FAILED, "failed to encode goal set", err)
	}

	set := storage.Document{
		"session_id": m.sessionID,
		"goals":      string(encoded),
		"updated_at": m.clock().UTC().Format(time.RFC3339Nano),
	}

	existing, err := m.repo.FindOne(ctx, storage.Eq("id", m.sessionID))
	if err != nil {
		return err
	}

	if existing == nil {
		doc := storage.Document{"id": m.sessionID}
		for k, v := range set {
			doc[k] = v
		}
		_, err = m.repo.Insert(ctx, doc)
		return err
	}
	return m.repo.Update(ctx, existing.ID(), set, nil)
}

// mergeGoal shallowly overwrites dst's fields with src's non-zero fields
// and advances UpdatedAt monotonically even under a coarse or frozen
// clock.
func mergeGoal(dst, src *plan.Goal, now time.Time) {
	if src.Type != "" {
		dst.Type = src.Type
	}
	if !src.ParentID.IsZero() {
		dst.ParentID = src.ParentID
	}
	if src.Status != "" {
		dst.Status = src.Status
	}
	if src.Priority != 0 {
		dst.Priority = src.Priority
	}
	if src.Data != nil {
		dst.Data = make(map[string]types.Value, len(src.Data))
		for k, v := range src.Data {
			dst.Data[k] = v
		}
	}
	if src.Subgoals != nil {
		dst.Subgoals = make([]*plan.Goal, len(src.Subgoals))
		for i, sub := range src.Subgoals {
			dst.Subgoals[i] = sub.Clone()
		}
	}
	if src.InitialState != nil {
		dst.InitialState = src.InitialState.Clone()
	}
	if src.TargetState != nil {
		dst.TargetState = src.TargetState.Clone()
	}
	if src.TaskNetwork != nil {
		dst.TaskNetwork = append([]string(nil), src.TaskNetwork...)
	}
	if src.Plan != nil {
		dst.Plan = append([]string(nil), src.Plan...)
	}

	if now.After(dst.UpdatedAt) {
		dst.UpdatedAt = now
	} else {
		dst.UpdatedAt = dst.UpdatedAt.Add(time.Nanosecond)
	}
}
