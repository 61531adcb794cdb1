package plan

import (
	"context"
)

// Evaluator decides whether a world state satisfies a precondition. It must
// not mutate its input.
type Evaluator interface {
	Evaluate(state *WorldState) bool
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(state *WorldState) bool

// Evaluate implements Evaluator.
func (f EvaluatorFunc) Evaluate(state *WorldState) bool {
	return f(state)
}

// Always is an Evaluator that accepts every state.
var Always Evaluator = EvaluatorFunc(func(*WorldState) bool { return true })

// Effector produces the successor world state of a primitive action. It
// must not mutate its input; implementations clone the state and apply the
// change to the clone.
type Effector interface {
	Apply(state *WorldState) *WorldState
}

// EffectorFunc adapts a function to the Effector interface.
type EffectorFunc func(state *WorldState) *WorldState

// Apply implements Effector.
func (f EffectorFunc) Apply(state *WorldState) *WorldState {
	return f(state)
}

// AddFacts returns an Effector that adds the given facts.
func AddFacts(facts ...string) Effector {
	return EffectorFunc(func(state *WorldState) *WorldState {
		next := state.Clone()
		for _, f := range facts {
			next.AddFact(f)
		}
		return next
	})
}

// RemoveFacts returns an Effector that removes the given facts.
func RemoveFacts(facts ...string) Effector {
	return EffectorFunc(func(state *WorldState) *WorldState {
		next := state.Clone()
		for _, f := range facts {
			next.RemoveFact(f)
		}
		return next
	})
}

// ExecuteFunc performs the real-world side effect of an operator and
// returns the resulting world state.
type ExecuteFunc func(ctx context.Context, state *WorldState) (*WorldState, error)

// Operator is a primitive, directly executable task. Precondition and
// Effects are the pure planning-time model of the action; Execute carries
// its side effects at run time.
type Operator struct {
	ID           string
	Name         string
	Precondition Evaluator
	Effects      Effector
	Execute      ExecuteFunc
}

// Applicable reports whether the operator's precondition holds in state. A
// nil precondition is treated as always applicable.
func (o *Operator) Applicable(state *WorldState) bool {
	if o.Precondition == nil {
		return true
	}
	return o.Precondition.Evaluate(state)
}

// Apply returns the successor state of the operator. A nil effector leaves
// the state unchanged (a fresh clone is still returned).
func (o *Operator) Apply(state *WorldState) *WorldState {
	if o.Effects == nil {
		return state.Clone()
	}
	return o.Effects.Apply(state)
}

// Method is a decomposition rule turning one compound task into an ordered
// list of subtasks.
type Method struct {
	ID           string
	Name         string
	Task         string
	Precondition Evaluator
	Subtasks     []string

	// Ordering holds advisory before/after task-id pairs. The decomposition
	// algorithm splices subtasks in declaration order and does not enforce
	// these constraints; they are carried for future use.
	Ordering [][2]string
}

// Applicable reports whether the method's precondition holds in state.
func (m *Method) Applicable(state *WorldState) bool {
	if m.Precondition == nil {
		return true
	}
	return m.Precondition.Evaluate(state)
}
