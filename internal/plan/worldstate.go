package plan

import (
	"encoding/json"
	"sort"

	"github.com/loomlabs/loom/internal/types"
)

// WorldState is the planner's belief state: a set of boolean facts plus
// named variables. World states are copied, never aliased, when they cross
// precondition or effect evaluation so a half-applied effect can never
// corrupt a sibling branch.
type WorldState struct {
	facts map[string]struct{}
	vars  map[string]types.Value
}

// NewWorldState creates an empty world state.
func NewWorldState() *WorldState {
	return &WorldState{
		facts: make(map[string]struct{}),
		vars:  make(map[string]types.Value),
	}
}

// Clone returns a deep copy. Cloning a nil state returns nil.
func (w *WorldState) Clone() *WorldState {
	if w == nil {
		return nil
	}

	out := NewWorldState()
	for f := range w.facts {
		out.facts[f] = struct{}{}
	}
	for k, v := range w.vars {
		out.vars[k] = v
	}
	return out
}

// AddFact records a fact and returns the state for chaining.
func (w *WorldState) AddFact(fact string) *WorldState {
	w.facts[fact] = struct{}{}
	return w
}

// RemoveFact deletes a fact.
func (w *WorldState) RemoveFact(fact string) *WorldState {
	delete(w.facts, fact)
	return w
}

// HasFact reports whether the fact is present.
func (w *WorldState) HasFact(fact string) bool {
	if w == nil {
		return false
	}
	_, ok := w.facts[fact]
	return ok
}

// Facts returns the facts in sorted order.
func (w *WorldState) Facts() []string {
	out := make([]string, 0, len(w.facts))
	for f := range w.facts {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// SetVariable stores a named variable and returns the state for chaining.
func (w *WorldState) SetVariable(name string, value types.Value) *WorldState {
	w.vars[name] = value
	return w
}

// Variable returns a named variable, reporting false if unset.
func (w *WorldState) Variable(name string) (types.Value, bool) {
	if w == nil {
		return types.Null(), false
	}
	v, ok := w.vars[name]
	return v, ok
}

// Variables returns a copy of the variable map.
func (w *WorldState) Variables() map[string]types.Value {
	out := make(map[string]types.Value, len(w.vars))
	for k, v := range w.vars {
		out[k] = v
	}
	return out
}

// Satisfies reports whether this state meets a partial target state: every
// target fact is present and every target variable matches. A nil target is
// trivially satisfied.
func (w *WorldState) Satisfies(target *WorldState) bool {
	if target == nil {
		return true
	}
	if w == nil {
		return len(target.facts) == 0 && len(target.vars) == 0
	}

	for f := range target.facts {
		if !w.HasFact(f) {
			return false
		}
	}
	for k, want := range target.vars {
		got, ok := w.vars[k]
		if !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}

// worldStateJSON is the wire form of a WorldState.
type worldStateJSON struct {
	Facts     []string               `json:"facts"`
	Variables map[string]types.Value `json:"variables"`
}

// MarshalJSON implements json.Marshaler with sorted facts for stable output.
func (w *WorldState) MarshalJSON() ([]byte, error) {
	return json.Marshal(worldStateJSON{
		Facts:     w.Facts(),
		Variables: w.Variables(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (w *WorldState) UnmarshalJSON(data []byte) error {
	var wire worldStateJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	w.facts = make(map[string]struct{}, len(wire.Facts))
	for _, f := range wire.Facts {
		w.facts[f] = struct{}{}
	}

	w.vars = make(map[string]types.Value, len(wire.Variables))
	for k, v := range wire.Variables {
		w.vars[k] = v
	}
	return nil
}
