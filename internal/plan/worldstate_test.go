package plan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomlabs/loom/internal/types"
)

func TestWorldStateFacts(t *testing.T) {
	ws := NewWorldState().AddFact("door_open").AddFact("light_on")

	assert.True(t, ws.HasFact("door_open"))
	assert.False(t, ws.HasFact("alarm_armed"))
	assert.Equal(t, []string{"door_open", "light_on"}, ws.Facts())

	ws.RemoveFact("door_open")
	assert.False(t, ws.HasFact("door_open"))
}

func TestWorldStateVariables(t *testing.T) {
	ws := NewWorldState().SetVariable("count", types.Number(3))

	v, ok := ws.Variable("count")
	require.True(t, ok)
	assert.True(t, v.Equal(types.Number(3)))

	_, ok = ws.Variable("missing")
	assert.False(t, ok)
}

func TestWorldStateCloneIsDeep(t *testing.T) {
	original := NewWorldState().AddFact("a").SetVariable("k", types.String("v"))

	clone := original.Clone()
	clone.AddFact("b").SetVariable("k", types.String("changed"))

	assert.False(t, original.HasFact("b"))
	v, _ := original.Variable("k")
	assert.True(t, v.Equal(types.String("v")))

	var nilState *WorldState
	assert.Nil(t, nilState.Clone())
}

func TestWorldStateSatisfies(t *testing.T) {
	state := NewWorldState().
		AddFact("door_open").
		AddFact("light_on").
		SetVariable("floor", types.Number(2))

	tests := []struct {
		name      string
		target    *WorldState
		satisfied bool
	}{
		{name: "nil target", target: nil, satisfied: true},
		{name: "empty target", target: NewWorldState(), satisfied: true},
		{name: "subset of facts", target: NewWorldState().AddFact("door_open"), satisfied: true},
		{name: "missing fact", target: NewWorldState().AddFact("alarm_armed"), satisfied: false},
		{
			name:      "matching variable",
			target:    NewWorldState().SetVariable("floor", types.Number(2)),
			satisfied: true,
		},
		{
			name:      "mismatched variable",
			target:    NewWorldState().SetVariable("floor", types.Number(3)),
			satisfied: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.satisfied, state.Satisfies(tt.target))
		})
	}
}

func TestWorldStateJSONRoundTrip(t *testing.T) {
	original := NewWorldState().
		AddFact("b_fact").
		AddFact("a_fact").
		SetVariable("speed", types.Number(1.5))

	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded WorldState
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	assert.Equal(t, original.Facts(), decoded.Facts())
	v, ok := decoded.Variable("speed")
	require.True(t, ok)
	assert.True(t, v.Equal(types.Number(1.5)))
}
