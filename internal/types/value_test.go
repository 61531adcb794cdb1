package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueKinds(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		kind ValueKind
	}{
		{name: "zero value is null", v: Value{}, kind: KindNull},
		{name: "explicit null", v: Null(), kind: KindNull},
		{name: "string", v: String("hello"), kind: KindString},
		{name: "number", v: Number(42), kind: KindNumber},
		{name: "bool", v: Bool(true), kind: KindBool},
		{name: "list", v: List(String("a"), Number(1)), kind: KindList},
		{name: "map", v: Map(map[string]Value{"k": Bool(false)}), kind: KindMap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.v.Kind())
		})
	}
}

func TestValueAccessors(t *testing.T) {
	s, ok := String("x").AsString()
	require.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok = String("x").AsNumber()
	assert.False(t, ok)

	n, ok := Number(2.5).AsNumber()
	require.True(t, ok)
	assert.Equal(t, 2.5, n)

	b, ok := Bool(true).AsBool()
	require.True(t, ok)
	assert.True(t, b)

	list, ok := List(Number(1), Number(2)).AsList()
	require.True(t, ok)
	assert.Len(t, list, 2)

	m, ok := Map(map[string]Value{"a": Number(1)}).AsMap()
	require.True(t, ok)
	assert.True(t, m["a"].Equal(Number(1)))
}

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Value
		equal bool
	}{
		{name: "equal strings", a: String("a"), b: String("a"), equal: true},
		{name: "different strings", a: String("a"), b: String("b"), equal: false},
		{name: "different kinds", a: String("1"), b: Number(1), equal: false},
		{name: "equal nulls", a: Null(), b: Value{}, equal: true},
		{
			name:  "equal nested maps",
			a:     Map(map[string]Value{"l": List(Number(1), Bool(true))}),
			b:     Map(map[string]Value{"l": List(Number(1), Bool(true))}),
			equal: true,
		},
		{
			name:  "nested list order matters",
			a:     List(Number(1), Number(2)),
			b:     List(Number(2), Number(1)),
			equal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.Equal(tt.b))
		})
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	original := Map(map[string]Value{
		"name":    String("loom"),
		"count":   Number(3),
		"enabled": Bool(true),
		"tags":    List(String("a"), String("b")),
		"nothing": Null(),
	})

	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Value
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.True(t, original.Equal(decoded))
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{"n": 7, "s": "x", "l": []any{true, nil}})
	require.NoError(t, err)

	m, ok := v.AsMap()
	require.True(t, ok)
	assert.True(t, m["n"].Equal(Number(7)))
	assert.True(t, m["s"].Equal(String("x")))

	list, ok := m["l"].AsList()
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.True(t, list[0].Equal(Bool(true)))
	assert.True(t, list[1].IsNull())

	_, err = FromAny(struct{}{})
	assert.Error(t, err)
}
