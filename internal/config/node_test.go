// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFromValue(t *testing.T) {
	t.Parallel()

	node := FromValue(map[string]any{
		"b":     []any{1, 2.5, "x", nil, false},
		"a":     map[string]any{"nested": int64(3)},
		"other": struct{}{},
	})

	assert.Equal(t, []string{"a", "b", "other"}, node.Keys())
	expected := object(
		"a", object("nested", NewInt(3)),
		"b", NewArray(NewInt(1), NewFloat(2.5), NewString("x"), NewNull(), NewBool(false)),
		"other", NewString("{}"),
	)
	assert.True(t, expected.Equal(node))
}

func TestNodeSet(t *testing.T) {
	t.Parallel()

	node := NewObject()
	node.Set("first", NewInt(1))
	node.Set("second", nil)
	node.Set("first", NewInt(3))

	assert.Equal(t, []string{"first", "second"}, node.Keys())
	second, ok := node.Get("second")
	require.True(t, ok)
	assert.Equal(t, Null, second.Kind())

	assert.Panics(t, func() { NewArray().Set("key", NewNull()) })
}

func TestNodeAccessors(t *testing.T) {
	t.Parallel()

	var absent *Node
	assert.True(t, absent.IsNull())
	assert.Equal(t, Null, absent.Kind())
	assert.Nil(t, absent.Clone())
	assert.Zero(t, absent.Len())

	_, ok := NewString("1").AsInt()
	assert.False(t, ok)
	value, ok := NewInt(1).AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(1), value)

	assert.True(t, NewFloat(1).IsScalar())
	assert.False(t, NewArray().IsScalar())
	assert.Equal(t, "object", Object.String())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}

func TestNodeEqual(t *testing.T) {
	t.Parallel()

	assert.False(t, object("a", NewInt(1), "b", NewInt(2)).Equal(object("b", NewInt(2), "a", NewInt(1))))
	assert.False(t, NewInt(1).Equal(NewFloat(1)))
	assert.False(t, NewArray(NewInt(1)).Equal(NewArray(NewInt(1), NewInt(2))))
	assert.True(t, NewNull().Equal(NewNull()))
	assert.False(t, NewNull().Equal(nil))
}

func TestNodeMarshalJSON(t *testing.T) {
	t.Parallel()

	tree := object(
		"z", NewFloat(1),
		"a", NewArray(NewInt(-2), NewFloat(0.25), NewBool(true), NewNull(), NewString("q\"uote")),
		"m", NewObject(),
	)

	data, err := tree.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"z":1.0,"a":[-2,0.25,true,null,"q\"uote"],"m":{}}`, string(data))

	_, err = NewFloat(math.Inf(1)).MarshalJSON()
	assert.Error(t, err)
}

func TestNodeMarshalYAML(t *testing.T) {
	t.Parallel()

	tree := object(
		"name", NewString("42"),
		"maxSizeMB", NewInt(10),
		"ratio", NewFloat(2),
		"targets", NewArray(object("type", NewString("console"))),
		"nothing", NewNull(),
	)

	data, err := yaml.Marshal(tree)
	require.NoError(t, err)
	assert.Equal(t, `name: "42"
maxSizeMB: 10
ratio: 2.0
targets:
    - type: console
nothing: null
`, string(data))
}
