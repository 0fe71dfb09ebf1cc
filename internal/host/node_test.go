package host

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeBuiltins(t *testing.T) {
	n := NewNode(1, "Npc")

	v, err := n.Call("set", NewList(Text("hp"), Int(10)))
	require.NoError(t, err)
	assert.Equal(t, Int(10), v)

	v, err = n.Call("add", NewList(Text("hp"), Int(5)))
	require.NoError(t, err)
	assert.Equal(t, Int(15), v)

	v, err = n.Call("add", NewList(Text("speed"), Float(0.5)))
	require.NoError(t, err)
	assert.Equal(t, Float(0.5), v)

	v, err = n.Call("has", NewList(Text("hp")))
	require.NoError(t, err)
	assert.Equal(t, Bool(true), v)

	v, err = n.Call("get", NewList(Text("mana")))
	require.NoError(t, err)
	assert.Equal(t, Nil{}, v)

	assert.Equal(t, []string{"hp", "speed"}, n.PropNames())
}

func TestNodeInstalledMethodWins(t *testing.T) {
	n := NewNode(1, "Npc")
	n.Handle("get", func(*Node, List) (Value, error) { return Text("custom"), nil })

	v, err := n.Call("get", NewList(Text("hp")))
	require.NoError(t, err)
	assert.Equal(t, Text("custom"), v)
}

func TestNodeErrors(t *testing.T) {
	n := NewNode(3, "Chest")

	_, err := n.Call("open", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoMethod))
	assert.Contains(t, err.Error(), "Chest.open")

	_, err = n.Call("get", NewList(Int(1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be text")

	n.Set("name", Text("box"))
	_, err = n.Call("add", NewList(Text("name"), Int(1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot add text and int")
}
