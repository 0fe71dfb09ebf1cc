package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/rulebridge/internal/host"
)

func TestCountingTokens(t *testing.T) {
	gen := NewCountingTokens("p")
	assert.Equal(t, "p-1", gen.Generate())
	assert.Equal(t, "p-2", gen.Generate())

	assert.Equal(t, "pipeline-1", NewCountingTokens("").Generate())
}

func TestNewWorld(t *testing.T) {
	npc := host.NewNode(42, "Npc")
	reg := NewWorld(t, npc, host.NewNode(7, "Chest"))

	assert.Equal(t, 2, reg.Len())
	obj, ok := reg.Lookup(42)
	assert.True(t, ok)
	assert.Same(t, npc, obj)
}
