package testutil

import (
	"testing"

	"github.com/roach88/rulebridge/internal/host"
)

// NewWorld registers nodes in a fresh registry and fails the test on a
// registration conflict.
func NewWorld(t testing.TB, nodes ...*host.Node) *host.Registry {
	t.Helper()
	reg := host.NewRegistry()
	for _, n := range nodes {
		if err := reg.Register(n); err != nil {
			t.Fatalf("register %s: %v", n, err)
		}
	}
	return reg
}
