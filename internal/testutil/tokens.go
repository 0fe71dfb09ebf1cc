package testutil

import (
	"fmt"
	"sync"
)

// CountingTokens generates "<prefix>-1", "<prefix>-2", ... pipeline tokens.
// It never runs out, so scenarios need not know how many pipelines the rules
// will queue.
type CountingTokens struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewCountingTokens creates a generator. An empty prefix means "pipeline".
func NewCountingTokens(prefix string) *CountingTokens {
	if prefix == "" {
		prefix = "pipeline"
	}
	return &CountingTokens{prefix: prefix}
}

// Generate returns the next token.
func (g *CountingTokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
