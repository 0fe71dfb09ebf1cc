package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rulebridge/internal/host"
	"github.com/roach88/rulebridge/internal/store"
	"github.com/roach88/rulebridge/internal/testutil"
)

// callLog records handler invocations in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fixture struct {
	sched *Scheduler
	npc   *host.Node
	world *host.Registry
	log   *callLog
}

var errBoom = errors.New("boom")

var _ TokenGenerator = (*testutil.CountingTokens)(nil)

// setupScheduler builds a scheduler over one Npc (id 42) with two handlers:
// "say" records its first argument, "fail" always errors.
func setupScheduler(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	npc := host.NewNode(42, "Npc")
	f := &fixture{npc: npc, world: testutil.NewWorld(t, npc), log: &callLog{}}

	base := []Option{
		WithClock(testutil.NewDeterministicClock()),
		WithTokens(testutil.NewCountingTokens("p")),
		WithHandler("say", func(_ context.Context, args host.List) (host.Value, error) {
			text := ""
			if len(args) > 0 {
				text = host.Format(args[0])
			}
			f.log.add(text)
			return host.Text(text), nil
		}),
		WithHandler("fail", func(context.Context, host.List) (host.Value, error) {
			f.log.add("fail")
			return nil, errBoom
		}),
	}
	f.sched = NewScheduler(f.world, append(base, opts...)...)
	return f
}

func openJournal(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func say(text string) host.List {
	return host.NewList(host.Text("say"), host.Text(text))
}
