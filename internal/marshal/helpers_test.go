package marshal

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rulebridge/internal/clips"
	"github.com/roach88/rulebridge/internal/host"
	"github.com/roach88/rulebridge/internal/metrics"
)

type fakeInstance struct {
	name  string
	class string
	slots map[string]clips.Value
}

func (f *fakeInstance) Name() string  { return f.name }
func (f *fakeInstance) Class() string { return f.class }

type fakeSlots struct{}

func (fakeSlots) DirectGetSlot(inst clips.Instance, slot string) (clips.Value, error) {
	fi, ok := inst.(*fakeInstance)
	if !ok {
		return nil, errors.New("foreign instance")
	}
	v, ok := fi.slots[slot]
	if !ok {
		return nil, errors.New("no slot " + slot)
	}
	return v, nil
}

// fixture is a converter wired to a registry holding [Npc:42].
type fixture struct {
	conv     *Converter
	arena    *clips.Arena
	registry *host.Registry
	npc      *host.Node
	metrics  *metrics.Metrics
	logs     *bytes.Buffer
	seen     []*Diagnostic
}

func setupConverter(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		arena:    clips.NewArena(),
		registry: host.NewRegistry(),
		npc:      host.NewNode(42, "Npc"),
		logs:     &bytes.Buffer{},
	}
	require.NoError(t, f.registry.Register(f.npc))

	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	f.metrics = m

	logger := slog.New(slog.NewTextHandler(f.logs, nil))
	f.conv = New(f.registry, fakeSlots{},
		WithLogger(logger),
		WithMetrics(m),
		WithObserver(func(d *Diagnostic) { f.seen = append(f.seen, d) }),
	)
	return f
}

func (f *fixture) kinds() []Kind {
	out := make([]Kind, len(f.seen))
	for i, d := range f.seen {
		out[i] = d.Kind
	}
	return out
}
