package marshal

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rulebridge/internal/clips"
	"github.com/roach88/rulebridge/internal/host"
)

func TestRoundTripScalars(t *testing.T) {
	f := setupConverter(t)

	values := []host.Value{
		host.Bool(true),
		host.Bool(false),
		host.Int(-12),
		host.Int(1 << 40),
		host.Float(3.25),
		host.Text("hello world"),
		host.Text("cafe\u0301"),
		host.Ref(42),
		host.Vector2{X: 1, Y: -1},
		host.NewList(host.Int(1), host.Text("two"), host.Float(3), host.Bool(true), host.Ref(42)),
	}

	for _, v := range values {
		t.Run(host.Format(v), func(t *testing.T) {
			for _, asSymbols := range []bool{false, true} {
				got := f.conv.ToHost(f.conv.ToEngine(v, f.arena, asSymbols))
				assert.True(t, host.Equal(v, got), "asSymbols=%v: got %s", asSymbols, host.Format(got))
			}
		})
	}
	assert.Empty(t, f.seen)
}

func TestToEngineMapping(t *testing.T) {
	f := setupConverter(t)

	assert.True(t, clips.IsSymbol(f.conv.ToEngine(host.Nil{}, f.arena, false), "NULL"))
	assert.True(t, f.conv.ToEngine(host.Bool(true), f.arena, false) == f.arena.TrueSymbol())
	assert.True(t, f.conv.ToEngine(host.Bool(false), f.arena, false) == f.arena.FalseSymbol())

	sym := f.conv.ToEngine(host.Text("idle"), f.arena, true)
	assert.Equal(t, clips.TypeSymbol, sym.Type())
	str := f.conv.ToEngine(host.Text("idle"), f.arena, false)
	assert.Equal(t, clips.TypeString, str.Type())

	name := f.conv.ToEngine(host.Ref(42), f.arena, false)
	require.IsType(t, clips.InstanceName{}, name)
	assert.Equal(t, "Npc:42", name.(clips.InstanceName).Text())

	opaque := &struct{}{}
	ext := f.conv.ToEngine(host.Opaque{Ptr: opaque}, f.arena, false)
	require.IsType(t, clips.ExternalAddress{}, ext)
	assert.Same(t, opaque, ext.(clips.ExternalAddress).Pointer())
}

func TestToEngineInternsThroughAllocator(t *testing.T) {
	f := setupConverter(t)

	a := f.conv.ToEngine(host.Text("guard"), f.arena, true).(clips.Symbol)
	b := f.conv.ToEngine(host.NewList(host.Text("guard")), f.arena, true).(*clips.Multifield).At(1).(clips.Symbol)
	assert.Same(t, a.Atom(), b.Atom())
}

func TestVector2Fidelity(t *testing.T) {
	f := setupConverter(t)

	enc := f.conv.ToEngine(host.Vector2{X: 3.5, Y: -2.0}, f.arena, false)
	mf, ok := enc.(*clips.Multifield)
	require.True(t, ok)
	require.Equal(t, 3, mf.Len())
	assert.True(t, clips.IsSymbol(mf.At(1), "Vector2"))
	assert.Equal(t, clips.Float(3.5), mf.At(2))
	assert.Equal(t, clips.Float(-2.0), mf.At(3))

	assert.Equal(t, host.Vector2{X: 3.5, Y: -2.0}, f.conv.ToHost(mf))
}

func TestVector2AcceptsIntegers(t *testing.T) {
	f := setupConverter(t)
	mf := f.arena.Append(f.arena.AddSymbol("Vector2"), f.arena.AddLong(3), f.arena.AddDouble(0.5))
	assert.Equal(t, host.Vector2{X: 3, Y: 0.5}, f.conv.ToHost(mf))
}

func TestVector2IgnoresTrailingFields(t *testing.T) {
	f := setupConverter(t)
	mf := f.arena.Append(f.arena.AddSymbol("Vector2"), f.arena.AddLong(1), f.arena.AddLong(2), f.arena.AddLong(99))
	assert.Equal(t, host.Vector2{X: 1, Y: 2}, f.conv.ToHost(mf))
}

func TestThreeFieldMultifieldIsNotVector2(t *testing.T) {
	f := setupConverter(t)

	mf := f.arena.Append(f.arena.AddSymbol("Foo"), f.arena.AddLong(1), f.arena.AddLong(2))
	got := f.conv.ToHost(mf)
	assert.Equal(t, host.NewList(host.Text("Foo"), host.Int(1), host.Int(2)), got)

	// Too short to be a vector.
	short := f.arena.Append(f.arena.AddSymbol("Vector2"), f.arena.AddLong(1))
	assert.Equal(t, host.NewList(host.Text("Vector2"), host.Int(1)), f.conv.ToHost(short))

	// The tag only counts in the first position.
	later := f.arena.Append(f.arena.AddLong(1), f.arena.AddSymbol("Vector2"), f.arena.AddLong(2))
	assert.Equal(t, host.NewList(host.Int(1), host.Text("Vector2"), host.Int(2)), f.conv.ToHost(later))
}

func TestVector2BadCoordinate(t *testing.T) {
	f := setupConverter(t)
	mf := f.arena.Append(f.arena.AddSymbol("Vector2"), f.arena.AddSymbol("left"), f.arena.AddLong(2))

	assert.Equal(t, host.Vector2{X: 0, Y: 2}, f.conv.ToHost(mf))
	assert.Equal(t, []Kind{KindDecodeError}, f.kinds())
}

func TestBooleanCollision(t *testing.T) {
	f := setupConverter(t)

	// Text "TRUE" encoded as a symbol cannot be told apart from a boolean.
	enc := f.conv.ToEngine(host.Text("TRUE"), f.arena, true)
	assert.True(t, enc == f.arena.TrueSymbol())
	assert.Equal(t, host.Bool(true), f.conv.ToHost(enc))

	enc = f.conv.ToEngine(host.Text("FALSE"), f.arena, true)
	assert.Equal(t, host.Bool(false), f.conv.ToHost(enc))

	// As a string it survives.
	enc = f.conv.ToEngine(host.Text("TRUE"), f.arena, false)
	assert.Equal(t, host.Text("TRUE"), f.conv.ToHost(enc))
}

func TestNilComesBackAsText(t *testing.T) {
	f := setupConverter(t)

	// NULL is an ordinary symbol on the engine side.
	for _, asSymbols := range []bool{false, true} {
		enc := f.conv.ToEngine(host.Nil{}, f.arena, asSymbols)
		assert.True(t, clips.IsSymbol(enc, clips.SymbolNil))
		assert.Equal(t, host.Text("NULL"), f.conv.ToHost(enc))
	}
	assert.Equal(t, host.NewList(host.Int(1), host.Text("NULL")),
		f.conv.ToHost(f.conv.ToEngine(host.NewList(host.Int(1), host.Nil{}), f.arena, false)))
	assert.Empty(t, f.seen)
}

func TestIdentityParsing(t *testing.T) {
	f := setupConverter(t)

	got := f.conv.ToHost(f.arena.AddInstanceName("[Npc:42]"))
	assert.Equal(t, host.Ref(42), got)
	assert.Empty(t, f.seen)

	got = f.conv.ToHost(f.arena.AddInstanceName("[Npc:abc]"))
	assert.Equal(t, host.Nil{}, got)
	require.Len(t, f.seen, 1)
	assert.Equal(t, KindLookupMiss, f.seen[0].Kind)
	assert.Equal(t, "Npc:abc", f.seen[0].Details["instance"])
	assert.Contains(t, f.logs.String(), "kind=lookup_miss")
}

func TestStaleReference(t *testing.T) {
	f := setupConverter(t)
	f.registry.Unregister(42)

	assert.Equal(t, host.Nil{}, f.conv.ToHost(f.arena.AddInstanceName("Npc:42")))

	enc := f.conv.ToEngine(host.Ref(42), f.arena, false)
	assert.Equal(t, "42", enc.(clips.InstanceName).Text())

	assert.Equal(t, []Kind{KindLookupMiss, KindLookupMiss}, f.kinds())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.DiagnosticCounter("lookup_miss")))
}

func TestInstanceAddressReadsInstID(t *testing.T) {
	f := setupConverter(t)

	inst := &fakeInstance{name: "guard-1", class: "Npc", slots: map[string]clips.Value{
		"inst_id": f.arena.AddLong(42),
	}}
	assert.Equal(t, host.Ref(42), f.conv.ToHost(clips.AddressOf(inst)))

	// The same rule applies inside a multifield: each field reads its own instance.
	other := &fakeInstance{name: "ghost", class: "Npc", slots: map[string]clips.Value{}}
	mf := f.arena.Append(clips.AddressOf(inst), clips.AddressOf(other))
	assert.Equal(t, host.NewList(host.Ref(42), host.Nil{}), f.conv.ToHost(mf))
	assert.Equal(t, []Kind{KindLookupMiss}, f.kinds())
}

func TestExternalAddressPassesThrough(t *testing.T) {
	f := setupConverter(t)
	payload := &struct{ n int }{n: 1}

	got := f.conv.ToHost(f.arena.AddExternalAddress(payload))
	assert.True(t, host.Equal(host.Opaque{Ptr: payload}, got))
	assert.Equal(t, []Kind{KindUnusualValue}, f.kinds())
	assert.Contains(t, f.logs.String(), "level=INFO")
}

func TestToHostVoidAndUnrecognized(t *testing.T) {
	f := setupConverter(t)
	assert.Equal(t, host.Nil{}, f.conv.ToHost(clips.Void{}))
	assert.Empty(t, f.seen)

	assert.Equal(t, host.Nil{}, f.conv.ToHost(nil))
	assert.Equal(t, []Kind{KindUnrecognizedType}, f.kinds())
}

func TestToEngineUnrecognized(t *testing.T) {
	f := setupConverter(t)
	got := f.conv.ToEngine(nil, f.arena, false)
	assert.True(t, got == f.arena.FalseSymbol())
	assert.Equal(t, []Kind{KindUnrecognizedType}, f.kinds())
}

func TestNestedListRejection(t *testing.T) {
	f := setupConverter(t)

	in := host.NewList(
		host.NewList(host.Int(1), host.Int(2)),
		host.NewList(host.Int(3), host.Int(4)),
	)
	enc := f.conv.ToEngine(in, f.arena, false)

	mf, ok := enc.(*clips.Multifield)
	require.True(t, ok)
	require.Equal(t, 2, mf.Len())
	assert.True(t, clips.IsSymbol(mf.At(1), PlaceholderNested))
	assert.True(t, clips.IsSymbol(mf.At(2), PlaceholderNested))
	assert.Equal(t, []Kind{KindUnrecognizedType, KindUnrecognizedType}, f.kinds())
}

func TestVector2InsideListIsFalse(t *testing.T) {
	f := setupConverter(t)

	enc := f.conv.ToEngine(host.NewList(host.Int(1), host.Vector2{X: 1, Y: 2}), f.arena, false)
	mf := enc.(*clips.Multifield)
	assert.True(t, mf.At(2) == f.arena.FalseSymbol())
	assert.Equal(t, []Kind{KindUnrecognizedType}, f.kinds())
}

func TestNilInsideListIsNullSymbol(t *testing.T) {
	f := setupConverter(t)
	enc := f.conv.ToEngine(host.NewList(host.Nil{}), f.arena, false).(*clips.Multifield)
	assert.True(t, clips.IsSymbol(enc.At(1), "NULL"))
}

func TestIllegalMultifieldFieldsAreSkipped(t *testing.T) {
	f := setupConverter(t)

	mf := f.arena.CreateMultifield(3)
	require.NoError(t, mf.Set(1, f.arena.AddLong(1)))
	require.NoError(t, mf.Set(3, f.arena.AddLong(3)))

	assert.Equal(t, host.NewList(host.Int(1), host.Int(3)), f.conv.ToHost(mf))
	assert.Equal(t, []Kind{KindDecodeError}, f.kinds())
}

func TestToHostList(t *testing.T) {
	f := setupConverter(t)
	args := clips.ArgList{f.arena.AddSymbol("->"), f.arena.AddLong(1), f.arena.AddString("x")}

	assert.Equal(t, host.NewList(host.Int(1), host.Text("x")), f.conv.ToHostList(args, 2))
	assert.Equal(t, host.List{}, f.conv.ToHostList(args, 4))
}
