package memenv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rulebridge/internal/clips"
)

const npcClasses = `(defclass Actor (is-a USER) (slot inst_id) (multislot tags))`

func setupInstances(t *testing.T) (*Env, *captureRouter) {
	t.Helper()
	return setupEnv(t,
		npcClasses,
		`(defclass Npc (is-a Actor) (slot hp (default (+ 50 50))) (slot mood (default calm)))`,
	)
}

func TestMakeInstanceDefaultsAndOverrides(t *testing.T) {
	env, _ := setupInstances(t)

	inst, err := env.MakeInstance(`([Npc:42] of Npc (inst_id 42) (tags guard night))`)
	require.NoError(t, err)
	assert.Equal(t, "Npc:42", inst.Name())
	assert.Equal(t, "Npc", inst.Class())

	hp, err := env.DirectGetSlot(inst, "hp")
	require.NoError(t, err)
	assert.Equal(t, clips.Integer(100), hp)

	tags, err := env.DirectGetSlot(inst, "tags")
	require.NoError(t, err)
	assert.Equal(t, "(guard night)", clips.Format(tags))

	id, err := env.DirectGetSlot(inst, "inst_id")
	require.NoError(t, err)
	assert.Equal(t, clips.Integer(42), id)
}

func TestMakeInstanceForms(t *testing.T) {
	env, _ := setupInstances(t)

	_, err := env.MakeInstance(`(make-instance bob of Npc)`)
	require.NoError(t, err)

	gen, err := env.MakeInstance(`(of Npc)`)
	require.NoError(t, err)
	assert.Equal(t, "gen1", gen.Name())

	v, err := env.Eval(`(make-instance (sym-cat Npc : 7) of Npc (inst_id 7))`)
	require.NoError(t, err)
	assert.Equal(t, "[Npc:7]", clips.Format(v))

	assert.Equal(t, []string{"bob", "gen1", "Npc:7"}, env.Instances())

	unset, err := env.DirectGetSlot(gen, "inst_id")
	require.NoError(t, err)
	assert.True(t, clips.IsSymbol(unset, "nil"))
}

func TestMakeInstanceErrors(t *testing.T) {
	env, _ := setupInstances(t)

	for _, spec := range []string{
		`(x of Ghost)`,
		`(x of Npc (wings 2))`,
		`(x of Npc (hp 1 2))`,
		`(x Npc)`,
		`x`,
	} {
		t.Run(spec, func(t *testing.T) {
			_, err := env.MakeInstance(spec)
			assert.Error(t, err)
		})
	}
}

func TestMakeInstanceReplacesSameName(t *testing.T) {
	env, _ := setupInstances(t)

	first, err := env.MakeInstance(`(a of Npc (hp 1))`)
	require.NoError(t, err)
	_, err = env.MakeInstance(`(a of Npc (hp 2))`)
	require.NoError(t, err)

	_, err = env.DirectGetSlot(first, "hp")
	assert.Error(t, err)

	found, ok := env.FindInstance("[a]")
	require.True(t, ok)
	hp, err := env.DirectGetSlot(found, "hp")
	require.NoError(t, err)
	assert.Equal(t, clips.Integer(2), hp)
}

func TestDeleteAndUnmakeAreDistinct(t *testing.T) {
	env, out := setupInstances(t)

	a, err := env.MakeInstance(`(a of Npc)`)
	require.NoError(t, err)
	b, err := env.MakeInstance(`(b of Npc)`)
	require.NoError(t, err)

	require.NoError(t, env.DeleteInstance(a))
	assert.Empty(t, out.text("wtrace"))

	require.NoError(t, env.UnmakeInstance(b))
	assert.Contains(t, out.text("wtrace"), "MSG >> delete ED:1 (<Instance-b>)")

	assert.Empty(t, env.Instances())
	assert.Error(t, env.DeleteInstance(a))
	assert.Error(t, env.UnmakeInstance(b))

	_, ok := env.FindInstance("a")
	assert.False(t, ok)
}

func TestDirectPutSlot(t *testing.T) {
	env, _ := setupInstances(t)
	inst, err := env.MakeInstance(`(a of Npc)`)
	require.NoError(t, err)

	require.NoError(t, env.DirectPutSlot(inst, "hp", env.AddLong(5)))
	require.NoError(t, env.DirectPutSlot(inst, "tags", env.AddSymbol("solo")))

	tags, err := env.DirectGetSlot(inst, "tags")
	require.NoError(t, err)
	assert.Equal(t, clips.TypeMultifield, tags.Type())

	assert.Error(t, env.DirectPutSlot(inst, "hp", env.Append(env.AddLong(1))))
	assert.Error(t, env.DirectPutSlot(inst, "hp", clips.Void{}))
	assert.Error(t, env.DirectPutSlot(inst, "wings", env.AddLong(1)))
}

func TestSendMessages(t *testing.T) {
	env, out := setupInstances(t)
	_, err := env.MakeInstance(`([Npc:42] of Npc (inst_id 42))`)
	require.NoError(t, err)

	v, err := env.Eval(`(send [Npc:42] put-hp 12)`)
	require.NoError(t, err)
	assert.True(t, clips.IsSymbol(v, "TRUE"))

	v, err = env.Eval(`(send [Npc:42] get-hp)`)
	require.NoError(t, err)
	assert.Equal(t, clips.Integer(12), v)

	v, err = env.Eval(`(send (instance-address [Npc:42]) get-inst_id)`)
	require.NoError(t, err)
	assert.Equal(t, clips.Integer(42), v)

	_, err = env.Eval(`(send [Npc:42] print)`)
	require.NoError(t, err)
	assert.Contains(t, out.text("t"), "[Npc:42] of Npc\n(inst_id 42)")

	_, err = env.Eval(`(send [Npc:42] dance)`)
	assert.Error(t, err)

	_, err = env.Eval(`(send [Npc:42] delete)`)
	require.NoError(t, err)
	assert.Contains(t, out.text("wtrace"), "MSG << delete")
	assert.Empty(t, env.Instances())
}

func TestInstanceNameAndAddress(t *testing.T) {
	env, _ := setupInstances(t)
	_, err := env.MakeInstance(`(a of Npc)`)
	require.NoError(t, err)

	v, err := env.Eval(`(instance-address a)`)
	require.NoError(t, err)
	addr, ok := v.(clips.InstanceAddress)
	require.True(t, ok)
	assert.Equal(t, "a", addr.Instance().Name())

	v, err = env.Eval(`(instance-name (instance-address [a]))`)
	require.NoError(t, err)
	assert.Equal(t, "[a]", clips.Format(v))
}

func TestClassSlots(t *testing.T) {
	env, _ := setupInstances(t)

	own, err := env.ClassSlots("Npc", false)
	require.NoError(t, err)
	assert.Equal(t, "(hp mood)", clips.Format(own))

	all, err := env.ClassSlots("Npc", true)
	require.NoError(t, err)
	assert.Equal(t, "(inst_id tags hp mood)", clips.Format(all))

	_, err = env.ClassSlots("Ghost", true)
	assert.Error(t, err)

	assert.Equal(t, "(Actor Npc)", clips.Format(env.DefclassList()))
}

func TestRedefineClassWithInstancesFails(t *testing.T) {
	env, _ := setupInstances(t)
	_, err := env.MakeInstance(`(a of Npc)`)
	require.NoError(t, err)

	err = env.Build(`(defclass Npc (is-a USER))`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has instances")

	require.NoError(t, env.Reset())
	require.NoError(t, env.Build(`(defclass Npc (is-a USER))`))
}
