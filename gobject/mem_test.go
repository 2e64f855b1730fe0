package gobject

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTypes(t *testing.T) (*MemRuntime, Type, Type) {
	t.Helper()
	rt := NewMemRuntime()
	base := rt.RegisterType("Base", 0)
	derived := rt.RegisterType("Derived", base)
	return rt, base, derived
}

func TestMemRuntimeTypeHierarchy(t *testing.T) {
	rt, base, derived := newTypes(t)

	assert.Equal(t, base, rt.TypeParent(derived))
	assert.Zero(t, rt.TypeParent(base))
	assert.True(t, rt.IsA(derived, base))
	assert.False(t, rt.IsA(base, derived))
	assert.Equal(t, "Derived", rt.TypeName(derived))
	assert.Equal(t, derived, rt.TypeFromName("Derived"))
	assert.Equal(t, []Type{derived, base}, Ancestors(rt, derived))

	assert.Panics(t, func() { rt.RegisterType("Base", 0) })
}

func TestMemRuntimeRefUnrefFinalizesOnce(t *testing.T) {
	rt, base, _ := newTypes(t)
	h := rt.New(base)
	key := rt.Quark("wrapper")

	destroyed := 0
	rt.SetData(h, key, 7, func() { destroyed++ })
	assert.Equal(t, uintptr(7), rt.GetData(h, key))

	rt.Ref(h)
	assert.Equal(t, 2, rt.RefCount(h))
	rt.Unref(h)
	assert.Zero(t, destroyed)
	rt.Unref(h)

	assert.Equal(t, 1, destroyed)
	assert.False(t, rt.Alive(h))
	assert.Panics(t, func() { rt.Unref(h) })

	refs, unrefs := rt.Calls()
	assert.Equal(t, int64(1), refs)
	assert.Equal(t, int64(2), unrefs)
}

func TestMemRuntimeSetDataReplaceAndSteal(t *testing.T) {
	rt, base, _ := newTypes(t)
	h := rt.New(base)
	key := rt.Quark("k")
	assert.Equal(t, key, rt.Quark("k"))

	var fired []int
	rt.SetData(h, key, 1, func() { fired = append(fired, 1) })
	rt.SetData(h, key, 2, func() { fired = append(fired, 2) })
	assert.Equal(t, []int{1}, fired, "replacing data runs the old notify")

	assert.Equal(t, uintptr(2), rt.StealData(h, key))
	assert.Zero(t, rt.GetData(h, key))

	rt.Unref(h)
	assert.Equal(t, []int{1}, fired, "stolen data never notifies")
}

func TestMemRuntimeWeakTokens(t *testing.T) {
	rt, base, _ := newTypes(t)
	h := rt.New(base)

	tok := rt.WeakInit(h)
	got := rt.WeakGet(tok)
	require.Equal(t, h, got)
	assert.Equal(t, 2, rt.RefCount(h))
	rt.Unref(got)

	rt.Unref(h)
	assert.Zero(t, rt.WeakGet(tok), "weak get after finalize")

	other := rt.New(base)
	rt.WeakSet(tok, other)
	got = rt.WeakGet(tok)
	assert.Equal(t, other, got)
	rt.Unref(got)

	rt.WeakClear(tok)
	rt.WeakClear(tok)
	rt.WeakClear(0)
	assert.Zero(t, rt.WeakGet(tok))
	assert.Zero(t, rt.WeakTokens())
	rt.Unref(other)
}

func TestMemRuntimeWeakGetNeverResurrects(t *testing.T) {
	rt, base, _ := newTypes(t)

	for i := 0; i < 200; i++ {
		h := rt.New(base)
		tok := rt.WeakInit(h)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			rt.Unref(h)
		}()
		go func() {
			defer wg.Done()
			if got := rt.WeakGet(tok); got != 0 {
				// A successful get must own a live reference.
				assert.True(t, rt.Alive(got))
				rt.Unref(got)
			}
		}()
		wg.Wait()

		assert.False(t, rt.Alive(h))
		rt.WeakClear(tok)
	}

	refs, unrefs := rt.Calls()
	assert.Equal(t, refs+200, unrefs)
}

func TestMemRuntimeProperties(t *testing.T) {
	rt, base, derived := newTypes(t)
	rt.InstallProperty(base, "label", "")
	rt.InstallProperty(derived, "count", int32(0))
	h := rt.New(derived)
	defer rt.Unref(h)

	v, err := rt.GetProperty(h, "label")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, rt.SetProperty(h, "label", "hello"))
	require.NoError(t, rt.SetProperty(h, "count", int32(3)))

	v, err = rt.GetProperty(h, "label")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	err = rt.SetProperty(h, "count", 3)
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	_, err = rt.GetProperty(h, "missing")
	assert.ErrorIs(t, err, ErrNoSuchProperty)

	_, err = rt.GetProperty(0, "label")
	assert.ErrorIs(t, err, ErrInvalidHandle)
}
