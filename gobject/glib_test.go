//go:build !ios && !android && (amd64 || arm64)

package gobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireGLib(t *testing.T) *GLibRuntime {
	t.Helper()
	rt, err := NewGLibRuntime()
	if err != nil {
		t.Skipf("GLib not available: %v", err)
	}
	return rt
}

func TestGLibRuntimeLifecycle(t *testing.T) {
	rt := requireGLib(t)

	objType := rt.TypeFromName("GObject")
	require.NotZero(t, objType)
	assert.Equal(t, "GObject", rt.TypeName(objType))
	assert.Zero(t, rt.TypeParent(objType))

	h := rt.New(objType)
	require.NotZero(t, h)
	assert.Equal(t, objType, rt.TypeOf(h))
	assert.True(t, rt.IsA(rt.TypeOf(h), objType))

	key := rt.Quark("goglib-test")
	destroyed := 0
	rt.SetData(h, key, 42, func() { destroyed++ })
	assert.Equal(t, uintptr(42), rt.GetData(h, key))

	tok := rt.WeakInit(h)
	got := rt.WeakGet(tok)
	require.Equal(t, h, got)
	rt.Unref(got)

	rt.Unref(h)
	assert.Equal(t, 1, destroyed)
	assert.Zero(t, rt.WeakGet(tok))
	rt.WeakClear(tok)
}

func TestGLibRuntimeStealData(t *testing.T) {
	rt := requireGLib(t)

	h := rt.New(rt.TypeFromName("GObject"))
	key := rt.Quark("goglib-steal")
	destroyed := 0
	rt.SetData(h, key, 9, func() { destroyed++ })
	assert.Equal(t, uintptr(9), rt.StealData(h, key))
	rt.Unref(h)
	assert.Zero(t, destroyed)
}

func TestGLibRuntimeUnknownProperty(t *testing.T) {
	rt := requireGLib(t)

	h := rt.New(rt.TypeFromName("GObject"))
	defer rt.Unref(h)

	_, err := rt.GetProperty(h, "no-such-property")
	assert.ErrorIs(t, err, ErrNoSuchProperty)
	assert.ErrorIs(t, rt.SetProperty(h, "no-such-property", int32(1)), ErrNoSuchProperty)
}
