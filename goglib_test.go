//go:build !ios && !android && (amd64 || arm64)

package goglib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obinnaokechukwu/goglib/gobject"
)

func requireDefaultRegistry(t *testing.T) (*Registry, *gobject.GLibRuntime) {
	t.Helper()
	if err := Init(); err != nil {
		t.Skipf("GLib not available: %v", err)
	}
	reg, err := DefaultRegistry()
	if err != nil {
		t.Skipf("GLib object runtime not available: %v", err)
	}
	rt, ok := reg.Runtime().(*gobject.GLibRuntime)
	require.True(t, ok)
	return reg, rt
}

func TestInitAndVersion(t *testing.T) {
	if err := Init(); err != nil {
		t.Skipf("GLib not available: %v", err)
	}
	assert.True(t, IsLoaded())
	major, minor, _ := Version()
	assert.Equal(t, uint32(2), major)
	t.Logf("GLib %d.%d", major, minor)
}

func TestDefaultRegistryWrapsGObject(t *testing.T) {
	reg, rt := requireDefaultRegistry(t)
	again, err := DefaultRegistry()
	require.NoError(t, err)
	assert.Same(t, reg, again)

	h := rt.New(rt.TypeFromName("GObject"))
	require.NotZero(t, h)
	r := Wrap[*Object](reg, h, false)
	require.False(t, r.IsNil())
	assert.Equal(t, "GObject", r.Get().TypeName())

	// Same handle, same wrapper.
	assert.Same(t, r.Get(), reg.LookupOrCreate(h, true))
	rt.Unref(h)

	w := NewWeakRef(&r)
	destroyed := false
	r.Get().OnDestroy(func() { destroyed = true })

	got := w.Get()
	require.False(t, got.IsNil())
	got.Unref()

	o := r.Get()
	live := reg.Len()
	r.Unref()
	// h is freed now; only Go-side state may be inspected.
	assert.True(t, destroyed)
	assert.True(t, o.IsDestroyed())
	assert.Equal(t, live-1, reg.Len())
	assert.False(t, w.Valid())
	w.Reset()
}

func TestNativeLogRouting(t *testing.T) {
	if err := Init(); err != nil {
		t.Skipf("GLib not available: %v", err)
	}
	require.NoError(t, SetLogCallback(func(string, LogLevel, string) {}))
	// Installing twice keeps the first saved handler.
	require.NoError(t, SetLogCallback(nil))
	require.NoError(t, RestoreNativeLog())
	require.NoError(t, RestoreNativeLog())
}
