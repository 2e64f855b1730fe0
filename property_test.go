package goglib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obinnaokechukwu/goglib/gobject"
)

func TestPropertyGetSet(t *testing.T) {
	f := newFixture(t)
	f.rt.InstallProperty(f.base, "label", "")
	f.rt.InstallProperty(f.derived, "pressed", false)

	r := f.newWidget(t, f.derived)
	defer r.Unref()

	label := NewProperty[string](r.Get(), "label")
	assert.Equal(t, "label", label.Name())

	v, err := label.Get()
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, label.Set("OK"))
	v, err = label.Get()
	require.NoError(t, err)
	assert.Equal(t, "OK", v)

	pressed := NewProperty[bool](r.Get(), "pressed")
	require.NoError(t, pressed.Set(true))
	b, err := pressed.Get()
	require.NoError(t, err)
	assert.True(t, b)
}

func TestPropertyErrors(t *testing.T) {
	f := newFixture(t)
	f.rt.InstallProperty(f.base, "label", "")
	r := f.newWidget(t, f.base)

	wrongType := NewProperty[int32](r.Get(), "label")
	_, err := wrongType.Get()
	assert.ErrorIs(t, err, ErrPropertyType)
	err = wrongType.Set(3)
	assert.ErrorIs(t, err, ErrPropertyType)
	assert.ErrorIs(t, err, gobject.ErrUnsupportedValue)

	missing := NewProperty[string](r.Get(), "nope")
	_, err = missing.Get()
	assert.ErrorIs(t, err, gobject.ErrNoSuchProperty)
	assert.ErrorIs(t, missing.Set("x"), gobject.ErrNoSuchProperty)

	w := r.Get()
	r.Unref()
	_, err = NewProperty[string](w, "label").Get()
	assert.ErrorIs(t, err, ErrDestroyed)
}

// plainRuntime hides MemRuntime's PropertyStore methods.
type plainRuntime struct {
	gobject.Runtime
}

func TestPropertyNotSupported(t *testing.T) {
	mem := gobject.NewMemRuntime()
	typ := mem.RegisterType("Thing", 0)
	reg := NewRegistry(plainRuntime{mem})
	reg.RegisterFactory(typ, func(b *Object) ObjectWrapper { return b })

	r := Wrap[*Object](reg, mem.New(typ), false)
	require.False(t, r.IsNil())
	defer r.Unref()

	_, err := NewProperty[string](r.Get(), "anything").Get()
	assert.ErrorIs(t, err, ErrNotSupported)
	assert.ErrorIs(t, NewProperty[string](r.Get(), "anything").Set("x"), ErrNotSupported)
}
