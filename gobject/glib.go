//go:build !ios && !android && (amd64 || arm64)

package gobject

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/goglib/internal/bindings"
	"github.com/obinnaokechukwu/goglib/internal/handles"
)

// Fundamental GType ids (G_TYPE_MAKE_FUNDAMENTAL(n) == n << 2).
const (
	gTypeBoolean Type = 5 << 2
	gTypeInt     Type = 6 << 2
	gTypeUint    Type = 7 << 2
	gTypeInt64   Type = 10 << 2
	gTypeUint64  Type = 11 << 2
	gTypeEnum    Type = 12 << 2
	gTypeFloat   Type = 14 << 2
	gTypeDouble  Type = 15 << 2
	gTypeString  Type = 16 << 2
)

// gvalue mirrors GValue on 64-bit platforms.
type gvalue struct {
	gtype uintptr
	data  [2]uint64
}

// Offset of GParamSpec.value_type: GTypeInstance, name, flags (+padding).
const paramSpecValueTypeOffset = 24

// Function bindings - registered by registerBindings
var (
	gObjectRef   func(obj uintptr) uintptr
	gObjectUnref func(obj uintptr)

	gTypeParent      func(t uintptr) uintptr
	gTypeName        func(t uintptr) uintptr
	gTypeIsA         func(t, ancestor uintptr) int32
	gTypeFromName    func(name string) uintptr
	gTypeFundamental func(t uintptr) uintptr

	gQuarkFromString func(s string) uint32

	gObjectSetQdataFull func(obj uintptr, quark uint32, data uintptr, destroy uintptr)
	gObjectGetQdata     func(obj uintptr, quark uint32) uintptr
	gObjectStealQdata   func(obj uintptr, quark uint32) uintptr

	gWeakRefInit  func(ref uintptr, obj uintptr)
	gWeakRefGet   func(ref uintptr) uintptr
	gWeakRefSet   func(ref uintptr, obj uintptr)
	gWeakRefClear func(ref uintptr)

	gMalloc0 func(size uintptr) uintptr
	gFree    func(p uintptr)

	gObjectNewWithProperties func(t uintptr, n uint32, names, values unsafe.Pointer) uintptr
	gObjectClassFindProperty func(class uintptr, name string) uintptr
	gObjectGetProperty       func(obj uintptr, name string, value unsafe.Pointer)
	gObjectSetProperty       func(obj uintptr, name string, value unsafe.Pointer)

	gValueInit       func(value unsafe.Pointer, t uintptr) unsafe.Pointer
	gValueUnset      func(value unsafe.Pointer)
	gValueGetBoolean func(value unsafe.Pointer) int32
	gValueSetBoolean func(value unsafe.Pointer, v int32)
	gValueGetInt     func(value unsafe.Pointer) int32
	gValueSetInt     func(value unsafe.Pointer, v int32)
	gValueGetUint    func(value unsafe.Pointer) uint32
	gValueSetUint    func(value unsafe.Pointer, v uint32)
	gValueGetInt64   func(value unsafe.Pointer) int64
	gValueSetInt64   func(value unsafe.Pointer, v int64)
	gValueGetUint64  func(value unsafe.Pointer) uint64
	gValueSetUint64  func(value unsafe.Pointer, v uint64)
	gValueGetEnum    func(value unsafe.Pointer) int32
	gValueSetEnum    func(value unsafe.Pointer, v int32)
	gValueGetFloat   func(value unsafe.Pointer) float32
	gValueSetFloat   func(value unsafe.Pointer, v float32)
	gValueGetDouble  func(value unsafe.Pointer) float64
	gValueSetDouble  func(value unsafe.Pointer, v float64)
	gValueGetString  func(value unsafe.Pointer) uintptr
	gValueSetString  func(value unsafe.Pointer, v string)

	bindOnce sync.Once
	bindErr  error

	// destroyCallbackPtr is the single GDestroyNotify shared by all qdata.
	// purego callbacks are a limited resource and are never freed.
	destroyCallbackPtr uintptr
)

// glibData is what a qdata pointer resolves to through internal/handles.
type glibData struct {
	value   uintptr
	destroy DestroyNotify
}

func registerBindings() error {
	bindOnce.Do(func() {
		if err := bindings.Load(); err != nil {
			bindErr = err
			return
		}
		glib := bindings.LibGLib()
		gobj := bindings.LibGObject()

		purego.RegisterLibFunc(&gObjectRef, gobj, "g_object_ref")
		purego.RegisterLibFunc(&gObjectUnref, gobj, "g_object_unref")

		purego.RegisterLibFunc(&gTypeParent, gobj, "g_type_parent")
		purego.RegisterLibFunc(&gTypeName, gobj, "g_type_name")
		purego.RegisterLibFunc(&gTypeIsA, gobj, "g_type_is_a")
		purego.RegisterLibFunc(&gTypeFromName, gobj, "g_type_from_name")
		purego.RegisterLibFunc(&gTypeFundamental, gobj, "g_type_fundamental")

		purego.RegisterLibFunc(&gQuarkFromString, glib, "g_quark_from_string")

		purego.RegisterLibFunc(&gObjectSetQdataFull, gobj, "g_object_set_qdata_full")
		purego.RegisterLibFunc(&gObjectGetQdata, gobj, "g_object_get_qdata")
		purego.RegisterLibFunc(&gObjectStealQdata, gobj, "g_object_steal_qdata")

		purego.RegisterLibFunc(&gWeakRefInit, gobj, "g_weak_ref_init")
		purego.RegisterLibFunc(&gWeakRefGet, gobj, "g_weak_ref_get")
		purego.RegisterLibFunc(&gWeakRefSet, gobj, "g_weak_ref_set")
		purego.RegisterLibFunc(&gWeakRefClear, gobj, "g_weak_ref_clear")

		purego.RegisterLibFunc(&gMalloc0, glib, "g_malloc0")
		purego.RegisterLibFunc(&gFree, glib, "g_free")

		purego.RegisterLibFunc(&gObjectNewWithProperties, gobj, "g_object_new_with_properties")
		purego.RegisterLibFunc(&gObjectClassFindProperty, gobj, "g_object_class_find_property")
		purego.RegisterLibFunc(&gObjectGetProperty, gobj, "g_object_get_property")
		purego.RegisterLibFunc(&gObjectSetProperty, gobj, "g_object_set_property")

		purego.RegisterLibFunc(&gValueInit, gobj, "g_value_init")
		purego.RegisterLibFunc(&gValueUnset, gobj, "g_value_unset")
		purego.RegisterLibFunc(&gValueGetBoolean, gobj, "g_value_get_boolean")
		purego.RegisterLibFunc(&gValueSetBoolean, gobj, "g_value_set_boolean")
		purego.RegisterLibFunc(&gValueGetInt, gobj, "g_value_get_int")
		purego.RegisterLibFunc(&gValueSetInt, gobj, "g_value_set_int")
		purego.RegisterLibFunc(&gValueGetUint, gobj, "g_value_get_uint")
		purego.RegisterLibFunc(&gValueSetUint, gobj, "g_value_set_uint")
		purego.RegisterLibFunc(&gValueGetInt64, gobj, "g_value_get_int64")
		purego.RegisterLibFunc(&gValueSetInt64, gobj, "g_value_set_int64")
		purego.RegisterLibFunc(&gValueGetUint64, gobj, "g_value_get_uint64")
		purego.RegisterLibFunc(&gValueSetUint64, gobj, "g_value_set_uint64")
		purego.RegisterLibFunc(&gValueGetEnum, gobj, "g_value_get_enum")
		purego.RegisterLibFunc(&gValueSetEnum, gobj, "g_value_set_enum")
		purego.RegisterLibFunc(&gValueGetFloat, gobj, "g_value_get_float")
		purego.RegisterLibFunc(&gValueSetFloat, gobj, "g_value_set_float")
		purego.RegisterLibFunc(&gValueGetDouble, gobj, "g_value_get_double")
		purego.RegisterLibFunc(&gValueSetDouble, gobj, "g_value_set_double")
		purego.RegisterLibFunc(&gValueGetString, gobj, "g_value_get_string")
		purego.RegisterLibFunc(&gValueSetString, gobj, "g_value_set_string")

		// GDestroyNotify: void (*)(gpointer data)
		destroyCallbackPtr = purego.NewCallback(func(_ purego.CDecl, data uintptr) {
			v := handles.Unregister(data)
			if d, ok := v.(glibData); ok && d.destroy != nil {
				d.destroy()
			}
		})
	})
	return bindErr
}

// GLibRuntime forwards every Runtime operation to libgobject-2.0.
// Weak tokens are GWeakRef structs allocated with g_malloc0.
type GLibRuntime struct{}

var _ Runtime = (*GLibRuntime)(nil)
var _ PropertyStore = (*GLibRuntime)(nil)

// NewGLibRuntime loads GLib if needed and returns the native runtime.
func NewGLibRuntime() (*GLibRuntime, error) {
	if err := registerBindings(); err != nil {
		return nil, err
	}
	return &GLibRuntime{}, nil
}

// New creates a GObject of type t with default properties. The caller owns
// the initial reference (floating references are not sunk).
func (g *GLibRuntime) New(t Type) Handle {
	return Handle(gObjectNewWithProperties(uintptr(t), 0, nil, nil))
}

// TypeFromName returns the GType registered under name, or 0.
func (g *GLibRuntime) TypeFromName(name string) Type {
	return Type(gTypeFromName(name))
}

func (g *GLibRuntime) Ref(h Handle) { gObjectRef(uintptr(h)) }
func (g *GLibRuntime) Unref(h Handle) { gObjectUnref(uintptr(h)) }

// TypeOf reads G_TYPE_FROM_INSTANCE: instance->g_class->g_type.
func (g *GLibRuntime) TypeOf(h Handle) Type {
	if h == 0 {
		return 0
	}
	class := bindings.ReadUintptr(uintptr(h), 0)
	if class == 0 {
		return 0
	}
	return Type(bindings.ReadUintptr(class, 0))
}

func (g *GLibRuntime) TypeParent(t Type) Type { return Type(gTypeParent(uintptr(t))) }

func (g *GLibRuntime) TypeName(t Type) string {
	if name := bindings.GoString(gTypeName(uintptr(t))); name != "" {
		return name
	}
	return "<invalid>"
}

func (g *GLibRuntime) IsA(t, ancestor Type) bool {
	return gTypeIsA(uintptr(t), uintptr(ancestor)) != 0
}

func (g *GLibRuntime) Quark(name string) Quark { return Quark(gQuarkFromString(name)) }

func (g *GLibRuntime) SetData(h Handle, key Quark, value uintptr, destroy DestroyNotify) {
	id := handles.Register(glibData{value: value, destroy: destroy})
	gObjectSetQdataFull(uintptr(h), uint32(key), id, destroyCallbackPtr)
}

func (g *GLibRuntime) GetData(h Handle, key Quark) uintptr {
	id := gObjectGetQdata(uintptr(h), uint32(key))
	if d, ok := handles.Lookup(id).(glibData); ok {
		return d.value
	}
	return 0
}

func (g *GLibRuntime) StealData(h Handle, key Quark) uintptr {
	id := gObjectStealQdata(uintptr(h), uint32(key))
	if d, ok := handles.Unregister(id).(glibData); ok {
		return d.value
	}
	return 0
}

func (g *GLibRuntime) WeakInit(h Handle) WeakToken {
	ref := gMalloc0(unsafe.Sizeof(uintptr(0)))
	gWeakRefInit(ref, uintptr(h))
	return WeakToken(ref)
}

func (g *GLibRuntime) WeakGet(tok WeakToken) Handle {
	if tok == 0 {
		return 0
	}
	return Handle(gWeakRefGet(uintptr(tok)))
}

func (g *GLibRuntime) WeakSet(tok WeakToken, h Handle) {
	if tok != 0 {
		gWeakRefSet(uintptr(tok), uintptr(h))
	}
}

func (g *GLibRuntime) WeakClear(tok WeakToken) {
	if tok == 0 {
		return
	}
	gWeakRefClear(uintptr(tok))
	gFree(uintptr(tok))
}

// propertyType returns the value GType of the named property, or 0.
func (g *GLibRuntime) propertyType(h Handle, name string) Type {
	class := bindings.ReadUintptr(uintptr(h), 0)
	pspec := gObjectClassFindProperty(class, name)
	if pspec == 0 {
		return 0
	}
	return Type(bindings.ReadUintptr(pspec, paramSpecValueTypeOffset))
}

// GetProperty reads a property of a fundamental value type into a Go value:
// bool, int32, uint32, int64, uint64, float32, float64 or string. Enums are
// returned as int32.
func (g *GLibRuntime) GetProperty(h Handle, name string) (any, error) {
	if h == 0 {
		return nil, ErrInvalidHandle
	}
	vt := g.propertyType(h, name)
	if vt == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchProperty, name)
	}

	var v gvalue
	pv := unsafe.Pointer(&v)
	gValueInit(pv, uintptr(vt))
	defer gValueUnset(pv)
	gObjectGetProperty(uintptr(h), name, pv)

	switch Type(gTypeFundamental(uintptr(vt))) {
	case gTypeBoolean:
		return gValueGetBoolean(pv) != 0, nil
	case gTypeInt:
		return gValueGetInt(pv), nil
	case gTypeUint:
		return gValueGetUint(pv), nil
	case gTypeInt64:
		return gValueGetInt64(pv), nil
	case gTypeUint64:
		return gValueGetUint64(pv), nil
	case gTypeEnum:
		return gValueGetEnum(pv), nil
	case gTypeFloat:
		return gValueGetFloat(pv), nil
	case gTypeDouble:
		return gValueGetDouble(pv), nil
	case gTypeString:
		return bindings.GoString(gValueGetString(pv)), nil
	}
	return nil, fmt.Errorf("%w: %s is %s", ErrUnsupportedValue, name, g.TypeName(vt))
}

// SetProperty writes v, whose Go type must match the property's value type
// as documented on GetProperty.
func (g *GLibRuntime) SetProperty(h Handle, name string, val any) error {
	if h == 0 {
		return ErrInvalidHandle
	}
	vt := g.propertyType(h, name)
	if vt == 0 {
		return fmt.Errorf("%w: %s", ErrNoSuchProperty, name)
	}

	var v gvalue
	pv := unsafe.Pointer(&v)
	gValueInit(pv, uintptr(vt))
	defer gValueUnset(pv)

	mismatch := fmt.Errorf("%w: %s is %s, got %T", ErrUnsupportedValue, name, g.TypeName(vt), val)
	switch Type(gTypeFundamental(uintptr(vt))) {
	case gTypeBoolean:
		b, ok := val.(bool)
		if !ok {
			return mismatch
		}
		var i int32
		if b {
			i = 1
		}
		gValueSetBoolean(pv, i)
	case gTypeInt:
		i, ok := val.(int32)
		if !ok {
			return mismatch
		}
		gValueSetInt(pv, i)
	case gTypeUint:
		u, ok := val.(uint32)
		if !ok {
			return mismatch
		}
		gValueSetUint(pv, u)
	case gTypeInt64:
		i, ok := val.(int64)
		if !ok {
			return mismatch
		}
		gValueSetInt64(pv, i)
	case gTypeUint64:
		u, ok := val.(uint64)
		if !ok {
			return mismatch
		}
		gValueSetUint64(pv, u)
	case gTypeEnum:
		i, ok := val.(int32)
		if !ok {
			return mismatch
		}
		gValueSetEnum(pv, i)
	case gTypeFloat:
		f, ok := val.(float32)
		if !ok {
			return mismatch
		}
		gValueSetFloat(pv, f)
	case gTypeDouble:
		f, ok := val.(float64)
		if !ok {
			return mismatch
		}
		gValueSetDouble(pv, f)
	case gTypeString:
		s, ok := val.(string)
		if !ok {
			return mismatch
		}
		gValueSetString(pv, s)
	default:
		return fmt.Errorf("%w: %s is %s", ErrUnsupportedValue, name, g.TypeName(vt))
	}

	gObjectSetProperty(uintptr(h), name, pv)
	return nil
}
