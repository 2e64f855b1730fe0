package gobject

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
)

type memType struct {
	name   string
	parent Type
	props  map[string]any // name -> default value
}

type memData struct {
	value   uintptr
	destroy DestroyNotify
}

type memObject struct {
	typ   Type
	count atomic.Int32

	// guarded by MemRuntime.mu
	data  map[Quark]memData
	props map[string]any
	weak  map[WeakToken]struct{}
}

// MemRuntime is a Runtime implemented in Go. Besides backing tests it counts
// every reference operation so that ownership balance can be asserted.
//
// The transition of an instance from one reference to zero is serialized
// with WeakGet under the runtime lock; WeakGet only increments a count that
// is still positive, so a weak lookup can never resurrect an instance whose
// finalization has started.
type MemRuntime struct {
	mu      sync.RWMutex
	types   map[Type]*memType
	byName  map[string]Type
	objects map[Handle]*memObject
	quarks  map[string]Quark
	weak    map[WeakToken]Handle

	nextType   Type
	nextHandle Handle
	nextQuark  Quark
	nextWeak   WeakToken

	refs   atomic.Int64
	unrefs atomic.Int64
}

var _ Runtime = (*MemRuntime)(nil)
var _ PropertyStore = (*MemRuntime)(nil)

// NewMemRuntime returns an empty runtime.
func NewMemRuntime() *MemRuntime {
	return &MemRuntime{
		types:   make(map[Type]*memType),
		byName:  make(map[string]Type),
		objects: make(map[Handle]*memObject),
		quarks:  make(map[string]Quark),
		weak:    make(map[WeakToken]Handle),
	}
}

// RegisterType creates a type named name deriving from parent (0 for a root
// type). Registering a name twice panics.
func (r *MemRuntime) RegisterType(name string, parent Type) Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[name]; dup {
		panic(fmt.Sprintf("gobject: type %q already registered", name))
	}
	if parent != 0 && r.types[parent] == nil {
		panic(fmt.Sprintf("gobject: unknown parent type %d for %q", parent, name))
	}
	r.nextType++
	t := r.nextType
	r.types[t] = &memType{name: name, parent: parent, props: make(map[string]any)}
	r.byName[name] = t
	return t
}

// TypeFromName returns the type registered under name, or 0.
func (r *MemRuntime) TypeFromName(name string) Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// InstallProperty declares a property on t. def is both the default value
// and the value type accepted by SetProperty.
func (r *MemRuntime) InstallProperty(t Type, name string, def any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mt := r.types[t]
	if mt == nil {
		panic(fmt.Sprintf("gobject: unknown type %d", t))
	}
	mt.props[name] = def
}

// New creates an instance of t holding one reference, owned by the caller.
func (r *MemRuntime) New(t Type) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.types[t] == nil {
		panic(fmt.Sprintf("gobject: unknown type %d", t))
	}
	r.nextHandle++
	h := r.nextHandle
	obj := &memObject{
		typ:   t,
		data:  make(map[Quark]memData),
		props: make(map[string]any),
		weak:  make(map[WeakToken]struct{}),
	}
	obj.count.Store(1)
	r.objects[h] = obj
	return h
}

func (r *MemRuntime) object(h Handle) *memObject {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.objects[h]
}

// Ref adds a reference. Referencing a finalized or unknown handle panics.
func (r *MemRuntime) Ref(h Handle) {
	obj := r.object(h)
	if obj == nil {
		panic(fmt.Sprintf("gobject: ref of unknown handle %#x", uintptr(h)))
	}
	if obj.count.Add(1) <= 1 {
		panic(fmt.Sprintf("gobject: ref of finalized handle %#x", uintptr(h)))
	}
	r.refs.Add(1)
}

// Unref drops a reference and finalizes the instance when it was the last.
func (r *MemRuntime) Unref(h Handle) {
	obj := r.object(h)
	if obj == nil {
		panic(fmt.Sprintf("gobject: unref of unknown handle %#x", uintptr(h)))
	}
	r.unrefs.Add(1)

	for {
		old := obj.count.Load()
		if old <= 0 {
			panic(fmt.Sprintf("gobject: unref of finalized handle %#x", uintptr(h)))
		}
		if old > 1 {
			if obj.count.CompareAndSwap(old, old-1) {
				return
			}
			continue
		}

		r.mu.Lock()
		if !obj.count.CompareAndSwap(1, 0) {
			// Someone took a reference meanwhile.
			r.mu.Unlock()
			continue
		}
		for tok := range obj.weak {
			r.weak[tok] = 0
		}
		obj.weak = nil
		data := obj.data
		obj.data = nil
		r.mu.Unlock()

		r.finalize(h, data)
		return
	}
}

func (r *MemRuntime) finalize(h Handle, data map[Quark]memData) {
	keys := make([]Quark, 0, len(data))
	for q := range data {
		keys = append(keys, q)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, q := range keys {
		if d := data[q]; d.destroy != nil {
			d.destroy()
		}
	}

	r.mu.Lock()
	delete(r.objects, h)
	r.mu.Unlock()
}

// TypeOf returns the type of h, or 0 for an unknown handle.
func (r *MemRuntime) TypeOf(h Handle) Type {
	if obj := r.object(h); obj != nil {
		return obj.typ
	}
	return 0
}

func (r *MemRuntime) TypeParent(t Type) Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if mt := r.types[t]; mt != nil {
		return mt.parent
	}
	return 0
}

func (r *MemRuntime) TypeName(t Type) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if mt := r.types[t]; mt != nil {
		return mt.name
	}
	return "<invalid>"
}

func (r *MemRuntime) IsA(t, ancestor Type) bool {
	for ; t != 0; t = r.TypeParent(t) {
		if t == ancestor {
			return true
		}
	}
	return false
}

func (r *MemRuntime) Quark(name string) Quark {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.quarks[name]; ok {
		return q
	}
	r.nextQuark++
	r.quarks[name] = r.nextQuark
	return r.nextQuark
}

// SetData attaches value under key. A previous value's DestroyNotify runs
// after the replacement, outside the runtime lock.
func (r *MemRuntime) SetData(h Handle, key Quark, value uintptr, destroy DestroyNotify) {
	r.mu.Lock()
	obj := r.objects[h]
	if obj == nil || obj.data == nil {
		r.mu.Unlock()
		return
	}
	old, had := obj.data[key]
	obj.data[key] = memData{value: value, destroy: destroy}
	r.mu.Unlock()

	if had && old.destroy != nil {
		old.destroy()
	}
}

func (r *MemRuntime) GetData(h Handle, key Quark) uintptr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if obj := r.objects[h]; obj != nil && obj.data != nil {
		return obj.data[key].value
	}
	return 0
}

func (r *MemRuntime) StealData(h Handle, key Quark) uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj := r.objects[h]
	if obj == nil || obj.data == nil {
		return 0
	}
	d := obj.data[key]
	delete(obj.data, key)
	return d.value
}

func (r *MemRuntime) WeakInit(h Handle) WeakToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextWeak++
	tok := r.nextWeak
	r.bindWeakLocked(tok, h)
	return tok
}

func (r *MemRuntime) bindWeakLocked(tok WeakToken, h Handle) {
	obj := r.objects[h]
	if obj == nil || obj.weak == nil {
		r.weak[tok] = 0
		return
	}
	r.weak[tok] = h
	obj.weak[tok] = struct{}{}
}

func (r *MemRuntime) unbindWeakLocked(tok WeakToken) {
	if prev := r.weak[tok]; prev != 0 {
		if obj := r.objects[prev]; obj != nil && obj.weak != nil {
			delete(obj.weak, tok)
		}
	}
}

func (r *MemRuntime) WeakGet(tok WeakToken) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.weak[tok]
	if h == 0 {
		return 0
	}
	obj := r.objects[h]
	if obj == nil {
		return 0
	}
	for {
		old := obj.count.Load()
		if old <= 0 {
			return 0
		}
		if obj.count.CompareAndSwap(old, old+1) {
			r.refs.Add(1)
			return h
		}
	}
}

func (r *MemRuntime) WeakSet(tok WeakToken, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.weak[tok]; !ok {
		return
	}
	r.unbindWeakLocked(tok)
	r.bindWeakLocked(tok, h)
}

func (r *MemRuntime) WeakClear(tok WeakToken) {
	if tok == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unbindWeakLocked(tok)
	delete(r.weak, tok)
}

// WeakTokens returns the number of live weak tokens.
func (r *MemRuntime) WeakTokens() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.weak)
}

// RefCount returns the current reference count of h, 0 once finalized.
func (r *MemRuntime) RefCount(h Handle) int {
	if obj := r.object(h); obj != nil {
		return int(obj.count.Load())
	}
	return 0
}

// Alive reports whether h has not been finalized.
func (r *MemRuntime) Alive(h Handle) bool {
	return r.RefCount(h) > 0
}

// Calls returns the number of references taken (Ref and successful WeakGet)
// and released (Unref) so far.
func (r *MemRuntime) Calls() (refs, unrefs int64) {
	return r.refs.Load(), r.unrefs.Load()
}

func (r *MemRuntime) findPropertyLocked(t Type, name string) (any, bool) {
	for mt := r.types[t]; mt != nil; mt = r.types[mt.parent] {
		if def, ok := mt.props[name]; ok {
			return def, true
		}
	}
	return nil, false
}

// GetProperty returns the value of an installed property, or its default.
func (r *MemRuntime) GetProperty(h Handle, name string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj := r.objects[h]
	if obj == nil || obj.count.Load() <= 0 {
		return nil, ErrInvalidHandle
	}
	def, ok := r.findPropertyLocked(obj.typ, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchProperty, name)
	}
	if v, set := obj.props[name]; set {
		return v, nil
	}
	return def, nil
}

// SetProperty stores v; its dynamic type must match the property default.
func (r *MemRuntime) SetProperty(h Handle, name string, v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj := r.objects[h]
	if obj == nil || obj.count.Load() <= 0 {
		return ErrInvalidHandle
	}
	def, ok := r.findPropertyLocked(obj.typ, name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchProperty, name)
	}
	if reflect.TypeOf(v) != reflect.TypeOf(def) {
		return fmt.Errorf("%w: %s wants %T, got %T", ErrUnsupportedValue, name, def, v)
	}
	obj.props[name] = v
	return nil
}
