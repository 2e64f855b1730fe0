package goglib

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/obinnaokechukwu/goglib/exception"
	"github.com/obinnaokechukwu/goglib/gobject"
	"github.com/obinnaokechukwu/goglib/internal/logging"
)

// ObjectWrapper is implemented by every wrapper type, usually by embedding
// *Object:
//
//	type Button struct {
//		*goglib.Object
//	}
type ObjectWrapper interface {
	Referencer
	Base() *Object
}

// Wrapped is the constraint of WeakRef: a comparable wrapper type.
type Wrapped interface {
	comparable
	ObjectWrapper
}

// Object is the Go side of one native instance. It is created by a
// Registry and lives until the runtime finalizes the instance; there is no
// other way to destroy it.
type Object struct {
	rt      gobject.Runtime
	handle  gobject.Handle
	reg     *Registry
	id      uint64
	wrapper ObjectWrapper

	dying     atomic.Bool
	destroyed atomic.Bool

	mu    sync.Mutex
	data  map[string]any
	hooks []func()
}

var _ ObjectWrapper = (*Object)(nil)

// Base returns o. It lets *Object and every type embedding it satisfy
// ObjectWrapper.
func (o *Object) Base() *Object {
	return o
}

// Reference adds a reference to the native instance. Referencing a
// destroyed wrapper is a usage error and panics.
func (o *Object) Reference() {
	if o.destroyed.Load() {
		panic(fmt.Sprintf("goglib: Reference on destroyed wrapper for handle %#x", uintptr(o.handle)))
	}
	o.rt.Ref(o.handle)
}

// Unreference drops a reference. Dropping the last one finalizes the native
// instance and destroys o before Unreference returns.
func (o *Object) Unreference() {
	o.rt.Unref(o.handle)
}

// Handle returns the native instance.
func (o *Object) Handle() gobject.Handle {
	return o.handle
}

// Type returns the runtime type of the native instance.
func (o *Object) Type() gobject.Type {
	return o.rt.TypeOf(o.handle)
}

// TypeName returns the name of the instance's runtime type.
func (o *Object) TypeName() string {
	return o.rt.TypeName(o.Type())
}

// Runtime returns the runtime that owns the native instance.
func (o *Object) Runtime() gobject.Runtime {
	return o.rt
}

// Registry returns the registry that created o.
func (o *Object) Registry() *Registry {
	return o.reg
}

// Wrapper returns the wrapper built around o by its factory.
func (o *Object) Wrapper() ObjectWrapper {
	return o.wrapper
}

// IsDestroying reports whether finalization of the instance has started.
func (o *Object) IsDestroying() bool {
	return o.dying.Load()
}

// IsDestroyed reports whether the destroy hooks have run.
func (o *Object) IsDestroyed() bool {
	return o.destroyed.Load()
}

// SetData stores v under key, replacing any previous value.
func (o *Object) SetData(key string, v any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.data == nil {
		o.data = make(map[string]any)
	}
	o.data[key] = v
}

// Data returns the value stored under key.
func (o *Object) Data(key string) (any, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.data[key]
	return v, ok
}

// RemoveData deletes key and returns its previous value.
func (o *Object) RemoveData(key string) (any, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.data[key]
	delete(o.data, key)
	return v, ok
}

// OnDestroy registers fn to run when the instance is finalized. Hooks run in
// reverse order of registration on the goroutine that dropped the last
// reference. Registering once destruction has started runs fn immediately.
func (o *Object) OnDestroy(fn func()) {
	o.mu.Lock()
	if !o.dying.Load() {
		o.hooks = append(o.hooks, fn)
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()
	exception.Guard(fn)
}

// destroy runs the hooks and drops the data store. Called once, by the
// registry, from the runtime's destroy notification.
func (o *Object) destroy() {
	o.mu.Lock()
	o.dying.Store(true)
	hooks := o.hooks
	o.hooks = nil
	o.mu.Unlock()

	log := logging.For("goglib", "Object").WithField("handle", fmt.Sprintf("%#x", uintptr(o.handle)))
	failed := 0
	for i := len(hooks) - 1; i >= 0; i-- {
		if !exception.Guard(hooks[i]) {
			failed++
		}
	}
	if failed > 0 {
		log.WithFields(logrus.Fields{
			"hooks":  len(hooks),
			"failed": failed,
		}).Warn("destroy hooks panicked")
	}

	o.mu.Lock()
	o.destroyed.Store(true)
	o.data = nil
	o.mu.Unlock()

	log.WithField("wrapper", fmt.Sprintf("%T", o.wrapper)).Debug("wrapper destroyed")
}
