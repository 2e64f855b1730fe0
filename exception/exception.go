// Package exception is the process-wide hook for panics that escape user
// callbacks invoked from a native or event-loop frame.
//
// A panic must never unwind through a loop's dispatch (or through a C stack
// frame when the loop is GLib's). Callers recover at that boundary and hand
// the value to InvokeAll, which offers it to the registered handlers.
package exception

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/obinnaokechukwu/goglib/internal/logging"
)

// Handler receives a recovered panic value. A handler that cannot deal with
// the value may panic again (typically re-panicking with the same value) to
// pass it on to the previously registered handler.
type Handler func(v any)

type slot struct {
	id uint64
	fn Handler
}

var (
	mu       sync.Mutex
	handlers []slot
	nextID   uint64
)

// AddHandler registers h and returns a function that removes it.
// The most recently added handler runs first.
func AddHandler(h Handler) (remove func()) {
	mu.Lock()
	defer mu.Unlock()
	nextID++
	id := nextID
	handlers = append(handlers, slot{id: id, fn: h})

	return func() {
		mu.Lock()
		defer mu.Unlock()
		for i, s := range handlers {
			if s.id == id {
				handlers = append(handlers[:i], handlers[i+1:]...)
				return
			}
		}
	}
}

// InvokeAll offers v to the handlers, newest first, until one returns
// without panicking. If every handler re-panics (or none is registered) the
// value is logged at error level together with the current stack.
func InvokeAll(v any) {
	mu.Lock()
	snapshot := make([]slot, len(handlers))
	copy(snapshot, handlers)
	mu.Unlock()

	for i := len(snapshot) - 1; i >= 0; i-- {
		var handled bool
		handled, v = try(snapshot[i].fn, v)
		if handled {
			return
		}
	}

	logging.For("exception", "InvokeAll").
		WithField("panic", fmt.Sprint(v)).
		WithField("stack", string(debug.Stack())).
		Error("unhandled panic in callback")
}

func try(h Handler, v any) (handled bool, next any) {
	next = v
	defer func() {
		if r := recover(); r != nil {
			handled = false
			next = r
		}
	}()
	h(v)
	return true, v
}

// Guard runs fn, funnelling any panic into InvokeAll.
// It reports whether fn returned normally.
func Guard(fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			InvokeAll(r)
		}
	}()
	fn()
	return true
}
