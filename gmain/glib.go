//go:build unix && !ios && !android && (amd64 || arm64)

package gmain

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/purego"

	"github.com/obinnaokechukwu/goglib/exception"
	"github.com/obinnaokechukwu/goglib/internal/bindings"
	"github.com/obinnaokechukwu/goglib/internal/handles"
)

// Function bindings - registered by registerBindings
var (
	gMainContextNew       func() uintptr
	gMainContextUnref     func(ctx uintptr)
	gMainContextIteration func(ctx uintptr, mayBlock int32) int32
	gMainContextWakeup    func(ctx uintptr)

	gUnixFdSourceNew   func(fd int32, cond uint32) uintptr
	gSourceSetCallback func(source, fn, data, notify uintptr)
	gSourceAttach      func(source, ctx uintptr) uint32
	gSourceDestroy     func(source uintptr)
	gSourceUnref       func(source uintptr)

	bindOnce sync.Once
	bindErr  error

	// fdCallbackPtr is shared by every fd source; the user data is a
	// watchTable id.
	fdCallbackPtr uintptr
	watchTable    handles.Table[*glibWatch]
)

type glibWatch struct {
	ctx     *MainContext
	id      WatchID
	fn      WatchFunc
	source  uintptr
	tableID uint64
}

func registerBindings() error {
	bindOnce.Do(func() {
		if err := bindings.Load(); err != nil {
			bindErr = err
			return
		}
		lib := bindings.LibGLib()

		purego.RegisterLibFunc(&gMainContextNew, lib, "g_main_context_new")
		purego.RegisterLibFunc(&gMainContextUnref, lib, "g_main_context_unref")
		purego.RegisterLibFunc(&gMainContextIteration, lib, "g_main_context_iteration")
		purego.RegisterLibFunc(&gMainContextWakeup, lib, "g_main_context_wakeup")

		purego.RegisterLibFunc(&gUnixFdSourceNew, lib, "g_unix_fd_source_new")
		purego.RegisterLibFunc(&gSourceSetCallback, lib, "g_source_set_callback")
		purego.RegisterLibFunc(&gSourceAttach, lib, "g_source_attach")
		purego.RegisterLibFunc(&gSourceDestroy, lib, "g_source_destroy")
		purego.RegisterLibFunc(&gSourceUnref, lib, "g_source_unref")

		// GUnixFDSourceFunc: gboolean (*)(gint fd, GIOCondition condition, gpointer user_data)
		fdCallbackPtr = purego.NewCallback(func(_ purego.CDecl, fd int32, cond uint32, data uintptr) int32 {
			w, ok := watchTable.Lookup(uint64(data))
			if !ok {
				return 0
			}
			keep := true
			exception.Guard(func() {
				keep = w.fn(int(fd), IOCondition(cond))
			})
			if keep {
				return 1
			}
			// GLib destroys the source once we return FALSE.
			w.ctx.forget(w, false)
			return 0
		})
	})
	return bindErr
}

// MainContext is a GLib GMainContext driven from Go. It lets the dispatcher
// share a loop with GLib-based code running in the same process.
type MainContext struct {
	ptr uintptr

	mu      sync.Mutex
	watches map[WatchID]*glibWatch
	nextID  WatchID
	closed  bool

	running atomic.Bool
	quit    atomic.Bool
}

var _ Loop = (*MainContext)(nil)

// NewMainContext loads GLib if needed and creates a new GMainContext.
func NewMainContext() (*MainContext, error) {
	if err := registerBindings(); err != nil {
		return nil, err
	}
	ptr := gMainContextNew()
	if ptr == 0 {
		return nil, fmt.Errorf("gmain: g_main_context_new failed")
	}
	return &MainContext{ptr: ptr, watches: make(map[WatchID]*glibWatch)}, nil
}

// Native returns the GMainContext pointer.
func (c *MainContext) Native() uintptr {
	return c.ptr
}

func (c *MainContext) AddWatch(fd int, cond IOCondition, fn WatchFunc) (WatchID, error) {
	if fn == nil {
		return 0, fmt.Errorf("gmain: nil watch callback for fd %d", fd)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrLoopClosed
	}

	src := gUnixFdSourceNew(int32(fd), uint32(cond))
	if src == 0 {
		return 0, fmt.Errorf("gmain: g_unix_fd_source_new failed for fd %d", fd)
	}
	c.nextID++
	w := &glibWatch{ctx: c, id: c.nextID, fn: fn, source: src}
	w.tableID = watchTable.Register(w)
	c.watches[w.id] = w

	gSourceSetCallback(src, fdCallbackPtr, uintptr(w.tableID), 0)
	gSourceAttach(src, c.ptr)
	return w.id, nil
}

func (c *MainContext) RemoveWatch(id WatchID) {
	c.mu.Lock()
	w := c.watches[id]
	c.mu.Unlock()
	if w != nil {
		c.forget(w, true)
	}
}

func (c *MainContext) forget(w *glibWatch, destroy bool) {
	c.mu.Lock()
	if c.watches[w.id] != w {
		c.mu.Unlock()
		return
	}
	delete(c.watches, w.id)
	c.mu.Unlock()

	watchTable.Unregister(w.tableID)
	if destroy {
		gSourceDestroy(w.source)
	}
	gSourceUnref(w.source)
}

func (c *MainContext) Iteration(mayBlock bool) bool {
	var block int32
	if mayBlock {
		block = 1
	}
	return gMainContextIteration(c.ptr, block) != 0
}

func (c *MainContext) Wakeup() {
	gMainContextWakeup(c.ptr)
}

// Run iterates until Quit is called or ctx is done. It returns nil after
// Quit and ctx.Err() after cancellation.
func (c *MainContext) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer c.running.Store(false)
	c.quit.Store(false)

	stop := context.AfterFunc(ctx, c.Wakeup)
	defer stop()

	for !c.quit.Load() {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.Iteration(true)
	}
	return nil
}

func (c *MainContext) Quit() {
	c.quit.Store(true)
	c.Wakeup()
}

// Close destroys all watches and drops the context reference.
func (c *MainContext) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ws := make([]*glibWatch, 0, len(c.watches))
	for _, w := range c.watches {
		ws = append(ws, w)
	}
	c.mu.Unlock()

	for _, w := range ws {
		c.forget(w, true)
	}
	gMainContextUnref(c.ptr)
	return nil
}
