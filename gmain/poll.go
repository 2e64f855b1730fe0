//go:build unix

package gmain

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/obinnaokechukwu/goglib/exception"
	"github.com/obinnaokechukwu/goglib/internal/logging"
	"github.com/obinnaokechukwu/goglib/internal/pipe"
)

type pollWatch struct {
	id   WatchID
	fd   int
	cond IOCondition
	fn   WatchFunc
}

// PollLoop is a level-triggered poll(2) loop with a self-pipe for wakeups.
//
// Watches may be added and removed from any goroutine; the loop is woken so
// the change takes effect on the next iteration. Callbacks run on the
// goroutine calling Iteration or Run. A panicking callback is reported to
// exception.InvokeAll and its watch is kept.
type PollLoop struct {
	mu      sync.Mutex
	watches map[WatchID]*pollWatch
	nextID  WatchID
	closed  bool

	wake        pipe.Pipe
	wakePending atomic.Bool
	running     atomic.Bool
	quit        atomic.Bool

	log *logrus.Entry
}

var _ Loop = (*PollLoop)(nil)

// NewPollLoop creates a loop and its wakeup pipe.
func NewPollLoop() (*PollLoop, error) {
	wake, err := pipe.New(true, true)
	if err != nil {
		return nil, fmt.Errorf("gmain: creating wakeup pipe: %w", err)
	}
	return &PollLoop{
		watches: make(map[WatchID]*pollWatch),
		wake:    wake,
		log:     logging.For("gmain", "PollLoop"),
	}, nil
}

func (l *PollLoop) AddWatch(fd int, cond IOCondition, fn WatchFunc) (WatchID, error) {
	if fn == nil {
		return 0, fmt.Errorf("gmain: nil watch callback for fd %d", fd)
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0, ErrLoopClosed
	}
	l.nextID++
	id := l.nextID
	l.watches[id] = &pollWatch{id: id, fd: fd, cond: cond, fn: fn}
	l.mu.Unlock()

	l.Wakeup()
	return id, nil
}

func (l *PollLoop) RemoveWatch(id WatchID) {
	l.mu.Lock()
	_, ok := l.watches[id]
	delete(l.watches, id)
	l.mu.Unlock()

	if ok {
		l.Wakeup()
	}
}

// Len returns the number of registered watches.
func (l *PollLoop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.watches)
}

func (l *PollLoop) Wakeup() {
	if !l.wakePending.CompareAndSwap(false, true) {
		return
	}
	// A full pipe already guarantees a wakeup, so EAGAIN is fine.
	if _, err := pipe.Write(l.wake.W, []byte{1}); err != nil && err != unix.EAGAIN {
		l.wakePending.Store(false)
		l.log.WithError(err).Warn("wakeup write failed")
	}
}

func (l *PollLoop) drainWakeup() {
	l.wakePending.Store(false)
	var buf [64]byte
	for {
		if n, err := pipe.Read(l.wake.R, buf[:]); err != nil || n < len(buf) {
			return
		}
	}
}

func (l *PollLoop) Iteration(mayBlock bool) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	ids := make([]WatchID, 0, len(l.watches))
	for id := range l.watches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fds := make([]unix.PollFd, 1, len(ids)+1)
	fds[0] = unix.PollFd{Fd: int32(l.wake.R), Events: unix.POLLIN}
	ws := make([]*pollWatch, 0, len(ids))
	for _, id := range ids {
		w := l.watches[id]
		fds = append(fds, unix.PollFd{Fd: int32(w.fd), Events: toPollEvents(w.cond)})
		ws = append(ws, w)
	}
	l.mu.Unlock()

	timeout := 0
	if mayBlock {
		timeout = -1
	}
	for {
		_, err := unix.Poll(fds, timeout)
		if err == nil {
			break
		}
		if err == unix.EINTR {
			continue
		}
		l.log.WithError(err).Error("poll failed")
		return false
	}

	if fds[0].Revents != 0 {
		l.drainWakeup()
	}

	dispatched := false
	for i, w := range ws {
		ready := fromPollEvents(fds[i+1].Revents)
		if ready == 0 {
			continue
		}
		l.mu.Lock()
		current := l.watches[w.id] == w
		l.mu.Unlock()
		if !current {
			// Removed by an earlier callback of this iteration.
			continue
		}
		dispatched = true
		if !l.dispatch(w, ready) {
			l.RemoveWatch(w.id)
		}
	}
	return dispatched
}

func (l *PollLoop) dispatch(w *pollWatch, ready IOCondition) (keep bool) {
	keep = true
	exception.Guard(func() {
		keep = w.fn(w.fd, ready)
	})
	return keep
}

// Run iterates until Quit is called or ctx is done. It returns nil after
// Quit and ctx.Err() after cancellation.
func (l *PollLoop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)
	l.quit.Store(false)

	stop := context.AfterFunc(ctx, l.Wakeup)
	defer stop()

	for !l.quit.Load() {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.mu.Lock()
		closed := l.closed
		l.mu.Unlock()
		if closed {
			return ErrLoopClosed
		}
		l.Iteration(true)
	}
	return nil
}

func (l *PollLoop) Quit() {
	l.quit.Store(true)
	l.Wakeup()
}

// Close drops all watches and closes the wakeup pipe. It must not be called
// while another goroutine is inside Iteration.
func (l *PollLoop) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.watches = nil
	return l.wake.Close()
}

func toPollEvents(c IOCondition) int16 {
	var ev int16
	if c&IOIn != 0 {
		ev |= unix.POLLIN
	}
	if c&IOPri != 0 {
		ev |= unix.POLLPRI
	}
	if c&IOOut != 0 {
		ev |= unix.POLLOUT
	}
	return ev
}

func fromPollEvents(ev int16) IOCondition {
	var c IOCondition
	if ev&unix.POLLIN != 0 {
		c |= IOIn
	}
	if ev&unix.POLLPRI != 0 {
		c |= IOPri
	}
	if ev&unix.POLLOUT != 0 {
		c |= IOOut
	}
	if ev&unix.POLLERR != 0 {
		c |= IOErr
	}
	if ev&unix.POLLHUP != 0 {
		c |= IOHup
	}
	if ev&unix.POLLNVAL != 0 {
		c |= IONval
	}
	return c
}
