//go:build unix

package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/obinnaokechukwu/goglib/exception"
	"github.com/obinnaokechukwu/goglib/gmain"
	"github.com/obinnaokechukwu/goglib/internal/logging"
	"github.com/obinnaokechukwu/goglib/internal/pipe"
)

// emitPollInterval bounds each wait for pipe space so that Emit notices a
// concurrent Close.
const emitPollInterval = 100 * time.Millisecond

// Notifier runs its connected callbacks on the slot owner's loop each time
// Emit is called, from any goroutine.
//
// Emits from one goroutine are delivered in order. There is no ordering
// between different emitting goroutines.
type Notifier struct {
	slot *Slot
	ch   *Channel
	id   uint64

	// mu keeps the pipe open while an emit writes to it.
	mu     sync.RWMutex
	closed bool

	conns []*Connection

	log *logrus.Entry
}

// Connection is a callback attached with Connect.
type Connection struct {
	n  *Notifier
	fn func()
}

// NewNotifier attaches a notifier to slot's channel for loop, creating the
// channel if needed. It must be called on the slot's goroutine. The only
// error is a wrapped ErrChannelCreate.
func NewNotifier(slot *Slot, loop gmain.Loop) (*Notifier, error) {
	ch, err := slot.acquire(loop)
	if err != nil {
		return nil, err
	}
	n := &Notifier{slot: slot, ch: ch}
	n.id = ch.notifiers.Register(n)
	n.log = logging.For("dispatch", "Notifier").WithFields(logrus.Fields{
		"channel":  ch.id,
		"notifier": n.id,
	})
	return n, nil
}

// ID returns the notifier's identity within its channel.
func (n *Notifier) ID() uint64 {
	return n.id
}

// Connect adds fn to the callbacks run for each emit. It must be called on
// the slot's goroutine.
func (n *Notifier) Connect(fn func()) *Connection {
	n.slot.mustOwn("Notifier.Connect")
	if fn == nil {
		panic("dispatch: Connect with nil callback")
	}
	c := &Connection{n: n, fn: fn}
	n.conns = append(n.conns, c)
	return c
}

// Disconnect removes the callback. It must be called on the slot's
// goroutine; disconnecting twice is a no-op.
func (c *Connection) Disconnect() {
	if c.n == nil {
		return
	}
	n := c.n
	n.slot.mustOwn("Connection.Disconnect")
	for i, x := range n.conns {
		if x == c {
			n.conns = append(n.conns[:i:i], n.conns[i+1:]...)
			break
		}
	}
	c.n = nil
}

// Connected reports whether the callback is still attached.
func (c *Connection) Connected() bool {
	return c.n != nil
}

// Emit schedules one run of the callbacks. It is safe from any goroutine.
//
// The record is written with a single write. If the pipe is full Emit waits
// for the loop to drain it. A short write loses the notification and returns
// ErrShortWrite; nothing is retried.
func (n *Notifier) Emit() error {
	buf := newRecord(n.id, n.ch.id).Encode()
	for {
		written, err := n.write(buf[:])
		switch {
		case err == ErrClosed:
			return err
		case err == unix.EAGAIN:
			n.waitWritable()
			continue
		case err != nil:
			n.log.WithError(err).Error("emit failed")
			return fmt.Errorf("dispatch: emit: %w", err)
		case written != len(buf):
			n.log.WithFields(logrus.Fields{
				"written": written,
				"size":    len(buf),
			}).Error("short write on notification pipe, notification lost")
			return ErrShortWrite
		}
		return nil
	}
}

func (n *Notifier) write(b []byte) (int, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return 0, ErrClosed
	}
	return pipe.Write(n.ch.pipe.W, b)
}

// waitWritable blocks until the pipe has room, Close happens, or the poll
// interval elapses. The lock is not held so the owner can keep draining.
func (n *Notifier) waitWritable() {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}
	fd := n.ch.pipe.W
	n.mu.RUnlock()

	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	if _, err := unix.Poll(fds, int(emitPollInterval/time.Millisecond)); err != nil && err != unix.EINTR {
		time.Sleep(time.Millisecond)
	}
}

// Close detaches the notifier from its channel, tearing the channel down if
// this was its last notifier. Records already in the pipe for this notifier
// are dropped when read. It must be called on the slot's goroutine.
func (n *Notifier) Close() error {
	n.slot.mustOwn("Notifier.Close")

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	for _, c := range n.conns {
		c.n = nil
	}
	n.conns = nil
	n.ch.notifiers.Unregister(n.id)
	n.slot.release(n.ch)
	return nil
}

// run executes the callbacks on the loop goroutine. Each callback is guarded
// on its own so that a panic does not starve the rest.
func (n *Notifier) run() {
	conns := append([]*Connection(nil), n.conns...)
	for _, c := range conns {
		if n.closed {
			return
		}
		if c.n != n {
			continue
		}
		exception.Guard(c.fn)
	}
}
