//go:build unix

// Package dispatch delivers notifications emitted on any goroutine to the
// goroutine that owns an event loop.
//
// Each loop-owning goroutine holds a Slot. The first Notifier created on a
// slot opens a Channel: a pipe whose read end is watched by the loop. Emit
// writes one fixed-size Record into the pipe; the loop's watch decodes it
// and runs the notifier's callbacks on the owning goroutine. All notifiers
// of a slot share its channel, and the channel is torn down when the last of
// them is closed.
package dispatch

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/obinnaokechukwu/goglib/gmain"
	"github.com/obinnaokechukwu/goglib/internal/goid"
	"github.com/obinnaokechukwu/goglib/internal/handles"
	"github.com/obinnaokechukwu/goglib/internal/logging"
	"github.com/obinnaokechukwu/goglib/internal/pipe"
)

var (
	// ErrChannelCreate is returned when the pipe or its loop watch cannot be
	// set up. Later attempts on the same slot retry from scratch.
	ErrChannelCreate = errors.New("dispatch: cannot create channel")

	// ErrShortWrite is returned when the pipe accepted only part of a record.
	// The notification is lost.
	ErrShortWrite = errors.New("dispatch: short write on notification pipe")

	// ErrClosed is returned by Emit after Close.
	ErrClosed = errors.New("dispatch: notifier is closed")
)

// Channel ids are process-wide so that a record can never be mistaken for
// one addressed to a later channel.
var channelIDs atomic.Uint64

// Slot is the channel holder of one loop-owning goroutine. Create it on that
// goroutine and pass it to every NewNotifier call made there.
type Slot struct {
	owner uint64
	ch    *Channel
}

// NewSlot returns an empty slot owned by the calling goroutine.
func NewSlot() *Slot {
	return &Slot{owner: goid.Get()}
}

// Owner returns the id of the goroutine that created the slot.
func (s *Slot) Owner() uint64 {
	return s.owner
}

// Channel returns the active channel, or nil.
func (s *Slot) Channel() *Channel {
	s.mustOwn("Slot.Channel")
	return s.ch
}

func (s *Slot) mustOwn(op string) {
	if g := goid.Get(); g != s.owner {
		panic(fmt.Sprintf("dispatch: %s called on goroutine %d, slot is owned by goroutine %d", op, g, s.owner))
	}
}

// acquire returns the slot's channel for loop, creating it on first use.
// Asking for a different loop than the active channel's is a programming
// error and panics.
func (s *Slot) acquire(loop gmain.Loop) (*Channel, error) {
	s.mustOwn("acquire")
	if s.ch != nil {
		if s.ch.loop != loop {
			panic("dispatch: slot already has a channel bound to a different loop")
		}
		s.ch.uses++
		return s.ch, nil
	}

	ch, err := newChannel(loop)
	if err != nil {
		return nil, err
	}
	s.ch = ch
	return ch, nil
}

// release drops one use of ch and tears it down at zero.
func (s *Slot) release(ch *Channel) {
	s.mustOwn("release")
	if s.ch != ch {
		panic("dispatch: releasing a channel the slot does not hold")
	}
	ch.uses--
	if ch.uses > 0 {
		return
	}
	s.ch = nil
	ch.teardown()
}

// Channel is a pipe plus a read watch on one loop.
type Channel struct {
	id    uint64
	loop  gmain.Loop
	pipe  pipe.Pipe
	watch gmain.WatchID
	uses  int
	done  bool

	notifiers handles.Table[*Notifier]

	// bytes read from the pipe that do not form a whole record yet
	pending []byte

	log *logrus.Entry
}

func newChannel(loop gmain.Loop) (*Channel, error) {
	p, err := pipe.New(true, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChannelCreate, err)
	}

	ch := &Channel{
		id:   channelIDs.Add(1),
		loop: loop,
		pipe: p,
		uses: 1,
	}
	ch.log = logging.For("dispatch", "Channel").WithField("channel", ch.id)

	ch.watch, err = loop.AddWatch(p.R, gmain.IOIn|gmain.IOHup|gmain.IOErr, ch.onReadable)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: %w", ErrChannelCreate, err)
	}
	ch.log.WithField("fd", p.R).Debug("channel created")
	return ch, nil
}

// ID returns the process-unique channel id carried in every record.
func (c *Channel) ID() uint64 {
	return c.id
}

// Uses returns the number of notifiers sharing the channel.
func (c *Channel) Uses() int {
	return c.uses
}

func (c *Channel) teardown() {
	c.done = true
	c.loop.RemoveWatch(c.watch)
	if err := c.pipe.Close(); err != nil {
		c.log.WithError(err).Warn("closing pipe")
	}
	c.pending = nil
	c.log.Debug("channel torn down")
}

// onReadable runs on the loop's goroutine. It drains the pipe, then
// delivers every complete record. A trailing partial record stays pending
// until the next wakeup.
func (c *Channel) onReadable(fd int, cond gmain.IOCondition) bool {
	if c.done {
		return false
	}

	var buf [RecordSize * 64]byte
	for {
		n, err := pipe.Read(fd, buf[:])
		if n > 0 {
			c.pending = append(c.pending, buf[:n]...)
		}
		if err == unix.EAGAIN {
			break
		}
		if err != nil {
			c.log.WithError(err).WithField("condition", cond.String()).Error("reading notification pipe")
			return false
		}
		if n == 0 {
			// Only we hold the write end; EOF means it was closed under us.
			c.log.Error("notification pipe closed unexpectedly")
			return false
		}
	}

	// Deliver from a detached buffer: a callback may close the last
	// notifier and tear the channel down.
	data := c.pending
	whole := len(data) - len(data)%RecordSize
	if rest := data[whole:]; len(rest) > 0 {
		c.pending = append([]byte(nil), rest...)
	} else {
		c.pending = nil
	}

	for off := 0; off < whole; off += RecordSize {
		rec, _ := DecodeRecord(data[off : off+RecordSize])
		c.deliver(rec)
	}
	return !c.done
}

func (c *Channel) deliver(rec Record) {
	if !rec.Valid() {
		c.log.WithField("record", rec.String()).Warn("corrupt record dropped: bad magic")
		return
	}
	if rec.Channel != c.id {
		c.log.WithField("record", rec.String()).Warn("corrupt record dropped: channel mismatch")
		return
	}
	n, ok := c.notifiers.Lookup(rec.Notifier)
	if !ok {
		c.log.WithField("notifier", rec.Notifier).Warn("stale record dropped: notifier is closed")
		return
	}
	n.run()
}
