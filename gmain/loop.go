// Package gmain provides the event loops that goglib's cross-goroutine
// dispatcher attaches to.
//
// A Loop is owned by the goroutine that iterates it. Watch callbacks always
// run on that goroutine, inside Iteration or Run.
package gmain

import (
	"context"
	"errors"
)

// IOCondition is a set of file descriptor conditions. The bit values are
// GLib's GIOCondition, which coincide with poll(2) on Linux and Darwin.
type IOCondition uint32

const (
	IOIn   IOCondition = 1 << 0
	IOPri  IOCondition = 1 << 1
	IOOut  IOCondition = 1 << 2
	IOErr  IOCondition = 1 << 3
	IOHup  IOCondition = 1 << 4
	IONval IOCondition = 1 << 5
)

// WatchID names a registered watch. Zero is never a valid id.
type WatchID uint64

// WatchFunc handles readiness of fd. Returning false removes the watch.
type WatchFunc func(fd int, cond IOCondition) bool

// Loop is the event loop contract used by package dispatch.
type Loop interface {
	// AddWatch registers fn for cond on fd. Safe from any goroutine.
	AddWatch(fd int, cond IOCondition, fn WatchFunc) (WatchID, error)
	// RemoveWatch unregisters a watch. Removing an unknown id is a no-op.
	RemoveWatch(id WatchID)
	// Iteration runs one round of polling and dispatch and reports whether
	// any callback ran. With mayBlock it waits for an event or a Wakeup.
	Iteration(mayBlock bool) bool
	// Wakeup interrupts a blocking Iteration. Safe from any goroutine.
	Wakeup()
	// Run iterates until Quit is called or ctx is done.
	Run(ctx context.Context) error
	// Quit makes Run return after the current iteration.
	Quit()
}

var (
	// ErrLoopClosed is returned when using a loop after Close.
	ErrLoopClosed = errors.New("gmain: loop is closed")

	// ErrLoopRunning is returned by a reentrant or concurrent Run.
	ErrLoopRunning = errors.New("gmain: loop is already running")

	// ErrUnsupported is returned where fd watches are not available.
	ErrUnsupported = errors.New("gmain: fd watches are not supported on this platform")
)

// String returns a compact representation such as "IN|HUP".
func (c IOCondition) String() string {
	if c == 0 {
		return "0"
	}
	names := []struct {
		bit  IOCondition
		name string
	}{
		{IOIn, "IN"}, {IOPri, "PRI"}, {IOOut, "OUT"},
		{IOErr, "ERR"}, {IOHup, "HUP"}, {IONval, "NVAL"},
	}
	s := ""
	for _, n := range names {
		if c&n.bit != 0 {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	return s
}
