//go:build unix && !linux

package pipe

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func newCloexec() (Pipe, error) {
	// Hold ForkLock so no child is forked between pipe(2) and FD_CLOEXEC.
	syscall.ForkLock.RLock()
	defer syscall.ForkLock.RUnlock()

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return Pipe{}, err
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	return Pipe{R: fds[0], W: fds[1]}, nil
}
