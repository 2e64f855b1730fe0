//go:build unix

// Package pipe creates the close-on-exec pipes used for loop wakeups and
// cross-goroutine dispatch.
package pipe

import (
	"golang.org/x/sys/unix"
)

// Pipe holds the two ends of a unidirectional pipe.
type Pipe struct {
	R int
	W int
}

// New returns a pipe whose ends are both close-on-exec. The read end is
// made non-blocking when nonblockRead is set, the write end when
// nonblockWrite is set.
func New(nonblockRead, nonblockWrite bool) (Pipe, error) {
	p, err := newCloexec()
	if err != nil {
		return Pipe{}, err
	}
	if nonblockRead {
		if err := unix.SetNonblock(p.R, true); err != nil {
			p.Close()
			return Pipe{}, err
		}
	}
	if nonblockWrite {
		if err := unix.SetNonblock(p.W, true); err != nil {
			p.Close()
			return Pipe{}, err
		}
	}
	return p, nil
}

// Close closes both ends, retrying on EINTR.
func (p Pipe) Close() error {
	err := closeFD(p.R)
	if werr := closeFD(p.W); err == nil {
		err = werr
	}
	return err
}

func closeFD(fd int) error {
	if fd < 0 {
		return nil
	}
	for {
		err := unix.Close(fd)
		if err != unix.EINTR {
			return err
		}
	}
}

// Write writes b with a single write(2), retrying only on EINTR.
func Write(fd int, b []byte) (int, error) {
	for {
		n, err := unix.Write(fd, b)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

// Read performs a single read(2), retrying only on EINTR.
func Read(fd int, b []byte) (int, error) {
	for {
		n, err := unix.Read(fd, b)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}
