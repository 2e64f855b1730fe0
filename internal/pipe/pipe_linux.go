package pipe

import "golang.org/x/sys/unix"

func newCloexec() (Pipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return Pipe{}, err
	}
	return Pipe{R: fds[0], W: fds[1]}, nil
}
