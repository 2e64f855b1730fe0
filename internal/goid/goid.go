// Package goid reports the identity of the calling goroutine.
//
// goglib uses it where the native library would compare thread identities:
// channel ownership in package dispatch and loop re-entrancy in package gmain.
package goid

import "runtime"

// Get returns the current goroutine's ID, parsed from the "goroutine NNN ["
// header of runtime.Stack. It is only meant for ownership assertions.
func Get() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
