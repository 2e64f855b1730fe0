//go:build !ios && !android && (amd64 || arm64)

// Package platform provides platform detection and capabilities for goglib.
// It determines what features are available based on the operating system and architecture.
package platform

import (
	"fmt"
	"runtime"
	"unsafe"
)

// SupportsUnixFD indicates whether file-descriptor watches (pipes, poll(2),
// g_unix_fd_source_new) are available. Windows has no usable equivalent.
const SupportsUnixFD = runtime.GOOS != "windows"

// Is64Bit indicates whether the platform is 64-bit.
// GValue and GParamSpec field offsets used by goglib assume 64-bit pointers.
const Is64Bit = unsafe.Sizeof(uintptr(0)) == 8

// LibraryExtension is the file extension for shared libraries on this platform.
var LibraryExtension string

// LibraryPrefix is the prefix for shared library names on this platform.
// GLib keeps the "lib" prefix even on Windows.
var LibraryPrefix = "lib"

func init() {
	switch runtime.GOOS {
	case "darwin":
		LibraryExtension = ".dylib"
	case "windows":
		LibraryExtension = ".dll"
	default: // linux, freebsd, etc.
		LibraryExtension = ".so"
	}
}

// FormatLibraryName returns the platform-specific library filename.
// If version is negative, returns the unversioned library name.
//
// Examples:
//   - Linux:   FormatLibraryName("glib-2.0", 0) -> "libglib-2.0.so.0"
//   - macOS:   FormatLibraryName("glib-2.0", 0) -> "libglib-2.0.0.dylib"
//   - Windows: FormatLibraryName("glib-2.0", 0) -> "libglib-2.0-0.dll"
func FormatLibraryName(name string, version int) string {
	if version < 0 {
		return fmt.Sprintf("%s%s%s", LibraryPrefix, name, LibraryExtension)
	}
	switch runtime.GOOS {
	case "darwin":
		return fmt.Sprintf("%s%s.%d%s", LibraryPrefix, name, version, LibraryExtension)
	case "windows":
		return fmt.Sprintf("%s%s-%d%s", LibraryPrefix, name, version, LibraryExtension)
	default: // linux, freebsd
		return fmt.Sprintf("%s%s%s.%d", LibraryPrefix, name, LibraryExtension, version)
	}
}

// GOOS returns the current operating system.
func GOOS() string {
	return runtime.GOOS
}

// GOARCH returns the current architecture.
func GOARCH() string {
	return runtime.GOARCH
}
