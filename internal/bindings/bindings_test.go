//go:build !ios && !android && (amd64 || arm64)

package bindings

import (
	"runtime"
	"testing"
	"unsafe"
)

func TestLibrarySearchPaths(t *testing.T) {
	paths := LibrarySearchPaths()
	if len(paths) == 0 {
		t.Error("LibrarySearchPaths should return at least one path")
	}
}

func TestAddSearchPathComesFirst(t *testing.T) {
	dir := t.TempDir()
	AddSearchPath(dir)
	AddSearchPath("")

	paths := LibrarySearchPaths()
	found := false
	for _, p := range paths {
		if p == dir {
			found = true
			break
		}
		if p == "" {
			t.Fatal("empty search path should be ignored")
		}
	}
	if !found {
		t.Errorf("expected %s in search paths", dir)
	}
}

func TestFindLibraryVersions(t *testing.T) {
	// GLib may not be installed; only check that the lookup is well behaved.
	_, err := FindLibrary("gobject-2.0", []int{0})
	if err != nil {
		t.Logf("GLib not found (expected if not installed): %v", err)
	}
}

func TestGoString(t *testing.T) {
	if got := GoString(0); got != "" {
		t.Errorf("GoString(0) = %q, want empty", got)
	}
	buf := []byte("hello\x00world")
	if got := GoString(uintptr(unsafe.Pointer(&buf[0]))); got != "hello" {
		t.Errorf("GoString = %q, want %q", got, "hello")
	}
	runtime.KeepAlive(buf)
}

func TestReadUintptr(t *testing.T) {
	words := []uintptr{0x1111, 0x2222, 0x3333}
	base := uintptr(unsafe.Pointer(&words[0]))
	size := unsafe.Sizeof(words[0])
	if got := ReadUintptr(base, 0); got != 0x1111 {
		t.Errorf("ReadUintptr(base, 0) = %#x, want 0x1111", got)
	}
	if got := ReadUintptr(base, 2*size); got != 0x3333 {
		t.Errorf("ReadUintptr(base, 2*size) = %#x, want 0x3333", got)
	}
	if CPointer(base) != unsafe.Pointer(&words[0]) {
		t.Error("CPointer does not round-trip the address")
	}
	runtime.KeepAlive(words)
}

// Integration test - only runs if GLib is available
func TestLoadGLib(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping GLib load test in short mode")
	}

	if err := Load(); err != nil {
		t.Skipf("GLib not available: %v", err)
	}

	if !IsLoaded() {
		t.Error("IsLoaded should be true after successful Load")
	}

	major, minor, micro := Version()
	if major != 2 {
		t.Errorf("expected GLib 2.x, got %d.%d.%d", major, minor, micro)
	}
	t.Logf("GLib loaded: %d.%d.%d", major, minor, micro)
}
