//go:build !ios && !android && (amd64 || arm64)

// Package bindings handles loading the GLib and GObject shared libraries
// and exposes their handles for purego function registration.
package bindings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/goglib/internal/platform"
)

// ErrNotLoaded is returned when GLib functions are called before Load().
var ErrNotLoaded = errors.New("goglib: GLib libraries not loaded; call goglib.Init() first")

// ErrLibraryNotFound is returned when a required GLib library cannot be found.
var ErrLibraryNotFound = errors.New("goglib: GLib library not found")

// Library handles
var (
	libGLib    uintptr
	libGObject uintptr

	loaded   bool
	loadOnce sync.Once
	loadErr  error

	extraMu    sync.Mutex
	extraPaths []string
)

// IsLoaded returns true if GLib libraries have been successfully loaded.
func IsLoaded() bool {
	return loaded
}

// AddSearchPath prepends dir to the library search paths. It only has an
// effect before the first call to Load.
func AddSearchPath(dir string) {
	if dir == "" {
		return
	}
	extraMu.Lock()
	defer extraMu.Unlock()
	extraPaths = append(extraPaths, dir)
}

// Load loads the GLib libraries.
// It is safe to call multiple times; subsequent calls are no-ops.
// Returns an error if libraries cannot be found or loaded.
func Load() error {
	loadOnce.Do(func() {
		loadErr = doLoad()
		if loadErr == nil {
			loaded = true
		}
	})
	return loadErr
}

func doLoad() error {
	var err error

	// gobject links against glib, so glib goes first.
	libGLib, err = loadLibrary("glib-2.0", []int{0})
	if err != nil {
		return fmt.Errorf("loading libglib: %w", err)
	}

	libGObject, err = loadLibrary("gobject-2.0", []int{0})
	if err != nil {
		return fmt.Errorf("loading libgobject: %w", err)
	}

	return nil
}

// loadLibrary attempts to load a library by trying versioned names.
func loadLibrary(name string, versions []int) (uintptr, error) {
	for _, searchPath := range LibrarySearchPaths() {
		for _, ver := range versions {
			fullPath := filepath.Join(searchPath, platform.FormatLibraryName(name, ver))
			if lib, err := tryOpen(fullPath); err == nil {
				return lib, nil
			}
		}

		fullPath := filepath.Join(searchPath, platform.FormatLibraryName(name, -1))
		if lib, err := tryOpen(fullPath); err == nil {
			return lib, nil
		}
	}

	// Let the dynamic linker search on its own.
	for _, ver := range versions {
		if lib, err := tryOpen(platform.FormatLibraryName(name, ver)); err == nil {
			return lib, nil
		}
	}
	if lib, err := tryOpen(platform.FormatLibraryName(name, -1)); err == nil {
		return lib, nil
	}

	return 0, fmt.Errorf("%w: %s", ErrLibraryNotFound, name)
}

// tryOpen attempts to open a library with RTLD_NOW | RTLD_GLOBAL.
// gobject resolves glib symbols through the global namespace.
func tryOpen(path string) (uintptr, error) {
	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return 0, err
	}
	return lib, nil
}

// FindLibrary searches for a library and returns its full path.
// This is useful for diagnostics.
func FindLibrary(name string, versions []int) (string, error) {
	for _, searchPath := range LibrarySearchPaths() {
		for _, ver := range versions {
			fullPath := filepath.Join(searchPath, platform.FormatLibraryName(name, ver))
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, nil
			}
		}
		fullPath := filepath.Join(searchPath, platform.FormatLibraryName(name, -1))
		if _, err := os.Stat(fullPath); err == nil {
			return fullPath, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrLibraryNotFound, name)
}

// LibrarySearchPaths returns platform-specific library search paths.
// Paths added with AddSearchPath come first.
func LibrarySearchPaths() []string {
	extraMu.Lock()
	paths := append([]string(nil), extraPaths...)
	extraMu.Unlock()

	switch runtime.GOOS {
	case "linux":
		if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
			paths = append(paths, filepath.SplitList(ldPath)...)
		}
		paths = append(paths,
			"/usr/lib/x86_64-linux-gnu",
			"/usr/lib/aarch64-linux-gnu",
			"/usr/lib64",
			"/usr/local/lib",
			"/usr/lib",
			"/lib/x86_64-linux-gnu",
			"/lib",
		)

	case "darwin":
		if dyldPath := os.Getenv("DYLD_LIBRARY_PATH"); dyldPath != "" {
			paths = append(paths, filepath.SplitList(dyldPath)...)
		}
		paths = append(paths,
			"/opt/homebrew/lib",              // Apple Silicon
			"/usr/local/lib",                 // Intel
			"/opt/homebrew/opt/glib/lib",     // Homebrew GLib
			"/usr/local/opt/glib/lib",        // Homebrew GLib (Intel)
			"/opt/local/lib",                 // MacPorts
		)

	case "windows":
		if winPath := os.Getenv("PATH"); winPath != "" {
			paths = append(paths, filepath.SplitList(winPath)...)
		}
		if exe, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Dir(exe))
		}
		paths = append(paths,
			"C:\\msys64\\mingw64\\bin",
			"C:\\gtk\\bin",
		)

	case "freebsd":
		if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
			paths = append(paths, filepath.SplitList(ldPath)...)
		}
		paths = append(paths,
			"/usr/local/lib",
			"/usr/lib",
		)
	}

	return paths
}

// Version returns the runtime GLib version read from the library's exported
// glib_major_version, glib_minor_version and glib_micro_version variables.
// Returns zeros if libraries are not loaded.
func Version() (major, minor, micro uint32) {
	if !loaded {
		return 0, 0, 0
	}
	return readUint(libGLib, "glib_major_version"),
		readUint(libGLib, "glib_minor_version"),
		readUint(libGLib, "glib_micro_version")
}

func readUint(lib uintptr, symbol string) uint32 {
	addr, err := purego.Dlsym(lib, symbol)
	if err != nil || addr == 0 {
		return 0
	}
	return *(*uint32)(CPointer(addr))
}

// LibGLib returns the glib library handle.
func LibGLib() uintptr {
	return libGLib
}

// LibGObject returns the gobject library handle.
func LibGObject() uintptr {
	return libGObject
}

// GoString copies a NUL-terminated C string into Go memory.
// A zero pointer yields "".
func GoString(p uintptr) string {
	if p == 0 {
		return ""
	}
	base := CPointer(p)
	n := 0
	for *(*byte)(unsafe.Add(base, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(base), n))
}

// CPointer turns an address of C memory returned by a binding into an
// unsafe.Pointer. addr must not point into Go memory.
func CPointer(addr uintptr) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Pointer(&addr))
}

// ReadUintptr reads the pointer-sized word at addr+off in C memory.
func ReadUintptr(addr, off uintptr) uintptr {
	return *(*uintptr)(unsafe.Add(CPointer(addr), off))
}
