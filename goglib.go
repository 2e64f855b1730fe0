//go:build !ios && !android && (amd64 || arm64)

// Package goglib binds GLib's reference-counted object model to Go without
// CGO, using purego.
//
// Every native instance seen from Go has exactly one wrapper, produced by a
// Registry from factories keyed by runtime type. Wrappers are held through
// Ref (owning) and WeakRef (observing). Notifications are carried from any
// goroutine to a loop-owning goroutine by package dispatch.
//
// The object model itself is abstracted by gobject.Runtime; GLib is one
// implementation and gobject.MemRuntime is a pure-Go one.
package goglib

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/obinnaokechukwu/goglib/gobject"
	"github.com/obinnaokechukwu/goglib/internal/bindings"
	"github.com/obinnaokechukwu/goglib/internal/logging"
)

// ErrNotLoaded indicates the GLib libraries are not loaded.
var ErrNotLoaded = bindings.ErrNotLoaded

// Init loads the GLib libraries. It is safe to call multiple times.
func Init() error {
	return bindings.Load()
}

// InitWithConfig applies c, then loads the GLib libraries. Library paths
// only take effect before the first successful load.
func InitWithConfig(c Config) error {
	for _, dir := range c.LibraryPaths {
		bindings.AddSearchPath(dir)
	}
	logrus.SetLevel(c.LogLevel)

	if err := bindings.Load(); err != nil {
		return err
	}
	logging.For("goglib", "InitWithConfig").WithFields(logrus.Fields{
		"library_paths":    c.LibraryPaths,
		"log_level":        c.LogLevel.String(),
		"route_native_log": c.RouteNativeLog,
	}).Debug("GLib loaded")

	if c.RouteNativeLog {
		return SetLogCallback(nil)
	}
	return nil
}

// IsLoaded returns true if the GLib libraries have been loaded.
func IsLoaded() bool {
	return bindings.IsLoaded()
}

// Version returns the loaded GLib version, or zeros before Init.
func Version() (major, minor, micro uint32) {
	return bindings.Version()
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error
)

// DefaultRegistry returns the process-wide registry over GLib. Every
// GObject handle gets at least a plain *Object wrapper; register more
// specific factories on it for derived types.
func DefaultRegistry() (*Registry, error) {
	defaultOnce.Do(func() {
		rt, err := gobject.NewGLibRuntime()
		if err != nil {
			defaultErr = err
			return
		}
		objType := rt.TypeFromName("GObject")
		if objType == 0 {
			defaultErr = fmt.Errorf("goglib: GObject type is not registered")
			return
		}
		reg := NewRegistry(rt)
		reg.RegisterFactory(objType, func(base *Object) ObjectWrapper { return base })
		defaultReg = reg
	})
	return defaultReg, defaultErr
}
