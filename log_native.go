//go:build !ios && !android && (amd64 || arm64)

package goglib

import (
	"github.com/ebitengine/purego"

	"github.com/obinnaokechukwu/goglib/exception"
	"github.com/obinnaokechukwu/goglib/internal/bindings"
)

var (
	gLogSetDefaultHandler func(fn, data uintptr) uintptr

	logCBHandle   uintptr
	logPrevious   uintptr
	logRouting    bool
	logBindingErr error
	logBound      bool
)

func bindLog() error {
	if logBound {
		return logBindingErr
	}
	logBound = true
	if err := bindings.Load(); err != nil {
		logBindingErr = err
		return err
	}
	purego.RegisterLibFunc(&gLogSetDefaultHandler, bindings.LibGLib(), "g_log_set_default_handler")
	return nil
}

// SetLogCallback routes GLib's default log output to cb. A nil cb routes it
// to logrus. Messages are filtered by SetLogLevel first.
func SetLogCallback(cb LogCallback) error {
	logMu.Lock()
	defer logMu.Unlock()
	if err := bindLog(); err != nil {
		return err
	}
	logCallback = cb
	installLogHandlerLocked()
	return nil
}

// RestoreNativeLog gives GLib back the default handler that was in place
// before routing started.
func RestoreNativeLog() error {
	logMu.Lock()
	defer logMu.Unlock()
	if err := bindLog(); err != nil {
		return err
	}
	if !logRouting {
		return nil
	}
	gLogSetDefaultHandler(logPrevious, 0)
	logRouting = false
	logCallback = nil
	return nil
}

func installLogHandlerLocked() {
	if logRouting {
		return
	}
	if logCBHandle == 0 {
		logCBHandle = purego.NewCallback(logCallbackTrampoline)
	}
	logPrevious = gLogSetDefaultHandler(logCBHandle, 0)
	logRouting = true
}

// logCallbackTrampoline is called by GLib and forwards to routeLog.
// Signature: void (*)(const gchar *log_domain, GLogLevelFlags log_level,
// const gchar *message, gpointer user_data)
func logCallbackTrampoline(_ purego.CDecl, domain uintptr, level uint32, message uintptr, _ uintptr) {
	exception.Guard(func() {
		routeLog(bindings.GoString(domain), LogLevel(level), bindings.GoString(message))
	})
}
