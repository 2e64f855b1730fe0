package goglib

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withLogCallback installs cb for routeLog without touching GLib.
func withLogCallback(t *testing.T, cb LogCallback) {
	t.Helper()
	logMu.Lock()
	prevCB, prevThreshold := logCallback, logThreshold
	logCallback = cb
	logMu.Unlock()
	t.Cleanup(func() {
		logMu.Lock()
		logCallback, logThreshold = prevCB, prevThreshold
		logMu.Unlock()
	})
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "error", LogError.String())
	assert.Equal(t, "critical", LogCritical.String())
	assert.Equal(t, "warning", LogWarning.String())
	assert.Equal(t, "message", LogMessage.String())
	assert.Equal(t, "info", LogInfo.String())
	assert.Equal(t, "debug", LogDebug.String())
	assert.Equal(t, "unknown", LogLevel(0).String())

	// Flag bits and extra levels do not hide the most severe one.
	assert.Equal(t, "warning", (LogWarning | LogDebug | 1).String())
}

func TestLogLevelLogrus(t *testing.T) {
	assert.Equal(t, logrus.ErrorLevel, LogError.Logrus())
	assert.Equal(t, logrus.ErrorLevel, LogCritical.Logrus())
	assert.Equal(t, logrus.WarnLevel, LogWarning.Logrus())
	assert.Equal(t, logrus.InfoLevel, LogMessage.Logrus())
	assert.Equal(t, logrus.InfoLevel, LogInfo.Logrus())
	assert.Equal(t, logrus.DebugLevel, LogDebug.Logrus())
}

type logged struct {
	domain  string
	level   LogLevel
	message string
}

func TestRouteLogCallbackAndThreshold(t *testing.T) {
	var got []logged
	withLogCallback(t, func(domain string, level LogLevel, message string) {
		got = append(got, logged{domain, level, message})
	})

	routeLog("GLib", LogDebug, "verbose")
	routeLog("GLib-GObject", LogCritical|1, "assertion failed")
	routeLog("GLib", 0, "no level")
	require.Len(t, got, 2)
	assert.Equal(t, logged{"GLib", LogDebug, "verbose"}, got[0])
	assert.Equal(t, logged{"GLib-GObject", LogCritical, "assertion failed"}, got[1])

	got = nil
	SetLogLevel(LogWarning)
	routeLog("GLib", LogInfo, "dropped")
	routeLog("GLib", LogMessage, "dropped too")
	routeLog("GLib", LogWarning, "kept")
	routeLog("GLib", LogError, "kept too")
	assert.Equal(t, []logged{
		{"GLib", LogWarning, "kept"},
		{"GLib", LogError, "kept too"},
	}, got)

	// A level without any known bit leaves the threshold alone.
	SetLogLevel(1)
	routeLog("GLib", LogInfo, "still dropped")
	assert.Len(t, got, 2)
}

func TestRouteLogToLogrus(t *testing.T) {
	withLogCallback(t, nil)
	hook := logtest.NewGlobal()

	routeLog("Gtk", LogWarning, "widget is unrealized")
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "widget is unrealized", entry.Message)
	assert.Equal(t, "glib", entry.Data["package"])
	assert.Equal(t, "Gtk", entry.Data["domain"])
}
