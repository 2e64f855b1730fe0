package goglib

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// LogLevel is a GLib log level (GLogLevelFlags without the flag bits).
type LogLevel uint32

// Log level constants matching GLib's G_LOG_LEVEL_* values. Lower values
// are more severe.
const (
	LogError    LogLevel = 1 << 2 // Fatal in GLib
	LogCritical LogLevel = 1 << 3
	LogWarning  LogLevel = 1 << 4
	LogMessage  LogLevel = 1 << 5
	LogInfo     LogLevel = 1 << 6
	LogDebug    LogLevel = 1 << 7

	logLevelMask LogLevel = 0xfc
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l.severity() {
	case LogError:
		return "error"
	case LogCritical:
		return "critical"
	case LogWarning:
		return "warning"
	case LogMessage:
		return "message"
	case LogInfo:
		return "info"
	case LogDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// severity keeps the most severe level bit.
func (l LogLevel) severity() LogLevel {
	l &= logLevelMask
	return l & -l
}

// Logrus returns the logrus level used when a GLib message is routed to
// logrus. GLib errors abort the process on their own, so they map to
// logrus' error level rather than fatal.
func (l LogLevel) Logrus() logrus.Level {
	switch l.severity() {
	case LogError, LogCritical:
		return logrus.ErrorLevel
	case LogWarning:
		return logrus.WarnLevel
	case LogMessage, LogInfo:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}

// LogCallback receives each routed GLib log message.
type LogCallback func(domain string, level LogLevel, message string)

var (
	logMu        sync.Mutex
	logCallback  LogCallback
	logThreshold = LogDebug
)

// SetLogLevel drops routed GLib messages less severe than level.
func SetLogLevel(level LogLevel) {
	logMu.Lock()
	defer logMu.Unlock()
	if s := level.severity(); s != 0 {
		logThreshold = s
	}
}

// routeLog delivers one GLib message to the callback or to logrus.
func routeLog(domain string, level LogLevel, message string) {
	logMu.Lock()
	cb := logCallback
	threshold := logThreshold
	logMu.Unlock()

	sev := level.severity()
	if sev == 0 || sev > threshold {
		return
	}
	if cb != nil {
		cb(domain, sev, message)
		return
	}
	logrus.WithFields(logrus.Fields{
		"package": "glib",
		"domain":  domain,
	}).Log(sev.Logrus(), message)
}
