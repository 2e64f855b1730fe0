package goglib

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/obinnaokechukwu/goglib/internal/logging"
)

// Environment variables read by ConfigFromEnv.
const (
	// EnvLibraryPath lists extra directories searched for the GLib shared
	// libraries, separated by the OS path list separator.
	EnvLibraryPath = "GOGLIB_LIBRARY_PATH"
	// EnvLogLevel is a logrus level name such as "debug" or "warning".
	EnvLogLevel = "GOGLIB_LOG_LEVEL"
	// EnvRouteNativeLog enables routing GLib's own log output into logrus.
	EnvRouteNativeLog = "GOGLIB_ROUTE_NATIVE_LOG"
)

// Config controls library loading and logging.
type Config struct {
	// LibraryPaths are searched before the platform defaults.
	LibraryPaths []string
	// LogLevel is applied to the standard logrus logger.
	LogLevel logrus.Level
	// RouteNativeLog installs a GLib default log handler that forwards to
	// logrus (or to the callback set with SetLogCallback).
	RouteNativeLog bool
}

// DefaultConfig returns the configuration used by Init.
func DefaultConfig() Config {
	return Config{
		LogLevel:       logrus.InfoLevel,
		RouteNativeLog: false,
	}
}

// ConfigFromEnv returns DefaultConfig with GOGLIB_* overrides applied.
// Invalid values are logged and ignored.
func ConfigFromEnv() Config {
	c := DefaultConfig()
	applyEnvironmentOverrides(&c)
	return c
}

func applyEnvironmentOverrides(c *Config) {
	parseLibraryPath(c)
	parseLogLevel(c)
	parseRouteNativeLog(c)
}

func parseLibraryPath(c *Config) {
	if v := os.Getenv(EnvLibraryPath); v != "" {
		for _, dir := range filepath.SplitList(v) {
			if dir != "" {
				c.LibraryPaths = append(c.LibraryPaths, dir)
			}
		}
	}
}

func parseLogLevel(c *Config) {
	v := os.Getenv(EnvLogLevel)
	if v == "" {
		return
	}
	lvl, ok := logging.ParseLevel(v)
	if !ok {
		logging.For("goglib", "parseLogLevel").WithFields(logrus.Fields{
			"env_var":     EnvLogLevel,
			"value":       v,
			"using_value": c.LogLevel.String(),
		}).Warn("Failed to parse log level, using default")
		return
	}
	c.LogLevel = lvl
}

func parseRouteNativeLog(c *Config) {
	v := os.Getenv(EnvRouteNativeLog)
	if v == "" {
		return
	}
	route, err := strconv.ParseBool(v)
	if err != nil {
		logging.For("goglib", "parseRouteNativeLog").WithFields(logrus.Fields{
			"env_var":     EnvRouteNativeLog,
			"value":       v,
			"error":       err.Error(),
			"using_value": c.RouteNativeLog,
		}).Warn("Failed to parse native log routing flag, using default")
		return
	}
	c.RouteNativeLog = route
}
