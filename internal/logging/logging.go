// Package logging builds the structured logrus entries used across goglib.
package logging

import (
	"github.com/sirupsen/logrus"
)

// For returns an entry tagged with the package and function that logs.
func For(pkg, function string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"package":  pkg,
		"function": function,
	})
}

// ParseLevel converts a level name such as "debug" or "warning" into a
// logrus level. The boolean is false for an unknown name.
func ParseLevel(name string) (logrus.Level, bool) {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return logrus.InfoLevel, false
	}
	return lvl, true
}
