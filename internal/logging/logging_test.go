package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestForTagsEntries(t *testing.T) {
	var buf bytes.Buffer
	prev := logrus.StandardLogger().Out
	logrus.SetOutput(&buf)
	defer logrus.SetOutput(prev)

	For("dispatch", "Emit").Warn("short write")

	out := buf.String()
	assert.Contains(t, out, "package=dispatch")
	assert.Contains(t, out, "function=Emit")
	assert.Contains(t, out, "short write")
}

func TestParseLevel(t *testing.T) {
	lvl, ok := ParseLevel("debug")
	assert.True(t, ok)
	assert.Equal(t, logrus.DebugLevel, lvl)

	lvl, ok = ParseLevel("loud")
	assert.False(t, ok)
	assert.Equal(t, logrus.InfoLevel, lvl)
}
