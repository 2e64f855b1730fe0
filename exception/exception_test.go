package exception

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardWithoutPanic(t *testing.T) {
	ran := false
	assert.True(t, Guard(func() { ran = true }))
	assert.True(t, ran)
}

func TestGuardRoutesPanicToNewestHandler(t *testing.T) {
	var older, newer []any
	removeOlder := AddHandler(func(v any) { older = append(older, v) })
	defer removeOlder()
	removeNewer := AddHandler(func(v any) { newer = append(newer, v) })
	defer removeNewer()

	boom := errors.New("boom")
	assert.False(t, Guard(func() { panic(boom) }))

	require.Len(t, newer, 1)
	assert.Equal(t, boom, newer[0])
	assert.Empty(t, older)
}

func TestRepanicFallsThroughToPreviousHandler(t *testing.T) {
	var got []any
	removeOlder := AddHandler(func(v any) { got = append(got, v) })
	defer removeOlder()
	removeNewer := AddHandler(func(v any) { panic(v) })
	defer removeNewer()

	InvokeAll("value")
	assert.Equal(t, []any{"value"}, got)
}

func TestRemoveHandler(t *testing.T) {
	calls := 0
	remove := AddHandler(func(any) { calls++ })
	remove()
	remove()

	var buf bytes.Buffer
	prev := logrus.StandardLogger().Out
	logrus.SetOutput(&buf)
	defer logrus.SetOutput(prev)

	InvokeAll("nobody listens")
	assert.Zero(t, calls)
	assert.Contains(t, buf.String(), "unhandled panic in callback")
}
