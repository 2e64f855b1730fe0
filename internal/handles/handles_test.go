package handles

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookup(t *testing.T) {
	type testData struct {
		Name  string
		Value int
	}

	data := &testData{Name: "test", Value: 42}
	handle := Register(data)
	require.NotZero(t, handle)

	got, ok := Lookup(handle).(*testData)
	require.True(t, ok, "Lookup returned wrong type")
	assert.Same(t, data, got)

	assert.Same(t, data, Unregister(handle))
	assert.Nil(t, Lookup(handle))
}

func TestLookupNonExistent(t *testing.T) {
	assert.Nil(t, Lookup(999999))
	assert.Nil(t, Unregister(999999))
}

func TestTableIDsAreNeverReused(t *testing.T) {
	var tab Table[string]

	a := tab.Register("a")
	_, ok := tab.Unregister(a)
	require.True(t, ok)

	b := tab.Register("b")
	assert.NotEqual(t, a, b)

	_, ok = tab.Lookup(a)
	assert.False(t, ok, "stale id must not resolve")

	v, ok := tab.Lookup(b)
	require.True(t, ok)
	assert.Equal(t, "b", v)
	assert.Equal(t, 1, tab.Len())
}

func TestTableConcurrentAccess(t *testing.T) {
	const numGoroutines = 64
	const numOps = 100

	var tab Table[int]
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				h := tab.Register(id*numOps + j)
				v, ok := tab.Lookup(h)
				if !ok || v != id*numOps+j {
					t.Errorf("Lookup(%d) = %d, %v", h, v, ok)
				}
				tab.Unregister(h)
			}
		}(i)
	}

	wg.Wait()
	assert.Zero(t, tab.Len())
}

func TestHandlesAreUnique(t *testing.T) {
	seen := make(map[uintptr]bool)

	for i := 0; i < 1000; i++ {
		h := Register(i)
		if seen[h] {
			t.Errorf("Handle %d was returned twice", h)
		}
		seen[h] = true
	}

	for h := range seen {
		Unregister(h)
	}
}
