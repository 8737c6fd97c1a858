package registry

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	r := New[string]()

	_, ok := r.Get("room-1")
	assert.False(t, ok)

	r.Add("room-1", "session-a")
	v, ok := r.Get("room-1")
	assert.True(t, ok)
	assert.Equal(t, "session-a", v)
	assert.Equal(t, 1, r.Len())

	v, loaded := r.GetOrAdd("room-1", func() string { return "session-b" })
	assert.True(t, loaded)
	assert.Equal(t, "session-a", v)

	v, loaded = r.GetOrAdd("room-2", func() string { return "session-c" })
	assert.False(t, loaded)
	assert.Equal(t, "session-c", v)

	seen := map[string]string{}
	r.Range(func(name, value string) bool {
		seen[name] = value
		return true
	})
	assert.Equal(t, map[string]string{"room-1": "session-a", "room-2": "session-c"}, seen)

	r.Del("room-1")
	_, ok = r.Get("room-1")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryGetOrAddIsExclusive(t *testing.T) {
	r := New[int]()
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, loaded := r.GetOrAdd("room", func() int { return i }); !loaded {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}
