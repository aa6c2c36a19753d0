package kv

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_GetSet(t *testing.T) {
	s := New[string, int]()

	// Set and get
	s.Set("foo", 42)
	val, ok := s.Get("foo")
	assert.True(t, ok)
	assert.Equal(t, 42, val)

	// Get non-existent
	_, ok = s.Get("bar")
	assert.False(t, ok)
}

func TestStore_Has(t *testing.T) {
	s := New[string, struct{}]()
	s.Set("seen", struct{}{})

	assert.True(t, s.Has("seen"))
	assert.False(t, s.Has("unseen"))
}

func TestStore_Delete(t *testing.T) {
	s := New[string, string]()
	s.Set("key", "value")

	s.Delete("key")

	_, ok := s.Get("key")
	assert.False(t, ok)
}

func TestStore_Clear(t *testing.T) {
	s := New[string, int]()
	s.Set("a", 1)
	s.Set("b", 2)

	s.Clear()

	assert.Equal(t, 0, s.Len())
}

func TestStore_Keys(t *testing.T) {
	s := New[string, int]()
	s.Set("a", 1)
	s.Set("b", 2)

	keys := s.Keys()
	assert.Len(t, keys, 2)
	assert.Contains(t, keys, "a")
	assert.Contains(t, keys, "b")
}

func TestStore_DeleteFunc(t *testing.T) {
	s := New[string, int]()
	s.Set("a", 1)
	s.Set("b", 2)
	s.Set("c", 3)

	s.DeleteFunc(func(_ string, v int) bool { return v > 1 })

	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Has("a"))
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New[int, int]()
	var wg sync.WaitGroup

	// Concurrent writes
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Set(n, n*2)
		}(i)
	}

	// Concurrent reads
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Get(n)
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 100, s.Len())
}
