package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSetDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", []byte("v1")))
	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, m.Delete(ctx, "k"))
	_, ok, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	in := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", in))
	in[0] = 'x'

	got, _, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got, "stored value must not alias the caller's slice")

	got[0] = 'y'
	again, _, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again, "returned value must not alias the store")
}

func TestMemorySetIfAbsent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	claimed, err := m.SetIfAbsent(ctx, "flag", []byte("a"))
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = m.SetIfAbsent(ctx, "flag", []byte("b"))
	require.NoError(t, err)
	assert.False(t, claimed)

	got, _, err := m.Get(ctx, "flag")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got, "losing claim must not overwrite")

	// Delete releases the key for a fresh claim.
	require.NoError(t, m.Delete(ctx, "flag"))
	claimed, err = m.SetIfAbsent(ctx, "flag", []byte("c"))
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestMemorySetIfAbsentConcurrent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := m.SetIfAbsent(ctx, "flag", []byte("1"))
			assert.NoError(t, err)
			if claimed {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners, "exactly one goroutine claims the flag")
}

func TestMemorySubscribe(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var mu sync.Mutex
	var seen []string
	cancel := m.Subscribe("rewards:", func(key string) {
		mu.Lock()
		seen = append(seen, key)
		mu.Unlock()
	})

	require.NoError(t, m.Set(ctx, "rewards:u1", []byte("{}")))
	require.NoError(t, m.Set(ctx, "coupons:u1", []byte("[]")))
	require.NoError(t, m.Delete(ctx, "rewards:u1"))

	mu.Lock()
	assert.Equal(t, []string{"rewards:u1", "rewards:u1"}, seen)
	mu.Unlock()

	cancel()
	require.NoError(t, m.Set(ctx, "rewards:u2", []byte("{}")))
	mu.Lock()
	assert.Len(t, seen, 2, "cancelled subscription stays silent")
	mu.Unlock()
}
