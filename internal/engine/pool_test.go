package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_PerKeyOrdering(t *testing.T) {
	var mu sync.Mutex
	got := map[string][]int{}
	done := make(chan struct{}, 64)

	pool := NewPool(4, 64, func(ctx context.Context, payload interface{}) {
		item := payload.([2]interface{})
		key := item[0].(string)
		seq := item[1].(int)
		mu.Lock()
		got[key] = append(got[key], seq)
		mu.Unlock()
		done <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	keys := []string{"order:1", "order:2", "order:3"}
	total := 0
	for _, key := range keys {
		for seq := 0; seq < 10; seq++ {
			require.True(t, pool.Submit(key, [2]interface{}{key, seq}))
			total++
		}
	}

	for i := 0; i < total; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for pool to drain")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for _, key := range keys {
		require.Len(t, got[key], 10)
		for seq := 0; seq < 10; seq++ {
			assert.Equal(t, seq, got[key][seq], "events for one key must process in arrival order")
		}
	}
}

func TestPool_SaturationRejects(t *testing.T) {
	block := make(chan struct{})
	pool := NewPool(1, 2, func(ctx context.Context, payload interface{}) {
		<-block
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer close(block)
	pool.Start(ctx)

	// First job occupies the worker, the next two fill the queue.
	require.True(t, pool.Submit("k", 0))
	// Give the worker a beat to pick up the first job.
	time.Sleep(10 * time.Millisecond)
	require.True(t, pool.Submit("k", 1))
	require.True(t, pool.Submit("k", 2))

	assert.False(t, pool.Submit("k", 3), "a saturated partition rejects instead of blocking")
}
