package turnpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_DispatchNonBlocking(t *testing.T) {
	pool := New(2, 10)
	pool.Start(context.Background())
	defer pool.Stop()

	start := time.Now()
	ok := pool.TryDispatch(Job{
		Key: ConversationKey(1, "a"),
		Handler: func(ctx context.Context) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	})
	elapsed := time.Since(start)

	assert.True(t, ok)
	assert.Less(t, elapsed, 10*time.Millisecond)
}

func TestPool_SameConversationRunsInOrder(t *testing.T) {
	pool := New(4, 100)
	pool.Start(context.Background())

	var (
		mu      sync.Mutex
		results []int
	)
	for i := 1; i <= 5; i++ {
		val := i
		require.True(t, pool.TryDispatch(Job{
			Key: ConversationKey(7, "conv"),
			Handler: func(ctx context.Context) error {
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				results = append(results, val)
				mu.Unlock()
				return nil
			},
		}))
	}

	pool.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, results)
}

func TestPool_RespectsMaxWorkers(t *testing.T) {
	maxWorkers := 3
	pool := New(maxWorkers, 100)
	pool.Start(context.Background())

	var active, maxActive int32
	for i := 0; i < 10; i++ {
		pool.TryDispatch(Job{
			Key: ConversationKey(int64(i), "c"),
			Handler: func(ctx context.Context) error {
				current := atomic.AddInt32(&active, 1)
				for {
					seen := atomic.LoadInt32(&maxActive)
					if current <= seen || atomic.CompareAndSwapInt32(&maxActive, seen, current) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			},
		})
	}
	pool.Stop()

	assert.LessOrEqual(t, atomic.LoadInt32(&maxActive), int32(maxWorkers))
}

func TestPool_StopFinishesQueuedTurns(t *testing.T) {
	pool := New(2, 10)
	pool.Start(context.Background())

	var completed int32
	for i := 0; i < 4; i++ {
		pool.TryDispatch(Job{
			Key: ConversationKey(int64(i), "c"),
			Handler: func(ctx context.Context) error {
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&completed, 1)
				return nil
			},
		})
	}
	pool.Stop()

	assert.Equal(t, int32(4), atomic.LoadInt32(&completed))
	assert.False(t, pool.TryDispatch(Job{Key: "late", Handler: func(context.Context) error { return nil }}))
}

func TestPool_RejectsWhenQueueFull(t *testing.T) {
	pool := New(1, 1)
	pool.Start(context.Background())
	defer pool.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	blocker := func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}
	noop := func(ctx context.Context) error { return nil }

	require.True(t, pool.TryDispatch(Job{Key: "a", Handler: blocker}))
	<-started
	require.True(t, pool.TryDispatch(Job{Key: "b", Handler: noop}))
	assert.False(t, pool.TryDispatch(Job{Key: "c", Handler: noop}))

	close(release)
	assert.Equal(t, int64(1), pool.Stats().TotalDropped)
}

func TestPool_CountsErrorsAndPanics(t *testing.T) {
	pool := New(1, 10)
	pool.Start(context.Background())

	pool.TryDispatch(Job{Key: "a", Handler: func(ctx context.Context) error { return errors.New("boom") }})
	pool.TryDispatch(Job{Key: "b", Handler: func(ctx context.Context) error { panic("boom") }})
	pool.TryDispatch(Job{Key: "c", Handler: func(ctx context.Context) error { return nil }})
	pool.Stop()

	stats := pool.Stats()
	assert.Equal(t, int64(3), stats.TotalProcessed)
	assert.Equal(t, int64(2), stats.TotalErrors)
}

func TestPool_ConsistentSharding(t *testing.T) {
	pool := New(4, 100)
	key := ConversationKey(42, "chat123")

	shard := pool.shardFor(key)
	assert.Equal(t, shard, pool.shardFor(key))
	assert.GreaterOrEqual(t, shard, 0)
	assert.Less(t, shard, 4)
}
