package lock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/canopy/internal/graphstore"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestLocal_MutualExclusion(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	h, err := l.TryLock(ctx, "k1", 2*time.Second)
	require.NoError(t, err)

	var entered int32
	done := make(chan struct{})
	go func() {
		h2, err := l.TryLock(ctx, "k1", 2*time.Second)
		if err == nil {
			atomic.AddInt32(&entered, 1)
			_ = l.Unlock(ctx, h2)
		}
		close(done)
	}()

	// The second goroutine must not acquire the lock while it's held.
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&entered))

	require.NoError(t, l.Unlock(ctx, h))
	<-done
	assert.EqualValues(t, 1, atomic.LoadInt32(&entered))
}

func TestLocal_UnlockWithoutHoldingReturnsErrNotHeld(t *testing.T) {
	l := NewLocal()
	err := l.Unlock(context.Background(), Handle{Key: "missing"})
	assert.ErrorIs(t, err, ErrNotHeld)
}

func TestStoreBacked_TakesOverExpiredLock(t *testing.T) {
	store := graphstore.NewMemStore()
	ctx := context.Background()

	var executed []string
	store.OnQuery(func(ctx context.Context, query string, params map[string]any) ([]graphstore.Row, error) {
		return []graphstore.Row{{
			"owner":     "stale-owner",
			"expiresAt": time.Now().Add(-1 * time.Minute),
		}}, nil
	})
	store.OnExecute(func(ctx context.Context, query string, params map[string]any) error {
		executed = append(executed, query)
		return nil
	})

	locker := NewStoreBacked(store, testLogger(), 3)
	h, err := locker.TryLock(ctx, "entity-resolution:acme:company", time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, h.Owner)
	assert.Len(t, executed, 1)
}

func TestStoreBacked_FailsWhenLockStillFresh(t *testing.T) {
	store := graphstore.NewMemStore()
	ctx := context.Background()

	store.OnQuery(func(ctx context.Context, query string, params map[string]any) ([]graphstore.Row, error) {
		return []graphstore.Row{{
			"owner":     "live-owner",
			"expiresAt": time.Now().Add(time.Minute),
		}}, nil
	})

	locker := NewStoreBacked(store, testLogger(), 1)
	_, err := locker.TryLock(ctx, "entity-resolution:acme:company", 5*time.Millisecond)
	assert.Error(t, err)
}

func TestMergeKey_OrdersPairRegardlessOfArgumentOrder(t *testing.T) {
	assert.Equal(t, MergeKey("a", "b"), MergeKey("b", "a"))
}

