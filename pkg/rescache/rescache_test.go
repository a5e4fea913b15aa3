package rescache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetMissThenPutThenGetHit(t *testing.T) {
	c, err := New(10, time.Hour)
	require.NoError(t, err)

	key := Key{NormalizedName: "acme", Type: "company"}
	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, Result{EntityID: "e1", Outcome: "AUTO_MERGE"})
	result, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "e1", result.EntityID)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c, err := New(10, time.Minute)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.nowFn = func() time.Time { return now }

	key := Key{NormalizedName: "acme", Type: "company"}
	c.Put(key, Result{EntityID: "e1"})

	c.nowFn = func() time.Time { return now.Add(2 * time.Minute) }
	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestCache_OnMergeInvalidatesBothSides(t *testing.T) {
	c, err := New(10, time.Hour)
	require.NoError(t, err)

	k1 := Key{NormalizedName: "acme", Type: "company"}
	k2 := Key{NormalizedName: "acme-inc", Type: "company"}
	c.Put(k1, Result{EntityID: "e1"})
	c.Put(k2, Result{EntityID: "e2"})

	c.OnMerge("e1", "e2")

	_, ok1 := c.Get(k1)
	_, ok2 := c.Get(k2)
	assert.False(t, ok1)
	assert.False(t, ok2)
	assert.Equal(t, 0, c.Len())
}

func TestCache_InvalidateEntityLeavesUnrelatedEntriesIntact(t *testing.T) {
	c, err := New(10, time.Hour)
	require.NoError(t, err)

	k1 := Key{NormalizedName: "acme", Type: "company"}
	k2 := Key{NormalizedName: "widgets", Type: "company"}
	c.Put(k1, Result{EntityID: "e1"})
	c.Put(k2, Result{EntityID: "e2"})

	c.InvalidateEntity("e1")

	_, ok1 := c.Get(k1)
	_, ok2 := c.Get(k2)
	assert.False(t, ok1)
	assert.True(t, ok2)
}
