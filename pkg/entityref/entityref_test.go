package entityref

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainResolver(mergedInto map[string]string) Resolver {
	return func(ctx context.Context, id string) (string, error) {
		for {
			next, ok := mergedInto[id]
			if !ok {
				return id, nil
			}
			id = next
		}
	}
}

func TestEqual_StableAcrossMerge(t *testing.T) {
	ctx := context.Background()
	mergedInto := map[string]string{}
	resolve := chainResolver(mergedInto)

	before := New("entity-a", "company", resolve)

	// entity-a merges into entity-b after the reference was taken.
	mergedInto["entity-a"] = "entity-b"
	after := New("entity-a", "company", resolve)
	target := New("entity-b", "company", resolve)

	eq, err := Equal(ctx, before, target)
	require.NoError(t, err)
	assert.True(t, eq)

	eq2, err := Equal(ctx, after, target)
	require.NoError(t, err)
	assert.True(t, eq2)
}

func TestEqual_DifferentTypesNeverEqual(t *testing.T) {
	ctx := context.Background()
	resolve := chainResolver(nil)

	a := New("entity-a", "company", resolve)
	b := New("entity-a", "product", resolve)

	eq, err := Equal(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestWasMerged_FalseWhenStillCanonical(t *testing.T) {
	ctx := context.Background()
	resolve := chainResolver(nil)
	r := New("entity-a", "company", resolve)

	merged, err := r.WasMerged(ctx)
	require.NoError(t, err)
	assert.False(t, merged)
}

func TestKeyOf_FollowsChainToTerminalID(t *testing.T) {
	ctx := context.Background()
	mergedInto := map[string]string{"entity-a": "entity-b", "entity-b": "entity-c"}
	resolve := chainResolver(mergedInto)

	r := New("entity-a", "company", resolve)
	key, err := KeyOf(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, Key{CurrentID: "entity-c", Type: "company"}, key)
}
