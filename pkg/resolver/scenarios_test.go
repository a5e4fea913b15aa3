package resolver

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/canopy/internal/graphstore"
	"github.com/Ramsey-B/canopy/pkg/model"
)

// fakeGraph is a minimal in-memory Entity table wired onto a MemStore,
// just enough to drive Resolve end to end: exact normalizedName lookup,
// id lookup, the blocking-key scan, and the full-scan fallback. Every
// other query (the active-entity count, synonym lookup) gets MemStore's
// "no rows" answer; a missing count reads as 0, which keeps the
// full-scan fallback enabled.
type fakeGraph struct {
	mu       sync.Mutex
	entities map[string]map[string]any
}

func newFakeGraphStore() *graphstore.MemStore {
	g := &fakeGraph{entities: map[string]map[string]any{}}
	store := graphstore.NewMemStore()

	store.OnExecute(func(ctx context.Context, query string, params map[string]any) error {
		if !strings.Contains(query, "CREATE (e:Entity {") {
			return nil
		}
		id, _ := params["id"].(string)
		props := make(map[string]any, len(params))
		for k, v := range params {
			props[k] = v
		}
		if bk, ok := props["blockingKeys"].([]string); ok {
			asAny := make([]any, len(bk))
			for i, s := range bk {
				asAny[i] = s
			}
			props["blockingKeys"] = asAny
		}
		g.mu.Lock()
		g.entities[id] = props
		g.mu.Unlock()
		return nil
	})

	store.OnQuery(func(ctx context.Context, query string, params map[string]any) ([]graphstore.Row, error) {
		g.mu.Lock()
		defer g.mu.Unlock()

		switch {
		case strings.Contains(query, "MATCH (e:Entity {normalizedName:"):
			name, _ := params["name"].(string)
			typ, _ := params["type"].(string)
			for _, props := range g.entities {
				if props["normalizedName"] == name && props["type"] == typ && props["status"] == "ACTIVE" {
					return []graphstore.Row{{"e": props}}, nil
				}
			}
			return nil, nil

		case strings.Contains(query, "MATCH (e:Entity {id: $id}) RETURN e"):
			id, _ := params["id"].(string)
			if props, ok := g.entities[id]; ok {
				return []graphstore.Row{{"e": props}}, nil
			}
			return nil, nil

		case strings.Contains(query, "WHERE ANY(k IN $keys"):
			typ, _ := params["type"].(string)
			keys, _ := params["keys"].([]string)
			wanted := make(map[string]bool, len(keys))
			for _, k := range keys {
				wanted[k] = true
			}
			var rows []graphstore.Row
			for _, props := range g.entities {
				if props["type"] != typ || props["status"] != "ACTIVE" {
					continue
				}
				bk, _ := props["blockingKeys"].([]any)
				for _, kv := range bk {
					if ks, ok := kv.(string); ok && wanted[ks] {
						rows = append(rows, graphstore.Row{"e": props})
						break
					}
				}
			}
			return rows, nil

		case strings.Contains(query, "LIMIT $limit"):
			typ, _ := params["type"].(string)
			var rows []graphstore.Row
			for _, props := range g.entities {
				if props["type"] == typ && props["status"] == "ACTIVE" {
					rows = append(rows, graphstore.Row{"e": props})
				}
			}
			return rows, nil

		default:
			return nil, nil
		}
	})

	return store
}

func TestScenario_ExactRematchReturnsSameEntity(t *testing.T) {
	store := newFakeGraphStore()
	r := newTestResolver(t, store)
	ctx := context.Background()

	first, err := r.Resolve(ctx, model.Mention{Name: "Microsoft Corporation", Type: "company", TenantID: "t1"})
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := r.Resolve(ctx, model.Mention{Name: "Microsoft Corporation", Type: "company", TenantID: "t1"})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.EntityID, second.EntityID)
}

func TestScenario_SuffixVariantsNormalizeToSameEntity(t *testing.T) {
	store := newFakeGraphStore()
	r := newTestResolver(t, store)
	ctx := context.Background()

	first, err := r.Resolve(ctx, model.Mention{Name: "Apple Inc.", Type: "company", TenantID: "t1"})
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := r.Resolve(ctx, model.Mention{Name: "Apple Incorporated", Type: "company", TenantID: "t1"})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.EntityID, second.EntityID)
}

func TestScenario_NearDuplicateAboveAutoMergeThresholdTriggersMerge(t *testing.T) {
	store := newFakeGraphStore()
	r := newTestResolver(t, store)
	merger := r.merger.(*fakeMerger)
	ctx := context.Background()

	seedName := "Northwind Traders Global Logistics Freight Forwarding Solutions International Holdings Group"
	seed, err := r.Resolve(ctx, model.Mention{Name: seedName, Type: "company", TenantID: "t1"})
	require.NoError(t, err)
	require.True(t, seed.Created)

	typoName := "Northwind Traders Global Logistics Freight Forwardin Solutions International Holdings Group"
	outcome, err := r.Resolve(ctx, model.Mention{Name: typoName, Type: "company", TenantID: "t1"})
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeAutoMerge, outcome.Outcome)
	assert.Equal(t, seed.EntityID, outcome.EntityID)
	assert.Equal(t, 1, merger.calls)
}

func TestScenario_FuzzyMatchInSynonymRangeAttachesSynonymWithoutNewEntity(t *testing.T) {
	store := newFakeGraphStore()
	r := newTestResolver(t, store)
	ctx := context.Background()

	seed, err := r.Resolve(ctx, model.Mention{Name: "Acme Global Dynamics", Type: "company", TenantID: "t1"})
	require.NoError(t, err)
	require.True(t, seed.Created)

	before := len(store.Executed)
	outcome, err := r.Resolve(ctx, model.Mention{Name: "Akme Global Dynamics", Type: "company", TenantID: "t1"})
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeSynonym, outcome.Outcome)
	assert.Equal(t, seed.EntityID, outcome.EntityID)

	var sawEntityCreate, sawSynonymCreate bool
	for _, call := range store.Executed[before:] {
		if strings.Contains(call.Query, "CREATE (e:Entity {") {
			sawEntityCreate = true
		}
		if strings.Contains(call.Query, "CREATE (s:Synonym") {
			sawSynonymCreate = true
		}
	}
	assert.False(t, sawEntityCreate, "a synonym match must not create a new Entity")
	assert.True(t, sawSynonymCreate, "a synonym match must attach a Synonym")
}

func TestScenario_FuzzyMatchInReviewRangeSubmitsReviewWithoutNewEntity(t *testing.T) {
	store := newFakeGraphStore()
	r := newTestResolver(t, store)
	ctx := context.Background()

	seed, err := r.Resolve(ctx, model.Mention{Name: "Globex", Type: "company", TenantID: "t1"})
	require.NoError(t, err)
	require.True(t, seed.Created)

	before := len(store.Executed)
	outcome, err := r.Resolve(ctx, model.Mention{Name: "Glowbex", Type: "company", TenantID: "t1"})
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeReview, outcome.Outcome)
	assert.Equal(t, seed.EntityID, outcome.EntityID, "REVIEW returns a reference to the existing candidate, not a new entity")

	var sawEntityCreate, sawReviewCreate bool
	for _, call := range store.Executed[before:] {
		if strings.Contains(call.Query, "CREATE (e:Entity {") {
			sawEntityCreate = true
		}
		if strings.Contains(call.Query, "CREATE (r:ReviewItem") {
			sawReviewCreate = true
		}
	}
	assert.False(t, sawEntityCreate, "a REVIEW outcome must not create a new Entity")
	assert.True(t, sawReviewCreate, "a REVIEW outcome must submit a review item")

	// Only one Entity was ever created across both calls: the seed.
	var totalEntityCreates int
	for _, call := range store.Executed {
		if strings.Contains(call.Query, "CREATE (e:Entity {") {
			totalEntityCreates++
		}
	}
	assert.Equal(t, 1, totalEntityCreates)
}
