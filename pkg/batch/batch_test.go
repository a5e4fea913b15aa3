package batch

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/canopy/internal/graphstore"
	"github.com/Ramsey-B/canopy/pkg/events"
	"github.com/Ramsey-B/canopy/pkg/llm"
	"github.com/Ramsey-B/canopy/pkg/lock"
	"github.com/Ramsey-B/canopy/pkg/model"
	"github.com/Ramsey-B/canopy/pkg/normalize"
	"github.com/Ramsey-B/canopy/pkg/rescache"
	"github.com/Ramsey-B/canopy/pkg/resolver"
	"github.com/Ramsey-B/canopy/pkg/resolveropts"
	"github.com/Ramsey-B/canopy/pkg/review"
	"github.com/Ramsey-B/canopy/pkg/similarity"
	"github.com/Ramsey-B/canopy/pkg/synonym"
)

type fakeMerger struct{}

func (f *fakeMerger) Merge(ctx context.Context, sourceID, targetID string, decision model.MatchOutcome, evaluator model.Evaluator, reasoning string) error {
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestResolver(t *testing.T) (*resolver.Resolver, resolveropts.Options) {
	t.Helper()
	store := graphstore.NewMemStore()
	logger := testLogger()
	decay := synonym.DefaultDecayParams()
	synonyms := synonym.NewStore(store, decay, logger)
	cache, err := rescache.New(100, time.Hour)
	require.NoError(t, err)
	bus := events.NewBus(logger)
	reviewQ := review.NewQueue(store, synonyms, &fakeMerger{}, bus, logger)
	opts := resolveropts.Default()
	opts.MaxBatchSize = 2
	opts.MaxBatchMemoryBytes = 1 << 20
	opts.BatchCommitChunkSize = 1

	r := resolver.New(
		store, synonyms, decay, normalize.NewDefaultEngine(), similarity.New(opts.SimilarityWeights),
		lock.NewLocal(), cache, bus, reviewQ, &fakeMerger{}, llm.NoOp{}, opts, logger,
	)
	return r, opts
}

func TestEnqueueResolve_DedupsIdenticalMentions(t *testing.T) {
	r, opts := newTestResolver(t)
	b := New(r, opts, testLogger())

	m := model.Mention{Name: "Acme", Type: "company", TenantID: "t1"}
	require.NoError(t, b.EnqueueResolve(context.Background(), m, "acme"))
	require.NoError(t, b.EnqueueResolve(context.Background(), m, "acme"))

	assert.Len(t, b.order, 1)
}

func TestEnqueueResolve_EnforcesMaxBatchSize(t *testing.T) {
	r, opts := newTestResolver(t)
	b := New(r, opts, testLogger())

	require.NoError(t, b.EnqueueResolve(context.Background(), model.Mention{Name: "A", Type: "company"}, "a"))
	require.NoError(t, b.EnqueueResolve(context.Background(), model.Mention{Name: "B", Type: "company"}, "b"))

	err := b.EnqueueResolve(context.Background(), model.Mention{Name: "C", Type: "company"}, "c")
	assert.Error(t, err)
}

func TestCommit_ResolvesEveryDistinctMention(t *testing.T) {
	r, opts := newTestResolver(t)
	opts.MaxBatchSize = 10
	b := New(r, opts, testLogger())

	require.NoError(t, b.EnqueueResolve(context.Background(), model.Mention{Name: "Acme", Type: "company", TenantID: "t1"}, "acme"))
	require.NoError(t, b.EnqueueResolve(context.Background(), model.Mention{Name: "Widgets", Type: "company", TenantID: "t1"}, "widgets"))

	result, err := b.Commit(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Resolved, 2)
	assert.Empty(t, result.Errors)
	assert.Greater(t, result.ChunksCommitted, 0)
}

func TestCommit_CreatesStagedRelationshipsBetweenResolvedMentions(t *testing.T) {
	r, opts := newTestResolver(t)
	opts.MaxBatchSize = 10
	b := New(r, opts, testLogger())

	require.NoError(t, b.EnqueueResolve(context.Background(), model.Mention{Name: "Acme", Type: "company", TenantID: "t1"}, "acme"))
	require.NoError(t, b.EnqueueResolve(context.Background(), model.Mention{Name: "Widgets", Type: "company", TenantID: "t1"}, "widgets"))
	b.EnqueueRelationship("acme", "company", "widgets", "company", "SUPPLIES", map[string]any{"since": 2020})

	result, err := b.Commit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
}

func TestCommit_ReportsErrorForRelationshipToUnresolvedMention(t *testing.T) {
	r, opts := newTestResolver(t)
	opts.MaxBatchSize = 10
	b := New(r, opts, testLogger())

	require.NoError(t, b.EnqueueResolve(context.Background(), model.Mention{Name: "Acme", Type: "company", TenantID: "t1"}, "acme"))
	b.EnqueueRelationship("acme", "company", "missing", "company", "SUPPLIES", nil)

	result, err := b.Commit(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, result.Errors)
}

func TestClose_IsIdempotentAndReleasesStagedState(t *testing.T) {
	r, opts := newTestResolver(t)
	b := New(r, opts, testLogger())

	require.NoError(t, b.EnqueueResolve(context.Background(), model.Mention{Name: "Acme", Type: "company"}, "acme"))
	b.Close()
	b.Close()

	assert.Nil(t, b.order)
}
