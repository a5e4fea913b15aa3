package review

import (
	"context"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/canopy/internal/graphstore"
	"github.com/Ramsey-B/canopy/internal/resolveerr"
	"github.com/Ramsey-B/canopy/pkg/events"
	"github.com/Ramsey-B/canopy/pkg/model"
	"github.com/Ramsey-B/canopy/pkg/synonym"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeMerger struct {
	called bool
	err    error
}

func (f *fakeMerger) Merge(ctx context.Context, sourceID, targetID string, decision model.MatchOutcome, evaluator model.Evaluator, reasoning string) error {
	f.called = true
	return f.err
}

func newTestQueue(store *graphstore.MemStore, merger Merger) *Queue {
	logger := testLogger()
	synonyms := synonym.NewStore(store, synonym.DefaultDecayParams(), logger)
	bus := events.NewBus(logger)
	return NewQueue(store, synonyms, merger, bus, logger)
}

func TestSubmit_CreatesPendingItemAndEmitsEvent(t *testing.T) {
	store := graphstore.NewMemStore()
	q := newTestQueue(store, &fakeMerger{})

	var submitted events.ReviewSubmittedEvent
	q.bus.OnReviewSubmitted(func(ctx context.Context, ev events.ReviewSubmittedEvent) { submitted = ev })

	item, err := q.Submit(context.Background(), model.ReviewItem{SourceEntityID: "s1", CandidateEntityID: "c1", EntityType: "company"})
	require.NoError(t, err)
	assert.Equal(t, model.ReviewPending, item.Status)
	assert.Equal(t, item.ID, submitted.ReviewItem.ID)
}

func TestApprove_MergesAndMarksApproved(t *testing.T) {
	store := graphstore.NewMemStore()

	item := model.ReviewItem{
		ID: "r1", SourceEntityID: "s1", CandidateEntityID: "c1",
		EntityType: "company", Status: model.ReviewPending,
	}
	store.OnQuery(func(ctx context.Context, query string, params map[string]any) ([]graphstore.Row, error) {
		if strings.Contains(query, "MATCH (r:ReviewItem {id: $id}) RETURN r") {
			return []graphstore.Row{{"r": map[string]any{
				"id": item.ID, "sourceEntityId": item.SourceEntityID,
				"candidateEntityId": item.CandidateEntityID, "entityType": item.EntityType,
				"status": string(model.ReviewPending),
			}}}, nil
		}
		return nil, nil
	})

	merger := &fakeMerger{}
	q := newTestQueue(store, merger)

	err := q.Approve(context.Background(), "r1", "reviewer-1", "looks right")
	require.NoError(t, err)
	assert.True(t, merger.called)
}

func TestApprove_DoubleDecideIsAnError(t *testing.T) {
	store := graphstore.NewMemStore()
	store.OnQuery(func(ctx context.Context, query string, params map[string]any) ([]graphstore.Row, error) {
		if strings.Contains(query, "MATCH (r:ReviewItem {id: $id}) RETURN r") {
			return []graphstore.Row{{"r": map[string]any{
				"id": "r1", "status": string(model.ReviewApproved),
			}}}, nil
		}
		return nil, nil
	})

	q := newTestQueue(store, &fakeMerger{})
	err := q.Approve(context.Background(), "r1", "reviewer-1", "too late")
	require.Error(t, err)
	assert.True(t, resolveerr.Is(err, resolveerr.StateInvalid))
}

func TestApprove_NotFoundIsAnError(t *testing.T) {
	store := graphstore.NewMemStore()
	q := newTestQueue(store, &fakeMerger{})

	err := q.Approve(context.Background(), "missing", "reviewer-1", "")
	require.Error(t, err)
	assert.True(t, resolveerr.Is(err, resolveerr.NotFound))
}
