// Package review implements the review queue and its feedback loop into
// merge and synonym confidence (spec §4.J).
package review

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/canopy/internal/graphstore"
	"github.com/Ramsey-B/canopy/internal/resolveerr"
	"github.com/Ramsey-B/canopy/internal/tracing"
	"github.com/Ramsey-B/canopy/pkg/events"
	"github.com/Ramsey-B/canopy/pkg/model"
	"github.com/Ramsey-B/canopy/pkg/synonym"
)

// Merger performs the merge side effect of an approved review. Defined
// locally (rather than imported from pkg/resolver) so pkg/resolver can
// depend on pkg/review without an import cycle.
type Merger interface {
	Merge(ctx context.Context, sourceID, targetID string, decision model.MatchOutcome, evaluator model.Evaluator, reasoning string) error
}

// Filters narrows getPending results.
type Filters struct {
	MinScore    *float64
	MaxScore    *float64
	EntityType  string
}

// PageRequest is an offset+limit pagination request.
type PageRequest struct {
	Offset int
	Limit  int
}

// PageResult carries items plus a total count for offset pagination.
type PageResult struct {
	Items []model.ReviewItem
	Total int
}

// Queue implements submit/getPending/approve/reject.
type Queue struct {
	store    graphstore.Store
	synonyms *synonym.Store
	merger   Merger
	bus      *events.Bus
	logger   ectologger.Logger
	nowFn    func() time.Time
}

// NewQueue wires a review Queue.
func NewQueue(store graphstore.Store, synonyms *synonym.Store, merger Merger, bus *events.Bus, logger ectologger.Logger) *Queue {
	return &Queue{store: store, synonyms: synonyms, merger: merger, bus: bus, logger: logger, nowFn: time.Now}
}

// Submit enqueues a new PENDING review item.
func (q *Queue) Submit(ctx context.Context, item model.ReviewItem) (model.ReviewItem, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Queue.Submit")
	defer span.End()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.Status = model.ReviewPending
	item.SubmittedAt = q.nowFn()

	err := q.store.Execute(ctx, `
		CREATE (r:ReviewItem {
			id: $id, sourceEntityId: $sourceEntityId, candidateEntityId: $candidateEntityId,
			similarityScore: $similarityScore, entityType: $entityType, status: $status,
			submittedAt: $submittedAt, matchDecisionId: $matchDecisionId, synonymId: $synonymId
		})
	`, map[string]any{
		"id":                item.ID,
		"sourceEntityId":    item.SourceEntityID,
		"candidateEntityId": item.CandidateEntityID,
		"similarityScore":   item.SimilarityScore,
		"entityType":        item.EntityType,
		"status":            string(item.Status),
		"submittedAt":       item.SubmittedAt,
		"matchDecisionId":   item.MatchDecisionID,
		"synonymId":         item.SynonymID,
	})
	if err != nil {
		return model.ReviewItem{}, fmt.Errorf("submitting review item: %w", err)
	}

	q.bus.EmitReviewSubmitted(ctx, events.ReviewSubmittedEvent{ReviewItem: item})
	return item, nil
}

// GetPending returns PENDING items. Default ordering is submittedAt
// ascending; when a score-range filter is present, results are ordered
// by score descending instead.
func (q *Queue) GetPending(ctx context.Context, page PageRequest, filters Filters) (PageResult, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Queue.GetPending")
	defer span.End()

	rows, err := q.store.Query(ctx, `
		MATCH (r:ReviewItem {status: 'PENDING'})
		WHERE ($entityType = '' OR r.entityType = $entityType)
		RETURN r
	`, map[string]any{"entityType": filters.EntityType})
	if err != nil {
		return PageResult{}, fmt.Errorf("querying pending reviews: %w", err)
	}

	items := make([]model.ReviewItem, 0, len(rows))
	for _, row := range rows {
		item, err := rowToReviewItem(row["r"])
		if err != nil {
			return PageResult{}, err
		}
		if filters.MinScore != nil && item.SimilarityScore < *filters.MinScore {
			continue
		}
		if filters.MaxScore != nil && item.SimilarityScore > *filters.MaxScore {
			continue
		}
		items = append(items, item)
	}

	scoreFiltered := filters.MinScore != nil || filters.MaxScore != nil
	if scoreFiltered {
		sort.SliceStable(items, func(i, j int) bool { return items[i].SimilarityScore > items[j].SimilarityScore })
	} else {
		sort.SliceStable(items, func(i, j int) bool { return items[i].SubmittedAt.Before(items[j].SubmittedAt) })
	}

	total := len(items)
	start := page.Offset
	if start > total {
		start = total
	}
	end := start + page.Limit
	if page.Limit <= 0 || end > total {
		end = total
	}

	return PageResult{Items: items[start:end], Total: total}, nil
}

// Approve marks a PENDING item APPROVED, appends a ReviewDecision,
// triggers an AUTO_MERGE with evaluator=HUMAN, and reinforces any
// synonym that participated in the original MatchDecision.
func (q *Queue) Approve(ctx context.Context, id, reviewerID, notes string) error {
	ctx, span := tracing.StartSpan(ctx, "review.Queue.Approve")
	defer span.End()

	item, err := q.requirePending(ctx, id)
	if err != nil {
		return err
	}

	if err := q.setStatus(ctx, item, model.ReviewApproved, reviewerID, notes); err != nil {
		return err
	}

	decision := model.ReviewDecision{
		ReviewID:   id,
		Action:     model.ReviewActionApprove,
		ReviewerID: reviewerID,
		Rationale:  notes,
	}
	saved, err := q.appendDecision(ctx, decision)
	if err != nil {
		return err
	}

	if err := q.merger.Merge(ctx, item.SourceEntityID, item.CandidateEntityID, model.OutcomeAutoMerge, model.EvaluatorHuman, "review approved: "+notes); err != nil {
		return fmt.Errorf("merging after review approval: %w", err)
	}

	if item.SynonymID != "" {
		if _, err := q.synonyms.Reinforce(ctx, item.SynonymID); err != nil {
			q.logger.WithContext(ctx).WithError(err).Warn("failed to reinforce synonym after review approval")
		}
	}

	q.bus.EmitReviewDecided(ctx, events.ReviewDecidedEvent{Decision: saved})
	return nil
}

// Reject marks a PENDING item REJECTED, appends a ReviewDecision, and
// applies negative reinforcement to any participating synonym.
func (q *Queue) Reject(ctx context.Context, id, reviewerID, notes string) error {
	ctx, span := tracing.StartSpan(ctx, "review.Queue.Reject")
	defer span.End()

	item, err := q.requirePending(ctx, id)
	if err != nil {
		return err
	}

	if err := q.setStatus(ctx, item, model.ReviewRejected, reviewerID, notes); err != nil {
		return err
	}

	decision := model.ReviewDecision{
		ReviewID:   id,
		Action:     model.ReviewActionReject,
		ReviewerID: reviewerID,
		Rationale:  notes,
	}
	saved, err := q.appendDecision(ctx, decision)
	if err != nil {
		return err
	}

	if item.SynonymID != "" {
		if err := q.synonyms.PenalizeSynonym(ctx, item.SynonymID); err != nil {
			q.logger.WithContext(ctx).WithError(err).Warn("failed to penalize synonym after review rejection")
		}
	}

	q.bus.EmitReviewDecided(ctx, events.ReviewDecidedEvent{Decision: saved})
	return nil
}

func (q *Queue) requirePending(ctx context.Context, id string) (model.ReviewItem, error) {
	rows, err := q.store.Query(ctx, `MATCH (r:ReviewItem {id: $id}) RETURN r`, map[string]any{"id": id})
	if err != nil {
		return model.ReviewItem{}, fmt.Errorf("fetching review item %q: %w", id, err)
	}
	if len(rows) == 0 {
		return model.ReviewItem{}, resolveerr.New(resolveerr.NotFound, "review item not found: "+id)
	}

	item, err := rowToReviewItem(rows[0]["r"])
	if err != nil {
		return model.ReviewItem{}, err
	}
	if item.Status != model.ReviewPending {
		return model.ReviewItem{}, resolveerr.New(resolveerr.StateInvalid, "review item already decided: "+id)
	}
	return item, nil
}

func (q *Queue) setStatus(ctx context.Context, item model.ReviewItem, status model.ReviewStatus, reviewerID, notes string) error {
	now := q.nowFn()
	return q.store.Execute(ctx, `
		MATCH (r:ReviewItem {id: $id})
		SET r.status = $status, r.reviewedAt = $reviewedAt, r.reviewerId = $reviewerId, r.notes = $notes
	`, map[string]any{
		"id":         item.ID,
		"status":     string(status),
		"reviewedAt": now,
		"reviewerId": reviewerID,
		"notes":      notes,
	})
}

func (q *Queue) appendDecision(ctx context.Context, d model.ReviewDecision) (model.ReviewDecision, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.DecidedAt = q.nowFn()

	err := q.store.Execute(ctx, `
		CREATE (d:ReviewDecision {
			id: $id, reviewId: $reviewId, action: $action, reviewerId: $reviewerId,
			rationale: $rationale, decidedAt: $decidedAt
		})
	`, map[string]any{
		"id":         d.ID,
		"reviewId":   d.ReviewID,
		"action":     string(d.Action),
		"reviewerId": d.ReviewerID,
		"rationale":  d.Rationale,
		"decidedAt":  d.DecidedAt,
	})
	if err != nil {
		return model.ReviewDecision{}, fmt.Errorf("appending review decision: %w", err)
	}
	return d, nil
}

func rowToReviewItem(v any) (model.ReviewItem, error) {
	props, ok := v.(map[string]any)
	if !ok {
		return model.ReviewItem{}, fmt.Errorf("unexpected review item row shape %T", v)
	}

	item := model.ReviewItem{
		ID:                strField(props, "id"),
		SourceEntityID:    strField(props, "sourceEntityId"),
		CandidateEntityID: strField(props, "candidateEntityId"),
		EntityType:        strField(props, "entityType"),
		Status:            model.ReviewStatus(strField(props, "status")),
		ReviewerID:        strField(props, "reviewerId"),
		Notes:             strField(props, "notes"),
		MatchDecisionID:   strField(props, "matchDecisionId"),
		SynonymID:         strField(props, "synonymId"),
	}
	if score, ok := props["similarityScore"].(float64); ok {
		item.SimilarityScore = score
	}
	if t, ok := props["submittedAt"].(time.Time); ok {
		item.SubmittedAt = t
	}
	if t, ok := props["reviewedAt"].(time.Time); ok {
		item.ReviewedAt = &t
	}
	return item, nil
}

func strField(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}
