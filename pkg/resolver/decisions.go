package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/canopy/internal/graphstore"
	"github.com/Ramsey-B/canopy/pkg/model"
)

// decisionStore persists MatchDecision records, one per candidate
// comparison, per spec §4.E.
type decisionStore struct {
	store graphstore.Store
	nowFn func() time.Time
}

func newDecisionStore(store graphstore.Store) *decisionStore {
	return &decisionStore{store: store, nowFn: time.Now}
}

func (d *decisionStore) append(ctx context.Context, md model.MatchDecision) (model.MatchDecision, error) {
	if md.ID == "" {
		md.ID = uuid.NewString()
	}
	if md.EvaluatedAt.IsZero() {
		md.EvaluatedAt = d.nowFn()
	}

	err := d.store.Execute(ctx, `
		CREATE (m:MatchDecision {
			id: $id, inputTempId: $inputTempId, candidateId: $candidateId, type: $type,
			exactScore: $exactScore, levScore: $levScore, jwScore: $jwScore, jaccardScore: $jaccardScore,
			llmScore: $llmScore, graphContextScore: $graphContextScore, finalScore: $finalScore,
			outcome: $outcome, thresholdAutoMerge: $thresholdAutoMerge, thresholdSynonym: $thresholdSynonym,
			thresholdReview: $thresholdReview, evaluator: $evaluator, evaluatedAt: $evaluatedAt
		})
	`, map[string]any{
		"id":                 md.ID,
		"inputTempId":        md.InputTempID,
		"candidateId":        md.CandidateID,
		"type":               md.Type,
		"exactScore":         md.ExactScore,
		"levScore":           md.LevScore,
		"jwScore":            md.JWScore,
		"jaccardScore":       md.JaccardScore,
		"llmScore":           md.LLMScore,
		"graphContextScore":  md.GraphContextScore,
		"finalScore":         md.FinalScore,
		"outcome":            string(md.Outcome),
		"thresholdAutoMerge": md.ThresholdsSnapshot.AutoMerge,
		"thresholdSynonym":   md.ThresholdsSnapshot.Synonym,
		"thresholdReview":    md.ThresholdsSnapshot.Review,
		"evaluator":          string(md.Evaluator),
		"evaluatedAt":        md.EvaluatedAt,
	})
	if err != nil {
		return model.MatchDecision{}, fmt.Errorf("appending match decision: %w", err)
	}
	return md, nil
}
