package resolver

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/canopy/pkg/blocking"
	"github.com/Ramsey-B/canopy/pkg/llm"
	"github.com/Ramsey-B/canopy/pkg/model"
	"github.com/Ramsey-B/canopy/pkg/resolveropts"
	"github.com/Ramsey-B/canopy/pkg/similarity"
)

// candidateKind identifies which discovery step produced a candidate,
// since exact and synonym matches bypass scoring entirely (spec §4.D).
type candidateKind int

const (
	kindNone candidateKind = iota
	kindExact
	kindSynonym
	kindScored
)

// candidate is the best match found by discovery, before the decision
// engine turns it into an outcome.
type candidate struct {
	kind      candidateKind
	entity    model.Entity
	breakdown similarity.Breakdown
	// synonymID is set when kind == kindSynonym, so the resolver can
	// reinforce it after a successful match.
	synonymID string
	// decision is populated when kind == kindScored: the already-persisted
	// MatchDecision for the winning candidate, so callers never build or
	// append a second record for it.
	decision model.MatchDecision
}

// findBestCandidate runs candidate discovery: exact index lookup, then
// synonym lookup, then a blocking-key scan, falling back to a full scan
// only when blocking produced nothing and the corpus is small enough.
func (r *Resolver) findBestCandidate(ctx context.Context, mention model.Mention, normalizedName, entityType, tenantID, tempID string, opts resolveropts.Options) (candidate, error) {
	if exact, err := r.entities.findActiveByNormalizedName(ctx, normalizedName, entityType, tenantID); err != nil {
		return candidate{}, err
	} else if exact != nil {
		return candidate{kind: kindExact, entity: *exact, breakdown: similarity.Breakdown{Composite: 1}}, nil
	}

	if syn, entityID, found, err := r.synonyms.FindByNormalizedValue(ctx, normalizedName, entityType); err != nil {
		return candidate{}, err
	} else if found {
		entity, err := r.entities.byID(ctx, entityID)
		if err != nil {
			return candidate{}, err
		}
		if entity != nil {
			effective := r.decay.EffectiveConfidence(syn, r.nowFn())
			return candidate{
				kind:      kindSynonym,
				entity:    *entity,
				breakdown: similarity.Breakdown{Composite: effective},
				synonymID: syn.ID,
			}, nil
		}
	}

	keys := blocking.Keys(normalizedName)
	pool, err := r.entities.byBlockingKeys(ctx, keys, entityType)
	if err != nil {
		return candidate{}, err
	}

	usedFallback := false
	if len(pool) == 0 {
		count, err := r.entities.countActiveOfType(ctx, entityType)
		if err != nil {
			return candidate{}, err
		}
		if count <= opts.FullScanSizeLimit {
			pool, err = r.entities.allActiveOfType(ctx, entityType, opts.FullScanSizeLimit)
			if err != nil {
				return candidate{}, err
			}
			usedFallback = true
		}
	}
	_ = usedFallback

	return r.scoreAndPickBest(ctx, mention, normalizedName, tempID, pool, opts)
}

// scoreAndPickBest runs the decision engine (spec §4.E) against every
// candidate in pool, persisting one MatchDecision per non-trivial
// candidate evaluated -- including losers, not just the eventual winner
// -- and returns the best by outcome rank, then finalScore, then higher
// confidenceScore, then older createdAt. Scoring failures on one
// candidate are logged and skipped, never abort the sweep, and never
// produce a MatchDecision (the candidate was never actually evaluated).
func (r *Resolver) scoreAndPickBest(ctx context.Context, mention model.Mention, normalizedName, tempID string, pool []model.Entity, opts resolveropts.Options) (candidate, error) {
	var best candidate
	found := false

	for _, e := range pool {
		breakdown, err := r.scoreOne(normalizedName, e)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": e.ID}).
				Warn("scoring candidate failed, skipping")
			continue
		}

		d := decideOutcome(ctx, opts, r.enricher, breakdown.Composite, llm.Candidate{
			InputName:      mention.Name,
			InputType:      mention.Type,
			InputAttrs:     mention.Attributes,
			CandidateName:  e.CanonicalName,
			CandidateAttrs: e.Attributes,
		})

		md, err := r.decisions.append(ctx, model.MatchDecision{
			InputTempID:       tempID,
			CandidateID:       e.ID,
			Type:              mention.Type,
			LevScore:          breakdown.Levenshtein,
			JWScore:           breakdown.JaroWinkler,
			JaccardScore:      breakdown.Jaccard,
			ExactScore:        breakdown.Exact,
			FinalScore:        d.finalScore,
			LLMScore:          d.llmScore,
			GraphContextScore: d.graphContextScore,
			Outcome:           d.outcome,
			ThresholdsSnapshot: model.ThresholdsSnapshot{
				AutoMerge: opts.AutoMergeThreshold,
				Synonym:   opts.SynonymThreshold,
				Review:    opts.ReviewThreshold,
			},
			Evaluator: d.evaluator,
		})
		if err != nil {
			return candidate{}, err
		}

		c := candidate{kind: kindScored, entity: e, breakdown: breakdown, decision: md}
		if !found || isBetter(c, best) {
			best = c
			found = true
		}
	}

	if !found {
		return candidate{kind: kindNone}, nil
	}
	return best, nil
}

func (r *Resolver) scoreOne(normalizedName string, e model.Entity) (breakdown similarity.Breakdown, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic scoring candidate %q: %v", e.ID, rec)
		}
	}()
	return r.scorer.Score(normalizedName, e.NormalizedName), nil
}

var outcomeRank = map[model.MatchOutcome]int{
	model.OutcomeAutoMerge: 3,
	model.OutcomeSynonym:   2,
	model.OutcomeReview:    1,
	model.OutcomeNoMatch:   0,
	model.OutcomeLLMEnrich: 0,
}

func isBetter(a, b candidate) bool {
	if ra, rb := outcomeRank[a.decision.Outcome], outcomeRank[b.decision.Outcome]; ra != rb {
		return ra > rb
	}
	if a.decision.FinalScore != b.decision.FinalScore {
		return a.decision.FinalScore > b.decision.FinalScore
	}
	if a.entity.ConfidenceScore != b.entity.ConfidenceScore {
		return a.entity.ConfidenceScore > b.entity.ConfidenceScore
	}
	return a.entity.CreatedAt.Before(b.entity.CreatedAt)
}
