package resolver

import (
	"context"

	"github.com/Ramsey-B/canopy/pkg/llm"
	"github.com/Ramsey-B/canopy/pkg/model"
	"github.com/Ramsey-B/canopy/pkg/resolveropts"
)

// decision is the pure result of evaluating one scored candidate against
// thresholds, before any side effect (persistence, merge trigger) runs.
type decision struct {
	outcome           model.MatchOutcome
	finalScore        float64
	llmScore          *float64
	graphContextScore *float64
	evaluator         model.Evaluator
}

// decideOutcome implements the threshold table in spec §4.E, including
// the LLM escalation branch resolved per the open-question decision: a
// candidate scoring in [0.40, reviewThreshold) is handed to the LLM only
// when useLLM is enabled, and the blended score can promote the outcome
// but reaches AUTO_MERGE only when the LLM score itself clears
// llmConfidenceThreshold.
func decideOutcome(ctx context.Context, opts resolveropts.Options, enricher llm.Enricher, blockingScore float64, cand llm.Candidate) decision {
	switch {
	case blockingScore >= opts.AutoMergeThreshold:
		return decision{outcome: model.OutcomeAutoMerge, finalScore: blockingScore, evaluator: model.EvaluatorSystem}
	case blockingScore >= opts.SynonymThreshold:
		return decision{outcome: model.OutcomeSynonym, finalScore: blockingScore, evaluator: model.EvaluatorSystem}
	case blockingScore >= opts.ReviewThreshold:
		return decision{outcome: model.OutcomeReview, finalScore: blockingScore, evaluator: model.EvaluatorSystem}
	case opts.UseLLM && blockingScore >= 0.40:
		return decideWithLLM(ctx, opts, enricher, blockingScore, cand)
	default:
		return decision{outcome: model.OutcomeNoMatch, finalScore: blockingScore, evaluator: model.EvaluatorSystem}
	}
}

func decideWithLLM(ctx context.Context, opts resolveropts.Options, enricher llm.Enricher, blockingScore float64, cand llm.Candidate) decision {
	llmScore, err := enricher.Score(ctx, cand)
	if err != nil {
		return decision{outcome: model.OutcomeNoMatch, finalScore: blockingScore, evaluator: model.EvaluatorSystem}
	}

	graphContextScore := (blockingScore + llmScore) / 2
	finalScore := graphContextScore
	if blockingScore > finalScore {
		finalScore = blockingScore
	}

	outcome := outcomeForScore(opts, finalScore)
	if outcome == model.OutcomeAutoMerge && llmScore < opts.LLMConfidenceThreshold {
		outcome = model.OutcomeSynonym
		if finalScore < opts.SynonymThreshold {
			outcome = model.OutcomeReview
		}
	}

	return decision{
		outcome:           outcome,
		finalScore:        finalScore,
		llmScore:          &llmScore,
		graphContextScore: &graphContextScore,
		evaluator:          model.EvaluatorLLM,
	}
}

func outcomeForScore(opts resolveropts.Options, s float64) model.MatchOutcome {
	switch {
	case s >= opts.AutoMergeThreshold:
		return model.OutcomeAutoMerge
	case s >= opts.SynonymThreshold:
		return model.OutcomeSynonym
	case s >= opts.ReviewThreshold:
		return model.OutcomeReview
	default:
		return model.OutcomeNoMatch
	}
}
