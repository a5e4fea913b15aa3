package synonym

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/canopy/pkg/model"
)

func TestEffectiveConfidence_DecaysMonotonicallyOverTime(t *testing.T) {
	params := DefaultDecayParams()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := model.Synonym{Confidence: 0.9, SupportCount: 0, LastConfirmedAt: base}

	c0 := params.EffectiveConfidence(s, base)
	c30 := params.EffectiveConfidence(s, base.Add(30*24*time.Hour))
	c365 := params.EffectiveConfidence(s, base.Add(365*24*time.Hour))

	assert.GreaterOrEqual(t, c0, c30)
	assert.GreaterOrEqual(t, c30, c365)
}

func TestEffectiveConfidence_NeverNegativeForFutureLastConfirmed(t *testing.T) {
	params := DefaultDecayParams()
	now := time.Now()
	s := model.Synonym{Confidence: 0.9, LastConfirmedAt: now.Add(time.Hour)}

	c := params.EffectiveConfidence(s, now)
	assert.GreaterOrEqual(t, c, 0.0)
	assert.LessOrEqual(t, c, 1.0)
}

func TestEffectiveConfidence_SupportCountBoostCappedAtReinforcementCap(t *testing.T) {
	params := DefaultDecayParams()
	now := time.Now()
	s := model.Synonym{Confidence: 0, SupportCount: 1_000_000, LastConfirmedAt: now}

	c := params.EffectiveConfidence(s, now)
	assert.LessOrEqual(t, c, params.ReinforcementCap+1e-9)
}

func TestPenalize_ReducesConfidenceAndNeverNegative(t *testing.T) {
	params := DefaultDecayParams()
	assert.InDelta(t, 0.675, params.Penalize(0.9), 1e-9)
	assert.Equal(t, 0.0, params.Penalize(0))
}

func TestShouldTriggerReview_OnlyWhenDecayedBelowThreshold(t *testing.T) {
	params := DefaultDecayParams()
	now := time.Now()
	s := model.Synonym{Confidence: 0.85, SupportCount: 0, LastConfirmedAt: now.Add(-2 * 365 * 24 * time.Hour)}

	assert.True(t, params.ShouldTriggerReview(s, now, 0.80))
}
