// Package resolveropts defines ResolutionOptions, the tunables every
// resolver/merge/batch/cache component reads (spec §6 "Resolution
// options"), validated with go-playground/validator the way the
// teacher validates its route DTOs.
package resolveropts

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/canopy/pkg/similarity"
)

// Options holds every tunable the resolution core recognizes.
type Options struct {
	AutoMergeThreshold float64 `validate:"gte=0,lte=1"`
	SynonymThreshold   float64 `validate:"gte=0,lte=1"`
	ReviewThreshold    float64 `validate:"gte=0,lte=1"`
	AutoMergeEnabled   bool

	UseLLM                 bool
	LLMConfidenceThreshold float64 `validate:"gte=0,lte=1"`

	SourceSystem string

	ConfidenceDecayLambda float64 `validate:"gte=0"`
	ReinforcementCap      float64 `validate:"gte=0,lte=1"`

	MaxBatchSize         int   `validate:"gt=0"`
	BatchCommitChunkSize int   `validate:"gt=0"`
	MaxBatchMemoryBytes  int64 `validate:"gt=0"`

	CachingEnabled bool
	CacheMaxSize   int `validate:"gt=0"`
	CacheTTLSeconds int `validate:"gt=0"`

	LockTimeoutMs  int `validate:"gt=0"`
	AsyncTimeoutMs int `validate:"gt=0"`

	SimilarityWeights similarity.Weights

	FullScanSizeLimit int `validate:"gte=0"`
}

// Default returns the defaults named across the component design.
func Default() Options {
	return Options{
		AutoMergeThreshold:     0.92,
		SynonymThreshold:       0.80,
		ReviewThreshold:        0.60,
		AutoMergeEnabled:       true,
		UseLLM:                 false,
		LLMConfidenceThreshold: 0.80,
		ConfidenceDecayLambda:  0.001,
		ReinforcementCap:       0.15,
		MaxBatchSize:           100000,
		BatchCommitChunkSize:   1000,
		MaxBatchMemoryBytes:    256 * 1024 * 1024,
		CachingEnabled:         true,
		CacheMaxSize:           50000,
		CacheTTLSeconds:        3600,
		LockTimeoutMs:          5000,
		AsyncTimeoutMs:         30000,
		SimilarityWeights:      similarity.DefaultWeights(),
		FullScanSizeLimit:      10000,
	}
}

// OverrideTable holds per-entity-type Options layered over a shared
// Base, so one deployment can, say, run a stricter autoMergeThreshold
// for "person" entities than for "company" entities without running
// two resolution cores.
type OverrideTable struct {
	Base   Options
	ByType map[string]Options
}

// For returns the effective Options for entityType: the registered
// override if one exists, otherwise Base.
func (t OverrideTable) For(entityType string) Options {
	if o, ok := t.ByType[entityType]; ok {
		return o
	}
	return t.Base
}

// Validate checks Base and every registered override independently;
// an override is a complete Options, not a sparse patch, so it must
// satisfy the same invariants Base does.
func (t OverrideTable) Validate() error {
	if err := t.Base.Validate(); err != nil {
		return fmt.Errorf("base resolution options: %w", err)
	}
	for entityType, o := range t.ByType {
		if err := o.Validate(); err != nil {
			return fmt.Errorf("resolution options override for entity type %q: %w", entityType, err)
		}
	}
	return nil
}

var validate = validator.New()

// Validate checks field-level constraints plus the cross-field
// invariants the spec calls out: weights summing to 1.0 and
// review ≤ synonym ≤ autoMerge.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid resolution options: %w", err)
	}

	if o.ReviewThreshold > o.SynonymThreshold || o.SynonymThreshold > o.AutoMergeThreshold {
		return fmt.Errorf("invalid resolution options: thresholds must satisfy review <= synonym <= autoMerge, got review=%v synonym=%v autoMerge=%v",
			o.ReviewThreshold, o.SynonymThreshold, o.AutoMergeThreshold)
	}

	w := o.SimilarityWeights
	sum := w.Levenshtein + w.JaroWinkler + w.Jaccard
	const epsilon = 1e-9
	if sum < 1-epsilon || sum > 1+epsilon {
		return fmt.Errorf("invalid resolution options: similarity weights must sum to 1.0, got %v", sum)
	}

	return nil
}
