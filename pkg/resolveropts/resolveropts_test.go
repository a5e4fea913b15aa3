package resolveropts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/canopy/pkg/similarity"
)

func TestDefault_SatisfiesValidate(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate_RejectsSynonymAboveAutoMerge(t *testing.T) {
	o := Default()
	o.SynonymThreshold = 0.95
	o.AutoMergeThreshold = 0.90

	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "review <= synonym <= autoMerge")
}

func TestValidate_RejectsReviewAboveSynonym(t *testing.T) {
	o := Default()
	o.ReviewThreshold = 0.85

	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "review <= synonym <= autoMerge")
}

func TestValidate_RejectsWeightsNotSummingToOne(t *testing.T) {
	o := Default()
	o.SimilarityWeights = similarity.Weights{Levenshtein: 0.5, JaroWinkler: 0.5, Jaccard: 0.5}

	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1.0")
}

func TestValidate_RejectsOutOfRangeThreshold(t *testing.T) {
	o := Default()
	o.AutoMergeThreshold = 1.5

	assert.Error(t, o.Validate())
}

func TestValidate_RejectsNonPositiveBatchSize(t *testing.T) {
	o := Default()
	o.MaxBatchSize = 0

	assert.Error(t, o.Validate())
}

func TestOverrideTable_ForFallsBackToBaseWhenTypeUnregistered(t *testing.T) {
	table := OverrideTable{Base: Default()}

	assert.Equal(t, Default(), table.For("company"))
}

func TestOverrideTable_ForReturnsRegisteredOverride(t *testing.T) {
	strict := Default()
	strict.AutoMergeThreshold = 0.99

	table := OverrideTable{Base: Default(), ByType: map[string]Options{"person": strict}}

	assert.Equal(t, 0.99, table.For("person").AutoMergeThreshold)
	assert.Equal(t, Default().AutoMergeThreshold, table.For("company").AutoMergeThreshold)
}

func TestOverrideTable_ValidateRejectsInvalidOverride(t *testing.T) {
	bad := Default()
	bad.ReviewThreshold = 0.99

	table := OverrideTable{Base: Default(), ByType: map[string]Options{"person": bad}}

	err := table.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"person"`)
}

func TestOverrideTable_ValidateRejectsInvalidBase(t *testing.T) {
	bad := Default()
	bad.MaxBatchSize = 0

	table := OverrideTable{Base: bad}

	assert.Error(t, table.Validate())
}
