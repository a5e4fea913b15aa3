package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_ExactMatchShortcutsToOne(t *testing.T) {
	s := New(DefaultWeights())
	b := s.Score("acme industries", "acme industries")
	assert.Equal(t, 1.0, b.Composite)
	assert.Equal(t, 1.0, b.Exact)
}

func TestScore_CompositeBetweenZeroAndOne(t *testing.T) {
	s := New(DefaultWeights())
	b := s.Score("acme industries", "axme indstries")
	assert.GreaterOrEqual(t, b.Composite, 0.0)
	assert.LessOrEqual(t, b.Composite, 1.0)
	assert.Greater(t, b.Composite, 0.5)
}

func TestScore_CompletelyDifferentStringsScoreLow(t *testing.T) {
	s := New(DefaultWeights())
	b := s.Score("acme industries", "zzz qqq")
	assert.Less(t, b.Composite, 0.5)
}

func TestScore_TokenOrderDoesNotAffectJaccard(t *testing.T) {
	s := New(DefaultWeights())
	ab := s.Score("smith johnson", "johnson smith")
	assert.Equal(t, 1.0, ab.Jaccard)
}
