package normalize

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func mustCompile(pattern string) *regexp.Regexp {
	return regexp.MustCompile(pattern)
}

func TestNormalize_StripsCompanySuffix(t *testing.T) {
	e := NewDefaultEngine()
	assert.Equal(t, "acme", e.Normalize("Acme Corp.", "company"))
}

func TestNormalize_CollapsesAmpersand(t *testing.T) {
	e := NewDefaultEngine()
	assert.Equal(t, "smith jones", e.Normalize("Smith & Jones", "company"))
}

func TestNormalize_FallsBackWhenRulesEmptyResult(t *testing.T) {
	e := NewDefaultEngine()
	assert.Equal(t, "!!!", e.Normalize("!!!", "company"))
}

func TestNormalize_RuleScopedToApplicableTypes(t *testing.T) {
	e := NewEngine()
	e.AddRule(Rule{
		Name:            "only-db",
		Pattern:         mustCompile(`x`),
		Replacement:     "",
		Priority:        10,
		ApplicableTypes: Types("database"),
	})

	assert.Equal(t, "taxi", e.Normalize("taxi", "vehicle"))
	assert.Equal(t, "tai", e.Normalize("taxi", "database"))
}

func TestNormalize_RulesApplyInPriorityOrder(t *testing.T) {
	e := NewEngine()
	e.AddRule(Rule{Name: "second", Pattern: mustCompile(`b`), Replacement: "c", Priority: 20})
	e.AddRule(Rule{Name: "first", Pattern: mustCompile(`a`), Replacement: "b", Priority: 10})

	// "a" -> "b" (priority 10) then "b" -> "c" (priority 20): both hits
	// collapse to "c" only because first ran before second.
	assert.Equal(t, "c", e.Normalize("a", "x"))
}
