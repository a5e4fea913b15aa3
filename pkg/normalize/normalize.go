// Package normalize turns raw entity names into comparable strings by
// applying ordered, type-scoped rewrite rules, the same registry-of-rules
// shape the teacher's normalizers package uses for field normalization,
// generalized from a flat function registry into a priority-ordered rule
// engine (spec §4.A).
package normalize

import (
	"regexp"
	"sort"
	"strings"
)

// Rule is one ordered rewrite step. Rules with a non-empty
// ApplicableTypes only run when the entity type being normalized is in
// that set; an empty set matches every type.
type Rule struct {
	Name            string
	Pattern         *regexp.Regexp
	Replacement     string
	Priority        int
	ApplicableTypes map[string]struct{}
}

// Engine holds a priority-sorted rule set and applies it to raw names.
type Engine struct {
	rules []Rule
}

// NewEngine returns an Engine with no rules. Use NewDefaultEngine for
// the built-in rule set.
func NewEngine() *Engine {
	return &Engine{}
}

// NewDefaultEngine returns an Engine preloaded with the default rules
// covering company suffixes, honorifics, ampersand elision, special
// character stripping, and metadata rules.
func NewDefaultEngine() *Engine {
	e := NewEngine()
	for _, r := range defaultRules() {
		e.AddRule(r)
	}
	return e
}

// AddRule inserts a rule, keeping the rule set sorted ascending by
// priority (lower runs first).
func (e *Engine) AddRule(r Rule) {
	e.rules = append(e.rules, r)
	sort.SliceStable(e.rules, func(i, j int) bool {
		return e.rules[i].Priority < e.rules[j].Priority
	})
}

// Normalize lowercases input, applies every rule whose type filter
// matches typ in priority order, collapses whitespace, and trims. If the
// result is empty it falls back to a lowercase-trim of the original.
func (e *Engine) Normalize(input, typ string) string {
	out := strings.ToLower(input)

	for _, r := range e.rules {
		if !ruleApplies(r, typ) {
			continue
		}
		out = r.Pattern.ReplaceAllString(out, r.Replacement)
	}

	out = collapseWhitespace(out)

	if out == "" {
		return strings.TrimSpace(strings.ToLower(input))
	}
	return out
}

func ruleApplies(r Rule, typ string) bool {
	if len(r.ApplicableTypes) == 0 {
		return true
	}
	_, ok := r.ApplicableTypes[typ]
	return ok
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Types restricts a rule to the given entity types.
func Types(types ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(types))
	for _, t := range types {
		m[t] = struct{}{}
	}
	return m
}

func defaultRules() []Rule {
	return []Rule{
		{
			Name:        "company-suffix",
			Pattern:     regexp.MustCompile(`\b(inc|incorporated|corp|corporation|ltd|limited|gmbh|ag|bv|nv|plc|llc|sa|co)\.?\s*$`),
			Replacement: "",
			Priority:    10,
		},
		{
			Name:        "honorific",
			Pattern:     regexp.MustCompile(`\b(mr|mrs|ms|dr|prof|sir|madam)\.?\s+`),
			Replacement: "",
			Priority:    10,
		},
		{
			Name:        "ampersand-and",
			Pattern:     regexp.MustCompile(`\s*&\s*|\band\b`),
			Replacement: " ",
			Priority:    20,
		},
		{
			Name:        "version-suffix",
			Pattern:     regexp.MustCompile(`_v\d+`),
			Replacement: "",
			Priority:    30,
		},
		{
			Name:        "date-suffix",
			Pattern:     regexp.MustCompile(`_\d{4}`),
			Replacement: "",
			Priority:    30,
		},
		{
			Name:        "environment-suffix",
			Pattern:     regexp.MustCompile(`-(prod|dev|stage|staging|test|qa)\b`),
			Replacement: "",
			Priority:    30,
		},
		{
			Name:        "schema-prefix",
			Pattern:     regexp.MustCompile(`\b(dbo|public)\.`),
			Replacement: "",
			Priority:    40,
		},
		{
			Name:        "strip-non-alphanumeric",
			Pattern:     regexp.MustCompile(`[^a-z0-9\s]`),
			Replacement: "",
			Priority:    100,
		},
	}
}
