// Package similarity computes a composite string-similarity score
// between two already-normalized names, adapted from the teacher's
// matching.Scorer into the fixed three-signal weighted composite the
// decision engine expects (spec §4.C), with Soundex/Metaphone kept
// available as optional extra signals rather than scored components.
package similarity

import (
	"strings"
	"unicode"
)

// Weights holds the composite weighting for the three required
// signals. They must sum to 1.0; pkg/resolveropts enforces this when
// options are validated, and New does not check it.
type Weights struct {
	Levenshtein float64
	JaroWinkler float64
	Jaccard     float64
}

// DefaultWeights returns the defaults named in the component design.
func DefaultWeights() Weights {
	return Weights{Levenshtein: 0.40, JaroWinkler: 0.35, Jaccard: 0.25}
}

// Breakdown is the set of component scores behind one composite score,
// carried into MatchDecision so historical decisions stay explainable.
type Breakdown struct {
	Exact       float64
	Levenshtein float64
	JaroWinkler float64
	Jaccard     float64
	Composite   float64
}

// Scorer computes composite similarity using a fixed set of weights.
type Scorer struct {
	weights Weights
}

// New returns a Scorer for the given weights. It does not validate that
// the weights sum to 1.0; callers validate at config load (spec §4.C),
// see pkg/resolveropts.
func New(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score returns the full breakdown of comparing two normalized strings.
// Exact equality shortcuts every component to 1.0.
func (s *Scorer) Score(a, b string) Breakdown {
	if a == b {
		return Breakdown{Exact: 1, Levenshtein: 1, JaroWinkler: 1, Jaccard: 1, Composite: 1}
	}

	lev := levenshteinRatio(a, b)
	jw := jaroWinkler(a, b)
	jac := tokenJaccard(a, b)

	composite := s.weights.Levenshtein*lev + s.weights.JaroWinkler*jw + s.weights.Jaccard*jac
	if composite < 0 {
		composite = 0
	}
	if composite > 1 {
		composite = 1
	}

	return Breakdown{Levenshtein: lev, JaroWinkler: jw, Jaccard: jac, Composite: composite}
}

// levenshteinRatio returns 1 - editDistance(a,b)/max(|a|,|b|).
func levenshteinRatio(a, b string) float64 {
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshteinDistance(a, b))/float64(maxLen)
}

func levenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)
	for j := range prevRow {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(min(row[j-1]+1, prevRow[j]+1), prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}

const (
	jaroWinklerPrefixBonus = 0.1
	jaroWinklerMaxPrefix   = 4
)

func jaroWinkler(a, b string) float64 {
	if a == b {
		return 1
	}

	jaro := jaroSimilarity(a, b)

	prefixLen := 0
	for i := 0; i < len(a) && i < len(b) && i < jaroWinklerMaxPrefix; i++ {
		if a[i] != b[i] {
			break
		}
		prefixLen++
	}

	return jaro + float64(prefixLen)*jaroWinklerPrefixBonus*(1-jaro)
}

func jaroSimilarity(a, b string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	matchDist := max(len(a), len(b))/2 - 1
	if matchDist < 0 {
		matchDist = 0
	}

	aMatches := make([]bool, len(a))
	bMatches := make([]bool, len(b))

	matches := 0
	for i := 0; i < len(a); i++ {
		start := max(0, i-matchDist)
		end := min(len(b), i+matchDist+1)

		for j := start; j < end; j++ {
			if bMatches[j] || a[i] != b[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := 0; i < len(a); i++ {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2

	return (m/float64(len(a)) + m/float64(len(b)) + (m-t)/m) / 3
}

func tokenJaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	tokens := strings.Fields(s)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// Soundex returns the four-character Soundex code for s, available as
// an optional extra signal outside the required composite.
func Soundex(s string) string {
	if len(s) == 0 {
		return ""
	}

	s = strings.ToUpper(s)
	result := string(s[0])
	prevCode := soundexCode(rune(s[0]))

	for i := 1; i < len(s) && len(result) < 4; i++ {
		r := rune(s[i])
		if !unicode.IsLetter(r) {
			continue
		}
		code := soundexCode(r)
		if code != "0" && code != prevCode {
			result += code
		}
		prevCode = code
	}

	for len(result) < 4 {
		result += "0"
	}
	return result
}

func soundexCode(r rune) string {
	switch r {
	case 'B', 'F', 'P', 'V':
		return "1"
	case 'C', 'G', 'J', 'K', 'Q', 'S', 'X', 'Z':
		return "2"
	case 'D', 'T':
		return "3"
	case 'L':
		return "4"
	case 'M', 'N':
		return "5"
	case 'R':
		return "6"
	default:
		return "0"
	}
}

// Metaphone returns a simplified Metaphone code for s, available as an
// optional extra signal outside the required composite.
func Metaphone(s string) string {
	s = strings.ToUpper(s)

	var letters strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters.WriteRune(r)
		}
	}
	word := letters.String()
	if word == "" {
		return ""
	}

	var out strings.Builder
	var prevCode byte
	for i := 0; i < len(word) && out.Len() < 6; i++ {
		code := metaphoneCode(word[i], i, word)
		if code != 0 && code != prevCode {
			out.WriteByte(code)
			prevCode = code
		}
	}
	return out.String()
}

func metaphoneCode(c byte, pos int, word string) byte {
	switch c {
	case 'A', 'E', 'I', 'O', 'U':
		if pos == 0 {
			return c
		}
		return 0
	case 'C':
		if pos+1 < len(word) && (word[pos+1] == 'I' || word[pos+1] == 'E' || word[pos+1] == 'Y') {
			return 'S'
		}
		return 'K'
	case 'D':
		return 'T'
	case 'G':
		return 'J'
	case 'H', 'W', 'Y':
		return 0
	case 'P':
		if pos+1 < len(word) && word[pos+1] == 'H' {
			return 'F'
		}
		return 'P'
	case 'Q':
		return 'K'
	case 'V':
		return 'F'
	case 'X':
		return 'S'
	default:
		return c
	}
}
