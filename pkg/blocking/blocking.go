// Package blocking narrows the candidate set a normalized name must be
// compared against, by generating a small set of coarse keys that union
// to catch reordered and misspelled names (spec §4.B).
package blocking

import (
	"sort"
	"strings"
)

const (
	prefixFamily = "pfx:"
	tokenFamily  = "tok:"
	bigramFamily = "bg:"
)

// Keys returns the distinct union of blocking key families for a
// normalized name: a 3-character prefix, the first two whitespace
// tokens sorted alphabetically, and a 2-character prefix.
func Keys(normalized string) []string {
	n := strings.TrimSpace(normalized)
	if n == "" {
		return nil
	}

	seen := make(map[string]struct{}, 3)
	var keys []string
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	add(prefixFamily + prefixOf(n, 3))
	add(bigramFamily + prefixOf(n, 2))

	if tok := tokenKey(n); tok != "" {
		add(tokenFamily + tok)
	}

	return keys
}

func prefixOf(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func tokenKey(n string) string {
	tokens := strings.Fields(n)
	if len(tokens) == 0 {
		return ""
	}
	if len(tokens) == 1 {
		return tokens[0]
	}

	first := append([]string{}, tokens[:2]...)
	sort.Strings(first)
	return strings.Join(first, "-")
}
