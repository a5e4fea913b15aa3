package blocking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys_EmptyInput(t *testing.T) {
	assert.Nil(t, Keys(""))
	assert.Nil(t, Keys("   "))
}

func TestKeys_ShortNameCollapsesPrefixFamilies(t *testing.T) {
	keys := Keys("ab")
	assert.Contains(t, keys, "pfx:ab")
	assert.Contains(t, keys, "bg:ab")
	assert.Contains(t, keys, "tok:ab")
}

func TestKeys_TokenFamilySortsFirstTwoTokens(t *testing.T) {
	keys := Keys("johnson smith industries")
	assert.Contains(t, keys, "tok:johnson-smith")
}

func TestKeys_ReorderedNamesShareTokenKey(t *testing.T) {
	a := Keys("smith johnson industries")
	b := Keys("johnson smith corp")
	assert.Contains(t, a, "tok:johnson-smith")
	assert.Contains(t, b, "tok:johnson-smith")
}

func TestKeys_NoDuplicateKeysWhenFamiliesCollide(t *testing.T) {
	keys := Keys("ab")
	seen := make(map[string]int)
	for _, k := range keys {
		seen[k]++
	}
	for k, count := range seen {
		assert.Equal(t, 1, count, "key %q appeared more than once", k)
	}
}
