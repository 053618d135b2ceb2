package resolve

import (
	"strings"

	"github.com/agext/levenshtein"
)

// Similarity scores two raw names in [0,1]. It is the larger of the token-set
// Jaccard index and the edit-distance similarity of the token-sorted forms.
// Identical normalized names score 1.
func Similarity(a, b string) float64 {
	return similarity(newForm(a), newForm(b))
}

// form caches the derived representations of one name.
type form struct {
	norm  string
	key   string
	words map[string]bool
}

func newForm(s string) form {
	toks := Tokens(s)
	set := make(map[string]bool, len(toks))
	for _, t := range toks {
		set[t] = true
	}
	return form{
		norm:  strings.Join(toks, " "),
		key:   TokenKey(s),
		words: set,
	}
}

func similarity(a, b form) float64 {
	if a.norm == "" || b.norm == "" {
		return 0
	}
	if a.norm == b.norm || a.key == b.key {
		return 1
	}
	j := jaccard(a.words, b.words)
	// Compare without spaces so "J SUMISU" and "JSUMISU" are close.
	e := levenshtein.Similarity(strings.ReplaceAll(a.key, " ", ""), strings.ReplaceAll(b.key, " ", ""), nil)
	if e > j {
		return e
	}
	return j
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a)
	for w := range b {
		if !a[w] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
