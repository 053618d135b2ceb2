// Package resolve matches raw person and horse names that different sources
// spell differently (full-width letters, punctuation, spacing, word order)
// to a canonical identity.
package resolve

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Normalize standardizes a name for matching by:
//  1. Applying NFKC compatibility composition
//  2. Folding width (full-width ASCII to narrow, half-width katakana to wide)
//  3. Converting to uppercase
//  4. Replacing punctuation and symbols with spaces
//  5. Collapsing whitespace
//
// Normalize is idempotent.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	s = norm.NFKC.String(s)
	s = width.Fold.String(s)
	s = strings.ToUpper(s)

	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)

	return strings.Join(strings.Fields(s), " ")
}

// Tokens returns the normalized whitespace-separated tokens of s.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// TokenKey returns the normalized tokens of s sorted and joined, so that
// "SMITH J" and "J SMITH" share a key.
func TokenKey(s string) string {
	toks := Tokens(s)
	sort.Strings(toks)
	return strings.Join(toks, " ")
}
