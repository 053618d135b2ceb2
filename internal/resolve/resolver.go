package resolve

import (
	"context"

	"github.com/rotisserie/eris"
)

// DefaultMinSimilarity is the score below which no candidate is accepted.
const DefaultMinSimilarity = 0.75

// checkEvery is how many candidates are scored between context checks.
const checkEvery = 256

// ErrUnmatchedEntity marks a name or row that could not be tied to a known
// entrant. Integration records it as a row's exclusion reason.
var ErrUnmatchedEntity = eris.New("unmatched entity")

// Candidate is one known spelling of a canonical identity.
type Candidate struct {
	ID   string
	Name string
}

// Match is the outcome of resolving one raw name.
type Match struct {
	Raw   string
	ID    string
	Name  string // the candidate spelling that matched
	Score float64
	Exact bool
	// Ambiguous is set when another identity tied the best score.
	Ambiguous bool
}

// Found reports whether the raw name resolved to an identity.
func (m Match) Found() bool { return m.ID != "" }

// Index is a prepared, read-only candidate list.
type Index struct {
	cands []Candidate
	forms []form
}

// NewIndex precomputes normalized forms for cands. Order is preserved and
// decides ties.
func NewIndex(cands []Candidate) *Index {
	ix := &Index{
		cands: make([]Candidate, len(cands)),
		forms: make([]form, len(cands)),
	}
	copy(ix.cands, cands)
	for i, c := range cands {
		ix.forms[i] = newForm(c.Name)
	}
	return ix
}

// Len returns the number of candidates.
func (ix *Index) Len() int { return len(ix.cands) }

// Resolve is the context-free form of Index.ResolveContext over an ad hoc
// candidate list.
func Resolve(raw string, cands []Candidate, minSimilarity float64) Match {
	m, _ := NewIndex(cands).ResolveContext(context.Background(), raw, minSimilarity)
	return m
}

// ResolveContext finds the candidate identity for raw. An exact normalized
// match wins outright (first listed). Otherwise the highest similarity wins,
// ties going to the first listed candidate. A best score below minSimilarity
// yields a Match with empty ID.
func (ix *Index) ResolveContext(ctx context.Context, raw string, minSimilarity float64) (Match, error) {
	out := Match{Raw: raw}
	target := newForm(raw)
	if target.norm == "" {
		return out, nil
	}

	for i, f := range ix.forms {
		if f.norm == target.norm {
			c := ix.cands[i]
			return Match{Raw: raw, ID: c.ID, Name: c.Name, Score: 1, Exact: true}, nil
		}
	}

	best := -1
	bestScore := 0.0
	ambiguous := false
	for i, f := range ix.forms {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return out, eris.Wrap(err, "resolve: scan cancelled")
			}
		}
		s := similarity(target, f)
		switch {
		case best < 0 || s > bestScore:
			best, bestScore, ambiguous = i, s, false
		case s == bestScore && ix.cands[i].ID != ix.cands[best].ID:
			ambiguous = true
		}
	}

	if best < 0 || bestScore < minSimilarity {
		return out, nil
	}
	c := ix.cands[best]
	return Match{Raw: raw, ID: c.ID, Name: c.Name, Score: bestScore, Ambiguous: ambiguous}, nil
}
