package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarity_Bounds(t *testing.T) {
	pairs := [][2]string{
		{"J.スミス", "Ｊ．スミス"},
		{"ルメール", "C.ルメール"},
		{"Sunny Road", "Blue Lagoon"},
		{"", "anything"},
		{"武豊", "武 豊"},
	}
	for _, p := range pairs {
		s := Similarity(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
		assert.InDelta(t, s, Similarity(p[1], p[0]), 1e-12, "similarity should be symmetric for %v", p)
	}
	assert.Equal(t, 1.0, Similarity("J.スミス", "Ｊ．スミス"))
	assert.Equal(t, 1.0, Similarity("Smith J", "J Smith"))
	assert.Equal(t, 0.0, Similarity("", "J Smith"))
}

func TestResolve_FullWidthVariantIsExact(t *testing.T) {
	cands := []Candidate{
		{ID: "lemaire-c", Name: "C.ルメール"},
		{ID: "smith-j", Name: "J.スミス"},
	}
	m := Resolve("Ｊ．スミス", cands, DefaultMinSimilarity)
	require.True(t, m.Found())
	assert.Equal(t, "smith-j", m.ID)
	assert.True(t, m.Exact)
	assert.Equal(t, 1.0, m.Score)
}

func TestResolve_ExactBeatsHigherListedFuzzy(t *testing.T) {
	cands := []Candidate{
		{ID: "a", Name: "SMITH J"}, // same token key, not the same normalized form
		{ID: "b", Name: "J SMITH"},
	}
	m := Resolve("J. Smith", cands, DefaultMinSimilarity)
	assert.Equal(t, "b", m.ID)
	assert.True(t, m.Exact)
}

func TestResolve_TieGoesToFirstListed(t *testing.T) {
	cands := []Candidate{
		{ID: "a", Name: "A スミス"},
		{ID: "b", Name: "B スミス"},
	}
	m := Resolve("スミス", cands, 0.5)
	require.True(t, m.Found())
	assert.Equal(t, "a", m.ID)
	assert.True(t, m.Ambiguous)
	assert.False(t, m.Exact)
}

func TestResolve_BelowThresholdIsNoMatch(t *testing.T) {
	cands := []Candidate{{ID: "a", Name: "Christophe Lemaire"}}
	m := Resolve("Yutaka Take", cands, DefaultMinSimilarity)
	assert.False(t, m.Found())
	assert.Equal(t, "Yutaka Take", m.Raw)
}

func TestResolve_EmptyRaw(t *testing.T) {
	m := Resolve("  ", []Candidate{{ID: "a", Name: "A"}}, DefaultMinSimilarity)
	assert.False(t, m.Found())
}

func TestResolve_VariantsShareIdentity(t *testing.T) {
	cands := []Candidate{
		{ID: "a", Name: "ルメール"},
		{ID: "a", Name: "C.ルメール"},
	}
	m := Resolve("Cルメール", cands, 0.5)
	assert.Equal(t, "a", m.ID)
	assert.False(t, m.Ambiguous)
}

func TestResolveContext_Cancelled(t *testing.T) {
	cands := make([]Candidate, 1000)
	for i := range cands {
		cands[i] = Candidate{ID: "x", Name: "Somebody Else"}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewIndex(cands).ResolveContext(ctx, "Nobody", DefaultMinSimilarity)
	assert.Error(t, err)
}
