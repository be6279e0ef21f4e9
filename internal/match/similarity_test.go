package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/contact-sync/internal/model"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
		tier Tier
	}{
		{name: "identical after normalization", a: "John Doe", b: "  john   DOE. ", want: 1.0, tier: TierExact},
		{name: "one edit in eight", a: "John Doe", b: "Jon Doe", want: 0.875, tier: TierMedium},
		{name: "one edit in ten", a: "Acme Trade", b: "Acme Trady", want: 0.9, tier: TierHigh},
		{name: "empty side", a: "", b: "John", want: 0, tier: TierNone},
		{name: "punctuation only side", a: "...", b: "John", want: 0, tier: TierNone},
		{name: "unrelated", a: "abc", b: "xyz", want: 0, tier: TierNone},
		{name: "multibyte counted in runes", a: "josé", b: "jose", want: 0.75, tier: TierLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, tt.tier, TierFor(got))
		})
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"John Doe", "Jane Doe"},
		{"ABC Company Ltd", "ABC Co Ltd"},
		{"kitten", "sitting"},
		{"", "anything"},
		{"राम कुमार", "राम कुमारी"},
	}
	for _, p := range pairs {
		assert.Equal(t, Similarity(p[0], p[1]), Similarity(p[1], p[0]), "pair %q", p)
	}
}

func TestSimilarity_Reflexive(t *testing.T) {
	for _, s := range []string{"a", "John Doe", "ABC   Company", "José"} {
		assert.Equal(t, 1.0, Similarity(s, s))
	}
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, TierHigh, TierFor(0.9))
	assert.Equal(t, TierMedium, TierFor(0.8999))
	assert.Equal(t, TierMedium, TierFor(0.8))
	assert.Equal(t, TierLow, TierFor(0.7))
	assert.Equal(t, TierNone, TierFor(0.6999))
}

func TestParseTier(t *testing.T) {
	tier, ok := ParseTier("medium")
	require.True(t, ok)
	assert.Equal(t, TierMedium, tier)

	tier, ok = ParseTier("")
	require.True(t, ok)
	assert.Equal(t, TierNone, tier)

	_, ok = ParseTier("certain")
	assert.False(t, ok)
}

func TestScorer_BestCandidate(t *testing.T) {
	registry := []model.Identity{
		{ID: "1", Name: "Jonathan Doe"},
		{ID: "2", Name: "Jon Doe"},
		{ID: "3", Name: "Jon Dow"},
		{ID: "4", Name: "Mary Major"},
		{ID: "5", Name: "John Doa"},
	}
	scorer := NewScorer(registry)

	got, ok := scorer.BestCandidate("John Doe")
	require.True(t, ok)
	assert.Equal(t, "2", got.Identity.ID, "earliest of the tied best scores wins")
	assert.Equal(t, TierMedium, got.Tier)

	_, ok = scorer.BestCandidate("Zed Zulu")
	assert.False(t, ok, "nothing reaches the low tier")

	_, ok = scorer.BestCandidate("   ")
	assert.False(t, ok)
}
