// Package match finds registry identities for imported names.
//
// Exact matching and similarity scoring are kept apart on purpose: ExactMatcher
// is the only path that links records automatically, while similarity only
// proposes candidates that a person (or an explicitly enabled tier) confirms.
package match

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/normalize"
)

// Tier buckets a similarity score.
type Tier int

const (
	// TierNone is below every threshold.
	TierNone Tier = iota
	// TierLow is a score of at least 0.7.
	TierLow
	// TierMedium is a score of at least 0.8.
	TierMedium
	// TierHigh is a score of at least 0.9.
	TierHigh
	// TierExact is identical normalized names.
	TierExact
)

// Tier thresholds.
const (
	HighThreshold   = 0.9
	MediumThreshold = 0.8
	LowThreshold    = 0.7
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return "none"
	}
}

// ParseTier converts a tier name. The empty string parses as TierNone.
func ParseTier(s string) (Tier, bool) {
	for _, t := range []Tier{TierNone, TierLow, TierMedium, TierHigh, TierExact} {
		if t.String() == s {
			return t, true
		}
	}
	if s == "" {
		return TierNone, true
	}
	return TierNone, false
}

// Similarity scores two names in [0,1] using Levenshtein distance over their
// normalized forms.
func Similarity(a, b string) float64 {
	return similarityNormalized(normalize.Name(a), normalize.Name(b))
}

func similarityNormalized(na, nb string) float64 {
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}

	maxLen := max(utf8.RuneCountInString(na), utf8.RuneCountInString(nb))
	distance := levenshtein.ComputeDistance(na, nb)
	return float64(maxLen-distance) / float64(maxLen)
}

// TierFor buckets a score.
func TierFor(score float64) Tier {
	switch {
	case score >= 1.0:
		return TierExact
	case score >= HighThreshold:
		return TierHigh
	case score >= MediumThreshold:
		return TierMedium
	case score >= LowThreshold:
		return TierLow
	default:
		return TierNone
	}
}

// Candidate is a registry identity proposed by similarity.
type Candidate struct {
	Identity model.Identity
	Score    float64
	Tier     Tier
}

// Scorer proposes fuzzy candidates from a registry snapshot.
type Scorer struct {
	identities []model.Identity
	normalized []string
}

// NewScorer prepares a scorer over the snapshot.
func NewScorer(identities []model.Identity) *Scorer {
	normalized := make([]string, len(identities))
	for i, id := range identities {
		normalized[i] = normalize.Name(id.Name)
	}
	return &Scorer{identities: identities, normalized: normalized}
}

// BestCandidate returns the highest-scoring identity at or above the low
// tier. Ties go to the identity that comes first in registry order.
func (s *Scorer) BestCandidate(name string) (Candidate, bool) {
	query := normalize.Name(name)
	if query == "" {
		return Candidate{}, false
	}

	best := -1
	bestScore := 0.0
	for i, candidate := range s.normalized {
		score := similarityNormalized(query, candidate)
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if best < 0 || TierFor(bestScore) == TierNone {
		return Candidate{}, false
	}
	return Candidate{
		Identity: s.identities[best],
		Score:    bestScore,
		Tier:     TierFor(bestScore),
	}, true
}
