package model

// Confidence is the certainty of an exact-match lookup.
type Confidence string

const (
	// ConfidenceExact means the normalized names were identical.
	ConfidenceExact Confidence = "exact"
	// ConfidenceNone means no registry entry matched.
	ConfidenceNone Confidence = "none"
)

// MatchType describes how a match was made.
type MatchType string

const (
	// MatchNameExact is a normalized-name equality match.
	MatchNameExact MatchType = "name_exact"
	// MatchNone means nothing matched.
	MatchNone MatchType = "no_match"
)

// MatchResult is the outcome of looking a name up in the registry.
type MatchResult struct {
	Identity   *Identity
	Confidence Confidence
	MatchType  MatchType
}

// Matched reports whether an identity was found.
func (m MatchResult) Matched() bool {
	return m.Identity != nil && m.MatchType == MatchNameExact
}

// NoMatch is the empty match result.
func NoMatch() MatchResult {
	return MatchResult{Confidence: ConfidenceNone, MatchType: MatchNone}
}
