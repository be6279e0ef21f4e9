// Package normalize canonicalizes names and phone numbers for comparison.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Name canonicalizes a free-text identity string. It lowercases, drops every
// rune that is neither a word character nor whitespace, collapses whitespace
// runs to one space and trims. Name(Name(s)) == Name(s).
func Name(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(norm.NFC.String(s))

	var kept strings.Builder
	kept.Grow(len(s))
	for _, r := range s {
		if isWord(r) || unicode.IsSpace(r) {
			kept.WriteRune(r)
		}
	}

	// Dropping punctuation can join jamo or marks that NFC composes.
	return strings.Join(strings.Fields(norm.NFC.String(kept.String())), " ")
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// SameName reports whether two names normalize to the same non-empty value.
func SameName(a, b string) bool {
	na := Name(a)
	return na != "" && na == Name(b)
}

// Sanitize tidies a name for storage: trimmed, whitespace collapsed, case kept.
func Sanitize(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
