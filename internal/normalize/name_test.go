package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "whitespace only", input: " \t\n ", want: ""},
		{name: "punctuation only", input: "--.,!", want: ""},
		{name: "case and outer space", input: "  John DOE ", want: "john doe"},
		{name: "internal whitespace runs", input: "ABC   Company\tLtd", want: "abc company ltd"},
		{name: "punctuation removed", input: "O'Brien & Sons, Inc.", want: "obrien sons inc"},
		{name: "spaced dash collapses", input: "a - b", want: "a b"},
		{name: "underscore is a word char", input: "acme_corp", want: "acme_corp"},
		{name: "digits kept", input: "Shop No. 12", want: "shop no 12"},
		{name: "accents kept", input: "José Álvarez", want: "josé álvarez"},
		{name: "decomposed accent composes", input: "Jose\u0301", want: "jos\u00e9"},
		{name: "devanagari letters", input: "राम  कुमार", want: "राम कुमार"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Name(tt.input))
		})
	}
}

func TestName_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"John Doe",
		"  ABC   Company   Ltd  ",
		"a - b - c",
		"Mr. Smith,   Jr.",
		"éé",
		"İstanbul Ticaret",
		"ǅemal",
		"Ⅻ Roman",
		"tab\tand\nnewline",
		"___",
		"राम  कुमार",
		"한국 상사",
		"ᄀ-ᅡ",
	}

	for _, s := range inputs {
		once := Name(s)
		assert.Equal(t, once, Name(once), "Name not idempotent for %q", s)
	}
}

func TestSameName(t *testing.T) {
	assert.True(t, SameName("John Doe", "john  DOE."))
	assert.False(t, SameName("", ""), "empty names never match")
	assert.False(t, SameName("!!", "??"))
	assert.False(t, SameName("John Doe", "Jon Doe"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "ABC Company Ltd", Sanitize("  ABC   Company\tLtd "))
	assert.Equal(t, "", Sanitize("   "))
}
