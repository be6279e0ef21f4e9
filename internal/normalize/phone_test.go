package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/contact-sync/internal/common"
)

func TestPhone(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "", want: ""},
		{input: "98765-43210", want: "9876543210"},
		{input: "+91 (987) 654 3210", want: "919876543210"},
		{input: "phone: n/a", want: ""},
		{input: "９８７", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Phone(tt.input))
		})
	}
}

func TestPhone_ReturnsNewValue(t *testing.T) {
	original := "98765-43210"
	_ = Phone(original)
	assert.Equal(t, "98765-43210", original)
}

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason string
		valid  bool
	}{
		{name: "no digits", input: "abc", reason: ReasonNoDigits},
		{name: "empty", input: "", reason: ReasonNoDigits},
		{name: "too short", input: "123", reason: ReasonTooShort},
		{name: "nine digits", input: "123-456-789", reason: ReasonTooShort},
		{name: "ten digits", input: "98765 43210", valid: true},
		{name: "fifteen digits", input: "123456789012345", valid: true},
		{name: "sixteen digits", input: "1234567890123456", reason: ReasonTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidatePhone(tt.input)
			assert.Equal(t, tt.valid, got.Valid)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestPhoneError(t *testing.T) {
	require.NoError(t, PhoneError("9876543210"))

	err := PhoneError("123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))

	var ve *common.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "phone", ve.Field)
	assert.Equal(t, ReasonTooShort, ve.Reason)
}

func TestDisplayPhone(t *testing.T) {
	assert.Equal(t, "+91 9876543210", DisplayPhone("98765-43210", ""))
	assert.Equal(t, "+1 5555555555", DisplayPhone("555 555 5555", "+1"))
	assert.Equal(t, "+919876543210", DisplayPhone("919876543210", "91"))
	assert.Equal(t, "123", DisplayPhone("123", "91"))
	assert.Equal(t, "", DisplayPhone("", "91"))
}

func TestSamePhone(t *testing.T) {
	assert.True(t, SamePhone("98765-43210", "9876543210"))
	assert.False(t, SamePhone("", ""))
	assert.False(t, SamePhone("9876543210", "9876543211"))
}
