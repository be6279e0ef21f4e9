package normalize

import (
	"strings"

	"github.com/Veraticus/contact-sync/internal/common"
)

// Phone length bounds, counted in digits.
const (
	MinPhoneDigits = 10
	MaxPhoneDigits = 15
)

// Reasons reported by ValidatePhone.
const (
	ReasonNoDigits = "no digits"
	ReasonTooShort = "too short"
	ReasonTooLong  = "too long"
)

// DefaultCountryCode is prefixed to ten-digit numbers for display.
const DefaultCountryCode = "91"

// PhoneValidation is the result of ValidatePhone.
type PhoneValidation struct {
	Reason string
	Valid  bool
}

// Phone returns only the ASCII digits of s. The stored and compared form of
// every phone number is this digit string.
func Phone(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ValidatePhone checks the digit count of a phone number.
func ValidatePhone(s string) PhoneValidation {
	digits := Phone(s)
	switch {
	case digits == "":
		return PhoneValidation{Reason: ReasonNoDigits}
	case len(digits) < MinPhoneDigits:
		return PhoneValidation{Reason: ReasonTooShort}
	case len(digits) > MaxPhoneDigits:
		return PhoneValidation{Reason: ReasonTooLong}
	default:
		return PhoneValidation{Valid: true}
	}
}

// PhoneError returns a validation error for an invalid phone, or nil.
func PhoneError(s string) error {
	if v := ValidatePhone(s); !v.Valid {
		return common.NewValidationError("phone", v.Reason)
	}
	return nil
}

// SamePhone reports whether two phones have the same non-empty digits.
func SamePhone(a, b string) bool {
	da := Phone(a)
	return da != "" && da == Phone(b)
}

// DisplayPhone formats a phone for people. Ten-digit numbers get the country
// code prefix; longer numbers are assumed to carry one already.
func DisplayPhone(s, countryCode string) string {
	digits := Phone(s)
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	switch {
	case digits == "":
		return ""
	case len(digits) == MinPhoneDigits:
		return "+" + Phone(countryCode) + " " + digits
	case len(digits) > MinPhoneDigits:
		return "+" + digits
	default:
		return digits
	}
}
