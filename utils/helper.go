package utils

import (
	"fmt"
	"strings"

	"github.com/ttacon/libphonenumber"
)

func NewString(s string) *string {
	return &s
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

// NormalizePhoneNumber formats a phone number to E.164 so equal numbers
// compare equal regardless of how they were typed.
func NormalizePhoneNumber(phoneNumber, countryCode string) (string, error) {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return "", err
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", fmt.Errorf("phone number is not valid")
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

// NormalizeLookup is the uppercase copy kept next to user name / email
// columns for case-insensitive lookups.
func NormalizeLookup(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
