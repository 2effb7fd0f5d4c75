// Package phone normalises caller numbers to E.164 so they can be used as
// the join key between calls and candidates.
package phone

import (
	"strings"
)

// DefaultCountryCode is applied to national-format numbers.
const DefaultCountryCode = "44"

// Normalize converts raw into E.164 ("+447700900123"). National numbers with
// a leading 0 get countryCode, "00" prefixes become "+". It returns "" when
// fewer than 8 digits remain.
func Normalize(raw, countryCode string) string {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	countryCode = strings.TrimPrefix(countryCode, "+")

	raw = strings.TrimSpace(raw)
	plus := strings.HasPrefix(raw, "+")

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case plus:
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case strings.HasPrefix(digits, "0"):
		digits = countryCode + digits[1:]
	case strings.HasPrefix(digits, countryCode) && len(digits) > 10:
	default:
		// bare national significant number, e.g. 7700900123
		if len(digits) == 10 {
			digits = countryCode + digits
		}
	}

	// UK trunk prefix kept after the country code: +44 (0)7700...
	if strings.HasPrefix(digits, countryCode+"0") {
		digits = countryCode + digits[len(countryCode)+1:]
	}

	if len(digits) < 8 || len(digits) > 15 {
		return ""
	}
	return "+" + digits
}
