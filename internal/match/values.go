package match

import (
	"strconv"
	"strings"
)

// siPrefixes maps engineering-notation prefixes to multipliers. Case
// matters: "m" is milli, "M" is mega.
var siPrefixes = map[rune]float64{
	'p': 1e-12,
	'n': 1e-9,
	'µ': 1e-6,
	'u': 1e-6,
	'm': 1e-3,
	'k': 1e3,
	'K': 1e3,
	'M': 1e6,
	'G': 1e9,
}

// ParseQuantity parses a string-encoded physical quantity such as "50V",
// "100nF", "4.7µF", "10 mΩ" or "0.25%" into a float in base units. The unit
// itself is ignored; only the magnitude and SI prefix matter, since both
// sides of a comparison come from the same catalog attribute.
func ParseQuantity(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	// Split the numeric prefix from the unit suffix.
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0, false
	}

	num, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}

	unit := strings.TrimSpace(s[end:])
	if unit == "" || unit == "%" {
		return num, true
	}

	runes := []rune(unit)
	if mult, ok := siPrefixes[runes[0]]; ok && len(runes) > 1 {
		return num * mult, true
	}
	return num, true
}

// normalizeCategory canonicalizes a categorical attribute value for identity
// comparison: case-insensitive, surrounding whitespace ignored.
func normalizeCategory(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// parseFlag interprets a boolean-ish attribute value ("Yes", "true", "1").
func parseFlag(s string) (bool, bool) {
	switch normalizeCategory(s) {
	case "yes", "true", "1", "y":
		return true, true
	case "no", "false", "0", "n", "":
		return false, true
	default:
		return false, false
	}
}
