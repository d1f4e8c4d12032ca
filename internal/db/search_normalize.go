package db

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeSearch applies the normalization rules used for post search:
// accents are transliterated to ASCII, whitespace is collapsed, and the
// result is lowercased. This keeps "Café" and "cafe" equivalent.
func NormalizeSearch(s string) string {
	if s == "" {
		return ""
	}

	s = transliterate(s)
	s = collapseSpaces(s)
	s = strings.ToLower(s)

	return strings.TrimSpace(s)
}

// transliterate converts accented characters to their ASCII equivalents.
func transliterate(s string) string {
	// Decompose characters and strip combining marks
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)), // Mn: Mark, Nonspacing
		norm.NFC,
	)

	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

// collapseSpaces reduces runs of whitespace to a single space.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
