// Package normalize canonicalizes raw bank records and computes the
// deduplication fingerprints the rest of the engine keys on.
package normalize

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes combining marks, turning "é" into "e".
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Account canonicalizes an account number. Comparisons between account
// numbers are whitespace-insensitive: "BE26 2100 1607 0629" and
// "BE26210016070629" refer to the same account.
func Account(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !unicode.IsSpace(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// Counterparty canonicalizes a counterparty name for fingerprinting:
// lowercased, diacritics stripped, runs of whitespace collapsed to a
// single space, leading and trailing whitespace removed.
func Counterparty(s string) string {
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Amount parses a locale-formatted amount string into a fixed-point
// decimal. Both "1.234,56" (continental) and "1,234.56" (anglo) group
// and decimal separators are accepted, as are plain "1234.56" forms.
func Amount(s string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount %q", s)
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		// The separator occurring last is the decimal mark.
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case strings.Count(cleaned, ",") > 1:
		// Multiple commas can only be grouping.
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case lastComma >= 0:
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case strings.Count(cleaned, ".") > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable amount %q: %w", s, err)
	}
	return d, nil
}

// digitsOnly keeps the decimal digits of a string.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
