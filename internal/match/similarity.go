// Package match links transactions to financial entities by fuzzy name
// comparison.
package match

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatchThreshold is the minimum similarity score a candidate needs to
// be accepted. Below it the matcher reports no match rather than a
// low-confidence guess.
const MatchThreshold = 80

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// titles are honorifics dropped before comparison. Bank statements
// routinely prepend them while member rosters do not.
var titles = map[string]bool{
	"mr":   true,
	"mrs":  true,
	"dr":   true,
	"mme":  true,
	"mlle": true,
}

// nameTokens normalizes a name into comparison tokens: lowercased,
// diacritics stripped, hyphens treated as separators, titles removed.
func nameTokens(s string) []string {
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if r == '-' || r == '.' {
			return ' '
		}
		return r
	}, s)

	var tokens []string
	for _, tok := range strings.Fields(s) {
		if titles[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// scoringTokens keeps the tokens that participate in word counting.
// Single characters (initials, stray punctuation remnants) carry no
// signal.
func scoringTokens(tokens []string) []string {
	var out []string
	for _, tok := range tokens {
		if len(tok) > 1 {
			out = append(out, tok)
		}
	}
	return out
}

// wordsMatch reports whether two tokens refer to the same word: equal,
// or one a substring of the other ("dupont" vs "dupontlavie").
func wordsMatch(a, b string) bool {
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

// NameSimilarity scores how likely two free-text names designate the
// same person, from 0 to 100. Identical normalized names score 100,
// containment scores 90, anything else scores by the share of matched
// words against the longer name. Word order does not matter, so
// "Jean Dupont" and "Dupont Jean" score 100.
func NameSimilarity(a, b string) int {
	tokensA := nameTokens(a)
	tokensB := nameTokens(b)
	compactA := strings.Join(tokensA, "")
	compactB := strings.Join(tokensB, "")

	if compactA == "" || compactB == "" {
		return 0
	}
	if compactA == compactB {
		return 100
	}
	if strings.Contains(compactA, compactB) || strings.Contains(compactB, compactA) {
		return 90
	}

	wordsA := scoringTokens(tokensA)
	wordsB := scoringTokens(tokensB)
	longest := len(wordsA)
	if len(wordsB) > longest {
		longest = len(wordsB)
	}
	if longest == 0 {
		return 0
	}

	matched := 0
	for _, wa := range wordsA {
		for _, wb := range wordsB {
			if wordsMatch(wa, wb) {
				matched++
				break
			}
		}
	}
	// Half-away-from-zero rounding: 2 of 3 words scores 67, not 66.
	return int(math.Round(float64(matched) / float64(longest) * 100))
}
