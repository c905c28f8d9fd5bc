package core

import (
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// DefaultMaxFuzzyDistance is the largest edit distance that still yields a suggestion.
const DefaultMaxFuzzyDistance = 2

// EditDistance returns the Levenshtein distance where insertion, deletion and
// substitution each cost 1.
func EditDistance(a, b string) int {
	return levenshtein.DistanceForStrings([]rune(a), []rune(b), levenshtein.DefaultOptionsWithSub)
}

// ClosestMatch returns the candidate with the smallest edit distance to input.
// Ties resolve to the earliest candidate. Returns "" and -1 for no candidates.
func ClosestMatch(input string, candidates []string) (string, int) {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := EditDistance(input, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// normalizeEnum trims, uppercases and collapses inner whitespace.
func normalizeEnum(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// MatchEnum resolves raw against allowed values after case/space
// normalization. A near miss is never accepted: it returns an
// *OrganizationMismatchError whose Suggestion names the closest value when it
// is within maxDistance.
func MatchEnum(field, raw string, allowed []string, maxDistance int) (string, error) {
	value := normalizeEnum(raw)
	normalized := make([]string, len(allowed))
	for i, a := range allowed {
		normalized[i] = normalizeEnum(a)
		if value == normalized[i] {
			return allowed[i], nil
		}
	}

	mismatch := &OrganizationMismatchError{
		Field:   field,
		Value:   strings.TrimSpace(raw),
		Allowed: allowed,
	}
	best, dist := ClosestMatch(value, normalized)
	if dist >= 0 && dist <= maxDistance {
		for i, n := range normalized {
			if n == best {
				mismatch.Suggestion = allowed[i]
				break
			}
		}
		mismatch.Distance = dist
	}
	return "", mismatch
}
