// Package similarity provides normalized string similarity scoring used
// by session dedup, camp merging, and cross-source duplicate detection.
package similarity

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

// DefaultThreshold is the score above which two names are treated as the
// same entity.
const DefaultThreshold = 0.80

// qualifierSuffix matches trailing grade/age qualifiers in parentheses,
// e.g. "(Grades 3-5)" or "(Ages 6-9)". Camps commonly publish the same
// program split by cohort; the qualifier must not defeat matching.
var qualifierSuffix = regexp.MustCompile(`(?i)\s*\((?:grades?|ages?)[^)]*\)\s*$`)

// Normalize lower-cases a name and strips trailing grade/age qualifiers.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	name = qualifierSuffix.ReplaceAllString(name, "")
	return strings.ToLower(strings.TrimSpace(name))
}

// Score returns a similarity score in [0, 1] between two names.
// Equal normalized names score 1.0; if either side normalizes to the
// empty string the score is 0.0; otherwise the score is
// 1 - levenshtein / max(len(a), len(b)).
func Score(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)

	if na == "" || nb == "" {
		return 0.0
	}
	if na == nb {
		return 1.0
	}

	dist := levenshtein.ComputeDistance(na, nb)
	maxLen := len([]rune(na))
	if l := len([]rune(nb)); l > maxLen {
		maxLen = l
	}

	return 1.0 - float64(dist)/float64(maxLen)
}

// Match reports whether two names score above the default threshold.
func Match(a, b string) bool {
	return Score(a, b) > DefaultThreshold
}
