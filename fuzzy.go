package redactor

import "strings"

// MaxFuzzyLevel is the highest supported fuzzy consolidation level.
const MaxFuzzyLevel = 3

// fuzzyThresholds maps each level >= 1 to the minimum normalized similarity
// two surface forms must reach to be considered the same entity. Lower
// levels are stricter. Level 0 never reaches here (exact matching only).
//
// The thresholds are deliberate, tested constants: at level 1 a single-edit
// variation of a 10-character name ("John Smith" vs "Jon Smith") merges,
// while anything looser does not.
var fuzzyThresholds = [MaxFuzzyLevel + 1]float64{1.0, 0.90, 0.80, 0.70}

// FuzzyMatcher decides whether two surface forms of the same entity type
// refer to the same real-world entity. It is a pure function of its inputs
// and the configured level; it holds no state and is safe for concurrent use.
type FuzzyMatcher struct {
	level int
}

// NewFuzzyMatcher creates a matcher for the given level. Level 0 merges only
// case-insensitively identical surfaces; levels 1..3 progressively relax the
// similarity threshold. Out-of-range levels are a ConfigError.
func NewFuzzyMatcher(level int) (*FuzzyMatcher, error) {
	if level < 0 || level > MaxFuzzyLevel {
		return nil, configErrorf("fuzzy_mapping", "fuzzy level %d out of range [0, %d]", level, MaxFuzzyLevel)
	}
	return &FuzzyMatcher{level: level}, nil
}

// Level returns the configured fuzzy level.
func (f *FuzzyMatcher) Level() int { return f.level }

// Same reports whether candidate and known are surface forms of the same
// entity. The entityType is part of the contract: callers must only compare
// surfaces of one type, and implementations never merge across types.
func (f *FuzzyMatcher) Same(entityType, candidate, known string) bool {
	_ = entityType // comparisons are already scoped per type by the caller

	if strings.EqualFold(candidate, known) {
		return true
	}
	if f.level == 0 {
		return false
	}
	return similarity(normalizeSurface(candidate), normalizeSurface(known)) >= fuzzyThresholds[f.level]
}

// normalizeSurface lowercases and collapses internal whitespace so that
// formatting differences do not count as edits.
func normalizeSurface(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// similarity is the normalized edit-distance ratio: 1 - lev(a,b)/max(len).
// 1.0 means identical, 0.0 means nothing in common.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

// levenshtein computes the edit distance between two strings using the
// two-row dynamic programming formulation.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, minInt(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
