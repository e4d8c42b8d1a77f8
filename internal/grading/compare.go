// Package grading holds the pure answer-comparison primitives used by the
// grading engine: exact matching, Levenshtein-based fuzzy matching, and
// multi-select option comparison. Everything here is deterministic and
// locale-independent; grading reproducibility depends on it.
package grading

import (
	"sort"
	"strings"
)

// DefaultFuzzyThreshold is the similarity cutoff for fill-blank grading.
const DefaultFuzzyThreshold = 0.8

// ExactMatch compares a user answer against the canonical answer.
// Empty inputs never match. With trim, surrounding whitespace is ignored;
// with ignoreCase, comparison is case-folded.
func ExactMatch(userAnswer, correctAnswer string, ignoreCase, trim bool) bool {
	if userAnswer == "" || correctAnswer == "" {
		return false
	}
	if trim {
		userAnswer = strings.TrimSpace(userAnswer)
		correctAnswer = strings.TrimSpace(correctAnswer)
	}
	if ignoreCase {
		return strings.EqualFold(userAnswer, correctAnswer)
	}
	return userAnswer == correctAnswer
}

// ExactMatchDefault is ExactMatch with trim and case folding enabled.
func ExactMatchDefault(userAnswer, correctAnswer string) bool {
	return ExactMatch(userAnswer, correctAnswer, true, true)
}

// FuzzyMatch reports whether the case-folded similarity
// 1 - distance/max(len) reaches the threshold. Empty inputs never match.
func FuzzyMatch(userAnswer, correctAnswer string, threshold float64) bool {
	if userAnswer == "" || correctAnswer == "" {
		return false
	}
	return Similarity(strings.ToLower(userAnswer), strings.ToLower(correctAnswer)) >= threshold
}

// Similarity returns 1 - levenshtein(a,b)/max(len(a),len(b)) over runes.
func Similarity(a, b string) float64 {
	ar := []rune(a)
	br := []rune(b)
	maxLen := len(ar)
	if len(br) > maxLen {
		maxLen = len(br)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(LevenshteinDistance(a, b))/float64(maxLen)
}

// LevenshteinDistance computes the classic edit distance (unit-cost insert,
// delete, substitute) over runes with a rolling one-row DP array.
func LevenshteinDistance(a, b string) int {
	ar := []rune(a)
	br := []rune(b)
	n, m := len(ar), len(br)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}

	dp := make([]int, m+1)
	for j := 0; j <= m; j++ {
		dp[j] = j
	}
	for i := 1; i <= n; i++ {
		prev := dp[0]
		dp[0] = i
		for j := 1; j <= m; j++ {
			tmp := dp[j]
			cost := 0
			if ar[i-1] != br[j-1] {
				cost = 1
			}
			dp[j] = min3(dp[j]+1, dp[j-1]+1, prev+cost)
			prev = tmp
		}
	}
	return dp[m]
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}

// MultipleChoiceResult is the outcome of comparing multi-select answers.
// Exactly one of FullyCorrect, PartiallyCorrect, HasWrongOption is set for
// non-empty inputs.
type MultipleChoiceResult struct {
	FullyCorrect      bool
	PartiallyCorrect  bool
	HasWrongOption    bool
	CorrectCount      int
	TotalCorrectCount int
}

// CompareMultipleChoice treats both answers as unordered, case-insensitive
// sets of single-character option labels ("CBA" equals "ABC"). Any selected
// label outside the correct set makes the answer wrong with no partial
// credit; a proper subset of the correct set is partially correct.
func CompareMultipleChoice(userAnswer, correctAnswer string) MultipleChoiceResult {
	if userAnswer == "" || correctAnswer == "" {
		return MultipleChoiceResult{}
	}

	userSet := optionSet(userAnswer)
	correctSet := optionSet(correctAnswer)

	if setKey(userSet) == setKey(correctSet) {
		return MultipleChoiceResult{
			FullyCorrect:      true,
			CorrectCount:      len(correctSet),
			TotalCorrectCount: len(correctSet),
		}
	}

	for opt := range userSet {
		if _, ok := correctSet[opt]; !ok {
			return MultipleChoiceResult{HasWrongOption: true, TotalCorrectCount: len(correctSet)}
		}
	}

	// Every selected option is correct but the selection is incomplete.
	return MultipleChoiceResult{
		PartiallyCorrect:  true,
		CorrectCount:      len(userSet),
		TotalCorrectCount: len(correctSet),
	}
}

func optionSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(s))
	for _, r := range strings.ToUpper(s) {
		set[r] = struct{}{}
	}
	return set
}

func setKey(set map[rune]struct{}) string {
	opts := make([]rune, 0, len(set))
	for r := range set {
		opts = append(opts, r)
	}
	sort.Slice(opts, func(i, j int) bool { return opts[i] < opts[j] })
	return string(opts)
}
