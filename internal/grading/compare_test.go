package grading

import "testing"

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"same", "same", 0},
		{"flaw", "lawn", 2},
		{"color", "colour", 1},
		{"日本語", "日本", 1},
	}
	for _, tt := range tests {
		if got := LevenshteinDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("LevenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		// Distance is symmetric.
		if got := LevenshteinDistance(tt.b, tt.a); got != tt.want {
			t.Errorf("LevenshteinDistance(%q, %q) = %d, want %d", tt.b, tt.a, got, tt.want)
		}
	}
}

func TestFuzzyMatch(t *testing.T) {
	tests := []struct {
		user, correct string
		threshold     float64
		want          bool
	}{
		{"kitten", "sitting", 0.8, false},
		{"color", "colour", 0.8, true},
		{"COLOR", "colour", 0.8, true},
		{"", "answer", 0.8, false},
		{"answer", "", 0.8, false},
		{"exact", "exact", 1.0, true},
		{"totally", "different", 0.8, false},
	}
	for _, tt := range tests {
		if got := FuzzyMatch(tt.user, tt.correct, tt.threshold); got != tt.want {
			t.Errorf("FuzzyMatch(%q, %q, %v) = %v, want %v", tt.user, tt.correct, tt.threshold, got, tt.want)
		}
	}
}

func TestExactMatch(t *testing.T) {
	tests := []struct {
		name          string
		user, correct string
		ignoreCase    bool
		trim          bool
		want          bool
	}{
		{"trim and fold", " A ", "a", true, true, true},
		{"case sensitive", "A", "a", false, true, false},
		{"no trim", " A", "A", true, false, false},
		{"empty user", "", "a", true, true, false},
		{"empty correct", "a", "", true, true, false},
		{"plain equal", "True", "true", true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExactMatch(tt.user, tt.correct, tt.ignoreCase, tt.trim); got != tt.want {
				t.Errorf("ExactMatch(%q, %q, %v, %v) = %v, want %v",
					tt.user, tt.correct, tt.ignoreCase, tt.trim, got, tt.want)
			}
		})
	}

	if !ExactMatchDefault(" A ", "a") {
		t.Error("ExactMatchDefault(\" A \", \"a\") = false, want true")
	}
}

func TestCompareMultipleChoice(t *testing.T) {
	tests := []struct {
		name          string
		user, correct string
		want          MultipleChoiceResult
	}{
		{
			name: "partial subset",
			user: "AB", correct: "ABC",
			want: MultipleChoiceResult{PartiallyCorrect: true, CorrectCount: 2, TotalCorrectCount: 3},
		},
		{
			name: "wrong option kills credit",
			user: "ABD", correct: "ABC",
			want: MultipleChoiceResult{HasWrongOption: true, TotalCorrectCount: 3},
		},
		{
			name: "order irrelevant",
			user: "CBA", correct: "ABC",
			want: MultipleChoiceResult{FullyCorrect: true, CorrectCount: 3, TotalCorrectCount: 3},
		},
		{
			name: "case insensitive",
			user: "abc", correct: "ABC",
			want: MultipleChoiceResult{FullyCorrect: true, CorrectCount: 3, TotalCorrectCount: 3},
		},
		{
			name: "empty user",
			user: "", correct: "ABC",
			want: MultipleChoiceResult{},
		},
		{
			name: "duplicate labels collapse",
			user: "AAB", correct: "AB",
			want: MultipleChoiceResult{FullyCorrect: true, CorrectCount: 2, TotalCorrectCount: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompareMultipleChoice(tt.user, tt.correct); got != tt.want {
				t.Errorf("CompareMultipleChoice(%q, %q) = %+v, want %+v", tt.user, tt.correct, got, tt.want)
			}
		})
	}
}
