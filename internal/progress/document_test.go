package progress_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pagefold/trackd/internal/progress"
)

func TestDocument_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		want []int
	}{
		{"sorted stays", []int{1, 2, 3}, []int{1, 2, 3}},
		{"unsorted sorts", []int{5, 1, 3}, []int{1, 3, 5}},
		{"duplicates collapse", []int{2, 2, 7, 2, 7}, []int{2, 7}},
		{"non-positive dropped", []int{0, -1, 4}, []int{4}},
		{"nil becomes empty", nil, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &progress.Document{CompletedChapters: tt.in}
			doc.Normalize()
			if !equalInts(doc.CompletedChapters, tt.want) {
				t.Errorf("CompletedChapters = %v, want %v", doc.CompletedChapters, tt.want)
			}
			if doc.QuizScores == nil {
				t.Error("Normalize() left QuizScores nil")
			}
		})
	}
}

func TestDocument_AddRemoveContains(t *testing.T) {
	doc := progress.NewDocument()

	doc.Add(5)
	doc.Add(1)
	doc.Add(3)
	doc.Add(3) // duplicate is a no-op

	if !equalInts(doc.CompletedChapters, []int{1, 3, 5}) {
		t.Fatalf("CompletedChapters = %v, want [1 3 5]", doc.CompletedChapters)
	}
	if !doc.Contains(3) {
		t.Error("Contains(3) = false, want true")
	}
	if doc.Contains(4) {
		t.Error("Contains(4) = true, want false")
	}

	doc.Remove(3)
	doc.Remove(3) // removing again is a no-op
	if !equalInts(doc.CompletedChapters, []int{1, 5}) {
		t.Errorf("after Remove, CompletedChapters = %v, want [1 5]", doc.CompletedChapters)
	}
}

func TestDocument_PartialPayloadDefaults(t *testing.T) {
	// Older documents may omit any field; loading must default, not error.
	payloads := []struct {
		name string
		raw  string
	}{
		{"empty object", `{}`},
		{"only completed", `{"completedChapters":[3,1]}`},
		{"only scores", `{"quizScores":{"2":{"score":4,"totalQuestions":5,"passed":true,"timestamp":"2026-01-02T10:00:00Z"}}}`},
		{"extra unknown fields", `{"completedChapters":[1],"futureField":{"a":1}}`},
	}

	for _, tt := range payloads {
		t.Run(tt.name, func(t *testing.T) {
			doc := &progress.Document{}
			if err := json.Unmarshal([]byte(tt.raw), doc); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			doc.Normalize()
			if doc.CompletedChapters == nil {
				t.Error("CompletedChapters is nil after Normalize")
			}
			if doc.QuizScores == nil {
				t.Error("QuizScores is nil after Normalize")
			}
		})
	}
}

func TestDocument_Scores(t *testing.T) {
	doc := progress.NewDocument()
	doc.SetScore(2, progress.QuizScore{Score: 4, TotalQuestions: 5, Passed: true, Timestamp: time.Now()})
	doc.QuizScores["not-a-number"] = progress.QuizScore{Score: 1, TotalQuestions: 2}
	doc.QuizScores["-3"] = progress.QuizScore{Score: 1, TotalQuestions: 2}

	scores := doc.Scores()
	if len(scores) != 1 {
		t.Fatalf("Scores() has %d entries, want 1", len(scores))
	}
	if scores[2].Score != 4 {
		t.Errorf("Scores()[2].Score = %d, want 4", scores[2].Score)
	}

	if got, ok := doc.Score(2); !ok || got.TotalQuestions != 5 {
		t.Errorf("Score(2) = %+v, %v; want TotalQuestions 5, true", got, ok)
	}
	if _, ok := doc.Score(9); ok {
		t.Error("Score(9) found, want absent")
	}
}

func TestDocument_Clone(t *testing.T) {
	doc := progress.NewDocument()
	doc.Add(1)
	doc.SetScore(1, progress.QuizScore{Score: 3, TotalQuestions: 5})
	doc.LastVisited = &progress.LastVisited{ChapterID: 1, Section: "intro"}

	clone := doc.Clone()
	clone.Add(2)
	clone.SetScore(1, progress.QuizScore{Score: 5, TotalQuestions: 5})
	clone.LastVisited.ChapterID = 9

	if doc.Contains(2) {
		t.Error("mutating clone changed original completed set")
	}
	if s, _ := doc.Score(1); s.Score != 3 {
		t.Error("mutating clone changed original quiz scores")
	}
	if doc.LastVisited.ChapterID != 1 {
		t.Error("mutating clone changed original last visited")
	}
}

func TestValidator(t *testing.T) {
	v, err := progress.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}

	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"empty object", `{}`, true},
		{"well formed", `{"completedChapters":[1,2],"quizScores":{"1":{"score":3,"totalQuestions":5,"passed":false,"timestamp":"2026-01-02T10:00:00Z"}},"lastUpdated":"2026-01-02T10:00:00Z"}`, true},
		{"completed not an array", `{"completedChapters":"1,2"}`, false},
		{"string unit ids", `{"completedChapters":["1","2"]}`, false},
		{"negative score", `{"quizScores":{"1":{"score":-1,"totalQuestions":5}}}`, false},
		{"zero total questions", `{"quizScores":{"1":{"score":0,"totalQuestions":0}}}`, false},
		{"not json", `{not json`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Valid([]byte(tt.raw)); got != tt.want {
				t.Errorf("Valid(%s) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
