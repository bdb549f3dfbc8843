package export_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pagefold/trackd/internal/export"
	"github.com/pagefold/trackd/internal/progress"
)

func testDocument() *progress.Document {
	doc := progress.NewDocument()
	doc.Add(1)
	doc.Add(3)
	doc.SetScore(3, progress.QuizScore{
		Score:          4,
		TotalQuestions: 5,
		Passed:         true,
		Timestamp:      time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	})
	doc.LastVisited = &progress.LastVisited{ChapterID: 3, Section: "quiz"}
	return doc
}

func TestWorkbook_Summary(t *testing.T) {
	f, err := export.Workbook(testDocument(), nil, 20)
	if err != nil {
		t.Fatalf("Workbook() error = %v", err)
	}
	defer f.Close()

	tests := []struct {
		cell string
		want string
	}{
		{"A1", "Completed chapters"},
		{"B1", "2"},
		{"B2", "20"},
		{"B3", "10"},
		{"A5", "Last visited chapter"},
		{"B5", "3"},
	}
	for _, tt := range tests {
		got, err := f.GetCellValue("Summary", tt.cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s) error = %v", tt.cell, err)
		}
		if got != tt.want {
			t.Errorf("Summary!%s = %q, want %q", tt.cell, got, tt.want)
		}
	}
}

func TestWorkbook_QuizSheet(t *testing.T) {
	f, err := export.Workbook(testDocument(), nil, 20)
	if err != nil {
		t.Fatalf("Workbook() error = %v", err)
	}
	defer f.Close()

	got, err := f.GetCellValue("Quiz Scores", "A2")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if got != "3" {
		t.Errorf("first quiz row chapter = %q, want 3", got)
	}
	got, err = f.GetCellValue("Quiz Scores", "B2")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if got != "4" {
		t.Errorf("first quiz row score = %q, want 4", got)
	}
}

func TestWorkbook_ChapterSheetWithoutCatalog(t *testing.T) {
	f, err := export.Workbook(testDocument(), nil, 20)
	if err != nil {
		t.Fatalf("Workbook() error = %v", err)
	}
	defer f.Close()

	// Without a catalog only completed chapters are listed.
	got, err := f.GetCellValue("Chapters", "A2")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if got != "1" {
		t.Errorf("Chapters!A2 = %q, want 1", got)
	}
	got, err = f.GetCellValue("Chapters", "C3")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if got != "TRUE" {
		t.Errorf("Chapters!C3 = %q, want TRUE", got)
	}
}

func TestWrite_ProducesReadableWorkbook(t *testing.T) {
	var buf bytes.Buffer
	if err := export.Write(&buf, testDocument(), nil, 20); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("Write() produced no bytes")
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reading back workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := map[string]bool{"Summary": false, "Chapters": false, "Quiz Scores": false}
	for _, s := range sheets {
		if _, ok := want[s]; ok {
			want[s] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("sheet %q missing from workbook", name)
		}
	}
}
