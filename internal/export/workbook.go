// Package export renders a progress report as an Excel workbook.
package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/pagefold/trackd/internal/course"
	"github.com/pagefold/trackd/internal/progress"
)

const (
	sheetSummary  = "Summary"
	sheetChapters = "Chapters"
	sheetQuizzes  = "Quiz Scores"
)

// Workbook builds a progress report. The catalog may be nil, in which case
// the chapter sheet lists only completed chapter IDs without titles.
func Workbook(doc *progress.Document, catalog *course.Catalog, totalUnits int) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", sheetSummary)

	completed := len(doc.CompletedChapters)
	percent := 0
	if totalUnits > 0 {
		percent = int(float64(completed)/float64(totalUnits)*100 + 0.5)
	}

	summary := [][]any{
		{"Completed chapters", completed},
		{"Total chapters", totalUnits},
		{"Percent complete", percent},
		{"Last updated", doc.LastUpdated},
	}
	if doc.LastVisited != nil {
		summary = append(summary, []any{"Last visited chapter", doc.LastVisited.ChapterID})
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("summary cell: %w", err)
		}
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return nil, fmt.Errorf("summary row: %w", err)
		}
	}

	if err := writeChapterSheet(f, doc, catalog); err != nil {
		return nil, err
	}
	if err := writeQuizSheet(f, doc); err != nil {
		return nil, err
	}

	return f, nil
}

// Write renders the workbook to w as an .xlsx stream.
func Write(w io.Writer, doc *progress.Document, catalog *course.Catalog, totalUnits int) error {
	f, err := Workbook(doc, catalog, totalUnits)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeChapterSheet(f *excelize.File, doc *progress.Document, catalog *course.Catalog) error {
	if _, err := f.NewSheet(sheetChapters); err != nil {
		return fmt.Errorf("chapter sheet: %w", err)
	}

	header := []any{"Chapter", "Title", "Completed"}
	if err := f.SetSheetRow(sheetChapters, "A1", &header); err != nil {
		return fmt.Errorf("chapter header: %w", err)
	}

	row := 2
	writeRow := func(id int, title string, done bool) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		values := []any{id, title, done}
		if err := f.SetSheetRow(sheetChapters, cell, &values); err != nil {
			return err
		}
		row++
		return nil
	}

	if catalog != nil {
		for _, ch := range catalog.AllChapters() {
			if err := writeRow(ch.ID, ch.Title, doc.Contains(ch.ID)); err != nil {
				return fmt.Errorf("chapter row: %w", err)
			}
		}
		return nil
	}
	for _, id := range doc.CompletedChapters {
		if err := writeRow(id, "", true); err != nil {
			return fmt.Errorf("chapter row: %w", err)
		}
	}
	return nil
}

func writeQuizSheet(f *excelize.File, doc *progress.Document) error {
	if _, err := f.NewSheet(sheetQuizzes); err != nil {
		return fmt.Errorf("quiz sheet: %w", err)
	}

	header := []any{"Chapter", "Score", "Total", "Passed", "Recorded"}
	if err := f.SetSheetRow(sheetQuizzes, "A1", &header); err != nil {
		return fmt.Errorf("quiz header: %w", err)
	}

	scores := doc.Scores()
	ids := make([]int, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for i, id := range ids {
		s := scores[id]
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("quiz cell: %w", err)
		}
		values := []any{id, s.Score, s.TotalQuestions, s.Passed, s.Timestamp}
		if err := f.SetSheetRow(sheetQuizzes, cell, &values); err != nil {
			return fmt.Errorf("quiz row: %w", err)
		}
	}
	return nil
}
