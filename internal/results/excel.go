package results

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"vocabquiz/internal/quiz"
	"vocabquiz/internal/scoring"

	"github.com/xuri/excelize/v2"
)

// ExportExcel renders one attempt as a workbook: a summary block followed by
// one row per graded question.
func (s *Service) ExportExcel(ctx context.Context, id string) ([]byte, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return attemptWorkbook(a)
}

func attemptWorkbook(a *Attempt) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)

	summary := [][]any{
		{"quiz", a.Details.Name},
		{"username", a.Username},
		{"score", a.Score},
		{"total_score", a.TotalScore},
		{"passed", a.Passed},
		{"time_spent", a.TimeSpent},
		{"submitted_at", a.TS.Format("2006-01-02 15:04:05")},
	}
	for i, values := range summary {
		setRow(f, sheet, i+1, values)
	}

	start := len(summary) + 2
	setRow(f, sheet, start, []any{"no", "type", "word", "prompt", "answer", "correct_answer", "result", "points", "feedback"})
	for i, q := range a.Details.Questions {
		setRow(f, sheet, start+i+1, []any{
			i + 1,
			string(q.Type),
			q.Word,
			q.Prompt,
			q.Answer,
			q.CorrectAnswer,
			questionResult(q),
			scoring.Credit(q),
			q.Feedback,
		})
	}
	_ = f.SetColWidth(sheet, "A", "B", 16)
	_ = f.SetColWidth(sheet, "C", "H", 22)
	_ = f.SetColWidth(sheet, "I", "I", 48)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func questionResult(q quiz.Question) string {
	switch {
	case q.Correct != nil && *q.Correct:
		return "correct"
	case q.Correct != nil:
		return "wrong"
	case q.Score != nil:
		return strconv.Itoa(*q.Score) + "/" + strconv.Itoa(scoring.MaxSentenceScore)
	default:
		return ""
	}
}
