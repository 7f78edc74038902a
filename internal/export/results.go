// Package export renders quiz results as spreadsheets.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"quiz-scoring-service/internal/domain"
)

const (
	ResultsSheet   = "Results"
	QuestionsSheet = "Questions"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	resultsHeader   = []interface{}{"Rank", "User ID", "Name", "Attempt ID", "Score", "Percentage", "Time (s)"}
	questionsHeader = []interface{}{"#", "Type", "Question", "Points", "Correct Rate", "Unanswered Rate", "Average Points"}
)

// ResultsWorkbook builds a workbook with the ranked results and per-question analytics of a quiz.
func ResultsWorkbook(quiz domain.Quiz, board domain.Leaderboard, stats domain.QuizAnalytics) (*excelize.File, error) {
	f := excelize.NewFile()

	// the default sheet is renamed rather than left empty
	if err := f.SetSheetName(f.GetSheetName(0), ResultsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeRow(f, ResultsSheet, 1, resultsHeader); err != nil {
		return nil, err
	}
	for i, e := range board.Entries {
		row := []interface{}{e.Rank, e.UserID, e.DisplayName, e.AttemptID, e.Score, e.Percentage, e.ElapsedSeconds}
		if err := writeRow(f, ResultsSheet, i+2, row); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(QuestionsSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := writeRow(f, QuestionsSheet, 1, questionsHeader); err != nil {
		return nil, err
	}
	for i, q := range stats.Questions {
		row := []interface{}{q.Index + 1, string(q.Type), q.Text, q.PointsPossible, q.CorrectRate, q.UnansweredRate, q.AveragePoints}
		if err := writeRow(f, QuestionsSheet, i+2, row); err != nil {
			return nil, err
		}
	}

	summary := len(stats.Questions) + 3
	footer := [][]interface{}{
		{"Quiz", quiz.Title},
		{"Attempts", stats.Attempts},
		{"Participants", stats.Participants},
		{"Average %", stats.AveragePercentage},
	}
	for i, row := range footer {
		if err := writeRow(f, QuestionsSheet, summary+i, row); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// ResultsXLSX returns the workbook of ResultsWorkbook serialised to bytes.
func ResultsXLSX(quiz domain.Quiz, board domain.Leaderboard, stats domain.QuizAnalytics) ([]byte, error) {
	f, err := ResultsWorkbook(quiz, board, stats)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
