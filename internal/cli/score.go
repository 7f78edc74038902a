package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"quiz-scoring-service/internal/scoring"
)

type quizReport struct {
	QuizID string `json:"quizId,omitempty"`
	Title  string `json:"title"`
	scoring.Report
}

// NewValidateCmd checks quiz files offline and fails when any quiz is invalid.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "validate <quiz-file>",
		Short:        "Validate quiz definitions from a JSON or YAML file",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			quizzes, err := loadQuizzes(args[0])
			if err != nil {
				return err
			}
			reports := make([]quizReport, 0, len(quizzes))
			invalid := 0
			for _, quiz := range quizzes {
				report := scoring.Validate(quiz).Report()
				if !report.Valid {
					invalid++
				}
				reports = append(reports, quizReport{QuizID: quiz.ID, Title: quiz.Title, Report: report})
			}
			if err := printJSON(cmd.OutOrStdout(), reports); err != nil {
				return err
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d quizzes invalid", invalid, len(quizzes))
			}
			return nil
		},
	}
}

// NewScoreCmd scores one answer sheet against a quiz file and prints the result.
func NewScoreCmd() *cobra.Command {
	var (
		quizID     string
		elapsed    int
		similarity string
		maxEdits   int
	)
	cmd := &cobra.Command{
		Use:          "score <quiz-file> <answers-file>",
		Short:        "Score an answer sheet against a quiz",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			quizzes, err := loadQuizzes(args[0])
			if err != nil {
				return err
			}
			quiz, err := pickQuiz(quizzes, quizID)
			if err != nil {
				return err
			}
			answers, err := loadAnswers(args[1])
			if err != nil {
				return err
			}
			fn, err := scoring.ParseSimilarity(similarity, maxEdits)
			if err != nil {
				return err
			}
			result := scoring.New(scoring.WithTextSimilarity(fn)).Score(quiz, answers, max(elapsed, 0))
			result.QuizID = quiz.ID
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&quizID, "quiz", "", "quiz id when the file holds several quizzes (default: first)")
	cmd.Flags().IntVar(&elapsed, "elapsed", 0, "elapsed seconds to record on the result")
	cmd.Flags().StringVar(&similarity, "similarity", scoring.SimilarityKeyword, "text similarity strategy: keyword or edit_distance")
	cmd.Flags().IntVar(&maxEdits, "max-edits", 1, "edit budget for the edit_distance strategy")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
