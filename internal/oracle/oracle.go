// Package oracle adapts the external question-generation and grading service
// into the strict shapes the assessment flow relies on.
package oracle

import (
	"context"
	"errors"

	"github.com/fluentz/placement-backend/internal/cefr"
)

// ErrOracleUnavailable covers every oracle failure: transport errors,
// timeouts and responses that do not match the contract. Callers may retry
// the same request.
var ErrOracleUnavailable = errors.New("item oracle unavailable")

// Label identifies a multiple-choice option.
type Label string

// Labels are the four option labels, in display order.
var Labels = []Label{"A", "B", "C", "D"}

// ValidLabel reports whether l is one of Labels.
func ValidLabel(l Label) bool {
	for _, v := range Labels {
		if v == l {
			return true
		}
	}
	return false
}

// MCQ is one generated multiple-choice item.
type MCQ struct {
	Prompt      string
	Options     map[Label]string
	Correct     Label
	Explanation string
}

// WritingTask is a generated free-production prompt.
type WritingTask struct {
	Prompt   string
	MinWords int
	MaxWords int
}

// Rubric scores each writing dimension 0..5.
type Rubric struct {
	Grammar    int `json:"grammar"`
	Vocabulary int `json:"vocabulary"`
	Coherence  int `json:"coherence"`
}

// WritingGrade is the graded writing submission.
type WritingGrade struct {
	Score    int
	Feedback string
	Rubric   Rubric
}

// Score bounds for writing grades.
const (
	MaxWritingScore   = 15
	MaxRubricDimScore = 5
)

// Oracle is what the assessment flow needs from the external service.
type Oracle interface {
	GenerateMCQ(ctx context.Context, topic string, level cefr.Level) (*MCQ, error)
	GenerateWritingTask(ctx context.Context, topic string, level cefr.Level) (*WritingTask, error)
	GradeWriting(ctx context.Context, topic string, level cefr.Level, prompt, text string) (*WritingGrade, error)
}
