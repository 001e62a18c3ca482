package service

import (
	"strings"
	"time"

	"github.com/fluentz/placement-backend/internal/cefr"
	"github.com/fluentz/placement-backend/internal/model"
	"github.com/fluentz/placement-backend/internal/oracle"
)

// Fuse combines the adaptive estimate with the writing-derived level. The
// writing level is a ceiling: strong multiple-choice rounds cannot lift the
// result above what free production shows.
func Fuse(core, writing cefr.Level) cefr.Level {
	return cefr.LowestOf(core, writing)
}

// BuildVerdict turns a writing grade into the terminal verdict.
func BuildVerdict(core cefr.Level, grade *oracle.WritingGrade, text string) *model.Verdict {
	writing := cefr.FromWritingScore(grade.Score)
	final := Fuse(core, writing)

	return &model.Verdict{
		CoreLevel:    core,
		WritingScore: grade.Score,
		WritingLevel: writing,
		FinalLevel:   final,
		Bucket:       final.Bucket(),
		Feedback:     grade.Feedback,
		Rubric: model.Rubric{
			Grammar:    grade.Rubric.Grammar,
			Vocabulary: grade.Rubric.Vocabulary,
			Coherence:  grade.Rubric.Coherence,
		},
		WordCount: len(strings.Fields(text)),
	}
}

func verdictRecord(subjectID, topicID int64, v *model.Verdict, at time.Time) model.VerdictRecord {
	return model.VerdictRecord{
		SubjectID:    subjectID,
		TopicID:      topicID,
		Bucket:       v.Bucket,
		WritingScore: v.WritingScore,
		CoreLevel:    v.CoreLevel,
		FinalLevel:   v.FinalLevel,
		AssessedAt:   at.UTC(),
	}
}
