package model

import (
	"time"

	"github.com/fluentz/placement-backend/internal/cefr"
)

// Phase is the kind of round a state token is waiting on.
type Phase string

const (
	PhaseMCQ     Phase = "mcq"
	PhaseWriting Phase = "writing"

	// PhaseCompleted is never carried in a token; it names the state of a
	// writing token that has already been graded.
	PhaseCompleted Phase = "completed"
)

// ─── Requests ──────────────────────────────────────────────────────────

// StartAssessmentRequest is the payload for starting a placement test.
type StartAssessmentRequest struct {
	TopicID int64 `json:"topic_id" binding:"required,min=1"`
}

// AnswerRequest carries the most recent token pair and the learner's pick.
// Choice is deliberately unconstrained: anything outside A-D scores as wrong.
type AnswerRequest struct {
	StateToken string `json:"state_token" binding:"required,max=4096"`
	AnswerKey  string `json:"answer_key" binding:"required,max=4096"`
	Choice     string `json:"choice" binding:"max=16"`
}

// SubmitWritingRequest carries the writing-phase state token and the essay.
type SubmitWritingRequest struct {
	StateToken string `json:"state_token" binding:"required,max=8192"`
	Text       string `json:"text" binding:"required,max=10000"`
}

// ─── Responses ─────────────────────────────────────────────────────────

// Option is one labelled answer choice.
type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Question is a multiple-choice item as shown to the learner.
type Question struct {
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
}

// WritingPrompt is the free-production task shown after the core rounds.
type WritingPrompt struct {
	Prompt   string `json:"prompt"`
	MinWords int    `json:"min_words"`
	MaxWords int    `json:"max_words"`
}

// Feedback reports how the previous multiple-choice round went.
type Feedback struct {
	Chosen       string `json:"chosen"`
	CorrectLabel string `json:"correct_label"`
	Correct      bool   `json:"correct"`
	Score        int    `json:"score"`
	Explanation  string `json:"explanation"`
	Message      string `json:"message"`
}

// StartResponse is returned when a placement test begins.
type StartResponse struct {
	Step        int        `json:"step"`
	Phase       Phase      `json:"phase"`
	TargetLevel cefr.Level `json:"target_level"`
	Topic       string     `json:"topic"`
	Question    *Question  `json:"question"`
	StateToken  string     `json:"state_token"`
	AnswerKey   string     `json:"answer_key"`
}

// AnswerResponse is returned after each multiple-choice round. Exactly one of
// Question and Writing is set; AnswerKey is empty once the core rounds are done.
type AnswerResponse struct {
	DoneCore    bool           `json:"done_core"`
	Step        int            `json:"step"`
	Phase       Phase          `json:"phase"`
	TargetLevel cefr.Level     `json:"target_level"`
	Question    *Question      `json:"question,omitempty"`
	Writing     *WritingPrompt `json:"writing,omitempty"`
	StateToken  string         `json:"state_token"`
	AnswerKey   string         `json:"answer_key,omitempty"`
	Feedback    Feedback       `json:"prev_feedback"`
}

// Rubric is the per-dimension breakdown of a writing grade, each 0..5.
type Rubric struct {
	Grammar    int `json:"grammar"`
	Vocabulary int `json:"vocabulary"`
	Coherence  int `json:"coherence"`
}

// Verdict is the terminal result of a placement test.
type Verdict struct {
	CoreLevel    cefr.Level  `json:"core_level"`
	WritingScore int         `json:"writing_score"`
	WritingLevel cefr.Level  `json:"writing_level"`
	FinalLevel   cefr.Level  `json:"final_level"`
	Bucket       cefr.Bucket `json:"bucket"`
	Feedback     string      `json:"feedback"`
	Rubric       Rubric      `json:"rubric"`
	WordCount    int         `json:"word_count"`
}

// VerdictRecord is the single write handed to persistence when a test ends.
type VerdictRecord struct {
	SubjectID    int64       `json:"subject_id"`
	TopicID      int64       `json:"topic_id"`
	Bucket       cefr.Bucket `json:"bucket"`
	WritingScore int         `json:"writing_score"`
	CoreLevel    cefr.Level  `json:"core_level"`
	FinalLevel   cefr.Level  `json:"final_level"`
	AssessedAt   time.Time   `json:"assessed_at"`
}

// AssessmentResult is a stored verdict as listed back to the learner.
type AssessmentResult struct {
	ID           int64       `json:"id"`
	LanguageID   int64       `json:"language_id"`
	LanguageCode string      `json:"language_code"`
	LanguageName string      `json:"language_name"`
	Score        *int        `json:"score,omitempty"`
	Level        cefr.Bucket `json:"level"`
	CreatedAt    time.Time   `json:"created_at"`
}
