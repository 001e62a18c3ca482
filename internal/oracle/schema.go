package oracle

import "github.com/fluentz/placement-backend/internal/llm"

// Generated text ends up inside assessment tokens, whose request bindings cap
// their length. Go escapes some runes to six bytes, so a sealed explanation of
// MaxExplanationLength runes still yields an answer key under 4096 characters
// and a writing prompt of MaxPromptLength runes a state token under 8192.
const (
	MaxPromptLength      = 900
	MaxOptionLength      = 200
	MaxExplanationLength = 300
	MaxFeedbackLength    = 1000
)

func textProp(maxLen int, desc string) map[string]any {
	return map[string]any{"type": "string", "minLength": 1, "maxLength": maxLen, "description": desc}
}

func intProp(lo, hi int, desc string) map[string]any {
	return map[string]any{"type": "integer", "minimum": lo, "maximum": hi, "description": desc}
}

// MCQSchema is the contract for generated multiple-choice items.
var MCQSchema = &llm.Schema{
	Name:        "cefr-mcq",
	Description: "One CEFR placement multiple-choice question with four options",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": textProp(MaxPromptLength, "Short context (2-3 lines) followed by the question"),
			"options": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"A": textProp(MaxOptionLength, "Option A"),
					"B": textProp(MaxOptionLength, "Option B"),
					"C": textProp(MaxOptionLength, "Option C"),
					"D": textProp(MaxOptionLength, "Option D"),
				},
				"required":             []any{"A", "B", "C", "D"},
				"additionalProperties": false,
			},
			"correct":     map[string]any{"type": "string", "enum": []any{"A", "B", "C", "D"}},
			"explanation": textProp(MaxExplanationLength, "Why the correct option is right, one or two sentences"),
		},
		"required":             []any{"prompt", "options", "correct", "explanation"},
		"additionalProperties": false,
	},
}

// WritingTaskSchema is the contract for generated writing prompts.
var WritingTaskSchema = &llm.Schema{
	Name:        "cefr-writing-task",
	Description: "One CEFR placement writing prompt with word limits",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt":    textProp(MaxPromptLength, "The writing task shown to the learner"),
			"min_words": intProp(1, 1000, "Minimum expected word count"),
			"max_words": intProp(1, 1000, "Maximum expected word count"),
		},
		"required":             []any{"prompt", "min_words", "max_words"},
		"additionalProperties": false,
	},
}

// WritingGradeSchema is the contract for writing grades.
var WritingGradeSchema = &llm.Schema{
	Name:        "cefr-writing-grade",
	Description: "Rubric-based grade of a placement writing sample",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":    intProp(0, MaxWritingScore, "Total score, sum of the rubric"),
			"feedback": textProp(MaxFeedbackLength, "Short feedback addressed to the learner"),
			"rubric": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"grammar":   intProp(0, MaxRubricDimScore, "Grammar accuracy"),
					"vocab":     intProp(0, MaxRubricDimScore, "Vocabulary range and precision"),
					"coherence": intProp(0, MaxRubricDimScore, "Organisation and coherence"),
				},
				"required":             []any{"grammar", "vocab", "coherence"},
				"additionalProperties": false,
			},
		},
		"required":             []any{"score", "feedback", "rubric"},
		"additionalProperties": false,
	},
}
