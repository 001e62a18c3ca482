package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fluentz/placement-backend/internal/cefr"
	"github.com/fluentz/placement-backend/internal/llm"
)

// Config tunes oracle calls.
type Config struct {
	// Timeout bounds each call, including provider retries.
	Timeout time.Duration
	// MaxTokens caps the completion length.
	MaxTokens int
	// GenerateTemperature is used for item generation; grading always runs at 0.
	GenerateTemperature float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:             20 * time.Second,
		MaxTokens:           800,
		GenerateTemperature: 0.7,
	}
}

// Client implements Oracle on top of an llm.Provider.
type Client struct {
	provider llm.Provider
	config   Config
}

// NewClient creates a Client.
func NewClient(provider llm.Provider, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	return &Client{provider: provider, config: cfg}
}

type mcqOutput struct {
	Prompt      string           `json:"prompt"`
	Options     map[Label]string `json:"options"`
	Correct     Label            `json:"correct"`
	Explanation string           `json:"explanation"`
}

type writingTaskOutput struct {
	Prompt   string `json:"prompt"`
	MinWords int    `json:"min_words"`
	MaxWords int    `json:"max_words"`
}

type gradeOutput struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
	Rubric   struct {
		Grammar   int `json:"grammar"`
		Vocab     int `json:"vocab"`
		Coherence int `json:"coherence"`
	} `json:"rubric"`
}

// GenerateMCQ produces one multiple-choice item at the given level.
func (c *Client) GenerateMCQ(ctx context.Context, topic string, level cefr.Level) (*MCQ, error) {
	var out mcqOutput
	req := llm.Request{
		System:      systemPrompt,
		User:        buildMCQMessage(topic, level),
		Schema:      MCQSchema,
		Temperature: c.config.GenerateTemperature,
	}
	if err := c.call(ctx, req, &out); err != nil {
		return nil, unavailable("generate mcq", err)
	}

	q, err := normalizeMCQ(out)
	if err != nil {
		return nil, unavailable("generate mcq", err)
	}
	return q, nil
}

// GenerateWritingTask produces one writing prompt at the given level.
func (c *Client) GenerateWritingTask(ctx context.Context, topic string, level cefr.Level) (*WritingTask, error) {
	var out writingTaskOutput
	req := llm.Request{
		System:      systemPrompt,
		User:        buildWritingTaskMessage(topic, level),
		Schema:      WritingTaskSchema,
		Temperature: c.config.GenerateTemperature,
	}
	if err := c.call(ctx, req, &out); err != nil {
		return nil, unavailable("generate writing task", err)
	}

	prompt := strings.TrimSpace(out.Prompt)
	switch {
	case prompt == "":
		return nil, unavailable("generate writing task", errors.New("empty prompt"))
	case utf8.RuneCountInString(prompt) > MaxPromptLength:
		return nil, unavailable("generate writing task", tooLong("prompt", MaxPromptLength))
	case out.MinWords <= 0 || out.MaxWords < out.MinWords:
		return nil, unavailable("generate writing task",
			fmt.Errorf("invalid word limits %d..%d", out.MinWords, out.MaxWords))
	}
	return &WritingTask{Prompt: prompt, MinWords: out.MinWords, MaxWords: out.MaxWords}, nil
}

// GradeWriting grades a submission against the prompt it answers.
func (c *Client) GradeWriting(ctx context.Context, topic string, level cefr.Level, prompt, text string) (*WritingGrade, error) {
	var out gradeOutput
	req := llm.Request{
		System: systemPrompt,
		User:   buildGradeMessage(topic, level, prompt, text),
		Schema: WritingGradeSchema,
	}
	if err := c.call(ctx, req, &out); err != nil {
		return nil, unavailable("grade writing", err)
	}

	if out.Score < 0 || out.Score > MaxWritingScore {
		return nil, unavailable("grade writing", fmt.Errorf("score %d out of range", out.Score))
	}
	for name, v := range map[string]int{"grammar": out.Rubric.Grammar, "vocab": out.Rubric.Vocab, "coherence": out.Rubric.Coherence} {
		if v < 0 || v > MaxRubricDimScore {
			return nil, unavailable("grade writing", fmt.Errorf("rubric %s %d out of range", name, v))
		}
	}
	feedback := strings.TrimSpace(out.Feedback)
	if feedback == "" {
		return nil, unavailable("grade writing", errors.New("empty feedback"))
	}
	if utf8.RuneCountInString(feedback) > MaxFeedbackLength {
		return nil, unavailable("grade writing", tooLong("feedback", MaxFeedbackLength))
	}

	return &WritingGrade{
		Score:    out.Score,
		Feedback: feedback,
		Rubric: Rubric{
			Grammar:    out.Rubric.Grammar,
			Vocabulary: out.Rubric.Vocab,
			Coherence:  out.Rubric.Coherence,
		},
	}, nil
}

func (c *Client) call(ctx context.Context, req llm.Request, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req.MaxTokens = c.config.MaxTokens
	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(strings.NewReader(string(resp.Content)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func normalizeMCQ(out mcqOutput) (*MCQ, error) {
	prompt := strings.TrimSpace(out.Prompt)
	if prompt == "" {
		return nil, errors.New("empty prompt")
	}
	if utf8.RuneCountInString(prompt) > MaxPromptLength {
		return nil, tooLong("prompt", MaxPromptLength)
	}
	if len(out.Options) != len(Labels) {
		return nil, fmt.Errorf("expected %d options, got %d", len(Labels), len(out.Options))
	}

	options := make(map[Label]string, len(Labels))
	seen := make(map[string]bool, len(Labels))
	for _, l := range Labels {
		text := strings.TrimSpace(out.Options[l])
		if text == "" {
			return nil, fmt.Errorf("option %s missing", l)
		}
		if utf8.RuneCountInString(text) > MaxOptionLength {
			return nil, tooLong("option "+string(l), MaxOptionLength)
		}
		if seen[strings.ToLower(text)] {
			return nil, fmt.Errorf("option %s duplicates another option", l)
		}
		seen[strings.ToLower(text)] = true
		options[l] = text
	}

	correct := Label(strings.ToUpper(strings.TrimSpace(string(out.Correct))))
	if !ValidLabel(correct) {
		return nil, fmt.Errorf("correct label %q not among options", out.Correct)
	}

	explanation := strings.TrimSpace(out.Explanation)
	if utf8.RuneCountInString(explanation) > MaxExplanationLength {
		return nil, tooLong("explanation", MaxExplanationLength)
	}

	return &MCQ{
		Prompt:      prompt,
		Options:     options,
		Correct:     correct,
		Explanation: explanation,
	}, nil
}

func tooLong(field string, limit int) error {
	return fmt.Errorf("%s longer than %d characters", field, limit)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrOracleUnavailable, op, err)
}
