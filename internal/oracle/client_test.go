package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fluentz/placement-backend/internal/cefr"
	"github.com/fluentz/placement-backend/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(responses ...llm.MockResponse) (*Client, *llm.MockProvider) {
	mock := llm.NewMockProvider(responses...)
	return NewClient(mock, Config{Timeout: time.Second}), mock
}

func raw(s string) llm.MockResponse {
	return llm.MockResponse{Content: json.RawMessage(s)}
}

const validMCQ = `{
	"prompt": "Marta va al mercado. ¿Qué compra?",
	"options": {"A": "pan", "B": "zapatos", "C": "un coche", "D": "libros"},
	"correct": "A",
	"explanation": "The text says she buys bread."
}`

func TestGenerateMCQ_Valid(t *testing.T) {
	c, mock := newClient(raw(validMCQ))

	q, err := c.GenerateMCQ(context.Background(), "Spanish", cefr.B1)
	require.NoError(t, err)
	assert.Equal(t, Label("A"), q.Correct)
	assert.Len(t, q.Options, 4)
	assert.Equal(t, "pan", q.Options["A"])

	require.Equal(t, 1, mock.CallCount())
	assert.Contains(t, mock.Calls[0].User, "Spanish")
	assert.Contains(t, mock.Calls[0].User, "B1")
	assert.Equal(t, MCQSchema, mock.Calls[0].Schema)
}

func TestGenerateMCQ_ContractViolations(t *testing.T) {
	cases := map[string]string{
		"missing key":       `{"prompt":"p","options":{"A":"a","B":"b","C":"c","D":"d"},"correct":"A"}`,
		"three options":     `{"prompt":"p","options":{"A":"a","B":"b","C":"c"},"correct":"A","explanation":"e"}`,
		"bad correct label": `{"prompt":"p","options":{"A":"a","B":"b","C":"c","D":"d"},"correct":"E","explanation":"e"}`,
		"extra key":         `{"prompt":"p","options":{"A":"a","B":"b","C":"c","D":"d"},"correct":"A","explanation":"e","x":1}`,
		"blank option":      `{"prompt":"p","options":{"A":"a","B":"  ","C":"c","D":"d"},"correct":"A","explanation":"e"}`,
		"duplicate option":  `{"prompt":"p","options":{"A":"a","B":"A","C":"c","D":"d"},"correct":"A","explanation":"e"}`,
		"not json":          `Here is your question: ...`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := newClient(raw(body))
			_, err := c.GenerateMCQ(context.Background(), "Spanish", cefr.B1)
			assert.ErrorIs(t, err, ErrOracleUnavailable)
		})
	}
}

func mcqWith(prompt, option, explanation string) string {
	return fmt.Sprintf(`{"prompt":%q,"options":{"A":%q,"B":"b","C":"c","D":"d"},"correct":"A","explanation":%q}`,
		prompt, option, explanation)
}

func TestGenerateMCQ_OverlongFieldsRejected(t *testing.T) {
	cases := map[string]string{
		"explanation": mcqWith("p", "a", strings.Repeat("é", MaxExplanationLength+1)),
		"prompt":      mcqWith(strings.Repeat("p", MaxPromptLength+1), "a", "e"),
		"option":      mcqWith("p", strings.Repeat("a", MaxOptionLength+1), "e"),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := newClient(raw(body))
			_, err := c.GenerateMCQ(context.Background(), "Spanish", cefr.B1)
			assert.ErrorIs(t, err, ErrOracleUnavailable)
		})
	}

	c, _ := newClient(raw(mcqWith("p", "a", strings.Repeat("é", MaxExplanationLength))))
	q, err := c.GenerateMCQ(context.Background(), "Spanish", cefr.B1)
	require.NoError(t, err)
	assert.Len(t, []rune(q.Explanation), MaxExplanationLength)
}

func TestSchemas_EnforceTextLimits(t *testing.T) {
	long := strings.Repeat("x", MaxExplanationLength+1)
	err := llm.Validate(MCQSchema, json.RawMessage(mcqWith("p", "a", long)))
	assert.Error(t, err)
	assert.NoError(t, llm.Validate(MCQSchema, json.RawMessage(mcqWith("p", "a", "e"))))

	task := fmt.Sprintf(`{"prompt":%q,"min_words":50,"max_words":100}`, strings.Repeat("x", MaxPromptLength+1))
	assert.Error(t, llm.Validate(WritingTaskSchema, json.RawMessage(task)))
}

func TestGenerateMCQ_ProviderError(t *testing.T) {
	c, _ := newClient(llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("boom")}})
	_, err := c.GenerateMCQ(context.Background(), "Spanish", cefr.B1)
	assert.ErrorIs(t, err, ErrOracleUnavailable)

	var unavail *llm.ErrProviderUnavailable
	assert.True(t, errors.As(err, &unavail), "cause is preserved")
}

func TestGenerateWritingTask(t *testing.T) {
	c, _ := newClient(raw(`{"prompt":"Describe tu ciudad.","min_words":80,"max_words":120}`))
	task, err := c.GenerateWritingTask(context.Background(), "Spanish", cefr.B2)
	require.NoError(t, err)
	assert.Equal(t, "Describe tu ciudad.", task.Prompt)
	assert.Equal(t, 80, task.MinWords)
	assert.Equal(t, 120, task.MaxWords)

	c, _ = newClient(raw(`{"prompt":"x","min_words":150,"max_words":100}`))
	_, err = c.GenerateWritingTask(context.Background(), "Spanish", cefr.B2)
	assert.ErrorIs(t, err, ErrOracleUnavailable)

	c, _ = newClient(raw(fmt.Sprintf(`{"prompt":%q,"min_words":80,"max_words":100}`, strings.Repeat("x", MaxPromptLength+1))))
	_, err = c.GenerateWritingTask(context.Background(), "Spanish", cefr.B2)
	assert.ErrorIs(t, err, ErrOracleUnavailable)

	c, _ = newClient(raw(`{"prompt":"x","min_words":"80","max_words":100}`))
	_, err = c.GenerateWritingTask(context.Background(), "Spanish", cefr.B2)
	assert.ErrorIs(t, err, ErrOracleUnavailable)
}

func TestGradeWriting(t *testing.T) {
	c, mock := newClient(raw(`{"score":11,"feedback":"Good range.","rubric":{"grammar":4,"vocab":4,"coherence":3}}`))
	g, err := c.GradeWriting(context.Background(), "Spanish", cefr.B2, "Describe tu ciudad.", "Mi ciudad es bonita.")
	require.NoError(t, err)
	assert.Equal(t, 11, g.Score)
	assert.Equal(t, Rubric{Grammar: 4, Vocabulary: 4, Coherence: 3}, g.Rubric)
	assert.Contains(t, mock.Calls[0].User, "Mi ciudad es bonita.")
	assert.Zero(t, mock.Calls[0].Temperature)
}

func TestGradeWriting_OutOfRange(t *testing.T) {
	cases := []string{
		`{"score":16,"feedback":"f","rubric":{"grammar":5,"vocab":5,"coherence":5}}`,
		`{"score":-1,"feedback":"f","rubric":{"grammar":0,"vocab":0,"coherence":0}}`,
		`{"score":10,"feedback":"f","rubric":{"grammar":6,"vocab":2,"coherence":2}}`,
		`{"score":"10","feedback":"f","rubric":{"grammar":4,"vocab":3,"coherence":3}}`,
		`{"score":10,"feedback":"f"}`,
	}
	for _, body := range cases {
		c, _ := newClient(raw(body))
		_, err := c.GradeWriting(context.Background(), "Spanish", cefr.B2, "p", "t")
		assert.ErrorIs(t, err, ErrOracleUnavailable, body)
	}
}

type slowProvider struct{}

func (slowProvider) Generate(ctx context.Context, _ llm.Request) (*llm.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowProvider) ModelID() string { return "slow" }

func TestClient_TimeoutSurfacesAsUnavailable(t *testing.T) {
	c := NewClient(slowProvider{}, Config{Timeout: 10 * time.Millisecond})
	_, err := c.GenerateMCQ(context.Background(), "Spanish", cefr.B1)
	assert.ErrorIs(t, err, ErrOracleUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
