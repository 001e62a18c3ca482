package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fluentz/placement-backend/internal/cefr"
	"github.com/fluentz/placement-backend/internal/model"
	"github.com/fluentz/placement-backend/internal/oracle"
	"github.com/fluentz/placement-backend/internal/token"
)

const (
	testLearner int64 = 7
	spanishID   int64 = 4
)

type fakeOracle struct {
	mu        sync.Mutex
	fail      error
	grade     oracle.WritingGrade
	mcqLevels []cefr.Level
	graded    []string
}

func (f *fakeOracle) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *fakeOracle) GenerateMCQ(_ context.Context, topic string, level cefr.Level) (*oracle.MCQ, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.mcqLevels = append(f.mcqLevels, level)
	return &oracle.MCQ{
		Prompt:      fmt.Sprintf("%s question at %s", topic, level),
		Options:     map[oracle.Label]string{"A": "uno", "B": "dos", "C": "tres", "D": "cuatro"},
		Correct:     "B",
		Explanation: "Dos means two.",
	}, nil
}

func (f *fakeOracle) GenerateWritingTask(_ context.Context, topic string, level cefr.Level) (*oracle.WritingTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	return &oracle.WritingTask{
		Prompt:   fmt.Sprintf("Describe your weekend in %s (%s).", topic, level),
		MinWords: 60,
		MaxWords: 120,
	}, nil
}

func (f *fakeOracle) GradeWriting(_ context.Context, _ string, _ cefr.Level, prompt, _ string) (*oracle.WritingGrade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.graded = append(f.graded, prompt)
	g := f.grade
	return &g, nil
}

type fakeLearners map[int64]model.OnboardingStatus

func (f fakeLearners) GetOnboardingStatus(_ context.Context, id int64) (model.OnboardingStatus, error) {
	st, ok := f[id]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return st, nil
}

type fakeTopics map[int64]model.Language

func (f fakeTopics) GetByID(_ context.Context, id int64) (*model.Language, error) {
	l, ok := f[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &l, nil
}

type fakeSink struct {
	mu      sync.Mutex
	records []model.VerdictRecord
	err     error
}

func (f *fakeSink) Publish(_ context.Context, rec model.VerdictRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type memGuard struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func (g *memGuard) Claim(_ context.Context, tok string, _ time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.claimed[tok] {
		return false, nil
	}
	g.claimed[tok] = true
	return true, nil
}

func (g *memGuard) Release(_ context.Context, tok string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claimed, tok)
	return nil
}

type harness struct {
	svc    *AssessmentService
	oracle *fakeOracle
	sink   *fakeSink
	guard  *memGuard
	clock  time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	signer, err := token.NewSigner([]byte("0123456789abcdef0123456789abcdef-test"))
	require.NoError(t, err)

	h := &harness{
		oracle: &fakeOracle{grade: oracle.WritingGrade{Score: 6, Feedback: "Clear but simple.", Rubric: oracle.Rubric{Grammar: 2, Vocabulary: 2, Coherence: 2}}},
		sink:   &fakeSink{},
		guard:  &memGuard{claimed: map[string]bool{}},
		clock:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	h.svc = NewAssessmentService(
		signer,
		h.oracle,
		fakeLearners{testLearner: model.OnboardingVerified, 8: model.OnboardingRegistered},
		fakeTopics{spanishID: {ID: spanishID, Code: "es", Name: "Spanish"}},
		h.sink,
		h.guard,
		nil,
		AssessmentConfig{MaxCoreQuestions: 8, TokenTTL: 2 * time.Hour},
		zerolog.Nop(),
	)
	h.svc.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) advance(d time.Duration) { h.clock = h.clock.Add(d) }

// writingToken mints a writing-phase token at the given core level.
func (h *harness) writingToken(t *testing.T, level cefr.Level) string {
	t.Helper()
	tok, err := h.svc.codec.issueState(&sessionState{
		SubjectID: testLearner,
		TopicID:   spanishID,
		Step:      h.svc.cfg.MaxCoreQuestions + 1,
		Level:     level,
		Phase:     model.PhaseWriting,
		IssuedAt:  h.clock,
		ExpiresAt: h.clock.Add(time.Hour),
		Writing:   &oracle.WritingTask{Prompt: "Write about your city.", MinWords: 50, MaxWords: 100},
	})
	require.NoError(t, err)
	return tok
}
