package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fluentz/placement-backend/internal/cefr"
	"github.com/fluentz/placement-backend/internal/metrics"
	"github.com/fluentz/placement-backend/internal/model"
	"github.com/fluentz/placement-backend/internal/oracle"
	"github.com/fluentz/placement-backend/internal/token"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Assessment errors.
var (
	ErrTokenBindingMismatch = errors.New("answer key does not belong to this state token")
	ErrWrongPhase           = errors.New("operation not valid in this assessment phase")
	ErrPrerequisiteNotMet   = errors.New("learner has not completed verification")
	ErrUnknownTopic         = errors.New("unknown topic")
	ErrSubjectMismatch      = errors.New("token was issued to another learner")
)

// TokenError names which presented token failed verification.
type TokenError struct {
	Field string
	Err   error
}

func (e *TokenError) Error() string { return e.Field + ": " + e.Err.Error() }
func (e *TokenError) Unwrap() error { return e.Err }

// PhaseError reports the phase an operation needed and the one it got.
type PhaseError struct {
	Expected model.Phase
	Actual   model.Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", ErrWrongPhase, e.Expected, e.Actual)
}

func (e *PhaseError) Unwrap() error { return ErrWrongPhase }

// LearnerDirectory reports onboarding progress. Unknown learners return pgx.ErrNoRows.
type LearnerDirectory interface {
	GetOnboardingStatus(ctx context.Context, learnerID int64) (model.OnboardingStatus, error)
}

// TopicDirectory resolves assessable languages. Unknown ids return pgx.ErrNoRows.
type TopicDirectory interface {
	GetByID(ctx context.Context, id int64) (*model.Language, error)
}

// VerdictSink receives the single persistence write for a finished test.
type VerdictSink interface {
	Publish(ctx context.Context, rec model.VerdictRecord) error
}

// CompletionGuard makes state tokens single use.
type CompletionGuard interface {
	// Claim returns false if stateToken was already claimed.
	Claim(ctx context.Context, stateToken string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, stateToken string) error
}

// AssessmentConfig tunes the placement flow.
type AssessmentConfig struct {
	MaxCoreQuestions int
	TokenTTL         time.Duration
}

// AssessmentService runs the stateless adaptive placement test. Everything a
// session needs travels in the signed tokens it hands out; the service keeps
// no per-session state.
type AssessmentService struct {
	codec    *sessionCodec
	oracle   oracle.Oracle
	learners LearnerDirectory
	topics   TopicDirectory
	sink     VerdictSink
	guard    CompletionGuard
	metrics  *metrics.Metrics
	cfg      AssessmentConfig
	log      zerolog.Logger
	now      func() time.Time
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(
	signer *token.Signer,
	orc oracle.Oracle,
	learners LearnerDirectory,
	topics TopicDirectory,
	sink VerdictSink,
	guard CompletionGuard,
	m *metrics.Metrics,
	cfg AssessmentConfig,
	log zerolog.Logger,
) *AssessmentService {
	if cfg.MaxCoreQuestions <= 0 {
		cfg.MaxCoreQuestions = 8
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 2 * time.Hour
	}

	s := &AssessmentService{
		oracle:   orc,
		learners: learners,
		topics:   topics,
		sink:     sink,
		guard:    guard,
		metrics:  m,
		cfg:      cfg,
		log:      log.With().Str("component", "assessment").Logger(),
		now:      time.Now,
	}
	s.codec = &sessionCodec{
		signer:  signer,
		ttl:     cfg.TokenTTL,
		maxCore: cfg.MaxCoreQuestions,
		now:     func() time.Time { return s.now() },
	}
	return s
}

// Start begins a placement test at the default level.
func (s *AssessmentService) Start(ctx context.Context, subjectID, topicID int64) (*model.StartResponse, error) {
	status, err := s.learners.GetOnboardingStatus(ctx, subjectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrerequisiteNotMet
		}
		return nil, fmt.Errorf("get onboarding status: %w", err)
	}
	if !status.Reached(model.OnboardingVerified) {
		return nil, ErrPrerequisiteNotMet
	}

	lang, err := s.topic(ctx, topicID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	st := &sessionState{
		SubjectID: subjectID,
		TopicID:   topicID,
		Step:      1,
		Level:     cefr.Default,
		Phase:     model.PhaseMCQ,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	}

	q, err := s.generateMCQ(ctx, lang.Name, st.Level)
	if err != nil {
		return nil, err
	}
	stateTok, keyTok, err := s.issueRound(st, q)
	if err != nil {
		return nil, err
	}

	s.metrics.SessionStarted(lang.Code)
	s.log.Info().
		Int64("subject_id", subjectID).
		Str("topic", lang.Code).
		Msg("Assessment started")

	return &model.StartResponse{
		Step:        st.Step,
		Phase:       st.Phase,
		TargetLevel: st.Level,
		Topic:       lang.Name,
		Question:    toQuestion(q),
		StateToken:  stateTok,
		AnswerKey:   keyTok,
	}, nil
}

// Answer grades one multiple-choice round and issues the next round, or the
// writing task once the core rounds are exhausted. A state token is consumed
// by a successful answer; on any failure the presented tokens remain the
// authoritative state.
func (s *AssessmentService) Answer(ctx context.Context, subjectID int64, stateToken, answerKeyToken, choice string) (*model.AnswerResponse, error) {
	st, err := s.codec.openState(stateToken)
	if err != nil {
		return nil, err
	}
	if st.SubjectID != subjectID {
		return nil, ErrSubjectMismatch
	}
	if st.Phase != model.PhaseMCQ {
		return nil, &PhaseError{Expected: model.PhaseMCQ, Actual: st.Phase}
	}

	key, err := s.codec.openKey(answerKeyToken)
	if err != nil {
		return nil, err
	}
	if key.SubjectID != st.SubjectID || key.TopicID != st.TopicID || key.Step != st.Step {
		return nil, ErrTokenBindingMismatch
	}

	lang, err := s.topic(ctx, st.TopicID)
	if err != nil {
		return nil, err
	}

	// Each state token is answered once; a replay would let a learner retry a
	// round after reading the correct label in the feedback.
	claimed, err := s.guard.Claim(ctx, stateToken, st.ExpiresAt.Sub(s.now()))
	if err != nil {
		return nil, fmt.Errorf("claim state token: %w", err)
	}
	if !claimed {
		return nil, &PhaseError{Expected: model.PhaseMCQ, Actual: model.PhaseCompleted}
	}

	chosen := normalizeChoice(choice)
	correct := oracle.Label(chosen) == key.Correct

	resp, err := s.nextRound(ctx, st, lang, correct)
	if err != nil {
		s.release(ctx, stateToken)
		return nil, err
	}
	resp.Feedback = buildFeedback(chosen, key, correct)

	s.metrics.AnswerGraded(correct)
	s.log.Debug().
		Int64("subject_id", subjectID).
		Str("topic", lang.Code).
		Int("step", st.Step).
		Bool("correct", correct).
		Str("level", string(resp.TargetLevel)).
		Msg("Answer graded")

	return resp, nil
}

// SubmitWriting grades the writing round against the prompt carried in the
// token and returns the final verdict. Each writing token is accepted once.
func (s *AssessmentService) SubmitWriting(ctx context.Context, subjectID int64, stateToken, text string) (*model.Verdict, error) {
	st, err := s.codec.openState(stateToken)
	if err != nil {
		return nil, err
	}
	if st.SubjectID != subjectID {
		return nil, ErrSubjectMismatch
	}
	if st.Phase != model.PhaseWriting {
		return nil, &PhaseError{Expected: model.PhaseWriting, Actual: st.Phase}
	}

	lang, err := s.topic(ctx, st.TopicID)
	if err != nil {
		return nil, err
	}

	claimed, err := s.guard.Claim(ctx, stateToken, st.ExpiresAt.Sub(s.now()))
	if err != nil {
		return nil, fmt.Errorf("claim writing token: %w", err)
	}
	if !claimed {
		return nil, &PhaseError{Expected: model.PhaseWriting, Actual: model.PhaseCompleted}
	}

	grade, err := s.gradeWriting(ctx, lang.Name, st.Level, st.Writing.Prompt, text)
	if err != nil {
		s.release(ctx, stateToken)
		return nil, err
	}

	verdict := BuildVerdict(st.Level, grade, text)
	if err := s.sink.Publish(ctx, verdictRecord(st.SubjectID, st.TopicID, verdict, s.now())); err != nil {
		s.release(ctx, stateToken)
		return nil, fmt.Errorf("publish verdict: %w", err)
	}

	s.metrics.VerdictIssued(verdict.FinalLevel)
	s.log.Info().
		Int64("subject_id", subjectID).
		Str("topic", lang.Code).
		Str("core_level", string(verdict.CoreLevel)).
		Int("writing_score", verdict.WritingScore).
		Str("final_level", string(verdict.FinalLevel)).
		Msg("Assessment completed")

	return verdict, nil
}

// ─── Helpers ───────────────────────────────────────────────────────────

func (s *AssessmentService) topic(ctx context.Context, id int64) (*model.Language, error) {
	lang, err := s.topics.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnknownTopic
		}
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return lang, nil
}

func (s *AssessmentService) issueRound(st *sessionState, q *oracle.MCQ) (stateTok, keyTok string, err error) {
	stateTok, err = s.codec.issueState(st)
	if err != nil {
		return "", "", fmt.Errorf("issue state token: %w", err)
	}
	keyTok, err = s.codec.issueKey(&answerKey{
		SubjectID:   st.SubjectID,
		TopicID:     st.TopicID,
		Step:        st.Step,
		IssuedAt:    st.IssuedAt,
		ExpiresAt:   st.ExpiresAt,
		Correct:     q.Correct,
		Explanation: q.Explanation,
	})
	if err != nil {
		return "", "", fmt.Errorf("issue answer key: %w", err)
	}
	return stateTok, keyTok, nil
}

// nextRound builds the round that follows st. Nothing is issued unless the
// oracle call succeeds.
func (s *AssessmentService) nextRound(ctx context.Context, st *sessionState, lang *model.Language, correct bool) (*model.AnswerResponse, error) {
	now := s.now()
	next := *st
	next.Step++
	next.IssuedAt = now
	next.ExpiresAt = now.Add(s.cfg.TokenTTL)
	if correct {
		next.Level = cefr.StepUp(st.Level)
	} else {
		next.Level = cefr.StepDown(st.Level)
	}

	resp := &model.AnswerResponse{
		Step:        next.Step,
		TargetLevel: next.Level,
	}

	if next.Step > s.cfg.MaxCoreQuestions {
		task, err := s.generateWritingTask(ctx, lang.Name, next.Level)
		if err != nil {
			return nil, err
		}
		next.Phase = model.PhaseWriting
		next.Writing = task
		stateTok, err := s.codec.issueState(&next)
		if err != nil {
			return nil, fmt.Errorf("issue state token: %w", err)
		}

		resp.DoneCore = true
		resp.Phase = model.PhaseWriting
		resp.Writing = &model.WritingPrompt{Prompt: task.Prompt, MinWords: task.MinWords, MaxWords: task.MaxWords}
		resp.StateToken = stateTok
		return resp, nil
	}

	q, err := s.generateMCQ(ctx, lang.Name, next.Level)
	if err != nil {
		return nil, err
	}
	stateTok, keyTok, err := s.issueRound(&next, q)
	if err != nil {
		return nil, err
	}

	resp.Phase = model.PhaseMCQ
	resp.Question = toQuestion(q)
	resp.StateToken = stateTok
	resp.AnswerKey = keyTok
	return resp, nil
}

// release frees a token claim after a failed step so the learner can
// retry. It must run even when the request context is already done.
func (s *AssessmentService) release(ctx context.Context, stateToken string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.guard.Release(ctx, stateToken); err != nil {
		s.log.Error().Err(err).Msg("Failed to release token claim")
	}
}

func (s *AssessmentService) generateMCQ(ctx context.Context, topic string, level cefr.Level) (*oracle.MCQ, error) {
	start := time.Now()
	q, err := s.oracle.GenerateMCQ(ctx, topic, level)
	s.observeOracle("generate_mcq", start, err)
	return q, err
}

func (s *AssessmentService) generateWritingTask(ctx context.Context, topic string, level cefr.Level) (*oracle.WritingTask, error) {
	start := time.Now()
	task, err := s.oracle.GenerateWritingTask(ctx, topic, level)
	s.observeOracle("generate_writing_task", start, err)
	return task, err
}

func (s *AssessmentService) gradeWriting(ctx context.Context, topic string, level cefr.Level, prompt, text string) (*oracle.WritingGrade, error) {
	start := time.Now()
	grade, err := s.oracle.GradeWriting(ctx, topic, level, prompt, text)
	s.observeOracle("grade_writing", start, err)
	return grade, err
}

func (s *AssessmentService) observeOracle(op string, start time.Time, err error) {
	s.metrics.ObserveOracle(op, time.Since(start), err)
	if err != nil {
		s.log.Warn().Err(err).Str("op", op).Msg("Item oracle call failed")
	}
}

func normalizeChoice(choice string) string {
	return strings.ToUpper(strings.TrimSpace(choice))
}

func buildFeedback(chosen string, key *answerKey, correct bool) model.Feedback {
	fb := model.Feedback{
		Chosen:       chosen,
		CorrectLabel: string(key.Correct),
		Correct:      correct,
		Explanation:  key.Explanation,
	}
	if correct {
		fb.Score = 10
		fb.Message = strings.TrimSpace("Correct. " + key.Explanation)
	} else {
		fb.Message = strings.TrimSpace(fmt.Sprintf("Incorrect. Correct answer is %s. %s", key.Correct, key.Explanation))
	}
	return fb
}

func toQuestion(q *oracle.MCQ) *model.Question {
	out := &model.Question{Prompt: q.Prompt, Options: make([]model.Option, 0, len(oracle.Labels))}
	for _, l := range oracle.Labels {
		out.Options = append(out.Options, model.Option{Label: string(l), Text: q.Options[l]})
	}
	return out
}
