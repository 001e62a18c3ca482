package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fluentz/placement-backend/internal/cefr"
	"github.com/fluentz/placement-backend/internal/model"
	"github.com/fluentz/placement-backend/internal/oracle"
	"github.com/fluentz/placement-backend/internal/token"
)

const tokenVersion = 1

const (
	typState     = "st"
	typAnswerKey = "ak"
)

// Envelope field names. Short names keep tokens small in URLs and WS frames.
const (
	fVersion  = "v"
	fType     = "typ"
	fSubject  = "sub"
	fTopic    = "top"
	fStep     = "step"
	fLevel    = "lvl"
	fPhase    = "ph"
	fIssued   = "iat"
	fExpires  = "exp"
	fPrompt   = "wp"
	fMinWords = "wmin"
	fMaxWords = "wmax"
	fSeal     = "seal"
)

var (
	mcqStateFields     = []string{fVersion, fType, fSubject, fTopic, fStep, fLevel, fPhase, fIssued, fExpires}
	writingStateFields = append(append([]string{}, mcqStateFields...), fPrompt, fMinWords, fMaxWords)
	answerKeyFields    = []string{fVersion, fType, fSubject, fTopic, fStep, fIssued, fExpires, fSeal}
)

// Token field names used in error details.
const (
	FieldStateToken = "state_token"
	FieldAnswerKey  = "answer_key"
)

// sessionState is everything a session knows between requests.
type sessionState struct {
	SubjectID int64
	TopicID   int64
	Step      int
	Level     cefr.Level
	Phase     model.Phase
	IssuedAt  time.Time
	ExpiresAt time.Time
	// Writing is set only in the writing phase.
	Writing *oracle.WritingTask
}

// answerKey is one round's sealed correct answer, bound to a session step.
type answerKey struct {
	SubjectID   int64
	TopicID     int64
	Step        int
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Correct     oracle.Label
	Explanation string
}

// sealedAnswer is the plaintext inside an answer key's seal.
type sealedAnswer struct {
	Correct     oracle.Label `json:"c"`
	Explanation string       `json:"e"`
}

// sessionCodec maps session values to signed tokens and back, enforcing the
// envelope schema on every read.
type sessionCodec struct {
	signer  *token.Signer
	ttl     time.Duration
	maxCore int
	now     func() time.Time
}

func (c *sessionCodec) issueState(st *sessionState) (string, error) {
	f := token.Fields{
		fVersion: tokenVersion,
		fType:    typState,
		fSubject: st.SubjectID,
		fTopic:   st.TopicID,
		fStep:    st.Step,
		fLevel:   string(st.Level),
		fPhase:   string(st.Phase),
		fIssued:  st.IssuedAt.Unix(),
		fExpires: st.ExpiresAt.Unix(),
	}
	if st.Phase == model.PhaseWriting {
		if st.Writing == nil {
			return "", fmt.Errorf("writing state without task")
		}
		f[fPrompt] = st.Writing.Prompt
		f[fMinWords] = st.Writing.MinWords
		f[fMaxWords] = st.Writing.MaxWords
	}
	return c.signer.Issue(f)
}

func (c *sessionCodec) openState(tok string) (*sessionState, error) {
	f, err := c.signer.Open(tok)
	if err != nil {
		return nil, &TokenError{Field: FieldStateToken, Err: err}
	}
	st, err := c.parseState(f)
	if err != nil {
		return nil, tokenErr(FieldStateToken, err)
	}
	return st, nil
}

func (c *sessionCodec) parseState(f token.Fields) (*sessionState, error) {
	subject, topic, step, issued, expires, err := c.parseCommon(f, typState)
	if err != nil {
		return nil, err
	}

	lvl, err := f.String(fLevel)
	if err != nil {
		return nil, err
	}
	level := cefr.Level(lvl)
	if !level.Valid() {
		return nil, schemaErr("level %q", lvl)
	}

	ph, err := f.String(fPhase)
	if err != nil {
		return nil, err
	}

	st := &sessionState{
		SubjectID: subject,
		TopicID:   topic,
		Step:      step,
		Level:     level,
		Phase:     model.Phase(ph),
		IssuedAt:  issued,
		ExpiresAt: expires,
	}

	switch st.Phase {
	case model.PhaseMCQ:
		if err := exactFields(f, mcqStateFields); err != nil {
			return nil, err
		}
		if step > c.maxCore {
			return nil, schemaErr("mcq step %d beyond %d core rounds", step, c.maxCore)
		}
	case model.PhaseWriting:
		if err := exactFields(f, writingStateFields); err != nil {
			return nil, err
		}
		if step != c.maxCore+1 {
			return nil, schemaErr("writing step %d, want %d", step, c.maxCore+1)
		}
		task, err := parseWritingTask(f)
		if err != nil {
			return nil, err
		}
		st.Writing = task
	default:
		return nil, schemaErr("phase %q", ph)
	}

	if err := c.checkExpiry(expires); err != nil {
		return nil, err
	}
	return st, nil
}

func parseWritingTask(f token.Fields) (*oracle.WritingTask, error) {
	prompt, err := f.String(fPrompt)
	if err != nil {
		return nil, err
	}
	lo, err := f.Int(fMinWords)
	if err != nil {
		return nil, err
	}
	hi, err := f.Int(fMaxWords)
	if err != nil {
		return nil, err
	}
	if prompt == "" || lo <= 0 || hi < lo {
		return nil, schemaErr("writing task bounds")
	}
	return &oracle.WritingTask{Prompt: prompt, MinWords: int(lo), MaxWords: int(hi)}, nil
}

func (c *sessionCodec) issueKey(k *answerKey) (string, error) {
	plain, err := json.Marshal(sealedAnswer{Correct: k.Correct, Explanation: k.Explanation})
	if err != nil {
		return "", fmt.Errorf("marshal answer: %w", err)
	}
	seal, err := c.signer.Seal(plain, bindingAAD(k.SubjectID, k.TopicID, k.Step))
	if err != nil {
		return "", err
	}
	return c.signer.Issue(token.Fields{
		fVersion: tokenVersion,
		fType:    typAnswerKey,
		fSubject: k.SubjectID,
		fTopic:   k.TopicID,
		fStep:    k.Step,
		fIssued:  k.IssuedAt.Unix(),
		fExpires: k.ExpiresAt.Unix(),
		fSeal:    seal,
	})
}

func (c *sessionCodec) openKey(tok string) (*answerKey, error) {
	f, err := c.signer.Open(tok)
	if err != nil {
		return nil, &TokenError{Field: FieldAnswerKey, Err: err}
	}
	k, err := c.parseKey(f)
	if err != nil {
		return nil, tokenErr(FieldAnswerKey, err)
	}
	return k, nil
}

func (c *sessionCodec) parseKey(f token.Fields) (*answerKey, error) {
	subject, topic, step, issued, expires, err := c.parseCommon(f, typAnswerKey)
	if err != nil {
		return nil, err
	}
	if err := exactFields(f, answerKeyFields); err != nil {
		return nil, err
	}
	if step > c.maxCore {
		return nil, schemaErr("answer key step %d beyond %d core rounds", step, c.maxCore)
	}
	if err := c.checkExpiry(expires); err != nil {
		return nil, err
	}

	sealed, err := f.String(fSeal)
	if err != nil {
		return nil, err
	}
	plain, err := c.signer.Unseal(sealed, bindingAAD(subject, topic, step))
	if err != nil {
		return nil, err
	}
	var ans sealedAnswer
	if err := json.Unmarshal(plain, &ans); err != nil || !oracle.ValidLabel(ans.Correct) {
		return nil, schemaErr("sealed answer")
	}

	return &answerKey{
		SubjectID:   subject,
		TopicID:     topic,
		Step:        step,
		IssuedAt:    issued,
		ExpiresAt:   expires,
		Correct:     ans.Correct,
		Explanation: ans.Explanation,
	}, nil
}

// parseCommon reads the fields shared by both token kinds.
func (c *sessionCodec) parseCommon(f token.Fields, typ string) (subject, topic int64, step int, issued, expires time.Time, err error) {
	v, err := f.Int(fVersion)
	if err != nil {
		return
	}
	if v != tokenVersion {
		err = schemaErr("version %d", v)
		return
	}
	gotTyp, err := f.String(fType)
	if err != nil {
		return
	}
	if gotTyp != typ {
		err = schemaErr("token type %q, want %q", gotTyp, typ)
		return
	}
	if subject, err = f.Int(fSubject); err != nil {
		return
	}
	if topic, err = f.Int(fTopic); err != nil {
		return
	}
	s, err := f.Int(fStep)
	if err != nil {
		return
	}
	if subject <= 0 || topic <= 0 || s <= 0 {
		err = schemaErr("non-positive identifier")
		return
	}
	iat, err := f.Int(fIssued)
	if err != nil {
		return
	}
	exp, err := f.Int(fExpires)
	if err != nil {
		return
	}
	if exp <= iat {
		err = schemaErr("exp before iat")
		return
	}
	return subject, topic, int(s), time.Unix(iat, 0), time.Unix(exp, 0), nil
}

func (c *sessionCodec) checkExpiry(expires time.Time) error {
	if !c.now().Before(expires) {
		return token.ErrTokenExpired
	}
	return nil
}

// exactFields rejects envelopes that carry anything beyond want.
func exactFields(f token.Fields, want []string) error {
	if len(f) != len(want) {
		return schemaErr("unexpected field set")
	}
	for _, name := range want {
		if !f.Has(name) {
			return schemaErr("missing field %q", name)
		}
	}
	return nil
}

// tokenErr attaches the offending token name. Schema failures surface as
// invalid tokens so callers see a single failure class.
func tokenErr(field string, err error) error {
	if !errors.Is(err, token.ErrInvalidToken) {
		err = fmt.Errorf("%w: %w", token.ErrInvalidToken, err)
	}
	return &TokenError{Field: field, Err: err}
}

func schemaErr(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{token.ErrInvalidToken}, args...)...)
}

// bindingAAD ties a sealed answer to the (subject, topic, step) it was issued for.
func bindingAAD(subject, topic int64, step int) []byte {
	return []byte(strconv.FormatInt(subject, 10) + ":" + strconv.FormatInt(topic, 10) + ":" + strconv.Itoa(step))
}
