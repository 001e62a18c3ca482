package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluentz/placement-backend/internal/cefr"
	"github.com/fluentz/placement-backend/internal/model"
)

type fakeStore struct {
	mu        sync.Mutex
	batchErr  error
	failFor   map[int64]bool
	saved     []model.VerdictRecord
	batchSize []int
}

func (s *fakeStore) SaveVerdicts(_ context.Context, recs []model.VerdictRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchSize = append(s.batchSize, len(recs))
	if s.batchErr != nil {
		return s.batchErr
	}
	s.saved = append(s.saved, recs...)
	return nil
}

func (s *fakeStore) SaveVerdict(_ context.Context, rec model.VerdictRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[rec.SubjectID] {
		return errors.New("fk violation")
	}
	s.saved = append(s.saved, rec)
	return nil
}

func newTestWorker(store VerdictStore) (*VerdictWorker, *[][]byte) {
	w := NewVerdictWorker(store, nil, nil, zerolog.Nop())
	var requeued [][]byte
	w.requeue = func(_ context.Context, raw []byte) error {
		requeued = append(requeued, raw)
		return nil
	}
	return w, &requeued
}

func payload(subject int64) *verdictPayload {
	return &verdictPayload{VerdictRecord: model.VerdictRecord{
		SubjectID:    subject,
		TopicID:      4,
		Bucket:       cefr.BucketIntermediate,
		WritingScore: 6,
		CoreLevel:    cefr.C1,
		FinalLevel:   cefr.B1,
		AssessedAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}}
}

func TestFlushSafe_BatchSucceeds(t *testing.T) {
	store := &fakeStore{}
	w, requeued := newTestWorker(store)

	w.flushSafe(context.Background(), []*verdictPayload{payload(1), payload(2)})

	assert.Equal(t, []int{2}, store.batchSize)
	assert.Len(t, store.saved, 2)
	assert.Empty(t, *requeued)
}

func TestFlushSafe_FallbackRequeuesOnlyFailures(t *testing.T) {
	store := &fakeStore{batchErr: errors.New("deadlock"), failFor: map[int64]bool{2: true}}
	w, requeued := newTestWorker(store)

	w.flushSafe(context.Background(), []*verdictPayload{payload(1), payload(2), payload(3)})

	require.Len(t, store.saved, 2)
	assert.Equal(t, int64(1), store.saved[0].SubjectID)
	assert.Equal(t, int64(3), store.saved[1].SubjectID)

	require.Len(t, *requeued, 1)
	p, err := decodeVerdict((*requeued)[0])
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.SubjectID)
	assert.Equal(t, 1, p.Attempts)
}

func TestRetry_DropsAfterMaxAttempts(t *testing.T) {
	w, requeued := newTestWorker(&fakeStore{})
	p := payload(9)
	p.Attempts = MaxVerdictAttempts - 1

	w.retry(context.Background(), p, errors.New("still failing"))
	assert.Empty(t, *requeued)
}

func TestDecodeVerdict(t *testing.T) {
	raw, err := json.Marshal(payload(5).VerdictRecord)
	require.NoError(t, err)

	p, err := decodeVerdict(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.SubjectID)
	assert.Equal(t, cefr.BucketIntermediate, p.Bucket)
	assert.Equal(t, 0, p.Attempts)

	_, err = decodeVerdict([]byte(`{"subject_id":0}`))
	assert.Error(t, err)
	_, err = decodeVerdict([]byte(`not json`))
	assert.Error(t, err)
}
