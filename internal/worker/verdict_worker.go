package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fluentz/placement-backend/internal/config"
	"github.com/fluentz/placement-backend/internal/metrics"
	"github.com/fluentz/placement-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	VerdictBatchSize    = 50
	VerdictBatchTimeout = 2 * time.Second
	VerdictPollTimeout  = 1 * time.Second

	// MaxVerdictAttempts bounds requeues of a record that keeps failing.
	MaxVerdictAttempts = 5
)

// VerdictStore persists verdict records.
type VerdictStore interface {
	SaveVerdicts(ctx context.Context, recs []model.VerdictRecord) error
	SaveVerdict(ctx context.Context, rec model.VerdictRecord) error
}

// VerdictWorker drains the verdict queue into Postgres in batches.
type VerdictWorker struct {
	store   VerdictStore
	rdb     *redis.Client
	metrics *metrics.Metrics
	log     zerolog.Logger
	requeue func(ctx context.Context, raw []byte) error
}

func NewVerdictWorker(store VerdictStore, rdb *redis.Client, m *metrics.Metrics, log zerolog.Logger) *VerdictWorker {
	w := &VerdictWorker{
		store:   store,
		rdb:     rdb,
		metrics: m,
		log:     log.With().Str("component", "verdict_worker").Logger(),
	}
	w.requeue = func(ctx context.Context, raw []byte) error {
		return w.rdb.RPush(ctx, config.WorkerKey.PersistVerdictsQueue, raw).Err()
	}
	return w
}

// verdictPayload is a queued record plus how many times it failed to persist.
type verdictPayload struct {
	model.VerdictRecord
	Attempts int `json:"attempts,omitempty"`
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *VerdictWorker) Start(ctx context.Context) {
	w.log.Info().Msg("VerdictWorker started")

	batch := make([]*verdictPayload, 0, VerdictBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= VerdictBatchSize || time.Since(lastFlush) >= VerdictBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			w.flushSafe(flushCtx, batch)
			cancel()
			return

		default:
			item, err := w.rdb.BLPop(ctx, VerdictPollTimeout, config.WorkerKey.PersistVerdictsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					time.Sleep(VerdictPollTimeout)
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			p, err := decodeVerdict([]byte(item[1]))
			if err != nil {
				w.log.Error().Err(err).Msg("Invalid verdict payload")
				continue
			}

			batch = append(batch, p)
		}
	}
}

func decodeVerdict(raw []byte) (*verdictPayload, error) {
	var p verdictPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.SubjectID <= 0 || p.TopicID <= 0 || p.Bucket == "" {
		return nil, errors.New("verdict payload missing identifiers")
	}
	return &p, nil
}

// ----------------------------------------------------------------
// Batch write with per-record fallback
// ----------------------------------------------------------------

func (w *VerdictWorker) flushSafe(ctx context.Context, batch []*verdictPayload) {
	if len(batch) == 0 {
		return
	}

	recs := make([]model.VerdictRecord, len(batch))
	for i, p := range batch {
		recs[i] = p.VerdictRecord
	}

	err := w.store.SaveVerdicts(ctx, recs)
	if err == nil {
		w.metrics.VerdictsPersisted("flushed", len(batch))
		return
	}
	w.log.Warn().Err(err).Int("batch", len(batch)).Msg("bulk verdict insert failed, using fallback")

	for _, p := range batch {
		if err := w.store.SaveVerdict(ctx, p.VerdictRecord); err != nil {
			w.retry(ctx, p, err)
			continue
		}
		w.metrics.VerdictsPersisted("flushed", 1)
	}
}

func (w *VerdictWorker) retry(ctx context.Context, p *verdictPayload, cause error) {
	p.Attempts++
	logEvt := func(e *zerolog.Event) *zerolog.Event {
		return e.Err(cause).
			Int64("subject_id", p.SubjectID).
			Int64("topic_id", p.TopicID).
			Int("attempts", p.Attempts)
	}

	if p.Attempts >= MaxVerdictAttempts {
		logEvt(w.log.Error()).Msg("Verdict dropped after repeated failures")
		w.metrics.VerdictsPersisted("dropped", 1)
		return
	}

	raw, err := json.Marshal(p)
	if err != nil {
		logEvt(w.log.Error()).Msg("Verdict could not be re-encoded")
		return
	}
	if err := w.requeue(ctx, raw); err != nil {
		logEvt(w.log.Error()).AnErr("requeue_err", err).Msg("Verdict requeue failed")
		w.metrics.VerdictsPersisted("dropped", 1)
		return
	}
	logEvt(w.log.Warn()).Msg("Verdict persist failed, requeued")
	w.metrics.VerdictsPersisted("requeued", 1)
}
