package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fluentz/placement-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AssessmentRepository stores placement verdicts and their profile side effects.
type AssessmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(pool *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

// ListByLearner returns a learner's verdicts, newest first, with the total count.
func (r *AssessmentRepository) ListByLearner(ctx context.Context, learnerID int64, limit, offset int) ([]model.AssessmentResult, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM language_assessments WHERE user_id = $1`, learnerID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.language_id, l.code, l.name, a.score, a.level, a.created_at
		 FROM language_assessments a
		 JOIN languages l ON l.id = a.language_id
		 WHERE a.user_id = $1
		 ORDER BY a.created_at DESC, a.id DESC
		 LIMIT $2 OFFSET $3`,
		learnerID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}

	results, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.AssessmentResult])
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// SaveVerdicts writes a batch of verdicts in one transaction: the assessment
// rows, the learner's target-language proficiency, and the onboarding
// promotion from verified to assessed.
func (r *AssessmentRepository) SaveVerdicts(ctx context.Context, recs []model.VerdictRecord) error {
	if len(recs) == 0 {
		return nil
	}

	n := len(recs)
	users := make([]int64, n)
	langs := make([]int64, n)
	scores := make([]int32, n)
	levels := make([]string, n)
	createdAts := make([]time.Time, n)
	for i, rec := range recs {
		users[i] = rec.SubjectID
		langs[i] = rec.TopicID
		scores[i] = int32(rec.WritingScore)
		levels[i] = string(rec.Bucket)
		createdAts[i] = rec.AssessedAt
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO language_assessments (user_id, language_id, score, level, created_at)
			SELECT u.user_id, u.language_id, u.score, u.level::proficiency_bucket, u.created_at
			FROM UNNEST(
				$1::bigint[],
				$2::smallint[],
				$3::int[],
				$4::text[],
				$5::timestamptz[]
			) AS u (user_id, language_id, score, level, created_at)
		`, users, langs, scores, levels, createdAts); err != nil {
			return fmt.Errorf("insert assessments: %w", err)
		}

		// Latest verdict per (user, language) wins within the batch.
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_languages (user_id, language_id, type, proficiency_level)
			SELECT DISTINCT ON (u.user_id, u.language_id)
				u.user_id, u.language_id, 'target'::language_type, u.level::proficiency_bucket
			FROM UNNEST(
				$1::bigint[],
				$2::smallint[],
				$3::text[],
				$4::timestamptz[]
			) AS u (user_id, language_id, level, created_at)
			ORDER BY u.user_id, u.language_id, u.created_at DESC
			ON CONFLICT (user_id, language_id, type)
			DO UPDATE SET proficiency_level = EXCLUDED.proficiency_level
		`, users, langs, levels, createdAts); err != nil {
			return fmt.Errorf("upsert target languages: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE users
			SET onboarding_status = 'assessed', updated_at = NOW()
			WHERE id = ANY($1::bigint[]) AND onboarding_status = 'verified'
		`, users); err != nil {
			return fmt.Errorf("promote onboarding: %w", err)
		}
		return nil
	})
}

// SaveVerdict writes a single verdict. Used when a batch fails so one bad
// record cannot block the rest.
func (r *AssessmentRepository) SaveVerdict(ctx context.Context, rec model.VerdictRecord) error {
	return r.SaveVerdicts(ctx, []model.VerdictRecord{rec})
}
