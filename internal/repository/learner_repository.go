package repository

import (
	"context"

	"github.com/fluentz/placement-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LearnerRepository reads learner accounts owned by the account service.
type LearnerRepository struct {
	pool *pgxpool.Pool
}

// NewLearnerRepository creates a new LearnerRepository.
func NewLearnerRepository(pool *pgxpool.Pool) *LearnerRepository {
	return &LearnerRepository{pool: pool}
}

// GetByID retrieves a learner by ID.
func (r *LearnerRepository) GetByID(ctx context.Context, id int64) (*model.Learner, error) {
	l := &model.Learner{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, full_name, email, role, onboarding_status
		 FROM users WHERE id = $1`, id,
	).Scan(&l.ID, &l.FullName, &l.Email, &l.Role, &l.OnboardingStatus)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// GetOnboardingStatus returns a learner's onboarding milestone. Admin accounts
// are treated as unknown.
func (r *LearnerRepository) GetOnboardingStatus(ctx context.Context, id int64) (model.OnboardingStatus, error) {
	var status model.OnboardingStatus
	err := r.pool.QueryRow(ctx,
		`SELECT onboarding_status FROM users WHERE id = $1 AND role = 'learner'`, id,
	).Scan(&status)
	if err != nil {
		return "", err
	}
	return status, nil
}

// Create inserts a learner and fills l.ID.
func (r *LearnerRepository) Create(ctx context.Context, l *model.Learner) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO users (full_name, email, role, onboarding_status)
		 VALUES ($1, $2, 'learner', $3)
		 RETURNING id`,
		l.FullName, l.Email, l.OnboardingStatus,
	).Scan(&l.ID)
}
