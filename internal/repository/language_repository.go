package repository

import (
	"context"
	"fmt"

	"github.com/fluentz/placement-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LanguageRepository handles the assessable language catalogue.
type LanguageRepository struct {
	pool *pgxpool.Pool
}

// NewLanguageRepository creates a new LanguageRepository.
func NewLanguageRepository(pool *pgxpool.Pool) *LanguageRepository {
	return &LanguageRepository{pool: pool}
}

// GetByID retrieves a language by ID.
func (r *LanguageRepository) GetByID(ctx context.Context, id int64) (*model.Language, error) {
	l := &model.Language{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, name FROM languages WHERE id = $1`, id,
	).Scan(&l.ID, &l.Code, &l.Name)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// List returns all languages ordered by name.
func (r *LanguageRepository) List(ctx context.Context) ([]model.Language, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name FROM languages ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[model.Language])
}

// InsertMissing adds languages whose code is not present yet and returns how
// many rows were inserted.
func (r *LanguageRepository) InsertMissing(ctx context.Context, langs []model.Language) (int, error) {
	codes := make([]string, len(langs))
	names := make([]string, len(langs))
	for i, l := range langs {
		codes[i] = l.Code
		names[i] = l.Name
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO languages (code, name)
		 SELECT * FROM UNNEST($1::text[], $2::text[])
		 ON CONFLICT (code) DO NOTHING`,
		codes, names,
	)
	if err != nil {
		return 0, fmt.Errorf("insert languages: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
