package service

import (
	"context"
	"fmt"

	"github.com/fluentz/placement-backend/internal/model"
	"github.com/fluentz/placement-backend/internal/repository"
)

// ResultService lists stored placement verdicts.
type ResultService struct {
	repo *repository.AssessmentRepository
}

// NewResultService creates a new ResultService.
func NewResultService(repo *repository.AssessmentRepository) *ResultService {
	return &ResultService{repo: repo}
}

// ListForLearner returns one page of a learner's verdicts and the total count.
func (s *ResultService) ListForLearner(ctx context.Context, learnerID int64, page, perPage int) ([]model.AssessmentResult, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	results, total, err := s.repo.ListByLearner(ctx, learnerID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	if results == nil {
		results = []model.AssessmentResult{}
	}
	return results, total, nil
}
