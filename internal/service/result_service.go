package service

import (
	"context"
	"fmt"

	"github.com/stemsi/exstem-cbt/internal/model"
)

// ResultService exposes a student's stored results.
type ResultService struct {
	results ResultHistory
}

// NewResultService creates a new ResultService.
func NewResultService(results ResultHistory) *ResultService {
	return &ResultService{results: results}
}

// ListForStudent returns the user's results, newest first.
func (s *ResultService) ListForStudent(ctx context.Context, user *model.User) ([]model.ResultSummary, error) {
	results, err := s.results.ListByStudent(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	if results == nil {
		results = []model.ResultSummary{}
	}
	return results, nil
}
