package repositories

import (
	"context"

	"github.com/desertthunder/plsync/internal/models"
)

// HistoryRecorder implements tasks.RunRecorder using RunRepository.
type HistoryRecorder struct {
	repo *RunRepository
}

// NewHistoryRecorder creates a new HistoryRecorder with the given repository
func NewHistoryRecorder(repo *RunRepository) *HistoryRecorder {
	return &HistoryRecorder{repo: repo}
}

func (h *HistoryRecorder) Start(ctx context.Context, run *models.Run) error {
	return h.repo.Create(ctx, run)
}

func (h *HistoryRecorder) RecordFailure(ctx context.Context, failure *models.Failure) error {
	return h.repo.RecordFailure(ctx, failure)
}

func (h *HistoryRecorder) Finish(ctx context.Context, run *models.Run) error {
	return h.repo.Finish(ctx, run)
}
