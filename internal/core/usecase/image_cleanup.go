package usecase

import (
	"context"
	"fmt"

	"github.com/eatwise/labelscan/internal/core/domain"
	"github.com/eatwise/labelscan/internal/core/ports"
)

type ImageCleanupUseCase struct {
	storage ports.ImageStorage
}

func NewImageCleanupUseCase(storage ports.ImageStorage) *ImageCleanupUseCase {
	return &ImageCleanupUseCase{storage: storage}
}

// HandleReportDeleted drops the image of a deleted report. Keys the storage
// refuses are reported as rejected; redelivering those cannot succeed.
func (uc *ImageCleanupUseCase) HandleReportDeleted(ctx context.Context, event domain.ReportDeleted) (domain.CleanupOutcome, error) {
	if event.ImageKey == "" {
		return domain.CleanupNoImage, nil
	}
	if err := uc.storage.Delete(ctx, event.ImageKey); err != nil {
		outcome := domain.CleanupFailed
		if domain.IsKind(err, domain.ErrInvalidInput) {
			outcome = domain.CleanupRejected
		}
		return outcome, fmt.Errorf("delete image %s for report %s: %w", event.ImageKey, event.ReportID, err)
	}
	return domain.CleanupDeleted, nil
}
