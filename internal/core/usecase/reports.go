package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eatwise/labelscan/internal/core/analysis"
	"github.com/eatwise/labelscan/internal/core/domain"
	"github.com/eatwise/labelscan/internal/core/ports"
)

type ReportsUseCase struct {
	users    ports.UserRepository
	reports  ports.ReportRepository
	storage  ports.ImageStorage
	events   ports.EventPublisher
	exporter ports.ReportExporter
	policy   domain.QuotaPolicy
	now      func() time.Time
}

func NewReportsUseCase(
	users ports.UserRepository,
	reports ports.ReportRepository,
	storage ports.ImageStorage,
	events ports.EventPublisher,
	exporter ports.ReportExporter,
	policy domain.QuotaPolicy,
) *ReportsUseCase {
	return &ReportsUseCase{
		users:    users,
		reports:  reports,
		storage:  storage,
		events:   events,
		exporter: exporter,
		policy:   policy.Normalize(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List returns the caller's reports, newest first.
func (uc *ReportsUseCase) List(ctx context.Context, caller domain.Caller) ([]domain.Report, error) {
	if err := requireAccount(caller, "list reports"); err != nil {
		return nil, err
	}
	user, err := uc.users.GetBySubject(ctx, caller.Subject)
	if err != nil {
		if domain.IsKind(err, domain.ErrUserNotFound) {
			return []domain.Report{}, nil
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	reports, err := uc.reports.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

func (uc *ReportsUseCase) Get(ctx context.Context, caller domain.Caller, reportID string) (*domain.Report, error) {
	user, err := uc.owner(ctx, caller, reportID, "get report")
	if err != nil {
		return nil, err
	}
	return uc.reports.GetByID(ctx, user.ID, reportID)
}

// Delete removes the report and hands its image to the cleanup worker. With
// no event publisher the image is removed inline.
func (uc *ReportsUseCase) Delete(ctx context.Context, caller domain.Caller, reportID string) error {
	user, err := uc.owner(ctx, caller, reportID, "delete report")
	if err != nil {
		return err
	}
	report, err := uc.reports.Delete(ctx, user.ID, reportID)
	if err != nil {
		return err
	}
	if report.ImageKey == "" {
		return nil
	}

	event := domain.ReportDeleted{
		ReportID:  report.ID,
		UserID:    user.ID,
		ImageKey:  report.ImageKey,
		DeletedAt: uc.now(),
	}
	if uc.events != nil {
		err := uc.events.PublishReportDeleted(ctx, event)
		if err == nil {
			return nil
		}
		slog.Warn("report_deleted_publish_failed", "report_id", report.ID, "error", err)
	}
	if uc.storage != nil {
		if err := uc.storage.Delete(ctx, report.ImageKey); err != nil {
			slog.Warn("report_image_delete_failed", "report_id", report.ID, "key", report.ImageKey, "error", err)
		}
	}
	return nil
}

func (uc *ReportsUseCase) Export(ctx context.Context, caller domain.Caller, w io.Writer) error {
	if uc.exporter == nil {
		return domain.WrapError(domain.ErrInvalidInput, "export reports", fmt.Errorf("export is not configured"))
	}
	reports, err := uc.List(ctx, caller)
	if err != nil {
		return err
	}
	if err := uc.exporter.Export(w, reports); err != nil {
		return fmt.Errorf("export reports: %w", err)
	}
	return nil
}

func (uc *ReportsUseCase) ExportFormat() (string, string) {
	if uc.exporter == nil {
		return "", ""
	}
	return uc.exporter.ContentType(), uc.exporter.FileExtension()
}

// MigrateGuest stores analyses a guest ran before signing in. At most the
// guest cap is imported and no quota is charged.
func (uc *ReportsUseCase) MigrateGuest(ctx context.Context, caller domain.Caller, items []domain.GuestAnalysis) ([]domain.Report, error) {
	if err := requireAccount(caller, "migrate guest analyses"); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []domain.Report{}, nil
	}
	if len(items) > uc.policy.GuestMax {
		items = items[:uc.policy.GuestMax]
	}

	user, err := uc.users.EnsureUser(ctx, caller.Subject, caller.Email)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	out := make([]domain.Report, 0, len(items))
	for _, item := range items {
		record := analysis.Enrich(analysis.CoerceRecord(item.Record), user.Allergies)
		explanation := strings.TrimSpace(item.Explanation)
		if explanation == "" {
			explanation = analysis.EvaluateCompatibility(record, user.FitnessGoal).Explanation
		}
		createdAt := uc.now()
		if item.CreatedAt != nil && !item.CreatedAt.IsZero() && item.CreatedAt.Before(createdAt) {
			createdAt = item.CreatedAt.UTC()
		}

		report := domain.Report{
			ID:          uuid.NewString(),
			UserID:      user.ID,
			Title:       reportTitle(record.Name),
			ImageURL:    remoteImageURL(item.ImageURL),
			Explanation: explanation,
			Record:      record,
			CreatedAt:   createdAt,
		}
		if err := uc.reports.Create(ctx, &report); err != nil {
			return out, fmt.Errorf("save migrated report: %w", err)
		}
		out = append(out, report)
	}
	return out, nil
}

func (uc *ReportsUseCase) owner(ctx context.Context, caller domain.Caller, reportID, operation string) (*domain.User, error) {
	if err := requireAccount(caller, operation); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reportID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, operation, fmt.Errorf("report id is required"))
	}
	user, err := uc.users.GetBySubject(ctx, caller.Subject)
	if err != nil {
		if domain.IsKind(err, domain.ErrUserNotFound) {
			return nil, domain.WrapError(domain.ErrReportNotFound, operation, err)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// Guest images never reach storage; only keep links the client got from
// somewhere public.
func remoteImageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "https://") || strings.HasPrefix(raw, "http://") {
		return raw
	}
	return ""
}
