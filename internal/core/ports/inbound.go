package ports

import (
	"context"
	"io"

	"github.com/eatwise/labelscan/internal/core/domain"
)

// QuotaService evaluates the analyze allowance for a caller.
type QuotaService interface {
	Authorize(ctx context.Context, caller domain.Caller) (*domain.User, domain.QuotaStatus, error)
	Current(ctx context.Context, caller domain.Caller) (domain.QuotaStatus, error)
}

// LabelAnalyzer is the inbound contract for analyzeLabel.
type LabelAnalyzer interface {
	Analyze(ctx context.Context, caller domain.Caller, image domain.LabelImage) (*domain.AnalysisResult, error)
}

// ProfileService reads and edits the caller's profile.
type ProfileService interface {
	Get(ctx context.Context, caller domain.Caller) (*domain.User, error)
	Update(ctx context.Context, caller domain.Caller, update domain.ProfileUpdate) (*domain.User, error)
}

// ReportService exposes the caller's saved reports.
type ReportService interface {
	List(ctx context.Context, caller domain.Caller) ([]domain.Report, error)
	Get(ctx context.Context, caller domain.Caller, reportID string) (*domain.Report, error)
	Delete(ctx context.Context, caller domain.Caller, reportID string) error
	Export(ctx context.Context, caller domain.Caller, w io.Writer) error
	ExportFormat() (contentType, extension string)
	MigrateGuest(ctx context.Context, caller domain.Caller, items []domain.GuestAnalysis) ([]domain.Report, error)
}

// BillingService drives the one-time pro upgrade.
type BillingService interface {
	StartCheckout(ctx context.Context, caller domain.Caller) (*domain.CheckoutSession, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// ImageCleaner removes images of deleted reports. The outcome is reported
// even when err is nil.
type ImageCleaner interface {
	HandleReportDeleted(ctx context.Context, event domain.ReportDeleted) (domain.CleanupOutcome, error)
}
