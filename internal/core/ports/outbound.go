package ports

import (
	"context"
	"io"
	"time"

	"github.com/eatwise/labelscan/internal/core/domain"
)

// UserRepository persists account rows and the durable quota counter.
type UserRepository interface {
	GetBySubject(ctx context.Context, subject string) (*domain.User, error)
	EnsureUser(ctx context.Context, subject, email string) (*domain.User, error)
	IncrementAnalysesUsed(ctx context.Context, userID string) error
	UpdateProfile(ctx context.Context, user *domain.User) error
	UpgradeToPro(ctx context.Context, subject, email string) (bool, error)
}

// ReportRepository persists immutable analysis reports.
type ReportRepository interface {
	Create(ctx context.Context, report *domain.Report) error
	ListByUser(ctx context.Context, userID string) ([]domain.Report, error)
	GetByID(ctx context.Context, userID, reportID string) (*domain.Report, error)
	Delete(ctx context.Context, userID, reportID string) (*domain.Report, error)
}

// LabelReader sends a label image to the vision model and returns its raw
// reply text.
type LabelReader interface {
	ReadLabel(ctx context.Context, image domain.LabelImage, allergies []string) (string, error)
}

// ImageStorage stores label images. URL returns the public address of a key.
type ImageStorage interface {
	Save(ctx context.Context, key, contentType string, data io.Reader) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// AccountLocker serializes analyses per account. Release must be called with
// the token returned by Acquire.
type AccountLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// EventPublisher publishes report lifecycle events.
type EventPublisher interface {
	PublishReportDeleted(ctx context.Context, event domain.ReportDeleted) error
}

// EventSubscriber consumes report lifecycle events until ctx is done.
type EventSubscriber interface {
	SubscribeReportDeleted(ctx context.Context, handler func(context.Context, domain.ReportDeleted) error) error
}

// PaymentGateway creates checkout sessions and verifies webhook payloads.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, subject, email string) (*domain.CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (domain.PaymentEvent, error)
}

// ReportExporter renders reports into a downloadable document.
type ReportExporter interface {
	Export(w io.Writer, reports []domain.Report) error
	ContentType() string
	FileExtension() string
}

// TokenVerifier resolves a bearer token into an account caller.
type TokenVerifier interface {
	Verify(token string) (domain.Caller, error)
}

// AnalysisObserver receives analyze pipeline outcomes for metrics.
type AnalysisObserver interface {
	ObserveAnalysis(tier domain.Tier, outcome string)
	ObserveQuotaDenial(reason string)
	ObserveNormalizerStrategy(strategy string)
	ObserveModelCall(outcome string, duration time.Duration)
}

// BillingObserver receives payment webhook outcomes for metrics.
type BillingObserver interface {
	ObserveBillingEvent(eventType string, applied bool)
}
