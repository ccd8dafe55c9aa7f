package domain

import "time"

const MaxProfileNameRunes = 80

// User is the durable account row.
type User struct {
	ID           string      `json:"-"`
	Subject      string      `json:"-"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	Tier         Tier        `json:"tier"`
	AnalysesUsed int         `json:"analysesUsed"`
	Allergies    []string    `json:"allergies"`
	FitnessGoal  FitnessGoal `json:"fitnessGoal"`
	CreatedAt    time.Time   `json:"-"`
	UpdatedAt    time.Time   `json:"-"`
}

// ProfileUpdate carries the editable subset of a User.
type ProfileUpdate struct {
	Name        *string
	FitnessGoal *string
	Allergies   []string
}

// Report is a persisted AnalysisRecord owned by one account. Reports are
// never mutated after creation.
type Report struct {
	ID          string         `json:"id"`
	UserID      string         `json:"-"`
	Title       string         `json:"title"`
	ImageKey    string         `json:"-"`
	ImageURL    string         `json:"imageUrl,omitempty"`
	Explanation string         `json:"explanation"`
	Record      AnalysisRecord `json:"record"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// GuestAnalysis is one client-held analysis submitted for migration.
type GuestAnalysis struct {
	ImageURL    string         `json:"imageUrl"`
	Explanation string         `json:"explanation"`
	Record      map[string]any `json:"record"`
	CreatedAt   *time.Time     `json:"createdAt"`
}

// ReportDeleted is published after a report row is removed so the worker can
// drop the stored image.
type ReportDeleted struct {
	ReportID  string    `json:"reportId"`
	UserID    string    `json:"userId"`
	ImageKey  string    `json:"imageKey"`
	DeletedAt time.Time `json:"deletedAt"`
}

// CleanupOutcome classifies what the worker did with a deleted report's image.
type CleanupOutcome string

const (
	CleanupDeleted  CleanupOutcome = "deleted"
	CleanupNoImage  CleanupOutcome = "no_image"
	CleanupRejected CleanupOutcome = "rejected"
	CleanupFailed   CleanupOutcome = "failed"
)

// CheckoutSession is the payment redirect handed back to the client.
type CheckoutSession struct {
	ID         string `json:"id,omitempty"`
	URL        string `json:"url"`
	AlreadyPro bool   `json:"alreadyPro"`
}

// PaymentEvent is a verified payment-provider notification.
type PaymentEvent struct {
	ID            string
	Type          string
	Subject       string
	Email         string
	PaymentStatus string
}

// Confirmed reports whether the event proves a completed payment.
func (e PaymentEvent) Confirmed() bool {
	switch e.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
	default:
		return false
	}
	return e.PaymentStatus == "paid" || e.PaymentStatus == "no_payment_required"
}
