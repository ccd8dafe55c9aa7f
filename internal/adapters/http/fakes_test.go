package httpadapter

import (
	"context"
	"io"
	"strings"

	"github.com/eatwise/labelscan/internal/config"
	"github.com/eatwise/labelscan/internal/core/domain"
)

type verifierFake struct {
	callers map[string]domain.Caller
}

func (f verifierFake) Verify(token string) (domain.Caller, error) {
	caller, ok := f.callers[token]
	if !ok {
		return domain.Caller{}, domain.WrapError(domain.ErrUnauthorized, "verify token", io.ErrUnexpectedEOF)
	}
	return caller, nil
}

type analyzerFake struct {
	err        error
	lastCaller domain.Caller
	lastImage  domain.LabelImage
}

func (f *analyzerFake) Analyze(_ context.Context, caller domain.Caller, image domain.LabelImage) (*domain.AnalysisResult, error) {
	f.lastCaller = caller
	f.lastImage = image
	if f.err != nil {
		return nil, f.err
	}
	used := 0
	if caller.Guest != nil {
		used = caller.Guest.Used
	}
	quota := domain.DefaultQuotaPolicy().Evaluate(domain.TierGuest, used+1)
	return &domain.AnalysisResult{
		AnalysisRecord: domain.AnalysisRecord{Name: "Oat Bar", Grade: "B", Ingredients: []string{"oats"}},
		Explanation:    "No major concerns detected",
		Quota:          &quota,
	}, nil
}

type quotaFake struct {
	status domain.QuotaStatus
	err    error
}

func (f quotaFake) Authorize(context.Context, domain.Caller) (*domain.User, domain.QuotaStatus, error) {
	return nil, f.status, f.err
}

func (f quotaFake) Current(context.Context, domain.Caller) (domain.QuotaStatus, error) {
	return f.status, f.err
}

type profilesFake struct {
	user       *domain.User
	err        error
	lastUpdate domain.ProfileUpdate
}

func (f *profilesFake) Get(context.Context, domain.Caller) (*domain.User, error) {
	return f.user, f.err
}

func (f *profilesFake) Update(_ context.Context, _ domain.Caller, update domain.ProfileUpdate) (*domain.User, error) {
	f.lastUpdate = update
	return f.user, f.err
}

type reportsFake struct {
	reports   []domain.Report
	err       error
	deleted   []string
	exportErr error
	migrated  []domain.GuestAnalysis
}

func (f *reportsFake) List(context.Context, domain.Caller) ([]domain.Report, error) {
	return f.reports, f.err
}

func (f *reportsFake) Get(_ context.Context, _ domain.Caller, id string) (*domain.Report, error) {
	for i := range f.reports {
		if f.reports[i].ID == id {
			return &f.reports[i], nil
		}
	}
	return nil, domain.WrapError(domain.ErrReportNotFound, "get report", io.EOF)
}

func (f *reportsFake) Delete(_ context.Context, _ domain.Caller, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *reportsFake) Export(_ context.Context, _ domain.Caller, w io.Writer) error {
	if f.exportErr != nil {
		return f.exportErr
	}
	_, err := io.WriteString(w, "xlsx-bytes")
	return err
}

func (f *reportsFake) ExportFormat() (string, string) {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ".xlsx"
}

func (f *reportsFake) MigrateGuest(_ context.Context, _ domain.Caller, items []domain.GuestAnalysis) ([]domain.Report, error) {
	f.migrated = items
	out := make([]domain.Report, 0, len(items))
	for range items {
		out = append(out, domain.Report{ID: "migrated"})
	}
	return out, f.err
}

type billingFake struct {
	session    *domain.CheckoutSession
	err        error
	webhookErr error
	payload    []byte
	signature  string
}

func (f *billingFake) StartCheckout(context.Context, domain.Caller) (*domain.CheckoutSession, error) {
	return f.session, f.err
}

func (f *billingFake) HandleWebhook(_ context.Context, payload []byte, signature string) error {
	f.payload = payload
	f.signature = signature
	return f.webhookErr
}

type imagesFake struct {
	files map[string]string
}

func (f imagesFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	content, ok := f.files[key]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func testConfig() config.Config {
	return config.Config{
		MaxImageBytes: 1 << 20,
	}
}

var accountCaller = domain.Caller{Subject: "user_1", Email: "ann@example.com"}

func testVerifier() verifierFake {
	return verifierFake{callers: map[string]domain.Caller{"good-token": accountCaller}}
}
