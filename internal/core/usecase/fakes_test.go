package usecase

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/eatwise/labelscan/internal/core/domain"
)

type userRepoFake struct {
	mu         sync.Mutex
	bySubject  map[string]*domain.User
	getErr     error
	ensureErr  error
	incErr     error
	upgradeErr error
	increments int
	updated    *domain.User
}

func newUserRepoFake(users ...*domain.User) *userRepoFake {
	f := &userRepoFake{bySubject: make(map[string]*domain.User)}
	for _, u := range users {
		f.bySubject[u.Subject] = u
	}
	return f
}

func (f *userRepoFake) GetBySubject(_ context.Context, subject string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.bySubject[subject]
	if !ok {
		return nil, domain.WrapError(domain.ErrUserNotFound, "get user", errors.New(subject))
	}
	copyUser := *u
	return &copyUser, nil
}

func (f *userRepoFake) EnsureUser(_ context.Context, subject, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ensureErr != nil {
		return nil, f.ensureErr
	}
	u, ok := f.bySubject[subject]
	if !ok {
		u = &domain.User{ID: "id-" + subject, Subject: subject, Email: email, Tier: domain.TierFree, Allergies: []string{}}
		f.bySubject[subject] = u
	}
	copyUser := *u
	return &copyUser, nil
}

func (f *userRepoFake) IncrementAnalysesUsed(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incErr != nil {
		return f.incErr
	}
	for _, u := range f.bySubject {
		if u.ID == userID && u.Tier == domain.TierFree {
			u.AnalysesUsed++
		}
	}
	f.increments++
	return nil
}

func (f *userRepoFake) UpdateProfile(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copyUser := *user
	f.updated = &copyUser
	f.bySubject[user.Subject] = &copyUser
	return nil
}

func (f *userRepoFake) UpgradeToPro(_ context.Context, subject, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upgradeErr != nil {
		return false, f.upgradeErr
	}
	u, ok := f.bySubject[subject]
	if !ok {
		f.bySubject[subject] = &domain.User{ID: "id-" + subject, Subject: subject, Email: email, Tier: domain.TierPro}
		return true, nil
	}
	if u.Tier == domain.TierPro {
		return false, nil
	}
	u.Tier = domain.TierPro
	return true, nil
}

type reportRepoFake struct {
	mu        sync.Mutex
	reports   map[string]domain.Report
	createErr error
}

func newReportRepoFake() *reportRepoFake {
	return &reportRepoFake{reports: make(map[string]domain.Report)}
}

func (f *reportRepoFake) Create(_ context.Context, report *domain.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.reports[report.ID] = *report
	return nil
}

func (f *reportRepoFake) ListByUser(_ context.Context, userID string) ([]domain.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Report, 0)
	for _, r := range f.reports {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *reportRepoFake) GetByID(_ context.Context, userID, reportID string) (*domain.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[reportID]
	if !ok || r.UserID != userID {
		return nil, domain.WrapError(domain.ErrReportNotFound, "get report", errors.New(reportID))
	}
	return &r, nil
}

func (f *reportRepoFake) Delete(_ context.Context, userID, reportID string) (*domain.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[reportID]
	if !ok || r.UserID != userID {
		return nil, domain.WrapError(domain.ErrReportNotFound, "delete report", errors.New(reportID))
	}
	delete(f.reports, reportID)
	return &r, nil
}

type labelReaderFake struct {
	text      string
	err       error
	calls     int
	allergies []string
}

func (f *labelReaderFake) ReadLabel(_ context.Context, _ domain.LabelImage, allergies []string) (string, error) {
	f.calls++
	f.allergies = allergies
	return f.text, f.err
}

type imageStorageFake struct {
	saved     map[string][]byte
	deleted   []string
	saveErr   error
	deleteErr error
}

func newImageStorageFake() *imageStorageFake {
	return &imageStorageFake{saved: make(map[string][]byte)}
}

func (f *imageStorageFake) Save(_ context.Context, key, _ string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.saved[key] = raw
	return nil
}

func (f *imageStorageFake) Delete(_ context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, key)
	delete(f.saved, key)
	return nil
}

func (f *imageStorageFake) URL(key string) string {
	return "https://img.test/" + key
}

type lockerFake struct {
	held       map[string]string
	acquireErr error
	released   []string
}

func (f *lockerFake) Acquire(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	if f.acquireErr != nil {
		return "", false, f.acquireErr
	}
	if f.held == nil {
		f.held = make(map[string]string)
	}
	if _, ok := f.held[key]; ok {
		return "", false, nil
	}
	f.held[key] = "token-" + key
	return f.held[key], true, nil
}

func (f *lockerFake) Release(_ context.Context, key, token string) error {
	if f.held[key] == token {
		delete(f.held, key)
	}
	f.released = append(f.released, key)
	return nil
}

type publisherFake struct {
	events []domain.ReportDeleted
	err    error
}

func (f *publisherFake) PublishReportDeleted(_ context.Context, event domain.ReportDeleted) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type observerFake struct {
	analyses   []string
	denials    []string
	strategies []string
	modelCalls []string
}

func (f *observerFake) ObserveAnalysis(tier domain.Tier, outcome string) {
	f.analyses = append(f.analyses, string(tier)+":"+outcome)
}
func (f *observerFake) ObserveQuotaDenial(reason string) { f.denials = append(f.denials, reason) }
func (f *observerFake) ObserveNormalizerStrategy(strategy string) {
	f.strategies = append(f.strategies, strategy)
}
func (f *observerFake) ObserveModelCall(outcome string, _ time.Duration) {
	f.modelCalls = append(f.modelCalls, outcome)
}
