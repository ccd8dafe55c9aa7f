package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eatwise/labelscan/internal/core/analysis"
	"github.com/eatwise/labelscan/internal/core/domain"
	"github.com/eatwise/labelscan/internal/core/ports"
)

const (
	defaultReportTitle = "Food Label Analysis"

	outcomeSuccess = "success"
	outcomeDenied  = "denied"
	outcomeFailed  = "failed"
	outcomeBusy    = "busy"

	// tierAccount labels account outcomes whose tier could not be read.
	tierAccount domain.Tier = "account"
)

type AnalyzeLabelUseCase struct {
	quota    *QuotaUseCase
	users    ports.UserRepository
	reports  ports.ReportRepository
	reader   ports.LabelReader
	storage  ports.ImageStorage
	locker   ports.AccountLocker
	observer ports.AnalysisObserver
	limits   domain.AnalyzeLimits
	now      func() time.Time
}

func NewAnalyzeLabelUseCase(
	quota *QuotaUseCase,
	users ports.UserRepository,
	reports ports.ReportRepository,
	reader ports.LabelReader,
	storage ports.ImageStorage,
	locker ports.AccountLocker,
	observer ports.AnalysisObserver,
	limits domain.AnalyzeLimits,
) *AnalyzeLabelUseCase {
	if limits.ModelTimeout <= 0 {
		limits.ModelTimeout = 60 * time.Second
	}
	if limits.LockTTL <= 0 {
		limits.LockTTL = limits.ModelTimeout + 15*time.Second
	}
	if limits.MaxImageBytes <= 0 {
		limits.MaxImageBytes = defaultMaxImageBytes
	}
	if observer == nil {
		observer = noopObserver{}
	}

	return &AnalyzeLabelUseCase{
		quota:    quota,
		users:    users,
		reports:  reports,
		reader:   reader,
		storage:  storage,
		locker:   locker,
		observer: observer,
		limits:   limits,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (uc *AnalyzeLabelUseCase) MaxImageBytes() int64 {
	return uc.limits.MaxImageBytes
}

// Analyze runs one label scan for the caller. Quota is checked before the
// model is called; the free-tier counter moves only after the model replied
// and a record was built, whether or not the report could be stored.
func (uc *AnalyzeLabelUseCase) Analyze(ctx context.Context, caller domain.Caller, image domain.LabelImage) (*domain.AnalysisResult, error) {
	if len(image.Data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "analyze label", fmt.Errorf("image is required"))
	}

	if caller.IsAccount() && uc.locker != nil {
		release, err := uc.lockAccount(ctx, caller.Subject)
		if err != nil {
			uc.observer.ObserveAnalysis(uc.accountTier(ctx, caller.Subject), outcomeBusy)
			return nil, err
		}
		defer release()
	}

	user, status, err := uc.quota.Authorize(ctx, caller)
	if err != nil {
		var denied *domain.QuotaDeniedError
		if errors.As(err, &denied) {
			uc.observer.ObserveQuotaDenial(string(denied.Status.Role))
			uc.observer.ObserveAnalysis(denied.Status.Role, outcomeDenied)
		}
		return nil, err
	}

	allergies, goal := profileOverlay(user)

	text, err := uc.readLabel(ctx, image, allergies)
	if err != nil {
		uc.observer.ObserveAnalysis(status.Role, outcomeFailed)
		return nil, err
	}

	record, strategy := analysis.Normalize(text, allergies)
	uc.observer.ObserveNormalizerStrategy(string(strategy))
	compat := analysis.EvaluateCompatibility(record, goal)

	result := &domain.AnalysisResult{
		AnalysisRecord:     record,
		Explanation:        compat.Explanation,
		CompatibilityScore: compat.Score,
	}

	if !caller.IsAccount() {
		// Guest records live on the client until they are migrated.
		after := uc.quota.Policy().Evaluate(domain.TierGuest, caller.Guest.Used+1)
		result.Quota = &after
		uc.observer.ObserveAnalysis(domain.TierGuest, outcomeSuccess)
		return result, nil
	}

	uc.persist(ctx, caller, user, image, result)
	uc.observer.ObserveAnalysis(result.Quota.Role, outcomeSuccess)
	return result, nil
}

func (uc *AnalyzeLabelUseCase) readLabel(ctx context.Context, image domain.LabelImage, allergies []string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, uc.limits.ModelTimeout)
	defer cancel()

	start := time.Now()
	text, err := uc.reader.ReadLabel(callCtx, image, allergies)
	if err != nil {
		uc.observer.ObserveModelCall("error", time.Since(start))
		return "", domain.WrapError(domain.ErrAnalysisFailed, "read label", err)
	}
	if strings.TrimSpace(text) == "" {
		uc.observer.ObserveModelCall("empty", time.Since(start))
		return "", domain.WrapError(domain.ErrAnalysisFailed, "read label", errors.New("model returned no usable text"))
	}
	uc.observer.ObserveModelCall(outcomeSuccess, time.Since(start))
	return text, nil
}

// persist charges quota, stores the image and saves the report. Every step
// is best-effort: the caller keeps the analysis even when storage fails.
func (uc *AnalyzeLabelUseCase) persist(
	ctx context.Context,
	caller domain.Caller,
	user *domain.User,
	image domain.LabelImage,
	result *domain.AnalysisResult,
) {
	if user == nil {
		created, err := uc.users.EnsureUser(ctx, caller.Subject, caller.Email)
		if err != nil {
			slog.Error("analysis_user_ensure_failed", "subject", caller.Subject, "error", err)
		} else {
			user = created
		}
	}
	if user == nil {
		status := uc.quota.Policy().Evaluate(domain.TierFree, 1)
		result.Quota = &status
		return
	}

	used := user.AnalysesUsed
	if user.Tier != domain.TierPro {
		if err := uc.users.IncrementAnalysesUsed(ctx, user.ID); err != nil {
			slog.Error("analysis_quota_increment_failed", "user_id", user.ID, "error", err)
		} else {
			used++
		}
	}
	status := uc.quota.Policy().Evaluate(user.Tier, used)
	result.Quota = &status

	reportID := uuid.NewString()
	imageKey := uc.storeImage(ctx, user.ID, reportID, image)
	if imageKey != "" {
		result.ImageURL = uc.storage.URL(imageKey)
	}

	report := &domain.Report{
		ID:          reportID,
		UserID:      user.ID,
		Title:       reportTitle(result.Name),
		ImageKey:    imageKey,
		ImageURL:    result.ImageURL,
		Explanation: result.Explanation,
		Record:      result.AnalysisRecord,
		CreatedAt:   uc.now(),
	}
	if err := uc.reports.Create(ctx, report); err != nil {
		slog.Error("analysis_report_save_failed", "user_id", user.ID, "report_id", reportID, "error", err)
		if imageKey != "" {
			if delErr := uc.storage.Delete(ctx, imageKey); delErr != nil {
				slog.Warn("analysis_orphan_image_delete_failed", "key", imageKey, "error", delErr)
			}
			result.ImageURL = ""
		}
		return
	}

	result.Saved = true
	result.ReportID = reportID
}

func (uc *AnalyzeLabelUseCase) storeImage(ctx context.Context, userID, reportID string, image domain.LabelImage) string {
	if uc.storage == nil {
		return ""
	}
	key := fmt.Sprintf("%s/%s%s", userID, reportID, imageExtension(image.MimeType))
	if err := uc.storage.Save(ctx, key, image.MimeType, bytes.NewReader(image.Data)); err != nil {
		slog.Warn("analysis_image_store_failed", "user_id", userID, "error", err)
		return ""
	}
	return key
}

func (uc *AnalyzeLabelUseCase) lockAccount(ctx context.Context, subject string) (func(), error) {
	key := "analyze:" + subject
	token, ok, err := uc.locker.Acquire(ctx, key, uc.limits.LockTTL)
	if err != nil {
		// Without the lock backend the cap degrades to a soft limit.
		slog.Warn("analysis_lock_unavailable", "subject", subject, "error", err)
		return func() {}, nil
	}
	if !ok {
		return nil, domain.WrapError(domain.ErrAnalysisInProgress, "analyze label", fmt.Errorf("another analysis is running for this account"))
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := uc.locker.Release(releaseCtx, key, token); err != nil {
			slog.Warn("analysis_lock_release_failed", "subject", subject, "error", err)
		}
	}, nil
}

func (uc *AnalyzeLabelUseCase) accountTier(ctx context.Context, subject string) domain.Tier {
	user, err := uc.users.GetBySubject(ctx, subject)
	switch {
	case err == nil:
		return user.Tier
	case domain.IsKind(err, domain.ErrUserNotFound):
		return domain.TierFree
	default:
		return tierAccount
	}
}

func profileOverlay(user *domain.User) ([]string, domain.FitnessGoal) {
	if user == nil {
		return nil, domain.GoalNone
	}
	return user.Allergies, user.FitnessGoal
}

func reportTitle(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || name == domain.DefaultLabelName {
		return defaultReportTitle
	}
	return name
}

type noopObserver struct{}

func (noopObserver) ObserveAnalysis(domain.Tier, string) {}
func (noopObserver) ObserveQuotaDenial(string) {}
func (noopObserver) ObserveNormalizerStrategy(string) {}
func (noopObserver) ObserveModelCall(string, time.Duration) {}
