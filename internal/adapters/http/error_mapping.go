package httpadapter

import (
	"errors"
	"net/http"

	"github.com/eatwise/labelscan/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrInvalidSignature):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrGuestLimitReached), domain.IsKind(err, domain.ErrFreeLimitReached):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrReportNotFound), domain.IsKind(err, domain.ErrUserNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrAnalysisInProgress):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrBillingUnavailable):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrAnalysisFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func mapErrorToCode(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrInvalidSignature):
		return "invalid_signature"
	case domain.IsKind(err, domain.ErrUnauthorized):
		return "unauthorized"
	case domain.IsKind(err, domain.ErrGuestLimitReached):
		return "guest_limit_reached"
	case domain.IsKind(err, domain.ErrFreeLimitReached):
		return "free_limit_reached"
	case domain.IsKind(err, domain.ErrReportNotFound), domain.IsKind(err, domain.ErrUserNotFound):
		return "not_found"
	case domain.IsKind(err, domain.ErrAnalysisInProgress):
		return "analysis_in_progress"
	case domain.IsKind(err, domain.ErrBillingUnavailable):
		return "billing_unavailable"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporarily_unavailable"
	case domain.IsKind(err, domain.ErrAnalysisFailed):
		return "analysis_failed"
	default:
		return "internal_error"
	}
}

type errorResponse struct {
	Error string              `json:"error"`
	Code  string              `json:"code"`
	Quota *domain.QuotaStatus `json:"quota,omitempty"`
}

// writeError renders err with its mapped status. Internal errors are not
// echoed to the client.
func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	resp := errorResponse{
		Error: publicMessage(err, status),
		Code:  mapErrorToCode(err),
	}

	var denied *domain.QuotaDeniedError
	if errors.As(err, &denied) {
		quota := denied.Status
		resp.Quota = &quota
	}
	writeJSON(w, status, resp)
}

func writeErrorMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func publicMessage(err error, status int) string {
	var denied *domain.QuotaDeniedError
	if errors.As(err, &denied) {
		return denied.Error()
	}
	switch status {
	case http.StatusInternalServerError:
		return "internal server error"
	case http.StatusBadGateway:
		return "Analysis failed. Please try again with a clearer photo of the label."
	case http.StatusServiceUnavailable:
		return "service temporarily unavailable"
	default:
		return err.Error()
	}
}
