package httpadapter

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/eatwise/labelscan/internal/core/domain"
	"github.com/eatwise/labelscan/internal/core/usecase"
)

const (
	defaultMaxImageBytes = 8 << 20
	// Multipart framing and base64 expansion on top of the image limit.
	uploadOverheadBytes = 1 << 20
)

type analyzeJSONRequest struct {
	ImageBase64 string `json:"imageBase64"`
}

func (rt *Router) analyzeLabel(w http.ResponseWriter, r *http.Request) {
	if rt.services.Analyzer == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "analysis_unavailable", "label analysis is not configured")
		return
	}
	caller := callerFromContext(r.Context())
	if caller.IsAnonymous() {
		writeError(w, domain.WrapError(domain.ErrUnauthorized, "analyze label", fmt.Errorf("sign in or continue as guest")))
		return
	}

	image, err := rt.readLabelImage(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := rt.services.Analyzer.Analyze(r.Context(), caller, image)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) readLabelImage(w http.ResponseWriter, r *http.Request) (domain.LabelImage, error) {
	maxBytes := rt.maxImageBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}
	// Base64 grows the payload by a third.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes*4/3+uploadOverheadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return readMultipartImage(r, maxBytes)
	case "application/json", "":
		var req analyzeJSONRequest
		if err := decodeJSONBody(r, maxBytes*4/3+uploadOverheadBytes, &req); err != nil {
			return domain.LabelImage{}, bodyError("analyze label", err)
		}
		return usecase.DecodeLabelImage(req.ImageBase64, maxBytes)
	default:
		return domain.LabelImage{}, domain.WrapError(domain.ErrInvalidInput, "analyze label",
			fmt.Errorf("unsupported content type %q", mediaType))
	}
}

func readMultipartImage(r *http.Request, maxBytes int64) (domain.LabelImage, error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return domain.LabelImage{}, bodyError("analyze label", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return domain.LabelImage{}, domain.WrapError(domain.ErrInvalidInput, "analyze label",
			fmt.Errorf("multipart field 'file' is required"))
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return domain.LabelImage{}, bodyError("analyze label", err)
	}
	return usecase.NewLabelImage(data, header.Header.Get("Content-Type"), maxBytes)
}

func bodyError(operation string, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return domain.WrapError(domain.ErrInvalidInput, operation, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
	}
	if errors.Is(err, io.EOF) {
		return domain.WrapError(domain.ErrInvalidInput, operation, fmt.Errorf("request body is required"))
	}
	return domain.WrapError(domain.ErrInvalidInput, operation, fmt.Errorf("invalid request body: %s", strings.TrimSpace(err.Error())))
}

func (rt *Router) myQuota(w http.ResponseWriter, r *http.Request) {
	if rt.services.Quota == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "quota_unavailable", "quota is not configured")
		return
	}
	caller := callerFromContext(r.Context())
	if caller.IsAnonymous() {
		writeError(w, domain.WrapError(domain.ErrUnauthorized, "my quota", fmt.Errorf("sign in or continue as guest")))
		return
	}

	status, err := rt.services.Quota.Current(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
