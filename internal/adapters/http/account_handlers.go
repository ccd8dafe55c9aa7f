package httpadapter

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/eatwise/labelscan/internal/core/domain"
)

const (
	maxProfileBodyBytes = 64 << 10
	maxMigrateBodyBytes = 1 << 20
)

type profileUpdateRequest struct {
	Name        *string  `json:"name"`
	FitnessGoal *string  `json:"fitnessGoal"`
	Allergies   []string `json:"allergies"`
}

type migrateRequest struct {
	Items []domain.GuestAnalysis `json:"items"`
}

type migrateResponse struct {
	Success  bool            `json:"success"`
	Imported int             `json:"imported"`
	Reports  []domain.Report `json:"reports"`
}

func (rt *Router) getProfile(w http.ResponseWriter, r *http.Request) {
	if rt.services.Profiles == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "profile_unavailable", "profiles are not configured")
		return
	}
	user, err := rt.services.Profiles.Get(r.Context(), callerFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (rt *Router) updateProfile(w http.ResponseWriter, r *http.Request) {
	if rt.services.Profiles == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "profile_unavailable", "profiles are not configured")
		return
	}
	var req profileUpdateRequest
	if err := decodeJSONBody(r, maxProfileBodyBytes, &req); err != nil {
		writeError(w, bodyError("update profile", err))
		return
	}

	user, err := rt.services.Profiles.Update(r.Context(), callerFromContext(r.Context()), domain.ProfileUpdate{
		Name:        req.Name,
		FitnessGoal: req.FitnessGoal,
		Allergies:   req.Allergies,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (rt *Router) listReports(w http.ResponseWriter, r *http.Request) {
	if rt.services.Reports == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "reports_unavailable", "reports are not configured")
		return
	}
	reports, err := rt.services.Reports.List(r.Context(), callerFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (rt *Router) getReport(w http.ResponseWriter, r *http.Request) {
	if rt.services.Reports == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "reports_unavailable", "reports are not configured")
		return
	}
	report, err := rt.services.Reports.Get(r.Context(), callerFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) deleteReport(w http.ResponseWriter, r *http.Request) {
	if rt.services.Reports == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "reports_unavailable", "reports are not configured")
		return
	}
	if err := rt.services.Reports.Delete(r.Context(), callerFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// exportReports renders into memory first so a failed export still gets a
// JSON error instead of a truncated file.
func (rt *Router) exportReports(w http.ResponseWriter, r *http.Request) {
	if rt.services.Reports == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "reports_unavailable", "reports are not configured")
		return
	}
	var buf bytes.Buffer
	if err := rt.services.Reports.Export(r.Context(), callerFromContext(r.Context()), &buf); err != nil {
		writeError(w, err)
		return
	}

	contentType, extension := rt.services.Reports.ExportFormat()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	filename := fmt.Sprintf("labelscan-reports-%s%s", time.Now().UTC().Format("20060102"), extension)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (rt *Router) migrateGuestReports(w http.ResponseWriter, r *http.Request) {
	if rt.services.Reports == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "reports_unavailable", "reports are not configured")
		return
	}
	var req migrateRequest
	if err := decodeJSONBody(r, maxMigrateBodyBytes, &req); err != nil {
		writeError(w, bodyError("migrate guest analyses", err))
		return
	}

	reports, err := rt.services.Reports.MigrateGuest(r.Context(), callerFromContext(r.Context()), req.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, migrateResponse{
		Success:  true,
		Imported: len(reports),
		Reports:  reports,
	})
}

func (rt *Router) serveImage(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	file, err := rt.services.Images.Open(r.Context(), key)
	if err != nil {
		writeErrorMessage(w, http.StatusNotFound, "not_found", "image not found")
		return
	}
	defer file.Close()

	w.Header().Set("Cache-Control", "private, max-age=86400")
	if contentType := imageContentType(key); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, file)
}

func imageContentType(key string) string {
	if ext := path.Ext(key); ext != "" {
		return mime.TypeByExtension(ext)
	}
	return ""
}
