package httpadapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/netip"
	"time"

	"github.com/eatwise/labelscan/internal/config"
	"github.com/eatwise/labelscan/internal/core/ports"
	"github.com/eatwise/labelscan/internal/observability/metrics"
)

// ImageOpener serves stored label images. Only the local storage backend
// provides one; S3 images are fetched from the bucket URL directly.
type ImageOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Services are the inbound ports the router dispatches to. Nil members
// disable the routes that need them.
type Services struct {
	Quota    ports.QuotaService
	Analyzer ports.LabelAnalyzer
	Profiles ports.ProfileService
	Reports  ports.ReportService
	Billing  ports.BillingService
	Verifier ports.TokenVerifier
	Images   ImageOpener
	Metrics  *metrics.HTTPServerMetrics

	// ModelState reports the model circuit breaker state for /healthz.
	ModelState func() string
}

type Router struct {
	services Services

	maxImageBytes      int64
	rateLimitRPS       float64
	rateLimitBurst     int
	maxInFlight        int
	backpressureWait   time.Duration
	corsAllowedOrigins []string
	trustedProxies     []netip.Prefix
}

func NewRouter(cfg config.Config, services Services) *Router {
	wait := time.Duration(cfg.APIBackpressureWaitMS) * time.Millisecond
	if wait <= 0 {
		wait = 250 * time.Millisecond
	}
	return &Router{
		services:           services,
		maxImageBytes:      cfg.MaxImageBytes,
		rateLimitRPS:       cfg.APIRateLimitRPS,
		rateLimitBurst:     cfg.APIRateLimitBurst,
		maxInFlight:        cfg.APIMaxInFlight,
		backpressureWait:   wait,
		corsAllowedOrigins: cfg.CORSAllowedOrigins,
		trustedProxies:     parseTrustedProxies(cfg.APITrustedProxies),
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.json", rt.openAPIDocument)
	if rt.services.Metrics != nil {
		mux.Handle("GET /metrics", rt.services.Metrics.Handler())
	}

	mux.HandleFunc("POST /v1/analyze", rt.analyzeLabel)
	mux.HandleFunc("GET /v1/quota", rt.myQuota)

	mux.HandleFunc("GET /v1/profile", rt.getProfile)
	mux.HandleFunc("PUT /v1/profile", rt.updateProfile)

	mux.HandleFunc("GET /v1/reports", rt.listReports)
	mux.HandleFunc("GET /v1/reports/export", rt.exportReports)
	mux.HandleFunc("POST /v1/reports/migrate", rt.migrateGuestReports)
	mux.HandleFunc("GET /v1/reports/{id}", rt.getReport)
	mux.HandleFunc("DELETE /v1/reports/{id}", rt.deleteReport)

	mux.HandleFunc("POST /v1/billing/checkout", rt.startCheckout)
	mux.HandleFunc("POST /v1/webhooks/stripe", rt.stripeWebhook)

	if rt.services.Images != nil {
		mux.HandleFunc("GET /v1/images/{key...}", rt.serveImage)
	}

	var handler http.Handler = mux
	handler = identityMiddleware(handler, rt.services.Verifier)
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.backpressureWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst, rt.trustedProxies)
	handler = corsMiddleware(handler, rt.corsAllowedOrigins)
	if rt.services.Metrics != nil {
		handler = rt.services.Metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]string{"status": "ok"}
	if rt.services.ModelState != nil {
		state := rt.services.ModelState()
		resp["model"] = state
		if state == "open" {
			resp["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSONBody(r *http.Request, limit int64, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, limit))
	return decoder.Decode(dst)
}
