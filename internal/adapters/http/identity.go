package httpadapter

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/eatwise/labelscan/internal/core/domain"
	"github.com/eatwise/labelscan/internal/core/ports"
)

const (
	guestHeader        = "X-Guest"
	guestSessionHeader = "X-Guest-Session"
	guestUsedHeader    = "X-Guest-Used"
)

var errBearerUnsupported = errors.New("token verification is not configured")

type callerContextKey struct{}

func callerFromContext(ctx context.Context) domain.Caller {
	caller, _ := ctx.Value(callerContextKey{}).(domain.Caller)
	return caller
}

// identityMiddleware resolves the caller once per request. A bearer token that
// fails verification is rejected outright instead of degrading to guest.
func identityMiddleware(next http.Handler, verifier ports.TokenVerifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := resolveCaller(r, verifier)
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerContextKey{}, caller)))
	})
}

func resolveCaller(r *http.Request, verifier ports.TokenVerifier) (domain.Caller, error) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		if verifier == nil {
			return domain.Caller{}, domain.WrapError(domain.ErrUnauthorized, "resolve caller", errBearerUnsupported)
		}
		return verifier.Verify(token)
	}

	if r.Header.Get(guestHeader) == "1" {
		session := strings.TrimSpace(r.Header.Get(guestSessionHeader))
		if session != "" {
			return domain.Caller{
				Guest: &domain.GuestClaim{
					Session: session,
					Used:    parseGuestUsed(r.Header.Get(guestUsedHeader)),
				},
			}, nil
		}
	}
	return domain.Caller{}, nil
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// parseGuestUsed treats the client counter as advisory. Numeric forms such as
// "10.0" or "1e1" are truncated; garbage and negative values read as zero and
// huge values saturate so the guest stays over the cap.
func parseGuestUsed(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0
	}
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	}
	return int(f)
}
