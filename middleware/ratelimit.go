package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	gastronomy "github.com/nmezhenskyi/gastronomy-api"
	"github.com/nmezhenskyi/gastronomy-api/internal/rate"
)

// Limiter decides whether a client may proceed. *rate.Limiter implements it.
type Limiter interface {
	Allow(ctx context.Context, clientAddress string) error
}

// RateLimitOptions configures RateLimit.
type RateLimitOptions struct {
	// Engine, when set, receives rate-limit reports for metrics and audit.
	Engine *gastronomy.Engine
	// RetryAfterSeconds is sent as the Retry-After header. Zero omits it.
	RetryAfterSeconds int
}

// RateLimit rejects requests with 429 once the client address in the request
// context (see ClientAddress) exceeds its budget. Limiter errors other than
// rate.ErrRateLimited answer 503; a fail-open limiter never returns them.
func RateLimit(limiter Limiter, opts RateLimitOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := gastronomy.ClientAddressFromContext(r.Context())
			if addr == "" {
				addr = remoteHost(r.RemoteAddr)
			}

			err := limiter.Allow(r.Context(), addr)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, rate.ErrRateLimited):
				opts.Engine.ReportRateLimited(r.Context())
				if opts.RetryAfterSeconds > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(opts.RetryAfterSeconds))
				}
				WriteError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
			default:
				WriteError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
			}
		})
	}
}

// ClientAddress resolves the caller's address once and stores it in the
// request context for the limiter, audit events and access logs. Proxy
// headers are honored only when trustProxy is set.
func ClientAddress(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := clientAddress(r, trustProxy)
			next.ServeHTTP(w, r.WithContext(gastronomy.WithClientAddress(r.Context(), addr)))
		})
	}
}

func clientAddress(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}
	return remoteHost(r.RemoteAddr)
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
