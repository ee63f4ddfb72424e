package gastronomy

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nmezhenskyi/gastronomy-api/internal/audit"
	"github.com/nmezhenskyi/gastronomy-api/internal/flows"
	"github.com/nmezhenskyi/gastronomy-api/jwt"
	"github.com/nmezhenskyi/gastronomy-api/password"
	"github.com/nmezhenskyi/gastronomy-api/principal"
	"github.com/nmezhenskyi/gastronomy-api/session"
)

// Engine owns token issuance, refresh-token persistence and access-token
// validation for users and members.
//
// Engine instances are configured once by Builder and are safe for concurrent
// use afterwards.
type Engine struct {
	config   Config
	codec    *jwt.Codec
	sessions *session.Store
	hasher   *password.Hasher
	accounts AccountProvider
	metrics  *Metrics
	audit    *audit.Dispatcher
	logger   *zap.Logger
	flows    flows.Deps
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.config
}

// Metrics exposes the engine counters to exporters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// MetricsSnapshot copies the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Sessions exposes the refresh-token store.
func (e *Engine) Sessions() *session.Store {
	return e.sessions
}

// ValidateAccessToken decodes an access token without touching storage. The
// bool is false for malformed, tampered, expired or foreign tokens.
func (e *Engine) ValidateAccessToken(token string) (principal.Principal, bool) {
	if e == nil || e.codec == nil {
		return principal.Principal{}, false
	}
	if !e.metrics.LatencyEnabled() {
		return e.codec.ValidateAccessToken(token)
	}
	start := time.Now()
	p, ok := e.codec.ValidateAccessToken(token)
	e.metrics.Observe(MetricValidateLatency, time.Since(start))
	return p, ok
}

// CleanupSessions purges expired refresh-token records. Failures are logged by
// the store and reported as zero removals.
func (e *Engine) CleanupSessions(ctx context.Context) int64 {
	if e == nil || e.sessions == nil {
		return 0
	}
	n := e.sessions.Cleanup(ctx)
	e.metrics.Add(MetricSessionsPurged, uint64(n))
	e.emitAudit(ctx, audit.EventSessionsPurged, principal.Principal{}, true, "", map[string]string{
		"removed": itoa(n),
	})
	return n
}

// SessionCount returns how many refresh-token records p owns.
func (e *Engine) SessionCount(ctx context.Context, p principal.Principal) (int64, error) {
	if e == nil || e.sessions == nil {
		return 0, ErrEngineNotReady
	}
	return e.sessions.Count(ctx, p)
}

// ReportRateLimited records a rejected request from the client in ctx.
func (e *Engine) ReportRateLimited(ctx context.Context) {
	if e == nil {
		return
	}
	e.metrics.Inc(MetricRateLimitHit)
	e.emitAudit(ctx, audit.EventRateLimited, principal.Principal{}, false, "rate limit exceeded", nil)
}

// ReportUnauthorized records a request rejected for a missing or invalid
// access token.
func (e *Engine) ReportUnauthorized(ctx context.Context, reason string) {
	if e == nil {
		return
	}
	e.metrics.Inc(MetricAuthenticationDenied)
	e.emitAudit(ctx, audit.EventAccessDenied, principal.Principal{}, false, reason, nil)
}

// ReportAccessDenied records an authenticated request rejected by role.
func (e *Engine) ReportAccessDenied(ctx context.Context, p principal.Principal, reason string) {
	if e == nil {
		return
	}
	e.metrics.Inc(MetricAuthorizationDenied)
	e.emitAudit(ctx, audit.EventAccessDenied, p, false, reason, nil)
}
