package gastronomy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nmezhenskyi/gastronomy-api/internal/audit"
	"github.com/nmezhenskyi/gastronomy-api/internal/flows"
	"github.com/nmezhenskyi/gastronomy-api/jwt"
	"github.com/nmezhenskyi/gastronomy-api/principal"
)

// Refresh rotates a stored refresh token of the given principal kind: the
// presented record is removed and a new pair is issued and stored. The new
// claims are built from the current account row.
//
// Every client-side failure (bad signature, expiry, unknown or reused token,
// deleted account, wrong kind) is reported as ErrRefreshInvalid.
func (e *Engine) Refresh(ctx context.Context, kind principal.Kind, refreshToken string) (jwt.TokenPair, error) {
	if e == nil || e.codec == nil {
		return jwt.TokenPair{}, ErrEngineNotReady
	}
	res := flows.RunRefresh(ctx, kind, refreshToken, e.flows.Refresh)

	var err error
	reason := auditReasonInvalidToken
	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metrics.Inc(MetricRefreshSuccess)
		e.metrics.Inc(MetricSessionCreated)
		e.emitAudit(ctx, audit.EventRefreshRotated, res.Principal, true, "", nil)
		return res.Tokens, nil
	case flows.RefreshFailureDecode, flows.RefreshFailureKindMismatch, flows.RefreshFailureOwnerMismatch:
		err = ErrRefreshInvalid
	case flows.RefreshFailureSessionNotFound, flows.RefreshFailureReuse:
		err = ErrRefreshInvalid
		reason = auditReasonSessionNotFound
	case flows.RefreshFailureAccountGone:
		err = ErrRefreshInvalid
		reason = auditReasonAccountDeleted
		if res.CleanupErr != nil {
			e.logger.Warn("discarding refresh token of deleted account failed",
				zap.Stringer("principal", res.Principal), zap.Error(res.CleanupErr))
		}
	default:
		err = fmt.Errorf("refresh: %w", res.Err)
		reason = auditReasonInternal
		e.logger.Error("refresh failed", zap.Stringer("kind", kind), zap.Error(res.Err))
	}

	e.metrics.Inc(MetricRefreshFailure)
	e.emitAudit(ctx, audit.EventRefreshRejected, res.Principal, false, reason, nil)
	return jwt.TokenPair{}, err
}

// Logout removes the record holding refreshToken. It succeeds when the token
// is empty, unknown or already removed.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	if refreshToken == "" {
		return nil
	}
	res := flows.RunLogout(ctx, refreshToken, e.flows.Logout)
	if res.Err != nil {
		return fmt.Errorf("logout: %w", res.Err)
	}
	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, audit.EventLogout, res.Principal, true, "", nil)
	return nil
}

// RevokePrincipalSessions removes every refresh-token record of p. Account
// deletion calls it before the row is removed.
func (e *Engine) RevokePrincipalSessions(ctx context.Context, p principal.Principal) (int64, error) {
	if e == nil || e.sessions == nil {
		return 0, ErrEngineNotReady
	}
	n, err := flows.RunLogoutAll(ctx, p, e.flows.Logout)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.metrics.Add(MetricLogout, uint64(n))
		e.emitAudit(ctx, audit.EventLogout, p, true, "", map[string]string{"revoked": itoa(n)})
	}
	return n, nil
}
