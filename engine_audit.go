package gastronomy

import (
	"context"
	"errors"
	"strconv"

	"github.com/nmezhenskyi/gastronomy-api/internal/audit"
	"github.com/nmezhenskyi/gastronomy-api/principal"
	"github.com/nmezhenskyi/gastronomy-api/session"
)

// Audit reason codes attached to failed events.
const (
	auditReasonInvalidCredentials = "invalid_credentials"
	auditReasonInvalidToken       = "invalid_token"
	auditReasonSessionNotFound    = "session_not_found"
	auditReasonAccountDeleted     = "account_deleted"
	auditReasonDuplicate          = "duplicate"
	auditReasonInvalidInput       = "invalid_input"
	auditReasonInternal           = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	p principal.Principal,
	success bool,
	reason string,
	metadata map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}
	event := audit.Event{
		Type:          eventType,
		ClientAddress: ClientAddressFromContext(ctx),
		Success:       success,
		Reason:        reason,
		Metadata:      metadata,
	}
	if p.ID != "" {
		event.PrincipalKind = p.Kind.String()
		event.PrincipalID = p.ID
		event.Role = string(p.Role())
	}
	e.audit.Emit(ctx, event)
}

func (e *Engine) onEvict(owner principal.Principal, evicted int64) {
	e.metrics.Add(MetricSessionEvicted, uint64(evicted))
	e.emitAudit(context.Background(), audit.EventSessionEvicted, owner, true, "", map[string]string{
		"evicted": itoa(evicted),
	})
}

func auditReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return auditReasonInvalidCredentials
	case errors.Is(err, session.ErrTokenNotFound):
		return auditReasonSessionNotFound
	case errors.Is(err, ErrAccountNotFound):
		return auditReasonAccountDeleted
	case errors.Is(err, ErrRefreshInvalid), errors.Is(err, session.ErrTokenInvalid):
		return auditReasonInvalidToken
	case errors.Is(err, ErrAccountExists):
		return auditReasonDuplicate
	case errors.Is(err, ErrInvalidInput):
		return auditReasonInvalidInput
	default:
		return auditReasonInternal
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
