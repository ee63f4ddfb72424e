package flows

import (
	"context"

	"github.com/nmezhenskyi/gastronomy-api/jwt"
	"github.com/nmezhenskyi/gastronomy-api/principal"
)

// LogoutSessionStore is the slice of session.Store used by logout.
type LogoutSessionStore interface {
	RemoveToken(ctx context.Context, token string) error
	RemoveAll(ctx context.Context, owner principal.Principal) (int64, error)
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	ValidateRefreshToken func(string) (*jwt.RefreshClaims, bool)
	SessionStore         LogoutSessionStore
}

// LogoutResult reports who logged out. Principal is zero when the token did
// not decode; the record is still removed in that case.
type LogoutResult struct {
	Principal principal.Principal
	Err       error
}

// RunLogout removes the record holding refreshToken. Absence is not an error
// and an empty token is a no-op.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	if refreshToken == "" {
		return LogoutResult{}
	}
	var p principal.Principal
	if claims, ok := deps.ValidateRefreshToken(refreshToken); ok {
		p = claims.Principal
	}
	return LogoutResult{
		Principal: p,
		Err:       deps.SessionStore.RemoveToken(ctx, refreshToken),
	}
}

// RunLogoutAll removes every record owned by p.
func RunLogoutAll(ctx context.Context, p principal.Principal, deps LogoutDeps) (int64, error) {
	return deps.SessionStore.RemoveAll(ctx, p)
}
