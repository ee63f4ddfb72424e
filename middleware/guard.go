package middleware

import (
	"context"
	"net/http"
	"strings"

	gastronomy "github.com/nmezhenskyi/gastronomy-api"
	"github.com/nmezhenskyi/gastronomy-api/permission"
	"github.com/nmezhenskyi/gastronomy-api/principal"
)

type principalContextKey struct{}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p principal.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal attached by Authenticate.
func PrincipalFromContext(ctx context.Context) (principal.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(principal.Principal)
	return p, ok
}

// Authenticate rejects requests without a valid bearer access token with 401
// and attaches the decoded principal to the request context otherwise. The
// refresh-token store is never consulted.
func Authenticate(engine *gastronomy.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, ok := authenticate(engine, w, r); ok {
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
			}
		})
	}
}

// Authorize runs Authenticate and then requires the principal to satisfy at
// least one of roles (403 otherwise). With no roles any authenticated
// principal passes. An unknown role panics at construction.
func Authorize(engine *gastronomy.Engine, roles ...principal.Role) func(http.Handler) http.Handler {
	required := permission.NewRoleSet(roles...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := authenticate(engine, w, r)
			if !ok {
				return
			}
			if !required.Allows(p) {
				engine.ReportAccessDenied(r.Context(), p, "missing role")
				WriteError(w, http.StatusForbidden, "You do not have permission to access this resource")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func authenticate(engine *gastronomy.Engine, w http.ResponseWriter, r *http.Request) (principal.Principal, bool) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		engine.ReportUnauthorized(r.Context(), "missing bearer token")
		WriteError(w, http.StatusUnauthorized, gastronomy.ErrUnauthorized.Error())
		return principal.Principal{}, false
	}
	p, ok := engine.ValidateAccessToken(token)
	if !ok {
		engine.ReportUnauthorized(r.Context(), "invalid access token")
		WriteError(w, http.StatusUnauthorized, gastronomy.ErrUnauthorized.Error())
		return principal.Principal{}, false
	}
	return p, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
