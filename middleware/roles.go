package middleware

import (
	"net/http"

	gastronomy "github.com/nmezhenskyi/gastronomy-api"
	"github.com/nmezhenskyi/gastronomy-api/principal"
)

// RequireUser admits catalog users only.
func RequireUser(engine *gastronomy.Engine) func(http.Handler) http.Handler {
	return Authorize(engine, principal.RoleUser)
}

// RequireStaff admits creators and supervisors.
func RequireStaff(engine *gastronomy.Engine) func(http.Handler) http.Handler {
	return Authorize(engine, principal.RoleCreator, principal.RoleSupervisor)
}

// RequireSupervisor admits supervisors only.
func RequireSupervisor(engine *gastronomy.Engine) func(http.Handler) http.Handler {
	return Authorize(engine, principal.RoleSupervisor)
}
