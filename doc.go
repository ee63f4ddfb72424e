// Package gastronomy is the session and access-control core of the recipe
// catalog API: token issuance for users and members, refresh-token rotation
// over a bounded per-principal store, and stateless access-token validation.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// gastronomy is the public surface. It exposes [Engine], [Builder], [Config]
// and the account value types. Flow orchestration, rate limiting, audit
// dispatch and persistence live under internal/ and in the jwt, session and
// password packages.
//
// # What this package must NOT do
//
//   - Import HTTP routing or request parsing. Handlers live in internal/httpapi.
//   - Touch the refresh-token store while validating access tokens.
//   - Import any sub-package that re-imports gastronomy (no import cycles).
package gastronomy
