// Package middleware holds the net/http request gates of the API.
//
// # Gates
//
//   - [Authenticate] validates the bearer access token and stores the
//     principal in the request context.
//   - [Authorize] adds a role check on top of Authenticate.
//   - [RateLimit] counts requests per client address.
//   - [ClientAddress], [AccessLog], [Recover] and [CORS] are the ambient chain.
//
// Every rejection is a JSON body {"error": "..."} with 401, 403, 429 or 500.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Read or write the refresh-token store.
//   - Decide roles outside permission.RoleSet.
package middleware
