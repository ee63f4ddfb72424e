// Package httpapi serves the REST API on net/http.
//
// Every route runs behind panic recovery, client address resolution, access
// logging, optional CORS and the rate limiter. Protected routes add
// middleware.Authorize with the roles they admit. Handlers return errors and
// a single mapper turns them into JSON error bodies:
//
//	400 invalid input, duplicate account, missing refresh cookie
//	401 missing or invalid access token, rejected refresh token
//	403 missing role
//	404 missing entity, empty list, wrong login credentials
//	429 rate limited
//	500 anything else, logged with the request path
//
// Refresh tokens travel in httpOnly cookies named userRefreshToken and
// memberRefreshToken that live as long as the token.
package httpapi
