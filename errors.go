package gastronomy

import "errors"

var (
	// ErrUnauthorized is returned when a request carries no valid access token.
	ErrUnauthorized = errors.New("not authorized")
	// ErrForbidden is returned when the principal lacks a required role.
	ErrForbidden = errors.New("forbidden")
	// ErrTooManyRequests is returned when the client exceeded its rate budget.
	ErrTooManyRequests = errors.New("too many requests")
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	// The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRefreshInvalid is returned when a refresh token cannot be exchanged.
	ErrRefreshInvalid = errors.New("cannot refresh access")
	// ErrAccountExists is returned when the email is already registered.
	ErrAccountExists = errors.New("account with this email already exists")
	// ErrAccountNotFound is returned by account providers for a missing account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrNotFound is returned for missing catalog entities.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned for request data that fails validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEngineNotReady is returned by a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
