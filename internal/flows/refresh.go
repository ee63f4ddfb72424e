package flows

import (
	"context"
	"errors"

	"github.com/nmezhenskyi/gastronomy-api/jwt"
	"github.com/nmezhenskyi/gastronomy-api/principal"
	"github.com/nmezhenskyi/gastronomy-api/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureKindMismatch
	RefreshFailureSessionNotFound
	RefreshFailureOwnerMismatch
	RefreshFailureLookup
	RefreshFailureAccountGone
	RefreshFailureReuse
	RefreshFailureStore
	RefreshFailureIssue
	RefreshFailureSave
)

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure   RefreshFailureKind
	Err       error
	Principal principal.Principal
	Tokens    jwt.TokenPair
	// CleanupErr is set when the record of a deleted account could not be
	// discarded. The refresh still fails with RefreshFailureAccountGone.
	CleanupErr error
}

// RefreshSessionStore is the slice of session.Store used by rotation.
type RefreshSessionStore interface {
	SessionSaver
	FindToken(ctx context.Context, token string) (*session.RefreshToken, error)
	ConsumeToken(ctx context.Context, token string) error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	ValidateRefreshToken func(string) (*jwt.RefreshClaims, bool)
	// ReloadPrincipal rebuilds the principal from its current account row so
	// role changes apply to the new pair.
	ReloadPrincipal func(ctx context.Context, p principal.Principal) (principal.Principal, error)
	IssueTokenPair  func(principal.Principal) (jwt.TokenPair, error)
	SessionStore    RefreshSessionStore
	TokenNotFound   error
	AccountNotFound error
}

// RunRefresh exchanges a stored refresh token of the expected principal kind
// for a new pair. The presented token's record is consumed exactly once; a
// second presentation fails with RefreshFailureSessionNotFound or
// RefreshFailureReuse.
func RunRefresh(ctx context.Context, kind principal.Kind, refreshToken string, deps RefreshDeps) RefreshResult {
	claims, ok := deps.ValidateRefreshToken(refreshToken)
	if !ok {
		return RefreshResult{Failure: RefreshFailureDecode}
	}
	if claims.Principal.Kind != kind {
		return RefreshResult{Failure: RefreshFailureKindMismatch, Principal: claims.Principal}
	}

	rec, err := deps.SessionStore.FindToken(ctx, refreshToken)
	if err != nil {
		if deps.TokenNotFound != nil && errors.Is(err, deps.TokenNotFound) {
			return RefreshResult{Failure: RefreshFailureSessionNotFound, Err: err, Principal: claims.Principal}
		}
		return RefreshResult{Failure: RefreshFailureStore, Err: err, Principal: claims.Principal}
	}
	if kind, id := rec.Owner(); kind != claims.Principal.Kind || id != claims.Principal.ID {
		return RefreshResult{Failure: RefreshFailureOwnerMismatch, Principal: claims.Principal}
	}

	current, err := deps.ReloadPrincipal(ctx, claims.Principal)
	if err != nil {
		if deps.AccountNotFound != nil && errors.Is(err, deps.AccountNotFound) {
			res := RefreshResult{Failure: RefreshFailureAccountGone, Err: err, Principal: claims.Principal}
			if cerr := deps.SessionStore.ConsumeToken(ctx, refreshToken); cerr != nil &&
				(deps.TokenNotFound == nil || !errors.Is(cerr, deps.TokenNotFound)) {
				res.CleanupErr = cerr
			}
			return res
		}
		return RefreshResult{Failure: RefreshFailureLookup, Err: err, Principal: claims.Principal}
	}

	if err := deps.SessionStore.ConsumeToken(ctx, refreshToken); err != nil {
		if deps.TokenNotFound != nil && errors.Is(err, deps.TokenNotFound) {
			return RefreshResult{Failure: RefreshFailureReuse, Err: err, Principal: current}
		}
		return RefreshResult{Failure: RefreshFailureStore, Err: err, Principal: current}
	}

	res := IssueSession(ctx, current, deps.IssueTokenPair, deps.SessionStore)
	switch res.Failure {
	case IssueFailureSign:
		return RefreshResult{Failure: RefreshFailureIssue, Err: res.Err, Principal: current}
	case IssueFailureSave:
		return RefreshResult{Failure: RefreshFailureSave, Err: res.Err, Principal: current}
	}

	return RefreshResult{Principal: current, Tokens: res.Tokens}
}
