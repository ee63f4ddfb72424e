package flows

import (
	"context"

	"github.com/nmezhenskyi/gastronomy-api/jwt"
	"github.com/nmezhenskyi/gastronomy-api/principal"
	"github.com/nmezhenskyi/gastronomy-api/session"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	UserLogin   LoginDeps
	MemberLogin LoginDeps
	Refresh     RefreshDeps
	Logout      LogoutDeps
}

// SessionSaver persists a freshly issued refresh token.
type SessionSaver interface {
	SaveToken(ctx context.Context, owner principal.Principal, token string) (*session.RefreshToken, error)
}

// IssueFailureKind classifies IssueSession failures.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailureSign
	IssueFailureSave
)

// IssueResult is returned by IssueSession.
type IssueResult struct {
	Failure IssueFailureKind
	Err     error
	Tokens  jwt.TokenPair
	Record  *session.RefreshToken
}

// IssueSession signs a pair for p and stores its refresh token. It is the
// shared tail of register, login and refresh.
func IssueSession(
	ctx context.Context,
	p principal.Principal,
	issue func(principal.Principal) (jwt.TokenPair, error),
	store SessionSaver,
) IssueResult {
	pair, err := issue(p)
	if err != nil {
		return IssueResult{Failure: IssueFailureSign, Err: err}
	}
	rec, err := store.SaveToken(ctx, p, pair.RefreshToken)
	if err != nil {
		return IssueResult{Failure: IssueFailureSave, Err: err}
	}
	return IssueResult{Tokens: pair, Record: rec}
}
