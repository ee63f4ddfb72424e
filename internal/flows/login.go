package flows

import (
	"context"
	"errors"

	"github.com/nmezhenskyi/gastronomy-api/jwt"
	"github.com/nmezhenskyi/gastronomy-api/principal"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureUnknownAccount
	LoginFailureLookup
	LoginFailurePassword
	LoginFailureVerify
	LoginFailureIssue
	LoginFailureSave
)

// LoginAccount is the credential view of a user or member row.
type LoginAccount struct {
	Principal    principal.Principal
	PasswordHash string
}

// LoginResult carries either the issued pair or failure metadata.
type LoginResult struct {
	Failure   LoginFailureKind
	Err       error
	Principal principal.Principal
	Tokens    jwt.TokenPair
	Rehashed  bool
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	FindAccount     func(ctx context.Context, email string) (*LoginAccount, error)
	AccountNotFound error
	VerifyPassword  func(password, encoded string) (bool, error)
	// NeedsUpgrade and UpgradeHash are optional. A failed upgrade is logged and
	// does not fail the login.
	NeedsUpgrade   func(encoded string) bool
	UpgradeHash    func(ctx context.Context, p principal.Principal, password string) error
	IssueTokenPair func(principal.Principal) (jwt.TokenPair, error)
	SessionStore   SessionSaver
	Warn           func(string, ...any)
}

// RunLogin verifies credentials, issues a token pair and persists its
// refresh token under the account's principal.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) LoginResult {
	acct, err := deps.FindAccount(ctx, email)
	if err != nil {
		if deps.AccountNotFound != nil && errors.Is(err, deps.AccountNotFound) {
			return LoginResult{Failure: LoginFailureUnknownAccount, Err: err}
		}
		return LoginResult{Failure: LoginFailureLookup, Err: err}
	}

	ok, err := deps.VerifyPassword(password, acct.PasswordHash)
	if err != nil {
		return LoginResult{Failure: LoginFailureVerify, Err: err, Principal: acct.Principal}
	}
	if !ok {
		return LoginResult{Failure: LoginFailurePassword, Principal: acct.Principal}
	}

	rehashed := false
	if deps.NeedsUpgrade != nil && deps.UpgradeHash != nil && deps.NeedsUpgrade(acct.PasswordHash) {
		if err := deps.UpgradeHash(ctx, acct.Principal, password); err != nil {
			if deps.Warn != nil {
				deps.Warn("password hash upgrade failed", "principal", acct.Principal.Key(), "error", err)
			}
		} else {
			rehashed = true
		}
	}

	res := IssueSession(ctx, acct.Principal, deps.IssueTokenPair, deps.SessionStore)
	switch res.Failure {
	case IssueFailureSign:
		return LoginResult{Failure: LoginFailureIssue, Err: res.Err, Principal: acct.Principal, Rehashed: rehashed}
	case IssueFailureSave:
		return LoginResult{Failure: LoginFailureSave, Err: res.Err, Principal: acct.Principal, Rehashed: rehashed}
	}

	return LoginResult{
		Principal: acct.Principal,
		Tokens:    res.Tokens,
		Rehashed:  rehashed,
	}
}
