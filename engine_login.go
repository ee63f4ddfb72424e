package gastronomy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nmezhenskyi/gastronomy-api/internal/audit"
	"github.com/nmezhenskyi/gastronomy-api/internal/flows"
	"github.com/nmezhenskyi/gastronomy-api/jwt"
	"github.com/nmezhenskyi/gastronomy-api/password"
	"github.com/nmezhenskyi/gastronomy-api/principal"
)

// LoginUser verifies user credentials and opens a session. An unknown email
// and a wrong password both fail with ErrInvalidCredentials.
func (e *Engine) LoginUser(ctx context.Context, email, pw string) (jwt.TokenPair, error) {
	if e == nil || e.codec == nil {
		return jwt.TokenPair{}, ErrEngineNotReady
	}
	return e.login(ctx, principal.KindUser, email, pw, e.flows.UserLogin)
}

// LoginMember is LoginUser for staff members.
func (e *Engine) LoginMember(ctx context.Context, email, pw string) (jwt.TokenPair, error) {
	if e == nil || e.codec == nil {
		return jwt.TokenPair{}, ErrEngineNotReady
	}
	return e.login(ctx, principal.KindMember, email, pw, e.flows.MemberLogin)
}

func (e *Engine) login(ctx context.Context, kind principal.Kind, email, pw string, deps flows.LoginDeps) (jwt.TokenPair, error) {
	res := flows.RunLogin(ctx, email, pw, deps)

	var err error
	switch res.Failure {
	case flows.LoginFailureNone:
		e.metrics.Inc(MetricLoginSuccess)
		e.metrics.Inc(MetricSessionCreated)
		e.emitAudit(ctx, audit.EventLoginSuccess, res.Principal, true, "", nil)
		return res.Tokens, nil
	case flows.LoginFailureUnknownAccount, flows.LoginFailurePassword:
		err = ErrInvalidCredentials
	default:
		err = fmt.Errorf("%s login: %w", kind, res.Err)
		e.logger.Error("login failed", zap.Stringer("kind", kind), zap.Error(res.Err))
	}

	e.metrics.Inc(MetricLoginFailure)
	meta := map[string]string{"kind": kind.String()}
	e.emitAudit(ctx, audit.EventLoginFailure, res.Principal, false, auditReason(err), meta)
	return jwt.TokenPair{}, err
}

// RegisterUser creates a user account and opens its first session.
func (e *Engine) RegisterUser(ctx context.Context, in RegisterUserInput) (*UserSession, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" {
		return nil, fmt.Errorf("%w: name and email are required", ErrInvalidInput)
	}
	hash, err := e.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user, err := e.accounts.CreateUser(ctx, CreateUserInput{Name: name, Email: email, PasswordHash: hash})
	if err != nil {
		e.emitAudit(ctx, audit.EventRegister, principal.Principal{}, false, auditReason(err), nil)
		if errors.Is(err, ErrAccountExists) {
			return nil, err
		}
		return nil, fmt.Errorf("register user: %w", err)
	}

	res := flows.IssueSession(ctx, user.Principal(), e.codec.GenerateTokenPair, e.sessions)
	if res.Failure != flows.IssueFailureNone {
		e.logger.Error("session for new user failed", zap.String("user", user.ID), zap.Error(res.Err))
		return nil, fmt.Errorf("register user: %w", res.Err)
	}

	e.metrics.Inc(MetricRegister)
	e.metrics.Inc(MetricSessionCreated)
	e.emitAudit(ctx, audit.EventRegister, user.Principal(), true, "", nil)
	return &UserSession{User: user, Tokens: res.Tokens}, nil
}

// CreateMember stores a member account. No session is opened.
func (e *Engine) CreateMember(ctx context.Context, in NewMemberInput) (*MemberRecord, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}
	if !in.Role.MemberRole() {
		return nil, fmt.Errorf("%w: member role %q", ErrInvalidInput, in.Role)
	}
	email := normalizeEmail(in.Email)
	if email == "" || strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, fmt.Errorf("%w: first name, last name and email are required", ErrInvalidInput)
	}
	hash, err := e.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	m, err := e.accounts.CreateMember(ctx, CreateMemberInput{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create member: %w", err)
	}
	if in.Role == principal.RoleSupervisor {
		e.emitAudit(ctx, audit.EventSupervisorSeeded, m.Principal(), true, "", nil)
	}
	return m, nil
}

// HashPassword hashes pw with the configured parameters. A password shorter
// than the configured minimum fails with ErrInvalidInput.
func (e *Engine) HashPassword(pw string) (string, error) {
	if e == nil || e.hasher == nil {
		return "", ErrEngineNotReady
	}
	hash, err := e.hasher.Hash(pw)
	if errors.Is(err, password.ErrTooShort) {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return hash, err
}

// VerifyPassword compares pw with an encoded hash.
func (e *Engine) VerifyPassword(pw, encoded string) (bool, error) {
	if e == nil || e.hasher == nil {
		return false, ErrEngineNotReady
	}
	return e.hasher.Verify(pw, encoded)
}
