package gastronomy

import (
	"context"
	"fmt"
	"strings"

	"github.com/nmezhenskyi/gastronomy-api/internal/flows"
	"github.com/nmezhenskyi/gastronomy-api/principal"
	"github.com/nmezhenskyi/gastronomy-api/session"
)

func (e *Engine) newFlowDeps() flows.Deps {
	warn := e.logger.Sugar().Warnw

	needsUpgrade := func(encoded string) bool {
		upgrade, err := e.hasher.NeedsUpgrade(encoded)
		return err == nil && upgrade
	}

	return flows.Deps{
		UserLogin: flows.LoginDeps{
			FindAccount: func(ctx context.Context, email string) (*flows.LoginAccount, error) {
				u, err := e.accounts.FindUserByEmail(ctx, normalizeEmail(email))
				if err != nil {
					return nil, err
				}
				return &flows.LoginAccount{Principal: u.Principal(), PasswordHash: u.PasswordHash}, nil
			},
			AccountNotFound: ErrAccountNotFound,
			VerifyPassword:  e.hasher.Verify,
			NeedsUpgrade:    needsUpgrade,
			UpgradeHash:     e.upgradeHash,
			IssueTokenPair:  e.codec.GenerateTokenPair,
			SessionStore:    e.sessions,
			Warn:            warn,
		},
		MemberLogin: flows.LoginDeps{
			FindAccount: func(ctx context.Context, email string) (*flows.LoginAccount, error) {
				m, err := e.accounts.FindMemberByEmail(ctx, normalizeEmail(email))
				if err != nil {
					return nil, err
				}
				return &flows.LoginAccount{Principal: m.Principal(), PasswordHash: m.PasswordHash}, nil
			},
			AccountNotFound: ErrAccountNotFound,
			VerifyPassword:  e.hasher.Verify,
			NeedsUpgrade:    needsUpgrade,
			UpgradeHash:     e.upgradeHash,
			IssueTokenPair:  e.codec.GenerateTokenPair,
			SessionStore:    e.sessions,
			Warn:            warn,
		},
		Refresh: flows.RefreshDeps{
			ValidateRefreshToken: e.codec.ValidateRefreshToken,
			ReloadPrincipal:      e.reloadPrincipal,
			IssueTokenPair:       e.codec.GenerateTokenPair,
			SessionStore:         e.sessions,
			TokenNotFound:        session.ErrTokenNotFound,
			AccountNotFound:      ErrAccountNotFound,
		},
		Logout: flows.LogoutDeps{
			ValidateRefreshToken: e.codec.ValidateRefreshToken,
			SessionStore:         e.sessions,
		},
	}
}

func (e *Engine) upgradeHash(ctx context.Context, p principal.Principal, password string) error {
	hash, err := e.hasher.Hash(password)
	if err != nil {
		return err
	}
	switch p.Kind {
	case principal.KindUser:
		err = e.accounts.UpdateUserPasswordHash(ctx, p.ID, hash)
	case principal.KindMember:
		err = e.accounts.UpdateMemberPasswordHash(ctx, p.ID, hash)
	default:
		err = fmt.Errorf("%w: %s", principal.ErrInvalidPrincipal, p)
	}
	if err == nil {
		e.metrics.Inc(MetricPasswordRehash)
	}
	return err
}

func (e *Engine) reloadPrincipal(ctx context.Context, p principal.Principal) (principal.Principal, error) {
	switch p.Kind {
	case principal.KindUser:
		u, err := e.accounts.FindUserByID(ctx, p.ID)
		if err != nil {
			return principal.Principal{}, err
		}
		return u.Principal(), nil
	case principal.KindMember:
		m, err := e.accounts.FindMemberByID(ctx, p.ID)
		if err != nil {
			return principal.Principal{}, err
		}
		return m.Principal(), nil
	}
	return principal.Principal{}, fmt.Errorf("%w: %s", principal.ErrInvalidPrincipal, p)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
