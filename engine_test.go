package gastronomy_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	gastronomy "github.com/nmezhenskyi/gastronomy-api"
	"github.com/nmezhenskyi/gastronomy-api/internal/accounts"
	"github.com/nmezhenskyi/gastronomy-api/internal/audit"
	"github.com/nmezhenskyi/gastronomy-api/internal/enginetest"
	"github.com/nmezhenskyi/gastronomy-api/internal/storage/storagetest"
	"github.com/nmezhenskyi/gastronomy-api/principal"
	"github.com/nmezhenskyi/gastronomy-api/session"
)

func TestBuilderRequiresCollaborators(t *testing.T) {
	db := storagetest.Open(t, accounts.Models()...)
	store := accounts.NewStore(db)

	_, err := gastronomy.New().WithConfig(enginetest.Config()).WithAccountProvider(store).Build()
	assert.Error(t, err)

	_, err = gastronomy.New().WithConfig(enginetest.Config()).WithDB(db).Build()
	assert.Error(t, err)

	bad := enginetest.Config()
	bad.JWT.RefreshSecret = bad.JWT.AccessSecret
	_, err = gastronomy.New().WithConfig(bad).WithDB(db).WithAccountProvider(store).Build()
	assert.Error(t, err)

	b := gastronomy.New().WithConfig(enginetest.Config()).WithDB(db).WithAccountProvider(store)
	e, err := b.Build()
	require.NoError(t, err)
	defer e.Close()
	_, err = b.Build()
	assert.Error(t, err)
}

func TestRegisterIssuesValidPair(t *testing.T) {
	h := enginetest.New(t, enginetest.Options{})
	ctx := context.Background()

	s := h.RegisterUser(t, "Ann@Example.com")
	assert.Equal(t, "ann@example.com", s.User.Email)

	p, ok := h.Engine.ValidateAccessToken(s.Tokens.AccessToken)
	require.True(t, ok)
	assert.Equal(t, principal.User(s.User.ID), p)

	_, ok = h.Engine.ValidateAccessToken(s.Tokens.RefreshToken)
	assert.False(t, ok, "refresh token must not pass as access token")

	n, err := h.Engine.SessionCount(ctx, p)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = h.Engine.RegisterUser(ctx, gastronomy.RegisterUserInput{Name: "X", Email: "ann@example.com", Password: "another-pass"})
	assert.ErrorIs(t, err, gastronomy.ErrAccountExists)

	_, err = h.Engine.RegisterUser(ctx, gastronomy.RegisterUserInput{Name: "X", Email: "short@example.com", Password: "12345"})
	assert.ErrorIs(t, err, gastronomy.ErrInvalidInput)

	assert.EqualValues(t, 1, h.Engine.MetricsSnapshot().Counters[gastronomy.MetricRegister])
}

func TestLoginInvalidCredentialsIndistinguishable(t *testing.T) {
	h := enginetest.New(t, enginetest.Options{})
	ctx := context.Background()
	h.RegisterUser(t, "bob@example.com")

	_, errUnknown := h.Engine.LoginUser(ctx, "nobody@example.com", "correct-horse")
	_, errWrong := h.Engine.LoginUser(ctx, "bob@example.com", "wrong-horse")
	assert.ErrorIs(t, errUnknown, gastronomy.ErrInvalidCredentials)
	assert.ErrorIs(t, errWrong, gastronomy.ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())

	// Users and members are separate namespaces.
	_, err := h.Engine.LoginMember(ctx, "bob@example.com", "correct-horse")
	assert.ErrorIs(t, err, gastronomy.ErrInvalidCredentials)

	pair, err := h.Engine.LoginUser(ctx, " BOB@example.com", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	snap := h.Engine.MetricsSnapshot()
	assert.EqualValues(t, 3, snap.Counters[gastronomy.MetricLoginFailure])
	assert.EqualValues(t, 1, snap.Counters[gastronomy.MetricLoginSuccess])
}

func TestSessionCapEvictsOldest(t *testing.T) {
	h := enginetest.New(t, enginetest.Options{})
	ctx := context.Background()

	first := h.RegisterUser(t, "cap@example.com")
	owner := first.User.Principal()
	refreshTokens := []string{first.Tokens.RefreshToken}
	for i := 0; i < 6; i++ {
		pair, err := h.Engine.LoginUser(ctx, "cap@example.com", "correct-horse")
		require.NoError(t, err)
		refreshTokens = append(refreshTokens, pair.RefreshToken)
	}

	n, err := h.Engine.SessionCount(ctx, owner)
	require.NoError(t, err)
	assert.EqualValues(t, 6, n)

	_, err = h.Engine.Sessions().FindToken(ctx, refreshTokens[0])
	assert.ErrorIs(t, err, session.ErrTokenNotFound)
	for _, tok := range refreshTokens[1:] {
		_, err := h.Engine.Sessions().FindToken(ctx, tok)
		assert.NoError(t, err)
	}

	_, err = h.Engine.Refresh(ctx, principal.KindUser, refreshTokens[0])
	assert.ErrorIs(t, err, gastronomy.ErrRefreshInvalid)
	assert.EqualValues(t, 1, h.Engine.MetricsSnapshot().Counters[gastronomy.MetricSessionEvicted])
}

func TestRefreshRotatesExactlyOneRecord(t *testing.T) {
	h := enginetest.New(t, enginetest.Options{})
	ctx := context.Background()

	s := h.RegisterUser(t, "rot@example.com")
	other, err := h.Engine.LoginUser(ctx, "rot@example.com", "correct-horse")
	require.NoError(t, err)

	next, err := h.Engine.Refresh(ctx, principal.KindUser, s.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, s.Tokens.RefreshToken, next.RefreshToken)

	n, err := h.Engine.SessionCount(ctx, s.User.Principal())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = h.Engine.Sessions().FindToken(ctx, other.RefreshToken)
	assert.NoError(t, err, "unrelated session must survive rotation")

	_, err = h.Engine.Refresh(ctx, principal.KindUser, s.Tokens.RefreshToken)
	assert.ErrorIs(t, err, gastronomy.ErrRefreshInvalid)

	p, ok := h.Engine.ValidateAccessToken(next.AccessToken)
	require.True(t, ok)
	assert.Equal(t, s.User.ID, p.ID)
}

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	h := enginetest.New(t, enginetest.Options{})
	s := h.RegisterUser(t, "race@example.com")

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Engine.Refresh(context.Background(), principal.KindUser, s.Tokens.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, gastronomy.ErrRefreshInvalid) {
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}

	count, err := h.Engine.SessionCount(context.Background(), s.User.Principal())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestMemberRefreshPicksUpRoleChange(t *testing.T) {
	h := enginetest.New(t, enginetest.Options{})
	ctx := context.Background()

	m, err := h.Engine.CreateMember(ctx, gastronomy.NewMemberInput{
		FirstName: "Mia", LastName: "Stone", Email: "mia@example.com", Password: "member-pass", Role: principal.RoleCreator,
	})
	require.NoError(t, err)

	pair, err := h.Engine.LoginMember(ctx, "mia@example.com", "member-pass")
	require.NoError(t, err)
	p, ok := h.Engine.ValidateAccessToken(pair.AccessToken)
	require.True(t, ok)
	assert.Equal(t, principal.Member(m.ID, principal.RoleCreator), p)

	// A member token is not accepted on the user refresh path.
	_, err = h.Engine.Refresh(ctx, principal.KindUser, pair.RefreshToken)
	assert.ErrorIs(t, err, gastronomy.ErrRefreshInvalid)

	require.NoError(t, h.Accounts.SetMemberRole(ctx, m.ID, principal.RoleSupervisor))
	next, err := h.Engine.Refresh(ctx, principal.KindMember, pair.RefreshToken)
	require.NoError(t, err)
	p, ok = h.Engine.ValidateAccessToken(next.AccessToken)
	require.True(t, ok)
	assert.Equal(t, principal.RoleSupervisor, p.Role())
}

func TestRefreshFailsForDeletedAccount(t *testing.T) {
	h := enginetest.New(t, enginetest.Options{})
	ctx := context.Background()

	s := h.RegisterUser(t, "gone@example.com")
	require.NoError(t, h.Accounts.DeleteUser(ctx, s.User.ID))

	_, err := h.Engine.Refresh(ctx, principal.KindUser, s.Tokens.RefreshToken)
	assert.ErrorIs(t, err, gastronomy.ErrRefreshInvalid)

	_, err = h.Engine.Sessions().FindToken(ctx, s.Tokens.RefreshToken)
	assert.ErrorIs(t, err, session.ErrTokenNotFound)
}

func TestLogoutIsIdempotent(t *testing.T) {
	h := enginetest.New(t, enginetest.Options{})
	ctx := context.Background()

	s := h.RegisterUser(t, "out@example.com")
	require.NoError(t, h.Engine.Logout(ctx, s.Tokens.RefreshToken))
	require.NoError(t, h.Engine.Logout(ctx, s.Tokens.RefreshToken))
	require.NoError(t, h.Engine.Logout(ctx, ""))
	require.NoError(t, h.Engine.Logout(ctx, "not-a-token"))

	n, err := h.Engine.SessionCount(ctx, s.User.Principal())
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = h.Engine.Refresh(ctx, principal.KindUser, s.Tokens.RefreshToken)
	assert.ErrorIs(t, err, gastronomy.ErrRefreshInvalid)
}

func TestRevokePrincipalSessions(t *testing.T) {
	h := enginetest.New(t, enginetest.Options{})
	ctx := context.Background()

	s := h.RegisterUser(t, "rev@example.com")
	_, err := h.Engine.LoginUser(ctx, "rev@example.com", "correct-horse")
	require.NoError(t, err)

	n, err := h.Engine.RevokePrincipalSessions(ctx, s.User.Principal())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestAccessTokenExpires(t *testing.T) {
	h := enginetest.New(t, enginetest.Options{})
	s := h.RegisterUser(t, "exp@example.com")

	h.Clock.Advance(29 * time.Minute)
	_, ok := h.Engine.ValidateAccessToken(s.Tokens.AccessToken)
	assert.True(t, ok)

	h.Clock.Advance(2 * time.Minute)
	_, ok = h.Engine.ValidateAccessToken(s.Tokens.AccessToken)
	assert.False(t, ok)

	// The refresh token outlives the access token.
	_, err := h.Engine.Refresh(context.Background(), principal.KindUser, s.Tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestLegacyBcryptHashUpgradedOnLogin(t *testing.T) {
	h := enginetest.New(t, enginetest.Options{})
	ctx := context.Background()

	legacy, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := h.Accounts.CreateUser(ctx, gastronomy.CreateUserInput{Name: "Old", Email: "old@example.com", PasswordHash: string(legacy)})
	require.NoError(t, err)

	_, err = h.Engine.LoginUser(ctx, "old@example.com", "old-password")
	require.NoError(t, err)

	stored, err := h.Accounts.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"), stored.PasswordHash)
	assert.EqualValues(t, 1, h.Engine.MetricsSnapshot().Counters[gastronomy.MetricPasswordRehash])

	_, err = h.Engine.LoginUser(ctx, "old@example.com", "old-password")
	require.NoError(t, err)
	assert.EqualValues(t, 1, h.Engine.MetricsSnapshot().Counters[gastronomy.MetricPasswordRehash])
}

func TestCleanupSessionsHonorsRetention(t *testing.T) {
	h := enginetest.New(t, enginetest.Options{})
	ctx := context.Background()
	h.RegisterUser(t, "old-session@example.com")

	// Expired after 14 days, kept for another 14.
	h.Clock.Advance(20 * 24 * time.Hour)
	assert.Zero(t, h.Engine.CleanupSessions(ctx))

	h.Clock.Advance(9 * 24 * time.Hour)
	assert.EqualValues(t, 1, h.Engine.CleanupSessions(ctx))
	assert.EqualValues(t, 1, h.Engine.MetricsSnapshot().Counters[gastronomy.MetricSessionsPurged])
}

func TestAuditEventsCarryClientAddress(t *testing.T) {
	sink := audit.NewChannelSink(16)
	h := enginetest.New(t, enginetest.Options{
		AuditSink: sink,
		Mutate: func(c *gastronomy.Config) {
			c.Audit = audit.Config{Enabled: true, BufferSize: 16}
		},
	})

	ctx := gastronomy.WithClientAddress(context.Background(), "203.0.113.7")
	_, err := h.Engine.LoginUser(ctx, "nobody@example.com", "whatever-pass")
	require.ErrorIs(t, err, gastronomy.ErrInvalidCredentials)

	select {
	case ev := <-sink.Events():
		assert.Equal(t, audit.EventLoginFailure, ev.Type)
		assert.Equal(t, "203.0.113.7", ev.ClientAddress)
		assert.False(t, ev.Success)
		assert.Equal(t, "invalid_credentials", ev.Reason)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no audit event delivered")
	}
}
