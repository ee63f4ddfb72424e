// Package enginetest builds engines over in-memory databases for tests.
package enginetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	gastronomy "github.com/nmezhenskyi/gastronomy-api"
	"github.com/nmezhenskyi/gastronomy-api/internal/accounts"
	"github.com/nmezhenskyi/gastronomy-api/internal/audit"
	"github.com/nmezhenskyi/gastronomy-api/internal/storage/storagetest"
	"github.com/nmezhenskyi/gastronomy-api/jwt"
	"github.com/nmezhenskyi/gastronomy-api/principal"
	"github.com/nmezhenskyi/gastronomy-api/session"
)

// Password is the password of every account created by the harness.
const Password = "correct-horse"

// Clock is a settable time source safe for concurrent use.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock starts a clock at t.
func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Config returns a valid test configuration with cheap argon2 parameters and
// audit disabled.
func Config() gastronomy.Config {
	cfg := gastronomy.DefaultConfig()
	cfg.Environment = gastronomy.EnvironmentTest
	cfg.JWT.AccessSecret = "access-secret-for-tests-0123456789"
	cfg.JWT.RefreshSecret = "refresh-secret-for-tests-9876543210"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false
	return cfg
}

// Options tweak New.
type Options struct {
	Mutate    func(*gastronomy.Config)
	AuditSink audit.Sink
	// Models are migrated in addition to accounts and refresh tokens.
	Models []any
}

// Harness bundles an engine with its collaborators.
type Harness struct {
	Engine   *gastronomy.Engine
	Accounts *accounts.Store
	DB       *gorm.DB
	Clock    *Clock
	Config   gastronomy.Config
}

// New builds a harness whose engine runs on a fixed clock.
func New(t testing.TB, opts Options) *Harness {
	t.Helper()
	models := append(accounts.Models(), &session.RefreshToken{})
	models = append(models, opts.Models...)
	db := storagetest.Open(t, models...)

	cfg := Config()
	if opts.Mutate != nil {
		opts.Mutate(&cfg)
	}
	clock := NewClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	store := accounts.NewStore(db)

	b := gastronomy.New().
		WithConfig(cfg).
		WithDB(db).
		WithAccountProvider(store).
		WithClock(clock.Now)
	if opts.AuditSink != nil {
		b = b.WithAuditSink(opts.AuditSink)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &Harness{Engine: engine, Accounts: store, DB: db, Clock: clock, Config: cfg}
}

// RegisterUser registers a user with Password.
func (h *Harness) RegisterUser(t testing.TB, email string) *gastronomy.UserSession {
	t.Helper()
	s, err := h.Engine.RegisterUser(context.Background(), gastronomy.RegisterUserInput{
		Name:     "Test User",
		Email:    email,
		Password: Password,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return s
}

// Member creates a member with role and logs it in.
func (h *Harness) Member(t testing.TB, email string, role principal.Role) (*gastronomy.MemberRecord, jwt.TokenPair) {
	t.Helper()
	ctx := context.Background()
	m, err := h.Engine.CreateMember(ctx, gastronomy.NewMemberInput{
		FirstName: "Test",
		LastName:  "Member",
		Email:     email,
		Password:  Password,
		Role:      role,
	})
	if err != nil {
		t.Fatalf("create member %s: %v", email, err)
	}
	pair, err := h.Engine.LoginMember(ctx, email, Password)
	if err != nil {
		t.Fatalf("login member %s: %v", email, err)
	}
	return m, pair
}
