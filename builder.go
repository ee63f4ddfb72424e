package gastronomy

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nmezhenskyi/gastronomy-api/internal/audit"
	"github.com/nmezhenskyi/gastronomy-api/jwt"
	"github.com/nmezhenskyi/gastronomy-api/password"
	"github.com/nmezhenskyi/gastronomy-api/session"
)

// Builder assembles an Engine. Builders are single-use.
type Builder struct {
	config    Config
	db        *gorm.DB
	accounts  AccountProvider
	logger    *zap.Logger
	auditSink audit.Sink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithDB sets the database holding refresh-token records.
func (b *Builder) WithDB(db *gorm.DB) *Builder {
	b.db = db
	return b
}

func (b *Builder) WithAccountProvider(p AccountProvider) *Builder {
	b.accounts = p
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink replaces the default zap audit sink.
func (b *Builder) WithAuditSink(s audit.Sink) *Builder {
	b.auditSink = s
	return b
}

// WithClock overrides time.Now for token issuance and session bookkeeping.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.db == nil {
		return nil, errors.New("database is required")
	}
	if b.accounts == nil {
		return nil, errors.New("account provider is required")
	}
	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	codec, err := jwt.NewCodec(jwt.Config{
		AccessSecret:  []byte(cfg.JWT.AccessSecret),
		RefreshSecret: []byte(cfg.JWT.RefreshSecret),
		Issuer:        cfg.JWT.Issuer,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, err
	}

	sink := b.auditSink
	if sink == nil {
		sink = audit.NewZapSink(logger)
	}

	e := &Engine{
		config:   cfg,
		codec:    codec,
		hasher:   hasher,
		accounts: b.accounts,
		metrics:  NewMetrics(cfg.Metrics),
		audit:    audit.NewDispatcher(cfg.Audit, sink),
		logger:   logger.Named("engine"),
	}

	sessions, err := session.NewStore(b.db, codec, b.accounts, session.Config{
		MaxTokensPerPrincipal: cfg.Session.MaxTokensPerPrincipal,
		DefaultTokenTTL:       cfg.JWT.RefreshTTL,
		CleanupRetention:      cfg.Session.CleanupRetention,
		Now:                   now,
		Logger:                logger.Named("session"),
		OnEvict:               e.onEvict,
	})
	if err != nil {
		e.audit.Close()
		return nil, err
	}
	e.sessions = sessions
	e.flows = e.newFlowDeps()

	b.built = true
	return e, nil
}
