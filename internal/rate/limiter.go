package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultWindow is the lifetime of a fresh counter.
	DefaultWindow = 59 * time.Second
	// DefaultBucket is the clock alignment of counter keys.
	DefaultBucket = time.Minute
	// ProductionLimit is the per-window budget in production.
	ProductionLimit = 50
	// DevelopmentLimit is the per-window budget elsewhere.
	DevelopmentLimit = 15
)

// Config holds rate limiter tuning parameters.
type Config struct {
	Limit  int
	Window time.Duration
	Bucket time.Duration
	// FailOpen admits requests when the store errors.
	FailOpen  bool
	KeyPrefix string
	Now       func() time.Time
	Logger    *zap.Logger
}

// Limiter counts requests per client address in clock-aligned buckets.
//
// The window is approximate: a counter lives for Window after the first hit
// but its key changes at every Bucket boundary, so a client crossing a
// boundary starts a fresh count early.
type Limiter struct {
	store  Store
	config Config
}

// New creates a [Limiter] over store.
func New(store Store, cfg Config) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("rate limiter requires a store")
	}
	if cfg.Limit <= 0 {
		return nil, errors.New("rate limit must be positive")
	}
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Bucket == 0 {
		cfg.Bucket = DefaultBucket
	}
	if cfg.Window < 0 || cfg.Bucket < 0 {
		return nil, errors.New("rate window must be positive")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Limiter{store: store, config: cfg}, nil
}

// Limit returns the per-window budget.
func (l *Limiter) Limit() int { return l.config.Limit }

// Window returns the counter lifetime.
func (l *Limiter) Window() time.Duration { return l.config.Window }

func (l *Limiter) key(clientAddress string, now time.Time) string {
	bucket := now.UnixNano() / int64(l.config.Bucket)
	return l.config.KeyPrefix + clientAddress + ":" + strconv.FormatInt(bucket, 10)
}

// Allow records one request for clientAddress. Requests 1..Limit in a window
// pass; the next returns ErrRateLimited and later ones are rejected without
// touching the counter, so it never exceeds Limit+1.
func (l *Limiter) Allow(ctx context.Context, clientAddress string) error {
	key := l.key(clientAddress, l.config.Now())
	limit := int64(l.config.Limit)

	count, err := l.store.Increment(ctx, key, limit, l.config.Window)
	if err != nil {
		return l.storeFailure(clientAddress, err)
	}
	if count > limit {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) storeFailure(clientAddress string, err error) error {
	if l.config.FailOpen {
		l.config.Logger.Warn("rate limit store failed, admitting request",
			zap.String("client", clientAddress), zap.Error(err))
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
