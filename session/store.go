package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nmezhenskyi/gastronomy-api/internal/keylock"
	"github.com/nmezhenskyi/gastronomy-api/internal/storage"
	"github.com/nmezhenskyi/gastronomy-api/jwt"
	"github.com/nmezhenskyi/gastronomy-api/principal"
)

var (
	// ErrTokenInvalid is returned when a refresh token fails validation or does
	// not belong to the owner it is saved for.
	ErrTokenInvalid = errors.New("refresh token invalid")
	// ErrTokenNotFound is returned when no record holds the token.
	ErrTokenNotFound = errors.New("refresh token not found")
	// ErrOwnerNotFound is returned when the owning principal does not exist.
	ErrOwnerNotFound = errors.New("refresh token owner not found")
)

const (
	// DefaultMaxTokensPerPrincipal caps concurrent sessions per principal.
	DefaultMaxTokensPerPrincipal = 6
	// DefaultTokenTTL is the fallback record lifetime for tokens without exp.
	DefaultTokenTTL = 14 * 24 * time.Hour
	// DefaultCleanupRetention keeps expired records this long before the sweep removes them.
	DefaultCleanupRetention = 14 * 24 * time.Hour
)

// RefreshValidator decodes refresh tokens. *jwt.Codec implements it.
type RefreshValidator interface {
	ValidateRefreshToken(token string) (*jwt.RefreshClaims, bool)
}

// OwnerLookup resolves whether a principal still exists.
type OwnerLookup interface {
	PrincipalExists(ctx context.Context, p principal.Principal) (bool, error)
}

// Config tunes a Store.
type Config struct {
	MaxTokensPerPrincipal int
	DefaultTokenTTL       time.Duration
	// CleanupRetention is subtracted from now to get the sweep cutoff. Zero
	// removes every record whose expiry has passed.
	CleanupRetention time.Duration
	Now              func() time.Time
	Logger           *zap.Logger
	// OnEvict is called after cap enforcement removed records.
	OnEvict func(owner principal.Principal, evicted int64)
}

// DefaultConfig returns the stock session limits.
func DefaultConfig() Config {
	return Config{
		MaxTokensPerPrincipal: DefaultMaxTokensPerPrincipal,
		DefaultTokenTTL:       DefaultTokenTTL,
		CleanupRetention:      DefaultCleanupRetention,
	}
}

// Store persists refresh-token records in the relational database.
//
// Count, evict and insert for one principal run inside a single transaction
// while holding a per-principal lock, so the cap holds under concurrent logins
// handled by this process.
type Store struct {
	repo      *storage.Repository[RefreshToken]
	validator RefreshValidator
	owners    OwnerLookup
	cfg       Config
	locks     *keylock.Map

	clockMu   sync.Mutex
	lastStamp time.Time
}

// NewStore builds a Store. Zero config fields take their defaults.
func NewStore(db *gorm.DB, validator RefreshValidator, owners OwnerLookup, cfg Config) (*Store, error) {
	if db == nil || validator == nil || owners == nil {
		return nil, errors.New("session store requires db, validator and owner lookup")
	}
	if cfg.MaxTokensPerPrincipal == 0 {
		cfg.MaxTokensPerPrincipal = DefaultMaxTokensPerPrincipal
	}
	if cfg.MaxTokensPerPrincipal < 1 {
		return nil, errors.New("max tokens per principal must be positive")
	}
	if cfg.DefaultTokenTTL <= 0 {
		cfg.DefaultTokenTTL = DefaultTokenTTL
	}
	if cfg.CleanupRetention < 0 {
		return nil, errors.New("cleanup retention must not be negative")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Store{
		repo:      storage.NewRepository[RefreshToken](db),
		validator: validator,
		owners:    owners,
		cfg:       cfg,
		locks:     keylock.New(),
	}, nil
}

// Migrate creates the refresh_tokens table.
func Migrate(db *gorm.DB) error {
	return storage.Migrate(db, &RefreshToken{})
}

func ownerCond(owner principal.Principal) storage.Cond {
	return storage.Where("principal_kind = ? AND principal_id = ?", owner.Kind.String(), owner.ID)
}

func tokenCond(token string) storage.Cond {
	return storage.Where("token_hash = ?", HashToken(token))
}

// stamp returns a strictly increasing UTC creation time so eviction order
// matches insertion order even when the clock does not advance.
func (s *Store) stamp() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	now := s.cfg.Now().UTC().Truncate(time.Microsecond)
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = now
	return now
}

// SaveToken validates token, checks that owner exists, evicts the oldest
// records past the cap and persists a new record.
func (s *Store) SaveToken(ctx context.Context, owner principal.Principal, token string) (*RefreshToken, error) {
	claims, ok := s.validator.ValidateRefreshToken(token)
	if !ok {
		return nil, ErrTokenInvalid
	}
	if claims.Principal.Kind != owner.Kind || claims.Principal.ID != owner.ID {
		return nil, fmt.Errorf("%w: token issued for %s", ErrTokenInvalid, claims.Principal.Key())
	}

	exists, err := s.owners.PrincipalExists(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("lookup owner: %w", err)
	}
	if !exists {
		return nil, ErrOwnerNotFound
	}

	record := &RefreshToken{
		ID:            uuid.NewString(),
		TokenHash:     HashToken(token),
		PrincipalKind: owner.Kind.String(),
		PrincipalID:   owner.ID,
	}
	if claims.HasExpiry() {
		record.ExpiryDate = claims.ExpiresAt.UTC()
	}

	evicted, err := s.insertCapped(ctx, owner, record)
	if err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	// OnEvict runs unlocked; it may block on the audit buffer.
	if evicted > 0 {
		s.cfg.Logger.Debug("evicted refresh tokens",
			zap.Stringer("principal", owner), zap.Int64("count", evicted))
		if s.cfg.OnEvict != nil {
			s.cfg.OnEvict(owner, evicted)
		}
	}
	return record, nil
}

// insertCapped stamps record, evicts owner's oldest records past the cap and
// inserts record in one transaction under the owner's lock. A zero expiry
// takes the default token lifetime.
func (s *Store) insertCapped(ctx context.Context, owner principal.Principal, record *RefreshToken) (evicted int64, err error) {
	unlock := s.locks.Lock(owner.Key())
	defer unlock()

	record.CreatedAt = s.stamp()
	if record.ExpiryDate.IsZero() {
		record.ExpiryDate = record.CreatedAt.Add(s.cfg.DefaultTokenTTL)
	}

	err = s.repo.Transaction(ctx, func(tx *storage.Repository[RefreshToken]) error {
		count, err := tx.Count(ctx, ownerCond(owner))
		if err != nil {
			return err
		}
		if excess := count - int64(s.cfg.MaxTokensPerPrincipal) + 1; excess > 0 {
			oldest, err := tx.FindMany(ctx, ownerCond(owner), storage.Page{
				Limit: int(excess),
				Order: "created_at ASC, id ASC",
			})
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(oldest))
			for _, rec := range oldest {
				ids = append(ids, rec.ID)
			}
			n, err := tx.DeleteWhere(ctx, storage.Where("id IN ?", ids))
			if err != nil {
				return err
			}
			evicted = n
		}
		return tx.Create(ctx, record)
	})
	return evicted, err
}

// FindToken returns the record holding token.
func (s *Store) FindToken(ctx context.Context, token string) (*RefreshToken, error) {
	if token == "" {
		return nil, ErrTokenNotFound
	}
	rec, err := s.repo.FindOne(ctx, tokenCond(token))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return rec, nil
}

// RemoveToken deletes the record holding token. A missing record is not an error.
func (s *Store) RemoveToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if _, err := s.repo.DeleteWhere(ctx, tokenCond(token)); err != nil {
		return fmt.Errorf("remove refresh token: %w", err)
	}
	return nil
}

// ConsumeToken deletes the record holding token and fails with
// ErrTokenNotFound when no record was deleted. Of two concurrent rotations of
// the same token exactly one succeeds.
func (s *Store) ConsumeToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrTokenNotFound
	}
	n, err := s.repo.DeleteWhere(ctx, tokenCond(token))
	if err != nil {
		return fmt.Errorf("consume refresh token: %w", err)
	}
	if n == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// RemoveAll deletes every record of owner, used when an account is deleted.
func (s *Store) RemoveAll(ctx context.Context, owner principal.Principal) (int64, error) {
	unlock := s.locks.Lock(owner.Key())
	defer unlock()
	n, err := s.repo.DeleteWhere(ctx, ownerCond(owner))
	if err != nil {
		return 0, fmt.Errorf("remove refresh tokens of %s: %w", owner.Key(), err)
	}
	return n, nil
}

// Count returns the number of records owned by owner.
func (s *Store) Count(ctx context.Context, owner principal.Principal) (int64, error) {
	return s.repo.Count(ctx, ownerCond(owner))
}

// List returns owner's records oldest first.
func (s *Store) List(ctx context.Context, owner principal.Principal) ([]RefreshToken, error) {
	return s.repo.FindMany(ctx, ownerCond(owner), storage.Page{Order: "created_at ASC, id ASC"})
}

// Cleanup deletes records whose expiry is older than now minus the retention
// and returns how many were removed. Failures are logged, never returned.
func (s *Store) Cleanup(ctx context.Context) int64 {
	cutoff := s.cfg.Now().UTC().Add(-s.cfg.CleanupRetention)
	n, err := s.repo.DeleteWhere(ctx, storage.Where("expiry_date < ?", cutoff))
	if err != nil {
		s.cfg.Logger.Error("refresh token cleanup failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0
	}
	s.cfg.Logger.Info("refresh token cleanup finished", zap.Time("cutoff", cutoff), zap.Int64("removed", n))
	return n
}
