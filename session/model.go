package session

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/nmezhenskyi/gastronomy-api/principal"
)

// RefreshToken is one persisted refresh-token record. A principal owns at most
// Config.MaxTokensPerPrincipal of them. Only the SHA-256 of the token is stored.
type RefreshToken struct {
	ID            string    `gorm:"primaryKey;size:36"`
	TokenHash     string    `gorm:"size:64;uniqueIndex;not null"`
	PrincipalKind string    `gorm:"size:16;not null;index:idx_refresh_tokens_owner"`
	PrincipalID   string    `gorm:"size:36;not null;index:idx_refresh_tokens_owner"`
	ExpiryDate    time.Time `gorm:"not null;index"`
	CreatedAt     time.Time `gorm:"not null"`
}

// HashToken returns the hex SHA-256 digest under which token is stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TableName pins the table name independent of naming strategy.
func (RefreshToken) TableName() string { return "refresh_tokens" }

// Owner returns the principal key the record belongs to. The member role is not
// stored; callers needing it re-read the account.
func (t *RefreshToken) Owner() (principal.Kind, string) {
	kind, err := principal.ParseKind(t.PrincipalKind)
	if err != nil {
		return principal.KindUnknown, t.PrincipalID
	}
	return kind, t.PrincipalID
}

// Expired reports whether the record's expiry is at or before now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiryDate)
}
