package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	argon2idID            = "argon2id"
)

var (
	// ErrTooShort is returned by Hash for passwords under Config.MinLength bytes.
	ErrTooShort = errors.New("password too short")
	// ErrInvalidHash is returned for stored hashes in an unknown or corrupt format.
	ErrInvalidHash = errors.New("invalid password hash")
)

// Config holds the argon2id cost parameters for new hashes.
type Config struct {
	Memory      uint32 `mapstructure:"memory"`
	Time        uint32 `mapstructure:"time"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
	MinLength   int    `mapstructure:"min_length"`
}

// DefaultConfig returns interactive-login argon2id parameters.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
		MinLength:   6,
	}
}

// Validate checks the cost parameters against safe minimums.
func (c Config) Validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("password memory must be >= %d KB", minMemoryKB)
	case c.Time < minTimeCost:
		return errors.New("password time must be >= 1")
	case c.Parallelism < minParallelism:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("password key length must be >= %d", minKeyLength)
	case c.MinLength < 1:
		return errors.New("password min length must be >= 1")
	}
	return nil
}

// Hasher hashes new passwords with argon2id and verifies both argon2id and
// legacy bcrypt hashes.
type Hasher struct {
	config Config
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Hasher{config: cfg}, nil
}

// Hash returns the PHC-encoded argon2id hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < h.config.MinLength {
		return "", fmt.Errorf("%w: need at least %d bytes", ErrTooShort, h.config.MinLength)
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, h.config.Time, h.config.Memory, h.config.Parallelism, h.config.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2idID, argon2.Version,
		h.config.Memory, h.config.Time, h.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify compares password with encoded. A mismatch is (false, nil); an
// unreadable hash is an ErrInvalidHash error.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	if isBcrypt(encoded) {
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
		}
	}

	phc, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(password), phc.salt, phc.time, phc.memory, phc.parallelism, uint32(len(phc.key)))
	return subtle.ConstantTimeCompare(key, phc.key) == 1, nil
}

// NeedsUpgrade reports whether encoded should be re-hashed after a successful
// login: bcrypt hashes always, argon2id hashes with weaker parameters.
func (h *Hasher) NeedsUpgrade(encoded string) (bool, error) {
	if isBcrypt(encoded) {
		return true, nil
	}
	phc, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	return phc.memory < h.config.Memory ||
		phc.time < h.config.Time ||
		phc.parallelism < h.config.Parallelism ||
		uint32(len(phc.key)) != h.config.KeyLength, nil
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

type phcHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func decodePHC(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != argon2idID {
		return nil, fmt.Errorf("%w: not an argon2id PHC string", ErrInvalidHash)
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidHash, parts[2])
	}

	out := &phcHash{}
	seen := 0
	for _, kv := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("%w: parameter %q", ErrInvalidHash, kv)
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %q", ErrInvalidHash, kv)
		}
		switch name {
		case "m":
			out.memory = uint32(n)
		case "t":
			out.time = uint32(n)
		case "p":
			if n > 255 {
				return nil, fmt.Errorf("%w: parallelism %d", ErrInvalidHash, n)
			}
			out.parallelism = uint8(n)
		default:
			return nil, fmt.Errorf("%w: parameter %q", ErrInvalidHash, name)
		}
		seen++
	}
	if seen != 3 || out.memory < minMemoryKB || out.time < minTimeCost || out.parallelism < minParallelism {
		return nil, fmt.Errorf("%w: parameters %q", ErrInvalidHash, parts[3])
	}

	var err error
	if out.salt, err = decodeB64(parts[4]); err != nil || len(out.salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: salt", ErrInvalidHash)
	}
	if out.key, err = decodeB64(parts[5]); err != nil || len(out.key) == 0 {
		return nil, fmt.Errorf("%w: key", ErrInvalidHash)
	}
	return out, nil
}

// decodeB64 accepts both padded and unpadded standard base64.
func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
