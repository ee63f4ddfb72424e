package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nmezhenskyi/gastronomy-api/principal"
)

// DefaultIssuer is the issuer claim stamped on every token.
const DefaultIssuer = "gastronomy-api"

const (
	// DefaultAccessTTL is the access-token lifetime.
	DefaultAccessTTL = 30 * time.Minute
	// DefaultRefreshTTL is the refresh-token lifetime.
	DefaultRefreshTTL = 14 * 24 * time.Hour
)

// Config configures a Codec. Secrets are HMAC keys; the access and refresh
// secrets must differ so a refresh token never passes as an access token.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Leeway        time.Duration
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// UserClaim is the payload of a user token.
type UserClaim struct {
	ID string `json:"id"`
}

// MemberClaim is the payload of a member token.
type MemberClaim struct {
	ID   string         `json:"id"`
	Role principal.Role `json:"role"`
}

// Claims is the signed payload shared by access and refresh tokens. Exactly one
// of User or Member is set.
type Claims struct {
	User   *UserClaim   `json:"user,omitempty"`
	Member *MemberClaim `json:"member,omitempty"`
	jwt.RegisteredClaims
}

// Principal decodes the identity variant carried by the claims.
func (c *Claims) Principal() (principal.Principal, error) {
	var p principal.Principal
	switch {
	case c.User != nil && c.Member == nil:
		p = principal.User(c.User.ID)
	case c.Member != nil && c.User == nil:
		p = principal.Member(c.Member.ID, c.Member.Role)
	default:
		return principal.Principal{}, principal.ErrInvalidPrincipal
	}
	if err := p.Validate(); err != nil {
		return principal.Principal{}, err
	}
	return p, nil
}

// TokenPair is the credential set returned on login, register and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshClaims is the decoded form of a valid refresh token.
type RefreshClaims struct {
	Principal principal.Principal
	TokenID   string
	// ExpiresAt is zero when the token carries no exp claim.
	ExpiresAt time.Time
}

// HasExpiry reports whether the token carried an exp claim.
func (c *RefreshClaims) HasExpiry() bool { return !c.ExpiresAt.IsZero() }

// Codec signs and verifies HS256 tokens. It is safe for concurrent use.
type Codec struct {
	cfg           Config
	accessParser  *jwt.Parser
	refreshParser *jwt.Parser
}

// NewCodec validates cfg and builds a Codec. Zero TTLs and issuer fall back to
// the defaults.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Codec{cfg: cfg}
	c.accessParser = c.newParser()
	c.refreshParser = c.newParser()
	return c, nil
}

func (c *Codec) newParser() *jwt.Parser {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithTimeFunc(c.cfg.Now),
		jwt.WithStrictDecoding(),
	}
	if c.cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.cfg.Leeway))
	}
	return jwt.NewParser(options...)
}

// AccessTTL returns the configured access-token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.cfg.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.cfg.RefreshTTL }

// GenerateTokenPair signs an access and a refresh token from the same payload.
func (c *Codec) GenerateTokenPair(p principal.Principal) (TokenPair, error) {
	access, err := c.GenerateAccessToken(p)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := c.sign(p, c.cfg.RefreshSecret, c.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// GenerateAccessToken signs an access token only.
func (c *Codec) GenerateAccessToken(p principal.Principal) (string, error) {
	return c.sign(p, c.cfg.AccessSecret, c.cfg.AccessTTL)
}

func (c *Codec) sign(p principal.Principal, secret []byte, ttl time.Duration) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	now := c.cfg.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			// jti keeps tokens issued within the same second distinct.
			ID: uuid.NewString(),
		},
	}
	switch p.Kind {
	case principal.KindUser:
		claims.User = &UserClaim{ID: p.ID}
	case principal.KindMember:
		claims.Member = &MemberClaim{ID: p.ID, Role: p.MemberRole}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken verifies signature, issuer and expiry against the access
// secret. Any failure yields false.
func (c *Codec) ValidateAccessToken(token string) (principal.Principal, bool) {
	claims, ok := c.parse(c.accessParser, token, c.cfg.AccessSecret)
	if !ok {
		return principal.Principal{}, false
	}
	p, err := claims.Principal()
	if err != nil {
		return principal.Principal{}, false
	}
	return p, true
}

// ValidateRefreshToken is ValidateAccessToken against the refresh secret. The
// result exposes the decoded expiry.
func (c *Codec) ValidateRefreshToken(token string) (*RefreshClaims, bool) {
	claims, ok := c.parse(c.refreshParser, token, c.cfg.RefreshSecret)
	if !ok {
		return nil, false
	}
	p, err := claims.Principal()
	if err != nil {
		return nil, false
	}
	out := &RefreshClaims{Principal: p, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, true
}

func (c *Codec) parse(parser *jwt.Parser, token string, secret []byte) (*Claims, bool) {
	if token == "" {
		return nil, false
	}
	parsed, err := parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return nil, false
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, false
	}
	return claims, true
}
