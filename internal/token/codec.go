package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"

	minSecretBytes = 32
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload carried by every session token. TokenVersion is a
// snapshot of the account's version counter at issue time; refresh tokens
// carry it too, so a version bump kills outstanding refresh tokens as well.
type Claims struct {
	jwt.RegisteredClaims
	Email        string `json:"email"`
	TokenVersion int    `json:"tokenVersion"`
	TokenType    string `json:"typ"`
}

// Codec signs and parses session tokens with a symmetric HS256 key.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type CodecOption func(*Codec)

// WithNowFunc overrides the codec's clock. Used by tests to simulate expiry.
func WithNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.now = now
	}
}

func NewCodec(secret string, accessTTL, refreshTTL time.Duration, options ...CodecOption) (*Codec, error) {
	if len(secret) < minSecretBytes {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes, got %d", minSecretBytes, len(secret))
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}

	c := &Codec{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

func (c *Codec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

func (c *Codec) IssueAccessToken(accountID, email string, tokenVersion int) (string, error) {
	return c.issue(accountID, email, tokenVersion, TypeAccess, c.accessTTL)
}

func (c *Codec) IssueRefreshToken(accountID, email string, tokenVersion int) (string, error) {
	return c.issue(accountID, email, tokenVersion, TypeRefresh, c.refreshTTL)
}

func (c *Codec) issue(accountID, email string, tokenVersion int, tokenType string, ttl time.Duration) (string, error) {
	now := c.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti keeps two tokens minted in the same second distinct,
			// so revoking one never blacklists the other.
			ID:        uuid.NewString(),
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:        email,
		TokenVersion: tokenVersion,
		TokenType:    tokenType,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}

	return signed, nil
}

// Decode verifies the signature and structure and returns the claims.
// Expired tokens still decode: expiry is a business rule checked separately,
// and logout needs the claims of a token regardless of freshness.
func (c *Codec) Decode(rawToken string) (Claims, error) {
	claims := Claims{}
	parsed, err := jwt.ParseWithClaims(rawToken, &claims, c.verificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}

	return claims, nil
}

// IsExpired reports whether the token's expiry is in the past. Malformed
// tokens and tokens without an expiry count as expired.
func (c *Codec) IsExpired(rawToken string) bool {
	claims, err := c.Decode(rawToken)
	if err != nil || claims.ExpiresAt == nil {
		return true
	}

	return c.now().UTC().After(claims.ExpiresAt.Time)
}

// Validate reports whether the token has a valid signature, a well-formed
// structure, and has not expired. All decode failures collapse to false.
func (c *Codec) Validate(rawToken string) bool {
	claims, err := c.Decode(rawToken)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}

	return !c.now().UTC().After(claims.ExpiresAt.Time)
}

// TimeUntilExpiry returns the remaining natural lifetime of the token. It is
// used to size revocation records so a blacklist entry never outlives the
// token it blocks. Returns zero for malformed or already-expired tokens.
func (c *Codec) TimeUntilExpiry(rawToken string) time.Duration {
	claims, err := c.Decode(rawToken)
	if err != nil || claims.ExpiresAt == nil {
		return 0
	}

	remaining := claims.ExpiresAt.Time.Sub(c.now().UTC())
	if remaining < 0 {
		return 0
	}

	return remaining
}

func (c *Codec) verificationKey(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return c.secret, nil
}
