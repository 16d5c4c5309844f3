// Package token issues and verifies the signed access and refresh tokens
// carried in the Authorization header.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// KindRefresh marks a refresh token. Access tokens carry no kind.
const KindRefresh = "refresh"

// MinSecretLength is the shortest HMAC key accepted by NewCodec.
const MinSecretLength = 32

var (
	// ErrInvalidToken signals a malformed token, a bad signature or an issuer mismatch.
	ErrInvalidToken = errors.New("token: invalid")
	// ErrExpired signals a token whose expiry is not after the current time.
	ErrExpired = errors.New("token: expired")
)

// Identity is the data a token is minted from.
type Identity struct {
	UserID        int64
	Email         string
	Nom           string
	Prenom        string
	Role          string
	RegionID      *int64
	SupervisionID *int64
	BranchID      *int64
}

// Claims is the decoded payload. Organizational ids are nil when the
// identity has no placement at that level.
type Claims struct {
	UserID        int64  `json:"userId"`
	Nom           string `json:"nom,omitempty"`
	Prenom        string `json:"prenom,omitempty"`
	Role          string `json:"role,omitempty"`
	RegionID      *int64 `json:"regionId,omitempty"`
	SupervisionID *int64 `json:"supervisionId,omitempty"`
	BranchID      *int64 `json:"brancheId,omitempty"`
	Kind          string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// IsRefresh reports whether the claims belong to a refresh token.
func (c *Claims) IsRefresh() bool {
	return c.Kind == KindRefresh
}

// Codec signs and verifies HS256 tokens for a single issuer.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	newID      func() string
}

// NewCodec builds a Codec. The secret is read-only after construction.
func NewCodec(secret, issuer string, accessTTL, refreshTTL time.Duration) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("token: secret must be at least %d bytes", MinSecretLength)
	}
	if issuer == "" {
		return nil, fmt.Errorf("token: issuer is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("token: ttl must be positive")
	}
	return &Codec{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
		newID:      uuid.NewString,
	}, nil
}

// WithClock overrides the time source used for issuing and verifying.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	if now != nil {
		c.now = now
	}
	return c
}

// WithIDGenerator overrides the token id generator.
func (c *Codec) WithIDGenerator(gen func() string) *Codec {
	if gen != nil {
		c.newID = gen
	}
	return c
}

// AccessTTL returns the lifetime of access tokens.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the lifetime of refresh tokens.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccessToken mints a short-lived token carrying role and placement.
func (c *Codec) IssueAccessToken(id Identity) (string, error) {
	claims := Claims{
		UserID:           id.UserID,
		Nom:              id.Nom,
		Prenom:           id.Prenom,
		Role:             id.Role,
		RegionID:         id.RegionID,
		SupervisionID:    id.SupervisionID,
		BranchID:         id.BranchID,
		RegisteredClaims: c.registered(id.Email, c.accessTTL),
	}
	return c.sign(claims)
}

// IssueRefreshToken mints a long-lived token with only subject, user id and
// the refresh marker, so renewal has to resolve the identity again.
func (c *Codec) IssueRefreshToken(id Identity) (string, error) {
	claims := Claims{
		UserID:           id.UserID,
		Kind:             KindRefresh,
		RegisteredClaims: c.registered(id.Email, c.refreshTTL),
	}
	return c.sign(claims)
}

// Verify checks signature, issuer and expiry and returns the claims.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	// expiresAt == now counts as expired.
	if !c.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrExpired
	}
	if claims.Subject == "" || claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: missing subject or user id", ErrInvalidToken)
	}
	return claims, nil
}

// IsRefreshToken reports whether tokenString is a valid refresh token.
// Any verification failure yields false.
func (c *Codec) IsRefreshToken(tokenString string) bool {
	claims, err := c.Verify(tokenString)
	if err != nil {
		return false
	}
	return claims.IsRefresh()
}

// Remaining returns how long a correctly signed token has left to live,
// ignoring expiry and issuer checks. It returns 0 when the token cannot be
// read or is already past its expiry.
func (c *Codec) Remaining(tokenString string) time.Duration {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || claims.ExpiresAt == nil {
		return 0
	}
	left := claims.ExpiresAt.Sub(c.now())
	if left < 0 {
		return 0
	}
	return left
}

func (c *Codec) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := c.now()
	return jwt.RegisteredClaims{
		ID:        c.newID(),
		Subject:   subject,
		Issuer:    c.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (c *Codec) sign(claims Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return c.secret, nil
}
