// Package revocation tracks tokens invalidated before their natural expiry.
package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrUnavailable signals the backing store could not answer.
var ErrUnavailable = errors.New("revocation: store unavailable")

// Store is safe for concurrent use. A Revoke that returns nil is visible to
// every IsRevoked call made after it.
type Store interface {
	// Revoke records token as revoked for ttl. A non-positive ttl falls back
	// to the store default. Revoking an already revoked token is a no-op.
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// TTLFunc reports how long a token still needs to stay revoked.
type TTLFunc func(token string) time.Duration

// RevokeBoth revokes an access and a refresh token. Empty arguments are skipped.
func RevokeBoth(ctx context.Context, s Store, ttl TTLFunc, accessToken, refreshToken string) error {
	for _, tok := range []string{accessToken, refreshToken} {
		if tok == "" {
			continue
		}
		var d time.Duration
		if ttl != nil {
			d = ttl(tok)
		}
		if err := s.Revoke(ctx, tok, d); err != nil {
			return err
		}
	}
	return nil
}

// fingerprint keys entries by digest so raw tokens are never held as keys.
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
