package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the email is unknown so both failure
// paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("unused-credential"), bcrypt.DefaultCost)
	return h
})

// HashPassword derives a bcrypt hash at the default cost.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

// CredentialVerifier checks an email and password pair against stored hashes.
type CredentialVerifier struct {
	users IdentityResolver
}

// NewCredentialVerifier builds a verifier over an identity lookup.
func NewCredentialVerifier(users IdentityResolver) *CredentialVerifier {
	return &CredentialVerifier{users: users}
}

// Verify returns the active identity for the pair. Unknown, disabled and
// mismatching credentials all yield ErrInvalidCredentials.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (User, error) {
	user, err := v.users.FindActiveByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if !user.Active {
		return User{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// NormalizeEmail trims and lower-cases an email used as login key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
