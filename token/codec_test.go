package token

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func newTestCodec(t *testing.T, clock *fakeClock) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret, "prospection-app", 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	return c.WithClock(clock.Now)
}

func int64p(v int64) *int64 { return &v }

func sampleIdentity() Identity {
	return Identity{
		UserID:        42,
		Email:         "agent@example.com",
		Nom:           "Alaoui",
		Prenom:        "Sara",
		Role:          "AGENT",
		RegionID:      int64p(1),
		SupervisionID: int64p(2),
		BranchID:      int64p(3),
	}
}

func payload(t *testing.T, tok string) map[string]any {
	t.Helper()
	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestNewCodec_RejectsWeakConfig(t *testing.T) {
	_, err := NewCodec("short", "iss", time.Minute, time.Hour)
	assert.Error(t, err)
	_, err = NewCodec(testSecret, "", time.Minute, time.Hour)
	assert.Error(t, err)
	_, err = NewCodec(testSecret, "iss", 0, time.Hour)
	assert.Error(t, err)
}

func TestCodec_AccessRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	c := newTestCodec(t, clock)
	id := sampleIdentity()

	tok, err := c.IssueAccessToken(id)
	require.NoError(t, err)

	claims, err := c.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, id.Email, claims.Subject)
	assert.Equal(t, id.UserID, claims.UserID)
	assert.Equal(t, "AGENT", claims.Role)
	assert.Equal(t, "Alaoui", claims.Nom)
	require.NotNil(t, claims.RegionID)
	require.NotNil(t, claims.SupervisionID)
	require.NotNil(t, claims.BranchID)
	assert.Equal(t, int64(1), *claims.RegionID)
	assert.Equal(t, int64(2), *claims.SupervisionID)
	assert.Equal(t, int64(3), *claims.BranchID)
	assert.Equal(t, clock.t, claims.IssuedAt.Time.UTC())
	assert.Equal(t, claims.IssuedAt.Add(15*time.Minute), claims.ExpiresAt.Time)
	assert.False(t, claims.IsRefresh())
}

func TestCodec_UserIDIsIntegerClaim(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)})
	tok, err := c.IssueAccessToken(sampleIdentity())
	require.NoError(t, err)

	p := payload(t, tok)
	v, ok := p["userId"].(float64)
	require.True(t, ok, "userId should be a JSON number, got %T", p["userId"])
	assert.Equal(t, float64(42), v)
}

func TestCodec_OmitsAbsentPlacement(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	c := newTestCodec(t, clock)
	id := Identity{UserID: 7, Email: "hq@example.com", Role: "SIEGE"}

	tok, err := c.IssueAccessToken(id)
	require.NoError(t, err)

	p := payload(t, tok)
	for _, key := range []string{"regionId", "supervisionId", "brancheId", "type"} {
		_, present := p[key]
		assert.False(t, present, "claim %s should be omitted", key)
	}

	claims, err := c.Verify(tok)
	require.NoError(t, err)
	assert.Nil(t, claims.RegionID)
	assert.Nil(t, claims.SupervisionID)
	assert.Nil(t, claims.BranchID)
}

func TestCodec_ZeroPlacementIsNotAbsent(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)})
	id := Identity{UserID: 7, Email: "x@example.com", Role: "CHEF_ANIMATION_REGIONAL", RegionID: int64p(0)}

	tok, err := c.IssueAccessToken(id)
	require.NoError(t, err)
	claims, err := c.Verify(tok)
	require.NoError(t, err)
	require.NotNil(t, claims.RegionID)
	assert.Equal(t, int64(0), *claims.RegionID)
}

func TestCodec_RefreshCarriesMinimalClaims(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	c := newTestCodec(t, clock)

	tok, err := c.IssueRefreshToken(sampleIdentity())
	require.NoError(t, err)

	p := payload(t, tok)
	assert.Equal(t, "refresh", p["type"])
	for _, key := range []string{"role", "nom", "prenom", "regionId", "supervisionId", "brancheId"} {
		_, present := p[key]
		assert.False(t, present, "refresh token should not carry %s", key)
	}

	claims, err := c.Verify(tok)
	require.NoError(t, err)
	assert.True(t, claims.IsRefresh())
	assert.Equal(t, "agent@example.com", claims.Subject)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, claims.IssuedAt.Add(7*24*time.Hour), claims.ExpiresAt.Time)
}

func TestCodec_ExpiryBoundary(t *testing.T) {
	issued := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: issued}
	c := newTestCodec(t, clock)

	tok, err := c.IssueAccessToken(sampleIdentity())
	require.NoError(t, err)
	expiry := issued.Add(15 * time.Minute)

	clock.t = expiry.Add(-time.Second)
	_, err = c.Verify(tok)
	assert.NoError(t, err, "one second before expiry should be valid")

	clock.t = expiry
	_, err = c.Verify(tok)
	assert.ErrorIs(t, err, ErrExpired, "expiry equal to now should be expired")

	clock.t = expiry.Add(time.Second)
	_, err = c.Verify(tok)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestCodec_RejectsForeignTokens(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	c := newTestCodec(t, clock)

	other, err := NewCodec("ffffffffffffffffffffffffffffffff", "prospection-app", time.Minute, time.Hour)
	require.NoError(t, err)
	otherTok, err := other.WithClock(clock.Now).IssueAccessToken(sampleIdentity())
	require.NoError(t, err)
	_, err = c.Verify(otherTok)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong secret")

	wrongIss, err := NewCodec(testSecret, "someone-else", time.Minute, time.Hour)
	require.NoError(t, err)
	issTok, err := wrongIss.WithClock(clock.Now).IssueAccessToken(sampleIdentity())
	require.NoError(t, err)
	_, err = c.Verify(issTok)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong issuer")

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: 42,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "agent@example.com",
			Issuer:    "prospection-app",
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = c.Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken, "alg none")

	_, err = c.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_IsRefreshToken(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	c := newTestCodec(t, clock)

	access, err := c.IssueAccessToken(sampleIdentity())
	require.NoError(t, err)
	refresh, err := c.IssueRefreshToken(sampleIdentity())
	require.NoError(t, err)

	assert.True(t, c.IsRefreshToken(refresh))
	assert.False(t, c.IsRefreshToken(access))
	assert.False(t, c.IsRefreshToken(""))
	assert.False(t, c.IsRefreshToken("a.b.c"))

	clock.t = clock.t.Add(8 * 24 * time.Hour)
	assert.False(t, c.IsRefreshToken(refresh), "expired refresh token")
}

func TestCodec_DistinctIDsWithinSameSecond(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)})
	a, err := c.IssueAccessToken(sampleIdentity())
	require.NoError(t, err)
	b, err := c.IssueAccessToken(sampleIdentity())
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCodec_Remaining(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	c := newTestCodec(t, clock)
	tok, err := c.IssueAccessToken(sampleIdentity())
	require.NoError(t, err)

	clock.t = clock.t.Add(5 * time.Minute)
	assert.Equal(t, 10*time.Minute, c.Remaining(tok))

	clock.t = clock.t.Add(time.Hour)
	assert.Zero(t, c.Remaining(tok))
	assert.Zero(t, c.Remaining("garbage"))
}

func TestCodec_TokenIDFromGenerator(t *testing.T) {
	n := 0
	c := newTestCodec(t, &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}).
		WithIDGenerator(func() string {
			n++
			return "jti-" + string(rune('0'+n))
		})
	assert.Equal(t, 15*time.Minute, c.AccessTTL())
	assert.Equal(t, 7*24*time.Hour, c.RefreshTTL())

	access, err := c.IssueAccessToken(sampleIdentity())
	require.NoError(t, err)
	refresh, err := c.IssueRefreshToken(sampleIdentity())
	require.NoError(t, err)

	assert.Equal(t, "jti-1", payload(t, access)["jti"])
	assert.Equal(t, "jti-2", payload(t, refresh)["jti"])

	claims, err := c.Verify(refresh)
	require.NoError(t, err)
	assert.Equal(t, "jti-2", claims.ID)
}
