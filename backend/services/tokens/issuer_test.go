package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/authflow/backend/models"
)

var testSecret = []byte("test-signing-secret")

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestIssuer(t *testing.T) (*Issuer, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	issuer, err := NewIssuer(Config{Secret: testSecret, TTL: DefaultAccessTTL, Now: clock.Now})
	require.NoError(t, err)
	return issuer, clock
}

func testUser() *models.User {
	return models.NewUser("Alice", "alice@example.com", "hash", time.Now())
}

func TestNewIssuer(t *testing.T) {
	_, err := NewIssuer(Config{TTL: time.Minute})
	assert.Error(t, err, "secret is required")

	_, err = NewIssuer(Config{Secret: testSecret})
	assert.Error(t, err, "ttl is required")

	issuer, err := NewIssuer(Config{Secret: testSecret, TTL: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, issuer.TTL())
}

func TestIssuer_IssueAndVerify(t *testing.T) {
	issuer, clock := newTestIssuer(t)
	user := testUser()

	token, err := issuer.IssueAccessToken(user)
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, clock.now, claims.IssuedAt.Time.UTC())
	assert.Equal(t, 15*time.Minute, claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time))
}

func TestIssuer_ExpiresAfterFifteenMinutes(t *testing.T) {
	issuer, clock := newTestIssuer(t)

	token, err := issuer.IssueAccessToken(testUser())
	require.NoError(t, err)

	clock.Advance(15*time.Minute - time.Second)
	_, err = issuer.Verify(token)
	assert.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestIssuer_RejectsTampering(t *testing.T) {
	issuer, clock := newTestIssuer(t)
	user := testUser()

	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(clock.now),
			ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Minute)),
		},
	}

	otherKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("another-secret"))
	require.NoError(t, err)

	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString(testSecret)
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID.String()},
	}).SignedString(testSecret)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Minute)),
		},
	}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"bad signature", otherKey},
		{"wrong algorithm", wrongAlg},
		{"none algorithm", noneAlg},
		{"missing expiry", noExpiry},
		{"missing subject", noSubject},
		{"garbage", "not.a.token"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIssuer_ValidateToken(t *testing.T) {
	issuer, clock := newTestIssuer(t)
	user := testUser()

	token, err := issuer.IssueAccessToken(user)
	require.NoError(t, err)

	claims, err := issuer.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Sub)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, clock.now.Add(15*time.Minute).Unix(), claims.Exp)
	assert.Equal(t, clock.now.Unix(), claims.Iat)

	_, err = uuid.Parse(claims.Sub)
	assert.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = issuer.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("some-token")
	assert.Len(t, fp, 8)
	assert.Equal(t, fp, Fingerprint("some-token"))
	assert.NotEqual(t, fp, Fingerprint("other-token"))
	assert.NotContains(t, fp, "some-token")
}
