package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte(strings.Repeat("s", 32))

func newIssuer(t *testing.T, now time.Time) *Issuer {
	t.Helper()
	i, err := NewIssuer(secret, "cloudbday", time.Hour)
	require.NoError(t, err)
	return i.WithClock(func() time.Time { return now })
}

// TestPurpose: Validates the admin token round trip.
// Scope: Unit Test
// Expected: Parsed claims carry namespace, role and lower-cased subject.
// Test Case ID: AUTH-01
func TestIssuer_AdminRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC)
	i := newIssuer(t, now)

	raw, err := i.Admin("acme", "Ada@Acme.com")
	require.NoError(t, err)

	c, err := i.Require(raw, RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "acme", c.Namespace)
	assert.Equal(t, "ada@acme.com", c.Email())
	assert.Equal(t, now.Add(time.Hour).Unix(), c.ExpiresAt.Unix())

	_, err = i.Require(raw, RoleScheduler)
	assert.ErrorIs(t, err, ErrWrongRole)
}

// TestPurpose: Validates rejection of expired, foreign and tampered tokens.
// Scope: Unit Test
// Expected: Each case returns ErrInvalidToken.
// Test Case ID: AUTH-02
func TestIssuer_Rejects(t *testing.T) {
	now := time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC)
	i := newIssuer(t, now)

	raw, err := i.Scheduler(time.Minute)
	require.NoError(t, err)

	later := newIssuer(t, now.Add(time.Hour))
	_, err = later.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewIssuer([]byte(strings.Repeat("x", 32)), "cloudbday", time.Hour)
	require.NoError(t, err)
	_, err = other.WithClock(func() time.Time { return now }).Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: RoleScheduler})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = i.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuer_ShortSecret(t *testing.T) {
	_, err := NewIssuer([]byte("short"), "cloudbday", 0)
	assert.ErrorIs(t, err, ErrShortSecret)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		assert.Equal(t, tt.want, got, tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
	}
}
