package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestCodec(t *testing.T, ttl time.Duration, now time.Time) *TokenCodec {
	t.Helper()
	c, err := NewTokenCodec(testSecret, ttl)
	require.NoError(t, err)
	c.now = func() time.Time { return now }
	return c
}

func TestNewTokenCodec(t *testing.T) {
	_, err := NewTokenCodec(nil, time.Hour)
	assert.Error(t, err)

	_, err = NewTokenCodec(testSecret, 0)
	assert.Error(t, err)

	c, err := NewTokenCodec(testSecret, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, c.TTL())
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, 7*24*time.Hour, now)

	for _, subject := range []string{"a", "5f1c6d0e-3b7a-4c59-9d0e-8a5b2f3c1d4e", "user with spaces"} {
		token, err := c.Issue(subject)
		require.NoError(t, err)

		got, err := c.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, subject, got)

		// Repeated verification has no side effects
		again, err := c.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, got, again)
	}
}

func TestTokenCodec_IssueRequiresSubject(t *testing.T) {
	c := newTestCodec(t, time.Hour, time.Now())
	_, err := c.Issue("")
	assert.Error(t, err)
}

func TestTokenCodec_ClaimsAreMinimal(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, time.Hour, now)

	token, err := c.Issue("abc")
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)

	assert.Len(t, claims, 3)
	assert.Equal(t, "abc", claims["sub"])
	assert.EqualValues(t, now.Unix(), claims["iat"])
	assert.EqualValues(t, now.Add(time.Hour).Unix(), claims["exp"])
}

func TestTokenCodec_ExpiryBoundary(t *testing.T) {
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, time.Hour, issued)

	token, err := c.Issue("abc")
	require.NoError(t, err)

	tests := []struct {
		name    string
		at      time.Time
		wantErr error
	}{
		{"just before expiry", issued.Add(time.Hour - time.Nanosecond), nil},
		{"exactly at expiry", issued.Add(time.Hour), ErrTokenExpired},
		{"after expiry", issued.Add(2 * time.Hour), ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.now = func() time.Time { return tt.at }
			subject, err := c.Verify(token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, subject)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "abc", subject)
		})
	}
}

func TestTokenCodec_VerifyFailures(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, time.Hour, now)

	valid, err := c.Issue("abc")
	require.NoError(t, err)

	other, err := NewTokenCodec([]byte("another-secret-another-secret-xx"), time.Hour)
	require.NoError(t, err)
	other.now = c.now
	foreign, err := other.Issue("abc")
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	require.Len(t, parts, 3)
	tamperedPayload, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SigningString()
	require.NoError(t, err)
	tampered := tamperedPayload + "." + parts[2]

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "abc",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "abc",
	}).SignedString(testSecret)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty", "", ErrTokenMalformed},
		{"garbage", "not-a-token", ErrTokenMalformed},
		{"bad base64", "a.b.c", ErrTokenMalformed},
		{"signed with another secret", foreign, ErrTokenInvalid},
		{"tampered payload", tampered, ErrTokenInvalid},
		{"alg none", noneToken, ErrTokenInvalid},
		{"missing expiry", noExpiry, ErrTokenInvalid},
		{"missing subject", noSubject, ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, err := c.Verify(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, subject)
		})
	}
}

func TestParseLifetime(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"7d", 7 * 24 * time.Hour, false},
		{"90d", 90 * 24 * time.Hour, false},
		{"12h", 12 * time.Hour, false},
		{" 30m ", 30 * time.Minute, false},
		{"0d", 0, true},
		{"-1h", 0, true},
		{"xd", 0, true},
		{"forever", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLifetime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
