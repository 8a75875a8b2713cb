package server

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTService(t *testing.T) {
	_, err := NewJWTService("", time.Hour)
	assert.Error(t, err)

	s, err := NewJWTService(testSecret, 0)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, s.ttl)
}

func TestJWTService_RoundTrip(t *testing.T) {
	s, err := NewJWTService(testSecret, time.Hour)
	require.NoError(t, err)

	token, err := s.GenerateToken("revisor")
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "revisor", claims.Subject)
	assert.Equal(t, issuer, claims.Issuer)

	subject, err := s.AsTokenValidator().ValidateToken(token)
	require.NoError(t, err)
	got, err := subject.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, "revisor", got)
}

func TestJWTService_GenerateRequiresSubject(t *testing.T) {
	s, err := NewJWTService(testSecret, time.Hour)
	require.NoError(t, err)

	_, err = s.GenerateToken("")
	assert.Error(t, err)
}

func TestJWTService_Rejects(t *testing.T) {
	s, err := NewJWTService(testSecret, time.Hour)
	require.NoError(t, err)

	other, err := NewJWTService("another-secret", time.Hour)
	require.NoError(t, err)
	forged, err := other.GenerateToken("revisor")
	require.NoError(t, err)

	issued := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	old, err := NewJWTService(testSecret, time.Hour)
	require.NoError(t, err)
	old.now = func() time.Time { return issued }
	expired, err := old.GenerateToken("revisor")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "revisor", Issuer: issuer}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"empty", "", "empty"},
		{"malformed", "not.a.jwt", "malformed"},
		{"wrong secret", forged, "signature"},
		{"expired", expired, "expired"},
		{"alg none", unsigned, "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ValidateToken(tt.token)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
