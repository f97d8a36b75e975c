package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	s := NewAuthService("test-secret")

	hash, err := s.HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	t.Run("correct password verifies", func(t *testing.T) {
		require.NoError(t, s.CheckPassword(hash, "hunter22"))
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		err := s.CheckPassword(hash, "hunter23")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestJWTRoundTrip(t *testing.T) {
	s := NewAuthService("test-secret")

	token, err := s.CreateJWT(42, "alice")
	require.NoError(t, err)

	claims, err := s.VerifyJWT(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestVerifyJWTRejections(t *testing.T) {
	s := NewAuthService("test-secret")

	t.Run("empty token", func(t *testing.T) {
		_, err := s.VerifyJWT("")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := s.VerifyJWT("not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		other := NewAuthService("another-secret")
		token, err := other.CreateJWT(42, "alice")
		require.NoError(t, err)

		_, err = s.VerifyJWT(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("tampered token", func(t *testing.T) {
		token, err := s.CreateJWT(42, "alice")
		require.NoError(t, err)

		_, err = s.VerifyJWT(token + "x")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			UserID:   42,
			Username: "alice",
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-8 * 24 * time.Hour)),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		})
		token, err := expired.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = s.VerifyJWT(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
