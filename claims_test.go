package users_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
)

func TestJWTClaims(t *testing.T) {
	now := time.Now()

	t.Run("exposes registered claims", func(t *testing.T) {
		claims := &users.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-123",
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			},
			UID: "user-123",
		}

		assert.Equal(t, "user-123", claims.Subject())
		assert.Equal(t, "user-123", claims.UserID())
		assert.Equal(t, now.Unix(), claims.IssuedAt().Unix())
		assert.Equal(t, now.Add(24*time.Hour).Unix(), claims.Expires().Unix())
	})

	t.Run("user id falls back to subject", func(t *testing.T) {
		claims := &users.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject: "user-456",
			},
		}

		assert.Equal(t, "user-456", claims.UserID())
	})

	t.Run("zero times when unset", func(t *testing.T) {
		claims := &users.JWTClaims{}

		assert.True(t, claims.Expires().IsZero())
		assert.True(t, claims.IssuedAt().IsZero())
	})
}
