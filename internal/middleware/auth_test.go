package middleware

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateReturnsUserID(t *testing.T) {
	v := NewJWTValidator("secret")
	token := signToken(t, "secret", jwt.MapClaims{
		"user_id": float64(42),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	userID, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, 42, userID)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	v := NewJWTValidator("secret")
	token := signToken(t, "other", jwt.MapClaims{"user_id": float64(42)})

	_, err := v.Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsMissingUserID(t *testing.T) {
	v := NewJWTValidator("secret")
	token := signToken(t, "secret", jwt.MapClaims{"sub": "42"})

	_, err := v.Validate(token)
	assert.Error(t, err)
}
