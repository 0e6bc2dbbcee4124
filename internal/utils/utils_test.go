package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple", bcrypt.MinCost)
	assert.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "correct horse battery staple"))
	assert.False(t, VerifyPassword(hash, "wrong password"))
}

func TestHashPassword_OutOfRangeCostFallsBack(t *testing.T) {
	hash, err := HashPassword("pw", 99)
	assert.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "pw"))
}

func TestNewAccessToken_RoundTripsClaims(t *testing.T) {
	signed, err := NewAccessToken("test-secret", 42, 7, "STAFF", 15)
	assert.NoError(t, err)

	tok, err := jwt.Parse(signed, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	assert.NoError(t, err)
	assert.True(t, tok.Valid)

	claims, ok := tok.Claims.(jwt.MapClaims)
	assert.True(t, ok)
	assert.EqualValues(t, 42, claims["sub"])
	assert.EqualValues(t, 7, claims["tenant_id"])
	assert.Equal(t, "STAFF", claims["role"])
}

func TestNewAccessToken_RejectsWrongSecret(t *testing.T) {
	signed, err := NewAccessToken("test-secret", 42, 7, "MEMBER", 15)
	assert.NoError(t, err)

	_, err = jwt.Parse(signed, func(t *jwt.Token) (interface{}, error) {
		return []byte("other-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	assert.Error(t, err)
}
