package utils // utils contains helpers for token issuing and password hashing

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// NewAccessToken issues a signed HS256 access token for a staff or
// member account.  The subject is the account id; tenant_id scopes
// every subsequent request to the studio the account belongs to, and
// role drives the RequireRole middleware.
func NewAccessToken(secret string, accountID, tenantID uint64, role string, ttlMinutes int) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":       accountID,
		"tenant_id": tenantID,
		"role":      role,
		"iat":       now.Unix(),
		"exp":       now.Add(time.Duration(ttlMinutes) * time.Minute).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(secret))
}
