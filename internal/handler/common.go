package handler

import (
	"errors"

	"github.com/labstack/echo/v4"
)

// errNoIdentity is returned by the context helpers when the expected
// claim is missing, which means JWTAuth did not run or the token was
// issued without the claim.
var errNoIdentity = errors.New("missing identity in context")

// getUserID extracts the authenticated account id stored by JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	if v, ok := c.Get("user_id").(uint64); ok && v != 0 {
		return v, nil
	}
	return 0, errNoIdentity
}

// getTenantID extracts the tenant scope stored by JWTAuth.
func getTenantID(c echo.Context) (uint64, error) {
	if v, ok := c.Get("tenant_id").(uint64); ok && v != 0 {
		return v, nil
	}
	return 0, errNoIdentity
}

// getRole extracts the role claim stored by JWTAuth.
func getRole(c echo.Context) string {
	if v, ok := c.Get("role").(string); ok {
		return v
	}
	return ""
}
