package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/slichti/studio-platform/internal/config"
	"github.com/slichti/studio-platform/internal/middleware"
	"github.com/slichti/studio-platform/internal/model"
	"github.com/slichti/studio-platform/internal/repository"
	"github.com/slichti/studio-platform/internal/utils"
)

// AuthHandler issues access tokens for staff accounts.  Member-facing
// auth (signup, password reset) lives with the member portal service;
// this API only needs staff login for the schedule and attendance
// endpoints.
type AuthHandler struct {
	StaffRepo *repository.StaffRepo
	Cfg       config.Config
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(staffRepo *repository.StaffRepo, cfg config.Config) *AuthHandler {
	if staffRepo == nil {
		panic("nil repository passed to NewAuthHandler")
	}
	return &AuthHandler{StaffRepo: staffRepo, Cfg: cfg}
}

// Login handles POST /v1/auth/login.  The request carries tenant_id,
// email and password; on success the response holds a bearer token
// scoped to the tenant with the staff role claim.  Unknown accounts
// and bad passwords are indistinguishable in the response.
func (h *AuthHandler) Login(c echo.Context) error {
	var body struct {
		TenantID uint64 `json:"tenant_id"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	if body.TenantID == 0 || body.Email == "" || body.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant_id, email and password are required"})
	}

	staff, err := h.StaffRepo.GetByEmail(c.Request().Context(), body.TenantID, body.Email)
	if err != nil {
		if errors.Is(err, repository.ErrStaffNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !utils.VerifyPassword(staff.PasswordHash, body.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	role := staff.Role
	if role == "" {
		role = middleware.RoleStaff
	}
	token, err := utils.NewAccessToken(h.Cfg.JWTSecret, staff.ID, staff.TenantID, role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to issue token"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   h.Cfg.AccessTTLMin * 60,
	})
}

// CreateStaff handles POST /v1/staff.  Existing staff provision new
// accounts for their own tenant; the password is hashed at the
// configured bcrypt cost before it touches the database.
func (h *AuthHandler) CreateStaff(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	if body.Email == "" || len(body.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and a password of at least 8 characters are required"})
	}

	hash, err := utils.HashPassword(body.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to hash password"})
	}
	staff := model.Staff{
		TenantID:     tenantID,
		Email:        body.Email,
		PasswordHash: hash,
		Role:         middleware.RoleStaff,
	}
	if err := h.StaffRepo.Create(c.Request().Context(), &staff); err != nil {
		if errors.Is(err, repository.ErrStaffExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create staff account"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":    staff.ID,
		"email": staff.Email,
		"role":  staff.Role,
	})
}
