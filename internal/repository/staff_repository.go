package repository

import (
	"context"
	"database/sql"

	"github.com/slichti/studio-platform/internal/model"
)

// StaffRepo manages staff accounts: credential lookup for login and
// provisioning of new accounts.
type StaffRepo struct {
	db *sql.DB
}

// NewStaffRepo returns a new StaffRepo bound to the given database.
func NewStaffRepo(db *sql.DB) *StaffRepo { return &StaffRepo{db: db} }

// Create inserts a new active staff account and fills in its id.
// Returns ErrStaffExists when the email is already taken within the
// tenant.
func (r *StaffRepo) Create(ctx context.Context, s *model.Staff) error {
	var exists int
	const dup = `SELECT COUNT(*) FROM staff WHERE tenant_id = ? AND email = ?`
	if err := r.db.QueryRowContext(ctx, dup, s.TenantID, s.Email).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return ErrStaffExists
	}
	const q = `INSERT INTO staff (tenant_id, email, password_hash, role, is_active)
               VALUES (?, ?, ?, ?, 1)`
	result, err := r.db.ExecContext(ctx, q, s.TenantID, s.Email, s.PasswordHash, s.Role)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.IsActive = true
	return nil
}

// GetByEmail returns the active staff account with the given email,
// scoped to the tenant, or ErrStaffNotFound.  The password hash is
// included for verification by the caller.
func (r *StaffRepo) GetByEmail(ctx context.Context, tenantID uint64, email string) (*model.Staff, error) {
	const q = `SELECT id, tenant_id, email, password_hash, role, is_active, created_at, updated_at
               FROM staff WHERE tenant_id = ? AND email = ? AND is_active = 1`
	var s model.Staff
	err := r.db.QueryRowContext(ctx, q, tenantID, email).Scan(
		&s.ID, &s.TenantID, &s.Email, &s.PasswordHash, &s.Role, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrStaffNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
