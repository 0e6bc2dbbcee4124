package model

import "time"

// Member is a tenant-scoped identity representing a student/customer.
// It is distinct from a staff account; members book classes, hold
// credit packs and subscriptions.  Corresponds to the `members` table.
//
// Fields:
//  ID        – primary key identifier.
//  TenantID  – studio that owns this member record.
//  Email     – contact email used for notifications.
//  FirstName – given name used in notification templates.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Member struct {
	ID        uint64    // members.id
	TenantID  uint64    // members.tenant_id
	Email     string    // members.email
	FirstName string    // members.first_name
	CreatedAt time.Time // members.created_at
	UpdatedAt time.Time // members.updated_at
}

// Staff is a tenant-scoped operator account used by the scheduling API.
// Only the credential fields needed for login are modeled here.
type Staff struct {
	ID           uint64    // staff.id
	TenantID     uint64    // staff.tenant_id
	Email        string    // staff.email
	PasswordHash string    // staff.password_hash (bcrypt)
	Role         string    // staff.role (STAFF)
	IsActive     bool      // staff.is_active
	CreatedAt    time.Time // staff.created_at
	UpdatedAt    time.Time // staff.updated_at
}
