package model

import "time"

// Tenant represents an isolated studio/business account.  Every other
// entity in the system is scoped to exactly one tenant.  This struct
// corresponds to a row in the `tenants` table.
//
// Fields:
//  ID             – primary key identifier.
//  Name           – display name of the studio.
//  NoShowFeeCents – optional fee charged when a member misses a class
//                   (nil means the studio has no no-show fee configured).
//  CreatedAt      – timestamp when the tenant was created.
//  UpdatedAt      – timestamp of last update.
type Tenant struct {
	ID             uint64    // tenants.id
	Name           string    // tenants.name
	NoShowFeeCents *uint32   // tenants.no_show_fee_cents (nullable)
	CreatedAt      time.Time // tenants.created_at
	UpdatedAt      time.Time // tenants.updated_at
}
