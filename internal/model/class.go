package model

import "time"

// Class statuses.  Classes are soft-cancelled, never deleted.
const (
	ClassStatusActive    = "active"
	ClassStatusCancelled = "cancelled"
)

// Class represents a scheduled group class.  Its end time is derived
// from StartsAt plus DurationMinutes.  Capacity and waitlist capacity
// are nullable; nil means unlimited.  Corresponds to the `classes` table.
//
// Fields:
//  ID               – primary key identifier.
//  TenantID         – studio that owns the class.
//  Title            – class title shown to members.
//  StartsAt         – when the class begins (UTC).
//  DurationMinutes  – length of the class in minutes.
//  Capacity         – maximum confirmed bookings (nil = unlimited).
//  WaitlistCapacity – maximum waitlisted bookings (nil = unlimited).
//  Status           – active or cancelled.
//  InstructorID     – assigned instructor (nil if unassigned).
//  LocationID       – assigned room (nil if unassigned).
//  AllowCredits     – whether credit packs may pay for this class.
//  IncludedPlanIDs  – membership plan ids that cover this class for free.
//  ZoomURL          – optional video link for remote attendance.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Class struct {
	ID               uint64    // classes.id
	TenantID         uint64    // classes.tenant_id
	Title            string    // classes.title
	StartsAt         time.Time // classes.starts_at
	DurationMinutes  uint32    // classes.duration_minutes
	Capacity         *uint32   // classes.capacity (nullable)
	WaitlistCapacity *uint32   // classes.waitlist_capacity (nullable)
	Status           string    // classes.status
	InstructorID     *uint64   // classes.instructor_id (nullable)
	LocationID       *uint64   // classes.location_id (nullable)
	AllowCredits     bool      // classes.allow_credits
	IncludedPlanIDs  []uint64  // classes.included_plan_ids (JSON column)
	ZoomURL          *string   // classes.zoom_url (nullable)
	CreatedAt        time.Time // classes.created_at
	UpdatedAt        time.Time // classes.updated_at
}

// EndsAt returns the exclusive end of the class interval.  Scheduling
// treats intervals as half-open [StartsAt, EndsAt), so a class ending
// exactly when another begins does not conflict with it.
func (c *Class) EndsAt() time.Time {
	return c.StartsAt.Add(time.Duration(c.DurationMinutes) * time.Minute)
}
