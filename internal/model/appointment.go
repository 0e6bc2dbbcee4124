package model

import "time"

// Appointment statuses.
const (
	AppointmentStatusConfirmed = "confirmed"
	AppointmentStatusCancelled = "cancelled"
)

// Appointment is a separately-scheduled 1:1 event (e.g. personal
// training) that competes for the same instructor and room resources
// as a Class.  Unlike a class, its end time is stored absolutely
// rather than derived from a duration.  Corresponds to the
// `appointments` table.
//
// Fields:
//  ID           – primary key identifier.
//  TenantID     – studio that owns the appointment.
//  MemberID     – member attending the session.
//  InstructorID – instructor delivering the session (nil if unassigned).
//  LocationID   – room where the session takes place (nil if unassigned).
//  Title        – short description of the session.
//  StartsAt     – when the session begins (UTC).
//  EndsAt       – when the session ends (UTC, exclusive).
//  Status       – confirmed or cancelled.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type Appointment struct {
	ID           uint64    // appointments.id
	TenantID     uint64    // appointments.tenant_id
	MemberID     uint64    // appointments.member_id
	InstructorID *uint64   // appointments.instructor_id (nullable)
	LocationID   *uint64   // appointments.location_id (nullable)
	Title        string    // appointments.title
	StartsAt     time.Time // appointments.starts_at
	EndsAt       time.Time // appointments.ends_at
	Status       string    // appointments.status
	CreatedAt    time.Time // appointments.created_at
	UpdatedAt    time.Time // appointments.updated_at
}
