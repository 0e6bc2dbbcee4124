package model

import "time"

// Booking statuses.  All transitions are one-way: confirmed→cancelled,
// confirmed→no_show, waitlisted→confirmed (promotion), waitlisted→cancelled.
const (
	BookingStatusConfirmed  = "confirmed"
	BookingStatusWaitlisted = "waitlisted"
	BookingStatusCancelled  = "cancelled"
	BookingStatusNoShow     = "no_show"
)

// Attendance types for a booking.
const (
	AttendanceInPerson = "in_person"
	AttendanceZoom     = "zoom"
)

// Booking links one Class to one Member.  Waitlisted bookings carry a
// dense, strictly-increasing position per class; the position is
// cleared on promotion and never reused until a promotion frees a
// slot.  Corresponds to the `bookings` table.
//
// Fields:
//  ID                 – primary key identifier.
//  ClassID            – class being booked.
//  MemberID           – member who booked.
//  Status             – confirmed, waitlisted, cancelled or no_show.
//  WaitlistPosition   – 1-based rank while waitlisted, nil otherwise.
//  UsedPackID         – credit pack debited for this booking, if any.
//  CheckedInAt        – when the member checked in (nil = not checked in).
//  AttendanceType     – in_person or zoom.
//  WaitlistNotifiedAt – when the member was told about their promotion.
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last update timestamp.
type Booking struct {
	ID                 uint64     // bookings.id
	ClassID            uint64     // bookings.class_id
	MemberID           uint64     // bookings.member_id
	Status             string     // bookings.status
	WaitlistPosition   *uint32    // bookings.waitlist_position (nullable)
	UsedPackID         *uint64    // bookings.used_pack_id (nullable)
	CheckedInAt        *time.Time // bookings.checked_in_at (nullable)
	AttendanceType     string     // bookings.attendance_type
	WaitlistNotifiedAt *time.Time // bookings.waitlist_notified_at (nullable)
	CreatedAt          time.Time  // bookings.created_at
	UpdatedAt          time.Time  // bookings.updated_at
}
