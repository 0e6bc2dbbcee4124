package service

import (
	"context"
	"time"
)

// Automation trigger event names dispatched by this core.
const (
	TriggerClassBooked         = "class_booked"
	TriggerCreditsLow          = "credits_low"
	TriggerWaitlistJoined      = "waitlist_joined"
	TriggerBookingCancelled    = "booking_cancelled"
	TriggerWaitlistPromoted    = "waitlist_promoted"
	TriggerClassNoShow         = "class_noshow"
	TriggerAttendanceMilestone = "attendance_milestone"
)

// Webhook event types dispatched by this core.
const (
	WebhookBookingCreated    = "booking.created"
	WebhookBookingCancelled  = "booking.cancelled"
	WebhookBookingCheckedIn  = "booking.checked_in"
	WebhookBookingCheckedOut = "booking.checked_out"
)

// BookingConfirmation carries the details rendered into a booking
// confirmation (or waitlist promotion) notification.
type BookingConfirmation struct {
	Title    string
	StartsAt time.Time
	ZoomURL  *string
	BookedBy string
}

// TriggerPayload identifies the member an automation trigger fires for
// plus arbitrary event data.
type TriggerPayload struct {
	MemberID  uint64
	Email     string
	FirstName string
	Data      map[string]any
}

// ProgressEntry is one attendance metric sample forwarded to the
// progress-tracking collaborator on check-in.
type ProgressEntry struct {
	MemberID           uint64
	MetricDefinitionID string
	Value              float64
	Source             string
	Metadata           map[string]any
	RecordedAt         time.Time
}

// Notifier delivers transactional email.  Implementations are
// best-effort: errors are logged by the caller and never abort the
// primary operation.
type Notifier interface {
	SendBookingConfirmation(ctx context.Context, email string, info BookingConfirmation) error
	SendGenericEmail(ctx context.Context, email, subject, html string) error
}

// TriggerDispatcher hands events to the marketing-automation
// collaborator.  Fire-and-forget.
type TriggerDispatcher interface {
	DispatchTrigger(ctx context.Context, event string, p TriggerPayload) error
}

// WebhookDispatcher queues a signed JSON envelope for delivery to the
// tenant's configured endpoints.  Fire-and-forget.
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, tenantID uint64, eventType string, data map[string]any) error
}

// ProgressTracker records attendance metrics for milestone evaluation.
type ProgressTracker interface {
	LogEntry(ctx context.Context, e ProgressEntry) error
	AttendanceCount(ctx context.Context, memberID uint64) (int, error)
}

// TaskRunner schedules fire-and-forget work.  Implementations must
// never block the caller; when the runner is saturated the task is
// dropped and logged, never propagated.
type TaskRunner interface {
	Go(name string, fn func(ctx context.Context) error)
}
