package service

import (
	"context"
	"time"

	"github.com/slichti/studio-platform/internal/model"
)

// BookingDetail is a booking joined with its member and class so a
// single read resolves the tenant, the notification recipient and the
// class context.  Produced by the repository layer.
type BookingDetail struct {
	ID               uint64
	ClassID          uint64
	MemberID         uint64
	Status           string
	WaitlistPosition *uint32
	UsedPackID       *uint64
	CheckedIn        bool
	AttendanceType   string
	TenantID         uint64 // tenant owning the booking's member record
	MemberEmail      string
	MemberFirstName  string
	ClassTitle       string
	ClassStartsAt    time.Time
	ClassZoomURL     *string
}

// ClassFilter selects classes by time range and optional instructor or
// room for bulk operations.
type ClassFilter struct {
	From         time.Time
	To           time.Time
	InstructorID *uint64
	LocationID   *uint64
}

// ClassMove is one proposed start-time change in a bulk move.
type ClassMove struct {
	ClassID  uint64
	StartsAt time.Time
}

// MemberContact is the minimal member info needed to email affected
// students once during a bulk cancellation.
type MemberContact struct {
	MemberID  uint64
	Email     string
	FirstName string
}

// BookingTx exposes the single-transaction primitives the booking
// state machine needs.  LockClass must be called first: it takes a
// row lock on the class so capacity counts, inserts, promotions and
// pack debits for that class are serialized across concurrent
// requests.
type BookingTx interface {
	// LockClass loads the class under SELECT ... FOR UPDATE.
	LockClass(classID uint64) (*model.Class, error)
	// CountByStatus counts the class's bookings in the given status.
	CountByStatus(classID uint64, status string) (int, error)
	// NextWaitlistPosition returns MAX(position)+1 over the class's
	// currently-waitlisted bookings (1 when the waitlist is empty).
	// Positions held by live bookings survive mid-list cancellations,
	// so the next assignment must come from the max, not the count.
	NextWaitlistPosition(classID uint64) (uint32, error)
	// InsertBooking persists a new booking and fills in its id.
	InsertBooking(b *model.Booking) error
	// CancelBooking flips a booking to cancelled, clearing any waitlist
	// position, and reports the status it held beforehand.
	CancelBooking(bookingID uint64) (prevStatus string, err error)
	// NextWaitlisted returns the waitlisted booking with the lowest
	// position (ties broken by earliest created_at), or nil.
	NextWaitlisted(classID uint64) (*model.Booking, error)
	// Promote flips a waitlisted booking to confirmed, clears its
	// position and stamps waitlist_notified_at.  The update is keyed on
	// the current status so a raced promotion is a no-op.
	Promote(bookingID uint64) error
	// HasCoveringSubscription reports whether the member holds an
	// active subscription whose plan is in planIDs.
	HasCoveringSubscription(memberID uint64, planIDs []uint64) (bool, error)
	// FindDebitablePack returns the member's active pack with remaining
	// credits that expires soonest, locked for update, or nil.
	FindDebitablePack(memberID uint64) (*model.CreditPack, error)
	// DebitPack atomically decrements a pack's remaining credits when
	// they are still positive.  ok is false when the pack raced to zero.
	DebitPack(packID uint64) (remaining uint32, ok bool, err error)
	// RefundPack atomically increments remaining credits unless the
	// pack is already at its purchased allotment.  ok is false when the
	// refund was capped.
	RefundPack(packID uint64) (ok bool, err error)
}

// BookingStore is the persistence surface of the booking service.
type BookingStore interface {
	// WithTx runs fn inside one database transaction, committing when
	// fn returns nil and rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx BookingTx) error) error
	GetDetail(ctx context.Context, bookingID uint64) (*BookingDetail, error)
	GetMember(ctx context.Context, memberID uint64) (*model.Member, error)
	GetTenant(ctx context.Context, tenantID uint64) (*model.Tenant, error)
	SetCheckedIn(ctx context.Context, bookingID uint64, checked bool) error
	// MarkNoShow flips a confirmed booking to no_show; returns false
	// when the booking was already a no-show (idempotent no-op).
	MarkNoShow(ctx context.Context, bookingID uint64) (bool, error)
	// ListConfirmedByClass returns ids of confirmed bookings for the
	// class, scoped to the tenant.
	ListConfirmedByClass(ctx context.Context, classID, tenantID uint64) ([]uint64, error)
}

// ScheduleStore is the persistence surface of the bulk scheduling
// operations.
type ScheduleStore interface {
	ResolveClassIDs(ctx context.Context, tenantID uint64, f ClassFilter) ([]uint64, error)
	GetClasses(ctx context.Context, tenantID uint64, ids []uint64) ([]model.Class, error)
	// CancelClassWithBookings cancels every confirmed/waitlisted booking
	// for the class (refunding any debited packs), then soft-cancels the
	// class, all in one transaction.  Returns the number of bookings
	// affected.
	CancelClassWithBookings(ctx context.Context, classID uint64) (int64, error)
	// UpdateAssignments reassigns instructor and/or room on the classes.
	UpdateAssignments(ctx context.Context, ids []uint64, instructorID, locationID *uint64) error
	// MoveStartTimes writes all new start times in one transaction.
	MoveStartTimes(ctx context.Context, moves []ClassMove) error
	DistinctMembersForClasses(ctx context.Context, ids []uint64) ([]MemberContact, error)
}
