// Package service implements the booking, conflict-detection and bulk
// scheduling logic of the studio platform.  Services depend on narrow
// store interfaces implemented by the repository layer and on injected
// ports for side effects, so the business rules can be tested without
// a database or a broker.
package service

import (
	"errors"
	"fmt"
	"time"
)

// ErrClassFull is returned when a class has reached its confirmed
// capacity.  Handlers should translate this into an HTTP 409 response
// with the machine-readable code CLASS_FULL.
var ErrClassFull = errors.New("class is full")

// ErrWaitlistFull is returned when a class waitlist has reached its
// capacity.  Handlers should translate this into an HTTP 409 response
// with the machine-readable code WAITLIST_FULL.
var ErrWaitlistFull = errors.New("waitlist is full")

// ErrUnauthorized is returned when a caller-supplied tenant id does
// not match the tenant that owns a booking's member record.  Handlers
// must translate this into a generic 403 that does not reveal whether
// the booking exists.
var ErrUnauthorized = errors.New("unauthorized")

// ErrClassCancelled is returned when a booking or waitlist join
// targets a soft-cancelled class.  A cancelled class keeps its row but
// accepts no new members.
var ErrClassCancelled = errors.New("class is cancelled")

// ErrInvalidTransition is returned when a booking's current status
// does not allow the requested transition (no_show is terminal, and
// only confirmed bookings can become no-shows).
var ErrInvalidTransition = errors.New("booking status does not allow this transition")

// ConflictError reports that a proposed class placement overlaps an
// existing commitment.  ClassID identifies the proposed class when the
// conflict was found during a batch operation; it is zero for single
// placement checks.
type ConflictError struct {
	ClassID uint64
	With    Commitment
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schedule conflict with %s %q starting %s",
		e.With.Kind, e.With.Title, e.With.StartsAt.UTC().Format(time.RFC3339))
}
