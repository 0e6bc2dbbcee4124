package repository

import "errors"

// Sentinel errors returned by repositories.  Handlers translate these
// into HTTP status codes; services compare with errors.Is.
var (
	// ErrForbidden indicates the row exists but belongs to another
	// tenant or member.
	ErrForbidden = errors.New("forbidden")
	// ErrNoChange indicates an update matched a row but changed nothing.
	ErrNoChange = errors.New("no change")
	// ErrClassNotFound indicates the class id does not exist.
	ErrClassNotFound = errors.New("class not found")
	// ErrBookingNotFound indicates the booking id does not exist.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrMemberNotFound indicates the member id does not exist.
	ErrMemberNotFound = errors.New("member not found")
	// ErrAppointmentNotFound indicates the appointment id does not exist.
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrTenantNotFound indicates the tenant id does not exist.
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrStaffNotFound indicates no staff account matches the lookup.
	ErrStaffNotFound = errors.New("staff not found")
	// ErrStaffExists indicates the email is already registered in the
	// tenant.
	ErrStaffExists = errors.New("staff account already exists")
)
