package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/slichti/studio-platform/internal/middleware"
	"github.com/slichti/studio-platform/internal/repository"
	"github.com/slichti/studio-platform/internal/service"
)

// BookingHandler exposes the booking state machine: booking into a
// class, joining the waitlist, cancelling, attendance check-in and
// no-show marking.  Members act on their own bookings; staff act on
// any booking inside their tenant.
type BookingHandler struct {
	Bookings *service.BookingService
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	if bookings == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings}
}

// resolveMemberID determines which member a booking operation applies
// to.  Members always act as themselves; staff must name the member in
// the request body.
func resolveMemberID(c echo.Context, bodyMemberID uint64) (uint64, error) {
	if getRole(c) == middleware.RoleStaff {
		if bodyMemberID == 0 {
			return 0, errors.New("member_id is required")
		}
		return bodyMemberID, nil
	}
	return getUserID(c)
}

// CreateBooking handles POST /v1/classes/:id/bookings.  Responds 201
// with the confirmed booking, or 409 with code CLASS_FULL when the
// class has no confirmed seats left (the client then offers the
// waitlist).
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	classID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || classID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid class id"})
	}
	var body struct {
		MemberID       uint64 `json:"member_id"`
		AttendanceType string `json:"attendance_type"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	memberID, err := resolveMemberID(c, body.MemberID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	result, err := h.Bookings.CreateBooking(c.Request().Context(), classID, memberID, body.AttendanceType)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClassFull):
			return c.JSON(http.StatusConflict, echo.Map{"error": "class is full", "code": "CLASS_FULL"})
		case errors.Is(err, service.ErrClassCancelled):
			return c.JSON(http.StatusConflict, echo.Map{"error": "class is cancelled", "code": "CLASS_CANCELLED"})
		case errors.Is(err, repository.ErrClassNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "class not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create booking"})
		}
	}
	return c.JSON(http.StatusCreated, result)
}

// JoinWaitlist handles POST /v1/classes/:id/waitlist.  Responds 201
// with the assigned position, or 409 with code WAITLIST_FULL.
func (h *BookingHandler) JoinWaitlist(c echo.Context) error {
	classID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || classID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid class id"})
	}
	var body struct {
		MemberID uint64 `json:"member_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	memberID, err := resolveMemberID(c, body.MemberID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	result, err := h.Bookings.JoinWaitlist(c.Request().Context(), classID, memberID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWaitlistFull):
			return c.JSON(http.StatusConflict, echo.Map{"error": "waitlist is full", "code": "WAITLIST_FULL"})
		case errors.Is(err, service.ErrClassCancelled):
			return c.JSON(http.StatusConflict, echo.Map{"error": "class is cancelled", "code": "CLASS_CANCELLED"})
		case errors.Is(err, repository.ErrClassNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "class not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to join waitlist"})
		}
	}
	return c.JSON(http.StatusCreated, result)
}

// CancelBooking handles POST /v1/bookings/:id/cancel.  Members may
// only cancel their own bookings; staff may cancel any booking within
// their tenant.
func (h *BookingHandler) CancelBooking(c echo.Context) error {
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx := c.Request().Context()

	det, err := h.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return bookingLookupError(c, err)
	}
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if det.TenantID != tenantID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if getRole(c) != middleware.RoleStaff {
		userID, err := getUserID(c)
		if err != nil || det.MemberID != userID {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	}

	if err := h.Bookings.CancelBooking(ctx, bookingID); err != nil {
		if errors.Is(err, service.ErrInvalidTransition) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "no-show bookings cannot be cancelled"})
		}
		return bookingLookupError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "cancelled"})
}

// CheckIn handles POST /v1/bookings/:id/checkin.  The body's checked
// flag distinguishes check-in from check-out; omitting it means
// check-in.  Staff only.
func (h *BookingHandler) CheckIn(c echo.Context) error {
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Checked *bool `json:"checked"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	checked := true
	if body.Checked != nil {
		checked = *body.Checked
	}

	if err := h.Bookings.CheckIn(c.Request().Context(), bookingID, checked, tenantID); err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return bookingLookupError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"checked": checked})
}

// CheckInAll handles POST /v1/classes/:id/checkin-all.  Flips every
// confirmed booking of the class; a mid-batch failure reports how many
// were processed so the client can retry idempotently.
func (h *BookingHandler) CheckInAll(c echo.Context) error {
	classID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || classID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid class id"})
	}
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Checked *bool `json:"checked"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	checked := true
	if body.Checked != nil {
		checked = *body.Checked
	}

	processed, err := h.Bookings.CheckInAll(c.Request().Context(), classID, tenantID, checked)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":     "check-in batch failed partway",
			"processed": processed,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"processed": processed, "checked": checked})
}

// MarkNoShow handles POST /v1/bookings/:id/noshow.  Staff only.
func (h *BookingHandler) MarkNoShow(c echo.Context) error {
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	det, err := h.Bookings.GetBooking(c.Request().Context(), bookingID)
	if err != nil {
		return bookingLookupError(c, err)
	}
	if det.TenantID != tenantID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	if err := h.Bookings.MarkNoShow(c.Request().Context(), bookingID); err != nil {
		if errors.Is(err, service.ErrInvalidTransition) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "only confirmed bookings can be marked no-show"})
		}
		return bookingLookupError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "no_show"})
}

func bookingLookupError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}
