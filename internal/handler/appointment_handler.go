package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slichti/studio-platform/internal/model"
	"github.com/slichti/studio-platform/internal/repository"
	"github.com/slichti/studio-platform/internal/service"
)

// AppointmentHandler manages one-on-one appointments.  Appointments
// share instructors and rooms with classes, so creation runs the same
// conflict checks over both calendars.
type AppointmentHandler struct {
	ApptRepo  *repository.AppointmentRepo
	Conflicts *service.ConflictService
}

// NewAppointmentHandler constructs an AppointmentHandler.
func NewAppointmentHandler(apptRepo *repository.AppointmentRepo, conflicts *service.ConflictService) *AppointmentHandler {
	if apptRepo == nil || conflicts == nil {
		panic("nil dependency passed to NewAppointmentHandler")
	}
	return &AppointmentHandler{ApptRepo: apptRepo, Conflicts: conflicts}
}

// Create handles POST /v1/appointments.  Rejected with 409 when the
// instructor or room is committed anywhere in [starts_at, ends_at).
func (h *AppointmentHandler) Create(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		MemberID     uint64  `json:"member_id"`
		InstructorID *uint64 `json:"instructor_id"`
		LocationID   *uint64 `json:"location_id"`
		Title        string  `json:"title"`
		StartsAt     string  `json:"starts_at"`
		EndsAt       string  `json:"ends_at"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.MemberID == 0 || body.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "member_id and title are required"})
	}
	startsAt, err := time.Parse(time.RFC3339, body.StartsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC3339"})
	}
	endsAt, err := time.Parse(time.RFC3339, body.EndsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be RFC3339"})
	}
	if !endsAt.After(startsAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be after starts_at"})
	}
	duration := uint32(endsAt.Sub(startsAt) / time.Minute)
	if duration == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "appointment must span at least one minute"})
	}

	ctx := c.Request().Context()
	if body.InstructorID != nil {
		found, err := h.Conflicts.CheckInstructorConflict(ctx, *body.InstructorID, startsAt.UTC(), duration)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		if len(found) > 0 {
			return conflictResponse(c, found[0])
		}
	}
	if body.LocationID != nil {
		found, err := h.Conflicts.CheckRoomConflict(ctx, *body.LocationID, startsAt.UTC(), duration)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		if len(found) > 0 {
			return conflictResponse(c, found[0])
		}
	}

	appt := model.Appointment{
		TenantID:     tenantID,
		MemberID:     body.MemberID,
		InstructorID: body.InstructorID,
		LocationID:   body.LocationID,
		Title:        body.Title,
		StartsAt:     startsAt.UTC(),
		EndsAt:       endsAt.UTC(),
		Status:       model.AppointmentStatusConfirmed,
	}
	if err := h.ApptRepo.Create(ctx, &appt); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create appointment"})
	}
	return c.JSON(http.StatusCreated, appt)
}

// Get handles GET /v1/appointments/:id.
func (h *AppointmentHandler) Get(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	apptID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || apptID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid appointment id"})
	}
	appt, err := h.ApptRepo.GetByIDAndTenant(c.Request().Context(), apptID, tenantID)
	if err != nil {
		return appointmentLookupError(c, err)
	}
	return c.JSON(http.StatusOK, appt)
}

// Cancel handles POST /v1/appointments/:id/cancel.  A cancelled
// appointment immediately frees its instructor and room slots.
func (h *AppointmentHandler) Cancel(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	apptID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || apptID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid appointment id"})
	}
	if err := h.ApptRepo.Cancel(c.Request().Context(), apptID, tenantID); err != nil {
		if errors.Is(err, repository.ErrNoChange) {
			return c.JSON(http.StatusOK, echo.Map{"status": model.AppointmentStatusCancelled})
		}
		return appointmentLookupError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": model.AppointmentStatusCancelled})
}

func appointmentLookupError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrAppointmentNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "appointment not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}
