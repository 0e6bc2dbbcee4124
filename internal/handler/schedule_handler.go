package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slichti/studio-platform/internal/service"
)

// ScheduleHandler exposes the staff bulk operations over a class
// selection: cancel, reassign instructor/room, and shift start times.
// Routes carrying this handler are wrapped in RequireRole(STAFF).
type ScheduleHandler struct {
	Schedule *service.ScheduleService
}

// NewScheduleHandler constructs a ScheduleHandler.
func NewScheduleHandler(schedule *service.ScheduleService) *ScheduleHandler {
	if schedule == nil {
		panic("nil service passed to NewScheduleHandler")
	}
	return &ScheduleHandler{Schedule: schedule}
}

// bulkSelection is the shared class selection of all bulk requests:
// either explicit ids or a time-range filter.
type bulkSelection struct {
	ClassIDs     []uint64 `json:"class_ids"`
	From         string   `json:"from"`
	To           string   `json:"to"`
	InstructorID *uint64  `json:"instructor_id"`
	LocationID   *uint64  `json:"location_id"`
}

func (b *bulkSelection) toFilter() (service.ClassFilter, error) {
	f := service.ClassFilter{InstructorID: b.InstructorID, LocationID: b.LocationID}
	if len(b.ClassIDs) > 0 {
		return f, nil
	}
	if b.From == "" || b.To == "" {
		return f, errors.New("class_ids or a from/to range is required")
	}
	from, err := time.Parse(time.RFC3339, b.From)
	if err != nil {
		return f, errors.New("from must be RFC3339")
	}
	to, err := time.Parse(time.RFC3339, b.To)
	if err != nil {
		return f, errors.New("to must be RFC3339")
	}
	if !to.After(from) {
		return f, errors.New("to must be after from")
	}
	f.From = from.UTC()
	f.To = to.UTC()
	return f, nil
}

// bulkResult writes the uniform bulk response.
func bulkResult(c echo.Context, res *service.BulkResult) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "affected": res.Affected})
}

// bulkError maps bulk-operation failures.  A schedule conflict aborts
// the whole batch before any write and surfaces as 400 with the first
// conflict's description.
func bulkError(c echo.Context, err error) error {
	var conflict *service.ConflictError
	if errors.As(err, &conflict) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success":  false,
			"error":    conflict.Error(),
			"class_id": conflict.ClassID,
		})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "bulk operation failed"})
}

// BulkCancel handles POST /v1/schedule/bulk-cancel.
func (h *ScheduleHandler) BulkCancel(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		bulkSelection
		NotifyMembers bool   `json:"notify_members"`
		Reason        string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	filter, err := body.toFilter()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	res, err := h.Schedule.BulkCancel(c.Request().Context(), tenantID, service.BulkCancelInput{
		Filter:        filter,
		ClassIDs:      body.ClassIDs,
		NotifyMembers: body.NotifyMembers,
		Reason:        body.Reason,
	})
	if err != nil {
		return bulkError(c, err)
	}
	return bulkResult(c, res)
}

// BulkUpdate handles POST /v1/schedule/bulk-update.  Reassigns the
// instructor and/or room across the selection; the new assignee's
// calendar is validated against every class before any write.
func (h *ScheduleHandler) BulkUpdate(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		bulkSelection
		NewInstructorID *uint64 `json:"new_instructor_id"`
		NewLocationID   *uint64 `json:"new_location_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.NewInstructorID == nil && body.NewLocationID == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "new_instructor_id or new_location_id is required"})
	}
	filter, err := body.toFilter()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	res, err := h.Schedule.BulkUpdate(c.Request().Context(), tenantID, service.BulkUpdateInput{
		Filter:       filter,
		ClassIDs:     body.ClassIDs,
		InstructorID: body.NewInstructorID,
		LocationID:   body.NewLocationID,
	})
	if err != nil {
		return bulkError(c, err)
	}
	return bulkResult(c, res)
}

// BulkMove handles POST /v1/schedule/bulk-move.  Shifts every selected
// class by offset_minutes; the whole batch validates (including the
// moved classes against each other) before a single row changes.
func (h *ScheduleHandler) BulkMove(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		bulkSelection
		OffsetMinutes int `json:"offset_minutes"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.OffsetMinutes == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "offset_minutes must be non-zero"})
	}
	filter, err := body.toFilter()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	res, err := h.Schedule.BulkMove(c.Request().Context(), tenantID, service.BulkMoveInput{
		Filter:   filter,
		ClassIDs: body.ClassIDs,
		Offset:   time.Duration(body.OffsetMinutes) * time.Minute,
	})
	if err != nil {
		return bulkError(c, err)
	}
	return bulkResult(c, res)
}
