package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/slichti/studio-platform/internal/model"
	"github.com/slichti/studio-platform/internal/repository"
	"github.com/slichti/studio-platform/internal/service"
)

// utilizationTTL bounds staleness of the cached utilization report.
const utilizationTTL = 30 * time.Second

// ClassHandler manages the class schedule: creation, edits, single
// moves, cancellation and the utilization report.  Every mutation that
// claims an instructor or room runs through the conflict service
// first; a collision rejects the request with 409 and the conflicting
// commitment so the client can render it.
type ClassHandler struct {
	ClassRepo    *repository.ClassRepo
	BookingStore *repository.BookingStore
	ScheduleRepo *repository.ScheduleRepo
	Conflicts    *service.ConflictService
	Redis        *redis.Client // nil disables utilization caching
}

// NewClassHandler constructs a ClassHandler with the provided
// dependencies.  Redis may be nil.
func NewClassHandler(classRepo *repository.ClassRepo, bookingStore *repository.BookingStore, scheduleRepo *repository.ScheduleRepo, conflicts *service.ConflictService, rdb *redis.Client) *ClassHandler {
	if classRepo == nil || bookingStore == nil || scheduleRepo == nil || conflicts == nil {
		panic("nil dependency passed to NewClassHandler")
	}
	return &ClassHandler{
		ClassRepo:    classRepo,
		BookingStore: bookingStore,
		ScheduleRepo: scheduleRepo,
		Conflicts:    conflicts,
		Redis:        rdb,
	}
}

type classRequest struct {
	Title            string   `json:"title"`
	StartsAt         string   `json:"starts_at"`
	DurationMinutes  uint32   `json:"duration_minutes"`
	Capacity         *uint32  `json:"capacity"`
	WaitlistCapacity *uint32  `json:"waitlist_capacity"`
	InstructorID     *uint64  `json:"instructor_id"`
	LocationID       *uint64  `json:"location_id"`
	AllowCredits     *bool    `json:"allow_credits"`
	IncludedPlanIDs  []uint64 `json:"included_plan_ids"`
	ZoomURL          *string  `json:"zoom_url"`
}

// conflictResponse renders the first conflicting commitment.
func conflictResponse(c echo.Context, with service.Commitment) error {
	return c.JSON(http.StatusConflict, echo.Map{
		"error": "schedule_conflict",
		"conflict": echo.Map{
			"event_id":  with.EventID,
			"kind":      with.Kind,
			"title":     with.Title,
			"starts_at": with.StartsAt.UTC().Format(time.RFC3339),
			"ends_at":   with.EndsAt.UTC().Format(time.RFC3339),
		},
	})
}

// checkPlacement validates a proposed slot against the instructor's
// and room's calendars, excluding the given event ids.
func (h *ClassHandler) checkPlacement(c echo.Context, instructorID, locationID *uint64, startsAt time.Time, duration uint32, excludeIDs ...uint64) (bool, error) {
	ctx := c.Request().Context()
	if instructorID != nil {
		found, err := h.Conflicts.CheckInstructorConflict(ctx, *instructorID, startsAt, duration, excludeIDs...)
		if err != nil {
			return false, c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		if len(found) > 0 {
			return false, conflictResponse(c, found[0])
		}
	}
	if locationID != nil {
		found, err := h.Conflicts.CheckRoomConflict(ctx, *locationID, startsAt, duration, excludeIDs...)
		if err != nil {
			return false, c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		if len(found) > 0 {
			return false, conflictResponse(c, found[0])
		}
	}
	return true, nil
}

// Create handles POST /v1/classes.  The class is rejected with 409
// when its instructor or room is already committed during the slot.
func (h *ClassHandler) Create(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body classRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Title == "" || body.DurationMinutes == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and duration_minutes are required"})
	}
	startsAt, err := time.Parse(time.RFC3339, body.StartsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC3339"})
	}

	if ok, resp := h.checkPlacement(c, body.InstructorID, body.LocationID, startsAt.UTC(), body.DurationMinutes); !ok {
		return resp
	}

	cls := model.Class{
		TenantID:         tenantID,
		Title:            body.Title,
		StartsAt:         startsAt.UTC(),
		DurationMinutes:  body.DurationMinutes,
		Capacity:         body.Capacity,
		WaitlistCapacity: body.WaitlistCapacity,
		Status:           model.ClassStatusActive,
		InstructorID:     body.InstructorID,
		LocationID:       body.LocationID,
		IncludedPlanIDs:  body.IncludedPlanIDs,
		ZoomURL:          body.ZoomURL,
	}
	if body.AllowCredits != nil {
		cls.AllowCredits = *body.AllowCredits
	} else {
		cls.AllowCredits = true
	}
	if err := h.ClassRepo.Create(c.Request().Context(), &cls); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create class"})
	}
	return c.JSON(http.StatusCreated, cls)
}

// Get handles GET /v1/classes/:id.
func (h *ClassHandler) Get(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	classID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || classID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid class id"})
	}
	cls, err := h.ClassRepo.GetByIDAndTenant(c.Request().Context(), classID, tenantID)
	if err != nil {
		return classLookupError(c, err)
	}
	return c.JSON(http.StatusOK, cls)
}

// List handles GET /v1/classes?from=&to=&instructor_id=&location_id=.
func (h *ClassHandler) List(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	from, to, err := parseRange(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	instructorID := optionalUintParam(c, "instructor_id")
	locationID := optionalUintParam(c, "location_id")
	classes, err := h.ClassRepo.ListByTenant(c.Request().Context(), tenantID, from, to, instructorID, locationID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"classes": classes})
}

// Update handles PATCH /v1/classes/:id.  When the slot, instructor or
// room changes, the new combination is validated against the calendar
// with the class itself excluded.
func (h *ClassHandler) Update(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	classID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || classID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid class id"})
	}
	existing, err := h.ClassRepo.GetByIDAndTenant(c.Request().Context(), classID, tenantID)
	if err != nil {
		return classLookupError(c, err)
	}

	var body classRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	// Work out the effective slot and assignments after the patch.
	startsAt := existing.StartsAt
	if body.StartsAt != "" {
		t, err := time.Parse(time.RFC3339, body.StartsAt)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC3339"})
		}
		startsAt = t.UTC()
	}
	duration := existing.DurationMinutes
	if body.DurationMinutes != 0 {
		duration = body.DurationMinutes
	}
	instructorID := existing.InstructorID
	if body.InstructorID != nil {
		instructorID = body.InstructorID
	}
	locationID := existing.LocationID
	if body.LocationID != nil {
		locationID = body.LocationID
	}

	if existing.Status == model.ClassStatusActive {
		if ok, resp := h.checkPlacement(c, instructorID, locationID, startsAt, duration, classID); !ok {
			return resp
		}
	}

	upd := repository.ClassUpdate{
		Capacity:         body.Capacity,
		WaitlistCapacity: body.WaitlistCapacity,
		InstructorID:     body.InstructorID,
		LocationID:       body.LocationID,
		AllowCredits:     body.AllowCredits,
		IncludedPlanIDs:  body.IncludedPlanIDs,
		ZoomURL:          body.ZoomURL,
	}
	if body.Title != "" {
		upd.Title = &body.Title
	}
	if body.StartsAt != "" {
		upd.StartsAt = &startsAt
	}
	if body.DurationMinutes != 0 {
		upd.DurationMinutes = &body.DurationMinutes
	}

	updated, err := h.ClassRepo.Update(c.Request().Context(), classID, tenantID, upd)
	if err != nil {
		if errors.Is(err, repository.ErrNoChange) {
			return c.JSON(http.StatusOK, existing)
		}
		return classLookupError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// Cancel handles POST /v1/classes/:id/cancel.  The class is
// soft-cancelled and every live booking on it is cancelled with pack
// refunds, in one transaction.
func (h *ClassHandler) Cancel(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	classID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || classID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid class id"})
	}
	cls, err := h.ClassRepo.GetByIDAndTenant(c.Request().Context(), classID, tenantID)
	if err != nil {
		return classLookupError(c, err)
	}
	if cls.Status == model.ClassStatusCancelled {
		return c.JSON(http.StatusOK, echo.Map{"cancelled_bookings": 0})
	}
	affected, err := h.ScheduleRepo.CancelClassWithBookings(c.Request().Context(), classID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel class"})
	}
	return c.JSON(http.StatusOK, echo.Map{"cancelled_bookings": affected})
}

// utilizationEntry is one class row in the utilization report.
type utilizationEntry struct {
	ClassID     uint64  `json:"class_id"`
	Title       string  `json:"title"`
	StartsAt    string  `json:"starts_at"`
	Capacity    *uint32 `json:"capacity"`
	Confirmed   int     `json:"confirmed"`
	Utilization float64 `json:"utilization"`
}

// Utilization handles GET /v1/classes/utilization?from=&to=.  Results
// are cached in Redis for a short TTL keyed by tenant and range: the
// report backs a dashboard that polls aggressively, and 30 seconds of
// staleness is acceptable there.
func (h *ClassHandler) Utilization(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	from, to, err := parseRange(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx := c.Request().Context()

	cacheKey := "util:" + strconv.FormatUint(tenantID, 10) + ":" +
		from.UTC().Format(time.RFC3339) + ":" + to.UTC().Format(time.RFC3339)
	if h.Redis != nil {
		if cached, err := h.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			return c.JSONBlob(http.StatusOK, cached)
		}
	}

	classes, err := h.ClassRepo.ListByTenant(ctx, tenantID, from, to, nil, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	ids := make([]uint64, 0, len(classes))
	for _, cls := range classes {
		if cls.Status == model.ClassStatusActive {
			ids = append(ids, cls.ID)
		}
	}
	counts, err := h.BookingStore.ConfirmedCounts(ctx, ids)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	entries := make([]utilizationEntry, 0, len(ids))
	for _, cls := range classes {
		if cls.Status != model.ClassStatusActive {
			continue
		}
		e := utilizationEntry{
			ClassID:   cls.ID,
			Title:     cls.Title,
			StartsAt:  cls.StartsAt.UTC().Format(time.RFC3339),
			Capacity:  cls.Capacity,
			Confirmed: counts[cls.ID],
		}
		if cls.Capacity != nil && *cls.Capacity > 0 {
			e.Utilization = float64(e.Confirmed) / float64(*cls.Capacity)
		}
		entries = append(entries, e)
	}
	payload := echo.Map{"classes": entries}

	if h.Redis != nil {
		if raw, err := json.Marshal(payload); err == nil {
			_ = h.Redis.Set(ctx, cacheKey, raw, utilizationTTL).Err()
		}
	}
	return c.JSON(http.StatusOK, payload)
}

// classLookupError maps repository lookup errors onto HTTP responses.
func classLookupError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrClassNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "class not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}

// parseRange reads the from/to query parameters, defaulting to the
// next 7 days.
func parseRange(c echo.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from, to := now, now.Add(7*24*time.Hour)
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("from must be RFC3339")
		}
		from = t.UTC()
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be RFC3339")
		}
		to = t.UTC()
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return from, to, nil
}

// optionalUintParam reads an optional numeric query parameter.
func optionalUintParam(c echo.Context, name string) *uint64 {
	v := c.QueryParam(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil || n == 0 {
		return nil
	}
	return &n
}
