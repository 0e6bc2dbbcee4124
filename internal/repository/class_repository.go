package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/slichti/studio-platform/internal/model"
)

// ClassRepo provides CRUD and calendar queries for classes.  All
// timestamp fields are stored in UTC.  The included_plan_ids column is
// a JSON array of plan ids; an empty array means no membership plan
// covers the class.
type ClassRepo struct {
	db *sql.DB
}

// NewClassRepo returns a new ClassRepo bound to the given database.
func NewClassRepo(db *sql.DB) *ClassRepo { return &ClassRepo{db: db} }

const classColumns = `id, tenant_id, title, starts_at, duration_minutes, capacity, waitlist_capacity,
                      status, instructor_id, location_id, allow_credits, included_plan_ids, zoom_url,
                      created_at, updated_at`

// scanClass reads one class row.  The scanner must yield columns in
// classColumns order.
func scanClass(scan func(dest ...any) error) (*model.Class, error) {
	var (
		c           model.Class
		capacity    sql.NullInt64
		waitlistCap sql.NullInt64
		instructor  sql.NullInt64
		location    sql.NullInt64
		planIDs     []byte
		zoomURL     sql.NullString
	)
	err := scan(
		&c.ID, &c.TenantID, &c.Title, &c.StartsAt, &c.DurationMinutes, &capacity, &waitlistCap,
		&c.Status, &instructor, &location, &c.AllowCredits, &planIDs, &zoomURL,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if capacity.Valid {
		v := uint32(capacity.Int64)
		c.Capacity = &v
	}
	if waitlistCap.Valid {
		v := uint32(waitlistCap.Int64)
		c.WaitlistCapacity = &v
	}
	if instructor.Valid {
		v := uint64(instructor.Int64)
		c.InstructorID = &v
	}
	if location.Valid {
		v := uint64(location.Int64)
		c.LocationID = &v
	}
	if len(planIDs) > 0 {
		if err := json.Unmarshal(planIDs, &c.IncludedPlanIDs); err != nil {
			return nil, err
		}
	}
	if zoomURL.Valid {
		u := zoomURL.String
		c.ZoomURL = &u
	}
	return &c, nil
}

// Create inserts a new class and populates the generated id and
// timestamps on the provided model.
func (r *ClassRepo) Create(ctx context.Context, c *model.Class) error {
	planIDs := c.IncludedPlanIDs
	if planIDs == nil {
		planIDs = []uint64{}
	}
	plansJSON, err := json.Marshal(planIDs)
	if err != nil {
		return err
	}
	const q = `INSERT INTO classes (tenant_id, title, starts_at, duration_minutes, capacity, waitlist_capacity,
                                    status, instructor_id, location_id, allow_credits, included_plan_ids, zoom_url)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	status := c.Status
	if status == "" {
		status = model.ClassStatusActive
	}
	result, err := r.db.ExecContext(ctx, q,
		c.TenantID, c.Title, c.StartsAt.UTC(), c.DurationMinutes, c.Capacity, c.WaitlistCapacity,
		status, c.InstructorID, c.LocationID, c.AllowCredits, plansJSON, c.ZoomURL,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	// Query back the full row to populate timestamps and defaults
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*c = *created
	return nil
}

// GetByID returns a class by id or ErrClassNotFound.
func (r *ClassRepo) GetByID(ctx context.Context, id uint64) (*model.Class, error) {
	const q = `SELECT ` + classColumns + ` FROM classes WHERE id = ?`
	row := r.db.QueryRowContext(ctx, q, id)
	c, err := scanClass(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrClassNotFound
	}
	return c, err
}

// GetByIDAndTenant returns a class by id, enforcing tenant ownership.
// A class belonging to another tenant yields ErrForbidden.
func (r *ClassRepo) GetByIDAndTenant(ctx context.Context, id, tenantID uint64) (*model.Class, error) {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.TenantID != tenantID {
		return nil, ErrForbidden
	}
	return c, nil
}

// ClassUpdate carries the mutable class fields for Update.  Nil
// pointers leave the column unchanged; ClearInstructor/ClearLocation
// null the assignment out explicitly.
type ClassUpdate struct {
	Title            *string
	StartsAt         *time.Time
	DurationMinutes  *uint32
	Capacity         *uint32
	WaitlistCapacity *uint32
	InstructorID     *uint64
	ClearInstructor  bool
	LocationID       *uint64
	ClearLocation    bool
	AllowCredits     *bool
	IncludedPlanIDs  []uint64
	ZoomURL          *string
}

// Update applies the non-nil fields of upd to the class, scoped to the
// tenant.  Returns ErrNoChange when nothing was modified and
// ErrClassNotFound / ErrForbidden on bad ids.
func (r *ClassRepo) Update(ctx context.Context, id, tenantID uint64, upd ClassUpdate) (*model.Class, error) {
	if _, err := r.GetByIDAndTenant(ctx, id, tenantID); err != nil {
		return nil, err
	}
	sets := make([]string, 0, 8)
	args := make([]any, 0, 8)
	if upd.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.StartsAt != nil {
		sets = append(sets, "starts_at = ?")
		args = append(args, upd.StartsAt.UTC())
	}
	if upd.DurationMinutes != nil {
		sets = append(sets, "duration_minutes = ?")
		args = append(args, *upd.DurationMinutes)
	}
	if upd.Capacity != nil {
		sets = append(sets, "capacity = ?")
		args = append(args, *upd.Capacity)
	}
	if upd.WaitlistCapacity != nil {
		sets = append(sets, "waitlist_capacity = ?")
		args = append(args, *upd.WaitlistCapacity)
	}
	if upd.ClearInstructor {
		sets = append(sets, "instructor_id = NULL")
	} else if upd.InstructorID != nil {
		sets = append(sets, "instructor_id = ?")
		args = append(args, *upd.InstructorID)
	}
	if upd.ClearLocation {
		sets = append(sets, "location_id = NULL")
	} else if upd.LocationID != nil {
		sets = append(sets, "location_id = ?")
		args = append(args, *upd.LocationID)
	}
	if upd.AllowCredits != nil {
		sets = append(sets, "allow_credits = ?")
		args = append(args, *upd.AllowCredits)
	}
	if upd.IncludedPlanIDs != nil {
		plansJSON, err := json.Marshal(upd.IncludedPlanIDs)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "included_plan_ids = ?")
		args = append(args, plansJSON)
	}
	if upd.ZoomURL != nil {
		sets = append(sets, "zoom_url = ?")
		args = append(args, *upd.ZoomURL)
	}
	if len(sets) == 0 {
		return nil, ErrNoChange
	}
	query := "UPDATE classes SET " + strings.Join(sets, ", ") + " WHERE id = ? AND tenant_id = ?"
	args = append(args, id, tenantID)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNoChange
	}
	return r.GetByID(ctx, id)
}

// MarkCancelled soft-cancels a class.  Cancelling an already-cancelled
// class returns ErrNoChange.
func (r *ClassRepo) MarkCancelled(ctx context.Context, id, tenantID uint64) error {
	const q = `UPDATE classes SET status = ? WHERE id = ? AND tenant_id = ? AND status <> ?`
	result, err := r.db.ExecContext(ctx, q, model.ClassStatusCancelled, id, tenantID, model.ClassStatusCancelled)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish a missing class from an already-cancelled one.
		if _, err := r.GetByIDAndTenant(ctx, id, tenantID); err != nil {
			return err
		}
		return ErrNoChange
	}
	return nil
}

// FindOverlappingByInstructor returns active classes of the instructor
// whose [starts_at, starts_at + duration) interval intersects
// [start, end).  Touching boundaries do not overlap.  excludeIDs is
// typically the event being edited, or a whole batch being moved.
func (r *ClassRepo) FindOverlappingByInstructor(ctx context.Context, instructorID uint64, start, end time.Time, excludeIDs []uint64) ([]model.Class, error) {
	return r.findOverlapping(ctx, "instructor_id", instructorID, start, end, excludeIDs)
}

// FindOverlappingByLocation is FindOverlappingByInstructor keyed by room.
func (r *ClassRepo) FindOverlappingByLocation(ctx context.Context, locationID uint64, start, end time.Time, excludeIDs []uint64) ([]model.Class, error) {
	return r.findOverlapping(ctx, "location_id", locationID, start, end, excludeIDs)
}

func (r *ClassRepo) findOverlapping(ctx context.Context, column string, resourceID uint64, start, end time.Time, excludeIDs []uint64) ([]model.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes
              WHERE ` + column + ` = ? AND status = ?
                AND starts_at < ?
                AND TIMESTAMPADD(MINUTE, duration_minutes, starts_at) > ?`
	args := []any{resourceID, model.ClassStatusActive, end.UTC(), start.UTC()}
	if len(excludeIDs) > 0 {
		placeholders := make([]string, len(excludeIDs))
		for i, id := range excludeIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += " AND id NOT IN (" + strings.Join(placeholders, ",") + ")"
	}
	query += " ORDER BY starts_at"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	classes := make([]model.Class, 0)
	for rows.Next() {
		c, err := scanClass(rows.Scan)
		if err != nil {
			return nil, err
		}
		classes = append(classes, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return classes, nil
}

// ListByTenant returns the tenant's classes inside [from, to), newest
// first, optionally filtered by instructor or room.
func (r *ClassRepo) ListByTenant(ctx context.Context, tenantID uint64, from, to time.Time, instructorID, locationID *uint64) ([]model.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes
              WHERE tenant_id = ? AND starts_at >= ? AND starts_at < ?`
	args := []any{tenantID, from.UTC(), to.UTC()}
	if instructorID != nil {
		query += " AND instructor_id = ?"
		args = append(args, *instructorID)
	}
	if locationID != nil {
		query += " AND location_id = ?"
		args = append(args, *locationID)
	}
	query += " ORDER BY starts_at"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	classes := make([]model.Class, 0)
	for rows.Next() {
		c, err := scanClass(rows.Scan)
		if err != nil {
			return nil, err
		}
		classes = append(classes, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return classes, nil
}
