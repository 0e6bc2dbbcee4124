package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/slichti/studio-platform/internal/model"
)

// AppointmentRepo provides CRUD and calendar queries for one-on-one
// appointments.  Appointments store an explicit ends_at instead of a
// duration; all timestamps are UTC.
type AppointmentRepo struct {
	db *sql.DB
}

// NewAppointmentRepo returns a new AppointmentRepo bound to the given database.
func NewAppointmentRepo(db *sql.DB) *AppointmentRepo { return &AppointmentRepo{db: db} }

const appointmentColumns = `id, tenant_id, member_id, instructor_id, location_id, title,
                            starts_at, ends_at, status, created_at, updated_at`

func scanAppointment(scan func(dest ...any) error) (*model.Appointment, error) {
	var (
		a          model.Appointment
		instructor sql.NullInt64
		location   sql.NullInt64
	)
	err := scan(
		&a.ID, &a.TenantID, &a.MemberID, &instructor, &location, &a.Title,
		&a.StartsAt, &a.EndsAt, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if instructor.Valid {
		v := uint64(instructor.Int64)
		a.InstructorID = &v
	}
	if location.Valid {
		v := uint64(location.Int64)
		a.LocationID = &v
	}
	return &a, nil
}

// Create inserts a new appointment and populates the generated id and
// timestamps on the provided model.
func (r *AppointmentRepo) Create(ctx context.Context, a *model.Appointment) error {
	status := a.Status
	if status == "" {
		status = model.AppointmentStatusConfirmed
	}
	const q = `INSERT INTO appointments (tenant_id, member_id, instructor_id, location_id, title, starts_at, ends_at, status)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q,
		a.TenantID, a.MemberID, a.InstructorID, a.LocationID, a.Title,
		a.StartsAt.UTC(), a.EndsAt.UTC(), status,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.getByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*a = *created
	return nil
}

func (r *AppointmentRepo) getByID(ctx context.Context, id uint64) (*model.Appointment, error) {
	const q = `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = ?`
	row := r.db.QueryRowContext(ctx, q, id)
	a, err := scanAppointment(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrAppointmentNotFound
	}
	return a, err
}

// GetByIDAndTenant returns an appointment by id, enforcing tenant
// ownership with ErrForbidden.
func (r *AppointmentRepo) GetByIDAndTenant(ctx context.Context, id, tenantID uint64) (*model.Appointment, error) {
	a, err := r.getByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.TenantID != tenantID {
		return nil, ErrForbidden
	}
	return a, nil
}

// Cancel flips an appointment to cancelled.  Cancelling an
// already-cancelled appointment returns ErrNoChange.
func (r *AppointmentRepo) Cancel(ctx context.Context, id, tenantID uint64) error {
	const q = `UPDATE appointments SET status = ? WHERE id = ? AND tenant_id = ? AND status <> ?`
	result, err := r.db.ExecContext(ctx, q, model.AppointmentStatusCancelled, id, tenantID, model.AppointmentStatusCancelled)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.GetByIDAndTenant(ctx, id, tenantID); err != nil {
			return err
		}
		return ErrNoChange
	}
	return nil
}

// FindOverlappingByInstructor returns confirmed appointments of the
// instructor intersecting the half-open interval [start, end).
func (r *AppointmentRepo) FindOverlappingByInstructor(ctx context.Context, instructorID uint64, start, end time.Time, excludeIDs []uint64) ([]model.Appointment, error) {
	return r.findOverlapping(ctx, "instructor_id", instructorID, start, end, excludeIDs)
}

// FindOverlappingByLocation is FindOverlappingByInstructor keyed by room.
func (r *AppointmentRepo) FindOverlappingByLocation(ctx context.Context, locationID uint64, start, end time.Time, excludeIDs []uint64) ([]model.Appointment, error) {
	return r.findOverlapping(ctx, "location_id", locationID, start, end, excludeIDs)
}

func (r *AppointmentRepo) findOverlapping(ctx context.Context, column string, resourceID uint64, start, end time.Time, excludeIDs []uint64) ([]model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
              WHERE ` + column + ` = ? AND status = ?
                AND NOT (ends_at <= ? OR starts_at >= ?)`
	args := []any{resourceID, model.AppointmentStatusConfirmed, start.UTC(), end.UTC()}
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
	appts := make([]model.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows.Scan)
		if err != nil {
			return nil, err
		}
		appts = append(appts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return appts, nil
}
