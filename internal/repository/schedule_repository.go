package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/slichti/studio-platform/internal/model"
	"github.com/slichti/studio-platform/internal/service"
)

// ScheduleRepo backs the staff bulk operations.  Destructive steps run
// in single transactions so a bulk move applies all start times or
// none, and cancelling a class refunds its debited packs atomically
// with the booking flips.
type ScheduleRepo struct {
	db *sql.DB
}

// NewScheduleRepo returns a ScheduleRepo bound to the given database.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

var _ service.ScheduleStore = (*ScheduleRepo)(nil)

// ResolveClassIDs returns ids of the tenant's classes matching the
// filter, ordered by start time.
func (r *ScheduleRepo) ResolveClassIDs(ctx context.Context, tenantID uint64, f service.ClassFilter) ([]uint64, error) {
	query := `SELECT id FROM classes WHERE tenant_id = ? AND starts_at >= ? AND starts_at < ?`
	args := []any{tenantID, f.From.UTC(), f.To.UTC()}
	if f.InstructorID != nil {
		query += " AND instructor_id = ?"
		args = append(args, *f.InstructorID)
	}
	if f.LocationID != nil {
		query += " AND location_id = ?"
		args = append(args, *f.LocationID)
	}
	query += " ORDER BY starts_at"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]uint64, 0)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetClasses loads the given classes, silently skipping ids that do
// not belong to the tenant.
func (r *ScheduleRepo) GetClasses(ctx context.Context, tenantID uint64, ids []uint64) ([]model.Class, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	args = append(args, tenantID)
	query := `SELECT ` + classColumns + ` FROM classes
              WHERE id IN (` + strings.Join(placeholders, ",") + `) AND tenant_id = ?
              ORDER BY starts_at`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	classes := make([]model.Class, 0, len(ids))
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

// CancelClassWithBookings cancels every confirmed or waitlisted
// booking on the class, refunding any debited packs up to their
// purchased allotment, then soft-cancels the class.  Everything runs
// in one transaction under the class row lock.  Returns the number of
// bookings flipped.
func (r *ScheduleRepo) CancelClassWithBookings(ctx context.Context, classID uint64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const lockQ = `SELECT id FROM classes WHERE id = ? FOR UPDATE`
	var id uint64
	if err := tx.QueryRowContext(ctx, lockQ, classID).Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrClassNotFound
		}
		return 0, err
	}

	// Collect pack ids before flipping the bookings so refunds match
	// exactly the bookings being cancelled.
	const packQ = `SELECT used_pack_id FROM bookings
                   WHERE class_id = ? AND status IN (?, ?) AND used_pack_id IS NOT NULL`
	rows, err := tx.QueryContext(ctx, packQ, classID, model.BookingStatusConfirmed, model.BookingStatusWaitlisted)
	if err != nil {
		return 0, err
	}
	var packIDs []uint64
	for rows.Next() {
		var pid uint64
		if err := rows.Scan(&pid); err != nil {
			rows.Close()
			return 0, err
		}
		packIDs = append(packIDs, pid)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	const cancelQ = `UPDATE bookings SET status = ?, waitlist_position = NULL
                     WHERE class_id = ? AND status IN (?, ?)`
	result, err := tx.ExecContext(ctx, cancelQ, model.BookingStatusCancelled, classID,
		model.BookingStatusConfirmed, model.BookingStatusWaitlisted)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	const refundQ = `UPDATE credit_packs SET remaining_credits = remaining_credits + 1
                     WHERE id = ? AND remaining_credits < initial_credits`
	for _, pid := range packIDs {
		if _, err := tx.ExecContext(ctx, refundQ, pid); err != nil {
			return 0, err
		}
	}

	const classQ = `UPDATE classes SET status = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, classQ, model.ClassStatusCancelled, classID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return affected, nil
}

// UpdateAssignments reassigns instructor and/or room on the classes in
// one statement.
func (r *ScheduleRepo) UpdateAssignments(ctx context.Context, ids []uint64, instructorID, locationID *uint64) error {
	if len(ids) == 0 || (instructorID == nil && locationID == nil) {
		return nil
	}
	sets := make([]string, 0, 2)
	args := make([]any, 0, len(ids)+2)
	if instructorID != nil {
		sets = append(sets, "instructor_id = ?")
		args = append(args, *instructorID)
	}
	if locationID != nil {
		sets = append(sets, "location_id = ?")
		args = append(args, *locationID)
	}
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := "UPDATE classes SET " + strings.Join(sets, ", ") +
		" WHERE id IN (" + strings.Join(placeholders, ",") + ")"
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// MoveStartTimes writes all new start times in one transaction so a
// failed move leaves the calendar untouched.
func (r *ScheduleRepo) MoveStartTimes(ctx context.Context, moves []service.ClassMove) error {
	if len(moves) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const q = `UPDATE classes SET starts_at = ? WHERE id = ?`
	for _, m := range moves {
		if _, err := tx.ExecContext(ctx, q, m.StartsAt.UTC(), m.ClassID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// DistinctMembersForClasses returns each member holding a confirmed or
// waitlisted booking on any of the classes, once.
func (r *ScheduleRepo) DistinctMembersForClasses(ctx context.Context, ids []uint64) ([]service.MemberContact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+2)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	args = append(args, model.BookingStatusConfirmed, model.BookingStatusWaitlisted)
	query := `SELECT DISTINCT m.id, m.email, m.first_name
              FROM bookings b
              JOIN members m ON m.id = b.member_id
              WHERE b.class_id IN (` + strings.Join(placeholders, ",") + `)
                AND b.status IN (?, ?)
              ORDER BY m.id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	contacts := make([]service.MemberContact, 0)
	for rows.Next() {
		var c service.MemberContact
		if err := rows.Scan(&c.MemberID, &c.Email, &c.FirstName); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contacts, nil
}
