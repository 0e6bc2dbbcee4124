package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/slichti/studio-platform/internal/service"
)

// AttendanceLogRepo persists attendance metric entries and answers
// milestone counts.  It implements the booking service's
// ProgressTracker port.
type AttendanceLogRepo struct {
	db *sql.DB
}

// NewAttendanceLogRepo returns a new AttendanceLogRepo bound to the
// given database.
func NewAttendanceLogRepo(db *sql.DB) *AttendanceLogRepo { return &AttendanceLogRepo{db: db} }

var _ service.ProgressTracker = (*AttendanceLogRepo)(nil)

// LogEntry appends one metric sample.  Metadata is stored as JSON.
func (r *AttendanceLogRepo) LogEntry(ctx context.Context, e service.ProgressEntry) error {
	var meta []byte
	if e.Metadata != nil {
		var err error
		meta, err = json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
	}
	const q = `INSERT INTO attendance_logs (member_id, metric_definition_id, value, source, metadata, recorded_at)
               VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, e.MemberID, e.MetricDefinitionID, e.Value, e.Source, meta, e.RecordedAt.UTC())
	return err
}

// AttendanceCount returns how many class attendances the member has
// logged, used to evaluate milestone triggers.
func (r *AttendanceLogRepo) AttendanceCount(ctx context.Context, memberID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM attendance_logs
               WHERE member_id = ? AND metric_definition_id = 'class_attendance'`
	var n int
	err := r.db.QueryRowContext(ctx, q, memberID).Scan(&n)
	return n, err
}
