package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/slichti/studio-platform/internal/model"
	"github.com/slichti/studio-platform/internal/service"
)

// BookingStore is the database/sql implementation of the booking
// service's persistence surface.  Transactional methods are grouped on
// bookingTx, which wraps one *sql.Tx; the service acquires it through
// WithTx and must call LockClass first so all booking mutations for a
// class serialize on its row lock.
type BookingStore struct {
	db *sql.DB
}

// NewBookingStore returns a BookingStore bound to the given database.
func NewBookingStore(db *sql.DB) *BookingStore { return &BookingStore{db: db} }

var _ service.BookingStore = (*BookingStore)(nil)

// WithTx runs fn inside one transaction, committing when fn returns
// nil and rolling back otherwise.
func (s *BookingStore) WithTx(ctx context.Context, fn func(tx service.BookingTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&bookingTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

type bookingTx struct {
	ctx context.Context
	tx  *sql.Tx
}

var _ service.BookingTx = (*bookingTx)(nil)

// LockClass loads the class under SELECT ... FOR UPDATE, serializing
// concurrent booking operations on the same class.
func (t *bookingTx) LockClass(classID uint64) (*model.Class, error) {
	const q = `SELECT ` + classColumns + ` FROM classes WHERE id = ? FOR UPDATE`
	row := t.tx.QueryRowContext(t.ctx, q, classID)
	c, err := scanClass(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrClassNotFound
	}
	return c, err
}

// CountByStatus counts the class's bookings in the given status.
func (t *bookingTx) CountByStatus(classID uint64, status string) (int, error) {
	const q = `SELECT COUNT(*) FROM bookings WHERE class_id = ? AND status = ?`
	var n int
	err := t.tx.QueryRowContext(t.ctx, q, classID, status).Scan(&n)
	return n, err
}

// NextWaitlistPosition returns one past the highest position currently
// held by a waitlisted booking on the class.  Positions survive
// mid-list cancellations (they are nulled, not compacted), so the max
// is the only safe basis for the next assignment; a count would reuse
// a position still held by a live booking.
func (t *bookingTx) NextWaitlistPosition(classID uint64) (uint32, error) {
	const q = `SELECT COALESCE(MAX(waitlist_position), 0) + 1 FROM bookings
	           WHERE class_id = ? AND status = ?`
	var next uint32
	err := t.tx.QueryRowContext(t.ctx, q, classID, model.BookingStatusWaitlisted).Scan(&next)
	return next, err
}

// InsertBooking persists a new booking and fills in its generated id.
func (t *bookingTx) InsertBooking(b *model.Booking) error {
	const q = `INSERT INTO bookings (class_id, member_id, status, waitlist_position, used_pack_id, attendance_type)
               VALUES (?, ?, ?, ?, ?, ?)`
	result, err := t.tx.ExecContext(t.ctx, q,
		b.ClassID, b.MemberID, b.Status, b.WaitlistPosition, b.UsedPackID, b.AttendanceType,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// CancelBooking flips a booking to cancelled, clearing any waitlist
// position, and reports the status it held beforehand.  The row is
// read under FOR UPDATE so the previous status cannot change between
// the read and the write.  Only confirmed and waitlisted bookings are
// cancellable; cancelled and no_show are terminal, so the row is left
// untouched and the caller decides what the previous status means.
func (t *bookingTx) CancelBooking(bookingID uint64) (string, error) {
	const sel = `SELECT status FROM bookings WHERE id = ? FOR UPDATE`
	var prev string
	err := t.tx.QueryRowContext(t.ctx, sel, bookingID).Scan(&prev)
	if err == sql.ErrNoRows {
		return "", ErrBookingNotFound
	}
	if err != nil {
		return "", err
	}
	if prev != model.BookingStatusConfirmed && prev != model.BookingStatusWaitlisted {
		return prev, nil
	}
	const upd = `UPDATE bookings SET status = ?, waitlist_position = NULL
	             WHERE id = ? AND status IN (?, ?)`
	if _, err := t.tx.ExecContext(t.ctx, upd, model.BookingStatusCancelled, bookingID,
		model.BookingStatusConfirmed, model.BookingStatusWaitlisted); err != nil {
		return "", err
	}
	return prev, nil
}

// NextWaitlisted returns the waitlisted booking with the lowest
// position, ties broken by earliest created_at, or nil when the
// waitlist is empty.
func (t *bookingTx) NextWaitlisted(classID uint64) (*model.Booking, error) {
	const q = `SELECT id, class_id, member_id, status, waitlist_position
               FROM bookings
               WHERE class_id = ? AND status = ?
               ORDER BY waitlist_position ASC, created_at ASC
               LIMIT 1
               FOR UPDATE`
	var (
		b   model.Booking
		pos sql.NullInt64
	)
	err := t.tx.QueryRowContext(t.ctx, q, classID, model.BookingStatusWaitlisted).Scan(
		&b.ID, &b.ClassID, &b.MemberID, &b.Status, &pos,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if pos.Valid {
		v := uint32(pos.Int64)
		b.WaitlistPosition = &v
	}
	return &b, nil
}

// Promote flips a waitlisted booking to confirmed, clears its position
// and stamps waitlist_notified_at.  Keyed on the current status so a
// raced promotion is a no-op.
func (t *bookingTx) Promote(bookingID uint64) error {
	const q = `UPDATE bookings
               SET status = ?, waitlist_position = NULL, waitlist_notified_at = UTC_TIMESTAMP()
               WHERE id = ? AND status = ?`
	_, err := t.tx.ExecContext(t.ctx, q, model.BookingStatusConfirmed, bookingID, model.BookingStatusWaitlisted)
	return err
}

// HasCoveringSubscription reports whether the member holds an active
// subscription on one of the given plans.
func (t *bookingTx) HasCoveringSubscription(memberID uint64, planIDs []uint64) (bool, error) {
	if len(planIDs) == 0 {
		return false, nil
	}
	placeholders := make([]string, len(planIDs))
	args := make([]any, 0, len(planIDs)+2)
	args = append(args, memberID, model.SubscriptionStatusActive)
	for i, id := range planIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := `SELECT COUNT(*) FROM subscriptions
              WHERE member_id = ? AND status = ? AND plan_id IN (` + strings.Join(placeholders, ",") + `)`
	var n int
	if err := t.tx.QueryRowContext(t.ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindDebitablePack returns the member's unexpired pack with remaining
// credits that expires soonest, locked for update, or nil.  Packs
// without an expiry sort last so time-boxed credits are spent first.
func (t *bookingTx) FindDebitablePack(memberID uint64) (*model.CreditPack, error) {
	const q = `SELECT id, member_id, initial_credits, remaining_credits, expires_at
               FROM credit_packs
               WHERE member_id = ? AND remaining_credits > 0
                 AND (expires_at IS NULL OR expires_at > UTC_TIMESTAMP())
               ORDER BY expires_at IS NULL, expires_at ASC, id ASC
               LIMIT 1
               FOR UPDATE`
	var (
		p       model.CreditPack
		expires sql.NullTime
	)
	err := t.tx.QueryRowContext(t.ctx, q, memberID).Scan(
		&p.ID, &p.MemberID, &p.InitialCredits, &p.RemainingCredits, &expires,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if expires.Valid {
		e := expires.Time.UTC()
		p.ExpiresAt = &e
	}
	return &p, nil
}

// DebitPack decrements a pack's remaining credits when still positive.
// ok is false when the pack raced to zero since selection.
func (t *bookingTx) DebitPack(packID uint64) (uint32, bool, error) {
	const upd = `UPDATE credit_packs SET remaining_credits = remaining_credits - 1
                 WHERE id = ? AND remaining_credits > 0`
	result, err := t.tx.ExecContext(t.ctx, upd, packID)
	if err != nil {
		return 0, false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if affected == 0 {
		return 0, false, nil
	}
	const sel = `SELECT remaining_credits FROM credit_packs WHERE id = ?`
	var remaining uint32
	if err := t.tx.QueryRowContext(t.ctx, sel, packID).Scan(&remaining); err != nil {
		return 0, false, err
	}
	return remaining, true, nil
}

// RefundPack increments remaining credits unless the pack is already
// back at its purchased allotment.  ok is false when the refund was
// capped.  Refunds apply even to expired packs.
func (t *bookingTx) RefundPack(packID uint64) (bool, error) {
	const upd = `UPDATE credit_packs SET remaining_credits = remaining_credits + 1
                 WHERE id = ? AND remaining_credits < initial_credits`
	result, err := t.tx.ExecContext(t.ctx, upd, packID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetDetail returns a booking joined with its member and class.
func (s *BookingStore) GetDetail(ctx context.Context, bookingID uint64) (*service.BookingDetail, error) {
	const q = `SELECT b.id, b.class_id, b.member_id, b.status, b.waitlist_position, b.used_pack_id,
                      b.checked_in_at IS NOT NULL, b.attendance_type,
                      m.tenant_id, m.email, m.first_name,
                      c.title, c.starts_at, c.zoom_url
               FROM bookings b
               JOIN members m ON m.id = b.member_id
               JOIN classes c ON c.id = b.class_id
               WHERE b.id = ?`
	var (
		det     service.BookingDetail
		pos     sql.NullInt64
		packID  sql.NullInt64
		zoomURL sql.NullString
	)
	err := s.db.QueryRowContext(ctx, q, bookingID).Scan(
		&det.ID, &det.ClassID, &det.MemberID, &det.Status, &pos, &packID,
		&det.CheckedIn, &det.AttendanceType,
		&det.TenantID, &det.MemberEmail, &det.MemberFirstName,
		&det.ClassTitle, &det.ClassStartsAt, &zoomURL,
	)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if pos.Valid {
		v := uint32(pos.Int64)
		det.WaitlistPosition = &v
	}
	if packID.Valid {
		v := uint64(packID.Int64)
		det.UsedPackID = &v
	}
	if zoomURL.Valid {
		u := zoomURL.String
		det.ClassZoomURL = &u
	}
	return &det, nil
}

// GetMember returns a member by id or ErrMemberNotFound.
func (s *BookingStore) GetMember(ctx context.Context, memberID uint64) (*model.Member, error) {
	const q = `SELECT id, tenant_id, email, first_name, created_at, updated_at FROM members WHERE id = ?`
	var m model.Member
	err := s.db.QueryRowContext(ctx, q, memberID).Scan(
		&m.ID, &m.TenantID, &m.Email, &m.FirstName, &m.CreatedAt, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetTenant returns a tenant by id or ErrTenantNotFound.
func (s *BookingStore) GetTenant(ctx context.Context, tenantID uint64) (*model.Tenant, error) {
	const q = `SELECT id, name, no_show_fee_cents, created_at, updated_at FROM tenants WHERE id = ?`
	var (
		t   model.Tenant
		fee sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, q, tenantID).Scan(&t.ID, &t.Name, &fee, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}
	if fee.Valid {
		v := uint32(fee.Int64)
		t.NoShowFeeCents = &v
	}
	return &t, nil
}

// SetCheckedIn stamps or clears checked_in_at.  Idempotent: re-checking
// an already checked-in booking refreshes the timestamp.
func (s *BookingStore) SetCheckedIn(ctx context.Context, bookingID uint64, checked bool) error {
	var q string
	if checked {
		q = `UPDATE bookings SET checked_in_at = UTC_TIMESTAMP() WHERE id = ?`
	} else {
		q = `UPDATE bookings SET checked_in_at = NULL WHERE id = ?`
	}
	result, err := s.db.ExecContext(ctx, q, bookingID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// UTC_TIMESTAMP has second granularity, so a rapid re-check-in
		// can match zero rows; only a truly missing booking is an error.
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE id = ?`, bookingID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrBookingNotFound
		}
	}
	return nil
}

// MarkNoShow flips a confirmed booking to no_show.  The update is
// keyed on the current status, so cancelled and waitlisted bookings
// are never flipped even when the caller's earlier read raced.
func (s *BookingStore) MarkNoShow(ctx context.Context, bookingID uint64) (bool, error) {
	const q = `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`
	result, err := s.db.ExecContext(ctx, q, model.BookingStatusNoShow, bookingID, model.BookingStatusConfirmed)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ConfirmedCounts returns the number of confirmed bookings per class.
// Classes with no bookings are absent from the map.
func (s *BookingStore) ConfirmedCounts(ctx context.Context, classIDs []uint64) (map[uint64]int, error) {
	if len(classIDs) == 0 {
		return map[uint64]int{}, nil
	}
	placeholders := make([]string, len(classIDs))
	args := make([]any, 0, len(classIDs)+1)
	args = append(args, model.BookingStatusConfirmed)
	for i, id := range classIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := `SELECT class_id, COUNT(*) FROM bookings
              WHERE status = ? AND class_id IN (` + strings.Join(placeholders, ",") + `)
              GROUP BY class_id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[uint64]int, len(classIDs))
	for rows.Next() {
		var classID uint64
		var n int
		if err := rows.Scan(&classID, &n); err != nil {
			return nil, err
		}
		counts[classID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// ListConfirmedByClass returns ids of the class's confirmed bookings
// whose members belong to the tenant, in booking order.
func (s *BookingStore) ListConfirmedByClass(ctx context.Context, classID, tenantID uint64) ([]uint64, error) {
	const q = `SELECT b.id
               FROM bookings b
               JOIN members m ON m.id = b.member_id
               WHERE b.class_id = ? AND b.status = ? AND m.tenant_id = ?
               ORDER BY b.id`
	rows, err := s.db.QueryContext(ctx, q, classID, model.BookingStatusConfirmed, tenantID)
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

// ListActiveSubscriptions returns the member's active subscriptions,
// newest first.  Backs the front-desk credit summary.
func (s *BookingStore) ListActiveSubscriptions(ctx context.Context, memberID uint64) ([]model.Subscription, error) {
	const q = `SELECT id, member_id, plan_id, status, created_at, updated_at
               FROM subscriptions
               WHERE member_id = ? AND status = ?
               ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q, memberID, model.SubscriptionStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	subs := make([]model.Subscription, 0)
	for rows.Next() {
		var sub model.Subscription
		if err := rows.Scan(&sub.ID, &sub.MemberID, &sub.PlanID, &sub.Status, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

// ListActivePacks returns the member's unexpired credit packs with
// credits remaining, soonest-expiring first (never-expiring last),
// matching the order FindDebitablePack consumes them in.
func (s *BookingStore) ListActivePacks(ctx context.Context, memberID uint64) ([]model.CreditPack, error) {
	const q = `SELECT id, member_id, initial_credits, remaining_credits, expires_at, created_at, updated_at
               FROM credit_packs
               WHERE member_id = ? AND remaining_credits > 0
                 AND (expires_at IS NULL OR expires_at > UTC_TIMESTAMP())
               ORDER BY expires_at IS NULL, expires_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, q, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	packs := make([]model.CreditPack, 0)
	for rows.Next() {
		var (
			p       model.CreditPack
			expires sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.MemberID, &p.InitialCredits, &p.RemainingCredits, &expires, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if expires.Valid {
			t := expires.Time
			p.ExpiresAt = &t
		}
		packs = append(packs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return packs, nil
}
