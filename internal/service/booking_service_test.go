package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slichti/studio-platform/internal/model"
)

// --- Mocks ---

// syncRunner executes tasks inline so tests can assert on side effects
// immediately after the call.
type syncRunner struct{}

func (syncRunner) Go(name string, fn func(ctx context.Context) error) {
	_ = fn(context.Background())
}

type mockTx struct {
	lockClassFn       func(classID uint64) (*model.Class, error)
	countByStatusFn   func(classID uint64, status string) (int, error)
	nextPositionFn    func(classID uint64) (uint32, error)
	insertBookingFn   func(b *model.Booking) error
	cancelBookingFn   func(bookingID uint64) (string, error)
	nextWaitlistedFn  func(classID uint64) (*model.Booking, error)
	promoteFn         func(bookingID uint64) error
	hasSubscriptionFn func(memberID uint64, planIDs []uint64) (bool, error)
	findPackFn        func(memberID uint64) (*model.CreditPack, error)
	debitPackFn       func(packID uint64) (uint32, bool, error)
	refundPackFn      func(packID uint64) (bool, error)
}

func (m *mockTx) LockClass(classID uint64) (*model.Class, error) { return m.lockClassFn(classID) }
func (m *mockTx) CountByStatus(classID uint64, status string) (int, error) {
	return m.countByStatusFn(classID, status)
}
func (m *mockTx) NextWaitlistPosition(classID uint64) (uint32, error) {
	return m.nextPositionFn(classID)
}
func (m *mockTx) InsertBooking(b *model.Booking) error         { return m.insertBookingFn(b) }
func (m *mockTx) CancelBooking(bookingID uint64) (string, error) {
	return m.cancelBookingFn(bookingID)
}
func (m *mockTx) NextWaitlisted(classID uint64) (*model.Booking, error) {
	return m.nextWaitlistedFn(classID)
}
func (m *mockTx) Promote(bookingID uint64) error { return m.promoteFn(bookingID) }
func (m *mockTx) HasCoveringSubscription(memberID uint64, planIDs []uint64) (bool, error) {
	return m.hasSubscriptionFn(memberID, planIDs)
}
func (m *mockTx) FindDebitablePack(memberID uint64) (*model.CreditPack, error) {
	return m.findPackFn(memberID)
}
func (m *mockTx) DebitPack(packID uint64) (uint32, bool, error) { return m.debitPackFn(packID) }
func (m *mockTx) RefundPack(packID uint64) (bool, error)        { return m.refundPackFn(packID) }

type mockBookingStore struct {
	tx              *mockTx
	withTxCalled    bool
	getDetailFn     func(ctx context.Context, bookingID uint64) (*BookingDetail, error)
	getMemberFn     func(ctx context.Context, memberID uint64) (*model.Member, error)
	getTenantFn     func(ctx context.Context, tenantID uint64) (*model.Tenant, error)
	setCheckedInFn  func(ctx context.Context, bookingID uint64, checked bool) error
	markNoShowFn    func(ctx context.Context, bookingID uint64) (bool, error)
	listConfirmedFn func(ctx context.Context, classID, tenantID uint64) ([]uint64, error)
}

func (m *mockBookingStore) WithTx(ctx context.Context, fn func(tx BookingTx) error) error {
	m.withTxCalled = true
	return fn(m.tx)
}
func (m *mockBookingStore) GetDetail(ctx context.Context, bookingID uint64) (*BookingDetail, error) {
	return m.getDetailFn(ctx, bookingID)
}
func (m *mockBookingStore) GetMember(ctx context.Context, memberID uint64) (*model.Member, error) {
	return m.getMemberFn(ctx, memberID)
}
func (m *mockBookingStore) GetTenant(ctx context.Context, tenantID uint64) (*model.Tenant, error) {
	return m.getTenantFn(ctx, tenantID)
}
func (m *mockBookingStore) SetCheckedIn(ctx context.Context, bookingID uint64, checked bool) error {
	return m.setCheckedInFn(ctx, bookingID, checked)
}
func (m *mockBookingStore) MarkNoShow(ctx context.Context, bookingID uint64) (bool, error) {
	return m.markNoShowFn(ctx, bookingID)
}
func (m *mockBookingStore) ListConfirmedByClass(ctx context.Context, classID, tenantID uint64) ([]uint64, error) {
	return m.listConfirmedFn(ctx, classID, tenantID)
}

type mockNotifier struct {
	confirmations []string // recipient emails
	subjects      []string // generic email subjects
}

func (n *mockNotifier) SendBookingConfirmation(ctx context.Context, email string, info BookingConfirmation) error {
	n.confirmations = append(n.confirmations, email)
	return nil
}
func (n *mockNotifier) SendGenericEmail(ctx context.Context, email, subject, html string) error {
	n.subjects = append(n.subjects, subject)
	return nil
}

type mockTriggers struct {
	events   []string
	payloads []TriggerPayload
}

func (m *mockTriggers) DispatchTrigger(ctx context.Context, event string, p TriggerPayload) error {
	m.events = append(m.events, event)
	m.payloads = append(m.payloads, p)
	return nil
}

func (m *mockTriggers) payloadFor(event string) (TriggerPayload, bool) {
	for i, e := range m.events {
		if e == event {
			return m.payloads[i], true
		}
	}
	return TriggerPayload{}, false
}

type mockWebhooks struct {
	events  []string
	tenants []uint64
}

func (m *mockWebhooks) Dispatch(ctx context.Context, tenantID uint64, eventType string, data map[string]any) error {
	m.events = append(m.events, eventType)
	m.tenants = append(m.tenants, tenantID)
	return nil
}

type mockProgress struct {
	entries []ProgressEntry
	count   int
}

func (m *mockProgress) LogEntry(ctx context.Context, e ProgressEntry) error {
	m.entries = append(m.entries, e)
	return nil
}
func (m *mockProgress) AttendanceCount(ctx context.Context, memberID uint64) (int, error) {
	return m.count, nil
}

type bookingFixture struct {
	svc      *BookingService
	store    *mockBookingStore
	notifier *mockNotifier
	triggers *mockTriggers
	webhooks *mockWebhooks
	progress *mockProgress
}

func newBookingFixture(store *mockBookingStore) *bookingFixture {
	f := &bookingFixture{
		store:    store,
		notifier: &mockNotifier{},
		triggers: &mockTriggers{},
		webhooks: &mockWebhooks{},
		progress: &mockProgress{},
	}
	f.svc = NewBookingService(store, f.notifier, f.triggers, f.webhooks, f.progress, syncRunner{})
	return f
}

func uint32p(v uint32) *uint32 { return &v }

func sampleClass() *model.Class {
	return &model.Class{
		ID:              1,
		TenantID:        7,
		Title:           "Morning Vinyasa",
		StartsAt:        time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Capacity:        uint32p(10),
		Status:          model.ClassStatusActive,
		AllowCredits:    true,
	}
}

func sampleMember() *model.Member {
	return &model.Member{ID: 4, TenantID: 7, Email: "ana@example.com", FirstName: "Ana"}
}

// --- CreateBooking ---

func TestCreateBooking_DebitsPackAndNotifies(t *testing.T) {
	var inserted *model.Booking
	tx := &mockTx{
		lockClassFn:     func(classID uint64) (*model.Class, error) { return sampleClass(), nil },
		countByStatusFn: func(classID uint64, status string) (int, error) { return 3, nil },
		findPackFn: func(memberID uint64) (*model.CreditPack, error) {
			return &model.CreditPack{ID: 5, MemberID: 4, InitialCredits: 10, RemainingCredits: 6}, nil
		},
		debitPackFn: func(packID uint64) (uint32, bool, error) { return 5, true, nil },
		insertBookingFn: func(b *model.Booking) error {
			b.ID = 100
			inserted = b
			return nil
		},
	}
	store := &mockBookingStore{
		tx:          tx,
		getMemberFn: func(ctx context.Context, memberID uint64) (*model.Member, error) { return sampleMember(), nil },
	}
	f := newBookingFixture(store)

	result, err := f.svc.CreateBooking(context.Background(), 1, 4, model.AttendanceInPerson)

	assert.NoError(t, err)
	assert.Equal(t, uint64(100), result.BookingID)
	assert.Equal(t, model.BookingStatusConfirmed, result.Status)
	if assert.NotNil(t, inserted.UsedPackID) {
		assert.Equal(t, uint64(5), *inserted.UsedPackID)
	}
	assert.Equal(t, []string{"ana@example.com"}, f.notifier.confirmations)
	assert.Contains(t, f.triggers.events, TriggerClassBooked)
	assert.NotContains(t, f.triggers.events, TriggerCreditsLow)
	assert.Equal(t, []string{WebhookBookingCreated}, f.webhooks.events)
	assert.Equal(t, []uint64{7}, f.webhooks.tenants)
}

func TestCreateBooking_ClassFull(t *testing.T) {
	tx := &mockTx{
		lockClassFn:     func(classID uint64) (*model.Class, error) { return sampleClass(), nil },
		countByStatusFn: func(classID uint64, status string) (int, error) { return 10, nil },
		insertBookingFn: func(b *model.Booking) error {
			t.Fatal("booking must not be inserted when the class is full")
			return nil
		},
	}
	f := newBookingFixture(&mockBookingStore{tx: tx})

	result, err := f.svc.CreateBooking(context.Background(), 1, 4, model.AttendanceInPerson)

	assert.ErrorIs(t, err, ErrClassFull)
	assert.Nil(t, result)
	assert.Empty(t, f.webhooks.events)
}

func TestCreateBooking_MembershipCoverageSkipsPacks(t *testing.T) {
	cls := sampleClass()
	cls.IncludedPlanIDs = []uint64{2, 3}
	var inserted *model.Booking
	tx := &mockTx{
		lockClassFn:     func(classID uint64) (*model.Class, error) { return cls, nil },
		countByStatusFn: func(classID uint64, status string) (int, error) { return 0, nil },
		hasSubscriptionFn: func(memberID uint64, planIDs []uint64) (bool, error) {
			assert.Equal(t, []uint64{2, 3}, planIDs)
			return true, nil
		},
		findPackFn: func(memberID uint64) (*model.CreditPack, error) {
			t.Fatal("packs must not be consulted when a membership covers the class")
			return nil, nil
		},
		insertBookingFn: func(b *model.Booking) error {
			b.ID = 101
			inserted = b
			return nil
		},
	}
	store := &mockBookingStore{
		tx:          tx,
		getMemberFn: func(ctx context.Context, memberID uint64) (*model.Member, error) { return sampleMember(), nil },
	}
	f := newBookingFixture(store)

	_, err := f.svc.CreateBooking(context.Background(), 1, 4, model.AttendanceInPerson)

	assert.NoError(t, err)
	assert.Nil(t, inserted.UsedPackID)
}

func TestCreateBooking_ProceedsUnpaidWithoutPack(t *testing.T) {
	var inserted *model.Booking
	tx := &mockTx{
		lockClassFn:     func(classID uint64) (*model.Class, error) { return sampleClass(), nil },
		countByStatusFn: func(classID uint64, status string) (int, error) { return 0, nil },
		findPackFn:      func(memberID uint64) (*model.CreditPack, error) { return nil, nil },
		insertBookingFn: func(b *model.Booking) error {
			b.ID = 102
			inserted = b
			return nil
		},
	}
	store := &mockBookingStore{
		tx:          tx,
		getMemberFn: func(ctx context.Context, memberID uint64) (*model.Member, error) { return sampleMember(), nil },
	}
	f := newBookingFixture(store)

	result, err := f.svc.CreateBooking(context.Background(), 1, 4, model.AttendanceInPerson)

	assert.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, result.Status)
	assert.Nil(t, inserted.UsedPackID)
}

func TestCreateBooking_CreditsLowTrigger(t *testing.T) {
	tx := &mockTx{
		lockClassFn:     func(classID uint64) (*model.Class, error) { return sampleClass(), nil },
		countByStatusFn: func(classID uint64, status string) (int, error) { return 0, nil },
		findPackFn: func(memberID uint64) (*model.CreditPack, error) {
			return &model.CreditPack{ID: 5, MemberID: 4, InitialCredits: 10, RemainingCredits: 3}, nil
		},
		debitPackFn:     func(packID uint64) (uint32, bool, error) { return 2, true, nil },
		insertBookingFn: func(b *model.Booking) error { b.ID = 103; return nil },
	}
	store := &mockBookingStore{
		tx:          tx,
		getMemberFn: func(ctx context.Context, memberID uint64) (*model.Member, error) { return sampleMember(), nil },
	}
	f := newBookingFixture(store)

	_, err := f.svc.CreateBooking(context.Background(), 1, 4, model.AttendanceInPerson)

	assert.NoError(t, err)
	p, ok := f.triggers.payloadFor(TriggerCreditsLow)
	if assert.True(t, ok, "credits_low trigger expected at 2 remaining") {
		assert.Equal(t, uint32(2), p.Data["remaining_credits"])
	}
}

func TestCreateBooking_CancelledClassRejected(t *testing.T) {
	cls := sampleClass()
	cls.Status = model.ClassStatusCancelled
	tx := &mockTx{
		lockClassFn: func(classID uint64) (*model.Class, error) { return cls, nil },
		insertBookingFn: func(b *model.Booking) error {
			t.Fatal("no booking may be created for a cancelled class")
			return nil
		},
	}
	f := newBookingFixture(&mockBookingStore{tx: tx})

	result, err := f.svc.CreateBooking(context.Background(), 1, 4, model.AttendanceInPerson)

	assert.ErrorIs(t, err, ErrClassCancelled)
	assert.Nil(t, result)
	assert.Empty(t, f.webhooks.events)
}

// --- JoinWaitlist ---

func TestJoinWaitlist_AssignsNextPosition(t *testing.T) {
	cls := sampleClass()
	cls.WaitlistCapacity = uint32p(5)
	var inserted *model.Booking
	tx := &mockTx{
		lockClassFn:     func(classID uint64) (*model.Class, error) { return cls, nil },
		countByStatusFn: func(classID uint64, status string) (int, error) { return 2, nil },
		nextPositionFn:  func(classID uint64) (uint32, error) { return 3, nil },
		insertBookingFn: func(b *model.Booking) error {
			b.ID = 200
			inserted = b
			return nil
		},
	}
	store := &mockBookingStore{
		tx:          tx,
		getMemberFn: func(ctx context.Context, memberID uint64) (*model.Member, error) { return sampleMember(), nil },
	}
	f := newBookingFixture(store)

	result, err := f.svc.JoinWaitlist(context.Background(), 1, 4)

	assert.NoError(t, err)
	assert.Equal(t, model.BookingStatusWaitlisted, result.Status)
	assert.Equal(t, uint32(3), result.Position)
	if assert.NotNil(t, inserted.WaitlistPosition) {
		assert.Equal(t, uint32(3), *inserted.WaitlistPosition)
	}
	p, ok := f.triggers.payloadFor(TriggerWaitlistJoined)
	if assert.True(t, ok) {
		assert.Equal(t, uint32(3), p.Data["position"])
	}
}

func TestJoinWaitlist_SkipsPositionsHeldBySurvivors(t *testing.T) {
	// Two waitlisted bookings remain at positions 2 and 3 after the
	// head of the list cancelled.  The newcomer must land at 4, not at
	// count+1 which would collide with the survivor at 3.
	cls := sampleClass()
	cls.WaitlistCapacity = uint32p(5)
	var inserted *model.Booking
	tx := &mockTx{
		lockClassFn:     func(classID uint64) (*model.Class, error) { return cls, nil },
		countByStatusFn: func(classID uint64, status string) (int, error) { return 2, nil },
		nextPositionFn:  func(classID uint64) (uint32, error) { return 4, nil },
		insertBookingFn: func(b *model.Booking) error {
			b.ID = 201
			inserted = b
			return nil
		},
	}
	store := &mockBookingStore{
		tx:          tx,
		getMemberFn: func(ctx context.Context, memberID uint64) (*model.Member, error) { return sampleMember(), nil },
	}
	f := newBookingFixture(store)

	result, err := f.svc.JoinWaitlist(context.Background(), 1, 4)

	assert.NoError(t, err)
	assert.Equal(t, uint32(4), result.Position)
	if assert.NotNil(t, inserted.WaitlistPosition) {
		assert.Equal(t, uint32(4), *inserted.WaitlistPosition)
	}
}

func TestJoinWaitlist_CancelledClassRejected(t *testing.T) {
	cls := sampleClass()
	cls.Status = model.ClassStatusCancelled
	cls.WaitlistCapacity = uint32p(5)
	tx := &mockTx{
		lockClassFn: func(classID uint64) (*model.Class, error) { return cls, nil },
		insertBookingFn: func(b *model.Booking) error {
			t.Fatal("no waitlist entry may be created for a cancelled class")
			return nil
		},
	}
	f := newBookingFixture(&mockBookingStore{tx: tx})

	_, err := f.svc.JoinWaitlist(context.Background(), 1, 4)

	assert.ErrorIs(t, err, ErrClassCancelled)
}

func TestJoinWaitlist_Full(t *testing.T) {
	cls := sampleClass()
	cls.WaitlistCapacity = uint32p(2)
	tx := &mockTx{
		lockClassFn:     func(classID uint64) (*model.Class, error) { return cls, nil },
		countByStatusFn: func(classID uint64, status string) (int, error) { return 2, nil },
		insertBookingFn: func(b *model.Booking) error {
			t.Fatal("booking must not be inserted when the waitlist is full")
			return nil
		},
	}
	f := newBookingFixture(&mockBookingStore{tx: tx})

	_, err := f.svc.JoinWaitlist(context.Background(), 1, 4)

	assert.ErrorIs(t, err, ErrWaitlistFull)
}

// --- CancelBooking ---

func confirmedDetail() *BookingDetail {
	packID := uint64(5)
	return &BookingDetail{
		ID:              100,
		ClassID:         1,
		MemberID:        4,
		Status:          model.BookingStatusConfirmed,
		UsedPackID:      &packID,
		TenantID:        7,
		MemberEmail:     "ana@example.com",
		MemberFirstName: "Ana",
		ClassTitle:      "Morning Vinyasa",
		ClassStartsAt:   time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestCancelBooking_AlreadyCancelledIsNoop(t *testing.T) {
	det := confirmedDetail()
	det.Status = model.BookingStatusCancelled
	store := &mockBookingStore{
		getDetailFn: func(ctx context.Context, bookingID uint64) (*BookingDetail, error) { return det, nil },
	}
	f := newBookingFixture(store)

	err := f.svc.CancelBooking(context.Background(), 100)

	assert.NoError(t, err)
	assert.False(t, store.withTxCalled, "no transaction for an already-cancelled booking")
	assert.Empty(t, f.webhooks.events)
}

func TestCancelBooking_NoShowIsTerminal(t *testing.T) {
	det := confirmedDetail()
	det.Status = model.BookingStatusNoShow
	store := &mockBookingStore{
		getDetailFn: func(ctx context.Context, bookingID uint64) (*BookingDetail, error) { return det, nil },
	}
	f := newBookingFixture(store)

	err := f.svc.CancelBooking(context.Background(), 100)

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.False(t, store.withTxCalled, "a no-show booking must never be cancelled or refunded")
	assert.Empty(t, f.webhooks.events)
}

func TestCancelBooking_RacedNoShowSkipsRefund(t *testing.T) {
	// The booking was confirmed when loaded but a no-show mark landed
	// before the row lock.  The conditional update touches nothing, so
	// no refund, no promotion and no cancellation side effects.
	tx := &mockTx{
		lockClassFn:     func(classID uint64) (*model.Class, error) { return sampleClass(), nil },
		cancelBookingFn: func(bookingID uint64) (string, error) { return model.BookingStatusNoShow, nil },
		refundPackFn: func(packID uint64) (bool, error) {
			t.Fatal("no refund when the cancellation did not change the row")
			return false, nil
		},
		nextWaitlistedFn: func(classID uint64) (*model.Booking, error) {
			t.Fatal("no promotion when the cancellation did not change the row")
			return nil, nil
		},
	}
	store := &mockBookingStore{
		tx:          tx,
		getDetailFn: func(ctx context.Context, bookingID uint64) (*BookingDetail, error) { return confirmedDetail(), nil },
	}
	f := newBookingFixture(store)

	err := f.svc.CancelBooking(context.Background(), 100)

	assert.NoError(t, err)
	assert.Empty(t, f.triggers.events)
	assert.Empty(t, f.webhooks.events)
}

func TestCancelBooking_RefundsPackAndPromotesNextWaitlisted(t *testing.T) {
	pos := uint32(1)
	promoted := &model.Booking{ID: 300, ClassID: 1, MemberID: 9, Status: model.BookingStatusWaitlisted, WaitlistPosition: &pos}
	var refunded []uint64
	var promotedIDs []uint64
	tx := &mockTx{
		lockClassFn:     func(classID uint64) (*model.Class, error) { return sampleClass(), nil },
		cancelBookingFn: func(bookingID uint64) (string, error) { return model.BookingStatusConfirmed, nil },
		refundPackFn: func(packID uint64) (bool, error) {
			refunded = append(refunded, packID)
			return true, nil
		},
		nextWaitlistedFn: func(classID uint64) (*model.Booking, error) { return promoted, nil },
		promoteFn: func(bookingID uint64) error {
			promotedIDs = append(promotedIDs, bookingID)
			return nil
		},
	}
	store := &mockBookingStore{
		tx: tx,
		getDetailFn: func(ctx context.Context, bookingID uint64) (*BookingDetail, error) {
			if bookingID == 300 {
				return &BookingDetail{
					ID: 300, ClassID: 1, MemberID: 9, Status: model.BookingStatusConfirmed,
					TenantID: 7, MemberEmail: "leo@example.com", MemberFirstName: "Leo",
					ClassTitle: "Morning Vinyasa",
				}, nil
			}
			return confirmedDetail(), nil
		},
	}
	f := newBookingFixture(store)

	err := f.svc.CancelBooking(context.Background(), 100)

	assert.NoError(t, err)
	assert.Equal(t, []uint64{5}, refunded)
	assert.Equal(t, []uint64{300}, promotedIDs)
	assert.Contains(t, f.triggers.events, TriggerBookingCancelled)
	assert.Contains(t, f.triggers.events, TriggerWaitlistPromoted)
	assert.Equal(t, []string{"leo@example.com"}, f.notifier.confirmations)
	assert.Contains(t, f.webhooks.events, WebhookBookingCancelled)
}

func TestCancelBooking_WaitlistedFreesNoSeat(t *testing.T) {
	det := confirmedDetail()
	det.Status = model.BookingStatusWaitlisted
	det.UsedPackID = nil
	tx := &mockTx{
		lockClassFn:     func(classID uint64) (*model.Class, error) { return sampleClass(), nil },
		cancelBookingFn: func(bookingID uint64) (string, error) { return model.BookingStatusWaitlisted, nil },
		nextWaitlistedFn: func(classID uint64) (*model.Booking, error) {
			t.Fatal("cancelling a waitlisted booking must not promote anyone")
			return nil, nil
		},
	}
	store := &mockBookingStore{
		tx:          tx,
		getDetailFn: func(ctx context.Context, bookingID uint64) (*BookingDetail, error) { return det, nil },
	}
	f := newBookingFixture(store)

	err := f.svc.CancelBooking(context.Background(), 100)

	assert.NoError(t, err)
	assert.Empty(t, f.notifier.confirmations)
}

// --- CheckIn ---

func TestCheckIn_CrossTenantRejectedBeforeWrite(t *testing.T) {
	writes := 0
	store := &mockBookingStore{
		getDetailFn: func(ctx context.Context, bookingID uint64) (*BookingDetail, error) { return confirmedDetail(), nil },
		setCheckedInFn: func(ctx context.Context, bookingID uint64, checked bool) error {
			writes++
			return nil
		},
	}
	f := newBookingFixture(store)

	err := f.svc.CheckIn(context.Background(), 100, true, 99)

	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, writes)
	assert.Empty(t, f.webhooks.events)
}

func TestCheckIn_FirstAttendanceMilestone(t *testing.T) {
	store := &mockBookingStore{
		getDetailFn:    func(ctx context.Context, bookingID uint64) (*BookingDetail, error) { return confirmedDetail(), nil },
		setCheckedInFn: func(ctx context.Context, bookingID uint64, checked bool) error { return nil },
	}
	f := newBookingFixture(store)
	f.progress.count = 1

	err := f.svc.CheckIn(context.Background(), 100, true, 7)

	assert.NoError(t, err)
	assert.Len(t, f.progress.entries, 1)
	assert.Equal(t, "class_attendance", f.progress.entries[0].MetricDefinitionID)
	assert.Contains(t, f.webhooks.events, WebhookBookingCheckedIn)
	p, ok := f.triggers.payloadFor(TriggerAttendanceMilestone)
	if assert.True(t, ok) {
		assert.Equal(t, "first", p.Data["milestone"])
	}
}

func TestCheckIn_NonMilestoneCountIsQuiet(t *testing.T) {
	store := &mockBookingStore{
		getDetailFn:    func(ctx context.Context, bookingID uint64) (*BookingDetail, error) { return confirmedDetail(), nil },
		setCheckedInFn: func(ctx context.Context, bookingID uint64, checked bool) error { return nil },
	}
	f := newBookingFixture(store)
	f.progress.count = 7

	err := f.svc.CheckIn(context.Background(), 100, true, 7)

	assert.NoError(t, err)
	assert.NotContains(t, f.triggers.events, TriggerAttendanceMilestone)
}

func TestCheckIn_CheckOutSkipsProgress(t *testing.T) {
	store := &mockBookingStore{
		getDetailFn:    func(ctx context.Context, bookingID uint64) (*BookingDetail, error) { return confirmedDetail(), nil },
		setCheckedInFn: func(ctx context.Context, bookingID uint64, checked bool) error { return nil },
	}
	f := newBookingFixture(store)

	err := f.svc.CheckIn(context.Background(), 100, false, 7)

	assert.NoError(t, err)
	assert.Empty(t, f.progress.entries)
	assert.Contains(t, f.webhooks.events, WebhookBookingCheckedOut)
}

func TestCheckInAll_ProcessesEveryConfirmedBooking(t *testing.T) {
	var checked []uint64
	store := &mockBookingStore{
		listConfirmedFn: func(ctx context.Context, classID, tenantID uint64) ([]uint64, error) {
			return []uint64{100, 101}, nil
		},
		getDetailFn: func(ctx context.Context, bookingID uint64) (*BookingDetail, error) {
			det := confirmedDetail()
			det.ID = bookingID
			return det, nil
		},
		setCheckedInFn: func(ctx context.Context, bookingID uint64, checked2 bool) error {
			checked = append(checked, bookingID)
			return nil
		},
	}
	f := newBookingFixture(store)

	processed, err := f.svc.CheckInAll(context.Background(), 1, 7, true)

	assert.NoError(t, err)
	assert.Equal(t, 2, processed)
	assert.Equal(t, []uint64{100, 101}, checked)
}

// --- MarkNoShow ---

func TestMarkNoShow_SendsFeeNoticeWhenConfigured(t *testing.T) {
	fee := uint32(1500)
	store := &mockBookingStore{
		getDetailFn:  func(ctx context.Context, bookingID uint64) (*BookingDetail, error) { return confirmedDetail(), nil },
		markNoShowFn: func(ctx context.Context, bookingID uint64) (bool, error) { return true, nil },
		getTenantFn: func(ctx context.Context, tenantID uint64) (*model.Tenant, error) {
			return &model.Tenant{ID: 7, Name: "Flow Studio", NoShowFeeCents: &fee}, nil
		},
	}
	f := newBookingFixture(store)

	err := f.svc.MarkNoShow(context.Background(), 100)

	assert.NoError(t, err)
	assert.Len(t, f.notifier.subjects, 1)
	assert.Contains(t, f.notifier.subjects[0], "Missed class")
	p, ok := f.triggers.payloadFor(TriggerClassNoShow)
	if assert.True(t, ok) {
		assert.Equal(t, uint32(1500), p.Data["fee_cents"])
	}
}

func TestMarkNoShow_CancelledBookingRejected(t *testing.T) {
	det := confirmedDetail()
	det.Status = model.BookingStatusCancelled
	store := &mockBookingStore{
		getDetailFn: func(ctx context.Context, bookingID uint64) (*BookingDetail, error) { return det, nil },
		markNoShowFn: func(ctx context.Context, bookingID uint64) (bool, error) {
			t.Fatal("a cancelled booking must never become a no-show")
			return false, nil
		},
	}
	f := newBookingFixture(store)

	err := f.svc.MarkNoShow(context.Background(), 100)

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, f.notifier.subjects, "no fee notice for a member who cancelled")
	assert.Empty(t, f.triggers.events)
}

func TestMarkNoShow_WaitlistedBookingRejected(t *testing.T) {
	det := confirmedDetail()
	det.Status = model.BookingStatusWaitlisted
	det.UsedPackID = nil
	store := &mockBookingStore{
		getDetailFn: func(ctx context.Context, bookingID uint64) (*BookingDetail, error) { return det, nil },
		markNoShowFn: func(ctx context.Context, bookingID uint64) (bool, error) {
			t.Fatal("a waitlisted booking must never become a no-show")
			return false, nil
		},
	}
	f := newBookingFixture(store)

	err := f.svc.MarkNoShow(context.Background(), 100)

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, f.triggers.events)
}

func TestMarkNoShow_AlreadyMarkedIsQuiet(t *testing.T) {
	store := &mockBookingStore{
		getDetailFn:  func(ctx context.Context, bookingID uint64) (*BookingDetail, error) { return confirmedDetail(), nil },
		markNoShowFn: func(ctx context.Context, bookingID uint64) (bool, error) { return false, nil },
	}
	f := newBookingFixture(store)

	err := f.svc.MarkNoShow(context.Background(), 100)

	assert.NoError(t, err)
	assert.Empty(t, f.notifier.subjects)
	assert.Empty(t, f.triggers.events)
}

func TestMarkNoShow_NoFeeConfigured(t *testing.T) {
	store := &mockBookingStore{
		getDetailFn:  func(ctx context.Context, bookingID uint64) (*BookingDetail, error) { return confirmedDetail(), nil },
		markNoShowFn: func(ctx context.Context, bookingID uint64) (bool, error) { return true, nil },
		getTenantFn: func(ctx context.Context, tenantID uint64) (*model.Tenant, error) {
			return &model.Tenant{ID: 7, Name: "Flow Studio"}, nil
		},
	}
	f := newBookingFixture(store)

	err := f.svc.MarkNoShow(context.Background(), 100)

	assert.NoError(t, err)
	assert.Empty(t, f.notifier.subjects)
	assert.Empty(t, f.triggers.events)
}
