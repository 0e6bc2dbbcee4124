package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/slichti/studio-platform/internal/model"
)

// creditsLowThreshold triggers a credits_low automation event when a
// debited pack drops to this many credits or fewer.
const creditsLowThreshold = 2

// attendanceMilestones are the visit counts that fire a celebratory
// trigger, in addition to the very first attendance.
var attendanceMilestones = map[int]bool{10: true, 25: true, 50: true, 100: true, 250: true, 500: true}

// BookingResult reports the outcome of a booking or waitlist join.
type BookingResult struct {
	BookingID uint64 `json:"booking_id"`
	Status    string `json:"status"`
	Position  uint32 `json:"position,omitempty"`
}

// BookingService is the booking/waitlist/credit state machine for a
// single class.  Capacity checks, credit debits and waitlist
// promotions run under a row lock on the class so concurrent requests
// for the same class are serialized; side effects run on the task
// runner after the transaction commits and never roll anything back.
type BookingService struct {
	store    BookingStore
	notifier Notifier
	triggers TriggerDispatcher
	webhooks WebhookDispatcher
	progress ProgressTracker
	tasks    TaskRunner
}

// NewBookingService wires the booking state machine to its store and
// side-effect ports.  All dependencies must be non-nil.
func NewBookingService(store BookingStore, notifier Notifier, triggers TriggerDispatcher, webhooks WebhookDispatcher, progress ProgressTracker, tasks TaskRunner) *BookingService {
	if store == nil || notifier == nil || triggers == nil || webhooks == nil || progress == nil || tasks == nil {
		panic("nil dependency passed to NewBookingService")
	}
	return &BookingService{
		store:    store,
		notifier: notifier,
		triggers: triggers,
		webhooks: webhooks,
		progress: progress,
		tasks:    tasks,
	}
}

// GetBooking loads the joined detail for a booking.  Used by the API
// layer for ownership checks before cancellation.
func (s *BookingService) GetBooking(ctx context.Context, bookingID uint64) (*BookingDetail, error) {
	return s.store.GetDetail(ctx, bookingID)
}

// CreateBooking books a member into a class.  Payment resolution:
// membership coverage first, then the soonest-expiring credit pack
// when the class allows credits, otherwise the booking proceeds
// unpaid (enforcement is delegated to the checkout flow).  Returns
// ErrClassFull when the confirmed count has reached capacity.
func (s *BookingService) CreateBooking(ctx context.Context, classID, memberID uint64, attendanceType string) (*BookingResult, error) {
	if attendanceType != model.AttendanceZoom {
		attendanceType = model.AttendanceInPerson
	}

	var (
		cls       *model.Class
		booking   model.Booking
		debited   *model.CreditPack
		remaining uint32
	)
	err := s.store.WithTx(ctx, func(tx BookingTx) error {
		var err error
		cls, err = tx.LockClass(classID)
		if err != nil {
			return err
		}
		if cls.Status != model.ClassStatusActive {
			return ErrClassCancelled
		}
		confirmed, err := tx.CountByStatus(classID, model.BookingStatusConfirmed)
		if err != nil {
			return err
		}
		if cls.Capacity != nil && confirmed >= int(*cls.Capacity) {
			return ErrClassFull
		}

		covered := false
		if len(cls.IncludedPlanIDs) > 0 {
			covered, err = tx.HasCoveringSubscription(memberID, cls.IncludedPlanIDs)
			if err != nil {
				return err
			}
		}
		var usedPackID *uint64
		if !covered && cls.AllowCredits {
			pack, err := tx.FindDebitablePack(memberID)
			if err != nil {
				return err
			}
			if pack != nil {
				left, ok, err := tx.DebitPack(pack.ID)
				if err != nil {
					return err
				}
				// A pack raced to zero between selection and debit is
				// treated the same as having no pack: book unpaid.
				if ok {
					id := pack.ID
					usedPackID = &id
					debited = pack
					remaining = left
				}
			}
		}

		booking = model.Booking{
			ClassID:        classID,
			MemberID:       memberID,
			Status:         model.BookingStatusConfirmed,
			UsedPackID:     usedPackID,
			AttendanceType: attendanceType,
		}
		return tx.InsertBooking(&booking)
	})
	if err != nil {
		return nil, err
	}

	s.afterBookingCreated(cls, &booking, debited, remaining)
	return &BookingResult{BookingID: booking.ID, Status: model.BookingStatusConfirmed}, nil
}

// afterBookingCreated queues the confirmation email, the class_booked
// trigger, the booking.created webhook and, when the debited pack ran
// low, a credits_low trigger.
func (s *BookingService) afterBookingCreated(cls *model.Class, b *model.Booking, debited *model.CreditPack, remaining uint32) {
	bookingID := b.ID
	memberID := b.MemberID
	s.tasks.Go("booking-created-effects", func(ctx context.Context) error {
		member, err := s.store.GetMember(ctx, memberID)
		if err != nil {
			return fmt.Errorf("load member %d: %w", memberID, err)
		}
		if err := s.notifier.SendBookingConfirmation(ctx, member.Email, BookingConfirmation{
			Title:    cls.Title,
			StartsAt: cls.StartsAt,
			ZoomURL:  cls.ZoomURL,
		}); err != nil {
			log.Printf("booking-service: confirmation email for booking %d failed: %v", bookingID, err)
		}
		payload := TriggerPayload{
			MemberID:  member.ID,
			Email:     member.Email,
			FirstName: member.FirstName,
			Data:      map[string]any{"class_id": cls.ID, "class_title": cls.Title},
		}
		if err := s.triggers.DispatchTrigger(ctx, TriggerClassBooked, payload); err != nil {
			log.Printf("booking-service: class_booked trigger for booking %d failed: %v", bookingID, err)
		}
		if debited != nil && remaining <= creditsLowThreshold {
			low := payload
			low.Data = map[string]any{"pack_id": debited.ID, "remaining_credits": remaining}
			if err := s.triggers.DispatchTrigger(ctx, TriggerCreditsLow, low); err != nil {
				log.Printf("booking-service: credits_low trigger for pack %d failed: %v", debited.ID, err)
			}
		}
		if err := s.webhooks.Dispatch(ctx, cls.TenantID, WebhookBookingCreated, map[string]any{
			"booking_id": bookingID,
			"class_id":   cls.ID,
			"member_id":  memberID,
			"status":     model.BookingStatusConfirmed,
		}); err != nil {
			log.Printf("booking-service: booking.created webhook for booking %d failed: %v", bookingID, err)
		}
		return nil
	})
}

// JoinWaitlist places a member on a class waitlist at the position
// after the highest one currently held.  Returns ErrWaitlistFull when
// the waitlist capacity has been reached.
func (s *BookingService) JoinWaitlist(ctx context.Context, classID, memberID uint64) (*BookingResult, error) {
	var (
		cls      *model.Class
		booking  model.Booking
		position uint32
	)
	err := s.store.WithTx(ctx, func(tx BookingTx) error {
		var err error
		cls, err = tx.LockClass(classID)
		if err != nil {
			return err
		}
		if cls.Status != model.ClassStatusActive {
			return ErrClassCancelled
		}
		waiting, err := tx.CountByStatus(classID, model.BookingStatusWaitlisted)
		if err != nil {
			return err
		}
		if cls.WaitlistCapacity != nil && waiting >= int(*cls.WaitlistCapacity) {
			return ErrWaitlistFull
		}
		// Positions held by live bookings survive mid-list cancellations,
		// so count+1 could collide with a surviving position.
		position, err = tx.NextWaitlistPosition(classID)
		if err != nil {
			return err
		}
		booking = model.Booking{
			ClassID:          classID,
			MemberID:         memberID,
			Status:           model.BookingStatusWaitlisted,
			WaitlistPosition: &position,
			AttendanceType:   model.AttendanceInPerson,
		}
		return tx.InsertBooking(&booking)
	})
	if err != nil {
		return nil, err
	}

	memberIDCopy := memberID
	pos := position
	s.tasks.Go("waitlist-joined-trigger", func(ctx context.Context) error {
		member, err := s.store.GetMember(ctx, memberIDCopy)
		if err != nil {
			return fmt.Errorf("load member %d: %w", memberIDCopy, err)
		}
		return s.triggers.DispatchTrigger(ctx, TriggerWaitlistJoined, TriggerPayload{
			MemberID:  member.ID,
			Email:     member.Email,
			FirstName: member.FirstName,
			Data:      map[string]any{"class_id": cls.ID, "class_title": cls.Title, "position": pos},
		})
	})
	return &BookingResult{BookingID: booking.ID, Status: model.BookingStatusWaitlisted, Position: position}, nil
}

// CancelBooking cancels a booking, refunds any debited credit pack and
// promotes the next waitlisted member when a confirmed seat was
// freed.  The promotion happens synchronously inside the same
// transaction; only the resulting notifications are deferred.
// Cancelling an already-cancelled booking is a no-op; a no_show
// booking is terminal and fails with ErrInvalidTransition.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID uint64) error {
	det, err := s.store.GetDetail(ctx, bookingID)
	if err != nil {
		return err
	}
	if det.Status == model.BookingStatusCancelled {
		return nil
	}
	if det.Status == model.BookingStatusNoShow {
		return ErrInvalidTransition
	}

	var (
		promoted  *model.Booking
		cancelled bool
	)
	err = s.store.WithTx(ctx, func(tx BookingTx) error {
		// The class row lock serializes this cancellation against
		// concurrent bookings and other cancellations, so two freed
		// seats can never promote the same waitlisted member.
		if _, err := tx.LockClass(det.ClassID); err != nil {
			return err
		}
		prev, err := tx.CancelBooking(bookingID)
		if err != nil {
			return err
		}
		// A raced cancellation or no-show mark means the row did not
		// change: no refund, no promotion, no side effects.
		if prev != model.BookingStatusConfirmed && prev != model.BookingStatusWaitlisted {
			return nil
		}
		cancelled = true
		if det.UsedPackID != nil {
			ok, err := tx.RefundPack(*det.UsedPackID)
			if err != nil {
				return err
			}
			if !ok {
				log.Printf("booking-service: refund for pack %d skipped, already at purchased allotment", *det.UsedPackID)
			}
		}
		if prev == model.BookingStatusConfirmed {
			next, err := tx.NextWaitlisted(det.ClassID)
			if err != nil {
				return err
			}
			if next != nil {
				if err := tx.Promote(next.ID); err != nil {
					return err
				}
				promoted = next
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !cancelled {
		return nil
	}

	s.afterBookingCancelled(det, promoted)
	return nil
}

func (s *BookingService) afterBookingCancelled(det *BookingDetail, promoted *model.Booking) {
	s.tasks.Go("booking-cancelled-effects", func(ctx context.Context) error {
		if err := s.triggers.DispatchTrigger(ctx, TriggerBookingCancelled, TriggerPayload{
			MemberID:  det.MemberID,
			Email:     det.MemberEmail,
			FirstName: det.MemberFirstName,
			Data:      map[string]any{"class_id": det.ClassID, "class_title": det.ClassTitle},
		}); err != nil {
			log.Printf("booking-service: booking_cancelled trigger for booking %d failed: %v", det.ID, err)
		}
		if err := s.webhooks.Dispatch(ctx, det.TenantID, WebhookBookingCancelled, map[string]any{
			"booking_id": det.ID,
			"class_id":   det.ClassID,
			"member_id":  det.MemberID,
		}); err != nil {
			log.Printf("booking-service: booking.cancelled webhook for booking %d failed: %v", det.ID, err)
		}
		return nil
	})
	if promoted == nil {
		return
	}
	promotedID := promoted.ID
	s.tasks.Go("waitlist-promoted-effects", func(ctx context.Context) error {
		pd, err := s.store.GetDetail(ctx, promotedID)
		if err != nil {
			return fmt.Errorf("load promoted booking %d: %w", promotedID, err)
		}
		if err := s.notifier.SendBookingConfirmation(ctx, pd.MemberEmail, BookingConfirmation{
			Title:    pd.ClassTitle,
			StartsAt: pd.ClassStartsAt,
			ZoomURL:  pd.ClassZoomURL,
		}); err != nil {
			log.Printf("booking-service: promotion email for booking %d failed: %v", promotedID, err)
		}
		return s.triggers.DispatchTrigger(ctx, TriggerWaitlistPromoted, TriggerPayload{
			MemberID:  pd.MemberID,
			Email:     pd.MemberEmail,
			FirstName: pd.MemberFirstName,
			Data:      map[string]any{"class_id": pd.ClassID, "class_title": pd.ClassTitle},
		})
	})
}

// CheckIn sets or clears a booking's checked-in timestamp.  When
// callerTenantID is non-zero it must match the tenant owning the
// booking's member record; a mismatch fails with ErrUnauthorized
// before any write, so one tenant cannot mutate another tenant's
// booking by guessing an id.  Re-checking in is an idempotent write.
func (s *BookingService) CheckIn(ctx context.Context, bookingID uint64, checked bool, callerTenantID uint64) error {
	det, err := s.store.GetDetail(ctx, bookingID)
	if err != nil {
		return err
	}
	if callerTenantID != 0 && callerTenantID != det.TenantID {
		return ErrUnauthorized
	}
	if err := s.store.SetCheckedIn(ctx, bookingID, checked); err != nil {
		return err
	}

	event := WebhookBookingCheckedOut
	if checked {
		event = WebhookBookingCheckedIn
	}
	s.tasks.Go("checkin-webhook", func(ctx context.Context) error {
		return s.webhooks.Dispatch(ctx, det.TenantID, event, map[string]any{
			"booking_id": det.ID,
			"class_id":   det.ClassID,
			"member_id":  det.MemberID,
		})
	})
	if checked {
		s.afterCheckIn(det)
	}
	return nil
}

// afterCheckIn records the attendance metric and fires milestone
// triggers (first visit ever, then 10/25/50/100/250/500).  These are
// observational side effects, not part of the booking invariants.
func (s *BookingService) afterCheckIn(det *BookingDetail) {
	s.tasks.Go("attendance-progress", func(ctx context.Context) error {
		if err := s.progress.LogEntry(ctx, ProgressEntry{
			MemberID:           det.MemberID,
			MetricDefinitionID: "class_attendance",
			Value:              1,
			Source:             "checkin",
			Metadata:           map[string]any{"booking_id": det.ID, "class_id": det.ClassID},
			RecordedAt:         time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("log attendance for member %d: %w", det.MemberID, err)
		}
		count, err := s.progress.AttendanceCount(ctx, det.MemberID)
		if err != nil {
			return fmt.Errorf("count attendance for member %d: %w", det.MemberID, err)
		}
		if count != 1 && !attendanceMilestones[count] {
			return nil
		}
		milestone := any(count)
		if count == 1 {
			milestone = "first"
		}
		return s.triggers.DispatchTrigger(ctx, TriggerAttendanceMilestone, TriggerPayload{
			MemberID:  det.MemberID,
			Email:     det.MemberEmail,
			FirstName: det.MemberFirstName,
			Data:      map[string]any{"milestone": milestone, "attendance_count": count},
		})
	})
}

// CheckInAll checks in (or out) every confirmed booking of a class
// scoped to the tenant, one booking at a time.  The batch is not
// atomic: a failure partway through leaves earlier check-ins
// committed, which is acceptable because check-in is idempotent and
// safe to retry.  Returns the number of bookings processed.
func (s *BookingService) CheckInAll(ctx context.Context, classID, tenantID uint64, checked bool) (int, error) {
	ids, err := s.store.ListConfirmedByClass(ctx, classID, tenantID)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, id := range ids {
		if err := s.CheckIn(ctx, id, checked, tenantID); err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}

// MarkNoShow transitions a confirmed booking to no_show (no-op when
// already set; cancelled and waitlisted bookings fail with
// ErrInvalidTransition, so a member who legitimately cancelled is
// never billed a no-show fee).  When the owning tenant has a fee
// configured, a fee notice is emailed and a class_noshow trigger
// fires; the actual charge is delegated to the billing collaborator.
func (s *BookingService) MarkNoShow(ctx context.Context, bookingID uint64) error {
	det, err := s.store.GetDetail(ctx, bookingID)
	if err != nil {
		return err
	}
	if det.Status == model.BookingStatusNoShow {
		return nil
	}
	if det.Status != model.BookingStatusConfirmed {
		return ErrInvalidTransition
	}
	changed, err := s.store.MarkNoShow(ctx, bookingID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	s.tasks.Go("noshow-effects", func(ctx context.Context) error {
		tenant, err := s.store.GetTenant(ctx, det.TenantID)
		if err != nil {
			return fmt.Errorf("load tenant %d: %w", det.TenantID, err)
		}
		if tenant.NoShowFeeCents == nil || *tenant.NoShowFeeCents == 0 {
			return nil
		}
		fee := *tenant.NoShowFeeCents
		// Charging is left to billing; this core only records intent.
		log.Printf("booking-service: no-show fee of %d cents for booking %d deferred to billing", fee, det.ID)
		subject := fmt.Sprintf("Missed class: %s", det.ClassTitle)
		html := fmt.Sprintf("<p>Hi %s,</p><p>You missed %s on %s. A no-show fee of $%.2f applies.</p>",
			det.MemberFirstName, det.ClassTitle, det.ClassStartsAt.UTC().Format("Jan 2 15:04"), float64(fee)/100)
		if err := s.notifier.SendGenericEmail(ctx, det.MemberEmail, subject, html); err != nil {
			log.Printf("booking-service: no-show fee notice for booking %d failed: %v", det.ID, err)
		}
		return s.triggers.DispatchTrigger(ctx, TriggerClassNoShow, TriggerPayload{
			MemberID:  det.MemberID,
			Email:     det.MemberEmail,
			FirstName: det.MemberFirstName,
			Data:      map[string]any{"class_id": det.ClassID, "class_title": det.ClassTitle, "fee_cents": fee},
		})
	})
	return nil
}
