package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/slichti/studio-platform/internal/model"
)

// ConflictChecker is the slice of ConflictService the bulk operations
// need, kept as an interface so tests can substitute a fake.
type ConflictChecker interface {
	CheckInstructorConflictBatch(ctx context.Context, instructorID uint64, placements []Placement, excludeIDs []uint64) ([]BatchConflict, error)
	CheckRoomConflictBatch(ctx context.Context, locationID uint64, placements []Placement, excludeIDs []uint64) ([]BatchConflict, error)
}

// BulkResult reports how many classes a bulk operation touched.
type BulkResult struct {
	Affected int `json:"affected"`
}

// BulkUpdateInput reassigns instructor and/or room across a class
// selection.  Nil fields are left unchanged.
type BulkUpdateInput struct {
	Filter       ClassFilter
	ClassIDs     []uint64
	InstructorID *uint64
	LocationID   *uint64
}

// BulkMoveInput shifts every selected class's start time by Offset.
type BulkMoveInput struct {
	Filter   ClassFilter
	ClassIDs []uint64
	Offset   time.Duration
}

// BulkCancelInput cancels a class selection, optionally emailing each
// affected member once.
type BulkCancelInput struct {
	Filter        ClassFilter
	ClassIDs      []uint64
	NotifyMembers bool
	Reason        string
}

// ScheduleService implements the staff-facing bulk schedule
// operations.  Every mutation is validated against the full conflict
// picture first; a single conflict aborts the whole batch before any
// write, so a bulk operation either applies to every selected class or
// to none.
type ScheduleService struct {
	store     ScheduleStore
	conflicts ConflictChecker
	notifier  Notifier
	tasks     TaskRunner
}

// NewScheduleService wires the bulk operations to their store, the
// conflict checker and the notification ports.
func NewScheduleService(store ScheduleStore, conflicts ConflictChecker, notifier Notifier, tasks TaskRunner) *ScheduleService {
	if store == nil || conflicts == nil || notifier == nil || tasks == nil {
		panic("nil dependency passed to NewScheduleService")
	}
	return &ScheduleService{store: store, conflicts: conflicts, notifier: notifier, tasks: tasks}
}

// resolveClasses turns an explicit id list or a filter into the loaded
// class rows, scoped to the tenant.  Explicit ids win over the filter.
func (s *ScheduleService) resolveClasses(ctx context.Context, tenantID uint64, ids []uint64, f ClassFilter) ([]model.Class, error) {
	if len(ids) == 0 {
		var err error
		ids, err = s.store.ResolveClassIDs(ctx, tenantID, f)
		if err != nil {
			return nil, err
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return s.store.GetClasses(ctx, tenantID, ids)
}

// BulkCancel soft-cancels the selected classes and every live booking
// on them, refunding debited packs.  Each class cancels in its own
// transaction; cancellation has no conflict preconditions so partial
// progress on a mid-batch failure is acceptable and retryable.  When
// NotifyMembers is set each distinct affected member gets one email.
func (s *ScheduleService) BulkCancel(ctx context.Context, tenantID uint64, in BulkCancelInput) (*BulkResult, error) {
	classes, err := s.resolveClasses(ctx, tenantID, in.ClassIDs, in.Filter)
	if err != nil {
		return nil, err
	}
	if len(classes) == 0 {
		return &BulkResult{}, nil
	}

	ids := make([]uint64, 0, len(classes))
	for _, c := range classes {
		if c.Status == model.ClassStatusCancelled {
			continue
		}
		ids = append(ids, c.ID)
	}

	var contacts []MemberContact
	if in.NotifyMembers && len(ids) > 0 {
		contacts, err = s.store.DistinctMembersForClasses(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	affected := 0
	for _, id := range ids {
		if _, err := s.store.CancelClassWithBookings(ctx, id); err != nil {
			return &BulkResult{Affected: affected}, fmt.Errorf("cancel class %d: %w", id, err)
		}
		affected++
	}

	if in.NotifyMembers && len(contacts) > 0 {
		reason := in.Reason
		s.tasks.Go("bulk-cancel-notify", func(ctx context.Context) error {
			subject := "Class schedule update"
			for _, c := range contacts {
				html := fmt.Sprintf("<p>Hi %s,</p><p>One or more of your upcoming classes has been cancelled.</p>", c.FirstName)
				if reason != "" {
					html += fmt.Sprintf("<p>Reason: %s</p>", reason)
				}
				if err := s.notifier.SendGenericEmail(ctx, c.Email, subject, html); err != nil {
					log.Printf("schedule-service: cancel notice to member %d failed: %v", c.MemberID, err)
				}
			}
			return nil
		})
	}
	return &BulkResult{Affected: affected}, nil
}

// BulkUpdate reassigns instructor and/or room across the selection.
// The new assignee's calendar is validated against every selected
// class's existing slot; any collision aborts the whole batch with a
// ConflictError before a single row changes.
func (s *ScheduleService) BulkUpdate(ctx context.Context, tenantID uint64, in BulkUpdateInput) (*BulkResult, error) {
	if in.InstructorID == nil && in.LocationID == nil {
		return &BulkResult{}, nil
	}
	classes, err := s.resolveClasses(ctx, tenantID, in.ClassIDs, in.Filter)
	if err != nil {
		return nil, err
	}
	if len(classes) == 0 {
		return &BulkResult{}, nil
	}

	ids := make([]uint64, 0, len(classes))
	placements := make([]Placement, 0, len(classes))
	for _, c := range classes {
		ids = append(ids, c.ID)
		if c.Status == model.ClassStatusActive {
			placements = append(placements, Placement{ClassID: c.ID, StartsAt: c.StartsAt, DurationMinutes: c.DurationMinutes})
		}
	}

	if in.InstructorID != nil {
		found, err := s.conflicts.CheckInstructorConflictBatch(ctx, *in.InstructorID, placements, ids)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return nil, &ConflictError{ClassID: found[0].ClassID, With: found[0].With}
		}
	}
	if in.LocationID != nil {
		found, err := s.conflicts.CheckRoomConflictBatch(ctx, *in.LocationID, placements, ids)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return nil, &ConflictError{ClassID: found[0].ClassID, With: found[0].With}
		}
	}

	if err := s.store.UpdateAssignments(ctx, ids, in.InstructorID, in.LocationID); err != nil {
		return nil, err
	}
	return &BulkResult{Affected: len(ids)}, nil
}

// BulkMove shifts every selected class by the offset.  Validation runs
// in two passes before any write: the moved classes are first checked
// pairwise against each other at their new slots, then each new slot
// is checked against the rest of the calendar with the whole selection
// excluded (a moved class must not collide with another's abandoned
// slot).  All start times then change in one transaction.
func (s *ScheduleService) BulkMove(ctx context.Context, tenantID uint64, in BulkMoveInput) (*BulkResult, error) {
	if in.Offset == 0 {
		return &BulkResult{}, nil
	}
	classes, err := s.resolveClasses(ctx, tenantID, in.ClassIDs, in.Filter)
	if err != nil {
		return nil, err
	}

	var active []model.Class
	for _, c := range classes {
		if c.Status == model.ClassStatusActive {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		return &BulkResult{}, nil
	}

	if conflict := internalMoveConflict(active, in.Offset); conflict != nil {
		return nil, conflict
	}

	ids := make([]uint64, 0, len(active))
	moves := make([]ClassMove, 0, len(active))
	for _, c := range active {
		ids = append(ids, c.ID)
		moves = append(moves, ClassMove{ClassID: c.ID, StartsAt: c.StartsAt.Add(in.Offset)})
	}

	byInstructor := map[uint64][]Placement{}
	byLocation := map[uint64][]Placement{}
	for _, c := range active {
		p := Placement{ClassID: c.ID, StartsAt: c.StartsAt.Add(in.Offset), DurationMinutes: c.DurationMinutes}
		if c.InstructorID != nil {
			byInstructor[*c.InstructorID] = append(byInstructor[*c.InstructorID], p)
		}
		if c.LocationID != nil {
			byLocation[*c.LocationID] = append(byLocation[*c.LocationID], p)
		}
	}
	for instructorID, placements := range byInstructor {
		found, err := s.conflicts.CheckInstructorConflictBatch(ctx, instructorID, placements, ids)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return nil, &ConflictError{ClassID: found[0].ClassID, With: found[0].With}
		}
	}
	for locationID, placements := range byLocation {
		found, err := s.conflicts.CheckRoomConflictBatch(ctx, locationID, placements, ids)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return nil, &ConflictError{ClassID: found[0].ClassID, With: found[0].With}
		}
	}

	if err := s.store.MoveStartTimes(ctx, moves); err != nil {
		return nil, err
	}
	return &BulkResult{Affected: len(moves)}, nil
}

// internalMoveConflict checks the moved classes against each other at
// their shifted slots.  The calendar queries exclude the whole moved
// set, so collisions inside the set are only visible here.
func internalMoveConflict(classes []model.Class, offset time.Duration) *ConflictError {
	for i := 0; i < len(classes); i++ {
		for j := i + 1; j < len(classes); j++ {
			a, b := classes[i], classes[j]
			sameInstructor := a.InstructorID != nil && b.InstructorID != nil && *a.InstructorID == *b.InstructorID
			sameRoom := a.LocationID != nil && b.LocationID != nil && *a.LocationID == *b.LocationID
			if !sameInstructor && !sameRoom {
				continue
			}
			aStart := a.StartsAt.Add(offset)
			bStart := b.StartsAt.Add(offset)
			aEnd := aStart.Add(time.Duration(a.DurationMinutes) * time.Minute)
			bEnd := bStart.Add(time.Duration(b.DurationMinutes) * time.Minute)
			if Overlaps(aStart, aEnd, bStart, bEnd) {
				return &ConflictError{ClassID: a.ID, With: Commitment{
					EventID:  b.ID,
					Kind:     CommitmentKindClass,
					Title:    b.Title,
					StartsAt: bStart,
					EndsAt:   bEnd,
				}}
			}
		}
	}
	return nil
}
