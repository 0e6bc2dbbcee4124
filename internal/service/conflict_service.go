package service

import (
	"context"
	"time"

	"github.com/slichti/studio-platform/internal/model"
)

// Commitment kinds.
const (
	CommitmentKindClass       = "class"
	CommitmentKindAppointment = "appointment"
)

// Commitment is a resource-claiming event occupying an instructor or a
// room over a half-open interval [StartsAt, EndsAt).  Classes and
// appointments both surface as commitments so conflict detection
// operates over one abstraction instead of two hand-duplicated
// queries.
type Commitment struct {
	EventID  uint64
	Kind     string
	Title    string
	StartsAt time.Time
	EndsAt   time.Time
}

// Placement is one proposed class slot in a batch conflict check.
type Placement struct {
	ClassID         uint64
	StartsAt        time.Time
	DurationMinutes uint32
}

// BatchConflict pairs a proposed placement with the existing
// commitment it collides with.
type BatchConflict struct {
	ClassID uint64
	With    Commitment
}

// ClassOverlapStore finds active classes overlapping [start, end) for
// an instructor or room, excluding the given class ids.
type ClassOverlapStore interface {
	FindOverlappingByInstructor(ctx context.Context, instructorID uint64, start, end time.Time, excludeIDs []uint64) ([]model.Class, error)
	FindOverlappingByLocation(ctx context.Context, locationID uint64, start, end time.Time, excludeIDs []uint64) ([]model.Class, error)
}

// AppointmentOverlapStore finds confirmed appointments overlapping
// [start, end) for an instructor or room, excluding the given ids.
type AppointmentOverlapStore interface {
	FindOverlappingByInstructor(ctx context.Context, instructorID uint64, start, end time.Time, excludeIDs []uint64) ([]model.Appointment, error)
	FindOverlappingByLocation(ctx context.Context, locationID uint64, start, end time.Time, excludeIDs []uint64) ([]model.Appointment, error)
}

// CommitmentSource yields the commitments of one event family.  Only
// active/confirmed records are returned; cancelled events never
// conflict.
type CommitmentSource interface {
	Kind() string
	OverlappingByInstructor(ctx context.Context, instructorID uint64, start, end time.Time, excludeIDs []uint64) ([]Commitment, error)
	OverlappingByLocation(ctx context.Context, locationID uint64, start, end time.Time, excludeIDs []uint64) ([]Commitment, error)
}

type classSource struct{ store ClassOverlapStore }

// NewClassSource adapts the class repository into a CommitmentSource.
func NewClassSource(store ClassOverlapStore) CommitmentSource { return &classSource{store: store} }

func (s *classSource) Kind() string { return CommitmentKindClass }

func (s *classSource) OverlappingByInstructor(ctx context.Context, instructorID uint64, start, end time.Time, excludeIDs []uint64) ([]Commitment, error) {
	classes, err := s.store.FindOverlappingByInstructor(ctx, instructorID, start, end, excludeIDs)
	if err != nil {
		return nil, err
	}
	return classCommitments(classes), nil
}

func (s *classSource) OverlappingByLocation(ctx context.Context, locationID uint64, start, end time.Time, excludeIDs []uint64) ([]Commitment, error) {
	classes, err := s.store.FindOverlappingByLocation(ctx, locationID, start, end, excludeIDs)
	if err != nil {
		return nil, err
	}
	return classCommitments(classes), nil
}

func classCommitments(classes []model.Class) []Commitment {
	out := make([]Commitment, 0, len(classes))
	for _, c := range classes {
		out = append(out, Commitment{
			EventID:  c.ID,
			Kind:     CommitmentKindClass,
			Title:    c.Title,
			StartsAt: c.StartsAt,
			EndsAt:   c.EndsAt(),
		})
	}
	return out
}

type appointmentSource struct{ store AppointmentOverlapStore }

// NewAppointmentSource adapts the appointment repository into a
// CommitmentSource.
func NewAppointmentSource(store AppointmentOverlapStore) CommitmentSource {
	return &appointmentSource{store: store}
}

func (s *appointmentSource) Kind() string { return CommitmentKindAppointment }

func (s *appointmentSource) OverlappingByInstructor(ctx context.Context, instructorID uint64, start, end time.Time, excludeIDs []uint64) ([]Commitment, error) {
	appts, err := s.store.FindOverlappingByInstructor(ctx, instructorID, start, end, excludeIDs)
	if err != nil {
		return nil, err
	}
	return appointmentCommitments(appts), nil
}

func (s *appointmentSource) OverlappingByLocation(ctx context.Context, locationID uint64, start, end time.Time, excludeIDs []uint64) ([]Commitment, error) {
	appts, err := s.store.FindOverlappingByLocation(ctx, locationID, start, end, excludeIDs)
	if err != nil {
		return nil, err
	}
	return appointmentCommitments(appts), nil
}

func appointmentCommitments(appts []model.Appointment) []Commitment {
	out := make([]Commitment, 0, len(appts))
	for _, a := range appts {
		out = append(out, Commitment{
			EventID:  a.ID,
			Kind:     CommitmentKindAppointment,
			Title:    a.Title,
			StartsAt: a.StartsAt,
			EndsAt:   a.EndsAt,
		})
	}
	return out
}

// ConflictService answers whether placing an event for an instructor
// or room collides with existing commitments.  It reports facts only:
// a non-empty result is not an error, and callers decide whether it
// blocks the mutation (in this system it always does).
type ConflictService struct {
	sources []CommitmentSource
}

// NewConflictService builds a ConflictService over the given sources.
func NewConflictService(sources ...CommitmentSource) *ConflictService {
	return &ConflictService{sources: sources}
}

// CheckInstructorConflict returns every commitment of the instructor
// overlapping the proposed interval.  excludeIDs lets an update check
// against all other events.  An empty result means no conflict.
func (s *ConflictService) CheckInstructorConflict(ctx context.Context, instructorID uint64, start time.Time, durationMinutes uint32, excludeIDs ...uint64) ([]Commitment, error) {
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	var all []Commitment
	for _, src := range s.sources {
		found, err := src.OverlappingByInstructor(ctx, instructorID, start, end, excludeIDs)
		if err != nil {
			return nil, err
		}
		all = append(all, found...)
	}
	return all, nil
}

// CheckRoomConflict is CheckInstructorConflict scoped by room.
func (s *ConflictService) CheckRoomConflict(ctx context.Context, locationID uint64, start time.Time, durationMinutes uint32, excludeIDs ...uint64) ([]Commitment, error) {
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	var all []Commitment
	for _, src := range s.sources {
		found, err := src.OverlappingByLocation(ctx, locationID, start, end, excludeIDs)
		if err != nil {
			return nil, err
		}
		all = append(all, found...)
	}
	return all, nil
}

// CheckInstructorConflictBatch validates a set of proposed placements
// against the instructor's calendar.  excludeIDs typically holds every
// class in the proposed set so classes being moved are not compared
// against their own current slots.
func (s *ConflictService) CheckInstructorConflictBatch(ctx context.Context, instructorID uint64, placements []Placement, excludeIDs []uint64) ([]BatchConflict, error) {
	return s.checkBatch(ctx, placements, excludeIDs, func(ctx context.Context, src CommitmentSource, start, end time.Time, exclude []uint64) ([]Commitment, error) {
		return src.OverlappingByInstructor(ctx, instructorID, start, end, exclude)
	})
}

// CheckRoomConflictBatch is CheckInstructorConflictBatch scoped by room.
func (s *ConflictService) CheckRoomConflictBatch(ctx context.Context, locationID uint64, placements []Placement, excludeIDs []uint64) ([]BatchConflict, error) {
	return s.checkBatch(ctx, placements, excludeIDs, func(ctx context.Context, src CommitmentSource, start, end time.Time, exclude []uint64) ([]Commitment, error) {
		return src.OverlappingByLocation(ctx, locationID, start, end, exclude)
	})
}

func (s *ConflictService) checkBatch(ctx context.Context, placements []Placement, excludeIDs []uint64,
	query func(ctx context.Context, src CommitmentSource, start, end time.Time, exclude []uint64) ([]Commitment, error)) ([]BatchConflict, error) {
	var conflicts []BatchConflict
	for _, p := range placements {
		end := p.StartsAt.Add(time.Duration(p.DurationMinutes) * time.Minute)
		exclude := excludeIDs
		if len(exclude) == 0 {
			exclude = []uint64{p.ClassID}
		}
		for _, src := range s.sources {
			found, err := query(ctx, src, p.StartsAt, end, exclude)
			if err != nil {
				return nil, err
			}
			for _, c := range found {
				conflicts = append(conflicts, BatchConflict{ClassID: p.ClassID, With: c})
			}
		}
	}
	return conflicts, nil
}

// Overlaps reports whether two half-open intervals collide.  Touching
// boundaries (aEnd == bStart) do not conflict, so back-to-back classes
// are allowed.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
