package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// --- Mock CommitmentSource ---

type mockSource struct {
	kind         string
	byInstructor func(ctx context.Context, instructorID uint64, start, end time.Time, excludeIDs []uint64) ([]Commitment, error)
	byLocation   func(ctx context.Context, locationID uint64, start, end time.Time, excludeIDs []uint64) ([]Commitment, error)
}

func (m *mockSource) Kind() string { return m.kind }
func (m *mockSource) OverlappingByInstructor(ctx context.Context, instructorID uint64, start, end time.Time, excludeIDs []uint64) ([]Commitment, error) {
	return m.byInstructor(ctx, instructorID, start, end, excludeIDs)
}
func (m *mockSource) OverlappingByLocation(ctx context.Context, locationID uint64, start, end time.Time, excludeIDs []uint64) ([]Commitment, error) {
	return m.byLocation(ctx, locationID, start, end, excludeIDs)
}

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

// --- Tests ---

func TestOverlaps_BackToBackDoesNotConflict(t *testing.T) {
	// [10:00, 11:00) then [11:00, 12:00): touching boundaries are fine.
	assert.False(t, Overlaps(at(10, 0), at(11, 0), at(11, 0), at(12, 0)))
	assert.False(t, Overlaps(at(11, 0), at(12, 0), at(10, 0), at(11, 0)))
}

func TestOverlaps_OneMinuteOverlapConflicts(t *testing.T) {
	// [10:00, 11:00) vs [10:59, 12:00) share one minute.
	assert.True(t, Overlaps(at(10, 0), at(11, 0), at(10, 59), at(12, 0)))
}

func TestOverlaps_Containment(t *testing.T) {
	assert.True(t, Overlaps(at(10, 0), at(12, 0), at(10, 30), at(11, 0)))
	assert.True(t, Overlaps(at(10, 30), at(11, 0), at(10, 0), at(12, 0)))
}

func TestCheckInstructorConflict_ConcatenatesSources(t *testing.T) {
	classSrc := &mockSource{
		kind: CommitmentKindClass,
		byInstructor: func(ctx context.Context, instructorID uint64, start, end time.Time, excludeIDs []uint64) ([]Commitment, error) {
			return []Commitment{{EventID: 1, Kind: CommitmentKindClass, Title: "Vinyasa"}}, nil
		},
	}
	apptSrc := &mockSource{
		kind: CommitmentKindAppointment,
		byInstructor: func(ctx context.Context, instructorID uint64, start, end time.Time, excludeIDs []uint64) ([]Commitment, error) {
			return []Commitment{{EventID: 7, Kind: CommitmentKindAppointment, Title: "Private session"}}, nil
		},
	}

	svc := NewConflictService(classSrc, apptSrc)
	found, err := svc.CheckInstructorConflict(context.Background(), 3, at(10, 0), 60)

	assert.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, CommitmentKindClass, found[0].Kind)
	assert.Equal(t, CommitmentKindAppointment, found[1].Kind)
}

func TestCheckInstructorConflict_ComputesHalfOpenEnd(t *testing.T) {
	var gotStart, gotEnd time.Time
	src := &mockSource{
		kind: CommitmentKindClass,
		byInstructor: func(ctx context.Context, instructorID uint64, start, end time.Time, excludeIDs []uint64) ([]Commitment, error) {
			gotStart, gotEnd = start, end
			return nil, nil
		},
	}

	svc := NewConflictService(src)
	_, err := svc.CheckInstructorConflict(context.Background(), 3, at(10, 0), 75)

	assert.NoError(t, err)
	assert.Equal(t, at(10, 0), gotStart)
	assert.Equal(t, at(11, 15), gotEnd)
}

func TestCheckRoomConflict_SourceError(t *testing.T) {
	src := &mockSource{
		kind: CommitmentKindClass,
		byLocation: func(ctx context.Context, locationID uint64, start, end time.Time, excludeIDs []uint64) ([]Commitment, error) {
			return nil, errors.New("db connection failed")
		},
	}

	svc := NewConflictService(src)
	found, err := svc.CheckRoomConflict(context.Background(), 9, at(10, 0), 60)

	assert.Error(t, err)
	assert.Nil(t, found)
}

func TestCheckInstructorConflictBatch_TagsConflictsWithClassID(t *testing.T) {
	src := &mockSource{
		kind: CommitmentKindClass,
		byInstructor: func(ctx context.Context, instructorID uint64, start, end time.Time, excludeIDs []uint64) ([]Commitment, error) {
			// Only the 09:00 placement collides.
			if start.Equal(at(9, 0)) {
				return []Commitment{{EventID: 42, Kind: CommitmentKindClass, Title: "Spin"}}, nil
			}
			return nil, nil
		},
	}

	svc := NewConflictService(src)
	placements := []Placement{
		{ClassID: 10, StartsAt: at(9, 0), DurationMinutes: 60},
		{ClassID: 11, StartsAt: at(14, 0), DurationMinutes: 60},
	}
	conflicts, err := svc.CheckInstructorConflictBatch(context.Background(), 3, placements, []uint64{10, 11})

	assert.NoError(t, err)
	assert.Len(t, conflicts, 1)
	assert.Equal(t, uint64(10), conflicts[0].ClassID)
	assert.Equal(t, uint64(42), conflicts[0].With.EventID)
}

func TestCheckBatch_DefaultsExcludeToOwnPlacement(t *testing.T) {
	var gotExclude []uint64
	src := &mockSource{
		kind: CommitmentKindClass,
		byInstructor: func(ctx context.Context, instructorID uint64, start, end time.Time, excludeIDs []uint64) ([]Commitment, error) {
			gotExclude = excludeIDs
			return nil, nil
		},
	}

	svc := NewConflictService(src)
	_, err := svc.CheckInstructorConflictBatch(context.Background(), 3,
		[]Placement{{ClassID: 5, StartsAt: at(10, 0), DurationMinutes: 45}}, nil)

	assert.NoError(t, err)
	assert.Equal(t, []uint64{5}, gotExclude)
}
