package shift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrShiftNotFound   = errors.New("shift not found")
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrInvalidTimeSlot = errors.New("shift end must be after its start")
	ErrShiftConflict   = errors.New("shift overlaps an existing shift for this doctor")
	ErrScheduleBusy    = errors.New("doctor schedule is being modified, please retry")
)

// ConflictError identifies the existing shift a candidate collides with.
type ConflictError struct {
	ShiftID   uuid.UUID
	StartTime time.Time
	EndTime   time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: shift %s [%s, %s)",
		ErrShiftConflict, e.ShiftID, e.StartTime.Format(time.RFC3339), e.EndTime.Format(time.RFC3339))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrShiftConflict
}

// Repository persists shifts. Create and Update report storage-level overlap
// violations as ErrShiftConflict.
type Repository interface {
	Create(ctx context.Context, s *Shift) error
	Update(ctx context.Context, s *Shift) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Shift, error)
	List(ctx context.Context, f Filter) ([]Shift, error)
}

// DoctorChecker is the external doctor-existence lookup.
type DoctorChecker interface {
	DoctorExists(ctx context.Context, id uuid.UUID) (bool, error)
}
