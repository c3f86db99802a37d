package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-scheduling/internal/shift"
)

var (
	ErrAppointmentNotFound    = errors.New("appointment not found")
	ErrPatientNotFound        = errors.New("patient not found")
	ErrDoctorNotFound         = errors.New("doctor not found")
	ErrShiftDoctorMismatch    = errors.New("shift belongs to a different doctor")
	ErrOutsideShift           = errors.New("scheduled time is outside the shift")
	ErrScheduledTimeRequired  = errors.New("scheduled time is required when no shift is given")
	ErrInvalidStateTransition = errors.New("invalid status transition")
	ErrInvalidStatus          = errors.New("invalid appointment status")

	// ErrStatusChanged is returned by Repository.Transition when the stored status
	// no longer matches the expected one.
	ErrStatusChanged = errors.New("appointment status changed concurrently")
)

// Repository contains all DB interactions needed by the lifecycle service.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetByReference(ctx context.Context, ref uuid.UUID) (*Appointment, error)
	List(ctx context.Context, f Filter) ([]Appointment, error)

	// Transition persists next only if the stored status still equals from.
	Transition(ctx context.Context, next *Appointment, from Status) (*Appointment, error)
}

type PatientChecker interface {
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type DoctorChecker interface {
	DoctorExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type ShiftLookup interface {
	GetShift(ctx context.Context, id uuid.UUID) (*shift.Shift, error)
}

// CompletionSubscriber runs inside the completing transaction; an error aborts
// the completion.
type CompletionSubscriber interface {
	AppointmentCompleted(ctx context.Context, ev CompletionEvent) error
}
