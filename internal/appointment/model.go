package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// allowed lists the only legal moves; COMPLETED and CANCELLED are terminal.
var allowed = map[Status][]Status{
	StatusScheduled: {StatusCompleted, StatusCancelled},
}

func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

func (s Status) Terminal() bool {
	return len(allowed[s]) == 0
}

func canTransition(from, to Status) bool {
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Appointment binds a patient to a doctor at a scheduled time, optionally inside
// one of the doctor's shifts. Reference is the externally shared token.
type Appointment struct {
	ID          uuid.UUID
	Reference   uuid.UUID
	PatientID   uuid.UUID
	DoctorID    uuid.UUID
	ShiftID     *uuid.UUID
	ScheduledAt time.Time
	Status      Status
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CreateInput struct {
	PatientID   uuid.UUID
	DoctorID    uuid.UUID
	ShiftID     *uuid.UUID
	ScheduledAt time.Time
}

// Filter matches by equality on every non-nil field.
type Filter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *Status
}

// CompletionEvent is emitted once, when an appointment enters COMPLETED.
type CompletionEvent struct {
	AppointmentID uuid.UUID
	CompletedAt   time.Time
}

func newAppointment(in CreateInput, scheduledAt, now time.Time) Appointment {
	return Appointment{
		ID:          uuid.New(),
		Reference:   uuid.New(),
		PatientID:   in.PatientID,
		DoctorID:    in.DoctorID,
		ShiftID:     in.ShiftID,
		ScheduledAt: scheduledAt.UTC(),
		Status:      StatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Complete returns the appointment moved to COMPLETED at the given instant.
func (a Appointment) Complete(at time.Time) (Appointment, error) {
	return a.transition(StatusCompleted, at)
}

// Cancel returns the appointment moved to CANCELLED.
func (a Appointment) Cancel(at time.Time) (Appointment, error) {
	return a.transition(StatusCancelled, at)
}

func (a Appointment) transition(to Status, at time.Time) (Appointment, error) {
	if !canTransition(a.Status, to) {
		return a, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, a.Status, to)
	}

	next := a
	next.Status = to
	next.UpdatedAt = at
	if to == StatusCompleted {
		completedAt := at
		next.CompletedAt = &completedAt
	}
	return next, nil
}
