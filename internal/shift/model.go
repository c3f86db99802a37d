package shift

import (
	"time"

	"github.com/google/uuid"
)

// Shift is a doctor's bounded availability window, optionally tied to a room.
type Shift struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Room      *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Input carries the caller-controlled fields for create and update.
type Input struct {
	DoctorID  uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Room      *string
}

// Filter narrows List; a nil DoctorID lists every shift.
type Filter struct {
	DoctorID *uuid.UUID
}

func (in Input) validate() error {
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return ErrInvalidTimeSlot
	}
	if !in.EndTime.After(in.StartTime) {
		return ErrInvalidTimeSlot
	}
	return nil
}
