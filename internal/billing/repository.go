package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-scheduling/internal/appointment"
)

var (
	ErrInvoiceNotFound         = errors.New("invoice not found")
	ErrInvoiceAlreadyExists    = errors.New("invoice already exists for appointment")
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrAppointmentNotCompleted = errors.New("appointment is not completed")
	ErrDoctorNotFound          = errors.New("doctor not found")
	ErrInvalidPaymentStatus    = errors.New("invalid payment status")
)

type Repository interface {
	// Create stores inv unless the appointment already has an invoice, in which case
	// it returns ErrInvoiceAlreadyExists.
	Create(ctx context.Context, inv *Invoice) (*Invoice, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Invoice, error)
	ListByPaymentStatus(ctx context.Context, status PaymentStatus) ([]Invoice, error)

	// ListUnbilledCompleted returns ids of COMPLETED appointments without an invoice,
	// oldest completion first.
	ListUnbilledCompleted(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type AppointmentReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

type SpecializationLookup interface {
	SpecializationOf(ctx context.Context, doctorID uuid.UUID) (string, error)
}
