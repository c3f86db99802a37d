package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "PENDING"
	PaymentPaid          PaymentStatus = "PAID"
	PaymentPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentCancelled     PaymentStatus = "CANCELLED"
	PaymentRefunded      PaymentStatus = "REFUNDED"
)

func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch s := PaymentStatus(raw); s {
	case PaymentPending, PaymentPaid, PaymentPartiallyPaid, PaymentCancelled, PaymentRefunded:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, raw)
	}
}

// Invoice is the bill for one completed appointment. TotalAmount is always
// BaseAmount + SpecializationPremium.
type Invoice struct {
	ID                    uuid.UUID
	AppointmentID         uuid.UUID
	PatientID             uuid.UUID
	DoctorID              uuid.UUID
	BaseAmount            decimal.Decimal
	SpecializationPremium decimal.Decimal
	TotalAmount           decimal.Decimal
	PaymentStatus         PaymentStatus
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func newInvoice(appointmentID, patientID, doctorID uuid.UUID, base, premium decimal.Decimal, now time.Time) Invoice {
	return Invoice{
		ID:                    uuid.New(),
		AppointmentID:         appointmentID,
		PatientID:             patientID,
		DoctorID:              doctorID,
		BaseAmount:            base,
		SpecializationPremium: premium,
		TotalAmount:           base.Add(premium),
		PaymentStatus:         PaymentPending,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}
