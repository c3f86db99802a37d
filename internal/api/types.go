package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-scheduling/internal/appointment"
	"github.com/hackgods/hospital-scheduling/internal/billing"
	"github.com/hackgods/hospital-scheduling/internal/shift"
)

type ShiftRequest struct {
	DoctorID  string    `json:"doctor_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Room      *string   `json:"room,omitempty"`
}

type CreateAppointmentRequest struct {
	PatientID   string     `json:"patient_id"`
	DoctorID    string     `json:"doctor_id"`
	ShiftID     *string    `json:"shift_id,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

type ShiftResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Room      *string   `json:"room,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AppointmentResponse struct {
	ID          uuid.UUID  `json:"id"`
	Reference   uuid.UUID  `json:"reference"`
	PatientID   uuid.UUID  `json:"patient_id"`
	DoctorID    uuid.UUID  `json:"doctor_id"`
	ShiftID     *uuid.UUID `json:"shift_id,omitempty"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// InvoiceResponse renders money as fixed two-decimal strings.
type InvoiceResponse struct {
	ID                    uuid.UUID `json:"id"`
	AppointmentID         uuid.UUID `json:"appointment_id"`
	PatientID             uuid.UUID `json:"patient_id"`
	DoctorID              uuid.UUID `json:"doctor_id"`
	BaseAmount            string    `json:"base_amount"`
	SpecializationPremium string    `json:"specialization_premium"`
	TotalAmount           string    `json:"total_amount"`
	PaymentStatus         string    `json:"payment_status"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type ConflictDetail struct {
	ShiftID   uuid.UUID `json:"shift_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type ErrorResponse struct {
	Error    string          `json:"error"`
	Details  string          `json:"details,omitempty"`
	Conflict *ConflictDetail `json:"conflict,omitempty"`
}

func toShiftResponse(s *shift.Shift) ShiftResponse {
	return ShiftResponse{
		ID:        s.ID,
		DoctorID:  s.DoctorID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Room:      s.Room,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		Reference:   a.Reference,
		PatientID:   a.PatientID,
		DoctorID:    a.DoctorID,
		ShiftID:     a.ShiftID,
		ScheduledAt: a.ScheduledAt,
		Status:      string(a.Status),
		CompletedAt: a.CompletedAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func toInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:                    inv.ID,
		AppointmentID:         inv.AppointmentID,
		PatientID:             inv.PatientID,
		DoctorID:              inv.DoctorID,
		BaseAmount:            inv.BaseAmount.StringFixed(2),
		SpecializationPremium: inv.SpecializationPremium.StringFixed(2),
		TotalAmount:           inv.TotalAmount.StringFixed(2),
		PaymentStatus:         string(inv.PaymentStatus),
		CreatedAt:             inv.CreatedAt,
		UpdatedAt:             inv.UpdatedAt,
	}
}
