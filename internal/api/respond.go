package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/hospital-scheduling/internal/appointment"
	"github.com/hackgods/hospital-scheduling/internal/billing"
	"github.com/hackgods/hospital-scheduling/internal/shift"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps core error kinds onto HTTP statuses. Unknown errors are
// reported as 500 without their text.
func writeServiceError(w http.ResponseWriter, err error) {
	var conflict *shift.ConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "shift_conflict",
			Details: err.Error(),
			Conflict: &ConflictDetail{
				ShiftID:   conflict.ShiftID,
				StartTime: conflict.StartTime,
				EndTime:   conflict.EndTime,
			},
		})

	case errors.Is(err, shift.ErrShiftNotFound):
		writeError(w, http.StatusNotFound, "shift_not_found", err.Error())
	case errors.Is(err, shift.ErrDoctorNotFound), errors.Is(err, appointment.ErrDoctorNotFound),
		errors.Is(err, billing.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound), errors.Is(err, billing.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, billing.ErrInvoiceNotFound):
		writeError(w, http.StatusNotFound, "invoice_not_found", err.Error())

	case errors.Is(err, shift.ErrInvalidTimeSlot):
		writeError(w, http.StatusBadRequest, "invalid_time_slot", err.Error())
	case errors.Is(err, appointment.ErrScheduledTimeRequired):
		writeError(w, http.StatusBadRequest, "scheduled_time_required", err.Error())
	case errors.Is(err, appointment.ErrOutsideShift):
		writeError(w, http.StatusBadRequest, "outside_shift", err.Error())
	case errors.Is(err, appointment.ErrShiftDoctorMismatch):
		writeError(w, http.StatusBadRequest, "shift_doctor_mismatch", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, billing.ErrInvalidPaymentStatus):
		writeError(w, http.StatusBadRequest, "invalid_payment_status", err.Error())

	case errors.Is(err, shift.ErrShiftConflict):
		writeError(w, http.StatusConflict, "shift_conflict", err.Error())
	case errors.Is(err, shift.ErrScheduleBusy):
		writeError(w, http.StatusConflict, "schedule_busy", "the doctor's schedule is being changed, please retry shortly")
	case errors.Is(err, appointment.ErrInvalidStateTransition):
		writeError(w, http.StatusConflict, "invalid_state_transition", err.Error())
	case errors.Is(err, billing.ErrInvoiceAlreadyExists):
		writeError(w, http.StatusConflict, "invoice_already_exists", err.Error())

	case errors.Is(err, billing.ErrAppointmentNotCompleted):
		writeError(w, http.StatusUnprocessableEntity, "appointment_not_completed", err.Error())

	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}
