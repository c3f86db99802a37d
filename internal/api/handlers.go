package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/hospital-scheduling/internal/appointment"
	"github.com/hackgods/hospital-scheduling/internal/billing"
	"github.com/hackgods/hospital-scheduling/internal/shift"
)

type ShiftService interface {
	CreateShift(ctx context.Context, in shift.Input) (*shift.Shift, error)
	UpdateShift(ctx context.Context, id uuid.UUID, in shift.Input) (*shift.Shift, error)
	DeleteShift(ctx context.Context, id uuid.UUID) error
	GetShift(ctx context.Context, id uuid.UUID) (*shift.Shift, error)
	ListShifts(ctx context.Context, f shift.Filter) ([]shift.Shift, error)
}

type AppointmentService interface {
	Create(ctx context.Context, in appointment.CreateInput) (*appointment.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	List(ctx context.Context, f appointment.Filter) ([]appointment.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

type BillingService interface {
	GenerateInvoiceForAppointment(ctx context.Context, appointmentID uuid.UUID) (*billing.Invoice, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (*billing.Invoice, error)
	GetInvoiceByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*billing.Invoice, error)
	GetInvoicesByPatientID(ctx context.Context, patientID uuid.UUID) ([]billing.Invoice, error)
	GetInvoicesByPaymentStatus(ctx context.Context, status billing.PaymentStatus) ([]billing.Invoice, error)
}

// -- Shifts --

func createShiftHandler(svc ShiftService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, ok := decodeShiftInput(w, r)
		if !ok {
			return
		}

		s, err := svc.CreateShift(r.Context(), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toShiftResponse(s))
	}
}

func updateShiftHandler(svc ShiftService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_shift_id")
		if !ok {
			return
		}
		in, ok := decodeShiftInput(w, r)
		if !ok {
			return
		}

		s, err := svc.UpdateShift(r.Context(), id, in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toShiftResponse(s))
	}
}

func deleteShiftHandler(svc ShiftService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_shift_id")
		if !ok {
			return
		}
		if err := svc.DeleteShift(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func getShiftHandler(svc ShiftService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_shift_id")
		if !ok {
			return
		}
		s, err := svc.GetShift(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toShiftResponse(s))
	}
}

func listShiftsHandler(svc ShiftService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var f shift.Filter
		if raw := r.URL.Query().Get("doctor_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			f.DoctorID = &id
		}

		shifts, err := svc.ListShifts(r.Context(), f)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		resp := make([]ShiftResponse, 0, len(shifts))
		for i := range shifts {
			resp = append(resp, toShiftResponse(&shifts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func decodeShiftInput(w http.ResponseWriter, r *http.Request) (shift.Input, bool) {
	var req ShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return shift.Input{}, false
	}
	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
		return shift.Input{}, false
	}
	return shift.Input{
		DoctorID:  doctorID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Room:      req.Room,
	}, true
}

// -- Appointments --

func createAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		in := appointment.CreateInput{PatientID: patientID, DoctorID: doctorID}
		if req.ShiftID != nil {
			shiftID, err := uuid.Parse(*req.ShiftID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_shift_id", "shift_id must be a valid UUID")
				return
			}
			in.ShiftID = &shiftID
		}
		if req.ScheduledAt != nil {
			in.ScheduledAt = *req.ScheduledAt
		}

		appt, err := svc.Create(r.Context(), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}
		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f appointment.Filter

		if raw := q.Get("patient_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			f.PatientID = &id
		}
		if raw := q.Get("doctor_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			f.DoctorID = &id
		}
		if raw := q.Get("status"); raw != "" {
			status, err := appointment.ParseStatus(raw)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			f.Status = &status
		}

		appts, err := svc.List(r.Context(), f)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func transitionHandler(transition func(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}
		appt, err := transition(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// -- Invoices --

func generateInvoiceHandler(svc BillingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}
		inv, err := svc.GenerateInvoiceForAppointment(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toInvoiceResponse(inv))
	}
}

func appointmentInvoiceHandler(svc BillingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}
		inv, err := svc.GetInvoiceByAppointmentID(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
	}
}

func getInvoiceHandler(svc BillingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_invoice_id")
		if !ok {
			return
		}
		inv, err := svc.GetInvoice(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
	}
}

func listInvoicesHandler(svc BillingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var invoices []billing.Invoice
		var err error
		switch {
		case q.Get("patient_id") != "":
			patientID, perr := uuid.Parse(q.Get("patient_id"))
			if perr != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			invoices, err = svc.GetInvoicesByPatientID(r.Context(), patientID)
		case q.Get("payment_status") != "":
			status, perr := billing.ParsePaymentStatus(q.Get("payment_status"))
			if perr != nil {
				writeServiceError(w, perr)
				return
			}
			invoices, err = svc.GetInvoicesByPaymentStatus(r.Context(), status)
		default:
			writeError(w, http.StatusBadRequest, "missing_filter", "patient_id or payment_status is required")
			return
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := make([]InvoiceResponse, 0, len(invoices))
		for i := range invoices {
			resp = append(resp, toInvoiceResponse(&invoices[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func pathID(w http.ResponseWriter, r *http.Request, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
