package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-scheduling/internal/appointment"
	"github.com/hackgods/hospital-scheduling/internal/billing"
	"github.com/hackgods/hospital-scheduling/internal/shift"
)

// -- Stubs --

type stubShifts struct {
	created  *shift.Shift
	err      error
	lastIn   shift.Input
	filter   shift.Filter
	deleted  uuid.UUID
	existing []shift.Shift
}

func (s *stubShifts) CreateShift(_ context.Context, in shift.Input) (*shift.Shift, error) {
	s.lastIn = in
	if s.err != nil {
		return nil, s.err
	}
	return s.created, nil
}

func (s *stubShifts) UpdateShift(_ context.Context, id uuid.UUID, in shift.Input) (*shift.Shift, error) {
	s.lastIn = in
	if s.err != nil {
		return nil, s.err
	}
	out := *s.created
	out.ID = id
	return &out, nil
}

func (s *stubShifts) DeleteShift(_ context.Context, id uuid.UUID) error {
	s.deleted = id
	return s.err
}

func (s *stubShifts) GetShift(context.Context, uuid.UUID) (*shift.Shift, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.created, nil
}

func (s *stubShifts) ListShifts(_ context.Context, f shift.Filter) ([]shift.Shift, error) {
	s.filter = f
	return s.existing, s.err
}

type stubAppointments struct {
	appt   *appointment.Appointment
	err    error
	lastIn appointment.CreateInput
	filter appointment.Filter
}

func (s *stubAppointments) Create(_ context.Context, in appointment.CreateInput) (*appointment.Appointment, error) {
	s.lastIn = in
	return s.appt, s.err
}

func (s *stubAppointments) Get(context.Context, uuid.UUID) (*appointment.Appointment, error) {
	return s.appt, s.err
}

func (s *stubAppointments) List(_ context.Context, f appointment.Filter) ([]appointment.Appointment, error) {
	s.filter = f
	if s.appt == nil {
		return nil, s.err
	}
	return []appointment.Appointment{*s.appt}, s.err
}

func (s *stubAppointments) Complete(context.Context, uuid.UUID) (*appointment.Appointment, error) {
	if s.err != nil {
		return nil, s.err
	}
	done, err := s.appt.Complete(time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, err
	}
	return &done, nil
}

func (s *stubAppointments) Cancel(context.Context, uuid.UUID) (*appointment.Appointment, error) {
	if s.err != nil {
		return nil, s.err
	}
	cancelled, err := s.appt.Cancel(time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, err
	}
	return &cancelled, nil
}

type stubBilling struct {
	inv *billing.Invoice
	err error
}

func (s *stubBilling) GenerateInvoiceForAppointment(context.Context, uuid.UUID) (*billing.Invoice, error) {
	return s.inv, s.err
}

func (s *stubBilling) GetInvoice(context.Context, uuid.UUID) (*billing.Invoice, error) {
	return s.inv, s.err
}

func (s *stubBilling) GetInvoiceByAppointmentID(context.Context, uuid.UUID) (*billing.Invoice, error) {
	return s.inv, s.err
}

func (s *stubBilling) GetInvoicesByPatientID(context.Context, uuid.UUID) ([]billing.Invoice, error) {
	return []billing.Invoice{*s.inv}, s.err
}

func (s *stubBilling) GetInvoicesByPaymentStatus(context.Context, billing.PaymentStatus) ([]billing.Invoice, error) {
	return []billing.Invoice{*s.inv}, s.err
}

type harness struct {
	handler http.Handler
	shifts  *stubShifts
	appts   *stubAppointments
	billing *stubBilling
}

func newHarness() *harness {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	h := &harness{
		shifts: &stubShifts{created: &shift.Shift{
			ID: uuid.New(), DoctorID: uuid.New(), StartTime: start, EndTime: start.Add(2 * time.Hour),
		}},
		appts: &stubAppointments{appt: &appointment.Appointment{
			ID: uuid.New(), Reference: uuid.New(), PatientID: uuid.New(), DoctorID: uuid.New(),
			ScheduledAt: start, Status: appointment.StatusScheduled,
		}},
		billing: &stubBilling{inv: &billing.Invoice{
			ID:                    uuid.New(),
			AppointmentID:         uuid.New(),
			BaseAmount:            decimal.NewFromInt(100),
			SpecializationPremium: decimal.NewFromInt(80),
			TotalAmount:           decimal.NewFromInt(180),
			PaymentStatus:         billing.PaymentPending,
		}},
	}
	h.handler = NewRouter(RouterConfig{
		Shifts:       h.shifts,
		Appointments: h.appts,
		Billing:      h.billing,
		Health: NewHealthHandlerWithChecks(
			func(context.Context) error { return nil },
			func(context.Context) error { return nil },
			"test", "v0",
		),
		Logger: zerolog.Nop(),
	})
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// -- Shifts --

func TestCreateShift(t *testing.T) {
	h := newHarness()
	doctor := uuid.New()
	start := time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)

	rec := h.do(t, http.MethodPost, "/shifts", map[string]any{
		"doctor_id":  doctor.String(),
		"start_time": start.Format(time.RFC3339),
		"end_time":   start.Add(time.Hour).Format(time.RFC3339),
		"room":       "B-2",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, doctor, h.shifts.lastIn.DoctorID)
	assert.True(t, start.Equal(h.shifts.lastIn.StartTime))
	require.NotNil(t, h.shifts.lastIn.Room)
	assert.Equal(t, "B-2", *h.shifts.lastIn.Room)

	resp := decode[ShiftResponse](t, rec)
	assert.Equal(t, h.shifts.created.ID, resp.ID)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCreateShiftConflictIncludesBounds(t *testing.T) {
	h := newHarness()
	other := shift.ConflictError{
		ShiftID:   uuid.New(),
		StartTime: time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC),
	}
	h.shifts.err = fmt.Errorf("create: %w", &other)

	rec := h.do(t, http.MethodPost, "/shifts", ShiftRequest{DoctorID: uuid.NewString()})
	require.Equal(t, http.StatusConflict, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "shift_conflict", resp.Error)
	require.NotNil(t, resp.Conflict)
	assert.Equal(t, other.ShiftID, resp.Conflict.ShiftID)
	assert.True(t, other.StartTime.Equal(resp.Conflict.StartTime))
	assert.True(t, other.EndTime.Equal(resp.Conflict.EndTime))
}

func TestShiftErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		code int
		kind string
	}{
		{shift.ErrInvalidTimeSlot, http.StatusBadRequest, "invalid_time_slot"},
		{shift.ErrDoctorNotFound, http.StatusNotFound, "doctor_not_found"},
		{shift.ErrShiftConflict, http.StatusConflict, "shift_conflict"},
		{shift.ErrScheduleBusy, http.StatusConflict, "schedule_busy"},
		{errors.New("pool closed"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			h := newHarness()
			h.shifts.err = tc.err
			rec := h.do(t, http.MethodPost, "/shifts", ShiftRequest{DoctorID: uuid.NewString()})
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.kind, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestShiftRequestValidation(t *testing.T) {
	h := newHarness()

	rec := h.do(t, http.MethodPost, "/shifts", ShiftRequest{DoctorID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/shifts", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rec = h.do(t, http.MethodGet, "/shifts/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/shifts?doctor_id=bad", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAndDeleteShifts(t *testing.T) {
	h := newHarness()
	h.shifts.existing = []shift.Shift{*h.shifts.created}
	doctor := uuid.New()

	rec := h.do(t, http.MethodGet, "/shifts?doctor_id="+doctor.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, h.shifts.filter.DoctorID)
	assert.Equal(t, doctor, *h.shifts.filter.DoctorID)
	assert.Len(t, decode[[]ShiftResponse](t, rec), 1)

	id := uuid.New()
	rec = h.do(t, http.MethodDelete, "/shifts/"+id.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, id, h.shifts.deleted)

	h.shifts.err = shift.ErrShiftNotFound
	rec = h.do(t, http.MethodDelete, "/shifts/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// -- Appointments --

func TestCreateAppointment(t *testing.T) {
	h := newHarness()
	patient, doctor, shiftID := uuid.New(), uuid.New(), uuid.New()
	sid := shiftID.String()

	rec := h.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID: patient.String(),
		DoctorID:  doctor.String(),
		ShiftID:   &sid,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, patient, h.appts.lastIn.PatientID)
	require.NotNil(t, h.appts.lastIn.ShiftID)
	assert.Equal(t, shiftID, *h.appts.lastIn.ShiftID)
	assert.True(t, h.appts.lastIn.ScheduledAt.IsZero())

	resp := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "SCHEDULED", resp.Status)
	assert.Equal(t, h.appts.appt.Reference, resp.Reference)
}

func TestAppointmentErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{appointment.ErrPatientNotFound, http.StatusNotFound},
		{shift.ErrShiftNotFound, http.StatusNotFound},
		{appointment.ErrOutsideShift, http.StatusBadRequest},
		{appointment.ErrShiftDoctorMismatch, http.StatusBadRequest},
		{appointment.ErrScheduledTimeRequired, http.StatusBadRequest},
	}
	for _, tc := range cases {
		h := newHarness()
		h.appts.err = tc.err
		rec := h.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
			PatientID: uuid.NewString(),
			DoctorID:  uuid.NewString(),
		})
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

func TestCompleteAndCancel(t *testing.T) {
	h := newHarness()
	path := "/appointments/" + h.appts.appt.ID.String()

	rec := h.do(t, http.MethodPost, path+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "COMPLETED", resp.Status)
	assert.NotNil(t, resp.CompletedAt)

	rec = h.do(t, http.MethodPost, path+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CANCELLED", decode[AppointmentResponse](t, rec).Status)

	h.appts.err = fmt.Errorf("%w: COMPLETED -> COMPLETED", appointment.ErrInvalidStateTransition)
	rec = h.do(t, http.MethodPost, path+"/complete", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state_transition", decode[ErrorResponse](t, rec).Error)
}

func TestListAppointmentsFilters(t *testing.T) {
	h := newHarness()
	patient := uuid.New()

	rec := h.do(t, http.MethodGet, "/appointments?patient_id="+patient.String()+"&status=COMPLETED", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, h.appts.filter.PatientID)
	assert.Equal(t, patient, *h.appts.filter.PatientID)
	require.NotNil(t, h.appts.filter.Status)
	assert.Equal(t, appointment.StatusCompleted, *h.appts.filter.Status)
	assert.Nil(t, h.appts.filter.DoctorID)

	rec = h.do(t, http.MethodGet, "/appointments?status=DONE", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// -- Invoices --

func TestGenerateInvoice(t *testing.T) {
	h := newHarness()
	path := "/appointments/" + uuid.NewString() + "/invoice"

	rec := h.do(t, http.MethodPost, path, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[InvoiceResponse](t, rec)
	assert.Equal(t, "100.00", resp.BaseAmount)
	assert.Equal(t, "80.00", resp.SpecializationPremium)
	assert.Equal(t, "180.00", resp.TotalAmount)
	assert.Equal(t, "PENDING", resp.PaymentStatus)

	h.billing.err = billing.ErrInvoiceAlreadyExists
	assert.Equal(t, http.StatusConflict, h.do(t, http.MethodPost, path, nil).Code)

	h.billing.err = fmt.Errorf("%w: status is SCHEDULED", billing.ErrAppointmentNotCompleted)
	assert.Equal(t, http.StatusUnprocessableEntity, h.do(t, http.MethodPost, path, nil).Code)

	h.billing.err = billing.ErrAppointmentNotFound
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodPost, path, nil).Code)

	h.billing.err = fmt.Errorf("%w: %s", billing.ErrDoctorNotFound, uuid.NewString())
	rec = h.do(t, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "doctor_not_found", decode[ErrorResponse](t, rec).Error)
}

func TestListInvoices(t *testing.T) {
	h := newHarness()

	rec := h.do(t, http.MethodGet, "/invoices?patient_id="+uuid.NewString(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]InvoiceResponse](t, rec), 1)

	rec = h.do(t, http.MethodGet, "/invoices?payment_status=PENDING", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/invoices?payment_status=LATE", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/invoices", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.billing.err = billing.ErrInvoiceNotFound
	rec = h.do(t, http.MethodGet, "/invoices/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// -- Health --

func TestReadiness(t *testing.T) {
	down := errors.New("down")
	cases := []struct {
		name     string
		pg, rd   error
		code     int
		expected string
	}{
		{"all up", nil, nil, http.StatusOK, "ok"},
		{"redis down", nil, down, http.StatusOK, "degraded"},
		{"postgres down", down, nil, http.StatusServiceUnavailable, "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			health := NewHealthHandlerWithChecks(
				func(context.Context) error { return tc.pg },
				func(context.Context) error { return tc.rd },
				"test", "v0",
			)
			rec := httptest.NewRecorder()
			health.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.expected, decode[ReadinessResponse](t, rec).Status)
		})
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	h := newHarness()
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}
