package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/hospital-scheduling/internal/db"
	"github.com/hackgods/hospital-scheduling/internal/eventlog"
	"github.com/hackgods/hospital-scheduling/internal/metrics"
	"github.com/hackgods/hospital-scheduling/internal/shift"
)

var tracer = otel.Tracer("hospital/appointment")

// Manager is the appointment lifecycle manager: it creates bookings and is the
// only place SCHEDULED -> COMPLETED | CANCELLED transitions happen.
type Manager struct {
	repo        Repository
	patients    PatientChecker
	doctors     DoctorChecker
	shifts      ShiftLookup
	tx          db.Transactor
	events      eventlog.Recorder
	metrics     *metrics.SchedulingMetrics
	logger      zerolog.Logger
	subscribers []CompletionSubscriber
	now         func() time.Time
}

func NewManager(repo Repository, patients PatientChecker, doctors DoctorChecker, shifts ShiftLookup, tx db.Transactor, events eventlog.Recorder, m *metrics.SchedulingMetrics, logger zerolog.Logger) *Manager {
	if events == nil {
		events = eventlog.Nop{}
	}
	return &Manager{
		repo:     repo,
		patients: patients,
		doctors:  doctors,
		shifts:   shifts,
		tx:       tx,
		events:   events,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// OnCompleted registers a subscriber for completion events. Call it while wiring,
// before the service handles requests.
func (m *Manager) OnCompleted(sub CompletionSubscriber) {
	m.subscribers = append(m.subscribers, sub)
}

// Create books a SCHEDULED appointment. With a shift, the scheduled time
// defaults to the shift start and must fall inside [start, end).
func (m *Manager) Create(ctx context.Context, in CreateInput) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.create")
	defer span.End()

	appt, err := m.create(ctx, in)
	m.metrics.ObserveTransition("create", resultLabel(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("appointment_id", appt.ID.String()))
	return appt, nil
}

func (m *Manager) create(ctx context.Context, in CreateInput) (*Appointment, error) {
	ok, err := m.patients.PatientExists(ctx, in.PatientID)
	if err != nil {
		return nil, fmt.Errorf("check patient: %w", err)
	}
	if !ok {
		return nil, ErrPatientNotFound
	}

	ok, err = m.doctors.DoctorExists(ctx, in.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("check doctor: %w", err)
	}
	if !ok {
		return nil, ErrDoctorNotFound
	}

	scheduledAt, err := m.resolveScheduledAt(ctx, in)
	if err != nil {
		return nil, err
	}

	appt := newAppointment(in, scheduledAt, m.now().UTC())
	if err := m.repo.Create(ctx, &appt); err != nil {
		if errors.Is(err, ErrPatientNotFound) || errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	payload := map[string]any{
		"patient_id":   appt.PatientID.String(),
		"doctor_id":    appt.DoctorID.String(),
		"scheduled_at": appt.ScheduledAt,
	}
	if appt.ShiftID != nil {
		payload["shift_id"] = appt.ShiftID.String()
	}
	m.events.Record(ctx, eventlog.AppointmentCreated, appt.ID, payload)

	return &appt, nil
}

func (m *Manager) resolveScheduledAt(ctx context.Context, in CreateInput) (time.Time, error) {
	if in.ShiftID == nil {
		if in.ScheduledAt.IsZero() {
			return time.Time{}, ErrScheduledTimeRequired
		}
		return in.ScheduledAt, nil
	}

	sh, err := m.shifts.GetShift(ctx, *in.ShiftID)
	if err != nil {
		if errors.Is(err, shift.ErrShiftNotFound) {
			return time.Time{}, err
		}
		return time.Time{}, fmt.Errorf("load shift: %w", err)
	}
	if sh.DoctorID != in.DoctorID {
		return time.Time{}, ErrShiftDoctorMismatch
	}

	at := in.ScheduledAt
	if at.IsZero() {
		at = sh.StartTime
	}
	if at.Before(sh.StartTime) || !at.Before(sh.EndTime) {
		return time.Time{}, ErrOutsideShift
	}
	return at, nil
}

// Complete moves a SCHEDULED appointment to COMPLETED and notifies completion
// subscribers in the same transaction. A repeat completion fails with
// ErrInvalidStateTransition.
func (m *Manager) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.complete")
	defer span.End()
	span.SetAttributes(attribute.String("appointment_id", id.String()))

	var completed *Appointment
	err := m.tx.WithinTx(ctx, func(txCtx context.Context) error {
		updated, err := m.transition(txCtx, id, Appointment.Complete)
		if err != nil {
			return err
		}

		ev := CompletionEvent{AppointmentID: updated.ID, CompletedAt: *updated.CompletedAt}
		for _, sub := range m.subscribers {
			if err := sub.AppointmentCompleted(txCtx, ev); err != nil {
				return fmt.Errorf("completion side effect: %w", err)
			}
		}

		m.events.Record(txCtx, eventlog.AppointmentCompleted, updated.ID, map[string]any{
			"completed_at": updated.CompletedAt,
		})
		completed = updated
		return nil
	})
	m.metrics.ObserveTransition("complete", resultLabel(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return completed, nil
}

// Cancel moves a SCHEDULED appointment to CANCELLED. No invoice is produced.
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("appointment_id", id.String()))

	var cancelled *Appointment
	err := m.tx.WithinTx(ctx, func(txCtx context.Context) error {
		updated, err := m.transition(txCtx, id, Appointment.Cancel)
		if err != nil {
			return err
		}
		m.events.Record(txCtx, eventlog.AppointmentCancelled, updated.ID, map[string]any{})
		cancelled = updated
		return nil
	})
	m.metrics.ObserveTransition("cancel", resultLabel(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return cancelled, nil
}

func (m *Manager) transition(ctx context.Context, id uuid.UUID, apply func(Appointment, time.Time) (Appointment, error)) (*Appointment, error) {
	current, err := m.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	next, err := apply(*current, m.now().UTC())
	if err != nil {
		return nil, err
	}

	updated, err := m.repo.Transition(ctx, &next, current.Status)
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			// another request moved it first; from here it is terminal
			return nil, fmt.Errorf("%w: appointment %s is no longer %s", ErrInvalidStateTransition, id, current.Status)
		}
		return nil, err
	}
	return updated, nil
}

func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := m.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (m *Manager) GetByReference(ctx context.Context, ref uuid.UUID) (*Appointment, error) {
	a, err := m.repo.GetByReference(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment by reference: %w", err)
	}
	return a, nil
}

func (m *Manager) List(ctx context.Context, f Filter) ([]Appointment, error) {
	appts, err := m.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

func (m *Manager) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return m.List(ctx, Filter{PatientID: &patientID})
}

func (m *Manager) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	return m.List(ctx, Filter{DoctorID: &doctorID})
}

func (m *Manager) ListByStatus(ctx context.Context, status Status) ([]Appointment, error) {
	return m.List(ctx, Filter{Status: &status})
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidStateTransition):
		return "invalid_transition"
	case errors.Is(err, ErrAppointmentNotFound), errors.Is(err, ErrPatientNotFound),
		errors.Is(err, ErrDoctorNotFound), errors.Is(err, shift.ErrShiftNotFound):
		return "not_found"
	case errors.Is(err, ErrShiftDoctorMismatch), errors.Is(err, ErrOutsideShift),
		errors.Is(err, ErrScheduledTimeRequired):
		return "invalid_input"
	default:
		return "error"
	}
}
