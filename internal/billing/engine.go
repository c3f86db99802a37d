package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/hospital-scheduling/internal/appointment"
	"github.com/hackgods/hospital-scheduling/internal/db"
	"github.com/hackgods/hospital-scheduling/internal/directory"
	"github.com/hackgods/hospital-scheduling/internal/eventlog"
	"github.com/hackgods/hospital-scheduling/internal/metrics"
)

var tracer = otel.Tracer("hospital/billing")

const (
	triggerManual     = "manual"
	triggerCompletion = "completion"
	triggerReconcile  = "reconcile"
)

// Engine prices completed appointments and keeps at most one invoice per appointment.
type Engine struct {
	repo         Repository
	appointments AppointmentReader
	doctors      SpecializationLookup
	pricing      Pricing
	tx           db.Transactor
	events       eventlog.Recorder
	metrics      *metrics.SchedulingMetrics
	logger       zerolog.Logger
	now          func() time.Time
}

func NewEngine(repo Repository, appointments AppointmentReader, doctors SpecializationLookup, pricing Pricing, tx db.Transactor, events eventlog.Recorder, m *metrics.SchedulingMetrics, logger zerolog.Logger) *Engine {
	if events == nil {
		events = eventlog.Nop{}
	}
	return &Engine{
		repo:         repo,
		appointments: appointments,
		doctors:      doctors,
		pricing:      pricing,
		tx:           tx,
		events:       events,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
	}
}

// GenerateInvoiceForAppointment bills a COMPLETED appointment. A second call for the
// same appointment fails with ErrInvoiceAlreadyExists.
func (e *Engine) GenerateInvoiceForAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	return e.generate(ctx, appointmentID, triggerManual)
}

// AppointmentCompleted bills an appointment as part of its completion transaction.
func (e *Engine) AppointmentCompleted(ctx context.Context, ev appointment.CompletionEvent) error {
	_, err := e.generate(ctx, ev.AppointmentID, triggerCompletion)
	if errors.Is(err, ErrInvoiceAlreadyExists) {
		return nil
	}
	return err
}

func (e *Engine) generate(ctx context.Context, appointmentID uuid.UUID, trigger string) (*Invoice, error) {
	ctx, span := tracer.Start(ctx, "billing.generate_invoice")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment_id", appointmentID.String()),
		attribute.String("trigger", trigger),
	)

	var created *Invoice
	err := e.tx.WithinTx(ctx, func(txCtx context.Context) error {
		inv, err := e.price(txCtx, appointmentID)
		if err != nil {
			return err
		}

		created, err = e.repo.Create(txCtx, inv)
		if err != nil {
			if errors.Is(err, ErrInvoiceAlreadyExists) || errors.Is(err, ErrAppointmentNotFound) {
				return err
			}
			return fmt.Errorf("store invoice: %w", err)
		}

		e.events.Record(txCtx, eventlog.InvoiceGenerated, created.ID, map[string]any{
			"appointment_id": created.AppointmentID.String(),
			"total_amount":   created.TotalAmount.StringFixed(2),
			"trigger":        trigger,
		})
		return nil
	})
	e.metrics.ObserveInvoice(trigger, resultLabel(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	e.metrics.ObserveInvoiceAmount(created.TotalAmount)
	return created, nil
}

func (e *Engine) price(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	appt, err := e.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status != appointment.StatusCompleted {
		return nil, fmt.Errorf("%w: status is %s", ErrAppointmentNotCompleted, appt.Status)
	}

	specialization, err := e.doctors.SpecializationOf(ctx, appt.DoctorID)
	if err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDoctorNotFound, appt.DoctorID)
		}
		return nil, fmt.Errorf("load doctor specialization: %w", err)
	}

	base := e.pricing.BaseFee().Round(2)
	premium := e.pricing.PremiumFor(specialization).Round(2)
	inv := newInvoice(appt.ID, appt.PatientID, appt.DoctorID, base, premium, e.now().UTC())
	return &inv, nil
}

func (e *Engine) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := e.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

func (e *Engine) GetInvoiceByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	inv, err := e.repo.GetByAppointmentID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get invoice by appointment: %w", err)
	}
	return inv, nil
}

func (e *Engine) GetInvoicesByPatientID(ctx context.Context, patientID uuid.UUID) ([]Invoice, error) {
	invoices, err := e.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list invoices by patient: %w", err)
	}
	return invoices, nil
}

func (e *Engine) GetInvoicesByPaymentStatus(ctx context.Context, status PaymentStatus) ([]Invoice, error) {
	if _, err := ParsePaymentStatus(string(status)); err != nil {
		return nil, err
	}
	invoices, err := e.repo.ListByPaymentStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list invoices by payment status: %w", err)
	}
	return invoices, nil
}

type ReconcileResult struct {
	Scanned       int
	Generated     int
	AlreadyBilled int
	Failed        int
}

// ReconcileUnbilled generates invoices for completed appointments that have none,
// for example ones completed before billing was wired in. Per-appointment failures
// are logged and skipped.
func (e *Engine) ReconcileUnbilled(ctx context.Context, batch int) (ReconcileResult, error) {
	ctx, span := tracer.Start(ctx, "billing.reconcile")
	defer span.End()

	var res ReconcileResult
	ids, err := e.repo.ListUnbilledCompleted(ctx, batch)
	if err != nil {
		span.RecordError(err)
		return res, fmt.Errorf("find unbilled appointments: %w", err)
	}
	res.Scanned = len(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, err := e.generate(ctx, id, triggerReconcile)
		switch {
		case err == nil:
			res.Generated++
		case errors.Is(err, ErrInvoiceAlreadyExists):
			res.AlreadyBilled++
		default:
			res.Failed++
			e.logger.Error().Err(err).Str("appointment_id", id.String()).Msg("reconcile invoice")
		}
	}

	span.SetAttributes(
		attribute.Int("scanned", res.Scanned),
		attribute.Int("generated", res.Generated),
	)
	return res, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvoiceAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrAppointmentNotCompleted):
		return "not_completed"
	case errors.Is(err, ErrAppointmentNotFound), errors.Is(err, ErrDoctorNotFound):
		return "not_found"
	default:
		return "error"
	}
}
