package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-scheduling/internal/metrics"
)

type RouterConfig struct {
	Shifts       ShiftService
	Appointments AppointmentService
	Billing      BillingService
	Health       *HealthHandler
	Metrics      *metrics.SchedulingMetrics

	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	Logger         zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Metrics))
	r.Use(RecoverMiddleware(cfg.Logger))

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/shifts", func(r chi.Router) {
		r.Post("/", createShiftHandler(cfg.Shifts))
		r.Get("/", listShiftsHandler(cfg.Shifts))
		r.Get("/{id}", getShiftHandler(cfg.Shifts))
		r.Put("/{id}", updateShiftHandler(cfg.Shifts))
		r.Delete("/{id}", deleteShiftHandler(cfg.Shifts))
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Appointments))
		r.Get("/", listAppointmentsHandler(cfg.Appointments))
		r.Get("/{id}", getAppointmentHandler(cfg.Appointments))
		r.Post("/{id}/complete", transitionHandler(cfg.Appointments.Complete))
		r.Post("/{id}/cancel", transitionHandler(cfg.Appointments.Cancel))
		r.Post("/{id}/invoice", generateInvoiceHandler(cfg.Billing))
		r.Get("/{id}/invoice", appointmentInvoiceHandler(cfg.Billing))
	})

	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", listInvoicesHandler(cfg.Billing))
		r.Get("/{id}", getInvoiceHandler(cfg.Billing))
	})

	return r
}
