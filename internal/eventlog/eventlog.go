// Package eventlog appends domain events (shift, appointment and invoice changes)
// to the event_logs table.
package eventlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-scheduling/internal/db"
)

const (
	ShiftCreated         = "SHIFT_CREATED"
	ShiftUpdated         = "SHIFT_UPDATED"
	ShiftDeleted         = "SHIFT_DELETED"
	AppointmentCreated   = "APPOINTMENT_CREATED"
	AppointmentCompleted = "APPOINTMENT_COMPLETED"
	AppointmentCancelled = "APPOINTMENT_CANCELLED"
	InvoiceGenerated     = "INVOICE_GENERATED"
)

type Event struct {
	ID        int64
	EventType string
	EntityID  uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}

// Recorder is what the core services depend on. Recording is best effort.
type Recorder interface {
	Record(ctx context.Context, eventType string, entityID uuid.UUID, payload map[string]any)
}

type PgRecorder struct {
	pool   db.Querier
	logger zerolog.Logger
	now    func() time.Time
}

func NewPgRecorder(pool db.Querier, logger zerolog.Logger) *PgRecorder {
	if pool == nil {
		panic("eventlog: pool required")
	}
	return &PgRecorder{pool: pool, logger: logger, now: time.Now}
}

// Record writes through the transaction in ctx when there is one, so an event
// commits or rolls back together with the change it describes.
func (r *PgRecorder) Record(ctx context.Context, eventType string, entityID uuid.UUID, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn().Err(err).Str("event_type", eventType).Msg("marshal event payload")
		data = nil
	}

	_, err = db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO event_logs (event_type, entity_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, eventType, entityID, data, r.now().UTC())
	if err != nil {
		r.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("entity_id", entityID.String()).
			Msg("insert event log")
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, string, uuid.UUID, map[string]any) {}
