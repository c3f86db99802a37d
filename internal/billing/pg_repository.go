package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/hospital-scheduling/internal/db"
)

const invoiceColumns = `id, appointment_id, patient_id, doctor_id, base_amount, specialization_premium, total_amount, payment_status, created_at, updated_at`

type PgRepository struct {
	pool db.Querier
}

func NewPgRepository(pool db.Querier) *PgRepository {
	if pool == nil {
		panic("billing: pool required")
	}
	return &PgRepository{pool: pool}
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID,
		&inv.AppointmentID,
		&inv.PatientID,
		&inv.DoctorID,
		&inv.BaseAmount,
		&inv.SpecializationPremium,
		&inv.TotalAmount,
		&inv.PaymentStatus,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// Create relies on the unique appointment_id: a concurrent second insert for the
// same appointment returns no row instead of failing the transaction.
func (r *PgRepository) Create(ctx context.Context, inv *Invoice) (*Invoice, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (appointment_id) DO NOTHING
		RETURNING `+invoiceColumns,
		inv.ID, inv.AppointmentID, inv.PatientID, inv.DoctorID, inv.BaseAmount,
		inv.SpecializationPremium, inv.TotalAmount, inv.PaymentStatus, inv.CreatedAt, inv.UpdatedAt)

	created, err := scanInvoice(row)
	if errors.Is(err, ErrInvoiceNotFound) {
		return nil, ErrInvoiceAlreadyExists
	}
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("insert invoice: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE id = $1
	`, id)
	return scanInvoice(row)
}

func (r *PgRepository) GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE appointment_id = $1
	`, appointmentID)
	return scanInvoice(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Invoice, error) {
	return r.list(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE patient_id = $1
		ORDER BY created_at, id
	`, patientID)
}

func (r *PgRepository) ListByPaymentStatus(ctx context.Context, status PaymentStatus) ([]Invoice, error) {
	return r.list(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE payment_status = $1
		ORDER BY created_at, id
	`, status)
}

func (r *PgRepository) list(ctx context.Context, query string, args ...any) ([]Invoice, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var result []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *inv)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) ListUnbilledCompleted(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT a.id
		FROM appointments a
		LEFT JOIN invoices i ON i.appointment_id = a.id
		WHERE a.status = 'COMPLETED'
		  AND i.id IS NULL
		ORDER BY a.completed_at, a.id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unbilled appointments: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
