package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/hospital-scheduling/internal/db"
)

const appointmentColumns = `id, reference, patient_id, doctor_id, shift_id, scheduled_at, status, completed_at, created_at, updated_at`

type PgRepository struct {
	pool db.Querier
}

func NewPgRepository(pool db.Querier) *PgRepository {
	if pool == nil {
		panic("appointment: pool required")
	}
	return &PgRepository{pool: pool}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var shiftID *uuid.UUID
	var completedAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.Reference,
		&a.PatientID,
		&a.DoctorID,
		&shiftID,
		&a.ScheduledAt,
		&a.Status,
		&completedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.ShiftID = shiftID
	a.CompletedAt = completedAt
	return &a, nil
}

func (r *PgRepository) Create(ctx context.Context, a *Appointment) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.Reference, a.PatientID, a.DoctorID, a.ShiftID, a.ScheduledAt,
		a.Status, a.CompletedAt, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			switch db.ViolatedConstraint(err) {
			case "appointments_patient_id_fkey":
				return ErrPatientNotFound
			case "appointments_doctor_id_fkey":
				return ErrDoctorNotFound
			}
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetByReference(ctx context.Context, ref uuid.UUID) (*Appointment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE reference = $1
	`, ref)
	return scanAppointment(row)
}

func (r *PgRepository) List(ctx context.Context, f Filter) ([]Appointment, error) {
	var conds []string
	var args []any
	add := func(column string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if f.PatientID != nil {
		add("patient_id", *f.PatientID)
	}
	if f.DoctorID != nil {
		add("doctor_id", *f.DoctorID)
	}
	if f.Status != nil {
		add("status", *f.Status)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY scheduled_at, id`

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) Transition(ctx context.Context, next *Appointment, from Status) (*Appointment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    completed_at = $3,
		    updated_at = $4
		WHERE id = $1
		  AND status = $5
		RETURNING `+appointmentColumns,
		next.ID, next.Status, next.CompletedAt, next.UpdatedAt, from)

	updated, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrStatusChanged
	}
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	return updated, nil
}
