// Package directory answers identity questions about patients and doctors for the
// scheduling and billing core. Patient and doctor records are managed elsewhere.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/hospital-scheduling/internal/db"
)

var ErrDoctorNotFound = errors.New("doctor not found")

type Patients interface {
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type Doctors interface {
	DoctorExists(ctx context.Context, id uuid.UUID) (bool, error)
	SpecializationOf(ctx context.Context, doctorID uuid.UUID) (string, error)
}

type PgDirectory struct {
	pool db.Querier
}

func NewPgDirectory(pool db.Querier) *PgDirectory {
	if pool == nil {
		panic("directory: pool required")
	}
	return &PgDirectory{pool: pool}
}

func (d *PgDirectory) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return d.exists(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, id)
}

func (d *PgDirectory) DoctorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return d.exists(ctx, `SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1)`, id)
}

func (d *PgDirectory) SpecializationOf(ctx context.Context, doctorID uuid.UUID) (string, error) {
	var specialization *string
	err := db.Conn(ctx, d.pool).QueryRow(ctx, `
		SELECT specialization
		FROM doctors
		WHERE id = $1
	`, doctorID).Scan(&specialization)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrDoctorNotFound
		}
		return "", fmt.Errorf("load doctor specialization: %w", err)
	}
	if specialization == nil {
		return "", nil
	}
	return *specialization, nil
}

func (d *PgDirectory) exists(ctx context.Context, query string, id uuid.UUID) (bool, error) {
	var ok bool
	if err := db.Conn(ctx, d.pool).QueryRow(ctx, query, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("directory lookup: %w", err)
	}
	return ok, nil
}
