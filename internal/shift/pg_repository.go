package shift

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/hospital-scheduling/internal/db"
)

const shiftColumns = `id, doctor_id, start_time, end_time, room, created_at, updated_at`

type PgRepository struct {
	pool db.Querier
}

func NewPgRepository(pool db.Querier) *PgRepository {
	if pool == nil {
		panic("shift: pool required")
	}
	return &PgRepository{pool: pool}
}

func scanShift(row pgx.Row) (*Shift, error) {
	var s Shift
	var room *string

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.StartTime,
		&s.EndTime,
		&room,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShiftNotFound
		}
		return nil, err
	}

	s.Room = room
	return &s, nil
}

func (r *PgRepository) Create(ctx context.Context, s *Shift) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO shifts (`+shiftColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.DoctorID, s.StartTime, s.EndTime, s.Room, s.CreatedAt, s.UpdatedAt)
	return classifyWriteError("insert shift", err)
}

func (r *PgRepository) Update(ctx context.Context, s *Shift) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE shifts
		SET doctor_id = $2,
		    start_time = $3,
		    end_time = $4,
		    room = $5,
		    updated_at = $6
		WHERE id = $1
	`, s.ID, s.DoctorID, s.StartTime, s.EndTime, s.Room, s.UpdatedAt)
	if err != nil {
		return classifyWriteError("update shift", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrShiftNotFound
	}
	return nil
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM shifts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete shift: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrShiftNotFound
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Shift, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE id = $1
	`, id)
	return scanShift(row)
}

func (r *PgRepository) List(ctx context.Context, f Filter) ([]Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts`
	var args []any
	if f.DoctorID != nil {
		query += ` WHERE doctor_id = $1`
		args = append(args, *f.DoctorID)
	}
	query += ` ORDER BY start_time, id`

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	defer rows.Close()

	var result []Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func classifyWriteError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsExclusionViolation(err):
		return ErrShiftConflict
	case db.IsForeignKeyViolation(err):
		return ErrDoctorNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
