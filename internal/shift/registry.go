package shift

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/hospital-scheduling/internal/eventlog"
	"github.com/hackgods/hospital-scheduling/internal/interval"
	"github.com/hackgods/hospital-scheduling/internal/metrics"
	redisclient "github.com/hackgods/hospital-scheduling/internal/redis"
)

var tracer = otel.Tracer("hospital/shift")

type Registry struct {
	repo    Repository
	doctors DoctorChecker
	locker  redisclient.Locker
	events  eventlog.Recorder
	metrics *metrics.SchedulingMetrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewRegistry(repo Repository, doctors DoctorChecker, locker redisclient.Locker, events eventlog.Recorder, m *metrics.SchedulingMetrics, logger zerolog.Logger) *Registry {
	if events == nil {
		events = eventlog.Nop{}
	}
	return &Registry{
		repo:    repo,
		doctors: doctors,
		locker:  locker,
		events:  events,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateShift validates and stores a new shift. The conflict scan and the insert run
// under the doctor's schedule lock so two overlapping creates cannot both succeed.
func (r *Registry) CreateShift(ctx context.Context, in Input) (*Shift, error) {
	ctx, span := tracer.Start(ctx, "shift.create")
	defer span.End()
	span.SetAttributes(attribute.String("doctor_id", in.DoctorID.String()))

	created, err := r.create(ctx, in)
	r.metrics.ObserveShiftOperation("create", resultLabel(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return created, nil
}

func (r *Registry) create(ctx context.Context, in Input) (*Shift, error) {
	if err := r.validate(ctx, in); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	s := &Shift{
		ID:        uuid.New(),
		DoctorID:  in.DoctorID,
		StartTime: in.StartTime.UTC(),
		EndTime:   in.EndTime.UTC(),
		Room:      in.Room,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.withDoctorLock(ctx, in.DoctorID, func(lockCtx context.Context) error {
		if err := r.checkConflicts(lockCtx, s); err != nil {
			return err
		}
		if err := r.repo.Create(lockCtx, s); err != nil {
			return r.explainConflict(lockCtx, s, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.events.Record(ctx, eventlog.ShiftCreated, s.ID, shiftPayload(s))
	return s, nil
}

// UpdateShift replaces a shift's doctor, window and room. The shift itself is
// excluded from the conflict scan.
func (r *Registry) UpdateShift(ctx context.Context, id uuid.UUID, in Input) (*Shift, error) {
	ctx, span := tracer.Start(ctx, "shift.update")
	defer span.End()
	span.SetAttributes(
		attribute.String("shift_id", id.String()),
		attribute.String("doctor_id", in.DoctorID.String()),
	)

	updated, err := r.update(ctx, id, in)
	r.metrics.ObserveShiftOperation("update", resultLabel(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return updated, nil
}

func (r *Registry) update(ctx context.Context, id uuid.UUID, in Input) (*Shift, error) {
	if err := r.validate(ctx, in); err != nil {
		return nil, err
	}

	var updated *Shift
	err := r.withDoctorLock(ctx, in.DoctorID, func(lockCtx context.Context) error {
		current, err := r.repo.GetByID(lockCtx, id)
		if err != nil {
			return err
		}

		next := *current
		next.DoctorID = in.DoctorID
		next.StartTime = in.StartTime.UTC()
		next.EndTime = in.EndTime.UTC()
		next.Room = in.Room
		next.UpdatedAt = r.now().UTC()

		if err := r.checkConflicts(lockCtx, &next); err != nil {
			return err
		}
		if err := r.repo.Update(lockCtx, &next); err != nil {
			return r.explainConflict(lockCtx, &next, err)
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.events.Record(ctx, eventlog.ShiftUpdated, updated.ID, shiftPayload(updated))
	return updated, nil
}

// DeleteShift removes a shift. Appointments that referenced it keep their own
// doctor and time.
func (r *Registry) DeleteShift(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "shift.delete")
	defer span.End()

	err := r.repo.Delete(ctx, id)
	r.metrics.ObserveShiftOperation("delete", resultLabel(err))
	if err != nil {
		if errors.Is(err, ErrShiftNotFound) {
			return err
		}
		return fmt.Errorf("delete shift: %w", err)
	}

	r.events.Record(ctx, eventlog.ShiftDeleted, id, nil)
	return nil
}

func (r *Registry) GetShift(ctx context.Context, id uuid.UUID) (*Shift, error) {
	s, err := r.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrShiftNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get shift: %w", err)
	}
	return s, nil
}

func (r *Registry) ListShifts(ctx context.Context, f Filter) ([]Shift, error) {
	shifts, err := r.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	sortByStart(shifts)
	return shifts, nil
}

func (r *Registry) ListShiftsForDoctor(ctx context.Context, doctorID uuid.UUID) ([]Shift, error) {
	return r.ListShifts(ctx, Filter{DoctorID: &doctorID})
}

func (r *Registry) validate(ctx context.Context, in Input) error {
	if err := in.validate(); err != nil {
		return err
	}
	ok, err := r.doctors.DoctorExists(ctx, in.DoctorID)
	if err != nil {
		return fmt.Errorf("check doctor: %w", err)
	}
	if !ok {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *Registry) withDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	err := r.locker.WithLock(ctx, redisclient.DoctorScheduleKey(doctorID), fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrScheduleBusy
	}
	return err
}

// checkConflicts compares the candidate against every stored shift of its doctor.
func (r *Registry) checkConflicts(ctx context.Context, candidate *Shift) error {
	existing, err := r.repo.List(ctx, Filter{DoctorID: &candidate.DoctorID})
	if err != nil {
		return fmt.Errorf("load doctor shifts: %w", err)
	}
	if c := findConflict(candidate, existing); c != nil {
		return &ConflictError{ShiftID: c.ID, StartTime: c.StartTime, EndTime: c.EndTime}
	}
	return nil
}

// explainConflict turns a bare storage-level ErrShiftConflict into a ConflictError
// naming the colliding shift when it can be found.
func (r *Registry) explainConflict(ctx context.Context, candidate *Shift, err error) error {
	if !errors.Is(err, ErrShiftConflict) {
		return err
	}
	existing, listErr := r.repo.List(ctx, Filter{DoctorID: &candidate.DoctorID})
	if listErr != nil {
		r.logger.Warn().Err(listErr).Str("doctor_id", candidate.DoctorID.String()).Msg("load shifts after exclusion violation")
		return err
	}
	if c := findConflict(candidate, existing); c != nil {
		return &ConflictError{ShiftID: c.ID, StartTime: c.StartTime, EndTime: c.EndTime}
	}
	return err
}

func findConflict(candidate *Shift, existing []Shift) *Shift {
	for i := range existing {
		other := &existing[i]
		if other.ID == candidate.ID || other.DoctorID != candidate.DoctorID {
			continue
		}
		if interval.Overlaps(candidate.StartTime, candidate.EndTime, other.StartTime, other.EndTime) {
			return other
		}
	}
	return nil
}

func sortByStart(shifts []Shift) {
	sort.SliceStable(shifts, func(i, j int) bool {
		if shifts[i].StartTime.Equal(shifts[j].StartTime) {
			return shifts[i].ID.String() < shifts[j].ID.String()
		}
		return shifts[i].StartTime.Before(shifts[j].StartTime)
	})
}

func shiftPayload(s *Shift) map[string]any {
	payload := map[string]any{
		"doctor_id":  s.DoctorID.String(),
		"start_time": s.StartTime,
		"end_time":   s.EndTime,
	}
	if s.Room != nil {
		payload["room"] = *s.Room
	}
	return payload
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrShiftConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidTimeSlot):
		return "invalid_time_slot"
	case errors.Is(err, ErrDoctorNotFound), errors.Is(err, ErrShiftNotFound):
		return "not_found"
	case errors.Is(err, ErrScheduleBusy):
		return "busy"
	default:
		return "error"
	}
}
