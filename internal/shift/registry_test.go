package shift

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-scheduling/internal/interval"
	redisclient "github.com/hackgods/hospital-scheduling/internal/redis"
)

// -- Fakes --

type memRepo struct {
	mu        sync.Mutex
	shifts    map[uuid.UUID]Shift
	createErr error
}

func newMemRepo() *memRepo {
	return &memRepo{shifts: make(map[uuid.UUID]Shift)}
}

func (m *memRepo) Create(_ context.Context, s *Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.shifts[s.ID] = *s
	return nil
}

func (m *memRepo) Update(_ context.Context, s *Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shifts[s.ID]; !ok {
		return ErrShiftNotFound
	}
	m.shifts[s.ID] = *s
	return nil
}

func (m *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shifts[id]; !ok {
		return ErrShiftNotFound
	}
	delete(m.shifts, id)
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shifts[id]
	if !ok {
		return nil, ErrShiftNotFound
	}
	return &s, nil
}

func (m *memRepo) List(_ context.Context, f Filter) ([]Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Shift
	for _, s := range m.shifts {
		if f.DoctorID != nil && s.DoctorID != *f.DoctorID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

type stubDoctors map[uuid.UUID]bool

func (d stubDoctors) DoctorExists(_ context.Context, id uuid.UUID) (bool, error) {
	return d[id], nil
}

type fixture struct {
	registry *Registry
	repo     *memRepo
	doctorA  uuid.UUID
	doctorB  uuid.UUID
	day      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemRepo()
	a, b := uuid.New(), uuid.New()
	locker := redisclient.NewRedisLocker(client, 5*time.Second, 2*time.Second)
	reg := NewRegistry(repo, stubDoctors{a: true, b: true}, locker, nil, nil, zerolog.Nop())

	return &fixture{
		registry: reg,
		repo:     repo,
		doctorA:  a,
		doctorB:  b,
		day:      time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) at(hour int) time.Time {
	return f.day.Add(time.Duration(hour) * time.Hour)
}

func (f *fixture) input(doctor uuid.UUID, startHour, endHour int) Input {
	return Input{DoctorID: doctor, StartTime: f.at(startHour), EndTime: f.at(endHour)}
}

// -- Tests --

func TestCreateShiftOverlapConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.registry.CreateShift(ctx, f.input(f.doctorA, 13, 15))
	require.NoError(t, err)

	_, err = f.registry.CreateShift(ctx, f.input(f.doctorA, 14, 16))
	require.ErrorIs(t, err, ErrShiftConflict)

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, first.ID, conflict.ShiftID)
	assert.True(t, conflict.StartTime.Equal(f.at(13)))
	assert.True(t, conflict.EndTime.Equal(f.at(15)))
}

func TestCreateShiftBackToBackAllowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registry.CreateShift(ctx, f.input(f.doctorA, 13, 15))
	require.NoError(t, err)

	_, err = f.registry.CreateShift(ctx, f.input(f.doctorA, 15, 17))
	require.NoError(t, err)

	_, err = f.registry.CreateShift(ctx, f.input(f.doctorA, 11, 13))
	require.NoError(t, err)
}

func TestCreateShiftInvalidTimeSlot(t *testing.T) {
	f := newFixture(t)

	_, err := f.registry.CreateShift(context.Background(), f.input(f.doctorA, 10, 9))
	require.ErrorIs(t, err, ErrInvalidTimeSlot)

	_, err = f.registry.CreateShift(context.Background(), f.input(f.doctorA, 10, 10))
	require.ErrorIs(t, err, ErrInvalidTimeSlot)

	_, err = f.registry.CreateShift(context.Background(), Input{DoctorID: f.doctorA, EndTime: f.at(10)})
	require.ErrorIs(t, err, ErrInvalidTimeSlot)
}

func TestCreateShiftUnknownDoctor(t *testing.T) {
	f := newFixture(t)

	_, err := f.registry.CreateShift(context.Background(), f.input(uuid.New(), 9, 10))
	require.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestCreateShiftOtherDoctorDoesNotConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registry.CreateShift(ctx, f.input(f.doctorA, 9, 12))
	require.NoError(t, err)
	_, err = f.registry.CreateShift(ctx, f.input(f.doctorB, 9, 12))
	require.NoError(t, err)
}

func TestIdenticalShiftAlwaysConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registry.CreateShift(ctx, f.input(f.doctorA, 8, 10))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = f.registry.CreateShift(ctx, f.input(f.doctorA, 8, 10))
		require.ErrorIs(t, err, ErrShiftConflict)
	}
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := "B-204"

	in := f.input(f.doctorA, 9, 17)
	in.Room = &room

	created, err := f.registry.CreateShift(ctx, in)
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := f.registry.GetShift(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, f.doctorA, got.DoctorID)
	assert.True(t, got.StartTime.Equal(in.StartTime))
	assert.True(t, got.EndTime.Equal(in.EndTime))
	require.NotNil(t, got.Room)
	assert.Equal(t, room, *got.Room)
}

func TestUpdateShiftExcludesItself(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.registry.CreateShift(ctx, f.input(f.doctorA, 9, 12))
	require.NoError(t, err)

	updated, err := f.registry.UpdateShift(ctx, s.ID, f.input(f.doctorA, 10, 13))
	require.NoError(t, err)
	assert.True(t, updated.StartTime.Equal(f.at(10)))
	assert.Equal(t, s.CreatedAt, updated.CreatedAt)
}

func TestUpdateShiftConflictsWithSibling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registry.CreateShift(ctx, f.input(f.doctorA, 9, 12))
	require.NoError(t, err)
	s2, err := f.registry.CreateShift(ctx, f.input(f.doctorA, 13, 15))
	require.NoError(t, err)

	_, err = f.registry.UpdateShift(ctx, s2.ID, f.input(f.doctorA, 11, 14))
	require.ErrorIs(t, err, ErrShiftConflict)

	got, err := f.registry.GetShift(ctx, s2.ID)
	require.NoError(t, err)
	assert.True(t, got.StartTime.Equal(f.at(13)), "rejected update must not be persisted")
}

func TestUpdateShiftValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registry.UpdateShift(ctx, uuid.New(), f.input(f.doctorA, 9, 10))
	require.ErrorIs(t, err, ErrShiftNotFound)

	s, err := f.registry.CreateShift(ctx, f.input(f.doctorA, 9, 10))
	require.NoError(t, err)

	_, err = f.registry.UpdateShift(ctx, s.ID, f.input(f.doctorA, 10, 9))
	require.ErrorIs(t, err, ErrInvalidTimeSlot)

	_, err = f.registry.UpdateShift(ctx, s.ID, f.input(uuid.New(), 9, 10))
	require.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestUpdateShiftMovesToAnotherDoctor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registry.CreateShift(ctx, f.input(f.doctorB, 9, 12))
	require.NoError(t, err)
	s, err := f.registry.CreateShift(ctx, f.input(f.doctorA, 9, 12))
	require.NoError(t, err)

	_, err = f.registry.UpdateShift(ctx, s.ID, f.input(f.doctorB, 10, 11))
	require.ErrorIs(t, err, ErrShiftConflict)

	moved, err := f.registry.UpdateShift(ctx, s.ID, f.input(f.doctorB, 12, 14))
	require.NoError(t, err)
	assert.Equal(t, f.doctorB, moved.DoctorID)
}

func TestDeleteShift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.registry.CreateShift(ctx, f.input(f.doctorA, 9, 10))
	require.NoError(t, err)

	require.NoError(t, f.registry.DeleteShift(ctx, s.ID))
	require.ErrorIs(t, f.registry.DeleteShift(ctx, s.ID), ErrShiftNotFound)

	_, err = f.registry.GetShift(ctx, s.ID)
	require.ErrorIs(t, err, ErrShiftNotFound)

	// the freed window is bookable again
	_, err = f.registry.CreateShift(ctx, f.input(f.doctorA, 9, 10))
	require.NoError(t, err)
}

func TestListShiftsForDoctorSorted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, h := range []int{15, 9, 12} {
		_, err := f.registry.CreateShift(ctx, f.input(f.doctorA, h, h+2))
		require.NoError(t, err)
	}
	_, err := f.registry.CreateShift(ctx, f.input(f.doctorB, 9, 10))
	require.NoError(t, err)

	shifts, err := f.registry.ListShiftsForDoctor(ctx, f.doctorA)
	require.NoError(t, err)
	require.Len(t, shifts, 3)
	assert.True(t, shifts[0].StartTime.Equal(f.at(9)))
	assert.True(t, shifts[1].StartTime.Equal(f.at(12)))
	assert.True(t, shifts[2].StartTime.Equal(f.at(15)))

	all, err := f.registry.ListShifts(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestStorageExclusionViolationIsExplained(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	existing := Shift{ID: uuid.New(), DoctorID: f.doctorA, StartTime: f.at(9), EndTime: f.at(11)}
	f.repo.shifts[existing.ID] = existing

	// a shift that committed between the scan and the insert: the scan passes,
	// the storage constraint fires.
	f.repo.createErr = ErrShiftConflict
	candidate := &Shift{ID: uuid.New(), DoctorID: f.doctorA, StartTime: f.at(10), EndTime: f.at(12)}
	err := f.registry.explainConflict(ctx, candidate, f.repo.Create(ctx, candidate))

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, existing.ID, conflict.ShiftID)
}

func TestConcurrentOverlappingCreatesOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// every window overlaps 13:00-14:00
			_, errs[i] = f.registry.CreateShift(ctx, f.input(f.doctorA, 12+i%2, 14+i%2))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, ErrShiftConflict) || errors.Is(err, ErrScheduleBusy), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	shifts, err := f.registry.ListShiftsForDoctor(ctx, f.doctorA)
	require.NoError(t, err)
	assert.Len(t, shifts, 1)
}

func TestNoDoubleBookingInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		doctor := f.doctorA
		if rng.Intn(2) == 0 {
			doctor = f.doctorB
		}
		start := f.day.Add(time.Duration(rng.Intn(48)) * 30 * time.Minute)
		end := start.Add(time.Duration(1+rng.Intn(6)) * 30 * time.Minute)
		_, err := f.registry.CreateShift(ctx, Input{DoctorID: doctor, StartTime: start, EndTime: end})
		if err != nil {
			require.ErrorIs(t, err, ErrShiftConflict)
		}
	}

	for _, doctor := range []uuid.UUID{f.doctorA, f.doctorB} {
		shifts, err := f.registry.ListShiftsForDoctor(ctx, doctor)
		require.NoError(t, err)
		for i := range shifts {
			for j := i + 1; j < len(shifts); j++ {
				a, b := shifts[i], shifts[j]
				assert.False(t, interval.Overlaps(a.StartTime, a.EndTime, b.StartTime, b.EndTime),
					"shifts %s and %s overlap", a.ID, b.ID)
			}
		}
	}
}

func TestScheduleBusyWhenLockHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	doctor := uuid.New()
	require.NoError(t, mr.Set(redisclient.DoctorScheduleKey(doctor), "other-writer"))

	reg := NewRegistry(newMemRepo(), stubDoctors{doctor: true},
		redisclient.NewRedisLocker(client, time.Second, 0), nil, nil, zerolog.Nop())

	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	_, err := reg.CreateShift(context.Background(), Input{DoctorID: doctor, StartTime: start, EndTime: start.Add(time.Hour)})
	require.ErrorIs(t, err, ErrScheduleBusy)
}
