package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-scheduling/internal/config"
	"github.com/hackgods/hospital-scheduling/internal/db"
	"github.com/hackgods/hospital-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	ShiftRatio    float64
	BookingRatio  float64
	CompleteRatio float64
	CancelRatio   float64
	InvoiceRatio  float64
	ReadRatio     float64
	DoctorLimit   int
	PatientLimit  int
	PostgresDSN   string
}

type bookedAppointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
}

type DataPool struct {
	Doctors  []uuid.UUID
	Patients []uuid.UUID

	mu           sync.RWMutex
	shifts       []uuid.UUID
	shiftDoctor  map[uuid.UUID]uuid.UUID
	appointments []bookedAppointment
}

func (dp *DataPool) AddShift(id, doctorID uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.shifts = append(dp.shifts, id)
	dp.shiftDoctor[id] = doctorID
}

func (dp *DataPool) RandomShift(rng *rand.Rand) (shiftID, doctorID uuid.UUID, ok bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.shifts) == 0 {
		return uuid.Nil, uuid.Nil, false
	}
	id := dp.shifts[rng.Intn(len(dp.shifts))]
	return id, dp.shiftDoctor[id], true
}

func (dp *DataPool) AddAppointment(a bookedAppointment) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, a)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (bookedAppointment, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return bookedAppointment{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

// Record counts one call. Conflict covers the expected rejections (409/422).
func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	CreateShift OperationMetrics
	Booking     OperationMetrics
	Complete    OperationMetrics
	Cancel      OperationMetrics
	Invoice     OperationMetrics
	Reads       OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
	day     time.Time
}

func main() {
	cfg, logger := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("shift", cfg.ShiftRatio).
		Float64("booking", cfg.BookingRatio).
		Float64("complete", cfg.CompleteRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("invoice", cfg.InvoiceRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().Int("doctors", len(dataPool.Doctors)).Int("patients", len(dataPool.Patients)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		// a far-future day keeps runs from colliding with real schedules
		day: time.Now().UTC().AddDate(1, 0, 0).Truncate(24 * time.Hour),
	}

	sim.Run()
	sim.PrintReport()

	if err := verify(context.Background(), pgPool, logger); err != nil {
		logger.Error().Err(err).Msg("invariant check failed")
		os.Exit(1)
	}
}

func loadConfig() (SimConfig, zerolog.Logger) {
	baseCfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", "prod")
		bootLogger.Fatal().Err(err).Msg("failed to load base config")
	}
	logger := logging.New(baseCfg.LogLevel, baseCfg.Env).With().Str("service", "simulate").Logger()

	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		ShiftRatio:    getFloat("SIM_SHIFT_RATIO", 0.15),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.3),
		CompleteRatio: getFloat("SIM_COMPLETE_RATIO", 0.15),
		CancelRatio:   getFloat("SIM_CANCEL_RATIO", 0.05),
		InvoiceRatio:  getFloat("SIM_INVOICE_RATIO", 0.05),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.3),
		DoctorLimit:   getInt("SIM_DOCTOR_LIMIT", 20),
		PatientLimit:  getInt("SIM_PATIENT_LIMIT", 2000),
		PostgresDSN:   baseCfg.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.ShiftRatio + cfg.BookingRatio + cfg.CompleteRatio + cfg.CancelRatio + cfg.InvoiceRatio + cfg.ReadRatio
	if total > 0 {
		cfg.ShiftRatio /= total
		cfg.BookingRatio /= total
		cfg.CompleteRatio /= total
		cfg.CancelRatio /= total
		cfg.InvoiceRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg, logger
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{shiftDoctor: make(map[uuid.UUID]uuid.UUID)}

	var err error
	dataPool.Doctors, err = loadIDs(ctx, pool, `SELECT id FROM doctors ORDER BY id LIMIT $1`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	dataPool.Patients, err = loadIDs(ctx, pool, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded, run cmd/seed first")
	}
	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}
	return dataPool, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
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

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	c := s.config

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < c.ShiftRatio:
			s.doCreateShift(ctx, rng)
		case r < c.ShiftRatio+c.BookingRatio:
			s.doBooking(ctx, rng)
		case r < c.ShiftRatio+c.BookingRatio+c.CompleteRatio:
			s.doTransition(ctx, rng, "complete", &s.metrics.Complete)
		case r < c.ShiftRatio+c.BookingRatio+c.CompleteRatio+c.CancelRatio:
			s.doTransition(ctx, rng, "cancel", &s.metrics.Cancel)
		case r < c.ShiftRatio+c.BookingRatio+c.CompleteRatio+c.CancelRatio+c.InvoiceRatio:
			s.doInvoice(ctx, rng)
		default:
			s.doRead(ctx, rng)
		}
	}
}

// doCreateShift proposes a two-hour shift on an hourly grid within a few days, so
// concurrent workers regularly propose overlapping windows for the same doctor.
func (s *Simulator) doCreateShift(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	start := s.day.AddDate(0, 0, rng.Intn(3)).Add(time.Duration(6+rng.Intn(12)) * time.Hour)

	status, body, latency, err := s.send(ctx, http.MethodPost, "/shifts", map[string]any{
		"doctor_id":  doctorID.String(),
		"start_time": start.Format(time.RFC3339),
		"end_time":   start.Add(2 * time.Hour).Format(time.RFC3339),
	})

	success := err == nil && status == http.StatusCreated
	if success {
		var resp struct {
			ID uuid.UUID `json:"id"`
		}
		if json.Unmarshal(body, &resp) == nil && resp.ID != uuid.Nil {
			s.pool.AddShift(resp.ID, doctorID)
		}
	}
	s.metrics.CreateShift.Record(latency, success, err == nil && status == http.StatusConflict)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	shiftID, doctorID, ok := s.pool.RandomShift(rng)
	if !ok {
		return
	}
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	status, body, latency, err := s.send(ctx, http.MethodPost, "/appointments", map[string]any{
		"patient_id": patientID.String(),
		"doctor_id":  doctorID.String(),
		"shift_id":   shiftID.String(),
	})

	success := err == nil && status == http.StatusCreated
	if success {
		var resp struct {
			ID uuid.UUID `json:"id"`
		}
		if json.Unmarshal(body, &resp) == nil && resp.ID != uuid.Nil {
			s.pool.AddAppointment(bookedAppointment{ID: resp.ID, PatientID: patientID})
		}
	}
	// a deleted shift or concurrent change surfaces as 404/409
	conflict := err == nil && (status == http.StatusConflict || status == http.StatusNotFound)
	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doTransition(ctx context.Context, rng *rand.Rand, action string, om *OperationMetrics) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	status, _, latency, err := s.send(ctx, http.MethodPost,
		fmt.Sprintf("/appointments/%s/%s", appt.ID, action), nil)
	om.Record(latency, err == nil && status == http.StatusOK, err == nil && status == http.StatusConflict)
}

// doInvoice asks for an invoice by hand. Completion already bills, so 409 and 422
// are the expected answers.
func (s *Simulator) doInvoice(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	status, _, latency, err := s.send(ctx, http.MethodPost,
		fmt.Sprintf("/appointments/%s/invoice", appt.ID), nil)
	expected := err == nil && (status == http.StatusConflict || status == http.StatusUnprocessableEntity)
	s.metrics.Invoice.Record(latency, err == nil && status == http.StatusCreated, expected)
}

func (s *Simulator) doRead(ctx context.Context, rng *rand.Rand) {
	var path string
	switch rng.Intn(3) {
	case 0:
		appt, ok := s.pool.RandomAppointment(rng)
		if !ok {
			return
		}
		path = "/appointments/" + appt.ID.String()
	case 1:
		path = "/invoices?patient_id=" + s.pool.Patients[rng.Intn(len(s.pool.Patients))].String()
	default:
		path = "/shifts?doctor_id=" + s.pool.Doctors[rng.Intn(len(s.pool.Doctors))].String()
	}

	status, _, latency, err := s.send(ctx, http.MethodGet, path, nil)
	s.metrics.Reads.Record(latency, err == nil && status == http.StatusOK, false)
}

func (s *Simulator) send(ctx context.Context, method, path string, payload any) (int, []byte, time.Duration, error) {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return 0, nil, 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &body)
	if err != nil {
		return 0, nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, nil, latency, err
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	return resp.StatusCode, out.Bytes(), latency, nil
}

// verify checks the storage-level guarantees after the run: no appointment has
// more than one invoice, every completed appointment is billed and no doctor has
// overlapping shifts.
func verify(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	checks := []struct {
		name  string
		query string
	}{
		{"duplicate invoices", `
			SELECT count(*) FROM (
				SELECT appointment_id FROM invoices GROUP BY appointment_id HAVING count(*) > 1
			) d`},
		{"completed without invoice", `
			SELECT count(*)
			FROM appointments a
			LEFT JOIN invoices i ON i.appointment_id = a.id
			WHERE a.status = 'COMPLETED' AND i.id IS NULL`},
		{"invoices for non-completed appointments", `
			SELECT count(*)
			FROM invoices i
			JOIN appointments a ON a.id = i.appointment_id
			WHERE a.status <> 'COMPLETED'`},
		{"overlapping shifts", `
			SELECT count(*)
			FROM shifts a
			JOIN shifts b ON a.doctor_id = b.doctor_id AND a.id < b.id
			WHERE a.start_time < b.end_time AND a.end_time > b.start_time`},
	}

	var failed []string
	for _, c := range checks {
		var n int64
		if err := pool.QueryRow(ctx, c.query).Scan(&n); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		logger.Info().Str("check", c.name).Int64("violations", n).Msg("invariant check")
		if n > 0 {
			failed = append(failed, c.name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("violated: %s", strings.Join(failed, ", "))
	}
	return nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Create shift", &s.metrics.CreateShift)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Complete", &s.metrics.Complete)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Manual invoice", &s.metrics.Invoice)
	printOperationReport("Reads", &s.metrics.Reads)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errs := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errs > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errs, float64(errs)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
