package main

import (
	"context"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-scheduling/internal/config"
	"github.com/hackgods/hospital-scheduling/internal/db"
	"github.com/hackgods/hospital-scheduling/internal/logging"
)

const batchSize = 500

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", "prod")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("service", "seed").Logger()
	logger.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	s := &seeder{
		tx:     db.NewTransactor(pool),
		pool:   pool,
		faker:  gofakeit.New(0),
		logger: logger,
	}

	specializations := make([]string, 0, len(cfg.Premiums))
	for name := range cfg.Premiums {
		specializations = append(specializations, name)
	}
	sort.Strings(specializations)

	if err := s.seedDoctors(context.Background(), getInt("SEED_DOCTORS", 40), specializations); err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if err := s.seedPatients(context.Background(), getInt("SEED_PATIENTS", 2000)); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Msg("seed complete")
}

type seeder struct {
	tx     db.Transactor
	pool   db.Querier
	faker  *gofakeit.Faker
	logger zerolog.Logger
}

func (s *seeder) seedDoctors(ctx context.Context, count int, specializations []string) error {
	s.logger.Info().Int("count", count).Msg("seeding doctors")

	return s.inBatches(ctx, count, "doctors", func(ctx context.Context) error {
		var specialization *string
		if len(specializations) > 0 {
			// a few doctors carry no specialization and bill at the default premium
			if s.faker.Number(0, 9) > 0 {
				name := specializations[s.faker.Number(0, len(specializations)-1)]
				specialization = &name
			}
		}
		_, err := db.Conn(ctx, s.pool).Exec(ctx, `
			INSERT INTO doctors (id, name, specialization, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, uuid.New(), "Dr. "+s.faker.Name(), specialization)
		return err
	})
}

func (s *seeder) seedPatients(ctx context.Context, count int) error {
	s.logger.Info().Int("count", count).Msg("seeding patients")

	return s.inBatches(ctx, count, "patients", func(ctx context.Context) error {
		_, err := db.Conn(ctx, s.pool).Exec(ctx, `
			INSERT INTO patients (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, uuid.New(), s.faker.Name(), s.faker.Email())
		return err
	})
}

// inBatches runs insert count times, committing every batchSize rows.
func (s *seeder) inBatches(ctx context.Context, count int, table string, insert func(ctx context.Context) error) error {
	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
			for i := offset; i < end; i++ {
				if err := insert(txCtx); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		s.logger.Info().Str("table", table).Int("done", end).Int("total", count).Msg("batch committed")
	}
	return nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
