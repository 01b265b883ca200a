package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

var specializations = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	doctors := flag.Int("doctors", 20, "number of doctors to create")
	patients := flag.Int("patients", 500, "number of patients to create")
	seed := flag.Uint64("seed", 0, "random seed, 0 picks one from the clock")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New(os.Stderr, "prod", "info")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(os.Stdout, cfg.Env, cfg.LogLevel)
	logger.Info().Str("store", cfg.Store).Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("store open error")
	}
	defer st.Close()

	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}
	faker := gofakeit.New(*seed)
	svc := appointment.NewService(st.Repo, st.Locker)

	if err := seedDoctors(ctx, svc, faker, *doctors, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedPatients(ctx, svc, faker, *patients, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Msg("seed complete")
}

func seedDoctors(ctx context.Context, svc *appointment.Service, faker *gofakeit.Faker, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding doctors")

	for i := 0; i < count; i++ {
		name := "Dr. " + faker.LastName()
		spec := specializations[faker.Number(0, len(specializations)-1)]
		if _, err := svc.AddDoctor(ctx, name, spec); err != nil {
			return err
		}
	}

	logger.Info().Msg("doctors seeded")
	return nil
}

func seedPatients(ctx context.Context, svc *appointment.Service, faker *gofakeit.Faker, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	const progressEvery = 500

	for i := 0; i < count; i++ {
		if _, err := svc.AddPatient(ctx, faker.Name()); err != nil {
			return err
		}
		if (i+1)%progressEvery == 0 {
			logger.Info().Int("done", i+1).Int("total", count).Msg("patients seeded")
		}
	}

	logger.Info().Msg("patients seeded")
	return nil
}
