package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

// Probe is a dependency the readiness endpoint pings. A failing optional
// probe degrades readiness instead of failing it.
type Probe struct {
	Name     string
	Required bool
	Ping     func(ctx context.Context) error
}

// Store bundles the repository and slot locker picked by configuration.
type Store struct {
	Repo   appointment.Repository
	Locker redisclient.Locker
	Probes []Probe

	closers []func()
}

// Open connects the configured backend, applies migrations and picks the
// slot locker. Redis is optional: without it slot locks are in-process.
func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Store, error) {
	s := &Store{}

	switch cfg.Store {
	case config.StorePostgres:
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)

		if err := db.MigratePostgres(ctx, pool); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		s.Repo = appointment.NewPgRepository(pool)
		s.Probes = append(s.Probes, Probe{Name: "postgres", Required: true, Ping: pool.Ping})
		log.Info().Msg("using postgres store")

	case config.StoreSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = sqlDB.Close() })

		if err := db.MigrateSQLite(ctx, sqlDB); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		s.Repo = appointment.NewSQLiteRepository(sqlDB)
		s.Probes = append(s.Probes, Probe{Name: "sqlite", Required: true, Ping: sqlDB.PingContext})
		log.Info().Str("path", cfg.SQLitePath).Msg("using sqlite store")

	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	if !cfg.RedisEnabled() {
		s.Locker = redisclient.NewLocalSlotLocker()
		log.Info().Msg("redis not configured, using in-process slot locks")
		return s, nil
	}

	rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, func() { _ = rdb.Close() })
	s.Locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	s.Probes = append(s.Probes, Probe{
		Name: "redis",
		Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	log.Info().Str("addr", cfg.RedisAddr).Msg("using redis slot locks")

	return s, nil
}

// Close releases connections in reverse order of opening.
func (s *Store) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
