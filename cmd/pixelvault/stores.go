package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/pixelvault/pixelvault/internal/auth"
	"github.com/pixelvault/pixelvault/internal/auth/memory"
	authpg "github.com/pixelvault/pixelvault/internal/auth/postgres"
	authredis "github.com/pixelvault/pixelvault/internal/auth/redis"
	"github.com/pixelvault/pixelvault/internal/config"
	"github.com/pixelvault/pixelvault/internal/observability"
	"github.com/pixelvault/pixelvault/internal/store"
)

const dbConnectAttempts = 5

// Stores holds the repositories selected by configuration.
type Stores struct {
	Users    auth.UserRepository
	Sessions auth.SessionRepository
	// Ready reports whether every backing store answers.
	Ready   observability.ReadinessChecker
	closers []func()
}

// Close releases every backing connection.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// openStores wires the user and session repositories for cfg. Sessions live
// with users unless the redis backend is selected.
func openStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	s := &Stores{}
	var checks []observability.ReadinessChecker

	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		mem := memory.New()
		s.Users, s.Sessions = mem.Users(), mem.Sessions()
		slog.Warn("using in-memory storage, data is lost on exit")

	case config.StorageDriverPostgres:
		pool, err := store.OpenPool(ctx, cfg.Storage.DatabaseURL, store.PoolOptions{ConnectAttempts: dbConnectAttempts})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		s.Users = authpg.NewUserRepository(pool)
		s.Sessions = authpg.NewSessionRepository(pool)
		checks = append(checks, store.Ready(pool, cfg.Server.StoreTimeout))
		slog.Info("connected to database")

	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("driver", cfg.Storage.Driver).
			Errorf("unknown storage driver")
	}

	if cfg.Sessions.Backend == config.SessionBackendRedis {
		client, err := authredis.Connect(ctx, cfg.Sessions.RedisURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() {
			if err := client.Close(); err != nil {
				slog.Debug("error closing redis client", "error", err)
			}
		})
		s.Sessions = authredis.NewSessionRepository(client)
		checks = append(checks, func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return oops.Code("REDIS_UNREACHABLE").Wrap(err)
			}
			return nil
		})
		slog.Info("sessions stored in redis")
	}

	s.Ready = allReady(checks)
	return s, nil
}

func allReady(checks []observability.ReadinessChecker) observability.ReadinessChecker {
	return func(ctx context.Context) error {
		var errs []error
		for _, check := range checks {
			if err := check(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
