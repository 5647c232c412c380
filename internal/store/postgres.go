package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// PoolOptions tunes OpenPool.
type PoolOptions struct {
	// ConnectAttempts bounds the startup ping loop. Zero means one attempt.
	ConnectAttempts uint64
	// ConnectBackoff is the first delay between ping attempts.
	ConnectBackoff time.Duration
}

// OpenPool connects to PostgreSQL and pings until the server answers or the
// attempts run out.
func OpenPool(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	delay := opts.ConnectBackoff
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	var retries uint64
	if opts.ConnectAttempts > 1 {
		retries = opts.ConnectAttempts - 1
	}
	backoff := retry.WithMaxRetries(retries, retry.WithCappedDuration(5*time.Second, retry.NewExponential(delay)))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", retries+1).
			Wrap(err)
	}
	return pool, nil
}

// Pinger reports database reachability for readiness probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ready returns a readiness check that pings db within timeout.
func Ready(db Pinger, timeout time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			return oops.Code("DB_UNREACHABLE").Wrap(err)
		}
		return nil
	}
}
