// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

//go:build integration

package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pixelvault/pixelvault/internal/store"
)

// startPostgres runs a throwaway PostgreSQL container and returns its DSN.
func startPostgres(ctx context.Context) (string, func(), error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("pixelvault_test"),
		postgres.WithUsername("pixelvault"),
		postgres.WithPassword("pixelvault"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return "", nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return "", nil, err
	}
	return connStr, func() { _ = container.Terminate(ctx) }, nil
}

func constraintOf(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return pgErr.ConstraintName
	}
	return ""
}

var _ = Describe("PostgreSQL schema", Ordered, func() {
	var (
		ctx     context.Context
		connStr string
		cleanup func()
		pool    *pgxpool.Pool
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		connStr, cleanup, err = startPostgres(ctx)
		Expect(err).NotTo(HaveOccurred())

		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Close()).To(Succeed())

		pool, err = store.OpenPool(ctx, connStr, store.PoolOptions{ConnectAttempts: 3})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if cleanup != nil {
			cleanup()
		}
	})

	BeforeEach(func() {
		_, err := pool.Exec(ctx, `TRUNCATE users CASCADE`)
		Expect(err).NotTo(HaveOccurred())
	})

	insertUser := func(id, email string, admin bool) error {
		_, err := pool.Exec(ctx,
			`INSERT INTO users (id, email, password_hash, is_admin) VALUES ($1, $2, 'hash', $3)`,
			id, email, admin)
		return err
	}

	Describe("users", func() {
		It("rejects a second admin", func() {
			Expect(insertUser("u1", "first@example.com", true)).To(Succeed())
			err := insertUser("u2", "second@example.com", true)
			Expect(constraintOf(err)).To(Equal("users_single_admin"))
		})

		It("allows many non-admin users", func() {
			Expect(insertUser("u1", "a@example.com", false)).To(Succeed())
			Expect(insertUser("u2", "b@example.com", false)).To(Succeed())
		})

		It("treats emails case-insensitively", func() {
			Expect(insertUser("u1", "Case@Example.com", false)).To(Succeed())
			err := insertUser("u2", "case@example.COM", false)
			Expect(constraintOf(err)).To(Equal("users_email_lower_key"))
		})
	})

	Describe("sessions", func() {
		It("enforces unique token hashes", func() {
			Expect(insertUser("u1", "s@example.com", false)).To(Succeed())
			insert := func(id string) error {
				_, err := pool.Exec(ctx, `
					INSERT INTO sessions (id, user_id, token_hash, auth_type, expires_at)
					VALUES ($1, 'u1', 'same-hash', 'password', NOW() + interval '1 hour')`, id)
				return err
			}
			Expect(insert("s1")).To(Succeed())
			Expect(constraintOf(insert("s2"))).To(Equal("sessions_token_hash_key"))
		})
	})

	Describe("readiness", func() {
		It("reports a reachable database", func() {
			check := store.Ready(pool, time.Second)
			Expect(check(ctx)).To(Succeed())
		})
	})
})

var _ = Describe("OpenPool", func() {
	It("gives up on an unreachable server", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_, err := store.OpenPool(ctx, "postgres://pixelvault@127.0.0.1:1/pixelvault?connect_timeout=1",
			store.PoolOptions{ConnectAttempts: 2, ConnectBackoff: 10 * time.Millisecond})
		Expect(err).To(HaveOccurred())
	})

	It("rejects an unparseable DSN", func() {
		_, err := store.OpenPool(context.Background(), "://nope", store.PoolOptions{})
		Expect(err).To(HaveOccurred())
	})
})
