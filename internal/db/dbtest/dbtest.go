// Package dbtest connects repository tests to a live PostgreSQL instance.
// Tests are skipped unless DB_HOST_TEST is set.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vasiliy-maslov/nexoshop/internal/config"
	"github.com/vasiliy-maslov/nexoshop/internal/db"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Open returns a migrated pool and truncates all tables before and after the test.
func Open(t testing.TB) *pgxpool.Pool {
	t.Helper()

	host := os.Getenv("DB_HOST_TEST")
	if host == "" {
		t.Skip("DB_HOST_TEST is not set, skipping postgres integration test")
	}

	cfg := config.PostgresConfig{
		Host:            host,
		Port:            getEnv("DB_PORT_TEST", "5432"),
		User:            getEnv("DB_USER_TEST", "postgres"),
		Password:        getEnv("DB_PASSWORD_TEST", "postgres"),
		DBName:          getEnv("DB_NAME_TEST", "nexoshop_test"),
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}

	ctx := context.Background()
	pg, err := db.New(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := pg.Migrate(); err != nil {
		pg.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	truncate(t, pg.Pool)
	t.Cleanup(func() {
		truncate(t, pg.Pool)
		pg.Close()
	})

	return pg.Pool
}

func truncate(t testing.TB, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		"TRUNCATE TABLE payment_methods, invoices, shipments, payments, order_items, orders, products, categories, users")
	if err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}
}
