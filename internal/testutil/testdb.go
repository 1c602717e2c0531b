// Package testutil provides utilities for testing
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
)

// TestDB wraps a test database connection
type TestDB struct {
	*sql.DB
	t *testing.T
}

func getTestDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnvOrDefault("DB_HOST", "localhost"),
		getEnvOrDefault("DB_PORT", "5432"),
		getEnvOrDefault("DB_USER", "test"),
		getEnvOrDefault("DB_PASSWORD", "test"),
		getEnvOrDefault("DB_NAME", "ainewsdesk_test"),
		getEnvOrDefault("DB_SSLMODE", "disable"),
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// NewTestDB opens the test database, skipping the test when it is unreachable.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	db, err := sql.Open("postgres", getTestDSN())
	if err != nil {
		t.Skipf("Skipping test: unable to open database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		t.Skipf("Skipping test: unable to connect to database: %v", err)
	}

	tdb := &TestDB{DB: db, t: t}
	t.Cleanup(tdb.Close)
	return tdb
}

// Close closes the test database connection
func (tdb *TestDB) Close() {
	if err := tdb.DB.Close(); err != nil {
		tdb.t.Errorf("Failed to close test database: %v", err)
	}
}

// Cleanup removes rows whose key starts with prefix.
func (tdb *TestDB) Cleanup(ctx context.Context, table, prefix string) {
	tdb.t.Helper()
	query := fmt.Sprintf("DELETE FROM %s WHERE key LIKE $1", table)
	if _, err := tdb.ExecContext(ctx, query, prefix+"%"); err != nil {
		tdb.t.Logf("Warning: failed to cleanup table %s: %v", table, err)
	}
}

// DSN returns the connection string NewTestDB used.
func (tdb *TestDB) DSN() string {
	return getTestDSN()
}
