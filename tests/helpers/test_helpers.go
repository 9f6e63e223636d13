package helpers

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// SetupTestDB connects to the test database, or skips the test when no
// database is configured (unit runs in CI without Postgres).
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL or DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	return pool
}

// CreateTestUser inserts a throwaway user and returns its ids. Rows cascade
// away with CleanupTestUser.
func CreateTestUser(t *testing.T, pool *pgxpool.Pool) (uuid.UUID, string) {
	userID := uuid.New()
	clerkID := fmt.Sprintf("test_clerk_%s", userID.String()[:8])

	_, err := pool.Exec(context.Background(),
		"INSERT INTO users (id, clerk_id, username) VALUES ($1, $2, $3)",
		userID, clerkID, "integration-test-user")
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return userID, clerkID
}

func CleanupTestUser(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID) {
	_, err := pool.Exec(context.Background(), "DELETE FROM users WHERE id = $1", userID)
	if err != nil {
		t.Logf("Warning: failed to cleanup test user: %v", err)
	}
}
