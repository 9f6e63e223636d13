package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mutabaahAPI/internal/user"
)

type UserService struct {
	db *pgxpool.Pool
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	u := &user.User{}
	err := s.db.QueryRow(ctx,
		"SELECT id, clerk_id, username, created_at FROM users WHERE clerk_id = $1", clerkID,
	).Scan(&u.ID, &u.ClerkID, &u.Username, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return u, nil
}

// CreateUser provisions a row for a freshly signed-up Clerk user. Idempotent:
// replaying the webhook updates the username instead of failing.
func (s *UserService) CreateUser(ctx context.Context, clerkID, username string) (*user.User, error) {
	u := &user.User{}
	query := `
		INSERT INTO users (id, clerk_id, username)
		VALUES ($1, $2, $3)
		ON CONFLICT (clerk_id) DO UPDATE SET username = EXCLUDED.username
		RETURNING id, clerk_id, username, created_at
	`
	err := s.db.QueryRow(ctx, query, uuid.New(), clerkID, username).
		Scan(&u.ID, &u.ClerkID, &u.Username, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// DeleteUser removes the user and, through cascading constraints, all of
// their habits, tasks, quran progress and device tokens.
func (s *UserService) DeleteUser(ctx context.Context, clerkID string) error {
	result, err := s.db.Exec(ctx, "DELETE FROM users WHERE clerk_id = $1", clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}
