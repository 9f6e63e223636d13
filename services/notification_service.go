package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"mutabaahAPI/internal/notification"
)

// NotificationService owns the device-token registry: who can be pushed to,
// and which tokens have gone stale.
type NotificationService struct {
	db *pgxpool.Pool
}

func NewNotificationService(db *pgxpool.Pool) *NotificationService {
	return &NotificationService{db: db}
}

func (s *NotificationService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, "SELECT id FROM users WHERE clerk_id = $1", clerkID).Scan(&userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user not found for clerk_id %s: %w", clerkID, err)
	}
	return userID, nil
}

// RegisterDevice upserts a device token. Re-registering an existing token
// reactivates it and refreshes the platform.
func (s *NotificationService) RegisterDevice(ctx context.Context, clerkID, token, platform string) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("device token is required")
	}
	if platform == "" {
		platform = "android"
	}

	query := `
		INSERT INTO device_tokens (user_id, token, platform, active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (user_id, token)
		DO UPDATE SET platform = EXCLUDED.platform, active = TRUE, updated_at = NOW()
	`
	if _, err := s.db.Exec(ctx, query, userID, token, platform); err != nil {
		return fmt.Errorf("failed to register device token: %w", err)
	}
	return nil
}

// DeactivateToken records that FCM rejected a token as invalid. Delivery
// attempts to it stop on the next tick; the row is kept for auditing.
func (s *NotificationService) DeactivateToken(ctx context.Context, token string) error {
	result, err := s.db.Exec(ctx, "UPDATE device_tokens SET active = FALSE, updated_at = NOW() WHERE token = $1", token)
	if err != nil {
		return fmt.Errorf("failed to deactivate token: %w", err)
	}
	if result.RowsAffected() > 0 {
		log.Printf("Deactivated invalid device token (%d rows)", result.RowsAffected())
	}
	return nil
}

// ListUsersWithToken enumerates every active (user, token) pair. This is the
// scheduler's top-level query: if it fails, the whole tick fails.
func (s *NotificationService) ListUsersWithToken(ctx context.Context) ([]UserToken, error) {
	rows, err := s.db.Query(ctx, "SELECT user_id, token FROM device_tokens WHERE active = TRUE ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate device tokens: %w", err)
	}
	defer rows.Close()

	var out []UserToken
	for rows.Next() {
		var ut UserToken
		if err := rows.Scan(&ut.UserID, &ut.Token); err != nil {
			return nil, err
		}
		out = append(out, ut)
	}
	return out, rows.Err()
}

func (s *NotificationService) ListActiveTokens(ctx context.Context, clerkID string) ([]notification.DeviceToken, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT user_id, token, platform, active, created_at, updated_at
		FROM device_tokens WHERE user_id = $1 AND active = TRUE`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.UserID, &t.Token, &t.Platform, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
