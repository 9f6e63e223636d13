package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"mutabaahAPI/internal/clock"
	"mutabaahAPI/internal/dates"
	"mutabaahAPI/internal/quran"
)

type QuranService struct {
	db    *pgxpool.Pool
	clock clock.Clock
}

func NewQuranService(db *pgxpool.Pool, clk clock.Clock) *QuranService {
	return &QuranService{db: db, clock: clk}
}

func (s *QuranService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, "SELECT id FROM users WHERE clerk_id = $1", clerkID).Scan(&userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user not found for clerk_id %s: %w", clerkID, err)
	}
	return userID, nil
}

func (s *QuranService) GetProgress(ctx context.Context, clerkID string) (*quran.QuranProgress, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	progress := quran.NewProgress()

	rows, err := s.db.Query(ctx, "SELECT page, memorized_on FROM quran_pages WHERE user_id = $1", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch memorized pages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var page int
		var on time.Time
		if err := rows.Scan(&page, &on); err != nil {
			return nil, err
		}
		progress.MarkPageMemorized(page, dates.DayOf(on))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reviewRows, err := s.db.Query(ctx,
		"SELECT unit_type, unit, reviewed_on FROM quran_reviews WHERE user_id = $1 ORDER BY reviewed_on", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reviews: %w", err)
	}
	defer reviewRows.Close()
	for reviewRows.Next() {
		var unitType string
		var unit int
		var on time.Time
		if err := reviewRows.Scan(&unitType, &unit, &on); err != nil {
			return nil, err
		}
		day := dates.DayOf(on)
		switch unitType {
		case "juz":
			progress.RecordJuzReview(unit, day)
		case "hizb":
			progress.RecordHizbReview(unit, day)
		}
	}
	return progress, reviewRows.Err()
}

func (s *QuranService) MarkPageMemorized(ctx context.Context, clerkID string, page int) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}
	if page < 1 || page > quran.TotalPages {
		return fmt.Errorf("page %d out of range", page)
	}

	day := dates.DayOf(s.clock.Now())
	query := `
		INSERT INTO quran_pages (user_id, page, memorized_on)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, page) DO UPDATE SET memorized_on = EXCLUDED.memorized_on
	`
	if _, err := s.db.Exec(ctx, query, userID, page, day.Time()); err != nil {
		return fmt.Errorf("failed to mark page memorized: %w", err)
	}
	return nil
}

func (s *QuranService) UnmarkPage(ctx context.Context, clerkID string, page int) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, "DELETE FROM quran_pages WHERE user_id = $1 AND page = $2", userID, page); err != nil {
		return fmt.Errorf("failed to unmark page: %w", err)
	}
	return nil
}

func (s *QuranService) RecordReview(ctx context.Context, clerkID, unitType string, unit int) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}
	switch unitType {
	case "juz":
		if unit < 1 || unit > quran.TotalJuz {
			return fmt.Errorf("juz %d out of range", unit)
		}
	case "hizb":
		if unit < 1 || unit > quran.TotalHizb {
			return fmt.Errorf("hizb %d out of range", unit)
		}
	default:
		return fmt.Errorf("unknown review unit %q", unitType)
	}

	day := dates.DayOf(s.clock.Now())
	query := "INSERT INTO quran_reviews (user_id, unit_type, unit, reviewed_on) VALUES ($1, $2, $3, $4)"
	if _, err := s.db.Exec(ctx, query, userID, unitType, unit, day.Time()); err != nil {
		return fmt.Errorf("failed to record review: %w", err)
	}
	return nil
}
