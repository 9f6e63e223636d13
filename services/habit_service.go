package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mutabaahAPI/internal/clock"
	"mutabaahAPI/internal/dates"
	"mutabaahAPI/internal/habit"
)

type HabitService struct {
	db    *pgxpool.Pool
	clock clock.Clock
}

func NewHabitService(db *pgxpool.Pool, clk clock.Clock) *HabitService {
	return &HabitService{db: db, clock: clk}
}

// --- HELPER TO RESOLVE CLERK ID (Private) ---
func (s *HabitService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, "SELECT id FROM users WHERE clerk_id = $1", clerkID).Scan(&userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user not found for clerk_id %s: %w", clerkID, err)
	}
	return userID, nil
}

// today returns the current day key in the user-facing wall-clock domain.
func (s *HabitService) today() dates.DayKey {
	return dates.DayOf(s.clock.Now())
}

const habitColumns = `id, user_id, name, habit_type, is_quitting, daily_goal,
	   completed_dates, daily_progress, streak, display_order,
	   reminder_time, color, created_at, updated_at`

func scanHabit(row pgx.Row) (*habit.HabitRecord, error) {
	h := &habit.HabitRecord{}
	var completed []string
	var progressJSON []byte

	err := row.Scan(
		&h.ID, &h.UserID, &h.Name, &h.HabitType, &h.IsQuitting, &h.DailyGoal,
		&completed, &progressJSON, &h.Streak, &h.Order,
		&h.ReminderTime, &h.Color, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	h.CompletedDates = make([]dates.DayKey, 0, len(completed))
	for _, d := range completed {
		h.CompletedDates = append(h.CompletedDates, dates.DayKey(d))
	}
	if len(progressJSON) > 0 {
		if err := json.Unmarshal(progressJSON, &h.DailyProgress); err != nil {
			return nil, fmt.Errorf("corrupt daily_progress for habit %s: %w", h.ID, err)
		}
	}

	// Older rows may predate newer fields; the core always gets a
	// fully-populated record.
	h.Normalize()
	return h, nil
}

func (s *HabitService) ListHabits(ctx context.Context, clerkID string) ([]*habit.HabitRecord, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	return s.ListHabitsByUserID(ctx, userID)
}

func (s *HabitService) ListHabitsByUserID(ctx context.Context, userID uuid.UUID) ([]*habit.HabitRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM habits WHERE user_id = $1 ORDER BY display_order, created_at`, habitColumns)

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch habits: %w", err)
	}
	defer rows.Close()

	var habits []*habit.HabitRecord
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func (s *HabitService) getHabit(ctx context.Context, userID, habitID uuid.UUID) (*habit.HabitRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM habits WHERE id = $1 AND user_id = $2`, habitColumns)
	h, err := scanHabit(s.db.QueryRow(ctx, query, habitID, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("habit not found")
		}
		return nil, fmt.Errorf("failed to fetch habit: %w", err)
	}
	return h, nil
}

func (s *HabitService) CreateHabit(ctx context.Context, clerkID string, req *habit.CreateHabitRequest) (*habit.HabitRecord, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	if req.Name == "" {
		return nil, fmt.Errorf("habit name is required")
	}
	habitType := req.HabitType
	if habitType == "" {
		habitType = habit.TypeSimple
	}
	dailyGoal := req.DailyGoal
	if habitType == habit.TypeCounted && dailyGoal < 1 {
		dailyGoal = 1
	}
	if req.ReminderTime != "" {
		if _, err := dates.ParseClockTime(req.ReminderTime); err != nil {
			return nil, err
		}
	}

	// New habits go to the end of the user's display order.
	query := fmt.Sprintf(`
		INSERT INTO habits (id, user_id, name, habit_type, is_quitting, daily_goal,
			completed_dates, daily_progress, streak, display_order, reminder_time, color)
		VALUES ($1, $2, $3, $4, $5, $6, '{}', '{}', 0,
			(SELECT COALESCE(MAX(display_order), 0) + 1 FROM habits WHERE user_id = $2),
			$7, $8)
		RETURNING %s`, habitColumns)

	h, err := scanHabit(s.db.QueryRow(ctx, query,
		uuid.New(), userID, req.Name, habitType, req.IsQuitting, dailyGoal,
		req.ReminderTime, req.Color,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create habit: %w", err)
	}

	s.notifyHabitsChanged(userID)
	return h, nil
}

// UpdateHabit applies a partial update: only the provided fields change.
// Completion state is not writable here; that goes through the progress
// operations below.
func (s *HabitService) UpdateHabit(ctx context.Context, clerkID string, habitID uuid.UUID, req *habit.UpdateHabitRequest) (*habit.HabitRecord, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	setClauses := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if req.Name != nil {
		setClauses = append(setClauses, "name = "+arg(*req.Name))
	}
	if req.DailyGoal != nil {
		if *req.DailyGoal < 1 {
			return nil, fmt.Errorf("daily goal must be positive")
		}
		setClauses = append(setClauses, "daily_goal = "+arg(*req.DailyGoal))
	}
	if req.ReminderTime != nil {
		if *req.ReminderTime != "" {
			if _, err := dates.ParseClockTime(*req.ReminderTime); err != nil {
				return nil, err
			}
		}
		setClauses = append(setClauses, "reminder_time = "+arg(*req.ReminderTime))
	}
	if req.Color != nil {
		setClauses = append(setClauses, "color = "+arg(*req.Color))
	}
	if req.Order != nil {
		setClauses = append(setClauses, "display_order = "+arg(*req.Order))
	}
	if len(setClauses) == 0 {
		return s.getHabit(ctx, userID, habitID)
	}
	setClauses = append(setClauses, "updated_at = NOW()")

	query := fmt.Sprintf(`UPDATE habits SET %s WHERE id = %s AND user_id = %s RETURNING %s`,
		strings.Join(setClauses, ", "), arg(habitID), arg(userID), habitColumns)

	h, err := scanHabit(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("habit not found")
		}
		return nil, fmt.Errorf("failed to update habit: %w", err)
	}

	s.notifyHabitsChanged(userID)
	return h, nil
}

func (s *HabitService) DeleteHabit(ctx context.Context, clerkID string, habitID uuid.UUID) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(ctx, "DELETE FROM habits WHERE id = $1 AND user_id = $2", habitID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("habit not found")
	}

	s.notifyHabitsChanged(userID)
	return nil
}

// ReorderHabits rewrites display_order so the user's habits appear in the
// given sequence. IDs not owned by the user are ignored by the WHERE clause.
func (s *HabitService) ReorderHabits(ctx context.Context, clerkID string, orderedIDs []uuid.UUID) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}
	if len(orderedIDs) == 0 {
		return fmt.Errorf("habit order cannot be empty")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin reorder: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, id := range orderedIDs {
		if _, err := tx.Exec(ctx,
			"UPDATE habits SET display_order = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3",
			i+1, id, userID,
		); err != nil {
			return fmt.Errorf("failed to reorder habit %s: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}

	s.notifyHabitsChanged(userID)
	return nil
}

// --- PROGRESS OPERATIONS ---
// Each one is read-modify-write over the latest row: load the snapshot, run
// the pure mutator, persist the derived triple in one UPDATE. There is no
// cross-statement transaction, so two devices racing on the same habit can
// lose an update; the single write keeps the row internally consistent either
// way.

func (s *HabitService) ToggleCompletion(ctx context.Context, clerkID string, habitID uuid.UUID, day dates.DayKey) (*habit.HabitRecord, error) {
	return s.mutate(ctx, clerkID, habitID, func(h *habit.HabitRecord) (habit.ProgressUpdate, error) {
		return habit.ToggleSimpleCompletion(h, day, s.today())
	})
}

func (s *HabitService) SetCompletion(ctx context.Context, clerkID string, habitID uuid.UUID, day dates.DayKey, desired bool) (*habit.HabitRecord, error) {
	return s.mutate(ctx, clerkID, habitID, func(h *habit.HabitRecord) (habit.ProgressUpdate, error) {
		return habit.SetCompletion(h, day, desired, s.today())
	})
}

func (s *HabitService) IncrementProgress(ctx context.Context, clerkID string, habitID uuid.UUID, day dates.DayKey) (*habit.HabitRecord, error) {
	return s.mutate(ctx, clerkID, habitID, func(h *habit.HabitRecord) (habit.ProgressUpdate, error) {
		return habit.IncrementCounted(h, day, s.today())
	})
}

func (s *HabitService) DecrementProgress(ctx context.Context, clerkID string, habitID uuid.UUID, day dates.DayKey) (*habit.HabitRecord, error) {
	return s.mutate(ctx, clerkID, habitID, func(h *habit.HabitRecord) (habit.ProgressUpdate, error) {
		return habit.DecrementCounted(h, day, s.today())
	})
}

func (s *HabitService) mutate(ctx context.Context, clerkID string, habitID uuid.UUID, op func(*habit.HabitRecord) (habit.ProgressUpdate, error)) (*habit.HabitRecord, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	h, err := s.getHabit(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}

	update, err := op(h)
	if err != nil {
		return nil, err
	}

	completed := make([]string, 0, len(update.CompletedDates))
	for _, d := range update.CompletedDates {
		completed = append(completed, string(d))
	}
	progressJSON, err := json.Marshal(update.DailyProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to encode daily progress: %w", err)
	}

	// The derived triple is written together; a partial write would leave
	// streak inconsistent with completed_dates.
	query := fmt.Sprintf(`
		UPDATE habits
		SET completed_dates = $1, daily_progress = $2, streak = $3, updated_at = NOW()
		WHERE id = $4 AND user_id = $5
		RETURNING %s`, habitColumns)

	h, err = scanHabit(s.db.QueryRow(ctx, query, completed, progressJSON, update.Streak, habitID, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to persist progress: %w", err)
	}

	s.notifyHabitsChanged(userID)
	return h, nil
}

// --- REALTIME SUBSCRIPTION ---

func habitsChannel(userID uuid.UUID) string {
	return "habits_" + strings.ReplaceAll(userID.String(), "-", "_")
}

func (s *HabitService) notifyHabitsChanged(userID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := s.db.Exec(ctx, "SELECT pg_notify($1, $2)", habitsChannel(userID), userID.String()); err != nil {
		log.Printf("Failed to notify habit change for user %s: %v", userID, err)
	}
}

// SubscribeHabits pushes the user's full current habit list to onChange after
// every write, via LISTEN/NOTIFY on a dedicated connection. Blocks until ctx
// is cancelled.
func (s *HabitService) SubscribeHabits(ctx context.Context, userID uuid.UUID, onChange func([]*habit.HabitRecord)) error {
	conn, err := s.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	defer conn.Release()

	channel := pgx.Identifier{habitsChannel(userID)}.Sanitize()
	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", channel, err)
	}

	// Initial snapshot so the subscriber does not wait for the first write.
	habits, err := s.ListHabitsByUserID(ctx, userID)
	if err != nil {
		return err
	}
	onChange(habits)

	for {
		if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("habit subscription interrupted: %w", err)
		}

		habits, err := s.ListHabitsByUserID(ctx, userID)
		if err != nil {
			log.Printf("Failed to refresh habits for subscriber %s: %v", userID, err)
			continue
		}
		onChange(habits)
	}
}
