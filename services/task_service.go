package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mutabaahAPI/internal/dates"
	"mutabaahAPI/internal/task"
)

type TaskService struct {
	db *pgxpool.Pool
}

func NewTaskService(db *pgxpool.Pool) *TaskService {
	return &TaskService{db: db}
}

func (s *TaskService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, "SELECT id FROM users WHERE clerk_id = $1", clerkID).Scan(&userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user not found for clerk_id %s: %w", clerkID, err)
	}
	return userID, nil
}

const taskColumns = `id, user_id, title, due_date, due_time, completed, recurrence, priority, created_at, updated_at`

func scanTask(row pgx.Row) (*task.TaskRecord, error) {
	t := &task.TaskRecord{}
	var dueDate time.Time
	err := row.Scan(
		&t.ID, &t.UserID, &t.Title, &dueDate, &t.DueTime,
		&t.Completed, &t.Recurrence, &t.Priority, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.DueDate = dates.DayOf(dueDate)
	if t.Recurrence == "" {
		t.Recurrence = task.RecurrenceNone
	}
	return t, nil
}

func (s *TaskService) ListTasks(ctx context.Context, clerkID string, includeCompleted bool) ([]*task.TaskRecord, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE user_id = $1`, taskColumns)
	if !includeCompleted {
		query += " AND completed = FALSE"
	}
	query += " ORDER BY due_date, due_time, priority"

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*task.TaskRecord
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ListTasksDueOn returns all of a user's tasks due on the given day,
// completed or not. The scheduler filters by time window and completion
// in-process.
func (s *TaskService) ListTasksDueOn(ctx context.Context, userID uuid.UUID, day dates.DayKey) ([]*task.TaskRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE user_id = $1 AND due_date = $2`, taskColumns)

	rows, err := s.db.Query(ctx, query, userID, day.Time())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*task.TaskRecord
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *TaskService) CreateTask(ctx context.Context, clerkID string, req *task.CreateTaskRequest) (*task.TaskRecord, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	if req.Title == "" {
		return nil, fmt.Errorf("task title is required")
	}
	dueDate, err := dates.ParseDay(req.DueDate)
	if err != nil {
		return nil, err
	}
	if req.DueTime != "" {
		if _, err := dates.ParseClockTime(req.DueTime); err != nil {
			return nil, err
		}
	}
	recurrence := req.Recurrence
	if recurrence == "" {
		recurrence = task.RecurrenceNone
	}
	switch recurrence {
	case task.RecurrenceNone, task.RecurrenceDaily, task.RecurrenceWeekly, task.RecurrenceMonthly:
	default:
		return nil, fmt.Errorf("unknown recurrence %q", recurrence)
	}

	query := fmt.Sprintf(`
		INSERT INTO tasks (id, user_id, title, due_date, due_time, completed, recurrence, priority)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7)
		RETURNING %s`, taskColumns)

	t, err := scanTask(s.db.QueryRow(ctx, query,
		uuid.New(), userID, req.Title, dueDate.Time(), req.DueTime, recurrence, req.Priority,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return t, nil
}

// CompleteTask marks the task done and, for recurring tasks, inserts the
// successor in the same transaction. The original row is kept.
func (s *TaskService) CompleteTask(ctx context.Context, clerkID string, taskID uuid.UUID) (*task.TaskRecord, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		UPDATE tasks SET completed = TRUE, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND completed = FALSE
		RETURNING %s`, taskColumns)

	t, err := scanTask(tx.QueryRow(ctx, query, taskID, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("task not found or already completed")
		}
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}

	if successor, ok := t.Successor(); ok {
		_, err = tx.Exec(ctx, `
			INSERT INTO tasks (id, user_id, title, due_date, due_time, completed, recurrence, priority)
			VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7)`,
			successor.ID, successor.UserID, successor.Title, successor.DueDate.Time(),
			successor.DueTime, successor.Recurrence, successor.Priority,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create recurring successor: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit task completion: %w", err)
	}
	return t, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, clerkID string, taskID uuid.UUID) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(ctx, "DELETE FROM tasks WHERE id = $1 AND user_id = $2", taskID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("task not found")
	}
	return nil
}
