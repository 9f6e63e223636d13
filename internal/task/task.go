package task

import (
	"time"

	"github.com/google/uuid"

	"mutabaahAPI/internal/dates"
)

type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

type TaskRecord struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	UserID     uuid.UUID    `json:"user_id" db:"user_id"`
	Title      string       `json:"title" db:"title"`
	DueDate    dates.DayKey `json:"due_date" db:"due_date"`
	DueTime    string       `json:"due_time,omitempty" db:"due_time"`
	Completed  bool         `json:"completed" db:"completed"`
	Recurrence Recurrence   `json:"recurrence" db:"recurrence"`
	Priority   int          `json:"priority" db:"priority"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" db:"updated_at"`
}

// NextDueDate advances a due date by one recurrence unit. Monthly recurrence
// uses calendar-month arithmetic, so Jan 31 rolls into early March the way
// time.AddDate normalizes it.
func NextDueDate(due dates.DayKey, r Recurrence) dates.DayKey {
	switch r {
	case RecurrenceDaily:
		return due.AddDays(1)
	case RecurrenceWeekly:
		return due.AddDays(7)
	case RecurrenceMonthly:
		return dates.DayOf(due.Time().AddDate(0, 1, 0))
	default:
		return due
	}
}

// Successor builds the follow-up task spawned when a recurring task is
// completed: same title, recurrence and priority, due date advanced one unit,
// not yet completed. Returns false for non-recurring tasks.
func (t *TaskRecord) Successor() (TaskRecord, bool) {
	if t.Recurrence == RecurrenceNone || t.Recurrence == "" {
		return TaskRecord{}, false
	}
	return TaskRecord{
		ID:         uuid.New(),
		UserID:     t.UserID,
		Title:      t.Title,
		DueDate:    NextDueDate(t.DueDate, t.Recurrence),
		DueTime:    t.DueTime,
		Completed:  false,
		Recurrence: t.Recurrence,
		Priority:   t.Priority,
	}, true
}

type CreateTaskRequest struct {
	Title      string     `json:"title"`
	DueDate    string     `json:"due_date"`
	DueTime    string     `json:"due_time"`
	Recurrence Recurrence `json:"recurrence"`
	Priority   int        `json:"priority"`
}
