package habit

import (
	"time"

	"github.com/google/uuid"

	"mutabaahAPI/internal/dates"
)

type HabitType string

const (
	TypeSimple  HabitType = "simple"
	TypeCounted HabitType = "counted"
)

// HabitRecord is the persisted shape of a tracked commitment. CompletedDates
// holds the days the habit counts as successful (sorted ascending, no
// duplicates); Streak is a derived cache and must always equal the streak
// computed from CompletedDates after any mutation. Both are written only by
// the progress mutator in this package.
type HabitRecord struct {
	ID             uuid.UUID             `json:"id" db:"id"`
	UserID         uuid.UUID             `json:"user_id" db:"user_id"`
	Name           string                `json:"name" db:"name"`
	HabitType      HabitType             `json:"habit_type" db:"habit_type"`
	IsQuitting     bool                  `json:"is_quitting" db:"is_quitting"`
	DailyGoal      int                   `json:"daily_goal" db:"daily_goal"`
	CompletedDates []dates.DayKey        `json:"completed_dates" db:"completed_dates"`
	DailyProgress  map[dates.DayKey]int  `json:"daily_progress" db:"daily_progress"`
	Streak         int                   `json:"streak" db:"streak"`
	Order          int                   `json:"order" db:"display_order"`
	ReminderTime   string                `json:"reminder_time,omitempty" db:"reminder_time"`
	Color          string                `json:"color,omitempty" db:"color"`
	CreatedAt      time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at" db:"updated_at"`
}

// Normalize fills in what older stored documents may be missing so the core
// always sees a fully-populated record: nil maps become empty, completed
// dates are sorted, counted habits get a sane goal. Called at the data-access
// boundary after every read.
func (h *HabitRecord) Normalize() {
	if h.CompletedDates == nil {
		h.CompletedDates = []dates.DayKey{}
	}
	dates.SortDays(h.CompletedDates)
	if h.DailyProgress == nil {
		h.DailyProgress = map[dates.DayKey]int{}
	}
	if h.HabitType == "" {
		h.HabitType = TypeSimple
	}
	if h.HabitType == TypeCounted && h.DailyGoal < 1 {
		h.DailyGoal = 1
	}
}

type CreateHabitRequest struct {
	Name         string    `json:"name"`
	HabitType    HabitType `json:"habit_type"`
	IsQuitting   bool      `json:"is_quitting"`
	DailyGoal    int       `json:"daily_goal"`
	ReminderTime string    `json:"reminder_time"`
	Color        string    `json:"color"`
}

// UpdateHabitRequest is a partial update: nil pointer means "leave as is".
// Completion state is never writable through here, only through the mutator.
type UpdateHabitRequest struct {
	Name         *string `json:"name,omitempty"`
	DailyGoal    *int    `json:"daily_goal,omitempty"`
	ReminderTime *string `json:"reminder_time,omitempty"`
	Color        *string `json:"color,omitempty"`
	Order        *int    `json:"order,omitempty"`
}
