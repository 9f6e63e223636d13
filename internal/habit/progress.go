package habit

import (
	"fmt"

	"mutabaahAPI/internal/dates"
	"mutabaahAPI/internal/streak"
)

// ProgressUpdate is the full derived completion state for one habit. The three
// fields are always persisted together in a single write; a partial write
// would break the completed-dates/streak invariant.
type ProgressUpdate struct {
	CompletedDates []dates.DayKey
	DailyProgress  map[dates.DayKey]int
	Streak         int
}

// daySuccessful evaluates the success predicate for a day, given the habit's
// kind. For counted habits an untouched day (no entry in DailyProgress) is
// never a success, even for quitting habits where 0 would satisfy the limit.
func daySuccessful(h *HabitRecord, progress map[dates.DayKey]int, day dates.DayKey) bool {
	if h.HabitType != TypeCounted {
		// Simple habits are marked directly; the caller decides membership.
		return false
	}
	count, touched := progress[day]
	if !touched {
		return false
	}
	if h.IsQuitting {
		return count <= h.DailyGoal
	}
	return count >= h.DailyGoal
}

// IsDaySuccessful reports whether a day counts as successful, straight from
// the persisted record. The mutator keeps CompletedDates consistent with the
// predicate, so membership is the answer for both habit kinds.
func IsDaySuccessful(h *HabitRecord, day dates.DayKey) bool {
	for _, d := range h.CompletedDates {
		if d == day {
			return true
		}
	}
	return false
}

// ToggleSimpleCompletion flips a simple habit's mark for the day. For
// quitting habits the day carries an "avoided" label in the UI, but the
// storage slot is the same. Counted habits are rejected: their membership is
// derived from the counter, and a direct flip would desync the two.
func ToggleSimpleCompletion(h *HabitRecord, day dates.DayKey, today dates.DayKey) (ProgressUpdate, error) {
	return SetCompletion(h, day, !IsDaySuccessful(h, day), today)
}

// SetCompletion is the idempotent explicit-set variant of toggle. Same
// counted-habit restriction.
func SetCompletion(h *HabitRecord, day dates.DayKey, desired bool, today dates.DayKey) (ProgressUpdate, error) {
	if h.HabitType == TypeCounted {
		return ProgressUpdate{}, fmt.Errorf("habit %q tracks a counter; completion follows from increment/decrement", h.Name)
	}
	completed := withMembership(h.CompletedDates, day, desired)
	return ProgressUpdate{
		CompletedDates: completed,
		DailyProgress:  copyProgress(h.DailyProgress),
		Streak:         streak.Compute(completed, today),
	}, nil
}

// IncrementCounted bumps the day's counter and re-derives membership and
// streak from the success predicate. Simple habits are rejected: rederiving
// them would strip days that were legitimately toggled on.
func IncrementCounted(h *HabitRecord, day dates.DayKey, today dates.DayKey) (ProgressUpdate, error) {
	if h.HabitType != TypeCounted {
		return ProgressUpdate{}, fmt.Errorf("habit %q has no counter; use toggle", h.Name)
	}
	progress := copyProgress(h.DailyProgress)
	progress[day]++
	return rederive(h, progress, day, today), nil
}

// DecrementCounted lowers the day's counter, flooring at zero. Decrementing
// an untouched or zero day is a no-op, not an error.
func DecrementCounted(h *HabitRecord, day dates.DayKey, today dates.DayKey) (ProgressUpdate, error) {
	if h.HabitType != TypeCounted {
		return ProgressUpdate{}, fmt.Errorf("habit %q has no counter; use toggle", h.Name)
	}
	progress := copyProgress(h.DailyProgress)
	if progress[day] <= 0 {
		return ProgressUpdate{
			CompletedDates: append([]dates.DayKey(nil), h.CompletedDates...),
			DailyProgress:  progress,
			Streak:         streak.Compute(h.CompletedDates, today),
		}, nil
	}
	progress[day]--
	return rederive(h, progress, day, today), nil
}

func rederive(h *HabitRecord, progress map[dates.DayKey]int, day dates.DayKey, today dates.DayKey) ProgressUpdate {
	completed := withMembership(h.CompletedDates, day, daySuccessful(h, progress, day))
	return ProgressUpdate{
		CompletedDates: completed,
		DailyProgress:  progress,
		Streak:         streak.Compute(completed, today),
	}
}

// withMembership returns a new sorted set with day present or absent.
func withMembership(set []dates.DayKey, day dates.DayKey, present bool) []dates.DayKey {
	out := make([]dates.DayKey, 0, len(set)+1)
	for _, d := range set {
		if d != day {
			out = append(out, d)
		}
	}
	if present {
		out = append(out, day)
		dates.SortDays(out)
	}
	return out
}

func copyProgress(m map[dates.DayKey]int) map[dates.DayKey]int {
	out := make(map[dates.DayKey]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
