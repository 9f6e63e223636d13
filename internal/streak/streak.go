package streak

import (
	"mutabaahAPI/internal/dates"
)

// Compute returns the length of the consecutive run of success days ending at
// the most recent entry, provided that entry is today or yesterday. "Not yet
// done today" keeps the streak alive until the day boundary; a fully skipped
// day resets it to zero.
//
// Pure over its inputs. Callers supply today from an injected clock, in the
// user's wall-clock day domain.
func Compute(completedDates []dates.DayKey, today dates.DayKey) int {
	if len(completedDates) == 0 {
		return 0
	}

	set := make(map[dates.DayKey]struct{}, len(completedDates))
	last := completedDates[0]
	for _, d := range completedDates {
		set[d] = struct{}{}
		if last.Before(d) {
			last = d
		}
	}

	if last != today && last != today.AddDays(-1) {
		return 0
	}

	count := 1
	for day := last.AddDays(-1); ; day = day.AddDays(-1) {
		if _, ok := set[day]; !ok {
			break
		}
		count++
	}
	return count
}
