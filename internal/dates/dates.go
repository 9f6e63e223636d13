package dates

import (
	"fmt"
	"sort"
	"time"
)

// DayKey is a calendar day in YYYY-MM-DD form with no time-of-day component.
// Habit day keys are local wall-clock days; the scheduler derives its day key
// from UTC. Arithmetic always goes through time.Time, never string math.
type DayKey string

const dayLayout = "2006-01-02"

func DayOf(t time.Time) DayKey {
	return DayKey(t.Format(dayLayout))
}

func ParseDay(s string) (DayKey, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid day key %q: %w", s, err)
	}
	return DayOf(t), nil
}

func (d DayKey) Time() time.Time {
	t, err := time.Parse(dayLayout, string(d))
	if err != nil {
		// DayKeys are constructed via DayOf/ParseDay, so this means a
		// corrupted value made it past the boundary.
		panic(fmt.Sprintf("malformed day key %q", string(d)))
	}
	return t
}

func (d DayKey) AddDays(n int) DayKey {
	return DayOf(d.Time().AddDate(0, 0, n))
}

func (d DayKey) Before(other DayKey) bool {
	return d.Time().Before(other.Time())
}

// SortDays sorts day keys ascending in place. Lexicographic order matches
// chronological order for this layout, but sorting via parsed times keeps the
// comparison honest if a malformed key ever slips in.
func SortDays(days []DayKey) {
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
}

// ClockTime is a wall-clock "HH:MM" value measured in minutes from midnight.
type ClockTime int

const MinutesPerDay = 24 * 60

func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*60 + t.Minute())
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Bucket is the half-open window [Start, Start+cadence) a scheduler tick is
// responsible for. A bucket whose end lands on or past midnight wraps: its
// End is reduced modulo the day, and Contains handles the wrap explicitly.
type Bucket struct {
	Start ClockTime
	End   ClockTime
}

// BucketFor floor-aligns t to the cadence so that every minute of the day
// belongs to exactly one bucket and no minute to two.
func BucketFor(t time.Time, cadence time.Duration) Bucket {
	cm := int(cadence.Minutes())
	if cm <= 0 {
		cm = 1
	}
	minute := int(ClockTimeOf(t))
	start := (minute / cm) * cm
	end := (start + cm) % MinutesPerDay
	return Bucket{Start: ClockTime(start), End: ClockTime(end)}
}

// Contains reports whether c falls inside the bucket. For a wrapped bucket
// (End numerically at or below Start) the window runs up to midnight and
// resumes at 00:00.
func (b Bucket) Contains(c ClockTime) bool {
	if b.End > b.Start {
		return c >= b.Start && c < b.End
	}
	return c >= b.Start || c < b.End
}

func (b Bucket) String() string {
	return fmt.Sprintf("[%s, %s)", b.Start, b.End)
}
