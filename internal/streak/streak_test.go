package streak

import (
	"testing"

	"mutabaahAPI/internal/dates"
)

func days(keys ...string) []dates.DayKey {
	out := make([]dates.DayKey, 0, len(keys))
	for _, k := range keys {
		out = append(out, dates.DayKey(k))
	}
	return out
}

func TestComputeEmpty(t *testing.T) {
	if got := Compute(nil, "2024-01-05"); got != 0 {
		t.Errorf("empty set: got %d, want 0", got)
	}
}

func TestComputeRunEndingToday(t *testing.T) {
	set := days("2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05")
	if got := Compute(set, "2024-01-05"); got != 5 {
		t.Errorf("run ending today: got %d, want 5", got)
	}
}

func TestComputeYesterdayGrace(t *testing.T) {
	set := days("2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05")
	if got := Compute(set, "2024-01-06"); got != 5 {
		t.Errorf("yesterday grace: got %d, want 5", got)
	}
}

func TestComputeFullDaySkippedResets(t *testing.T) {
	set := days("2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05")
	if got := Compute(set, "2024-01-07"); got != 0 {
		t.Errorf("skipped day: got %d, want 0", got)
	}
}

func TestComputeGapBreaksContinuity(t *testing.T) {
	set := days("2024-01-01", "2024-01-03")
	if got := Compute(set, "2024-01-03"); got != 1 {
		t.Errorf("gap on 01-02: got %d, want 1", got)
	}
}

func TestComputeSingleDayToday(t *testing.T) {
	if got := Compute(days("2024-01-05"), "2024-01-05"); got != 1 {
		t.Errorf("single today: got %d, want 1", got)
	}
}

func TestComputeUnsortedInput(t *testing.T) {
	// The store keeps dates sorted, but the engine must not depend on it.
	set := days("2024-01-03", "2024-01-01", "2024-01-02")
	if got := Compute(set, "2024-01-03"); got != 3 {
		t.Errorf("unsorted input: got %d, want 3", got)
	}
}

func TestComputeMonthBoundary(t *testing.T) {
	set := days("2024-02-28", "2024-02-29", "2024-03-01")
	if got := Compute(set, "2024-03-01"); got != 3 {
		t.Errorf("leap month boundary: got %d, want 3", got)
	}
}

func TestComputeOldHistoryIgnored(t *testing.T) {
	// A long-dead run far in the past contributes nothing.
	set := days("2023-06-01", "2023-06-02", "2023-06-03", "2024-01-05")
	if got := Compute(set, "2024-01-05"); got != 1 {
		t.Errorf("old history: got %d, want 1", got)
	}
}
