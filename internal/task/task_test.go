package task

import (
	"testing"

	"mutabaahAPI/internal/dates"
)

func TestNextDueDate(t *testing.T) {
	cases := []struct {
		due  dates.DayKey
		rec  Recurrence
		want dates.DayKey
	}{
		{"2024-03-10", RecurrenceDaily, "2024-03-11"},
		{"2024-02-28", RecurrenceDaily, "2024-02-29"},
		{"2024-03-10", RecurrenceWeekly, "2024-03-17"},
		{"2024-12-28", RecurrenceWeekly, "2025-01-04"},
		{"2024-03-10", RecurrenceMonthly, "2024-04-10"},
		{"2024-01-31", RecurrenceMonthly, "2024-03-02"},
		{"2024-03-10", RecurrenceNone, "2024-03-10"},
	}
	for _, c := range cases {
		if got := NextDueDate(c.due, c.rec); got != c.want {
			t.Errorf("NextDueDate(%s, %s) = %s, want %s", c.due, c.rec, got, c.want)
		}
	}
}

func TestSuccessorForRecurringTask(t *testing.T) {
	orig := TaskRecord{
		Title:      "weekly review",
		DueDate:    "2024-03-10",
		DueTime:    "19:30",
		Recurrence: RecurrenceWeekly,
		Priority:   2,
	}

	next, ok := orig.Successor()
	if !ok {
		t.Fatal("weekly task must spawn a successor")
	}
	if next.DueDate != dates.DayKey("2024-03-17") {
		t.Errorf("successor due date: got %s, want 2024-03-17", next.DueDate)
	}
	if next.Title != orig.Title || next.Recurrence != orig.Recurrence || next.Priority != orig.Priority {
		t.Error("successor must carry title, recurrence and priority over")
	}
	if next.DueTime != orig.DueTime {
		t.Error("successor must keep the due time")
	}
	if next.Completed {
		t.Error("successor starts incomplete")
	}
	if next.ID == orig.ID {
		t.Error("successor needs its own id")
	}
}

func TestSuccessorForOneOffTask(t *testing.T) {
	orig := TaskRecord{Title: "renew passport", DueDate: "2024-03-10", Recurrence: RecurrenceNone}
	if _, ok := orig.Successor(); ok {
		t.Error("one-off task must not spawn a successor")
	}
}
