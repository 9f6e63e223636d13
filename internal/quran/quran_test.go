package quran

import (
	"testing"

	"mutabaahAPI/internal/dates"
)

func TestMarkAndUnmarkPage(t *testing.T) {
	p := NewProgress()
	day := dates.DayKey("2024-03-10")

	if !p.MarkPageMemorized(1, day) {
		t.Error("page 1 should be markable")
	}
	if !p.MarkPageMemorized(TotalPages, day) {
		t.Errorf("page %d should be markable", TotalPages)
	}
	if p.MarkPageMemorized(0, day) {
		t.Error("page 0 is out of range")
	}
	if p.MarkPageMemorized(TotalPages+1, day) {
		t.Errorf("page %d is out of range", TotalPages+1)
	}
	if len(p.MemorizedPages) != 2 {
		t.Fatalf("expected 2 memorized pages, got %d", len(p.MemorizedPages))
	}

	// Re-marking overwrites the day rather than duplicating.
	later := dates.DayKey("2024-04-01")
	p.MarkPageMemorized(1, later)
	if p.MemorizedPages[1] != later {
		t.Errorf("expected page 1 memorized on %s, got %s", later, p.MemorizedPages[1])
	}

	p.UnmarkPage(1)
	if _, ok := p.MemorizedPages[1]; ok {
		t.Error("page 1 should be unmarked")
	}
}

func TestReviewRanges(t *testing.T) {
	p := NewProgress()
	day := dates.DayKey("2024-03-10")

	if !p.RecordJuzReview(30, day) {
		t.Error("juz 30 should be recordable")
	}
	if p.RecordJuzReview(31, day) {
		t.Error("juz 31 is out of range")
	}
	if !p.RecordHizbReview(60, day) {
		t.Error("hizb 60 should be recordable")
	}
	if p.RecordHizbReview(0, day) {
		t.Error("hizb 0 is out of range")
	}

	// Repeated reviews accumulate history.
	p.RecordJuzReview(30, day.AddDays(1))
	if got := len(p.JuzReviews[30]); got != 2 {
		t.Errorf("expected 2 reviews of juz 30, got %d", got)
	}
}
