package quran

import (
	"mutabaahAPI/internal/dates"
)

// The mushaf layout the app tracks against: 604 pages, 30 ajza, 60 ahzab.
const (
	TotalPages = 604
	TotalJuz   = 30
	TotalHizb  = 60
)

// QuranProgress follows the same set-based mutation pattern as habit
// completion, without goal or streak logic: memorized pages map to the day
// they were memorized, review units accumulate a history of review days.
type QuranProgress struct {
	MemorizedPages map[int]dates.DayKey   `json:"memorized_pages"`
	JuzReviews     map[int][]dates.DayKey `json:"juz_reviews"`
	HizbReviews    map[int][]dates.DayKey `json:"hizb_reviews"`
}

func NewProgress() *QuranProgress {
	return &QuranProgress{
		MemorizedPages: map[int]dates.DayKey{},
		JuzReviews:     map[int][]dates.DayKey{},
		HizbReviews:    map[int][]dates.DayKey{},
	}
}

func (p *QuranProgress) MarkPageMemorized(page int, day dates.DayKey) bool {
	if page < 1 || page > TotalPages {
		return false
	}
	p.MemorizedPages[page] = day
	return true
}

func (p *QuranProgress) UnmarkPage(page int) {
	delete(p.MemorizedPages, page)
}

func (p *QuranProgress) RecordJuzReview(juz int, day dates.DayKey) bool {
	if juz < 1 || juz > TotalJuz {
		return false
	}
	p.JuzReviews[juz] = append(p.JuzReviews[juz], day)
	return true
}

func (p *QuranProgress) RecordHizbReview(hizb int, day dates.DayKey) bool {
	if hizb < 1 || hizb > TotalHizb {
		return false
	}
	p.HizbReviews[hizb] = append(p.HizbReviews[hizb], day)
	return true
}
