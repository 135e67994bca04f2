package utils

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout is the ISO date layout used for all date inputs.
const DateLayout = "2006-01-02"

// SortDates sorts a slice of time.Time in ascending order.
func SortDates(dates []time.Time) {
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})
}

// StrictlyIncreasing reports whether dates are sorted with no repeats.
func StrictlyIncreasing(dates []time.Time) bool {
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return false
		}
	}
	return true
}

// SearchDate returns the index of the first date >= target.
// Returns len(dates) if all dates are before target.
func SearchDate(dates []time.Time, target time.Time) int {
	return sort.Search(len(dates), func(i int) bool {
		return !dates[i].Before(target)
	})
}

// IndexOfDate returns the index of the date equal to target (same calendar day),
// or -1 when absent. dates must be sorted.
func IndexOfDate(dates []time.Time, target time.Time) int {
	i := SearchDate(dates, target)
	if i < len(dates) && SameDay(dates[i], target) {
		return i
	}
	if i > 0 && SameDay(dates[i-1], target) {
		return i - 1
	}
	return -1
}

// SameDay compares calendar dates, ignoring the time of day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// AdjacentIndices returns the indices of the two dates of a sorted slice
// that bracket target, or the nearest boundary pair outside the range.
func AdjacentIndices(target time.Time, dates []time.Time) (int, int) {
	if len(dates) < 2 {
		panic("AdjacentIndices: need at least 2 dates")
	}

	i := SearchDate(dates, target)
	if i <= 0 {
		return 0, 1
	}
	if i >= len(dates) {
		return len(dates) - 2, len(dates) - 1
	}
	return i - 1, i
}

// ParseDate converts YYYY-MM-DD to time.Time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("ParseDate: %w", err)
	}
	return t, nil
}

// Days returns the number of calendar days between two dates.
func Days(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24
}

// AddMonth behaves like Excel's EDATE, avoiding Go's month normalization surprises.
func AddMonth(t time.Time, months int) time.Time {
	target := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	if target.Month() == t.AddDate(0, months, 0).Month() {
		return t.AddDate(0, months, 0)
	}

	d := t.AddDate(0, months, 0)
	origMonth := d.Month()
	for d.Month() == origMonth {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
