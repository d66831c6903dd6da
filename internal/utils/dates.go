// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "time"

// DayBounds returns the [start, end) instants of the calendar day that
// contains t in loc. Days are not assumed to be 24h long.
func DayBounds(t time.Time, loc *time.Location) (start, end time.Time) {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, loc)
	end = time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	return start, end
}

// AddMonths steps (year, month) by n calendar months. The arithmetic goes
// through the first of the month so that variable month lengths never skip
// or repeat a month.
func AddMonths(year int, month time.Month, n int) (int, time.Month) {
	t := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), t.Month()
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MondayIndex maps a weekday to its column in a Monday-first week.
func MondayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}

// MonthAfter reports whether (y1, m1) is strictly later than (y2, m2).
func MonthAfter(y1 int, m1 time.Month, y2 int, m2 time.Month) bool {
	if y1 != y2 {
		return y1 > y2
	}
	return m1 > m2
}
