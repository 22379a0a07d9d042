package utils

import "time"

const day = 24 * time.Hour

// DaysOverdue returns how many days, rounded up, now is past endDate.
// A result <= 0 means the return date has not been crossed yet.
func DaysOverdue(endDate, now time.Time) int {
	return ceilDays(now.Sub(endDate))
}

// DaysUntil returns how many days, rounded up, remain until endDate.
func DaysUntil(endDate, now time.Time) int {
	return ceilDays(endDate.Sub(now))
}

// ceilDays rounds a duration up to whole days. Integer division truncates
// toward zero, so only positive remainders need the extra day.
func ceilDays(d time.Duration) int {
	days := d / day
	if d%day > 0 {
		days++
	}
	return int(days)
}

// CalendarDay truncates t to midnight in its own location.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
