package reserves

import "time"

// SeniorityYears walks the calendar months between start and cutoff (both inclusive) and sums
// the worked fraction of each month. Partial months count exact days over the month length,
// which covers the start month, the termination month and both falling in one month.
func SeniorityYears(start, cutoff time.Time) float64 {
	start = day(start)
	cutoff = day(cutoff)
	if cutoff.Before(start) {
		return 0
	}
	var months float64
	cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(cutoff) {
		monthEnd := cursor.AddDate(0, 1, -1)
		first := cursor
		if start.After(first) {
			first = start
		}
		last := monthEnd
		if cutoff.Before(last) {
			last = cutoff
		}
		worked := last.Sub(first).Hours()/24 + 1
		months += worked / float64(monthEnd.Day())
		cursor = cursor.AddDate(0, 1, 0)
	}
	return months / 12
}

// YearEnd returns December 31st of year.
func YearEnd(year int) time.Time {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
