package fx

import (
	"sort"
	"time"
)

// Interpolate resolves the rate on date from quotes. An exact quote wins; otherwise the
// nearest quotes on each side are interpolated linearly by calendar day. With quotes on one
// side only, the nearest one is used. It returns false when quotes is empty.
func Interpolate(quotes []Quote, date time.Time) (float64, bool) {
	if len(quotes) == 0 {
		return 0, false
	}
	target := dateOnly(date)
	sorted := make([]Quote, len(quotes))
	copy(sorted, quotes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var before, after *Quote
	for i := range sorted {
		q := &sorted[i]
		qd := dateOnly(q.Date)
		switch {
		case qd.Equal(target):
			return q.Rate, true
		case qd.Before(target):
			before = q
		case after == nil:
			after = q
		}
	}
	switch {
	case before != nil && after != nil:
		span := dateOnly(after.Date).Sub(dateOnly(before.Date)).Hours() / 24
		elapsed := target.Sub(dateOnly(before.Date)).Hours() / 24
		return before.Rate + (after.Rate-before.Rate)*elapsed/span, true
	case before != nil:
		return before.Rate, true
	case after != nil:
		return after.Rate, true
	}
	return 0, false
}
