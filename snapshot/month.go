package snapshot

import (
	"fmt"
	"time"
)

// PreviousMonth returns the calendar month before (year, month).
func PreviousMonth(year, month int) (int, int) {
	if month == 1 {
		return year - 1, 12
	}
	return year, month - 1
}

// FormatMonth renders a (year, month) pair as YYYY-MM.
func FormatMonth(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// DataMonthFor returns the year and month GLAM Tools should be queried
// for at time t: the previous calendar month, since the current month's
// view counts are still accumulating.
func DataMonthFor(t time.Time) (int, int) {
	t = t.UTC()
	return PreviousMonth(t.Year(), int(t.Month()))
}
