package datetime

import (
	"fmt"
	"time"

	"github.com/iwvelando/curve-factors/pkg/constants"
)

// MonthID returns the yyyymm key of t, e.g. 202401 for any day of January 2024.
// Keys sort in calendar order and are unique per year-month.
func MonthID(t time.Time) int {
	return t.Year()*constants.MonthIDYearFactor + int(t.Month())
}

// MonthIDToDate returns the first day of the month identified by id.
func MonthIDToDate(id int) (time.Time, error) {
	year := id / constants.MonthIDYearFactor
	month := id % constants.MonthIDYearFactor
	if month < 1 || month > constants.MonthsPerYear {
		return time.Time{}, fmt.Errorf("invalid month id %d: month %d out of range", id, month)
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths moves t by n calendar months. When the day does not exist in the
// target month it is clipped to the month's last day (Jan 31 + 1 month is
// Feb 28 or 29), unlike time.AddDate which rolls over into the next month.
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := DaysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// OffsetMonthID returns the month id n months after id.
func OffsetMonthID(id, n int) (int, error) {
	t, err := MonthIDToDate(id)
	if err != nil {
		return id, err
	}
	return MonthID(AddMonths(t, n)), nil
}
