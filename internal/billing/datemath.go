// Package billing holds the pure rules of the hostel's money flow: calendar
// arithmetic, rent proration, invoice numbering, field diffs and the ledger
// fold. Nothing here touches the store or the network.
package billing

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used on the wire and in the store.
const DateLayout = "2006-01-02"

// FarFuture is the end date of a stay that has no planned move-out.
var FarFuture = time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC)

// Period identifies one billing month.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the billing month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Start is the first day of the period.
func (p Period) Start() time.Time { return MonthStart(p.Year, p.Month) }

// End is the last calendar day of the period.
func (p Period) End() time.Time { return MonthEnd(p.Year, p.Month) }

// Next returns the following month.
func (p Period) Next() Period { return p.Add(1) }

// Prev returns the preceding month.
func (p Period) Prev() Period { return p.Add(-1) }

// Add shifts the period by delta months, rolling the year as needed.
func (p Period) Add(delta int) Period {
	y, m := AddMonths(p.Year, p.Month, delta)
	return Period{Year: y, Month: m}
}

// Contains reports whether the calendar date d falls inside the period.
func (p Period) Contains(d time.Time) bool {
	return SameMonth(d, p.Year, p.Month)
}

// Before orders periods chronologically.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// Valid reports whether the month is in range.
func (p Period) Valid() bool {
	return p.Month >= time.January && p.Month <= time.December && p.Year > 0
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// MonthStart returns midnight UTC on the first day of the month.
func MonthStart(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns midnight UTC on the last day of the month.
func MonthEnd(year int, month time.Month) time.Time {
	return MonthStart(year, month).AddDate(0, 1, -1)
}

// AddMonths moves (year, month) by delta months.
func AddMonths(year int, month time.Month, delta int) (int, time.Month) {
	idx := year*12 + int(month) - 1 + delta
	y := idx / 12
	m := idx % 12
	if m < 0 {
		m += 12
		y--
	}
	return y, time.Month(m + 1)
}

// DaysInclusive counts calendar days from..to with both ends included.
// It returns 0 when to is before from.
func DaysInclusive(from, to time.Time) int {
	from, to = Truncate(from), Truncate(to)
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours()/24) + 1
}

// SameMonth reports whether d falls in the given month.
func SameMonth(d time.Time, year int, month time.Month) bool {
	return d.Year() == year && d.Month() == month
}

// Truncate drops the time of day, keeping the calendar date in UTC.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return t, nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
