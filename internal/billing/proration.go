package billing

import "time"

// ProrationDivisor is the fixed day count of a billing month used for
// partial-month rent, whatever the real length of the month.
const ProrationDivisor = 30

// Stay is the residency interval of a student, both ends inclusive.
type Stay struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the stay is well ordered.
func (s Stay) Valid() bool {
	return !Truncate(s.End).Before(Truncate(s.Start))
}

// Overlaps reports whether the stay touches the period.
func (s Stay) Overlaps(p Period) bool {
	return Truncate(s.Start).Before(p.Next().Start()) && !Truncate(s.End).Before(p.Start())
}

// ChargeForMonth returns the rent owed for period.
//
// A stay ending inside the month is charged for the days from the 1st to the
// end date; otherwise a stay starting inside the month is charged for the
// days from the start date to the month end. Both are ceil(rent*days/30),
// so an end date on the 31st bills past the monthly rent. A stay starting on
// the 1st pays the plain monthly rent for that month.
func ChargeForMonth(stay Stay, period Period, monthlyRent int64) int64 {
	if monthlyRent <= 0 {
		return 0
	}
	start, end := Truncate(stay.Start), Truncate(stay.End)
	monthStart, monthEnd := period.Start(), period.End()

	if period.Contains(end) {
		return prorate(monthlyRent, DaysInclusive(monthStart, end))
	}
	if period.Contains(start) && !start.Equal(monthStart) {
		return prorate(monthlyRent, DaysInclusive(start, monthEnd))
	}
	return monthlyRent
}

// DepositFor returns the deposit chargeable in period: the full deposit in
// the month the stay starts and nothing otherwise.
func DepositFor(stay Stay, period Period, deposit int64) int64 {
	if deposit <= 0 || !period.Contains(stay.Start) {
		return 0
	}
	return deposit
}

func prorate(rent int64, days int) int64 {
	if days <= 0 {
		return 0
	}
	num := rent * int64(days)
	return (num + ProrationDivisor - 1) / ProrationDivisor
}
