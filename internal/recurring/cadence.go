package recurring

import "time"

// ComputeNextExecution returns the due instant one cadence period after the
// calendar day of from. The time of day is discarded, so every call on the
// same day yields the same answer.
//
// Unknown frequencies use the monthly offset.
func ComputeNextExecution(f Frequency, from time.Time) time.Time {
	next, err := NextExecution(f, from)
	if err != nil {
		return addMonths(startOfDay(from), 1)
	}
	return next
}

// NextExecution is ComputeNextExecution that rejects unknown frequencies.
func NextExecution(f Frequency, from time.Time) (time.Time, error) {
	day := startOfDay(from)
	switch f {
	case Weekly:
		return day.AddDate(0, 0, 7), nil
	case Biweekly:
		return day.AddDate(0, 0, 14), nil
	case Monthly:
		return addMonths(day, 1), nil
	case Quarterly:
		return addMonths(day, 3), nil
	case Biannual:
		return addMonths(day, 6), nil
	default:
		return time.Time{}, ErrUnknownFrequency
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// addMonths moves t by n calendar months, clamping the day to the last day
// of the target month (Jan 31 + 1 month = Feb 28/29). time.AddDate would
// overflow into the following month instead.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(y int, m time.Month, loc *time.Location) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}
