package recurrence

import "time"

// NextDate computes the next occurrence date for spec strictly after the
// civil date of base. It is deterministic and side-effect free.
func NextDate(base time.Time, spec Spec) time.Time {
	day := CivilDate(base)

	var next time.Time
	switch spec.Pattern {
	case Daily:
		mask := spec.Days
		if mask < 1 || mask > EveryDay {
			mask = EveryDay
		}
		d := day.AddDate(0, 0, 1)
		for !MaskHas(mask, Weekday(d)) {
			d = d.AddDate(0, 0, 1)
		}
		next = d

	case Weekly:
		target := spec.WeeklyDay
		if target < 1 || target > 7 {
			if d := DayOfMask(spec.Days); d != 0 {
				target = d
			} else {
				target = Weekday(day)
			}
		}
		diff := target - Weekday(day)
		if diff <= 0 {
			diff += 7
		}
		next = day.AddDate(0, 0, diff)

	case Monthly:
		target := spec.MonthlyDay
		if target < 1 || target > 31 {
			target = day.Day()
		}
		// First of the following month; time.Date normalizes month 13.
		first := time.Date(day.Year(), day.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		last := daysInMonth(first.Year(), first.Month())
		if target > last {
			target = last
		}
		next = time.Date(first.Year(), first.Month(), target, 0, 0, 0, 0, time.UTC)
	}

	// Pathological input falls back to the following day so the result is
	// always strictly after base.
	if next.IsZero() || !next.After(day) {
		next = day.AddDate(0, 0, 1)
	}
	return next
}

// daysInMonth returns the number of days in the given month. Day 0 of the
// following month is the last day of this one.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
