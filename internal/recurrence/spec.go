// Package recurrence contains the pure core of the occurrence engine:
// normalizing a recurrence specification and computing the next calendar
// occurrence for a pattern. Everything here works on civil dates (UTC
// midnight, no time-of-day) and has no side effects.
package recurrence

import (
	"fmt"
	"time"
)

// Supported repeat patterns.
const (
	Daily   = "daily"
	Weekly  = "weekly"
	Monthly = "monthly"
)

// EveryDay is the weekday bitmask with all seven days set.
const EveryDay = 127

// ValidationError reports which recurrence field is malformed and the
// acceptable range or enum for it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Spec is a fully normalized recurrence specification. The zero value is
// the disabled spec. Exactly one of the pattern-specific fields is set for
// an enabled spec, except daily where Days carries the weekday mask.
type Spec struct {
	Enabled    bool
	Pattern    string
	Days       int // weekday bitmask, bit (w-1) for ISO weekday w; daily only
	WeeklyDay  int // 1..7; weekly only
	MonthlyDay int // 1..31; monthly only
}

// Input is a raw recurrence specification as supplied by a caller. Nil
// pointer fields are absent and get defaulted from Reference, the task's
// start date.
type Input struct {
	Enabled    bool
	Pattern    *string
	Days       *int
	WeeklyDay  *int
	MonthlyDay *int
	Reference  time.Time
}

// Normalize validates in and fills defaults, producing a Spec that satisfies
// the engine's invariants, or a *ValidationError naming the violated field.
// A disabled input yields the zero Spec regardless of the other fields.
func Normalize(in Input) (Spec, error) {
	if !in.Enabled {
		return Spec{}, nil
	}

	pattern := ""
	if in.Pattern != nil {
		pattern = *in.Pattern
	}

	switch pattern {
	case Daily:
		days := EveryDay
		if in.Days != nil {
			days = *in.Days
		}
		if days < 1 || days > EveryDay {
			return Spec{}, &ValidationError{Field: "repeat_days", Reason: "must be a weekday mask between 1 and 127"}
		}
		return Spec{Enabled: true, Pattern: Daily, Days: days}, nil

	case Weekly:
		// Resolution priority: explicit day, single-bit mask, weekday of
		// the reference date.
		day := 0
		switch {
		case in.WeeklyDay != nil:
			day = *in.WeeklyDay
		case in.Days != nil && DayOfMask(*in.Days) != 0:
			day = DayOfMask(*in.Days)
		default:
			day = Weekday(in.Reference)
		}
		if day < 1 || day > 7 {
			return Spec{}, &ValidationError{Field: "repeat_weekly_day", Reason: "must be a weekday between 1 and 7"}
		}
		return Spec{Enabled: true, Pattern: Weekly, Days: MaskFor(day), WeeklyDay: day}, nil

	case Monthly:
		day := in.Reference.Day()
		if in.MonthlyDay != nil {
			day = *in.MonthlyDay
		}
		if day < 1 || day > 31 {
			return Spec{}, &ValidationError{Field: "repeat_monthly_day", Reason: "must be a day of month between 1 and 31"}
		}
		return Spec{Enabled: true, Pattern: Monthly, MonthlyDay: day}, nil

	default:
		return Spec{}, &ValidationError{Field: "repeat_pattern", Reason: `must be one of "daily", "weekly", "monthly"`}
	}
}

// MaskFor returns the single-bit weekday mask for ISO weekday day (1..7).
func MaskFor(day int) int {
	return 1 << (day - 1)
}

// MaskHas reports whether the mask bit for ISO weekday day is set.
func MaskHas(mask, day int) bool {
	return mask&MaskFor(day) != 0
}

// DayOfMask returns the ISO weekday of a single-bit mask, or 0 when the
// mask does not have exactly one bit set.
func DayOfMask(mask int) int {
	if mask <= 0 || mask > EveryDay || mask&(mask-1) != 0 {
		return 0
	}
	day := 1
	for mask > 1 {
		mask >>= 1
		day++
	}
	return day
}

// Weekday returns the ISO weekday of t: Monday = 1 .. Sunday = 7.
func Weekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// CivilDate strips the time-of-day and timezone from t, returning the
// calendar date at UTC midnight. Every date that reaches a comparison or
// the calculator goes through here first.
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
