package recurrence_test

import (
	"testing"
	"time"

	"planner/internal/recurrence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextDate_Daily(t *testing.T) {
	tests := []struct {
		name string
		base time.Time
		days int
		want time.Time
	}{
		{
			name: "every day advances one day",
			base: date(2024, time.March, 1),
			days: recurrence.EveryDay,
			want: date(2024, time.March, 2),
		},
		{
			name: "skips unset weekdays",
			// 2024-03-01 is a Friday; mask allows Mon+Wed only.
			base: date(2024, time.March, 1),
			days: recurrence.MaskFor(1) | recurrence.MaskFor(3),
			want: date(2024, time.March, 4),
		},
		{
			name: "same single weekday wraps a full week",
			// 2024-03-04 is a Monday; mask allows Monday only.
			base: date(2024, time.March, 4),
			days: recurrence.MaskFor(1),
			want: date(2024, time.March, 11),
		},
		{
			name: "zero mask treated as every day",
			base: date(2024, time.March, 1),
			days: 0,
			want: date(2024, time.March, 2),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := recurrence.NextDate(tt.base, recurrence.Spec{
				Enabled: true,
				Pattern: recurrence.Daily,
				Days:    tt.days,
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextDate_Daily_FirstMatchingDay(t *testing.T) {
	// The returned date always carries a set mask bit and no earlier date
	// after base does.
	for mask := 1; mask <= recurrence.EveryDay; mask++ {
		base := date(2024, time.February, 26) // Monday
		for offset := 0; offset < 7; offset++ {
			b := base.AddDate(0, 0, offset)
			got := recurrence.NextDate(b, recurrence.Spec{Enabled: true, Pattern: recurrence.Daily, Days: mask})

			require.True(t, got.After(b), "mask %d base %s", mask, b)
			assert.True(t, recurrence.MaskHas(mask, recurrence.Weekday(got)), "mask %d got %s", mask, got)
			for d := b.AddDate(0, 0, 1); d.Before(got); d = d.AddDate(0, 0, 1) {
				assert.False(t, recurrence.MaskHas(mask, recurrence.Weekday(d)),
					"mask %d: %s matches before %s", mask, d, got)
			}
		}
	}
}

func TestNextDate_Weekly(t *testing.T) {
	// 2024-03-06 is a Wednesday.
	wednesday := date(2024, time.March, 6)

	tests := []struct {
		name string
		base time.Time
		spec recurrence.Spec
		want time.Time
	}{
		{
			name: "same weekday lands a full week later",
			base: wednesday,
			spec: recurrence.Spec{Enabled: true, Pattern: recurrence.Weekly, WeeklyDay: 3},
			want: date(2024, time.March, 13),
		},
		{
			name: "later weekday in same week",
			base: wednesday,
			spec: recurrence.Spec{Enabled: true, Pattern: recurrence.Weekly, WeeklyDay: 5},
			want: date(2024, time.March, 8),
		},
		{
			name: "earlier weekday wraps to next week",
			base: wednesday,
			spec: recurrence.Spec{Enabled: true, Pattern: recurrence.Weekly, WeeklyDay: 1},
			want: date(2024, time.March, 11),
		},
		{
			name: "target from single-bit mask",
			base: wednesday,
			spec: recurrence.Spec{Enabled: true, Pattern: recurrence.Weekly, Days: recurrence.MaskFor(6)},
			want: date(2024, time.March, 9),
		},
		{
			name: "no target falls back to base weekday",
			base: wednesday,
			spec: recurrence.Spec{Enabled: true, Pattern: recurrence.Weekly},
			want: date(2024, time.March, 13),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := recurrence.NextDate(tt.base, tt.spec)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextDate_Weekly_WithinSevenDays(t *testing.T) {
	base := date(2024, time.March, 4)
	for target := 1; target <= 7; target++ {
		for offset := 0; offset < 7; offset++ {
			b := base.AddDate(0, 0, offset)
			got := recurrence.NextDate(b, recurrence.Spec{Enabled: true, Pattern: recurrence.Weekly, WeeklyDay: target})

			assert.Equal(t, target, recurrence.Weekday(got))
			gap := int(got.Sub(b).Hours() / 24)
			assert.GreaterOrEqual(t, gap, 1)
			assert.LessOrEqual(t, gap, 7)
		}
	}
}

func TestNextDate_Monthly(t *testing.T) {
	tests := []struct {
		name string
		base time.Time
		day  int
		want time.Time
	}{
		{
			name: "plain next month",
			base: date(2024, time.March, 10),
			day:  10,
			want: date(2024, time.April, 10),
		},
		{
			name: "day 31 clamps to leap February",
			base: date(2024, time.January, 31),
			day:  31,
			want: date(2024, time.February, 29),
		},
		{
			name: "day 31 clamps to non-leap February",
			base: date(2023, time.January, 31),
			day:  31,
			want: date(2023, time.February, 28),
		},
		{
			name: "day 31 clamps to 30-day month",
			base: date(2024, time.March, 31),
			day:  31,
			want: date(2024, time.April, 30),
		},
		{
			name: "december wraps the year",
			base: date(2024, time.December, 15),
			day:  15,
			want: date(2025, time.January, 15),
		},
		{
			name: "no target uses base day of month",
			base: date(2024, time.May, 7),
			day:  0,
			want: date(2024, time.June, 7),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := recurrence.NextDate(tt.base, recurrence.Spec{
				Enabled:    true,
				Pattern:    recurrence.Monthly,
				MonthlyDay: tt.day,
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextDate_AlwaysAfterBase(t *testing.T) {
	specs := []recurrence.Spec{
		{Enabled: true, Pattern: recurrence.Daily, Days: recurrence.EveryDay},
		{Enabled: true, Pattern: recurrence.Daily, Days: recurrence.MaskFor(7)},
		{Enabled: true, Pattern: recurrence.Weekly, WeeklyDay: 1},
		{Enabled: true, Pattern: recurrence.Weekly, WeeklyDay: 7},
		{Enabled: true, Pattern: recurrence.Monthly, MonthlyDay: 1},
		{Enabled: true, Pattern: recurrence.Monthly, MonthlyDay: 31},
		{Enabled: true, Pattern: "bogus"}, // safety net path
	}

	base := date(2023, time.December, 20)
	for _, spec := range specs {
		for offset := 0; offset < 60; offset++ {
			b := base.AddDate(0, 0, offset)
			got := recurrence.NextDate(b, spec)
			assert.True(t, got.After(b), "spec %+v base %s got %s", spec, b, got)
		}
	}
}

func TestNextDate_StripsTimeOfDay(t *testing.T) {
	// A base carrying a time component compares on its civil date only.
	base := time.Date(2024, time.March, 1, 23, 59, 59, 0, time.UTC)

	got := recurrence.NextDate(base, recurrence.Spec{
		Enabled: true,
		Pattern: recurrence.Daily,
		Days:    recurrence.EveryDay,
	})

	assert.Equal(t, date(2024, time.March, 2), got)
}
