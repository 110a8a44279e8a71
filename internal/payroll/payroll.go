// Package payroll computes the pay breakdown for worked days. It is a pure
// calculation over a day's shift set and a rate table; nothing here touches
// storage or the network.
package payroll

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shiftsync/shiftsync/internal/shifts"
)

// Rates is the pay rate table. Monetary values are in the employer's
// currency; per-hour rates apply to every begun hour in their window.
type Rates struct {
	HourlyBase float64 `yaml:"hourlyBase" json:"hourlyBase"`

	// EarlyMorning applies per hour worked between 04:00 and 07:00.
	EarlyMorning float64 `yaml:"earlyMorning" json:"earlyMorning"`

	// Night applies per hour worked between 22:00 and 04:00.
	Night float64 `yaml:"night" json:"night"`

	// Sunday and Holiday apply per hour worked on such days.
	Sunday  float64 `yaml:"sunday" json:"sunday"`
	Holiday float64 `yaml:"holiday" json:"holiday"`

	// SplitShift is paid once on days with more than one shift.
	SplitShift float64 `yaml:"splitShift" json:"splitShift"`

	// Transport is paid once on any worked day.
	Transport float64 `yaml:"transport" json:"transport"`

	// LunchAllowance is paid when a single shift spans the lunch window
	// (starts at or before 14:00, ends at or after 16:00) and lasts at
	// least six hours. DinnerAllowance works the same over 21:00/23:00.
	LunchAllowance  float64 `yaml:"lunchAllowance" json:"lunchAllowance"`
	DinnerAllowance float64 `yaml:"dinnerAllowance" json:"dinnerAllowance"`
}

// Breakdown is the per-concept pay for one or more days.
type Breakdown struct {
	Hours        float64 `json:"hours"`
	Base         float64 `json:"base"`
	EarlyMorning float64 `json:"earlyMorning"`
	Night        float64 `json:"night"`
	Sunday       float64 `json:"sunday"`
	Holiday      float64 `json:"holiday"`
	SplitShift   float64 `json:"splitShift"`
	Transport    float64 `json:"transport"`
	Lunch        float64 `json:"lunch"`
	Dinner       float64 `json:"dinner"`
	Total        float64 `json:"total"`
}

// Add accumulates another breakdown into this one.
func (b *Breakdown) Add(other Breakdown) {
	b.Hours += other.Hours
	b.Base += other.Base
	b.EarlyMorning += other.EarlyMorning
	b.Night += other.Night
	b.Sunday += other.Sunday
	b.Holiday += other.Holiday
	b.SplitShift += other.SplitShift
	b.Transport += other.Transport
	b.Lunch += other.Lunch
	b.Dinner += other.Dinner
	b.Total += other.Total
}

// ComputeDay calculates the pay for one day's shifts. The day's date decides
// the Sunday plus; isHoliday decides the holiday plus. A free day yields a
// zero breakdown.
func ComputeDay(day time.Time, set shifts.ShiftSet, rates Rates, isHoliday bool) (Breakdown, error) {
	var b Breakdown
	if set.IsFree() {
		return b, nil
	}

	sunday := day.Weekday() == time.Sunday

	for i, shift := range set {
		start, err := parseClock(shift.Start)
		if err != nil {
			return Breakdown{}, fmt.Errorf("shift %d: %w", i, err)
		}
		end, err := parseClock(shift.End)
		if err != nil {
			return Breakdown{}, fmt.Errorf("shift %d: %w", i, err)
		}
		// An end at or before the start means the shift runs past midnight.
		if end <= start {
			end += 24 * 60
		}

		hours := float64(end-start) / 60
		b.Hours += hours
		b.Base += hours * rates.HourlyBase

		// Per-hour pluses accrue for every begun hour.
		for t := start; t < end; t += 60 {
			hour := (t / 60) % 24
			if hour >= 4 && hour < 7 {
				b.EarlyMorning += rates.EarlyMorning
			}
			if hour >= 22 || hour < 4 {
				b.Night += rates.Night
			}
			if sunday {
				b.Sunday += rates.Sunday
			}
			if isHoliday {
				b.Holiday += rates.Holiday
			}
		}

		if i == 0 {
			b.Transport = rates.Transport
			if len(set) > 1 {
				b.SplitShift = rates.SplitShift
			}

			startHour := start / 60
			endHour := end / 60
			if startHour <= 14 && endHour >= 16 && hours >= 6 {
				b.Lunch = rates.LunchAllowance
			}
			if startHour <= 21 && endHour >= 23 && hours >= 6 {
				b.Dinner = rates.DinnerAllowance
			}
		}
	}

	b.Total = b.Base + b.EarlyMorning + b.Night + b.Sunday + b.Holiday +
		b.SplitShift + b.Transport + b.Lunch + b.Dinner
	return b, nil
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h*60 + m, nil
}
