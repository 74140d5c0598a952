package core

import (
	"fmt"
	"time"
)

const (
	MinYear = 1900
	MaxYear = 2100
)

// DateRange is the half-open interval [Start, End).
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// LastDay is the calendar day holding the last instant of the range.
func (r DateRange) LastDay() Date {
	last := r.End.AddDate(0, 0, -1)
	return NewDate(last.Year(), int(last.Month()), last.Day())
}

func (r DateRange) FirstDay() Date {
	return NewDate(r.Start.Year(), int(r.Start.Month()), r.Start.Day())
}

// Days returns one single-day range per calendar day in r.
func (r DateRange) Days() []DateRange {
	var days []DateRange
	for d := r.Start; d.Before(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, DateRange{Start: d, End: d.AddDate(0, 0, 1)})
	}
	return days
}

// Windows splits r into consecutive windows of n days starting at r.Start;
// the last window is truncated to r.End.
func (r DateRange) Windows(n int) []DateRange {
	var out []DateRange
	for s := r.Start; s.Before(r.End); s = s.AddDate(0, 0, n) {
		e := s.AddDate(0, 0, n)
		if e.After(r.End) {
			e = r.End
		}
		out = append(out, DateRange{Start: s, End: e})
	}
	return out
}

func ValidateYear(year int) error {
	if year < MinYear || year > MaxYear {
		return fmt.Errorf("%w: year %d outside %d-%d", ErrInvalidPeriod, year, MinYear, MaxYear)
	}
	return nil
}

func YearRange(year int) (DateRange, error) {
	if err := ValidateYear(year); err != nil {
		return DateRange{}, err
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return DateRange{Start: start, End: start.AddDate(1, 0, 0)}, nil
}

func MonthRange(year, month int) (DateRange, error) {
	if err := ValidateYear(year); err != nil {
		return DateRange{}, err
	}
	if month < 1 || month > 12 {
		return DateRange{}, fmt.Errorf("%w: month %d", ErrInvalidPeriod, month)
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return DateRange{Start: start, End: start.AddDate(0, 1, 0)}, nil
}

// ISOWeekRange resolves an ISO-8601 week (Monday start, week 1 holds Jan 4)
// to its Monday..Sunday range. Week 53 is rejected for years that have 52.
func ISOWeekRange(year, week int) (DateRange, error) {
	if err := ValidateYear(year); err != nil {
		return DateRange{}, err
	}
	if week < 1 || week > 53 {
		return DateRange{}, fmt.Errorf("%w: week %d", ErrInvalidPeriod, week)
	}
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	monday := jan4.AddDate(0, 0, -((int(jan4.Weekday()) + 6) % 7))
	start := monday.AddDate(0, 0, (week-1)*7)
	if y, w := start.ISOWeek(); y != year || w != week {
		return DateRange{}, fmt.Errorf("%w: year %d has no week %d", ErrInvalidPeriod, year, week)
	}
	return DateRange{Start: start, End: start.AddDate(0, 0, 7)}, nil
}

// DayRange is the calendar day holding d.
func DayRange(d Date) DateRange {
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return DateRange{Start: start, End: start.AddDate(0, 0, 1)}
}
