package calendar

import (
	"errors"
	"fmt"
	"time"
)

// ErrConflictingFlags is returned when more than one day-of-week selection
// flag is supplied for the same averaging run.
var ErrConflictingFlags = errors.New("conflicting day-of-week flags")

// DayPolicy selects which days of the week count toward a temporal average.
type DayPolicy int

const (
	AllDays DayPolicy = iota
	WeekendOnly
	WeekdayOnly
	// RestrictedWeekend keeps only Sundays, avoiding Saturday's
	// edge-of-week contamination in weekend/weekday comparisons.
	RestrictedWeekend
	// RestrictedWeekday keeps only Tuesday through Friday.
	RestrictedWeekday
)

func (p DayPolicy) String() string {
	switch p {
	case AllDays:
		return "all"
	case WeekendOnly:
		return "weekend"
	case WeekdayOnly:
		return "weekday"
	case RestrictedWeekend:
		return "restricted_weekend"
	case RestrictedWeekday:
		return "restricted_weekday"
	}
	return fmt.Sprintf("DayPolicy(%d)", int(p))
}

// ExclusionMask marks weekdays excluded from averaging, indexed Sunday..Saturday.
type ExclusionMask [7]bool

// Mask returns the weekday exclusion mask for the policy.
func (p DayPolicy) Mask() ExclusionMask {
	switch p {
	case WeekendOnly:
		return ExclusionMask{false, true, true, true, true, true, false}
	case WeekdayOnly:
		return ExclusionMask{true, false, false, false, false, false, true}
	case RestrictedWeekend:
		return ExclusionMask{false, true, true, true, true, true, true}
	case RestrictedWeekday:
		return ExclusionMask{true, true, false, false, false, false, true}
	}
	return ExclusionMask{}
}

// ParseFlags translates the day-of-week/holiday tokens of an averaging
// request into a policy and a holiday-exclusion toggle. Supplying more than
// one day-selection token is a configuration error.
func ParseFlags(flags []string) (DayPolicy, bool, error) {
	policy := AllDays
	policySet := false
	excludeHolidays := false
	for _, f := range flags {
		var p DayPolicy
		switch f {
		case "weekend":
			p = WeekendOnly
		case "weekday":
			p = WeekdayOnly
		case "restricted_weekend":
			p = RestrictedWeekend
		case "restricted_weekday":
			p = RestrictedWeekday
		case "holidays":
			excludeHolidays = true
			continue
		default:
			return AllDays, false, fmt.Errorf("unknown day-of-week flag %q", f)
		}
		if policySet {
			return AllDays, false, fmt.Errorf("%w: %q and %q", ErrConflictingFlags, policy, p)
		}
		policy = p
		policySet = true
	}
	return policy, excludeHolidays, nil
}

// BusinessDay reports whether the date counts toward the average: it must
// not fall on a masked weekday and, when excludeHolidays is set, must not be
// a recognized holiday.
func BusinessDay(date time.Time, mask ExclusionMask, excludeHolidays bool, cal Calendar) bool {
	if mask[int(date.Weekday())] {
		return false
	}
	if excludeHolidays && cal != nil && cal.IsHoliday(date) {
		return false
	}
	return true
}
