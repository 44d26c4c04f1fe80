package housing

import (
	"fmt"
	"strings"
	"time"
)

// Date is a calendar date without a time-of-day component.
type Date struct {
	value time.Time
}

// NewDate builds a Date from its calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{value: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(raw string) (Date, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Date{}, fmt.Errorf("%w: empty value", ErrInvalidDate)
	}
	parsed, err := time.Parse(dateLayout, trimmed)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q is not YYYY-MM-DD", ErrInvalidDate, trimmed)
	}
	return DateOf(parsed), nil
}

// DateOf truncates a timestamp to its calendar date, reading the components in the
// timestamp's own location.
func DateOf(moment time.Time) Date {
	return NewDate(moment.Year(), moment.Month(), moment.Day())
}

// DateFromUnix converts a unix timestamp to its UTC calendar date.
func DateFromUnix(unixUTC int64) Date {
	return DateOf(time.Unix(unixUTC, 0).UTC())
}

// Time returns midnight UTC of the date.
func (date Date) Time() time.Time {
	return date.value
}

// IsZero reports whether the date was never set.
func (date Date) IsZero() bool {
	return date.value.IsZero()
}

// Before reports whether date is strictly earlier than other.
func (date Date) Before(other Date) bool {
	return date.value.Before(other.value)
}

// After reports whether date is strictly later than other.
func (date Date) After(other Date) bool {
	return date.value.After(other.value)
}

// Equal reports whether both dates name the same day.
func (date Date) Equal(other Date) bool {
	return date.value.Equal(other.value)
}

// AddDays shifts the date by the given number of days.
func (date Date) AddDays(days int) Date {
	return Date{value: date.value.AddDate(0, 0, days)}
}

// String formats the date as YYYY-MM-DD.
func (date Date) String() string {
	return date.value.Format(dateLayout)
}

// DateRange is a closed, inclusive span of calendar days.
type DateRange struct {
	start Date
	end   Date
}

// NewDateRange validates that start is strictly before end.
func NewDateRange(start Date, end Date) (DateRange, error) {
	if start.IsZero() || end.IsZero() {
		return DateRange{}, fmt.Errorf("%w: start and end dates are required", ErrInvalidDateRange)
	}
	if !start.Before(end) {
		return DateRange{}, fmt.Errorf("%w: end date %s must be after start date %s", ErrInvalidDateRange, end, start)
	}
	return DateRange{start: start, end: end}, nil
}

// ParseDateRange parses two YYYY-MM-DD strings into a range.
func ParseDateRange(rawStart string, rawEnd string) (DateRange, error) {
	start, err := ParseDate(rawStart)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start date: %v", ErrInvalidDateRange, err)
	}
	end, err := ParseDate(rawEnd)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end date: %v", ErrInvalidDateRange, err)
	}
	return NewDateRange(start, end)
}

// Start returns the first day of the range.
func (dateRange DateRange) Start() Date {
	return dateRange.start
}

// End returns the last day of the range.
func (dateRange DateRange) End() Date {
	return dateRange.end
}

// IsZero reports whether the range was never set.
func (dateRange DateRange) IsZero() bool {
	return dateRange.start.IsZero() && dateRange.end.IsZero()
}

// Overlaps reports whether two closed ranges share at least one day. Ranges that touch
// on a boundary day overlap.
func (dateRange DateRange) Overlaps(other DateRange) bool {
	return !dateRange.start.After(other.end) && !dateRange.end.Before(other.start)
}

// String formats the range as start..end.
func (dateRange DateRange) String() string {
	return dateRange.start.String() + ".." + dateRange.end.String()
}
