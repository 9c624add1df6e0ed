package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar dates. Start and End are always
// normalized to midnight UTC; sub-day precision is never carried.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds a DateRange from two instants, truncating both to their
// calendar date. It returns ErrInvalidDateRange when end precedes start.
func NewDateRange(start, end time.Time) (DateRange, error) {
	start, end = Midnight(start), Midnight(end)
	if end.Before(start) {
		return DateRange{}, fmt.Errorf("%w: %s after %s", ErrInvalidDateRange, start.Format(DateLayout), end.Format(DateLayout))
	}
	return DateRange{Start: start, End: end}, nil
}

// ParseDateRange parses "2006-01-02" formatted start and end dates.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.ParseInLocation(DateLayout, start, time.UTC)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start %q", ErrInvalidDateRange, start)
	}
	e, err := time.ParseInLocation(DateLayout, end, time.UTC)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end %q", ErrInvalidDateRange, end)
	}
	return NewDateRange(s, e)
}

// Midnight truncates an instant to its calendar date in UTC.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Days returns the number of calendar days covered by the range, inclusive.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start)/(24*time.Hour)) + 1
}

// Contains reports whether the given date falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	t = Midnight(t)
	return !t.Before(r.Start) && !t.After(r.End)
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

type dateRangeJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MarshalJSON serializes the range as calendar dates.
func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(dateRangeJSON{
		Start: r.Start.Format(DateLayout),
		End:   r.End.Format(DateLayout),
	})
}

// UnmarshalJSON parses the calendar-date form produced by MarshalJSON.
func (r *DateRange) UnmarshalJSON(data []byte) error {
	var raw dateRangeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDateRange(raw.Start, raw.End)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
