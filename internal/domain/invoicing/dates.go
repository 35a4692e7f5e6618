package invoicing

import "time"

// CalendarDate strips the clock part of t and returns midnight UTC of the
// same calendar day as observed in t's own location.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// DateLayout is the wire and storage format for invoice dates
const DateLayout = "2006-01-02"

// Clock returns the current instant. Services receive one so that
// overdue evaluation never reads the wall clock directly.
type Clock func() time.Time
