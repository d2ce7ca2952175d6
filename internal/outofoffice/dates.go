package outofoffice

import (
	"fmt"
	"time"
)

const (
	dateLayout        = "2006-01-02"
	displayDateLayout = "01/02/2006"
)

// ParseDate accepts YYYY-MM-DD (a calendar date in loc) or RFC3339. An empty
// string yields the zero time.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func endOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
}

// earliestStart is the first instant a new entry may start at: the start of
// today in loc, pulled back by the absolute UTC offset so that a client a
// few hours behind the server can still book "today".
func earliestStart(now time.Time, loc *time.Location) time.Time {
	_, offset := now.In(loc).Zone()
	if offset < 0 {
		offset = -offset
	}
	return startOfDay(now, loc).Add(-time.Duration(offset) * time.Second)
}

// FormatDateRange renders start and end as "MM/DD/YYYY - MM/DD/YYYY" in loc.
func FormatDateRange(start, end time.Time, loc *time.Location) string {
	return start.In(loc).Format(displayDateLayout) + " - " + end.In(loc).Format(displayDateLayout)
}
