package pipeline

import (
	"fmt"
	"net/url"
	"time"
)

// DateLayout is the calendar-date format DONKI accepts for startDate/endDate.
const DateLayout = "2006-01-02"

// Window is an inclusive range of calendar dates to ingest.
type Window struct {
	Start time.Time
	End   time.Time
}

// TrailingWindow returns the window of the given number of days ending on now's date.
func TrailingWindow(now time.Time, days int) Window {
	return Window{Start: now.AddDate(0, 0, -days), End: now}
}

// ParseWindow parses two YYYY-MM-DD dates.
func ParseWindow(start, end string) (Window, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return Window{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return Window{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	if e.Before(s) {
		return Window{}, fmt.Errorf("end date %s is before start date %s", end, start)
	}
	return Window{Start: s, End: e}, nil
}

// Params returns the DONKI query parameters for the window.
func (w Window) Params() url.Values {
	return url.Values{
		"startDate": {w.Start.Format(DateLayout)},
		"endDate":   {w.End.Format(DateLayout)},
	}
}

func (w Window) String() string {
	return w.Start.Format(DateLayout) + ".." + w.End.Format(DateLayout)
}
