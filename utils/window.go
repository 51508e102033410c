package utils

import (
	"fmt"
	"time"
)

const Day = 24 * time.Hour

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewWindow(start, end time.Time) (Window, error) {
	if !start.Before(end) {
		return Window{}, fmt.Errorf("window start %s must be before end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Window{Start: start.UTC(), End: end.UTC()}, nil
}

// Trailing returns [end-d, end).
func Trailing(end time.Time, d time.Duration) Window {
	end = end.UTC()
	return Window{Start: end.Add(-d), End: end}
}

// Contains reports whether t falls inside the window. An instant equal to End is excluded.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) Length() time.Duration {
	return w.End.Sub(w.Start)
}

// Previous returns the window of identical length immediately preceding w.
func (w Window) Previous() Window {
	return Window{Start: w.Start.Add(-w.Length()), End: w.Start}
}

// StartOfDay truncates t to its UTC calendar day.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey formats t as its UTC calendar day.
func DayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// TrailingDays returns one window per UTC calendar day, oldest first, the last one
// being the day that contains now.
func TrailingDays(now time.Time, days int) []Window {
	if days <= 0 {
		return nil
	}
	today := StartOfDay(now)
	out := make([]Window, 0, days)
	for i := days - 1; i >= 0; i-- {
		start := today.AddDate(0, 0, -i)
		out = append(out, Window{Start: start, End: start.AddDate(0, 0, 1)})
	}
	return out
}
