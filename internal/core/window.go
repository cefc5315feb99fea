package core

import (
	"fmt"
	"strings"
	"time"
)

// Window is a named cash-flow filter relative to "now".
type Window string

const (
	Last30Days   Window = "30d"
	Last3Months  Window = "3m"
	Last6Months  Window = "6m"
	LastYear     Window = "1y"
	AllTime      Window = "all"
	DefaultWindow       = Last30Days
)

// Epoch is the threshold of the all-time window and the "never" activity date.
var Epoch = time.Unix(0, 0).UTC()

func Windows() []Window {
	return []Window{Last30Days, Last3Months, Last6Months, LastYear, AllTime}
}

func ParseWindow(s string) (Window, error) {
	switch w := Window(strings.ToLower(strings.TrimSpace(s))); w {
	case Last30Days, Last3Months, Last6Months, LastYear, AllTime:
		return w, nil
	case "":
		return DefaultWindow, nil
	default:
		return "", fmt.Errorf("%w: unknown filter %q", ErrValidation, s)
	}
}

// Threshold returns the earliest instant included in the window.
//
// Month and year steps clamp to the last day of the target month, so
// 31 March minus one month is the end of February and 29 February minus one
// year is 28 February. The time of day is kept.
func (w Window) Threshold(now time.Time) time.Time {
	switch w {
	case Last30Days:
		return now.AddDate(0, 0, -30)
	case Last3Months:
		return subMonths(now, 3)
	case Last6Months:
		return subMonths(now, 6)
	case LastYear:
		return subMonths(now, 12)
	default:
		return Epoch
	}
}

func subMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m-time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
