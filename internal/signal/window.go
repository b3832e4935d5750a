package signal

import (
	"time"

	"github.com/scmhub/calendar"
)

const entryCutoff = 15 * time.Minute

// Window models the exchange trading session: NYSE business days,
// 09:30-16:00 exchange-local time. New alerts stop 15 minutes before the
// close; evaluation of already-open positions is not gated here.
type Window struct {
	location *time.Location
	cal      *calendar.Calendar
}

func NewWindow(timezone string) *Window {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Window{location: loc, cal: calendar.XNYS()}
}

func (w *Window) sessionBounds(t time.Time) (open, close time.Time) {
	local := t.In(w.location)
	open = time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, w.location)
	close = time.Date(local.Year(), local.Month(), local.Day(), 16, 0, 0, 0, w.location)
	return open, close
}

// IsOpen reports whether t falls inside the regular session of a business
// day.
func (w *Window) IsOpen(t time.Time) bool {
	local := t.In(w.location)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if !w.cal.IsBusinessDay(local) {
		return false
	}
	open, close := w.sessionBounds(t)
	return !local.Before(open) && local.Before(close)
}

// AllowsNewEntries reports whether a new alert may be started at t: the
// session must be open and more than 15 minutes must remain before the
// close.
func (w *Window) AllowsNewEntries(t time.Time) bool {
	if !w.IsOpen(t) {
		return false
	}
	_, close := w.sessionBounds(t)
	return t.In(w.location).Before(close.Add(-entryCutoff))
}

// HoursToClose returns the hours remaining until the 16:00 close, floored
// at zero.
func (w *Window) HoursToClose(t time.Time) float64 {
	_, close := w.sessionBounds(t)
	remaining := close.Sub(t.In(w.location)).Hours()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Close returns the session close instant for t's day.
func (w *Window) Close(t time.Time) time.Time {
	_, close := w.sessionBounds(t)
	return close
}
