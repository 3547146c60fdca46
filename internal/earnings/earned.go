// Package earnings owns the tracked state of one signed-in account and the
// arithmetic that turns elapsed time into money.
//
// A Tracker is a plain state machine. It never blocks and never touches
// storage directly: each transition appends Writes to an outbox that the host
// drains and executes off its event loop, reporting back through
// PersistenceCompleted.
package earnings

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sadopc/paytrackr/internal/clock"
)

var msPerHour = decimal.NewFromInt(int64(time.Hour / time.Millisecond))

// Rate is a fixed pay rate.
type Rate struct {
	Hourly decimal.Decimal
}

func NewRate(hourly decimal.Decimal) Rate {
	return Rate{Hourly: hourly}
}

// PerSecond is the hourly rate spread over 3600 seconds.
func (r Rate) PerSecond() decimal.Decimal {
	return r.Hourly.Div(decimal.NewFromInt(3600))
}

// Earned is the amount accrued between start and current, never counting
// time past workEnd and never negative. Every caller goes through here.
func Earned(start, current, workEnd time.Time, rate Rate) decimal.Decimal {
	effective := current
	if effective.After(workEnd) {
		effective = workEnd
	}
	ms := effective.Sub(start).Milliseconds()
	if ms <= 0 {
		return decimal.Zero
	}
	return rate.Hourly.Mul(decimal.NewFromInt(ms)).Div(msPerHour)
}

// Settings are the fixed parameters of a tracker.
type Settings struct {
	Rate            Rate
	WorkStart       clock.TimeOfDay
	WorkEnd         clock.TimeOfDay
	Tick            time.Duration
	CheckpointEvery int
}

// DefaultSettings mirror the built-in configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		Rate:            NewRate(decimal.RequireFromString("25.26")),
		WorkStart:       clock.TimeOfDay{Hour: 8},
		WorkEnd:         clock.TimeOfDay{Hour: 14, Minute: 20},
		Tick:            time.Second,
		CheckpointEvery: 30,
	}
}

// WindowAmount is the most that can be earned on day: the whole window
// from work start to work end.
func (s Settings) WindowAmount(day time.Time) decimal.Decimal {
	end := s.WorkEnd.On(day)
	return Earned(s.WorkStart.On(day), end, end, s.Rate)
}
