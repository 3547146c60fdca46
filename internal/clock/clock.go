// Package clock supplies "now" to the earnings tracker, either from the wall
// clock or from a simulated clock that only moves when the tick driver says so.
package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is an hour:minute:second offset within a calendar day.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// Midnight is the fallback for unparseable input.
var Midnight = TimeOfDay{}

// InputError reports a malformed "HH:MM[:SS]" value.
type InputError struct {
	Value string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid time %q: %v", e.Value, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS". On failure it returns Midnight
// together with an *InputError so callers can keep going with the fallback.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Midnight, &InputError{Value: s, Err: fmt.Errorf("want HH:MM or HH:MM:SS")}
	}

	limits := []int{23, 59, 59}
	var vals [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Midnight, &InputError{Value: s, Err: err}
		}
		if n < 0 || n > limits[i] {
			return Midnight, &InputError{Value: s, Err: fmt.Errorf("field %d out of range", i+1)}
		}
		vals[i] = n
	}
	return TimeOfDay{Hour: vals[0], Minute: vals[1], Second: vals[2]}, nil
}

// MustParseTimeOfDay is ParseTimeOfDay for literals known to be valid.
func MustParseTimeOfDay(s string) TimeOfDay {
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return tod
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Seconds is the offset from midnight.
func (t TimeOfDay) Seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// On returns the instant t falls at on the calendar day of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, t.Second, 0, day.Location())
}

// Of extracts the time of day of an instant.
func Of(ts time.Time) TimeOfDay {
	return TimeOfDay{Hour: ts.Hour(), Minute: ts.Minute(), Second: ts.Second()}
}

// DateKey formats the calendar day used to key daily totals.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
