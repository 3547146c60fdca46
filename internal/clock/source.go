package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Manual is a simulated clock. Arming stores a seed; the first read after
// arming pins the seed to the real clock's calendar day. Reads never move it,
// only Advance and Set do.
type Manual struct {
	real    clockwork.Clock
	pending *TimeOfDay
	now     *time.Time
}

func NewManual(real clockwork.Clock) *Manual {
	return &Manual{real: real}
}

// Arm re-seeds the clock. The instant materializes on the next Now.
func (m *Manual) Arm(seed TimeOfDay) {
	m.pending = &seed
	m.now = nil
}

// Set pins the clock to an exact instant, e.g. one restored from storage.
func (m *Manual) Set(t time.Time) {
	m.pending = nil
	m.now = &t
}

// Disarm discards the simulated instant.
func (m *Manual) Disarm() {
	m.pending = nil
	m.now = nil
}

func (m *Manual) Armed() bool {
	return m.pending != nil || m.now != nil
}

// Now returns the simulated instant, materializing a pending seed first.
// An unarmed clock reads as the real one.
func (m *Manual) Now() time.Time {
	if m.pending != nil {
		t := m.pending.On(m.real.Now())
		m.now = &t
		m.pending = nil
	}
	if m.now == nil {
		return m.real.Now()
	}
	return *m.now
}

// Advance moves the simulated instant forward by d.
func (m *Manual) Advance(d time.Duration) {
	t := m.Now().Add(d)
	m.now = &t
}

// Source switches between the real clock and a Manual one.
type Source struct {
	real   clockwork.Clock
	manual *Manual
	useMan bool
}

// NewSource reads wall time from real, or from the system clock when real
// is nil. Tests pass a clockwork fake to pin "today".
func NewSource(real clockwork.Clock) *Source {
	if real == nil {
		real = clockwork.NewRealClock()
	}
	return &Source{real: real, manual: NewManual(real)}
}

// Now reads the selected clock. It never advances the manual clock.
func (s *Source) Now() time.Time {
	if s.useMan {
		return s.manual.Now()
	}
	return s.real.Now()
}

// RealNow reads the wall clock regardless of the selected mode.
func (s *Source) RealNow() time.Time {
	return s.real.Now()
}

func (s *Source) Manual() bool { return s.useMan }

// UseReal selects the wall clock and discards the simulated instant.
func (s *Source) UseReal() {
	s.useMan = false
	s.manual.Disarm()
}

// UseManual selects the simulated clock, re-armed from seed.
func (s *Source) UseManual(seed TimeOfDay) {
	s.useMan = true
	s.manual.Arm(seed)
}

// ResumeManual selects the simulated clock pinned at t.
func (s *Source) ResumeManual(t time.Time) {
	s.useMan = true
	s.manual.Set(t)
}

// Pin moves the simulated clock to t without changing the mode.
func (s *Source) Pin(t time.Time) {
	s.manual.Set(t)
}

// Tick advances the simulated clock by d when it is selected.
func (s *Source) Tick(d time.Duration) {
	if s.useMan {
		s.manual.Advance(d)
	}
}
