package clock_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/paytrackr/internal/clock"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    clock.TimeOfDay
		wantErr bool
	}{
		{"08:00", clock.TimeOfDay{Hour: 8}, false},
		{"14:20:05", clock.TimeOfDay{Hour: 14, Minute: 20, Second: 5}, false},
		{" 9:5 ", clock.TimeOfDay{Hour: 9, Minute: 5}, false},
		{"23:59:59", clock.TimeOfDay{Hour: 23, Minute: 59, Second: 59}, false},
		{"", clock.Midnight, true},
		{"8", clock.Midnight, true},
		{"24:00", clock.Midnight, true},
		{"12:60", clock.Midnight, true},
		{"aa:bb", clock.Midnight, true},
		{"1:2:3:4", clock.Midnight, true},
	}
	for _, tt := range tests {
		got, err := clock.ParseTimeOfDay(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
		if tt.wantErr {
			var inErr *clock.InputError
			assert.True(t, errors.As(err, &inErr), "input %q should yield InputError", tt.in)
		} else {
			assert.NoError(t, err, "input %q", tt.in)
		}
	}
}

func TestTimeOfDayOnAndString(t *testing.T) {
	day := time.Date(2026, 3, 4, 22, 10, 0, 0, time.Local)
	tod := clock.MustParseTimeOfDay("08:30")

	got := tod.On(day)
	assert.Equal(t, time.Date(2026, 3, 4, 8, 30, 0, 0, time.Local), got)
	assert.Equal(t, "08:30:00", tod.String())
	assert.Equal(t, tod, clock.Of(got))
	assert.Equal(t, "2026-03-04", clock.DateKey(got))
}

func TestManualMaterializesOnFirstRead(t *testing.T) {
	real := clockwork.NewFakeClockAt(time.Date(2026, 3, 4, 12, 0, 0, 0, time.Local))
	m := clock.NewManual(real)
	assert.False(t, m.Armed())

	m.Arm(clock.MustParseTimeOfDay("08:00:00"))
	require.True(t, m.Armed())

	// The real clock moves before the first read; the seed lands on that day.
	real.Advance(24 * time.Hour)
	first := m.Now()
	assert.Equal(t, time.Date(2026, 3, 5, 8, 0, 0, 0, time.Local), first)

	// Reads do not advance.
	assert.Equal(t, first, m.Now())
	assert.Equal(t, first, m.Now())
}

func TestManualAdvance(t *testing.T) {
	real := clockwork.NewFakeClockAt(time.Date(2026, 3, 4, 12, 0, 0, 0, time.Local))
	m := clock.NewManual(real)
	m.Arm(clock.MustParseTimeOfDay("08:00:00"))
	seed := m.Now()

	for k := 0; k < 90; k++ {
		m.Advance(time.Second)
	}
	assert.Equal(t, seed.Add(90*time.Second), m.Now())
}

func TestManualDisarmFallsBackToReal(t *testing.T) {
	real := clockwork.NewFakeClockAt(time.Date(2026, 3, 4, 12, 0, 0, 0, time.Local))
	m := clock.NewManual(real)
	m.Set(time.Date(2026, 3, 4, 9, 0, 0, 0, time.Local))
	m.Disarm()
	assert.False(t, m.Armed())
	assert.Equal(t, real.Now(), m.Now())
}

func TestSourceSwitching(t *testing.T) {
	real := clockwork.NewFakeClockAt(time.Date(2026, 3, 4, 12, 0, 0, 0, time.Local))
	s := clock.NewSource(real)
	assert.False(t, s.Manual())
	assert.Equal(t, real.Now(), s.Now())

	s.UseManual(clock.MustParseTimeOfDay("09:00"))
	s.Tick(time.Second)
	assert.Equal(t, time.Date(2026, 3, 4, 9, 0, 1, 0, time.Local), s.Now())

	// Back to real discards the simulated instant.
	s.UseReal()
	assert.Equal(t, real.Now(), s.Now())
	s.Tick(time.Second)
	assert.Equal(t, real.Now(), s.Now(), "ticks do not move the real clock")

	// Re-enabling re-arms from the new seed.
	s.UseManual(clock.MustParseTimeOfDay("10:00"))
	assert.Equal(t, time.Date(2026, 3, 4, 10, 0, 0, 0, time.Local), s.Now())
	assert.Equal(t, real.Now(), s.RealNow())
}

func TestSourceResumeManual(t *testing.T) {
	real := clockwork.NewFakeClockAt(time.Date(2026, 3, 4, 12, 0, 0, 0, time.Local))
	s := clock.NewSource(real)
	at := time.Date(2026, 3, 4, 9, 15, 30, 0, time.Local)

	s.ResumeManual(at)
	assert.True(t, s.Manual())
	assert.Equal(t, at, s.Now())

	s.Pin(at.Add(time.Minute))
	assert.Equal(t, at.Add(time.Minute), s.Now())
}

func TestSameDay(t *testing.T) {
	a := time.Date(2026, 3, 4, 0, 0, 0, 0, time.Local)
	assert.True(t, clock.SameDay(a, a.Add(23*time.Hour)))
	assert.False(t, clock.SameDay(a, a.Add(24*time.Hour)))
}
