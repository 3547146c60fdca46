package earnings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sadopc/paytrackr/internal/clock"
	"github.com/sadopc/paytrackr/internal/logger"
	"github.com/sadopc/paytrackr/internal/store"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseFinalized
)

var phaseNames = map[Phase]string{
	PhaseIdle:      "idle",
	PhaseRunning:   "running",
	PhaseFinalized: "finalized",
}

func (p Phase) String() string { return phaseNames[p] }

// Observer is told about transitions, mainly for metrics.
type Observer interface {
	Ticked()
	Checkpointed()
	Finalized()
	Earned(amount float64, running bool)
	PersistFailed(op string)
}

type nopObserver struct{}

func (nopObserver) Ticked()              {}
func (nopObserver) Checkpointed()        {}
func (nopObserver) Finalized()           {}
func (nopObserver) Earned(float64, bool) {}
func (nopObserver) PersistFailed(string) {}

// Driver identifies an installed periodic driver. Ticks carrying any other
// sequence are stale and ignored.
type Driver struct {
	Seq uint64
}

// Snapshot is what the presentation layer renders.
type Snapshot struct {
	Account   string
	Phase     Phase
	State     store.TrackedState
	Earned    decimal.Decimal
	Now       time.Time
	WorkStart time.Time
	WorkEnd   time.Time
	Status    string
	Failures  int
}

// Tracker is the earnings state machine for one account. It is not safe for
// concurrent use; the host serializes every call on one event loop.
type Tracker struct {
	settings Settings
	clock    *clock.Source
	base     *logger.Logger
	log      *logger.Logger
	obs      Observer

	account string
	state   store.TrackedState
	phase   Phase
	earned  decimal.Decimal
	status  string

	ticks     int
	driverSeq uint64
	driverOn  bool

	outbox   []Write
	failures int

	// landed holds the highest revision confirmed per write key; daily the
	// latest amount issued per date. Both serve stale-write reconciliation.
	landed map[string]int64
	daily  map[string]decimal.Decimal
}

func NewTracker(settings Settings, src *clock.Source, log *logger.Logger, obs Observer) *Tracker {
	if src == nil {
		src = clock.NewSource(nil)
	}
	if log == nil {
		log = logger.Discard()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	if settings.CheckpointEvery < 1 {
		settings.CheckpointEvery = 1
	}
	return &Tracker{
		settings: settings,
		clock:    src,
		base:     log,
		log:      log,
		obs:      obs,
		state:    store.TrackedState{Version: store.StateVersion},
		earned:   decimal.Zero,
		landed:   map[string]int64{},
		daily:    map[string]decimal.Decimal{},
	}
}

func (t *Tracker) Settings() Settings { return t.settings }
func (t *Tracker) Account() string    { return t.account }
func (t *Tracker) Phase() Phase       { return t.phase }

// SignIn switches to account with default state. Call Restore with the
// loaded record afterwards.
func (t *Tracker) SignIn(account string) {
	t.stopDriver()
	t.account = account
	t.log = t.base.WithFields("account", account)
	t.state = store.TrackedState{Version: store.StateVersion}
	t.clock.UseReal()
	t.phase = PhaseIdle
	t.earned = decimal.Zero
	t.status = ""
	t.forgetWrites()
	t.log.Info("signed in")
}

// SignOut tears the driver down. Writes already handed to the host may still
// complete.
func (t *Tracker) SignOut() {
	t.stopDriver()
	t.log.Info("signed out")
	t.log = t.base
	t.forgetWrites()
	t.account = ""
	t.state = store.TrackedState{Version: store.StateVersion}
	t.clock.UseReal()
	t.phase = PhaseIdle
	t.earned = decimal.Zero
	t.status = "Signed out"
}

// Start begins accumulating. A start before work start is recorded as work
// start, so nothing accrues early. Starting at or past work end finalizes at
// once. The returned Driver is non-nil when the host must begin ticking.
func (t *Tracker) Start(useManual bool, seed string) (*Driver, error) {
	const op = "start"
	if t.account == "" {
		return nil, t.reject(precondition(op, "sign in first"))
	}
	if t.state.Running {
		t.status = "Already running"
		return nil, nil
	}
	var tod clock.TimeOfDay
	if useManual {
		if strings.TrimSpace(seed) == "" {
			return nil, t.reject(precondition(op, "manual mode needs a time"))
		}
		tod = t.parse(seed)
	}

	if useManual {
		t.clock.UseManual(tod)
	} else {
		t.clock.UseReal()
	}
	current := t.clock.Now()
	start := current
	if ws := t.settings.WorkStart.On(current); start.Before(ws) {
		start = ws
	}
	end := t.settings.WorkEnd.On(current)

	t.state.UseManual = useManual
	t.state.StartTime = &start
	t.state.StopTime = nil
	t.syncManual()

	if !current.Before(end) {
		t.finalize(end)
		t.status = "Past work end, day finalized"
		return nil, nil
	}

	t.state.Running = true
	t.phase = PhaseRunning
	t.setEarned(Earned(start, current, end, t.settings.Rate))
	t.saveState()
	t.status = t.runningStatus(current)
	t.log.Info("started", "manual", useManual, "start", start)
	return t.installDriver(), nil
}

// Tick is one firing of the periodic driver. It reports whether the driver
// should keep firing.
func (t *Tracker) Tick(d Driver) bool {
	if !t.driverOn || d.Seq != t.driverSeq || !t.state.Running {
		return false
	}
	t.clock.Tick(t.settings.Tick)
	current := t.clock.Now()
	t.syncManual()
	end := t.workEnd()

	if !current.Before(end) {
		t.finalize(end)
		t.status = "Reached end time, stopped"
		return false
	}

	t.setEarned(Earned(*t.state.StartTime, current, end, t.settings.Rate))
	t.ticks++
	t.obs.Ticked()
	if t.ticks%t.settings.CheckpointEvery == 0 {
		t.saveState()
		t.obs.Checkpointed()
	}
	t.status = t.runningStatus(current)
	return true
}

// Stop freezes the amount at the current instant. It is a no-op unless running.
func (t *Tracker) Stop() {
	if !t.state.Running {
		t.status = "Not running"
		return
	}
	current := t.clock.Now()
	end := t.workEnd()
	frozen := current
	if frozen.After(end) {
		frozen = end
	}

	t.stopDriver()
	t.state.Running = false
	t.state.StopTime = &frozen
	t.syncManual()
	t.setEarned(Earned(*t.state.StartTime, current, end, t.settings.Rate))
	t.phase = PhaseIdle
	if !current.Before(end) {
		t.phase = PhaseFinalized
	}
	t.saveState()
	t.upsertDaily(clock.DateKey(*t.state.StartTime), t.earned)
	t.status = "Stopped"
	t.log.Info("stopped", "earned", t.earned.StringFixed(2))
}

// finalize freezes earnings at the workday boundary and records the day.
func (t *Tracker) finalize(end time.Time) {
	t.stopDriver()
	t.state.Running = false
	if t.state.UseManual {
		t.clock.Pin(end)
	}
	t.syncManual()
	t.state.StopTime = &end
	t.setEarned(Earned(*t.state.StartTime, end, end, t.settings.Rate))
	t.phase = PhaseFinalized
	t.saveState()
	t.upsertDaily(clock.DateKey(end), t.earned)
	t.obs.Finalized()
	t.log.Info("finalized", "earned", t.earned.StringFixed(2), "work_end", end)
}

// Reset clears the session, returns to the real clock and zeroes today's total.
func (t *Tracker) Reset() error {
	if t.account == "" {
		return t.reject(precondition("reset", "sign in first"))
	}
	t.stopDriver()
	t.clock.UseReal()
	t.state = store.TrackedState{Version: store.StateVersion, Revision: t.state.Revision}
	t.phase = PhaseIdle
	t.setEarned(decimal.Zero)
	t.saveState()
	t.upsertDaily(clock.DateKey(t.clock.RealNow()), decimal.Zero)
	t.status = "Reset"
	t.log.Info("reset")
	return nil
}

// SetManual selects the clock source while not running. Turning manual on
// arms the simulated clock from seed; turning it off discards it.
func (t *Tracker) SetManual(on bool, seed string) error {
	const op = "switch clock"
	if t.state.Running {
		return t.reject(precondition(op, "stop before switching clocks"))
	}
	if on {
		if strings.TrimSpace(seed) == "" {
			return t.reject(precondition(op, "manual mode needs a time"))
		}
		t.clock.UseManual(t.parse(seed))
	} else {
		t.clock.UseReal()
	}
	t.state.UseManual = on
	t.syncManual()
	t.refreshIdle()
	if t.account != "" {
		t.saveState()
	}
	if on {
		t.status = "Manual clock at " + clock.Of(t.clock.Now()).String()
	} else {
		t.status = "Real clock"
	}
	return nil
}

// ApplyManualTime re-arms the simulated clock to value on today's date.
// Past work end it clamps to work end, finalizing a running session.
// Malformed input is rejected while running and falls back to midnight
// otherwise.
func (t *Tracker) ApplyManualTime(value string) error {
	const op = "apply manual time"
	if !t.state.UseManual {
		return t.reject(precondition(op, "turn on manual time first"))
	}
	tod, err := clock.ParseTimeOfDay(value)
	var inErr *clock.InputError
	if errors.As(err, &inErr) {
		if t.state.Running {
			return t.reject(err)
		}
		t.log.Warn("bad time input, using fallback", "value", value, "fallback", tod.String(), "error", err)
	}
	target := tod.On(t.clock.RealNow())
	if t.state.Running && target.Before(t.clock.Now()) {
		return t.reject(precondition(op, "manual time cannot move backwards while running"))
	}

	end := t.settings.WorkEnd.On(target)
	if t.state.StartTime != nil {
		end = t.workEnd()
	}
	if !target.Before(end) {
		target = end
	}
	t.clock.Pin(target)
	t.syncManual()

	if t.state.Running && !target.Before(end) {
		t.finalize(end)
		t.status = "Manual time past work end, day finalized"
		return nil
	}

	if t.state.Running {
		t.setEarned(Earned(*t.state.StartTime, target, end, t.settings.Rate))
		t.status = t.runningStatus(target)
	} else {
		t.refreshIdle()
		t.status = "Manual clock at " + clock.Of(target).String()
	}
	if t.account != "" {
		t.saveState()
	}
	return nil
}

// Restore adopts the last persisted state. A running session whose workday
// ended while away is finalized; otherwise it resumes from its saved
// start time. The returned Driver is non-nil when the host must begin ticking.
func (t *Tracker) Restore(saved *store.TrackedState) *Driver {
	st := store.TrackedState{Version: store.StateVersion}
	if saved != nil {
		st = saved.Normalize().Clone()
		if st.Revision > t.landed[stateKey] {
			t.landed[stateKey] = st.Revision
		}
	}
	if st.Revision < t.state.Revision {
		st.Revision = t.state.Revision
	}
	t.state = st
	if st.UseManual {
		t.clock.ResumeManual(*st.ManualNow)
	} else {
		t.clock.UseReal()
	}

	if !st.Running {
		t.stopDriver()
		t.refreshIdle()
		t.status = "Restored (" + t.phase.String() + ")"
		return nil
	}

	current := t.clock.Now()
	end := t.workEnd()
	if !current.Before(end) {
		t.finalize(end)
		t.status = "Work day ended while away, day finalized"
		return nil
	}
	t.phase = PhaseRunning
	t.setEarned(Earned(*st.StartTime, current, end, t.settings.Rate))
	t.status = t.runningStatus(current)
	t.log.Info("restored running session", "start", *st.StartTime)
	return t.installDriver()
}

// Checkpoint saves the running state outside the periodic schedule, e.g.
// before the host exits.
func (t *Tracker) Checkpoint() {
	if !t.state.Running {
		return
	}
	t.saveState()
	t.obs.Checkpointed()
}

// Drain hands pending writes to the host, oldest first.
func (t *Tracker) Drain() []Write {
	w := t.outbox
	t.outbox = nil
	return w
}

// PersistenceCompleted reports the outcome of a drained write. Failures are
// logged and counted; in-memory state stays as it is. A write rejected for a
// stale revision is reconciled instead: the tracker adopts the stored
// revision and re-issues the write, unless the row already holds one of its
// own later writes.
func (t *Tracker) PersistenceCompleted(w Write, err error) {
	if err == nil {
		if w.Account == t.account && w.Revision > t.landed[w.key()] {
			t.landed[w.key()] = w.Revision
		}
		return
	}
	var stale *store.StaleWriteError
	if errors.As(err, &stale) {
		t.reconcile(w, stale)
		return
	}
	t.failures++
	t.obs.PersistFailed(w.Op())
	t.log.Error("persistence failed", "write_account", w.Account, "op", w.Op(), "revision", w.Revision, "error", err)
	t.status = "Save failed, will retry on next write"
}

func (t *Tracker) reconcile(w Write, stale *store.StaleWriteError) {
	if w.Account != t.account || stale.Stored <= t.landed[w.key()] {
		t.log.Debug("write superseded", "op", w.Op(), "revision", w.Revision, "stored", stale.Stored)
		return
	}
	if stale.Stored > t.state.Revision {
		t.state.Revision = stale.Stored
	}
	t.log.Warn("stored revision is ahead, rewriting", "op", w.Op(), "revision", w.Revision, "stored", stale.Stored)
	t.saveState()
	if w.Kind == WriteDailyTotal {
		amount, ok := t.daily[w.Date]
		if !ok {
			amount = w.Amount
		}
		t.upsertDaily(w.Date, amount)
	}
}

// DriverActive reports whether d is the currently installed driver.
func (t *Tracker) DriverActive(d Driver) bool {
	return t.driverOn && d.Seq == t.driverSeq
}

func (t *Tracker) Snapshot() Snapshot {
	now := t.clock.Now()
	day := t.sessionDay()
	return Snapshot{
		Account:   t.account,
		Phase:     t.phase,
		State:     t.state.Clone(),
		Earned:    t.earned,
		Now:       now,
		WorkStart: t.settings.WorkStart.On(day),
		WorkEnd:   t.settings.WorkEnd.On(day),
		Status:    t.status,
		Failures:  t.failures,
	}
}

// refreshIdle recomputes the displayed amount for a non-running state: the
// frozen amount of a stopped session, or a preview from work start.
func (t *Tracker) refreshIdle() {
	end := t.workEnd()
	switch {
	case t.state.StartTime != nil && t.state.StopTime != nil:
		t.setEarned(Earned(*t.state.StartTime, *t.state.StopTime, end, t.settings.Rate))
		t.phase = PhaseIdle
		if !t.state.StopTime.Before(end) {
			t.phase = PhaseFinalized
		}
	case t.state.StartTime == nil && t.state.UseManual:
		now := t.clock.Now()
		t.setEarned(Earned(t.settings.WorkStart.On(now), now, end, t.settings.Rate))
		t.phase = PhaseIdle
	default:
		t.setEarned(decimal.Zero)
		t.phase = PhaseIdle
	}
}

// sessionDay anchors the work window: the day the session started, or the
// current clock reading when there is none.
func (t *Tracker) sessionDay() time.Time {
	if t.state.StartTime != nil {
		return *t.state.StartTime
	}
	return t.clock.Now()
}

func (t *Tracker) workEnd() time.Time {
	return t.settings.WorkEnd.On(t.sessionDay())
}

func (t *Tracker) installDriver() *Driver {
	if t.driverOn {
		return nil
	}
	t.driverSeq++
	t.driverOn = true
	t.ticks = 0
	return &Driver{Seq: t.driverSeq}
}

func (t *Tracker) stopDriver() {
	t.driverOn = false
}

// syncManual mirrors the simulated clock into the state record.
func (t *Tracker) syncManual() {
	if !t.state.UseManual {
		t.state.ManualNow = nil
		return
	}
	now := t.clock.Now()
	t.state.ManualNow = &now
}

func (t *Tracker) setEarned(amount decimal.Decimal) {
	t.earned = amount
	f, _ := amount.Float64()
	t.obs.Earned(f, t.state.Running)
}

func (t *Tracker) saveState() {
	if t.account == "" {
		return
	}
	t.state.Revision++
	t.outbox = append(t.outbox, Write{
		Kind:     WriteState,
		Account:  t.account,
		State:    t.state.Clone(),
		Revision: t.state.Revision,
	})
}

func (t *Tracker) upsertDaily(date string, amount decimal.Decimal) {
	if t.account == "" {
		return
	}
	t.daily[date] = amount.Round(2)
	t.outbox = append(t.outbox, Write{
		Kind:     WriteDailyTotal,
		Account:  t.account,
		Date:     date,
		Amount:   amount.Round(2),
		Revision: t.state.Revision,
	})
}

func (t *Tracker) forgetWrites() {
	t.landed = map[string]int64{}
	t.daily = map[string]decimal.Decimal{}
}

// parse reads a time of day, falling back to midnight on bad input.
func (t *Tracker) parse(value string) clock.TimeOfDay {
	tod, err := clock.ParseTimeOfDay(value)
	var inErr *clock.InputError
	if errors.As(err, &inErr) {
		t.log.Warn("bad time input, using fallback", "value", value, "fallback", tod.String(), "error", err)
	}
	return tod
}

func (t *Tracker) reject(err error) error {
	t.status = err.Error()
	t.log.Warn("action rejected", "error", err)
	return err
}

func (t *Tracker) runningStatus(now time.Time) string {
	mode := "REAL TIME"
	if t.state.UseManual {
		mode = "MANUAL"
	}
	return fmt.Sprintf("Running in %s mode (now = %s)", mode, now.Format("15:04:05"))
}
