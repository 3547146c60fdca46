package tui

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sadopc/paytrackr/internal/earnings"
	"github.com/sadopc/paytrackr/internal/store"
)

// viewState represents the currently active view.
type viewState int

const (
	viewTracker viewState = iota
	viewHistory
)

var viewNames = []string{"Tracker", "History"}

// --- Messages ---

type statusMsg struct {
	text    string
	isError bool
}

// tickMsg redraws the clock once a second, running or not.
type tickMsg time.Time

// driverTickMsg is one firing of the tracker's periodic driver.
type driverTickMsg struct {
	driver earnings.Driver
}

type persistResult struct {
	write earnings.Write
	err   error
}

type persistDoneMsg struct {
	results []persistResult
}

type prefsLoadedMsg struct {
	lastAccount string
	manualTime  string
}

type signedInMsg struct {
	name string
}

type restoreLoadedMsg struct {
	account string
	state   *store.TrackedState
	err     error
}

// retryLoadMsg asks for another attempt at loading account's saved state.
type retryLoadMsg struct {
	account string
}

type manualTimeEnteredMsg struct {
	value string
}

type historyLoadedMsg struct {
	account string
	totals  []store.DailyTotal
	err     error
}

type historyResetConfirmedMsg struct{}

type historyResetMsg struct {
	err error
}

type exportDoneMsg struct {
	path string
}

// --- Helpers ---

func formatMoney(amount decimal.Decimal, currency string) string {
	return currency + " " + amount.StringFixed(2)
}

func formatClock(t time.Time) string {
	return t.Format("15:04:05")
}
