package earnings

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sadopc/paytrackr/internal/store"
)

// Store is the account-scoped persistence the tracker's writes are applied to.
type Store interface {
	LoadState(ctx context.Context, accountID string) (*store.TrackedState, error)
	SaveState(ctx context.Context, accountID string, st store.TrackedState) error
	UpsertDailyTotal(ctx context.Context, accountID, date string, amount decimal.Decimal, revision int64) error
	ListDailyTotals(ctx context.Context, accountID string) ([]store.DailyTotal, error)
	DeleteAllDailyTotals(ctx context.Context, accountID string) error
}

type WriteKind int

const (
	WriteState WriteKind = iota
	WriteDailyTotal
)

// Write is one pending persistence call produced by a transition.
type Write struct {
	Kind     WriteKind
	Account  string
	State    store.TrackedState
	Date     string
	Amount   decimal.Decimal
	Revision int64
}

// Op names the store call for logs and metrics.
func (w Write) Op() string {
	switch w.Kind {
	case WriteState:
		return "save_state"
	case WriteDailyTotal:
		return "upsert_daily_total"
	}
	return fmt.Sprintf("write_%d", int(w.Kind))
}

const stateKey = "state"

// key identifies the row w targets within its account.
func (w Write) key() string {
	if w.Kind == WriteDailyTotal {
		return "daily:" + w.Date
	}
	return stateKey
}

// Apply executes w against s.
func Apply(ctx context.Context, s Store, w Write) error {
	var err error
	switch w.Kind {
	case WriteState:
		err = s.SaveState(ctx, w.Account, w.State)
	case WriteDailyTotal:
		err = s.UpsertDailyTotal(ctx, w.Account, w.Date, w.Amount, w.Revision)
	default:
		err = fmt.Errorf("unknown write kind %d", int(w.Kind))
	}
	if err != nil {
		return &PersistenceError{Op: w.Op(), Err: err}
	}
	return nil
}

// ApplyAll executes writes in order and returns the first failure. Later
// writes still run; each one is an independent attempt.
func ApplyAll(ctx context.Context, s Store, writes []Write) error {
	var first error
	for _, w := range writes {
		if err := Apply(ctx, s, w); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// flushRounds bounds how often Flush re-drains writes re-issued after a
// stale rejection.
const flushRounds = 3

// Flush applies the tracker's pending writes in order and reports each
// outcome back, repeating while reconciliation re-issues writes. It returns
// the first failure other than a stale revision.
func Flush(ctx context.Context, s Store, t *Tracker) error {
	var first error
	for round := 0; round < flushRounds; round++ {
		writes := t.Drain()
		if len(writes) == 0 {
			break
		}
		for _, w := range writes {
			err := Apply(ctx, s, w)
			t.PersistenceCompleted(w, err)
			if err != nil && first == nil && !errors.Is(err, store.ErrStaleRevision) {
				first = err
			}
		}
	}
	return first
}

// Load reads the account's last persisted state.
func Load(ctx context.Context, s Store, account string) (*store.TrackedState, error) {
	st, err := s.LoadState(ctx, account)
	if err != nil {
		return nil, &PersistenceError{Op: "load_state", Err: err}
	}
	return st, nil
}
