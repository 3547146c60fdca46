package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StateVersion is the shape version written by this build.
const StateVersion = 2

// TrackedState is the single persisted record per account.
type TrackedState struct {
	Running   bool
	UseManual bool
	StartTime *time.Time
	ManualNow *time.Time
	StopTime  *time.Time // instant accumulation froze; nil while running or idle

	Version  int
	Revision int64 // writes with a lower revision than stored are ignored
}

// DailyTotal is the earned amount for one account on one calendar day.
type DailyTotal struct {
	AccountID string
	Date      string // YYYY-MM-DD
	Amount    decimal.Decimal
	UpdatedAt time.Time
}

// Normalize fills fields absent from older records and repairs records that
// break the state invariants.
func (s TrackedState) Normalize() TrackedState {
	if s.Version < StateVersion {
		// v1 rows predate stop time and revisions; the columns read back empty.
		s.StopTime = nil
		s.Version = StateVersion
	}
	if s.Running && s.StartTime == nil {
		s.Running = false
	}
	if s.UseManual && s.ManualNow == nil {
		s.UseManual = false
	}
	if !s.UseManual {
		s.ManualNow = nil
	}
	if s.Running {
		s.StopTime = nil
	}
	return s
}

// Clone returns a copy that shares no pointers with s.
func (s TrackedState) Clone() TrackedState {
	c := s
	c.StartTime = cloneTime(s.StartTime)
	c.ManualNow = cloneTime(s.ManualNow)
	c.StopTime = cloneTime(s.StopTime)
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

var accountNamespace = uuid.MustParse("5b0c1c4e-7d7a-4f43-9a39-2f5d8d0a3c11")

// AccountID derives the stable storage key for a signed-in profile name.
func AccountID(name string) string {
	return uuid.NewSHA1(accountNamespace, []byte(name)).String()
}
