package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr(t time.Time) *time.Time { return &t }

// ============================================================
// Store initialization
// ============================================================

func TestNewMemory(t *testing.T) {
	s, err := NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var version int
	s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if version != currentVersion {
		t.Fatalf("expected user_version %d, got %d", currentVersion, version)
	}
}

func TestNewWithPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sub/paytrackr.db"
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopen; should succeed and not re-migrate
	s2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	s2.Close()
}

func TestMigrationIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
}

func TestMigrationFromV1FillsDefaults(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	t.Cleanup(func() { s.Close() })

	if err := s.migrateV1(); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("PRAGMA user_version = 1"); err != nil {
		t.Fatal(err)
	}

	start := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC).Format(timeLayout)
	// A v1 row: running with manual mode but no manual instant.
	_, err = db.Exec(
		`INSERT INTO tracked_state (account_id, running, use_manual, start_time) VALUES ('acct', 1, 1, ?)`,
		start,
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.migrate(); err != nil {
		t.Fatalf("migrate v1 -> v2: %v", err)
	}

	st, err := s.LoadState(context.Background(), "acct")
	if err != nil {
		t.Fatal(err)
	}
	if st == nil {
		t.Fatal("expected migrated row")
	}
	if st.Version != StateVersion {
		t.Fatalf("version = %d, want %d", st.Version, StateVersion)
	}
	if !st.Running || st.StartTime == nil {
		t.Fatalf("running session lost in migration: %+v", st)
	}
	if st.UseManual || st.ManualNow != nil {
		t.Fatalf("manual mode without instant should fall back to real clock: %+v", st)
	}
	if st.StopTime != nil || st.Revision != 0 {
		t.Fatalf("new columns should default-fill: %+v", st)
	}
}

// ============================================================
// Tracked state
// ============================================================

func TestLoadStateMissing(t *testing.T) {
	s := newTestStore(t)
	st, err := s.LoadState(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if st != nil {
		t.Fatalf("expected nil state, got %+v", st)
	}
}

func TestSaveAndLoadState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 4, 8, 0, 0, 123456789, time.Local)
	manual := start.Add(90 * time.Second)

	in := TrackedState{
		Running:   true,
		UseManual: true,
		StartTime: &start,
		ManualNow: &manual,
		Revision:  3,
	}
	if err := s.SaveState(ctx, "acct", in); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadState(ctx, "acct")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Running || !got.UseManual {
		t.Fatalf("flags not persisted: %+v", got)
	}
	if !got.StartTime.Equal(start) {
		t.Fatalf("start = %v, want %v", got.StartTime, start)
	}
	if !got.ManualNow.Equal(manual) {
		t.Fatalf("manual now = %v, want %v", got.ManualNow, manual)
	}
	if got.StopTime != nil {
		t.Fatal("stop time should be nil")
	}
	if got.Revision != 3 || got.Version != StateVersion {
		t.Fatalf("revision/version = %d/%d", got.Revision, got.Version)
	}
}

func TestSaveStateIgnoresOlderRevision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 4, 8, 0, 0, 0, time.Local)
	stop := start.Add(time.Hour)

	if err := s.SaveState(ctx, "acct", TrackedState{StartTime: &start, StopTime: &stop, Revision: 5}); err != nil {
		t.Fatal(err)
	}
	// A checkpoint issued earlier lands late.
	err := s.SaveState(ctx, "acct", TrackedState{Running: true, StartTime: &start, Revision: 4})
	var stale *StaleWriteError
	if !errors.As(err, &stale) || !errors.Is(err, ErrStaleRevision) {
		t.Fatalf("expected stale write error, got %v", err)
	}
	if stale.Stored != 5 || stale.Wrote != 4 || stale.Table != "tracked_state" {
		t.Fatalf("stale = %+v", stale)
	}

	// The same revision still lands.
	if err := s.SaveState(ctx, "acct", TrackedState{StartTime: &start, StopTime: &stop, Revision: 5}); err != nil {
		t.Fatalf("equal revision rejected: %v", err)
	}

	got, _ := s.LoadState(ctx, "acct")
	if got.Running {
		t.Fatal("stale write rolled state back")
	}
	if got.StopTime == nil || !got.StopTime.Equal(stop) {
		t.Fatalf("stop time = %v, want %v", got.StopTime, stop)
	}
}

func TestSaveStateClearsFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 4, 8, 0, 0, 0, time.Local)

	s.SaveState(ctx, "acct", TrackedState{Running: true, StartTime: &start, Revision: 1})
	s.SaveState(ctx, "acct", TrackedState{Revision: 2})

	got, _ := s.LoadState(ctx, "acct")
	if got.Running || got.StartTime != nil || got.ManualNow != nil {
		t.Fatalf("reset state not persisted: %+v", got)
	}
}

func TestStatesAreAccountScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 4, 8, 0, 0, 0, time.Local)

	s.SaveState(ctx, "a", TrackedState{Running: true, StartTime: &start, Revision: 1})

	other, _ := s.LoadState(ctx, "b")
	if other != nil {
		t.Fatal("state leaked across accounts")
	}
}

// ============================================================
// Daily totals
// ============================================================

func TestUpsertDailyTotal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertDailyTotal(ctx, "acct", "2026-03-04", decimal.RequireFromString("12.345"), 1); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertDailyTotal(ctx, "acct", "2026-03-04", decimal.RequireFromString("25.26"), 2); err != nil {
		t.Fatal(err)
	}

	totals, err := s.ListDailyTotals(ctx, "acct")
	if err != nil {
		t.Fatal(err)
	}
	if len(totals) != 1 {
		t.Fatalf("expected 1 row after replace, got %d", len(totals))
	}
	if !totals[0].Amount.Equal(decimal.RequireFromString("25.26")) {
		t.Fatalf("amount = %s, want 25.26", totals[0].Amount)
	}
}

func TestUpsertDailyTotalRounds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.UpsertDailyTotal(ctx, "acct", "2026-03-04", decimal.RequireFromString("1.005"), 1)
	totals, _ := s.ListDailyTotals(ctx, "acct")
	if totals[0].Amount.StringFixed(2) != "1.01" {
		t.Fatalf("amount = %s, want 1.01", totals[0].Amount.StringFixed(2))
	}
}

func TestUpsertDailyTotalIgnoresOlderRevision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.UpsertDailyTotal(ctx, "acct", "2026-03-04", decimal.Zero, 7)
	err := s.UpsertDailyTotal(ctx, "acct", "2026-03-04", decimal.NewFromInt(10), 6)
	var stale *StaleWriteError
	if !errors.As(err, &stale) || stale.Stored != 7 || stale.Table != "daily_totals" {
		t.Fatalf("expected stale write error at revision 7, got %v", err)
	}

	totals, _ := s.ListDailyTotals(ctx, "acct")
	if !totals[0].Amount.IsZero() {
		t.Fatalf("stale upsert applied: %s", totals[0].Amount)
	}
}

func TestListDailyTotalsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, d := range []string{"2026-03-02", "2026-03-04", "2026-03-03"} {
		s.UpsertDailyTotal(ctx, "acct", d, decimal.NewFromInt(int64(i)), 1)
	}
	s.UpsertDailyTotal(ctx, "other", "2026-03-05", decimal.NewFromInt(9), 1)

	totals, err := s.ListDailyTotals(ctx, "acct")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2026-03-04", "2026-03-03", "2026-03-02"}
	if len(totals) != len(want) {
		t.Fatalf("expected %d totals, got %d", len(want), len(totals))
	}
	for i, d := range want {
		if totals[i].Date != d {
			t.Fatalf("totals[%d].Date = %s, want %s", i, totals[i].Date, d)
		}
		if totals[i].AccountID != "acct" {
			t.Fatalf("foreign row in list: %+v", totals[i])
		}
	}
}

func TestDeleteAllDailyTotals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.UpsertDailyTotal(ctx, "acct", "2026-03-03", decimal.NewFromInt(1), 1)
	s.UpsertDailyTotal(ctx, "acct", "2026-03-04", decimal.NewFromInt(2), 1)
	s.UpsertDailyTotal(ctx, "other", "2026-03-04", decimal.NewFromInt(3), 1)

	if err := s.DeleteAllDailyTotals(ctx, "acct"); err != nil {
		t.Fatal(err)
	}

	mine, _ := s.ListDailyTotals(ctx, "acct")
	if len(mine) != 0 {
		t.Fatalf("expected empty history, got %d rows", len(mine))
	}
	theirs, _ := s.ListDailyTotals(ctx, "other")
	if len(theirs) != 1 {
		t.Fatal("delete should be account scoped")
	}
}

// ============================================================
// Settings
// ============================================================

func TestSettingsDefaults(t *testing.T) {
	s := newTestStore(t)
	v, err := s.GetSetting(context.Background(), SettingManualTime, "")
	if err != nil {
		t.Fatal(err)
	}
	if v != "08:00:00" {
		t.Fatalf("manual_time = %q, want 08:00:00", v)
	}
}

func TestSetSetting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetSetting(ctx, SettingLastAccount, "alice"); err != nil {
		t.Fatal(err)
	}
	v, _ := s.GetSetting(ctx, SettingLastAccount, "")
	if v != "alice" {
		t.Fatalf("last_account = %q, want alice", v)
	}

	v, err := s.GetSetting(ctx, "missing", "fallback")
	if err != nil || v != "fallback" {
		t.Fatalf("missing key = %q, %v", v, err)
	}
}

// ============================================================
// Models
// ============================================================

func TestNormalize(t *testing.T) {
	start := time.Date(2026, 3, 4, 8, 0, 0, 0, time.Local)
	stop := start.Add(time.Hour)

	st := TrackedState{Running: true, StopTime: &stop, Version: StateVersion}.Normalize()
	if st.Running {
		t.Fatal("running without start time should be repaired")
	}

	st = TrackedState{ManualNow: ptr(start), Version: StateVersion}.Normalize()
	if st.ManualNow != nil {
		t.Fatal("manual instant without manual mode should be dropped")
	}

	st = TrackedState{Running: true, StartTime: ptr(start), StopTime: ptr(stop), Version: StateVersion}.Normalize()
	if st.StopTime != nil {
		t.Fatal("running state cannot carry a stop time")
	}
}

func TestCloneIsDeep(t *testing.T) {
	start := time.Date(2026, 3, 4, 8, 0, 0, 0, time.Local)
	a := TrackedState{StartTime: &start}
	b := a.Clone()
	*b.StartTime = start.Add(time.Hour)
	if !a.StartTime.Equal(start) {
		t.Fatal("clone shares pointers")
	}
}

func TestAccountIDStable(t *testing.T) {
	if AccountID("alice") != AccountID("alice") {
		t.Fatal("account id should be deterministic")
	}
	if AccountID("alice") == AccountID("bob") {
		t.Fatal("distinct names should map to distinct ids")
	}
}
