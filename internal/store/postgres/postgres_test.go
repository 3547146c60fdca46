package postgres

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sadopc/paytrackr/internal/earnings"
	"github.com/sadopc/paytrackr/internal/store"
)

var _ earnings.Store = (*Store)(nil)

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no migrations embedded")
	}
	data, err := fs.ReadFile(migrations, files[0])
	if err != nil {
		t.Fatalf("read %s: %v", files[0], err)
	}
	for _, want := range []string{"-- +goose Up", "tracked_state", "daily_totals", "-- +goose Down"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("%s missing %q", files[0], want)
		}
	}
}

// openTestStore connects to PAYTRACKR_TEST_DATABASE_URL or skips.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("PAYTRACKR_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PAYTRACKR_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testAccount(t *testing.T) string {
	return store.AccountID(t.Name() + time.Now().Format(time.RFC3339Nano))
}

func TestStateRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	acct := testAccount(t)

	got, err := s.LoadState(ctx, acct)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil state for new account, got %+v", got)
	}

	start := time.Date(2026, 3, 4, 9, 0, 0, 0, time.Local)
	if err := s.SaveState(ctx, acct, store.TrackedState{Running: true, StartTime: &start, Revision: 2}); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	// An older revision must not overwrite.
	if err := s.SaveState(ctx, acct, store.TrackedState{Revision: 1}); !errors.Is(err, store.ErrStaleRevision) {
		t.Fatalf("SaveState stale: expected ErrStaleRevision, got %v", err)
	}

	got, err = s.LoadState(ctx, acct)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if got == nil || !got.Running || got.StartTime == nil || !got.StartTime.Equal(start) {
		t.Fatalf("unexpected state %+v", got)
	}
	if got.Revision != 2 {
		t.Errorf("revision = %d, want 2", got.Revision)
	}
}

func TestDailyTotals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	acct := testAccount(t)

	for i, date := range []string{"2026-03-02", "2026-03-04", "2026-03-03"} {
		if err := s.UpsertDailyTotal(ctx, acct, date, decimal.NewFromFloat(10.005), int64(i)); err != nil {
			t.Fatalf("UpsertDailyTotal: %v", err)
		}
	}
	totals, err := s.ListDailyTotals(ctx, acct)
	if err != nil {
		t.Fatalf("ListDailyTotals: %v", err)
	}
	if len(totals) != 3 || totals[0].Date != "2026-03-04" || totals[2].Date != "2026-03-02" {
		t.Fatalf("unexpected order %+v", totals)
	}
	if err := s.UpsertDailyTotal(ctx, acct, "not-a-date", decimal.Zero, 0); err == nil {
		t.Error("expected error for bad date")
	}

	if err := s.DeleteAllDailyTotals(ctx, acct); err != nil {
		t.Fatalf("DeleteAllDailyTotals: %v", err)
	}
	totals, _ = s.ListDailyTotals(ctx, acct)
	if len(totals) != 0 {
		t.Errorf("expected empty history, got %d", len(totals))
	}
}
