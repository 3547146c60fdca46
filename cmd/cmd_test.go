package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/sadopc/paytrackr/internal/clock"
	"github.com/sadopc/paytrackr/internal/earnings"
	"github.com/sadopc/paytrackr/internal/store"
)

// isolate points config, database and log at a temp dir and signs alice in
// through the --account flag.
func isolate(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configPath, accountFlag = "", "alice"
	resetYes, exportFormat, exportOut = false, "csv", ""
	t.Cleanup(func() {
		configPath, accountFlag = "", ""
		resetYes, exportFormat, exportOut = false, "csv", ""
	})

	s, err := store.New(filepath.Join(dir, "paytrackr", "paytrackr.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func run(t *testing.T, fn func(*cobra.Command, []string) error) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&buf)
	err := fn(c, nil)
	return buf.String(), err
}

func TestHistoryList(t *testing.T) {
	s := isolate(t)
	ctx := context.Background()
	account := store.AccountID("alice")
	s.UpsertDailyTotal(ctx, account, "2026-03-02", decimal.RequireFromString("12.63"), 1)
	s.UpsertDailyTotal(ctx, account, "2026-02-27", decimal.RequireFromString("159.98"), 2)
	s.Close()

	out, err := run(t, runHistory)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"2026-03-02", "$ 12.63", "2026-02-27", "$ 172.61"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "2026-03-02") > strings.Index(out, "2026-02-27") {
		t.Error("newest day should come first")
	}
}

func TestHistoryListEmpty(t *testing.T) {
	isolate(t).Close()

	out, err := run(t, runHistory)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No days recorded for alice") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestHistoryResetNeedsConfirmation(t *testing.T) {
	s := isolate(t)
	ctx := context.Background()
	account := store.AccountID("alice")
	s.UpsertDailyTotal(ctx, account, "2026-03-02", decimal.RequireFromString("1"), 1)
	s.Close()

	if _, err := run(t, runHistoryReset); err == nil {
		t.Fatal("reset without --yes should fail")
	}

	resetYes = true
	if _, err := run(t, runHistoryReset); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, runHistory)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No days recorded") {
		t.Fatalf("history should be empty after reset:\n%s", out)
	}
}

func TestHistoryExport(t *testing.T) {
	s := isolate(t)
	s.UpsertDailyTotal(context.Background(), store.AccountID("alice"), "2026-03-02", decimal.RequireFromString("12.63"), 1)
	s.Close()

	exportFormat = "json"
	exportOut = filepath.Join(t.TempDir(), "out.json")
	out, err := run(t, runHistoryExport)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Exported 1 day(s)") {
		t.Fatalf("unexpected output: %q", out)
	}

	exportFormat = "xml"
	if _, err := run(t, runHistoryExport); err == nil {
		t.Fatal("unknown format should fail")
	}
}

func TestStatusFinalizesYesterday(t *testing.T) {
	s := isolate(t)
	y := time.Now().AddDate(0, 0, -1)
	start := time.Date(y.Year(), y.Month(), y.Day(), 8, 0, 0, 0, time.Local)
	err := s.SaveState(context.Background(), store.AccountID("alice"), store.TrackedState{
		Running:   true,
		StartTime: &start,
		Version:   store.StateVersion,
		Revision:  1,
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	out, err := run(t, runStatus)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "finalized") || !strings.Contains(out, "$ 159.98") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, err = run(t, runHistory)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, clock.DateKey(start)) {
		t.Fatalf("finalized day should be stored:\n%s", out)
	}
}

func TestAccountRequired(t *testing.T) {
	isolate(t).Close()
	accountFlag = ""

	if _, err := run(t, runStatus); err == nil {
		t.Fatal("status without an account should fail")
	}
}

func TestPrintStatus(t *testing.T) {
	start := time.Date(2026, 3, 2, 8, 30, 0, 0, time.Local)
	snap := earnings.Snapshot{
		Phase:     earnings.PhaseRunning,
		State:     store.TrackedState{Running: true, UseManual: true, StartTime: &start},
		Earned:    decimal.RequireFromString("12.63"),
		Now:       start.Add(30 * time.Minute),
		WorkStart: time.Date(2026, 3, 2, 8, 0, 0, 0, time.Local),
		WorkEnd:   time.Date(2026, 3, 2, 14, 20, 0, 0, time.Local),
	}

	var buf bytes.Buffer
	printStatus(&buf, "alice", "€", snap)
	out := buf.String()
	for _, want := range []string{"alice", "running", "€ 12.63", "manual 09:00:00", "08:00:00 - 14:20:00", "2026-03-02 08:30:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Stopped") {
		t.Error("running session has no stop time")
	}
}

func TestDefaultExportPath(t *testing.T) {
	got := defaultExportPath("csv", time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	if got != "paytrackr-export-2026-03-02.csv" {
		t.Fatalf("got %q", got)
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	if !strings.HasPrefix(buf.String(), "paytrackr ") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
