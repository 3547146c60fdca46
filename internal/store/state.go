package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LoadState returns the account's tracked state, or nil if none was saved yet.
func (s *Store) LoadState(ctx context.Context, accountID string) (*TrackedState, error) {
	var st TrackedState
	var running, useManual int
	var startTime, manualNow, stopTime sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT running, use_manual, start_time, manual_now, stop_time, version, revision
		 FROM tracked_state WHERE account_id = ?`, accountID,
	).Scan(&running, &useManual, &startTime, &manualNow, &stopTime, &st.Version, &st.Revision)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	st.Running = running == 1
	st.UseManual = useManual == 1
	st.StartTime = parseTime(startTime)
	st.ManualNow = parseTime(manualNow)
	st.StopTime = parseTime(stopTime)

	st = st.Normalize()
	return &st, nil
}

// SaveState upserts the account's tracked state. A write older than the
// stored revision is dropped and reported as a *StaleWriteError.
func (s *Store) SaveState(ctx context.Context, accountID string, st TrackedState) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tracked_state
			(account_id, running, use_manual, start_time, manual_now, stop_time, version, revision, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			running    = excluded.running,
			use_manual = excluded.use_manual,
			start_time = excluded.start_time,
			manual_now = excluded.manual_now,
			stop_time  = excluded.stop_time,
			version    = excluded.version,
			revision   = excluded.revision,
			updated_at = excluded.updated_at
		WHERE excluded.revision >= tracked_state.revision`,
		accountID, boolInt(st.Running), boolInt(st.UseManual),
		formatTime(st.StartTime), formatTime(st.ManualNow), formatTime(st.StopTime),
		StateVersion, st.Revision, now,
	)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return s.checkLanded(ctx, res, "tracked_state", st.Revision,
		`SELECT revision FROM tracked_state WHERE account_id = ?`, accountID)
}

// checkLanded turns an upsert that changed no row into a *StaleWriteError
// carrying the revision that won.
func (s *Store) checkLanded(ctx context.Context, res sql.Result, table string, wrote int64, query string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return nil
	}
	var stored int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&stored); err != nil {
		return fmt.Errorf("%s: read stored revision: %w", table, err)
	}
	return &StaleWriteError{Table: table, Stored: stored, Wrote: wrote}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
