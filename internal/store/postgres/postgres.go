// Package postgres keeps tracked state and daily totals in a shared
// PostgreSQL database, so several machines can follow one account.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/sadopc/paytrackr/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

const dateLayout = "2006-01-02"

type Store struct {
	db *sql.DB
}

// Open connects to dsn, checks the connection and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate runs the embedded goose migrations against db.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// LoadState returns the account's tracked state, or nil if none was saved yet.
func (s *Store) LoadState(ctx context.Context, accountID string) (*store.TrackedState, error) {
	var st store.TrackedState
	var startTime, manualNow, stopTime sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT running, use_manual, start_time, manual_now, stop_time, version, revision
		 FROM tracked_state WHERE account_id = $1`, accountID,
	).Scan(&st.Running, &st.UseManual, &startTime, &manualNow, &stopTime, &st.Version, &st.Revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	st.StartTime = localTime(startTime)
	st.ManualNow = localTime(manualNow)
	st.StopTime = localTime(stopTime)

	st = st.Normalize()
	return &st, nil
}

// SaveState upserts the account's tracked state. A write older than the
// stored revision is dropped and reported as a *store.StaleWriteError.
func (s *Store) SaveState(ctx context.Context, accountID string, st store.TrackedState) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tracked_state
			(account_id, running, use_manual, start_time, manual_now, stop_time, version, revision, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (account_id) DO UPDATE SET
			running    = EXCLUDED.running,
			use_manual = EXCLUDED.use_manual,
			start_time = EXCLUDED.start_time,
			manual_now = EXCLUDED.manual_now,
			stop_time  = EXCLUDED.stop_time,
			version    = EXCLUDED.version,
			revision   = EXCLUDED.revision,
			updated_at = EXCLUDED.updated_at
		WHERE EXCLUDED.revision >= tracked_state.revision`,
		accountID, st.Running, st.UseManual,
		nullTime(st.StartTime), nullTime(st.ManualNow), nullTime(st.StopTime),
		store.StateVersion, st.Revision,
	)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return s.checkLanded(ctx, res, "tracked_state", st.Revision,
		`SELECT revision FROM tracked_state WHERE account_id = $1`, accountID)
}

func (s *Store) UpsertDailyTotal(ctx context.Context, accountID, date string, amount decimal.Decimal, revision int64) error {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return fmt.Errorf("upsert daily total: bad date %q: %w", date, err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_totals (account_id, date, amount, revision, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (account_id, date) DO UPDATE SET
			amount     = EXCLUDED.amount,
			revision   = EXCLUDED.revision,
			updated_at = EXCLUDED.updated_at
		WHERE EXCLUDED.revision >= daily_totals.revision`,
		accountID, date, amount.Round(2), revision,
	)
	if err != nil {
		return fmt.Errorf("upsert daily total %s: %w", date, err)
	}
	return s.checkLanded(ctx, res, "daily_totals", revision,
		`SELECT revision FROM daily_totals WHERE account_id = $1 AND date = $2`, accountID, date)
}

func (s *Store) checkLanded(ctx context.Context, res sql.Result, table string, wrote int64, query string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return nil
	}
	var stored int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&stored); err != nil {
		return fmt.Errorf("%s: read stored revision: %w", table, err)
	}
	return &store.StaleWriteError{Table: table, Stored: stored, Wrote: wrote}
}

// ListDailyTotals returns the account's totals, newest date first.
func (s *Store) ListDailyTotals(ctx context.Context, accountID string) ([]store.DailyTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id, date, amount, updated_at FROM daily_totals
		 WHERE account_id = $1 ORDER BY date DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list daily totals: %w", err)
	}
	defer rows.Close()

	var totals []store.DailyTotal
	for rows.Next() {
		var d store.DailyTotal
		var date time.Time
		if err := rows.Scan(&d.AccountID, &date, &d.Amount, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.Date = date.Format(dateLayout)
		totals = append(totals, d)
	}
	return totals, rows.Err()
}

func (s *Store) DeleteAllDailyTotals(ctx context.Context, accountID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM daily_totals WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("delete daily totals: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func localTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.Local()
	return &t
}
