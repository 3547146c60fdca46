package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// UpsertDailyTotal creates or replaces the total for (account, date). The
// amount is stored with two decimals. A write older than the stored revision
// is dropped and reported as a *StaleWriteError.
func (s *Store) UpsertDailyTotal(ctx context.Context, accountID, date string, amount decimal.Decimal, revision int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_totals (account_id, date, amount, revision, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id, date) DO UPDATE SET
			amount     = excluded.amount,
			revision   = excluded.revision,
			updated_at = excluded.updated_at
		WHERE excluded.revision >= daily_totals.revision`,
		accountID, date, amount.Round(2).StringFixed(2), revision, now,
	)
	if err != nil {
		return fmt.Errorf("upsert daily total %s: %w", date, err)
	}
	return s.checkLanded(ctx, res, "daily_totals", revision,
		`SELECT revision FROM daily_totals WHERE account_id = ? AND date = ?`, accountID, date)
}

// ListDailyTotals returns the account's totals, newest date first.
func (s *Store) ListDailyTotals(ctx context.Context, accountID string) ([]DailyTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id, date, amount, updated_at FROM daily_totals
		 WHERE account_id = ? ORDER BY date DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list daily totals: %w", err)
	}
	defer rows.Close()

	var totals []DailyTotal
	for rows.Next() {
		var d DailyTotal
		var amount, updatedAt string
		if err := rows.Scan(&d.AccountID, &d.Date, &amount, &updatedAt); err != nil {
			return nil, err
		}
		d.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount for %s: %w", d.Date, err)
		}
		d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		totals = append(totals, d)
	}
	return totals, rows.Err()
}

// DeleteAllDailyTotals removes the account's whole history.
func (s *Store) DeleteAllDailyTotals(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM daily_totals WHERE account_id = ?`, accountID)
	if err != nil {
		return fmt.Errorf("delete daily totals: %w", err)
	}
	return nil
}
