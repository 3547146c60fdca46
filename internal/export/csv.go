package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sadopc/paytrackr/internal/store"
)

// ToCSV writes one row per day, newest first as given, plus a total row.
func ToCSV(totals []store.DailyTotal, currency, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	// Header
	if err := w.Write([]string{"Date", "Amount", "Currency", "Updated"}); err != nil {
		return err
	}

	for _, d := range totals {
		updated := ""
		if !d.UpdatedAt.IsZero() {
			updated = d.UpdatedAt.Local().Format(time.RFC3339)
		}
		row := []string{
			d.Date,
			d.Amount.StringFixed(2),
			currency,
			updated,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	if err := w.Write([]string{"Total", Sum(totals).StringFixed(2), currency, ""}); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

// Sum adds up the daily amounts.
func Sum(totals []store.DailyTotal) decimal.Decimal {
	sum := decimal.Zero
	for _, d := range totals {
		sum = sum.Add(d.Amount)
	}
	return sum
}
