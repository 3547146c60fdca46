package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sadopc/paytrackr/internal/store"
)

type jsonExport struct {
	ExportedAt string    `json:"exported_at"`
	Currency   string    `json:"currency"`
	Count      int       `json:"count"`
	Total      string    `json:"total"`
	Days       []jsonDay `json:"days"`
}

type jsonDay struct {
	Date      string `json:"date"`
	Amount    string `json:"amount"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func ToJSON(totals []store.DailyTotal, currency, path string) error {
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Currency:   currency,
		Count:      len(totals),
		Total:      Sum(totals).StringFixed(2),
		Days:       []jsonDay{},
	}

	for _, d := range totals {
		updated := ""
		if !d.UpdatedAt.IsZero() {
			updated = d.UpdatedAt.UTC().Format(time.RFC3339)
		}
		export.Days = append(export.Days, jsonDay{
			Date:      d.Date,
			Amount:    d.Amount.StringFixed(2),
			UpdatedAt: updated,
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
