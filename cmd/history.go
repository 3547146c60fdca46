package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/paytrackr/internal/export"
	"github.com/sadopc/paytrackr/internal/store"
)

var (
	resetYes     bool
	exportFormat string
	exportOut    string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the account's daily totals, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all of the account's daily totals",
	Args:  cobra.NoArgs,
	RunE:  runHistoryReset,
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the account's daily totals to a CSV or JSON file",
	Args:  cobra.NoArgs,
	RunE:  runHistoryExport,
}

func init() {
	historyResetCmd.Flags().BoolVar(&resetYes, "yes", false, "confirm deletion")
	historyExportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv, json")
	historyExportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default paytrackr-export-<date>.<format>)")

	historyCmd.AddCommand(historyResetCmd)
	historyCmd.AddCommand(historyExportCmd)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	name, err := rt.accountName(ctx)
	if err != nil {
		return err
	}
	totals, err := rt.store.ListDailyTotals(ctx, store.AccountID(name))
	if err != nil {
		return fmt.Errorf("list daily totals: %w", err)
	}

	printHistory(cmd.OutOrStdout(), name, rt.cfg.Currency, totals)
	return nil
}

func printHistory(w io.Writer, name, currency string, totals []store.DailyTotal) {
	if len(totals) == 0 {
		fmt.Fprintf(w, "No days recorded for %s.\n", name)
		return
	}
	fmt.Fprintf(w, "%-12s %14s\n", "Date", "Earned")
	for _, d := range totals {
		fmt.Fprintf(w, "%-12s %14s\n", d.Date, currency+" "+d.Amount.StringFixed(2))
	}
	fmt.Fprintf(w, "%-12s %14s\n", "Total", currency+" "+export.Sum(totals).StringFixed(2))
}

func runHistoryReset(cmd *cobra.Command, args []string) error {
	if !resetYes {
		return errors.New("refusing to delete history without --yes")
	}

	ctx := commandContext(cmd)
	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	name, err := rt.accountName(ctx)
	if err != nil {
		return err
	}
	if err := rt.store.DeleteAllDailyTotals(ctx, store.AccountID(name)); err != nil {
		return fmt.Errorf("delete daily totals: %w", err)
	}
	rt.log.Info("history cleared", "account", store.AccountID(name))
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted all daily totals for %s.\n", name)
	return nil
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "csv" && exportFormat != "json" {
		return fmt.Errorf("unknown format %q: want csv or json", exportFormat)
	}

	ctx := commandContext(cmd)
	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	name, err := rt.accountName(ctx)
	if err != nil {
		return err
	}
	totals, err := rt.store.ListDailyTotals(ctx, store.AccountID(name))
	if err != nil {
		return fmt.Errorf("list daily totals: %w", err)
	}

	path := exportOut
	if path == "" {
		path = defaultExportPath(exportFormat, time.Now())
	}
	if exportFormat == "json" {
		err = export.ToJSON(totals, rt.cfg.Currency, path)
	} else {
		err = export.ToCSV(totals, rt.cfg.Currency, path)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d day(s) to %s\n", len(totals), path)
	return nil
}

func defaultExportPath(format string, now time.Time) string {
	return fmt.Sprintf("paytrackr-export-%s.%s", now.Format("2006-01-02"), format)
}
