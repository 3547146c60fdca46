package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sadopc/paytrackr/internal/clock"
	"github.com/sadopc/paytrackr/internal/earnings"
	"github.com/sadopc/paytrackr/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the account's earnings right now",
	Long: `status restores the account's saved state and prints it. A session whose
work day ended since it was saved is finalized and stored.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
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
	account := store.AccountID(name)

	tracker := earnings.NewTracker(rt.cfg.Settings(), clock.NewSource(nil), rt.log, nil)
	tracker.SignIn(account)

	saved, err := earnings.Load(ctx, rt.store, account)
	if err != nil {
		return err
	}
	tracker.Restore(saved)
	if err := earnings.Flush(ctx, rt.store, tracker); err != nil {
		return err
	}

	printStatus(cmd.OutOrStdout(), name, rt.cfg.Currency, tracker.Snapshot())
	return nil
}

func printStatus(w io.Writer, name, currency string, snap earnings.Snapshot) {
	mode := "real"
	if snap.State.UseManual {
		mode = "manual"
	}

	fmt.Fprintf(w, "Account:     %s\n", name)
	fmt.Fprintf(w, "Phase:       %s\n", snap.Phase)
	fmt.Fprintf(w, "Earned:      %s %s\n", currency, snap.Earned.StringFixed(2))
	fmt.Fprintf(w, "Clock:       %s %s\n", mode, snap.Now.Format("15:04:05"))
	fmt.Fprintf(w, "Work window: %s - %s\n", snap.WorkStart.Format("15:04:05"), snap.WorkEnd.Format("15:04:05"))
	if snap.State.StartTime != nil {
		fmt.Fprintf(w, "Started:     %s\n", snap.State.StartTime.Format("2006-01-02 15:04:05"))
	}
	if snap.State.StopTime != nil {
		fmt.Fprintf(w, "Stopped:     %s\n", snap.State.StopTime.Format("2006-01-02 15:04:05"))
	}
}
