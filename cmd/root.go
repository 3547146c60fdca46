package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sadopc/paytrackr/internal/clock"
	"github.com/sadopc/paytrackr/internal/earnings"
	"github.com/sadopc/paytrackr/internal/metrics"
	"github.com/sadopc/paytrackr/internal/tui"
)

var (
	configPath  string
	accountFlag string
)

var rootCmd = &cobra.Command{
	Use:   "paytrackr",
	Short: "Watch your earnings grow while you work",
	Long: `paytrackr accrues earnings at an hourly rate across a fixed daily work
window, either on the wall clock or on a manually driven clock.
Running it without a subcommand opens the terminal dashboard.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <config dir>/paytrackr/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&accountFlag, "account", "", "account to sign in as")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	rec := metrics.NewRecorder()
	if rt.cfg.MetricsAddr != "" {
		srv := metrics.NewServer(rt.cfg.MetricsAddr, rec, rt.log)
		go func() {
			if err := srv.Start(); err != nil {
				rt.log.Error("metrics server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	tracker := earnings.NewTracker(rt.cfg.Settings(), clock.NewSource(nil), rt.log, rec)
	account := accountFlag
	if account == "" {
		account = rt.cfg.Account
	}

	app := tui.NewApp(tui.Options{
		Tracker:  tracker,
		Store:    rt.store,
		Prefs:    rt.local,
		Log:      rt.log,
		Currency: rt.cfg.Currency,
		Account:  account,
	})

	rt.log.Info("starting", "driver", rt.cfg.Store.Driver, "config", rt.cfg.Path)
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run dashboard: %w", err)
	}
	return nil
}
