package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sadopc/paytrackr/internal/config"
	"github.com/sadopc/paytrackr/internal/earnings"
	"github.com/sadopc/paytrackr/internal/logger"
	"github.com/sadopc/paytrackr/internal/store"
	"github.com/sadopc/paytrackr/internal/store/postgres"
)

// runtime holds everything a command needs, opened from the configuration.
type runtime struct {
	cfg *config.Config
	log *logger.Logger

	// local always exists: it keeps UI preferences, and tracker data too
	// unless the postgres driver is selected.
	local *store.Store
	store earnings.Store

	closers []io.Closer
}

func setup(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, logFile, err := logger.OpenFile(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	rt := &runtime{cfg: cfg, log: log, closers: []io.Closer{logFile}}

	local, err := store.New(cfg.Store.Path)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	rt.local = local
	rt.store = local
	rt.closers = append(rt.closers, local)

	if cfg.Store.Driver == config.DriverPostgres {
		pg, err := postgres.Open(ctx, cfg.Store.DSN)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.store = pg
		rt.closers = append(rt.closers, pg)
	}
	return rt, nil
}

// close releases resources in reverse order of opening.
func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil && rt.log != nil {
			rt.log.Warn("close failed", "error", err)
		}
	}
	rt.closers = nil
}

// accountName resolves which account a one-shot command acts on: the
// --account flag, then the configured account, then the last sign-in.
func (rt *runtime) accountName(ctx context.Context) (string, error) {
	if name := strings.TrimSpace(accountFlag); name != "" {
		return name, nil
	}
	if name := strings.TrimSpace(rt.cfg.Account); name != "" {
		return name, nil
	}
	name, err := rt.local.GetSetting(ctx, store.SettingLastAccount, "")
	if err != nil {
		return "", fmt.Errorf("read last account: %w", err)
	}
	if strings.TrimSpace(name) == "" {
		return "", errors.New("no account: pass --account or set account in the config")
	}
	return name, nil
}
