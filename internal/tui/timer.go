package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/paytrackr/internal/earnings"
)

// persistTimeout bounds one batch of store writes.
const persistTimeout = 10 * time.Second

// loadRetryDelay spaces attempts to load saved state after a failure.
const loadRetryDelay = 2 * time.Second

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// driverCmd schedules the next firing of d. A driver that is no longer
// installed when its message arrives is dropped by the tracker.
func driverCmd(d earnings.Driver, every time.Duration) tea.Cmd {
	return tea.Tick(every, func(time.Time) tea.Msg {
		return driverTickMsg{driver: d}
	})
}

// persistCmd applies writes in order off the event loop and reports each
// outcome back as one message.
func persistCmd(s earnings.Store, writes []earnings.Write) tea.Cmd {
	if len(writes) == 0 || s == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		results := make([]persistResult, len(writes))
		for i, w := range writes {
			results[i] = persistResult{write: w, err: earnings.Apply(ctx, s, w)}
		}
		return persistDoneMsg{results: results}
	}
}

func loadStateCmd(s earnings.Store, account string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		st, err := earnings.Load(ctx, s, account)
		return restoreLoadedMsg{account: account, state: st, err: err}
	}
}

func retryLoadCmd(account string) tea.Cmd {
	return tea.Tick(loadRetryDelay, func(time.Time) tea.Msg {
		return retryLoadMsg{account: account}
	})
}
