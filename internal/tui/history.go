package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/paytrackr/internal/earnings"
	"github.com/sadopc/paytrackr/internal/export"
	"github.com/sadopc/paytrackr/internal/store"
)

type historyModel struct {
	width    int
	height   int
	currency string

	totals []store.DailyTotal
	err    error
	offset int

	formActive bool
	form       *huh.Form
	confirm    *bool
}

func newHistoryModel(currency string) historyModel {
	c := false
	return historyModel{currency: currency, confirm: &c}
}

func (h *historyModel) setSize(w, height int) {
	h.width = w
	h.height = height
}

func loadHistoryCmd(s earnings.Store, account string) tea.Cmd {
	if s == nil || account == "" {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		totals, err := s.ListDailyTotals(ctx, account)
		return historyLoadedMsg{account: account, totals: totals, err: err}
	}
}

func resetHistoryCmd(s earnings.Store, account string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		return historyResetMsg{err: s.DeleteAllDailyTotals(ctx, account)}
	}
}

// visibleRows is how many day rows fit below the title and total.
func (h historyModel) visibleRows() int {
	return max(h.height-10, 3)
}

func (h historyModel) update(msg tea.Msg) (historyModel, tea.Cmd) {
	if h.formActive && h.form != nil {
		return h.updateForm(msg)
	}

	switch msg := msg.(type) {
	case historyLoadedMsg:
		h.totals = msg.totals
		h.err = msg.err
		h.offset = min(h.offset, max(len(h.totals)-h.visibleRows(), 0))
		return h, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if h.offset > 0 {
				h.offset--
			}
		case key.Matches(msg, keys.Down):
			if h.offset < len(h.totals)-h.visibleRows() {
				h.offset++
			}
		case key.Matches(msg, keys.ResetHistory):
			return h.showConfirm()
		}
	}
	return h, nil
}

func (h historyModel) showConfirm() (historyModel, tea.Cmd) {
	*h.confirm = false
	h.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Delete all daily totals?").
				Description("This cannot be undone.").
				Affirmative("Delete").
				Negative("Keep").
				Value(h.confirm),
		),
	).WithShowHelp(true)

	h.formActive = true
	return h, h.form.Init()
}

func (h historyModel) updateForm(msg tea.Msg) (historyModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, keys.Back) {
		h.formActive = false
		h.form = nil
		return h, nil
	}

	form, cmd := h.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		h.form = f
	}

	switch h.form.State {
	case huh.StateCompleted:
		h.formActive = false
		h.form = nil
		if *h.confirm {
			return h, func() tea.Msg { return historyResetConfirmedMsg{} }
		}
		return h, nil
	case huh.StateAborted:
		h.formActive = false
		h.form = nil
		return h, nil
	}
	return h, cmd
}

func (h historyModel) view() string {
	w := h.width - 4

	if h.formActive && h.form != nil {
		return activePanelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Clear History"), "", h.form.View()),
		)
	}

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("History"), "  ",
		highlightStyle.Render(formatMoney(export.Sum(h.totals), h.currency)),
		mutedStyle.Render(fmt.Sprintf("  over %d day(s)", len(h.totals))),
	)

	nav := mutedStyle.Render("  ↑/↓: scroll  D: clear history  e: export")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left, header, "", h.renderTable(w), "", nav),
	)
}

func (h historyModel) renderTable(w int) string {
	if h.err != nil {
		return errorStyle.Render("  Could not load history: " + h.err.Error())
	}
	if len(h.totals) == 0 {
		return mutedStyle.Render("  No days recorded yet")
	}

	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-12s %16s", "Date", "Earned")))
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", max(min(w-6, 29), 0))))

	end := min(h.offset+h.visibleRows(), len(h.totals))
	for _, d := range h.totals[h.offset:end] {
		rows = append(rows, normalItemStyle.Render(fmt.Sprintf("  %-12s %16s", d.Date, formatMoney(d.Amount, h.currency))))
	}
	if end < len(h.totals) {
		rows = append(rows, mutedStyle.Render(fmt.Sprintf("  … %d more", len(h.totals)-end)))
	}
	return strings.Join(rows, "\n")
}
