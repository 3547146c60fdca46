package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/paytrackr/internal/earnings"
)

// dashboardModel renders the tracker and owns the manual-time form.
type dashboardModel struct {
	width    int
	height   int
	currency string

	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	manualTime *string
}

func newDashboardModel(currency string) dashboardModel {
	mt := defaultManualTime
	return dashboardModel{
		currency:   currency,
		manualTime: &mt,
	}
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

func (d dashboardModel) showTimeForm() (dashboardModel, tea.Cmd) {
	d.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Manual time").
				Description("HH:MM or HH:MM:SS on today's date").
				Placeholder(defaultManualTime).
				Value(d.manualTime),
		),
	).WithShowHelp(true).WithShowErrors(true)

	d.formActive = true
	return d, d.form.Init()
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	if !d.formActive || d.form == nil {
		return d, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, keys.Back) {
		d.formActive = false
		d.form = nil
		return d, nil
	}

	form, cmd := d.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		d.form = f
	}

	switch d.form.State {
	case huh.StateCompleted:
		d.formActive = false
		value := strings.TrimSpace(*d.manualTime)
		return d, func() tea.Msg { return manualTimeEnteredMsg{value: value} }
	case huh.StateAborted:
		d.formActive = false
		d.form = nil
		return d, nil
	}
	return d, cmd
}

func (d dashboardModel) view(snap earnings.Snapshot, accountName string) string {
	if d.width < 20 {
		return "Terminal too small"
	}

	w := d.width - 4

	if d.formActive && d.form != nil {
		return activePanelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Manual Time"), "", d.form.View()),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		d.renderEarnedPanel(snap, accountName, w),
		d.renderClockPanel(snap, w),
	)
}

func (d dashboardModel) renderEarnedPanel(snap earnings.Snapshot, accountName string, w int) string {
	amount := formatMoney(snap.Earned, d.currency)

	var display, indicator, hint string
	panel := panelStyle
	switch snap.Phase {
	case earnings.PhaseRunning:
		display = earnedRunningStyle.Width(w - 6).Render(amount)
		indicator = successStyle.Render("●  EARNING")
		panel = activePanelStyle
	case earnings.PhaseFinalized:
		display = earnedFinalStyle.Width(w - 6).Render(amount)
		indicator = warningStyle.Render("✓  DAY FINALIZED")
		hint = mutedStyle.Render("Press r to reset")
	default:
		display = earnedStyle.Width(w - 6).Render(amount)
		indicator = mutedStyle.Render("■  IDLE")
		if snap.State.StopTime != nil {
			indicator = mutedStyle.Render("■  STOPPED")
		}
		hint = mutedStyle.Render("Press s to start earning")
	}

	rows := []string{display, indicator, highlightStyle.Render(accountName)}
	if hint != "" {
		rows = append(rows, hint)
	}
	return panel.Width(w).Render(lipgloss.JoinVertical(lipgloss.Center, rows...))
}

func (d dashboardModel) renderClockPanel(snap earnings.Snapshot, w int) string {
	mode := "REAL"
	if snap.State.UseManual {
		mode = "MANUAL"
	}

	label := lipgloss.NewStyle().Width(14)
	line := func(name, value string) string {
		return "  " + label.Render(name) + value
	}

	rows := []string{
		titleStyle.Render("Clock"),
		line("Mode", highlightStyle.Render(mode)),
		line("Now", formatClock(snap.Now)),
		line("Work window", fmt.Sprintf("%s - %s", formatClock(snap.WorkStart), formatClock(snap.WorkEnd))),
		line("Manual time", *d.manualTime),
	}
	if snap.State.StartTime != nil {
		rows = append(rows, line("Started", formatClock(*snap.State.StartTime)))
	}
	if snap.State.StopTime != nil {
		rows = append(rows, line("Stopped", formatClock(*snap.State.StopTime)))
	}
	if snap.Failures > 0 {
		rows = append(rows, "", errorStyle.Render(fmt.Sprintf("  %d save(s) failed, see log", snap.Failures)))
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
