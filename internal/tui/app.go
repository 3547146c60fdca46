package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/paytrackr/internal/earnings"
	"github.com/sadopc/paytrackr/internal/export"
	"github.com/sadopc/paytrackr/internal/logger"
	"github.com/sadopc/paytrackr/internal/store"
)

const defaultManualTime = "08:00:00"

// Prefs remembers small UI choices between runs.
type Prefs interface {
	GetSetting(ctx context.Context, key, fallback string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

type Options struct {
	Tracker  *earnings.Tracker
	Store    earnings.Store
	Prefs    Prefs
	Log      *logger.Logger
	Currency string
	// Account signs in at startup when set; otherwise the sign-in form opens.
	Account string
}

// App is the root Bubble Tea model. Its Update loop is the only caller of
// the tracker, so tracker transitions never run concurrently.
type App struct {
	tracker *earnings.Tracker
	store   earnings.Store
	prefs   Prefs
	log     *logger.Logger

	width  int
	height int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	autoAccount string
	accountName string
	ready       bool // the signed-in account's saved state has been restored

	signIn    signInModel
	dashboard dashboardModel
	history   historyModel

	help   help.Model
	status string
}

func NewApp(opts Options) App {
	h := help.New()
	h.ShowAll = false

	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}
	currency := opts.Currency
	if currency == "" {
		currency = "$"
	}
	tr := opts.Tracker
	if tr == nil {
		tr = earnings.NewTracker(earnings.DefaultSettings(), nil, log, nil)
	}

	return App{
		tracker:     tr,
		store:       opts.Store,
		prefs:       opts.Prefs,
		log:         log,
		activeView:  viewTracker,
		autoAccount: opts.Account,
		signIn:      newSignInModel(),
		dashboard:   newDashboardModel(currency),
		history:     newHistoryModel(currency),
		help:        h,
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.loadPrefs(),
		tickCmd(),
	)
}

func (a App) loadPrefs() tea.Cmd {
	prefs := a.prefs
	return func() tea.Msg {
		if prefs == nil {
			return prefsLoadedMsg{manualTime: defaultManualTime}
		}
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		last, _ := prefs.GetSetting(ctx, store.SettingLastAccount, "")
		manual, _ := prefs.GetSetting(ctx, store.SettingManualTime, defaultManualTime)
		return prefsLoadedMsg{lastAccount: last, manualTime: manual}
	}
}

func (a App) savePref(k, v string) tea.Cmd {
	prefs := a.prefs
	if prefs == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := prefs.SetSetting(ctx, k, v); err != nil {
			return statusMsg{text: fmt.Sprintf("Could not save %s: %v", k, err), isError: true}
		}
		return nil
	}
}

func (a App) signedIn() bool {
	return a.tracker.Account() != ""
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.signIn.setSize(a.width, contentHeight)
		a.dashboard.setSize(a.width, contentHeight)
		a.history.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Quit):
			return a.quit()
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		}

		if !a.signedIn() || !a.ready {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Tab1):
			a.activeView = viewTracker
			return a, nil
		case key.Matches(msg, keys.Tab2):
			a.activeView = viewHistory
			return a, loadHistoryCmd(a.store, a.tracker.Account())
		case key.Matches(msg, keys.Tab):
			a.activeView = (a.activeView + 1) % viewState(len(viewNames))
			if a.activeView == viewHistory {
				return a, loadHistoryCmd(a.store, a.tracker.Account())
			}
			return a, nil
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		}

		if a.activeView == viewTracker {
			return a.handleTrackerKey(msg)
		}

	case tickMsg:
		return a, tickCmd()

	case prefsLoadedMsg:
		*a.dashboard.manualTime = msg.manualTime
		if a.autoAccount != "" {
			name := a.autoAccount
			a.autoAccount = ""
			return a.beginSession(name)
		}
		var cmd tea.Cmd
		a.signIn, cmd = a.signIn.show(msg.lastAccount)
		return a, cmd

	case signedInMsg:
		return a.beginSession(msg.name)

	case restoreLoadedMsg:
		return a.restore(msg)

	case retryLoadMsg:
		if msg.account != a.tracker.Account() || a.ready || a.store == nil {
			return a, nil
		}
		return a, loadStateCmd(a.store, msg.account)

	case driverTickMsg:
		keep := a.tracker.Tick(msg.driver)
		a.status = a.tracker.Snapshot().Status
		cmds := []tea.Cmd{a.flush()}
		if keep {
			cmds = append(cmds, driverCmd(msg.driver, a.tracker.Settings().Tick))
		}
		return a, tea.Batch(cmds...)

	case persistDoneMsg:
		return a.persisted(msg)

	case manualTimeEnteredMsg:
		return a.applyManualTime(msg.value)

	case historyLoadedMsg:
		if msg.account != a.tracker.Account() {
			return a, nil
		}
		if msg.err != nil {
			a.log.Error("list daily totals failed", "account", msg.account, "error", msg.err)
		}
		var cmd tea.Cmd
		a.history, cmd = a.history.update(msg)
		return a, cmd

	case historyResetConfirmedMsg:
		if !a.signedIn() || a.store == nil {
			return a, nil
		}
		return a, resetHistoryCmd(a.store, a.tracker.Account())

	case historyResetMsg:
		if msg.err != nil {
			a.log.Error("delete daily totals failed", "account", a.tracker.Account(), "error", msg.err)
			a.status = "Could not clear history: " + msg.err.Error()
			return a, nil
		}
		a.log.Info("history cleared", "account", a.tracker.Account())
		a.status = "History cleared"
		return a, loadHistoryCmd(a.store, a.tracker.Account())

	case statusMsg:
		a.status = msg.text
		return a, nil

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.exportPicking = false
		return a, nil
	}

	return a.updateActiveView(msg)
}

// beginSession signs name in and loads its saved state. Tracker keys are
// ignored until the restore lands.
func (a App) beginSession(name string) (tea.Model, tea.Cmd) {
	account := store.AccountID(name)
	a.tracker.SignIn(account)
	a.accountName = name
	a.ready = false
	a.activeView = viewTracker
	a.history.totals = nil
	a.history.offset = 0
	a.status = "Loading " + name + "..."

	var load tea.Cmd
	if a.store != nil {
		load = loadStateCmd(a.store, account)
	} else {
		load = func() tea.Msg { return restoreLoadedMsg{account: account} }
	}
	return a, tea.Batch(load, a.savePref(store.SettingLastAccount, name))
}

func (a App) restore(msg restoreLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.account != a.tracker.Account() {
		// Signed out or switched accounts while loading.
		return a, nil
	}
	if msg.err != nil {
		// Tracker keys stay gated until a load succeeds.
		a.log.Error("load state failed", "account", msg.account, "error", msg.err)
		a.status = "Could not load saved state, retrying"
		return a, retryLoadCmd(msg.account)
	}

	drv := a.tracker.Restore(msg.state)
	a.ready = true
	a.status = a.tracker.Snapshot().Status
	return a, tea.Batch(a.flush(), a.startDriver(drv), loadHistoryCmd(a.store, msg.account))
}

func (a App) signOut() (tea.Model, tea.Cmd) {
	flush := a.flush()
	a.tracker.SignOut()
	a.ready = false
	a.status = a.tracker.Snapshot().Status
	a.history.totals = nil

	var cmd tea.Cmd
	a.signIn, cmd = a.signIn.show(a.accountName)
	a.accountName = ""
	return a, tea.Batch(flush, cmd)
}

// quit saves a running session's latest instant before exiting.
func (a App) quit() (tea.Model, tea.Cmd) {
	a.tracker.Checkpoint()
	if a.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := earnings.Flush(ctx, a.store, a.tracker); err != nil {
			a.log.Error("final save failed", "error", err)
		}
	}
	return a, tea.Quit
}

func (a App) handleTrackerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := a.tracker.Snapshot()

	switch {
	case key.Matches(msg, keys.Start):
		drv, err := a.tracker.Start(snap.State.UseManual, *a.dashboard.manualTime)
		a.status = a.tracker.Snapshot().Status
		if err != nil {
			return a, nil
		}
		return a, tea.Batch(a.flush(), a.startDriver(drv))

	case key.Matches(msg, keys.Stop):
		a.tracker.Stop()
		a.status = a.tracker.Snapshot().Status
		return a, a.flush()

	case key.Matches(msg, keys.Reset):
		a.tracker.Reset()
		a.status = a.tracker.Snapshot().Status
		return a, a.flush()

	case key.Matches(msg, keys.Manual):
		on := !snap.State.UseManual
		if err := a.tracker.SetManual(on, *a.dashboard.manualTime); err != nil {
			a.status = err.Error()
			return a, nil
		}
		a.status = a.tracker.Snapshot().Status
		return a, a.flush()

	case key.Matches(msg, keys.SetTime):
		var cmd tea.Cmd
		a.dashboard, cmd = a.dashboard.showTimeForm()
		return a, cmd

	case key.Matches(msg, keys.SignOut):
		return a.signOut()
	}
	return a, nil
}

// applyManualTime moves a selected manual clock, or just remembers the value
// as the seed for the next time manual mode is turned on.
func (a App) applyManualTime(value string) (tea.Model, tea.Cmd) {
	save := a.savePref(store.SettingManualTime, value)
	if !a.tracker.Snapshot().State.UseManual {
		a.status = fmt.Sprintf("Manual time set to %s, press m to use it", value)
		return a, save
	}
	if err := a.tracker.ApplyManualTime(value); err != nil {
		a.status = err.Error()
		return a, save
	}
	a.status = a.tracker.Snapshot().Status
	return a, tea.Batch(save, a.flush())
}

func (a App) persisted(msg persistDoneMsg) (tea.Model, tea.Cmd) {
	wroteDaily := false
	failed := false
	for _, r := range msg.results {
		a.tracker.PersistenceCompleted(r.write, r.err)
		if errors.Is(r.err, store.ErrStaleRevision) {
			continue
		}
		if r.err != nil {
			failed = true
			continue
		}
		if r.write.Kind == earnings.WriteDailyTotal {
			wroteDaily = true
		}
	}
	if failed {
		a.status = a.tracker.Snapshot().Status
	}
	// Stale rejections leave re-issued writes in the outbox.
	cmds := []tea.Cmd{a.flush()}
	if wroteDaily {
		cmds = append(cmds, loadHistoryCmd(a.store, a.tracker.Account()))
	}
	return a, tea.Batch(cmds...)
}

// flush hands the tracker's pending writes to a persistence command.
func (a App) flush() tea.Cmd {
	return persistCmd(a.store, a.tracker.Drain())
}

func (a App) startDriver(d *earnings.Driver) tea.Cmd {
	if d == nil {
		return nil
	}
	return driverCmd(*d, a.tracker.Settings().Tick)
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if !a.signedIn() {
		a.signIn, cmd = a.signIn.update(msg)
		return a, cmd
	}
	switch a.activeView {
	case viewTracker:
		a.dashboard, cmd = a.dashboard.update(msg)
	case viewHistory:
		a.history, cmd = a.history.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	if !a.signedIn() {
		return a.signIn.formActive
	}
	switch a.activeView {
	case viewTracker:
		return a.dashboard.formActive
	case viewHistory:
		return a.history.formActive
	}
	return false
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch {
	case !a.signedIn():
		content = a.signIn.view()
	case a.activeView == viewHistory:
		content = a.history.view()
	default:
		content = a.dashboard.view(a.tracker.Snapshot(), a.accountName)
	}

	// Calculate available height for content
	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := a.height - headerHeight - footerHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("paytrackr")
	if a.accountName != "" {
		title += mutedStyle.Render("  " + a.accountName)
	}
	gap := a.width - lipgloss.Width(title) - lipgloss.Width(tabRow) - 4
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		status = mutedStyle.Render(" " + a.status)
	}

	// Earnings indicator in footer
	earned := ""
	if snap := a.tracker.Snapshot(); snap.Phase == earnings.PhaseRunning {
		earned = successStyle.Render(" ● " + formatMoney(snap.Earned, a.dashboard.currency))
	}

	left := footerStyle.Render(helpView)
	right := earned + status

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

func (a App) renderExportPicker() string {
	title := titleStyle.Render("Export History")
	formats := []string{"CSV", "JSON"}
	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, f := range formats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < 1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(a.exportCursor)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format int) tea.Cmd {
	s := a.store
	account := a.tracker.Account()
	currency := a.dashboard.currency
	return func() tea.Msg {
		if s == nil {
			return statusMsg{text: "Export error: no store", isError: true}
		}
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		totals, err := s.ListDailyTotals(ctx, account)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}

		home, _ := os.UserHomeDir()
		dateStr := time.Now().Format("2006-01-02")

		var path string
		if format == 0 {
			path = filepath.Join(home, fmt.Sprintf("paytrackr-export-%s.csv", dateStr))
			if err := export.ToCSV(totals, currency, path); err != nil {
				return statusMsg{text: fmt.Sprintf("CSV error: %v", err), isError: true}
			}
		} else {
			path = filepath.Join(home, fmt.Sprintf("paytrackr-export-%s.json", dateStr))
			if err := export.ToJSON(totals, currency, path); err != nil {
				return statusMsg{text: fmt.Sprintf("JSON error: %v", err), isError: true}
			}
		}

		return exportDoneMsg{path: path}
	}
}
