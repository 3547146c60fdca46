package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

type signInModel struct {
	width  int
	height int

	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	name *string
}

func newSignInModel() signInModel {
	n := ""
	return signInModel{name: &n}
}

func (m *signInModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

func (m signInModel) show(prefill string) (signInModel, tea.Cmd) {
	*m.name = prefill
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Account").
				Description("Earnings and history are kept per account").
				Value(m.name).
				Validate(validateAccount),
		),
	).WithShowHelp(true).WithShowErrors(true)

	m.formActive = true
	return m, m.form.Init()
}

func validateAccount(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("account name is required")
	}
	return nil
}

func (m signInModel) update(msg tea.Msg) (signInModel, tea.Cmd) {
	if !m.formActive || m.form == nil {
		if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, keys.Enter) {
			return m.show(*m.name)
		}
		return m, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, keys.Back) {
		m.formActive = false
		m.form = nil
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.formActive = false
		name := strings.TrimSpace(*m.name)
		return m, func() tea.Msg { return signedInMsg{name: name} }
	case huh.StateAborted:
		m.formActive = false
		m.form = nil
		return m, nil
	}
	return m, cmd
}

func (m signInModel) view() string {
	w := m.width - 4
	title := titleStyle.Render("Sign in")

	if m.formActive && m.form != nil {
		return activePanelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", m.form.View()),
		)
	}

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("Press enter to sign in"),
		),
	)
}
