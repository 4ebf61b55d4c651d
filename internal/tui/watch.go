// Package tui is traceboard's one concrete UI: a bubbletea program that
// tails a live session, rendering turns as they're assembled and surfacing
// reactor warnings as they fire. It is a thin external consumer of
// internal/runtime — nothing in the core packages knows this exists.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/traceboard/traceboard/internal/assembler"
	"github.com/traceboard/traceboard/internal/reactor"
	"github.com/traceboard/traceboard/internal/runtime"
)

// theme collects the colors used for rendering, matching the
// adaptive-color style of traceboard's teacher lineage.
type theme struct {
	Header    lipgloss.AdaptiveColor
	Dim       lipgloss.AdaptiveColor
	User      lipgloss.AdaptiveColor
	Assistant lipgloss.AdaptiveColor
	Tool      lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor
	Warning   lipgloss.AdaptiveColor
}

func defaultTheme() theme {
	return theme{
		Header:    lipgloss.AdaptiveColor{Light: "#5B21B6", Dark: "#C4B5FD"},
		Dim:       lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"},
		User:      lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#93C5FD"},
		Assistant: lipgloss.AdaptiveColor{Light: "#047857", Dark: "#6EE7B7"},
		Tool:      lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"},
		Error:     lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#FCA5A5"},
		Warning:   lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FCD34D"},
	}
}

// updateMsg wraps a runtime.Update for delivery into the bubbletea loop.
type updateMsg struct {
	update runtime.Update
	ok     bool
}

// model drives the watch view.
type model struct {
	sessionID string
	updates   <-chan runtime.Update

	theme    theme
	renderer *glamour.TermRenderer

	body     viewport.Model
	status   string
	warnings []string

	width, height int
	attached      bool
	displayName   string
	quitting      bool
}

// Run starts the watch UI for one session, blocking until the user quits.
// When the coordinator's update channel closes, the view stays open and
// shows a disconnected status.
func Run(sessionID string, updates <-chan runtime.Update) error {
	renderer, _ := glamour.NewTermRenderer(glamour.WithAutoStyle())
	m := &model{
		sessionID: sessionID,
		updates:   updates,
		theme:     defaultTheme(),
		renderer:  renderer,
		body:      viewport.New(80, 20),
		status:    "waiting for events...",
	}
	program := tea.NewProgram(m, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func (m *model) Init() tea.Cmd {
	return m.listen()
}

func (m *model) listen() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.updates
		return updateMsg{update: update, ok: ok}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = typed.Width, typed.Height
		headerHeight := 2
		footerHeight := 2
		m.body.Width = typed.Width
		m.body.Height = typed.Height - headerHeight - footerHeight
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.body, cmd = m.body.Update(typed)
		return m, cmd
	case updateMsg:
		if !typed.ok {
			m.status = "session disconnected"
			return m, nil
		}
		m.applyUpdate(typed.update)
		return m, m.listen()
	}
	return m, nil
}

func (m *model) applyUpdate(update runtime.Update) {
	switch update.Type {
	case runtime.Attached:
		m.attached = true
		m.displayName = update.DisplayName
		m.status = fmt.Sprintf("attached to %s", update.DisplayName)
	case runtime.StateUpdated:
		m.status = m.renderStatus(update.State)
		if update.Session != nil {
			m.body.SetContent(m.renderSession(update.Session))
			m.body.GotoBottom()
		}
	case runtime.Reaction:
		line := fmt.Sprintf("[%s] %s: %s", time.Now().Format("15:04:05"), update.ReactorName, update.Reaction.Reason)
		m.warnings = append(m.warnings, line)
		if len(m.warnings) > 5 {
			m.warnings = m.warnings[len(m.warnings)-5:]
		}
	case runtime.Disconnected:
		m.status = fmt.Sprintf("disconnected: %s", update.Reason)
	}
}

func (m *model) renderStatus(state *reactor.SessionState) string {
	if state == nil {
		return m.status
	}
	return fmt.Sprintf("turns=%d errors=%d model=%s tokens=%d",
		state.TurnCount, state.ErrorCount, state.Model, state.Usage.TotalTokens)
}

func (m *model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Initializing..."
	}

	header := lipgloss.NewStyle().Bold(true).Foreground(m.theme.Header).
		Render(fmt.Sprintf("traceboard watch · session %s", m.sessionID))

	statusLine := lipgloss.NewStyle().Foreground(m.theme.Dim).Render(m.status)

	var warnLines []string
	for _, w := range m.warnings {
		warnLines = append(warnLines, lipgloss.NewStyle().Foreground(m.theme.Warning).Render(w))
	}
	footer := strings.Join(warnLines, "\n")
	if footer == "" {
		footer = lipgloss.NewStyle().Foreground(m.theme.Dim).Render("no reactions yet")
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, statusLine, m.body.View(), footer)
}

// renderSession renders assembled turns as a scrollback, using glamour for
// message/reasoning text when a renderer is available.
func (m *model) renderSession(sess *assembler.Session) string {
	var b strings.Builder
	for i, turn := range sess.Turns {
		turnHeader := lipgloss.NewStyle().Bold(true).Foreground(m.theme.User).
			Render(fmt.Sprintf("Turn %d — %s", i+1, turn.Timestamp.Format(time.Kitchen)))
		b.WriteString(turnHeader)
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(m.theme.User).Render("> " + turn.User.Content))
		b.WriteString("\n\n")

		for _, step := range turn.Steps {
			if step.Reasoning != nil {
				b.WriteString(m.renderMarkdown(step.Reasoning.Content, m.theme.Dim))
				b.WriteString("\n")
			}
			for _, exec := range step.Tools {
				b.WriteString(m.renderToolExecution(exec))
			}
			if step.Message != nil {
				b.WriteString(m.renderMarkdown(step.Message.Content, m.theme.Assistant))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *model) renderToolExecution(exec assembler.ToolExecution) string {
	style := lipgloss.NewStyle().Foreground(m.theme.Tool)
	if exec.IsError {
		style = lipgloss.NewStyle().Foreground(m.theme.Error)
	}
	status := "running"
	if exec.Result != nil {
		status = "ok"
		if exec.IsError {
			status = "error"
		}
	}
	return style.Render(fmt.Sprintf("  tool %s (%s)\n", exec.Call.Content.Name, status))
}

func (m *model) renderMarkdown(content string, color lipgloss.AdaptiveColor) string {
	if m.renderer != nil {
		if rendered, err := m.renderer.Render(content); err == nil {
			return rendered
		}
	}
	return lipgloss.NewStyle().Foreground(color).Render(content)
}
