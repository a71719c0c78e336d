package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	sqlcli "github.com/semihalev/go-sqlcli"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	queryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	stmt    *sqlcli.Statement
	driver  string
	input   textinput.Model
	history []string
	recall  int
	last    string
	output  string
	err     error
	running bool
	width   int
}

type resultMsg struct {
	query  string
	output string
	err    error
}

func newInteractiveModel(stmt *sqlcli.Statement, driver string) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "SELECT ..."
	ti.Prompt = "sql> "
	ti.Width = 80
	ti.Focus()
	return &interactiveModel{
		stmt:   stmt,
		driver: driver,
		input:  ti,
	}
}

// runInteractive reads statements from a prompt until the user quits. All
// statements run on one Statement so prepare mode can reuse its plan.
func runInteractive(conn sqlcli.Conn, driver string, opts []sqlcli.Option) error {
	stmt := sqlcli.NewStatement(conn, opts...)
	defer stmt.Close()

	_, err := tea.NewProgram(newInteractiveModel(stmt, driver)).Run()
	return err
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) execute(query string) tea.Cmd {
	width := m.width
	return func() tea.Msg {
		out, err := run(m.stmt, query, width)
		return resultMsg{query: query, output: out, err: err}
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 10)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			query := strings.TrimSuffix(strings.TrimSpace(m.input.Value()), ";")
			if query == "" || m.running {
				return m, nil
			}
			m.running = true
			m.history = append(m.history, query)
			m.recall = len(m.history)
			m.input.Reset()
			return m, m.execute(query)

		case "up":
			if m.recall > 0 {
				m.recall--
				m.input.SetValue(m.history[m.recall])
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if m.recall < len(m.history)-1 {
				m.recall++
				m.input.SetValue(m.history[m.recall])
				m.input.CursorEnd()
			} else {
				m.recall = len(m.history)
				m.input.Reset()
			}
			return m, nil
		}

	case resultMsg:
		m.running = false
		m.last = msg.query
		m.output = msg.output
		m.err = msg.err
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("sqlcli"))
	b.WriteString(" ")
	b.WriteString(m.driver)
	b.WriteString("\n\n")

	if m.last != "" {
		b.WriteString(queryStyle.Render(m.last))
		b.WriteString("\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(m.output)
		}
		b.WriteString("\n\n")
	}

	if m.running {
		b.WriteString(helpStyle.Render("running..."))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("enter run • ↑/↓ history • esc quit"))
	return b.String()
}
