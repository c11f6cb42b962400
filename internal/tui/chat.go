package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ent0n29/enrollassist/internal/conversation"
)

type Styles struct {
	Header    lipgloss.Style
	State     lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Meta      lipgloss.Style
	Chip      lipgloss.Style
	Help      lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2F6FED")),
		State:     lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#7A8194")),
		User:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2F6FED")),
		Assistant: lipgloss.NewStyle().Foreground(lipgloss.Color("#E6E8EF")),
		Meta:      lipgloss.NewStyle().Faint(true),
		Chip:      lipgloss.NewStyle().Foreground(lipgloss.Color("#5FB37C")),
		Help:      lipgloss.NewStyle().Faint(true),
	}
}

type updateMsg conversation.Update

type closedMsg struct{}

// Model is a terminal rendition of the widget bound to one conversation session.
type Model struct {
	conv    *conversation.Session
	updates <-chan conversation.Update
	release func()

	input    textinput.Model
	viewport viewport.Model
	styles   Styles

	turns      []conversation.Turn
	state      conversation.State
	chipCursor int
	width      int
	height     int
	closed     bool
}

func New(conv *conversation.Session) Model {
	updates, release := conv.Subscribe()
	in := textinput.New()
	in.Placeholder = "Ask about admissions, fees, programs..."
	in.Prompt = "> "
	in.CharLimit = 500
	in.Focus()

	return Model{
		conv:     conv,
		updates:  updates,
		release:  release,
		input:    in,
		viewport: viewport.New(80, 20),
		styles:   DefaultStyles(),
		turns:    conv.Turns(),
		state:    conv.State(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listen())
}

// listen waits for the next log update.
func (m Model) listen() tea.Cmd {
	ch := m.updates
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return updateMsg(u)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.release()
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text != "" && m.conv.Submit(text) {
				m.input.SetValue("")
				m.chipCursor = 0
			}
			return m, nil
		case tea.KeyTab:
			if chips := m.suggestions(); len(chips) > 0 {
				m.input.SetValue(chips[m.chipCursor%len(chips)])
				m.input.CursorEnd()
				m.chipCursor++
			}
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-4, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()
		return m, nil
	case updateMsg:
		m.apply(conversation.Update(msg))
		m.refresh()
		return m, m.listen()
	case closedMsg:
		if m.conv.State() != conversation.StateClosed {
			// Fell behind the log; resubscribe and redraw from the current turns.
			m.release()
			m.updates, m.release = m.conv.Subscribe()
			m.turns, m.state = m.conv.Turns(), m.conv.State()
			m.refresh()
			return m, m.listen()
		}
		m.closed = true
		m.state = conversation.StateClosed
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) apply(u conversation.Update) {
	if u.Kind == conversation.UpdateState {
		m.state = u.State
		return
	}
	for i := range m.turns {
		if m.turns[i].ID == u.Turn.ID {
			m.turns[i] = u.Turn
			return
		}
	}
	m.turns = append(m.turns, u.Turn)
}

// suggestions are the follow-ups of the latest completed assistant turn.
func (m Model) suggestions() []string {
	for i := len(m.turns) - 1; i >= 0; i-- {
		t := m.turns[i]
		if t.Role == conversation.RoleAssistant && !t.Revealing {
			return t.Suggestions
		}
	}
	return nil
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTurns())
	m.viewport.GotoBottom()
}

func (m Model) renderTurns() string {
	var sb strings.Builder
	for _, t := range m.turns {
		if t.Role == conversation.RoleUser {
			sb.WriteString(m.styles.User.Render("you: " + t.Text))
			sb.WriteString("\n\n")
			continue
		}
		sb.WriteString(m.styles.Assistant.Render(t.Text))
		sb.WriteString("\n")
		if !t.Revealing {
			if t.Confidence != nil {
				sb.WriteString(m.styles.Meta.Render(fmt.Sprintf("%s · %d%% sure", t.Category, *t.Confidence)))
				sb.WriteString("\n")
			}
			for _, l := range t.Links {
				sb.WriteString(m.styles.Meta.Render(fmt.Sprintf("↗ %s (%s)", l.Label, l.Target)))
				sb.WriteString("\n")
			}
			for _, s := range t.Suggestions {
				sb.WriteString(m.styles.Chip.Render("• " + s))
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) View() string {
	state := string(m.state)
	switch m.state {
	case conversation.StateAwaitingThinkDelay:
		state = "typing..."
	case conversation.StateIdle:
		state = ""
	}
	header := m.styles.Header.Render("Admissions help") + " " + m.styles.State.Render(state)
	help := m.styles.Help.Render("enter send · tab next suggestion · esc quit")
	if m.closed {
		help = m.styles.Help.Render("session closed · esc quit")
	}
	return strings.Join([]string{header, m.viewport.View(), m.input.View(), help}, "\n")
}
