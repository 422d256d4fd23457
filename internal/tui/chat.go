// Package tui is a terminal chat for exercising the dialogue engine
// locally, without the messaging provider.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const turnTimeout = 2 * time.Minute

// Responder produces the reply for one message.
type Responder interface {
	Process(ctx context.Context, message, sender string) string
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	userStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	botStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type line struct {
	fromUser bool
	text     string
}

// replyMsg carries the engine's answer back into the update loop.
type replyMsg struct{ text string }

// Model is the bubbletea model of the chat screen.
type Model struct {
	responder Responder
	sender    string

	input    textinput.Model
	viewport viewport.Model
	lines    []line
	waiting  bool
	ready    bool
}

func New(responder Responder, sender string) *Model {
	in := textinput.New()
	in.Placeholder = "Type a message"
	in.CharLimit = 1000
	in.Focus()
	return &Model{
		responder: responder,
		sender:    sender,
		input:     in,
		viewport:  viewport.New(80, 20),
	}
}

func (m *Model) Init() tea.Cmd { return textinput.Blink }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-4, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.submit()
		}

	case replyMsg:
		m.waiting = false
		m.lines = append(m.lines, line{text: msg.text})
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.waiting {
		return nil
	}
	m.input.Reset()
	m.waiting = true
	m.lines = append(m.lines, line{fromUser: true, text: text})
	m.refresh()

	responder, sender := m.responder, m.sender
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
		defer cancel()
		return replyMsg{text: responder.Process(ctx, text, sender)}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m *Model) transcript() string {
	var b strings.Builder
	for _, l := range m.lines {
		if l.fromUser {
			b.WriteString(userStyle.Render("you › "))
		} else {
			b.WriteString(botStyle.Render("bot › "))
		}
		b.WriteString(l.text)
		b.WriteString("\n\n")
	}
	if m.waiting {
		b.WriteString(hintStyle.Render("bot is typing…"))
	}
	return b.String()
}

func (m *Model) View() string {
	header := titleStyle.Render("Smart Rental inquiries") + hintStyle.Render("  as "+m.sender+" · esc to quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View(), m.input.View())
}
