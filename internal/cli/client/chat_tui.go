package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxQueryChars = 4000

// Asker sends one chat turn.
type Asker interface {
	Ask(ctx context.Context, sessionID, query string, sourceIDs []string) (*AskResult, error)
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4"))
	advisorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A6E3A1"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#45475A"))
)

type answerMsg struct {
	query  string
	result *AskResult
}

type askFailedMsg struct {
	query string
	err   error
}

// chatModel is the interactive chat screen: transcript on top, input below.
type chatModel struct {
	ctx       context.Context
	asker     Asker
	sessionID string
	sources   []string

	messages []Message
	notes    map[int]string // footer lines keyed by message index
	pending  string
	waiting  bool
	errText  string

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	ready    bool
	width    int
}

func newChatModel(ctx context.Context, asker Asker, session *Session, sources []string) *chatModel {
	input := textarea.New()
	input.Placeholder = "Ask about crypto markets..."
	input.CharLimit = maxQueryChars
	input.ShowLineNumbers = false
	input.SetHeight(3)
	input.KeyMap.InsertNewline.SetEnabled(false)
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &chatModel{
		ctx:       ctx,
		asker:     asker,
		sessionID: session.ID,
		sources:   sources,
		messages:  append([]Message(nil), session.Messages...),
		notes:     map[int]string{},
		input:     input,
		spinner:   sp,
	}
}

func (m *chatModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.submit()
		}

	case answerMsg:
		m.waiting = false
		m.pending = ""
		if len(msg.result.Messages) > 0 {
			m.messages = append(m.messages, msg.result.Messages...)
		} else {
			// Fallback answers are not stored server-side.
			m.messages = append(m.messages,
				Message{Role: "user", Content: msg.query},
				Message{Role: "assistant", Content: msg.result.Answer},
			)
		}
		if note := answerNote(msg.result); note != "" {
			m.notes[len(m.messages)-1] = note
		}
		m.refresh()
		return m, nil

	case askFailedMsg:
		m.waiting = false
		m.pending = ""
		m.errText = friendlyError(msg.err)
		// Give the draft back so nothing typed is lost.
		m.input.SetValue(msg.query)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	if !m.waiting {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *chatModel) submit() tea.Cmd {
	if m.waiting {
		return nil
	}
	query := strings.TrimSpace(m.input.Value())
	if query == "" {
		return nil
	}

	m.waiting = true
	m.pending = query
	m.errText = ""
	m.input.Reset()
	m.refresh()

	ctx, asker, sessionID, sources := m.ctx, m.asker, m.sessionID, m.sources
	ask := func() tea.Msg {
		result, err := asker.Ask(ctx, sessionID, query, sources)
		if err != nil {
			return askFailedMsg{query: query, err: err}
		}
		return answerMsg{query: query, result: result}
	}
	return tea.Batch(m.spinner.Tick, ask)
}

func (m *chatModel) resize(width, height int) {
	m.width = width
	m.input.SetWidth(width)

	// title, blank, separator, status and the input box
	vpHeight := height - m.input.Height() - 4
	if vpHeight < 3 {
		vpHeight = 3
	}
	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.refresh()
}

func (m *chatModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m *chatModel) transcript() string {
	if len(m.messages) == 0 && m.pending == "" {
		return mutedStyle.Render("No messages yet. Type a question and press Enter.")
	}

	body := lipgloss.NewStyle().Width(max(m.width-2, 20))
	var b strings.Builder
	for i, msg := range m.messages {
		label := userStyle.Render("You")
		if msg.Role == "assistant" {
			label = advisorStyle.Render("Advisor")
		}
		b.WriteString(label + "\n" + body.Render(msg.Content) + "\n")
		if note, ok := m.notes[i]; ok {
			b.WriteString(mutedStyle.Render(note) + "\n")
		}
		b.WriteString("\n")
	}
	if m.pending != "" {
		b.WriteString(userStyle.Render("You") + "\n" + body.Render(m.pending) + "\n")
	}
	return b.String()
}

func (m *chatModel) View() string {
	if !m.ready {
		return "Loading..."
	}

	status := mutedStyle.Render("Enter to send, Esc to quit")
	switch {
	case m.waiting:
		status = m.spinner.View() + " Thinking..."
	case m.errText != "":
		status = errorStyle.Render(m.errText)
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s",
		titleStyle.Render("Crypto Advisor"),
		m.viewport.View(),
		separatorStyle.Render(strings.Repeat("─", max(m.width, 1))),
		status,
		m.input.View(),
	)
}

func answerNote(r *AskResult) string {
	var parts []string
	if len(r.Sources) > 0 {
		parts = append(parts, "sources: "+strings.Join(r.Sources, ", "))
	}
	if len(r.News) > 0 {
		parts = append(parts, fmt.Sprintf("%d news articles", len(r.News)))
	}
	return strings.Join(parts, " | ")
}

func friendlyError(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests && apiErr.RetryAfter > 0:
			return fmt.Sprintf("Please wait %d seconds before sending another message.", int(apiErr.RetryAfter.Seconds()))
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return "Please wait before sending another message."
		case apiErr.StatusCode < http.StatusInternalServerError:
			return apiErr.Message
		}
		return "The advisor is unavailable right now. Please try again."
	}
	if errors.Is(err, context.Canceled) {
		return "Request cancelled."
	}
	return "Could not reach the advisor. Check your connection and try again."
}
