package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAsker struct {
	mock.Mock
}

func (m *MockAsker) Ask(ctx context.Context, sessionID, query string, sourceIDs []string) (*AskResult, error) {
	args := m.Called(ctx, sessionID, query, sourceIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AskResult), args.Error(1)
}

func newTestChatModel(asker Asker, history ...Message) *chatModel {
	m := newChatModel(context.Background(), asker, &Session{ID: "s1", Messages: history}, nil)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return m
}

func typeText(m *chatModel, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

// runAsk executes the batch returned by submit and feeds the ask result back.
func runAsk(t *testing.T, m *chatModel, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	for _, c := range batch {
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case answerMsg, askFailedMsg:
			m.Update(msg)
		}
	}
}

func TestChatModel_InitialState(t *testing.T) {
	m := newChatModel(context.Background(), nil, &Session{ID: "s1"}, nil)

	assert.Equal(t, "Loading...", m.View())
	assert.NotNil(t, m.Init())

	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.True(t, m.ready)
	assert.Contains(t, m.View(), "No messages yet")
}

func TestChatModel_ShowsHistory(t *testing.T) {
	m := newTestChatModel(nil,
		Message{Role: "user", Content: "What is ETH?"},
		Message{Role: "assistant", Content: "Ethereum is a smart contract platform."},
	)

	view := m.View()
	assert.Contains(t, view, "What is ETH?")
	assert.Contains(t, view, "Ethereum is a smart contract platform.")
}

func TestChatModel_EmptyInputIsIgnored(t *testing.T) {
	asker := new(MockAsker)
	m := newTestChatModel(asker)

	typeText(m, "   ")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.False(t, m.waiting)
	asker.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChatModel_AskAppendsTurn(t *testing.T) {
	asker := new(MockAsker)
	asker.On("Ask", mock.Anything, "s1", "Is BTC a good buy?", []string(nil)).Return(&AskResult{
		Answer:  "It depends on your risk tolerance.",
		Sources: []string{"btc.pdf"},
		Messages: []Message{
			{Seq: 1, Role: "user", Content: "Is BTC a good buy?"},
			{Seq: 2, Role: "assistant", Content: "It depends on your risk tolerance."},
		},
	}, nil)
	m := newTestChatModel(asker)

	typeText(m, "Is BTC a good buy?")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.True(t, m.waiting)
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), "Thinking...")

	runAsk(t, m, cmd)

	assert.False(t, m.waiting)
	require.Len(t, m.messages, 2)
	view := m.View()
	assert.Contains(t, view, "It depends on your risk tolerance.")
	assert.Contains(t, view, "sources: btc.pdf")
	asker.AssertExpectations(t)
}

func TestChatModel_FallbackKeptLocally(t *testing.T) {
	asker := new(MockAsker)
	asker.On("Ask", mock.Anything, "s1", "something blocked", []string(nil)).
		Return(&AskResult{Answer: "I can't help with that request.", Fallback: true}, nil)
	m := newTestChatModel(asker)

	typeText(m, "something blocked")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	runAsk(t, m, cmd)

	require.Len(t, m.messages, 2)
	assert.Equal(t, "user", m.messages[0].Role)
	assert.Equal(t, "I can't help with that request.", m.messages[1].Content)
}

func TestChatModel_RateLimitedKeepsDraft(t *testing.T) {
	asker := new(MockAsker)
	asker.On("Ask", mock.Anything, "s1", "again", []string(nil)).
		Return(nil, &APIError{StatusCode: http.StatusTooManyRequests, RetryAfter: 4 * time.Second})
	m := newTestChatModel(asker)

	typeText(m, "again")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	runAsk(t, m, cmd)

	assert.False(t, m.waiting)
	assert.Empty(t, m.messages)
	assert.Equal(t, "again", m.input.Value())
	assert.Contains(t, m.View(), "Please wait 4 seconds")
}

func TestChatModel_QuitKeys(t *testing.T) {
	for _, key := range []tea.KeyType{tea.KeyCtrlC, tea.KeyEsc} {
		m := newTestChatModel(nil)
		_, cmd := m.Update(tea.KeyMsg{Type: key})
		require.NotNil(t, cmd)
		assert.Equal(t, tea.QuitMsg{}, cmd())
	}
}

func TestFriendlyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rate limited", &APIError{StatusCode: 429, RetryAfter: 2 * time.Second}, "Please wait 2 seconds before sending another message."},
		{"rate limited without hint", &APIError{StatusCode: 429}, "Please wait before sending another message."},
		{"validation", &APIError{StatusCode: 400, Message: "query cannot be empty"}, "query cannot be empty"},
		{"server", &APIError{StatusCode: 502, Message: "completion request failed"}, "The advisor is unavailable right now. Please try again."},
		{"cancelled", context.Canceled, "Request cancelled."},
		{"network", errors.New("dial tcp: refused"), "Could not reach the advisor. Check your connection and try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, friendlyError(tt.err))
		})
	}
}
