package chat

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ai776/daily-picks/internal/ai"
	"github.com/ai776/daily-picks/internal/events"
	"github.com/ai776/daily-picks/internal/logger"
)

var (
	ErrTurnInProgress = errors.New("a reply is still in progress")
	ErrEmptyMessage   = errors.New("message is empty")
)

// State of a message within a turn.
type State string

const (
	StateIdle                  State = "idle"
	StateAwaitingFirstFragment State = "awaiting-first-fragment"
	StateStreaming             State = "streaming"
	StateSettled               State = "settled"
)

type Message struct {
	ID        string    `json:"id"`
	Role      ai.Role   `json:"role"`
	Text      string    `json:"text"`
	State     State     `json:"state"`
	Failed    bool      `json:"failed,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// InProgress is true until the reply settles.
func (m Message) InProgress() bool {
	return m.State == StateAwaitingFirstFragment || m.State == StateStreaming
}

// Streamer produces reply fragments. Implemented by ai.Gateway.
type Streamer interface {
	StreamChatReply(ctx context.Context, history []ai.Turn, message, portfolioContext string, exchangeRate float64) iter.Seq2[string, error]
}

// ContextProvider supplies the portfolio conditioning for each turn.
type ContextProvider interface {
	ContextJSON() string
	ExchangeRate() float64
}

// Session is one conversation. At most one turn runs at a time.
type Session struct {
	mu       sync.Mutex
	messages []Message
	busy     bool

	streamer     Streamer
	portfolio    ContextProvider
	events       events.Publisher
	errorMessage string
	now          func() time.Time
	logger       *logger.Logger
}

func NewSession(streamer Streamer, portfolio ContextProvider, pub events.Publisher, errorMessage string, log *logger.Logger) *Session {
	return &Session{
		streamer:     streamer,
		portfolio:    portfolio,
		events:       pub,
		errorMessage: errorMessage,
		now:          time.Now,
		logger:       log,
	}
}

// Busy reports whether a turn is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// State is the turn state: idle, or the state of the reply in flight.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.busy || len(s.messages) == 0 {
		return StateIdle
	}
	return s.messages[len(s.messages)-1].State
}

// History returns a copy of all messages, oldest first.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Send runs one turn. onUpdate, if non-nil, is called with the assistant
// message after every state change. The returned message is settled; a
// stream failure is reported through its Failed flag, not as an error.
func (s *Session) Send(ctx context.Context, text string, onUpdate func(Message)) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return Message{}, ErrTurnInProgress
	}
	s.busy = true

	history := make([]ai.Turn, 0, len(s.messages))
	for _, m := range s.messages {
		if m.Failed {
			continue
		}
		history = append(history, ai.Turn{Role: m.Role, Text: m.Text})
	}

	user := Message{ID: uuid.NewString(), Role: ai.RoleUser, Text: text, State: StateSettled, CreatedAt: s.now()}
	reply := Message{ID: uuid.NewString(), Role: ai.RoleAssistant, State: StateAwaitingFirstFragment, CreatedAt: s.now()}
	s.messages = append(s.messages, user, reply)
	idx := len(s.messages) - 1
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	s.notify(user, nil)
	s.notify(reply, onUpdate)

	var sb strings.Builder
	var streamErr error
	for frag, err := range s.streamer.StreamChatReply(ctx, history, text, s.portfolio.ContextJSON(), s.portfolio.ExchangeRate()) {
		if err != nil {
			streamErr = err
			break
		}
		sb.WriteString(frag)
		reply = s.update(idx, func(m *Message) {
			m.Text = sb.String()
			m.State = StateStreaming
		})
		s.notify(reply, onUpdate)
	}

	if streamErr != nil {
		s.logger.Error("chat reply failed", "error", streamErr)
		reply = s.update(idx, func(m *Message) {
			m.Text = s.errorMessage
			m.State = StateSettled
			m.Failed = true
		})
	} else {
		reply = s.update(idx, func(m *Message) { m.State = StateSettled })
		s.logger.Info("chat reply settled", "length", len(reply.Text))
	}
	s.notify(reply, onUpdate)
	return reply, nil
}

func (s *Session) update(idx int, fn func(*Message)) Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.messages[idx])
	return s.messages[idx]
}

func (s *Session) notify(m Message, onUpdate func(Message)) {
	if onUpdate != nil {
		onUpdate(m)
	}
	if s.events != nil {
		s.events.Publish(events.Event{Kind: events.ChatUpdated, At: s.now(), Payload: m})
	}
}
