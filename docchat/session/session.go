// Package session drives one user's conversation: the username handshake, user turns
// against the completion gateway, document uploads and resets.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/docchat/docchat/conversation"
	"github.com/ZanzyTHEbar/docchat/docchat/ingest"
)

// ErrorMarker prefixes the assistant turn recorded when a completion fails.
const ErrorMarker = "⚠️ Error: "

// State is the session lifecycle position.
type State string

const (
	StateUninitialized    State = "uninitialized"
	StateAwaitingUsername State = "awaiting_username"
	StateActive           State = "active"
)

var (
	ErrNotActive     = errors.New("session: username not set")
	ErrEmptyUsername = errors.New("session: username is empty")
	ErrUsernameSet   = errors.New("session: username already set")
	ErrEmptyInput    = errors.New("session: message is empty")
)

// Completer answers a full turn sequence with reply text.
type Completer interface {
	Complete(ctx context.Context, turns []conversation.Turn) (string, error)
}

// Ingester appends uploaded documents to a buffer.
type Ingester interface {
	IngestBatch(ctx context.Context, buf *conversation.Buffer, docs []ingest.Document) []ingest.Outcome
}

// Session owns one conversation buffer. All methods are safe for concurrent use and
// run one at a time.
type Session struct {
	mu        sync.Mutex
	id        string
	state     State
	username  string
	buf       *conversation.Buffer
	completer Completer
	ingester  Ingester
	logger    zerolog.Logger
	createdAt time.Time
	lastUsed  atomic.Int64 // unix nanoseconds
}

// New creates an Uninitialized session.
func New(id string, completer Completer, ingester Ingester, logger zerolog.Logger, bufOpts ...conversation.Option) *Session {
	s := &Session{
		id:        id,
		state:     StateUninitialized,
		buf:       conversation.NewBuffer(bufOpts...),
		completer: completer,
		ingester:  ingester,
		logger:    logger.With().Str("session", id).Logger(),
		createdAt: time.Now(),
	}
	s.touch()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

// LastUsed is the time of the last operation that changed the session. It does not wait
// for an in-flight turn.
func (s *Session) LastUsed() time.Time { return time.Unix(0, s.lastUsed.Load()) }

func (s *Session) touch() { s.lastUsed.Store(time.Now().UnixNano()) }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Begin moves an Uninitialized session to AwaitingUsername. Other states are left alone.
func (s *Session) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUninitialized {
		s.state = StateAwaitingUsername
	}
}

// SetUsername activates the session.
func (s *Session) SetUsername(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyUsername
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateActive {
		return ErrUsernameSet
	}
	s.username = name
	s.state = StateActive
	s.touch()
	s.logger.Info().Str("username", name).Msg("session active")
	return nil
}

// ClearUsername drops the username and the whole conversation.
func (s *Session) ClearUsername() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = ""
	s.state = StateUninitialized
	s.buf.Reset()
	s.touch()
	s.logger.Info().Msg("username cleared")
}

// OnUserInput runs one turn cycle and returns the assistant turn. A failed completion is
// recorded as an assistant turn starting with ErrorMarker rather than returned as an error.
// The cycle ignores cancellation of ctx so a user turn is never left without a reply.
func (s *Session) OnUserInput(ctx context.Context, text string) (conversation.Turn, error) {
	if strings.TrimSpace(text) == "" {
		return conversation.Turn{}, ErrEmptyInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return conversation.Turn{}, ErrNotActive
	}
	s.touch()

	s.buf.AppendInstruction(s.username)
	if _, err := s.buf.AppendUser(text); err != nil {
		return conversation.Turn{}, err
	}

	reply, err := s.completer.Complete(context.WithoutCancel(ctx), s.buf.Snapshot())
	if err != nil {
		s.logger.Warn().Err(err).Msg("completion failed")
		reply = ErrorMarker + err.Error()
	}

	return s.buf.AppendAssistant(reply)
}

// OnUpload ingests docs in order. Uploads never add an assistant turn.
func (s *Session) OnUpload(ctx context.Context, docs ...ingest.Document) ([]ingest.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return nil, ErrNotActive
	}
	s.touch()

	s.buf.AppendInstruction(s.username)
	return s.ingester.IngestBatch(ctx, s.buf, docs), nil
}

// OnReset empties the conversation. The username and state are kept; the next
// operation bootstraps a fresh instruction turn.
func (s *Session) OnReset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Reset()
	s.touch()
	s.logger.Info().Msg("conversation reset")
}

// Snapshot returns every turn, as sent to the model.
func (s *Session) Snapshot() []conversation.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Snapshot()
}

// Display returns the user and assistant turns only.
func (s *Session) Display() []conversation.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Display()
}

// IsErrorTurn reports whether t records a failed completion.
func IsErrorTurn(t conversation.Turn) bool {
	return t.Role == conversation.RoleAssistant && strings.HasPrefix(t.Content, ErrorMarker)
}
