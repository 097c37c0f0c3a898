// Package conversation holds the ordered, append-only turn log of one chat session.
package conversation

import (
	"errors"
	"fmt"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleInstruction     Role = "instruction"
	RoleUser            Role = "user"
	RoleAssistant       Role = "assistant"
	RoleDocumentContext Role = "document_context"
)

// DefaultInstructionTemplate is the bootstrap instruction; %s is the username.
const DefaultInstructionTemplate = "You are a personal assistant for %s, help them as best you can."

var (
	ErrNotBootstrapped = errors.New("conversation: buffer has no instruction turn")
	ErrAwaitingReply   = errors.New("conversation: previous user turn has no reply yet")
	ErrNoPendingUser   = errors.New("conversation: no user turn awaiting a reply")
)

// Turn is one atomic unit of conversation. Turns are values; the buffer only hands out copies.
type Turn struct {
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Sequence  int64     `json:"sequence" yaml:"sequence"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Buffer is the append-only turn log. The first turn, when present, is always an instruction.
// A Buffer is not safe for concurrent use; callers serialize access.
type Buffer struct {
	turns    []Turn
	seq      int64
	pending  bool
	template string
	now      func() time.Time
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithInstructionTemplate overrides the bootstrap instruction template.
func WithInstructionTemplate(tmpl string) Option {
	return func(b *Buffer) {
		if tmpl != "" {
			b.template = tmpl
		}
	}
}

// WithClock sets the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Buffer) { b.now = now }
}

// NewBuffer returns an empty buffer.
func NewBuffer(opts ...Option) *Buffer {
	b := &Buffer{
		turns:    make([]Turn, 0, 16),
		template: DefaultInstructionTemplate,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AppendInstruction bootstraps the buffer with the instruction turn for username.
// It reports whether a turn was appended; on a non-empty buffer it does nothing.
func (b *Buffer) AppendInstruction(username string) bool {
	if len(b.turns) > 0 {
		return false
	}
	b.append(RoleInstruction, fmt.Sprintf(b.template, username))
	return true
}

// AppendUser records a user turn. Two user turns never appear without a reply between them.
func (b *Buffer) AppendUser(text string) (Turn, error) {
	if err := b.requireBootstrap(); err != nil {
		return Turn{}, err
	}
	if b.pending {
		return Turn{}, ErrAwaitingReply
	}
	b.pending = true
	return b.append(RoleUser, text), nil
}

// AppendDocumentContext records extracted document text for the model.
func (b *Buffer) AppendDocumentContext(text string) (Turn, error) {
	if err := b.requireBootstrap(); err != nil {
		return Turn{}, err
	}
	if b.pending {
		return Turn{}, ErrAwaitingReply
	}
	return b.append(RoleDocumentContext, text), nil
}

// AppendAssistant records the reply (or error surrogate) to the pending user turn.
func (b *Buffer) AppendAssistant(text string) (Turn, error) {
	if err := b.requireBootstrap(); err != nil {
		return Turn{}, err
	}
	if !b.pending {
		return Turn{}, ErrNoPendingUser
	}
	b.pending = false
	return b.append(RoleAssistant, text), nil
}

// Snapshot returns every turn in order, instruction and document context included.
func (b *Buffer) Snapshot() []Turn {
	out := make([]Turn, len(b.turns))
	copy(out, b.turns)
	return out
}

// Display returns the turns a person should see: user and assistant only.
func (b *Buffer) Display() []Turn {
	out := make([]Turn, 0, len(b.turns))
	for _, t := range b.turns {
		if t.Role == RoleUser || t.Role == RoleAssistant {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of turns.
func (b *Buffer) Len() int { return len(b.turns) }

// AwaitingReply reports whether the last user turn still needs an assistant turn.
func (b *Buffer) AwaitingReply() bool { return b.pending }

// Reset discards all turns. The next operation must bootstrap again.
// Sequence numbers keep counting so no number is ever reused.
func (b *Buffer) Reset() {
	b.turns = b.turns[:0:0]
	b.pending = false
}

func (b *Buffer) requireBootstrap() error {
	if len(b.turns) == 0 {
		return ErrNotBootstrapped
	}
	return nil
}

func (b *Buffer) append(role Role, content string) Turn {
	b.seq++
	t := Turn{Role: role, Content: content, Sequence: b.seq, CreatedAt: b.now()}
	b.turns = append(b.turns, t)
	return t
}
