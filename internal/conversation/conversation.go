// Package conversation holds the ordered turn log that is sent to the language model.
package conversation

import (
	"errors"
	"fmt"
	"strings"
)

// Role identifies the author of one turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the log.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

var (
	// ErrEmptyTurn rejects blank user or assistant content.
	ErrEmptyTurn = errors.New("turn content is empty")
	// ErrUnansweredRequired rejects an assistant turn with no open user turn before it.
	ErrUnansweredRequired = errors.New("assistant turn requires an unanswered user turn")
)

// Conversation is the append-only turn log of one session.
//
// It has exactly one system turn, always first. It is owned by a single writer (the turn
// loop) and carries no locking.
type Conversation struct {
	turns  []Turn
	window int
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithWindow limits Snapshot to the system turn plus the last n turns. Zero keeps the
// whole log. The log itself is never pruned.
func WithWindow(n int) Option {
	return func(c *Conversation) {
		if n > 0 {
			c.window = n
		}
	}
}

// New starts a conversation with its system turn.
func New(systemPrompt string, opts ...Option) *Conversation {
	c := &Conversation{
		turns: []Turn{{Role: RoleSystem, Content: systemPrompt}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AppendUser records one user utterance.
func (c *Conversation) AppendUser(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("user: %w", ErrEmptyTurn)
	}
	c.turns = append(c.turns, Turn{Role: RoleUser, Content: text})
	return nil
}

// AppendAssistant records the reply to the most recent user turn.
func (c *Conversation) AppendAssistant(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("assistant: %w", ErrEmptyTurn)
	}
	if c.turns[len(c.turns)-1].Role != RoleUser {
		return ErrUnansweredRequired
	}
	c.turns = append(c.turns, Turn{Role: RoleAssistant, Content: text})
	return nil
}

// Snapshot returns a copy of the turns handed to the model, windowed when configured.
func (c *Conversation) Snapshot() []Turn {
	if c.window == 0 || len(c.turns)-1 <= c.window {
		return c.Turns()
	}

	recent := c.turns[len(c.turns)-c.window:]
	// Never open the window on an assistant turn.
	for len(recent) > 0 && recent[0].Role == RoleAssistant {
		recent = recent[1:]
	}

	out := make([]Turn, 0, len(recent)+1)
	out = append(out, c.turns[0])
	return append(out, recent...)
}

// Turns returns a copy of the full log.
func (c *Conversation) Turns() []Turn {
	return append([]Turn(nil), c.turns...)
}

// Len counts all turns including the system turn.
func (c *Conversation) Len() int {
	return len(c.turns)
}

// System returns the system prompt.
func (c *Conversation) System() string {
	return c.turns[0].Content
}
