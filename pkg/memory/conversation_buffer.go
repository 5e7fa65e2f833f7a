package memory

import (
	"context"
	"sync"
	"time"

	"github.com/otic-foundation/chatrelay/pkg/interfaces"
)

// ConversationBuffer implements an in-process bounded conversation store.
// Histories are keyed by session and capped at a fixed number of turns;
// when an append pushes a history past the cap, the oldest turns are
// dropped so the snapshot sent to the provider always reflects the trim.
type ConversationBuffer struct {
	histories map[string][]interfaces.Message
	lastUsed  map[string]time.Time
	maxTurns  int
	mu        sync.RWMutex
}

// Option represents an option for configuring the conversation buffer
type Option func(*ConversationBuffer)

// WithMaxTurns sets the maximum number of turns kept per session
func WithMaxTurns(turns int) Option {
	return func(c *ConversationBuffer) {
		c.maxTurns = turns
	}
}

// NewConversationBuffer creates a new conversation buffer keeping the
// 10 most recent turns per session by default
func NewConversationBuffer(options ...Option) *ConversationBuffer {
	buffer := &ConversationBuffer{
		histories: make(map[string][]interfaces.Message),
		lastUsed:  make(map[string]time.Time),
		maxTurns:  10,
	}

	for _, option := range options {
		option(buffer)
	}

	return buffer
}

// AppendUser appends a user turn to the session's history
func (c *ConversationBuffer) AppendUser(ctx context.Context, session, text string) error {
	c.append(session, interfaces.Message{Role: interfaces.RoleUser, Content: text})
	return nil
}

// AppendAssistant appends an assistant turn to the session's history.
// Empty text is dropped: a blocked, failed or cancelled generation must
// not leave an empty assistant turn behind.
func (c *ConversationBuffer) AppendAssistant(ctx context.Context, session, text string) error {
	if text == "" {
		return nil
	}
	c.append(session, interfaces.Message{Role: interfaces.RoleAssistant, Content: text})
	return nil
}

func (c *ConversationBuffer) append(session string, message interfaces.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	history := append(c.histories[session], message)
	if c.maxTurns > 0 && len(history) > c.maxTurns {
		history = history[len(history)-c.maxTurns:]
	}
	c.histories[session] = history
	c.lastUsed[session] = time.Now()
}

// Snapshot returns a copy of the session's history in order. An unknown
// session yields an empty history.
func (c *ConversationBuffer) Snapshot(ctx context.Context, session string) ([]interfaces.Message, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	history := c.histories[session]
	snapshot := make([]interfaces.Message, len(history))
	copy(snapshot, history)
	return snapshot, nil
}

// Clear removes the session's history
func (c *ConversationBuffer) Clear(ctx context.Context, session string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.histories, session)
	delete(c.lastUsed, session)
	return nil
}

// SweepIdle removes sessions that have not been touched since the
// cutoff. Histories otherwise accumulate for every session ever seen
// during the process lifetime.
func (c *ConversationBuffer) SweepIdle(now time.Time, idleFor time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.Add(-idleFor)
	removed := 0
	for session, used := range c.lastUsed {
		if !used.After(cutoff) {
			delete(c.histories, session)
			delete(c.lastUsed, session)
			removed++
		}
	}

	return removed
}

// Sessions returns the number of sessions currently stored
func (c *ConversationBuffer) Sessions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.histories)
}
