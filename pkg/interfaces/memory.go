package interfaces

import "context"

// Roles for conversation messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single turn in a conversation
type Message struct {
	// Role is the role of the message sender ("system", "user" or "assistant")
	Role string

	// Content is the text content of the message
	Content string
}

// Memory represents a bounded, session-keyed conversation store
type Memory interface {
	// AppendUser appends a user turn to the session's history, trimming
	// the oldest turns when the history exceeds its configured maximum
	AppendUser(ctx context.Context, session, text string) error

	// AppendAssistant appends an assistant turn to the session's history.
	// Empty text is silently dropped so failed or cancelled generations
	// never pollute the history
	AppendAssistant(ctx context.Context, session, text string) error

	// Snapshot returns a copy of the session's current history in order
	Snapshot(ctx context.Context, session string) ([]Message, error)

	// Clear removes the session's history
	Clear(ctx context.Context, session string) error
}
