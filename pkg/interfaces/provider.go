package interfaces

import "context"

// TokenStream is a lazy, finite sequence of text deltas produced by a
// completion provider. Recv returns io.EOF when generation completes
// normally; any other error means the stream ended abnormally.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// StreamProvider represents an external text-completion service
type StreamProvider interface {
	// StreamChat starts a streaming completion for the given messages
	StreamChat(ctx context.Context, messages []Message) (TokenStream, error)

	// Complete runs a non-streaming completion and returns the full text
	Complete(ctx context.Context, messages []Message) (string, error)

	// Name returns the name of the provider
	Name() string
}
