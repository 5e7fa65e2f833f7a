package relay

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/otic-foundation/chatrelay/pkg/interfaces"
	"github.com/otic-foundation/chatrelay/pkg/logging"
)

// Sink receives relayed chunks. A non-nil error from the sink means the
// caller has gone away and relaying must stop.
type Sink func(chunk string) error

// Ellipsis is appended when a response is cut off at the budget
const Ellipsis = "..."

// FallbackText is emitted as the final chunk when the provider stream
// fails mid-response. The HTTP response is already streaming at that
// point, so a transport-level error is not an option.
const FallbackText = "I'm sorry, I ran into a problem while answering. Please try again in a moment."

// ErrClientGone is returned when the caller disconnected mid-stream
var ErrClientGone = errors.New("client disconnected during relay")

// Bounder relays a provider token stream to a sink chunk by chunk while
// enforcing a maximum cumulative output size. Chunks are forwarded as
// they arrive; nothing is buffered ahead of the first byte.
type Bounder struct {
	maxChars int
	logger   logging.Logger
}

// BounderOption represents an option for configuring the bounder
type BounderOption func(*Bounder)

// WithMaxChars sets the response budget in characters
func WithMaxChars(maxChars int) BounderOption {
	return func(b *Bounder) {
		b.maxChars = maxChars
	}
}

// WithLogger sets the logger for the bounder
func WithLogger(logger logging.Logger) BounderOption {
	return func(b *Bounder) {
		b.logger = logger
	}
}

// NewBounder creates a bounder with a 1200 character budget by default
func NewBounder(options ...BounderOption) *Bounder {
	bounder := &Bounder{
		maxChars: 1200,
		logger:   logging.New(),
	}

	for _, option := range options {
		option(bounder)
	}

	return bounder
}

// Relay consumes the source stream and forwards each chunk to the sink,
// returning the full text that was emitted.
//
// Termination cases:
//   - normal end of stream: emitted text returned with a nil error
//   - budget exceeded: the final chunk is sliced to the remaining budget,
//     the ellipsis marker is appended, and the source is abandoned
//   - provider failure mid-stream: one fallback sentence is emitted and
//     the relay ends normally from the caller's point of view
//   - caller disconnect (sink error or context cancellation): relaying
//     stops at once, nothing further is consumed, and ErrClientGone is
//     returned so the caller can skip recording the assistant turn
func (b *Bounder) Relay(ctx context.Context, src interfaces.TokenStream, sink Sink) (string, error) {
	defer src.Close()

	var emitted strings.Builder
	count := 0

	for {
		if err := ctx.Err(); err != nil {
			return emitted.String(), ErrClientGone
		}

		chunk, err := src.Recv()
		if errors.Is(err, io.EOF) {
			return emitted.String(), nil
		}
		if err != nil {
			b.logger.Warn(ctx, "Provider stream failed mid-response", map[string]interface{}{
				"emitted_chars": count,
				"error":         err.Error(),
			})
			if sinkErr := sink(FallbackText); sinkErr != nil {
				return emitted.String(), ErrClientGone
			}
			emitted.WriteString(FallbackText)
			return emitted.String(), nil
		}

		runes := []rune(chunk)
		if count+len(runes) > b.maxChars {
			remaining := b.maxChars - count
			if remaining < 0 {
				remaining = 0
			}
			final := string(runes[:remaining]) + Ellipsis
			if sinkErr := sink(final); sinkErr != nil {
				return emitted.String(), ErrClientGone
			}
			emitted.WriteString(final)
			return emitted.String(), nil
		}

		if sinkErr := sink(chunk); sinkErr != nil {
			return emitted.String(), ErrClientGone
		}
		emitted.WriteString(chunk)
		count += len(runes)
	}
}
