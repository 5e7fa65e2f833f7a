package relay

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedStream replays a fixed sequence of chunks, then a terminal error
type scriptedStream struct {
	chunks   []string
	terminal     error
	pos      int
	closed   bool
	consumed int
}

func newScriptedStream(terminal error, chunks ...string) *scriptedStream {
	return &scriptedStream{chunks: chunks, terminal: terminal}
}

func (s *scriptedStream) Recv() (string, error) {
	if s.pos >= len(s.chunks) {
		return "", s.terminal
	}
	chunk := s.chunks[s.pos]
	s.pos++
	s.consumed++
	return chunk, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

func collectSink(out *[]string) Sink {
	return func(chunk string) error {
		*out = append(*out, chunk)
		return nil
	}
}

func TestRelayPassesThroughUnderBudget(t *testing.T) {
	stream := newScriptedStream(io.EOF, "Hello", " ", "world")
	var chunks []string

	bounder := NewBounder(WithMaxChars(100))
	emitted, err := bounder.Relay(context.Background(), stream, collectSink(&chunks))

	require.NoError(t, err)
	assert.Equal(t, "Hello world", emitted)
	assert.Equal(t, []string{"Hello", " ", "world"}, chunks)
	assert.True(t, stream.closed)
}

func TestRelayTruncatesAtBudget(t *testing.T) {
	stream := newScriptedStream(io.EOF, "12345", "67890", "never relayed")
	var chunks []string

	bounder := NewBounder(WithMaxChars(8))
	emitted, err := bounder.Relay(context.Background(), stream, collectSink(&chunks))

	require.NoError(t, err)
	assert.Equal(t, "12345678"+Ellipsis, emitted)
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], Ellipsis))

	// the stream is abandoned once the budget is spent
	assert.Equal(t, 2, stream.consumed)
	assert.True(t, stream.closed)
}

func TestRelayNeverExceedsBudget(t *testing.T) {
	stream := newScriptedStream(io.EOF, strings.Repeat("a", 50), strings.Repeat("b", 50))
	var chunks []string

	bounder := NewBounder(WithMaxChars(60))
	emitted, err := bounder.Relay(context.Background(), stream, collectSink(&chunks))

	require.NoError(t, err)
	assert.Len(t, []rune(emitted), 60+len(Ellipsis))
}

func TestRelayNoEllipsisWhenExactlyAtBudget(t *testing.T) {
	stream := newScriptedStream(io.EOF, "12345")
	var chunks []string

	bounder := NewBounder(WithMaxChars(5))
	emitted, err := bounder.Relay(context.Background(), stream, collectSink(&chunks))

	require.NoError(t, err)
	assert.Equal(t, "12345", emitted)
}

func TestRelayEmitsFallbackOnProviderFailure(t *testing.T) {
	stream := newScriptedStream(errors.New("upstream reset"), "partial ")
	var chunks []string

	bounder := NewBounder(WithMaxChars(100))
	emitted, err := bounder.Relay(context.Background(), stream, collectSink(&chunks))

	require.NoError(t, err)
	assert.Equal(t, "partial "+FallbackText, emitted)
	assert.Equal(t, FallbackText, chunks[len(chunks)-1])
}

func TestRelayStopsWhenSinkFails(t *testing.T) {
	stream := newScriptedStream(io.EOF, "one", "two", "three")

	calls := 0
	sink := func(chunk string) error {
		calls++
		if calls == 2 {
			return errors.New("broken pipe")
		}
		return nil
	}

	bounder := NewBounder(WithMaxChars(100))
	emitted, err := bounder.Relay(context.Background(), stream, sink)

	assert.ErrorIs(t, err, ErrClientGone)
	assert.Equal(t, "one", emitted)

	// consumption stops with the failed write
	assert.Equal(t, 2, stream.consumed)
	assert.True(t, stream.closed)
}

func TestRelayStopsOnContextCancellation(t *testing.T) {
	stream := newScriptedStream(io.EOF, "one", "two")
	ctx, cancel := context.WithCancel(context.Background())

	var chunks []string
	sink := func(chunk string) error {
		chunks = append(chunks, chunk)
		cancel()
		return nil
	}

	bounder := NewBounder(WithMaxChars(100))
	emitted, err := bounder.Relay(ctx, stream, sink)

	assert.ErrorIs(t, err, ErrClientGone)
	assert.Equal(t, "one", emitted)
	assert.Equal(t, []string{"one"}, chunks)
}
