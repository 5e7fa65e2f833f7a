package logging

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is an interface for logging
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
}

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	sessionIDKey contextKey = "session_id"
)

// WithRequestID returns a context carrying the request ID so every log
// line emitted while handling the request can be correlated
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithSessionID returns a context carrying the conversation session ID
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// ZeroLogger implements Logger using zerolog
type ZeroLogger struct {
	logger zerolog.Logger
}

// Option represents an option for configuring the logger
type Option func(*ZeroLogger)

// WithLevel sets the minimum level for emitted log lines
func WithLevel(level string) Option {
	return func(l *ZeroLogger) {
		switch level {
		case "debug":
			l.logger = l.logger.Level(zerolog.DebugLevel)
		case "info":
			l.logger = l.logger.Level(zerolog.InfoLevel)
		case "warn":
			l.logger = l.logger.Level(zerolog.WarnLevel)
		case "error":
			l.logger = l.logger.Level(zerolog.ErrorLevel)
		default:
			l.logger = l.logger.Level(zerolog.InfoLevel)
		}
	}
}

// New creates a new ZeroLogger writing to stdout
func New(options ...Option) *ZeroLogger {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := &ZeroLogger{
		logger: zerolog.New(output).With().Timestamp().Logger(),
	}

	for _, option := range options {
		option(logger)
	}

	return logger
}

// decorate attaches context-derived correlation fields and the caller's
// fields to the event
func decorate(ctx context.Context, event *zerolog.Event, fields map[string]interface{}) *zerolog.Event {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		event = event.Str("request_id", requestID)
	}

	if sessionID, ok := ctx.Value(sessionIDKey).(string); ok {
		event = event.Str("session_id", sessionID)
	}

	for k, v := range fields {
		event = event.Interface(k, v)
	}

	return event
}

// Info logs an info message
func (l *ZeroLogger) Info(ctx context.Context, msg string, fields map[string]interface{}) {
	decorate(ctx, l.logger.Info(), fields).Msg(msg)
}

// Warn logs a warning message
func (l *ZeroLogger) Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	decorate(ctx, l.logger.Warn(), fields).Msg(msg)
}

// Error logs an error message
func (l *ZeroLogger) Error(ctx context.Context, msg string, fields map[string]interface{}) {
	decorate(ctx, l.logger.Error(), fields).Msg(msg)
}

// Debug logs a debug message
func (l *ZeroLogger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	decorate(ctx, l.logger.Debug(), fields).Msg(msg)
}
