package chat

import (
	"context"
	"errors"
	"time"

	"github.com/otic-foundation/chatrelay/pkg/guardrails"
	"github.com/otic-foundation/chatrelay/pkg/interfaces"
	"github.com/otic-foundation/chatrelay/pkg/logging"
	"github.com/otic-foundation/chatrelay/pkg/memory"
	"github.com/otic-foundation/chatrelay/pkg/relay"
)

// DefaultPersona is the system prompt sent ahead of every conversation
const DefaultPersona = `You are a helpful and knowledgeable AI assistant for the Otic Foundation.
The Otic Foundation is a social enterprise in Uganda dedicated to leveraging Artificial Intelligence (AI) for societal impact.
It is officially endorsed by the Ugandan Ministry of ICT & National Guidance.
Mission: Democratize access to AI knowledge and emerging technologies through grassroots advocacy, free skilling initiatives, and community-driven programs.
Goal: Raise 3 million AI talents and create 1 million AI-centric jobs in Uganda by 2030.
Key Initiatives:
- National Free AI Skilling Initiative: Training in ML, Data Science, GenAI, and Cybersecurity.
- AI in Every City Campaign: Aiming to reach 1 million Ugandans by 2025.
- Partnerships: Collaborates with the Ministry of ICT.
Founded in 2021.
Tone: Professional, inspiring, helpful, and community-focused.`

// Service orchestrates the guard pipeline around the completion
// provider: admission checks in order of increasing cost, the bounded
// conversation memory, the provider call and the bounded output relay.
type Service struct {
	provider       interfaces.StreamProvider
	memory         interfaces.Memory
	limiter        *guardrails.SlidingWindowLimiter
	filter         *guardrails.ContentFilter
	bounder        *relay.Bounder
	persona        string
	responseBudget int
	callTimeout    time.Duration
	logger         logging.Logger
	now            func() time.Time
}

// Option represents an option for configuring the service
type Option func(*Service)

// WithProvider sets the completion provider
func WithProvider(provider interfaces.StreamProvider) Option {
	return func(s *Service) {
		s.provider = provider
	}
}

// WithMemory sets the conversation store
func WithMemory(memory interfaces.Memory) Option {
	return func(s *Service) {
		s.memory = memory
	}
}

// WithLimiter sets the rate limiter
func WithLimiter(limiter *guardrails.SlidingWindowLimiter) Option {
	return func(s *Service) {
		s.limiter = limiter
	}
}

// WithFilter sets the content filter
func WithFilter(filter *guardrails.ContentFilter) Option {
	return func(s *Service) {
		s.filter = filter
	}
}

// WithPersona sets the system prompt
func WithPersona(persona string) Option {
	return func(s *Service) {
		s.persona = persona
	}
}

// WithResponseBudget sets the maximum response size in characters,
// applied incrementally on the streaming path and sentence-aware on the
// batch path
func WithResponseBudget(chars int) Option {
	return func(s *Service) {
		s.responseBudget = chars
	}
}

// WithCallTimeout bounds how long the service waits for the provider to
// accept a completion request
func WithCallTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.callTimeout = timeout
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger logging.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new chat service
func NewService(options ...Option) (*Service, error) {
	service := &Service{
		persona:        DefaultPersona,
		responseBudget: 1200,
		callTimeout:    30 * time.Second,
		logger:         logging.New(),
		now:            time.Now,
	}

	for _, option := range options {
		option(service)
	}

	if service.provider == nil {
		return nil, errors.New("chat service requires a completion provider")
	}
	if service.memory == nil {
		service.memory = memory.NewConversationBuffer()
	}
	if service.limiter == nil {
		service.limiter = guardrails.NewSlidingWindowLimiter()
	}
	if service.filter == nil {
		service.filter = guardrails.NewContentFilter()
	}
	service.bounder = relay.NewBounder(
		relay.WithMaxChars(service.responseBudget),
		relay.WithLogger(service.logger),
	)

	return service, nil
}

// Admit runs the ordered admission checks for one request. The order is
// a contract: rate limiting before content filtering before the length
// check, cheapest first, so a rejected request never reaches a more
// expensive check or consumes provider quota.
func (s *Service) Admit(ctx context.Context, clientKey, message string) guardrails.Decision {
	if !s.limiter.Admit(clientKey, s.now()) {
		s.logger.Info(ctx, "Request rate limited", map[string]interface{}{"client": clientKey})
		return guardrails.RateLimited
	}

	if s.filter.IsBlocked(message) {
		s.logger.Info(ctx, "Request blocked by content filter", map[string]interface{}{"client": clientKey})
		return guardrails.Blocked
	}

	if guardrails.IsTooShort(message) {
		return guardrails.TooShort
	}

	return guardrails.Allow
}

// ChatStream handles one chat request end to end on the streaming path.
// For rejected requests the canned reply is returned without touching
// the provider or the sink. For admitted requests the generated text is
// relayed to the sink chunk by chunk and the full emitted text is
// returned. relay.ErrClientGone is returned when the caller went away
// mid-stream; the partial response is discarded from history.
func (s *Service) ChatStream(ctx context.Context, clientKey, session, message string, sink relay.Sink) (guardrails.Decision, string, error) {
	decision := s.Admit(ctx, clientKey, message)
	if decision != guardrails.Allow {
		return decision, decision.Reply(), nil
	}

	messages, err := s.remember(ctx, session, message)
	if err != nil {
		return guardrails.Allow, "", err
	}

	// The timeout context must outlive the stream: cancelling it would
	// sever the response body mid-relay. A deadline hit surfaces as a
	// Recv error, which the bounder turns into the fallback sentence.
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	stream, err := s.provider.StreamChat(callCtx, messages)
	if err != nil {
		s.logger.Error(ctx, "Provider refused completion request", map[string]interface{}{"error": err.Error()})
		if sinkErr := sink(relay.FallbackText); sinkErr != nil {
			return guardrails.Allow, "", relay.ErrClientGone
		}
		return guardrails.Allow, relay.FallbackText, nil
	}

	emitted, err := s.bounder.Relay(ctx, stream, sink)
	if err != nil {
		// caller disconnected; the partial assistant turn is lost on purpose
		return guardrails.Allow, emitted, err
	}

	s.recordAssistant(ctx, session, emitted)
	return guardrails.Allow, emitted, nil
}

// ChatOnce handles one chat request on the non-streaming path: the full
// completion is generated, bounded with sentence-aware truncation, and
// returned in one piece.
func (s *Service) ChatOnce(ctx context.Context, clientKey, session, message string) (guardrails.Decision, string, error) {
	decision := s.Admit(ctx, clientKey, message)
	if decision != guardrails.Allow {
		return decision, decision.Reply(), nil
	}

	messages, err := s.remember(ctx, session, message)
	if err != nil {
		return guardrails.Allow, "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	text, err := s.provider.Complete(callCtx, messages)
	if err != nil {
		s.logger.Error(ctx, "Completion request failed", map[string]interface{}{"error": err.Error()})
		return guardrails.Allow, relay.FallbackText, nil
	}

	text = relay.TruncateAtSentence(text, s.responseBudget)
	s.recordAssistant(ctx, session, text)
	return guardrails.Allow, text, nil
}

// remember appends the user turn, then snapshots the trimmed history and
// prepends the persona prompt. Trim-then-send: the provider sees exactly
// what the store retained.
func (s *Service) remember(ctx context.Context, session, message string) ([]interfaces.Message, error) {
	if err := s.memory.AppendUser(ctx, session, message); err != nil {
		return nil, err
	}

	history, err := s.memory.Snapshot(ctx, session)
	if err != nil {
		return nil, err
	}

	messages := make([]interfaces.Message, 0, len(history)+1)
	messages = append(messages, interfaces.Message{Role: interfaces.RoleSystem, Content: s.persona})
	messages = append(messages, history...)
	return messages, nil
}

// recordAssistant stores the assistant turn unless the response carries
// no generated content. A bare fallback sentence would otherwise teach
// the history that the assistant said something it never generated.
func (s *Service) recordAssistant(ctx context.Context, session, text string) {
	if text == "" || text == relay.FallbackText {
		return
	}
	if err := s.memory.AppendAssistant(ctx, session, text); err != nil {
		s.logger.Error(ctx, "Failed to record assistant turn", map[string]interface{}{"error": err.Error()})
	}
}

// Sweep evicts idle rate-limiter keys and conversation sessions. Run
// periodically; both maps otherwise grow with every client ever seen.
func (s *Service) Sweep(idleFor time.Duration) {
	now := s.now()
	s.limiter.Sweep(now, idleFor)
	if buffer, ok := s.memory.(interface {
		SweepIdle(time.Time, time.Duration) int
	}); ok {
		buffer.SweepIdle(now, idleFor)
	}
}
