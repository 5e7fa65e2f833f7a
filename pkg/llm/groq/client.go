package groq

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"

	"github.com/otic-foundation/chatrelay/pkg/interfaces"
	"github.com/otic-foundation/chatrelay/pkg/llm"
	"github.com/otic-foundation/chatrelay/pkg/logging"
)

// Client implements the StreamProvider interface against Groq's
// OpenAI-compatible completion API
type Client struct {
	Client *openai.Client
	Params llm.GenerateParams

	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
	maxElapsed time.Duration
}

// Option represents an option for configuring the Groq client
type Option func(*Client)

// WithModel sets the model identifier
func WithModel(model string) Option {
	return func(c *Client) {
		c.Params.Model = model
	}
}

// WithMaxTokens sets the upper bound on generated tokens
func WithMaxTokens(maxTokens int) Option {
	return func(c *Client) {
		c.Params.MaxTokens = maxTokens
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(temperature float32) Option {
	return func(c *Client) {
		c.Params.Temperature = temperature
	}
}

// WithBaseURL overrides the API endpoint, mainly for tests
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger for the client
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetryBudget bounds the total time spent retrying the initial
// request. Retries never apply mid-stream.
func WithRetryBudget(maxElapsed time.Duration) Option {
	return func(c *Client) {
		c.maxElapsed = maxElapsed
	}
}

// NewClient creates a new Groq client
func NewClient(apiKey string, options ...Option) *Client {
	client := &Client{
		Params:     llm.DefaultGenerateParams(),
		baseURL:    llm.DefaultBaseURL,
		logger:     logging.New(),
		maxElapsed: 15 * time.Second,
	}

	for _, option := range options {
		option(client)
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = client.baseURL
	if client.httpClient != nil {
		config.HTTPClient = client.httpClient
	}
	client.Client = openai.NewClientWithConfig(config)

	return client
}

// Name returns the name of the provider
func (c *Client) Name() string {
	return "groq"
}

// StreamChat starts a streaming completion for the given messages. Only
// the request that opens the stream is retried; once deltas are flowing
// a failure surfaces through TokenStream.Recv.
func (c *Client) StreamChat(ctx context.Context, messages []interfaces.Message) (interfaces.TokenStream, error) {
	req := c.request(messages, true)

	var stream *openai.ChatCompletionStream
	operation := func() error {
		s, err := c.Client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			c.logger.Warn(ctx, "Completion stream request failed, may retry", map[string]interface{}{
				"model": c.Params.Model,
				"error": err.Error(),
			})
			return err
		}
		stream = s
		return nil
	}

	if err := backoff.Retry(operation, c.backoff(ctx)); err != nil {
		return nil, fmt.Errorf("failed to start completion stream: %w", err)
	}

	return &tokenStream{stream: stream}, nil
}

// Complete runs a non-streaming completion and returns the full text
func (c *Client) Complete(ctx context.Context, messages []interfaces.Message) (string, error) {
	req := c.request(messages, false)

	var response openai.ChatCompletionResponse
	operation := func() error {
		resp, err := c.Client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		response = resp
		return nil
	}

	if err := backoff.Retry(operation, c.backoff(ctx)); err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	return response.Choices[0].Message.Content, nil
}

func (c *Client) request(messages []interfaces.Message, stream bool) openai.ChatCompletionRequest {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, message := range messages {
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    message.Role,
			Content: message.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       c.Params.Model,
		Messages:    converted,
		MaxTokens:   c.Params.MaxTokens,
		Temperature: c.Params.Temperature,
		Stream:      stream,
	}
}

func (c *Client) backoff(ctx context.Context) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = c.maxElapsed
	return backoff.WithContext(policy, ctx)
}

// tokenStream adapts the go-openai stream to the TokenStream interface,
// skipping keepalive chunks that carry no content
type tokenStream struct {
	stream *openai.ChatCompletionStream
}

// Recv returns the next non-empty text delta, or io.EOF when the
// generation completed normally
func (s *tokenStream) Recv() (string, error) {
	for {
		response, err := s.stream.Recv()
		if err != nil {
			return "", err
		}
		if len(response.Choices) == 0 {
			continue
		}
		if delta := response.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

// Close releases the underlying HTTP response
func (s *tokenStream) Close() error {
	return s.stream.Close()
}
