package llm

// Defaults for the completion provider. Groq exposes an OpenAI-compatible
// API, so the chat endpoint lives under the /openai path.
const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.3-70b-versatile"
)

// GenerateParams contains parameters for text generation
type GenerateParams struct {
	Model       string  // Model identifier sent to the provider
	MaxTokens   int     // Upper bound on generated tokens
	Temperature float32 // Controls randomness (0.0 to 2.0)
}

// DefaultGenerateParams returns default generation parameters
func DefaultGenerateParams() GenerateParams {
	return GenerateParams{
		Model:       DefaultModel,
		MaxTokens:   1024,
		Temperature: 0.7,
	}
}
