package guardrails

import "strings"

// ContentFilter implements a guardrail that blocks messages matching a
// static phrase blocklist. Matching is a case-insensitive substring test:
// any single phrase occurring anywhere in the message blocks the whole
// message, with no redaction or scoring.
type ContentFilter struct {
	phrases []string
}

// Option represents an option for configuring the content filter
type Option func(*ContentFilter)

// WithPhrases replaces the default blocklist
func WithPhrases(phrases []string) Option {
	return func(f *ContentFilter) {
		f.phrases = f.phrases[:0]
		for _, p := range phrases {
			f.phrases = append(f.phrases, strings.ToLower(p))
		}
	}
}

// WithExtraPhrases appends phrases to the current blocklist
func WithExtraPhrases(phrases ...string) Option {
	return func(f *ContentFilter) {
		for _, p := range phrases {
			f.phrases = append(f.phrases, strings.ToLower(p))
		}
	}
}

// NewContentFilter creates a content filter with the default blocklist
func NewContentFilter(options ...Option) *ContentFilter {
	filter := &ContentFilter{
		phrases: DefaultBlockedPhrases(),
	}

	for _, option := range options {
		option(filter)
	}

	return filter
}

// IsBlocked reports whether the message contains any blocked phrase
func (f *ContentFilter) IsBlocked(text string) bool {
	lowered := strings.ToLower(text)
	for _, phrase := range f.phrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// DefaultBlockedPhrases returns the built-in blocklist: harmful-content
// requests, persona-override attempts, off-scope sensitive topics and
// homework/coding requests the assistant is not meant to serve.
func DefaultBlockedPhrases() []string {
	return []string{
		// harmful content
		"hack into",
		"how to hack",
		"make a bomb",
		"build a weapon",
		"hurt someone",
		"steal credit card",
		"phishing email",
		"malware",

		// jailbreak / persona override
		"ignore previous instructions",
		"ignore your instructions",
		"disregard your instructions",
		"you are now dan",
		"pretend you are not an ai",
		"reveal your system prompt",
		"jailbreak",

		// off-scope sensitive topics
		"who should i vote for",
		"political party to support",
		"medical diagnosis",
		"legal advice about my case",

		// homework / coding requests
		"do my homework",
		"write my essay",
		"write code for",
		"solve this assignment",
	}
}
