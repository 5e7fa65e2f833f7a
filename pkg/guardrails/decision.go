package guardrails

import "strings"

// Decision is the outcome of the admission pipeline for one request
type Decision int

const (
	// Allow means the request passed every check and may reach the provider
	Allow Decision = iota

	// RateLimited means the client exceeded its request budget
	RateLimited

	// Blocked means the message matched the content blocklist
	Blocked

	// TooShort means the trimmed message was below the minimum length
	TooShort
)

// String returns the name of the decision
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RateLimited:
		return "rate_limited"
	case Blocked:
		return "blocked"
	case TooShort:
		return "too_short"
	default:
		return "unknown"
	}
}

// Canned replies returned for rejected requests. Rejections are normal
// outcomes, not errors, and are delivered with a success status.
const (
	RateLimitedReply = "You're sending messages a little too quickly. Please wait a moment and try again."
	BlockedReply     = "I'm sorry, I can't help with that. I'm here to answer questions about the Otic Foundation, its mission and its programs."
	TooShortReply    = "Please type a message so I can help you."
)

// Reply returns the canned text for a rejected decision, or the empty
// string for Allow
func (d Decision) Reply() string {
	switch d {
	case RateLimited:
		return RateLimitedReply
	case Blocked:
		return BlockedReply
	case TooShort:
		return TooShortReply
	default:
		return ""
	}
}

// MinMessageLength is the minimum trimmed length of an inbound message
const MinMessageLength = 2

// IsTooShort reports whether the trimmed message is below the minimum
// length. Length is counted in runes so a two-character message in any
// script passes.
func IsTooShort(text string) bool {
	return len([]rune(strings.TrimSpace(text))) < MinMessageLength
}
