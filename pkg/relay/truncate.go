package relay

import "strings"

// sentenceFloor is the fraction of the budget a sentence terminator must
// clear for the cut to land on it
const sentenceFloor = 0.7

// TruncateAtSentence bounds a fully-buffered text to max characters,
// preferring a cut at the last sentence terminator found at or after 70%
// of the budget. When no terminator lands in that range the text is
// hard-cut at the budget and the ellipsis marker is appended. Used on
// the non-streaming path; the streaming relay applies its incremental
// budget instead.
func TruncateAtSentence(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	window := string(runes[:max])
	floor := int(float64(len(window)) * sentenceFloor)

	cut := -1
	for _, terminator := range []string{".", "!", "?"} {
		if idx := strings.LastIndex(window, terminator); idx >= floor && idx > cut {
			cut = idx
		}
	}

	if cut >= 0 {
		return strings.TrimRight(window[:cut+1], " ")
	}

	return window + Ellipsis
}
