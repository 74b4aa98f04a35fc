// Package transcript normalizes recognized text and classifies degenerate output.
package transcript

import (
	"strings"
	"unicode/utf8"
)

// MinSpeechChars is the shortest transcript treated as real speech.
const MinSpeechChars = 10

// noSpeechMarkers are placeholder strings recognizers emit for silent audio.
var noSpeechMarkers = []string{
	"[no speech detected]",
	"[blank_audio]",
	"[silence]",
	"(silence)",
	"[inaudible]",
	"[music]",
}

// questionCues are the phrases that mark an unlabeled utterance as a question.
var questionCues = []string{
	"tell me",
	"describe",
	"explain",
	"walk me through",
	"how would you",
	"why did you",
	"what would you",
}

// Assemble joins recognized segments into one whitespace-normalized string.
func Assemble(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	return Clean(strings.Join(segments, " "))
}

// Clean collapses whitespace runs and trims the result.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// IsNoSpeech reports whether text is empty, a recognizer placeholder, or too short to coach.
func IsNoSpeech(text string) bool {
	cleaned := Clean(text)
	if cleaned == "" {
		return true
	}
	lower := strings.ToLower(cleaned)
	for _, marker := range noSpeechMarkers {
		if lower == marker {
			return true
		}
	}
	return utf8.RuneCountInString(cleaned) < MinSpeechChars
}

// IsMarker reports whether text is only a recognizer placeholder.
func IsMarker(text string) bool {
	lower := strings.ToLower(Clean(text))
	for _, marker := range noSpeechMarkers {
		if lower == marker {
			return true
		}
	}
	return false
}

// LooksLikeQuestion is the fallback question heuristic for undiarized text.
func LooksLikeQuestion(text string) bool {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "?") {
		return true
	}
	for _, cue := range questionCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

// Length counts characters the way the coaching threshold does.
func Length(text string) int {
	return utf8.RuneCountInString(strings.TrimSpace(text))
}
