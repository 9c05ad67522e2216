package utils

import "unicode/utf8"

// TruncateBytes shortens text to at most limit bytes, cutting on a rune
// boundary, and marks the cut with "...".
func TruncateBytes(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
