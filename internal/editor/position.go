package editor

import "unicode/utf8"

// Clamp bounds an offset to [0, length].
func Clamp(offset, length int) int {
	if length < 0 {
		length = 0
	}
	return max(0, min(offset, length))
}

// EndOfDocument is the insertion point after the last rune.
func EndOfDocument(length int) int {
	if length < 0 {
		return 0
	}
	return length
}

// Length is the document length in runes, the unit every offset uses.
func Length(content string) int {
	return utf8.RuneCountInString(content)
}

// Slice returns the runes of content in [from, to), clamped to bounds.
func Slice(content string, from, to int) string {
	runes := []rune(content)
	from = Clamp(from, len(runes))
	to = Clamp(to, len(runes))
	if to < from {
		from, to = to, from
	}
	return string(runes[from:to])
}
