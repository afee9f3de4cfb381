package domain

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxContextLength is the per-field cap applied to upload context hints.
const DefaultMaxContextLength = 30

// MemeContext holds the optional hints a user attaches to an uploaded file.
type MemeContext struct {
	PopCulture string `json:"popCulture"`
	Characters string `json:"characters"`
	Notes      string `json:"notes"`
}

// IsEmpty reports whether no hint is set.
func (c MemeContext) IsEmpty() bool {
	return c.PopCulture == "" && c.Characters == "" && c.Notes == ""
}

// Truncate returns a copy with every field cut to at most max runes.
func (c MemeContext) Truncate(max int) MemeContext {
	return MemeContext{
		PopCulture: TruncateRunes(c.PopCulture, max),
		Characters: TruncateRunes(c.Characters, max),
		Notes:      TruncateRunes(c.Notes, max),
	}
}

// Sanitize trims surrounding whitespace and then truncates each field.
func (c MemeContext) Sanitize(max int) MemeContext {
	return MemeContext{
		PopCulture: strings.TrimSpace(c.PopCulture),
		Characters: strings.TrimSpace(c.Characters),
		Notes:      strings.TrimSpace(c.Notes),
	}.Truncate(max)
}

// TruncateRunes cuts s to at most max runes. max <= 0 disables truncation.
func TruncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
