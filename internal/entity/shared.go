package entity

import "strings"

// UnknownLanguage groups sentences whose language is not set.
const UnknownLanguage = "und"

// Sentence is the part of a corpus sentence this module needs.
type Sentence struct {
	ID   int64
	Lang string
}

// NormalizeLanguage lowercases a language code, falling back to UnknownLanguage.
func NormalizeLanguage(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return UnknownLanguage
	}
	return code
}
