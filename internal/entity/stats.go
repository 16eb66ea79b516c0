package entity

import "cmp"

// LanguageStat counts the sentences of one language that have audio.
type LanguageStat struct {
	Language string `json:"lang"`
	Total    int64  `json:"total"`
}

// CompareLanguageStats orders by total descending, then language ascending.
func CompareLanguageStats(a, b LanguageStat) int {
	if c := cmp.Compare(b.Total, a.Total); c != 0 {
		return c
	}
	return cmp.Compare(a.Language, b.Language)
}
