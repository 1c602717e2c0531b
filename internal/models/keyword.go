package models

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	// TrendingKeyword is the sentinel keyword that requests trending topics
	// instead of a keyword search.
	TrendingKeyword = "Trending"

	// DeepDivePrefix tags a keyword as a follow-up query scoped to one article.
	DeepDivePrefix = "Deep dive: "

	// ConsolidatedTab is the result-mapping key of the deduplicated union view.
	ConsolidatedTab = "__consolidated__"
)

// NormalizeKeyword trims the keyword and folds full-width and compatibility
// characters, so "Ｓｏｒａ " and "Sora" are the same keyword.
func NormalizeKeyword(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

// IsTrending reports whether kw is the trending sentinel.
func IsTrending(kw string) bool {
	return kw == TrendingKeyword
}

// DeepDiveKeyword builds the tagged keyword for a deep-dive query.
func DeepDiveKeyword(query string) string {
	return DeepDivePrefix + NormalizeKeyword(query)
}

// DeepDiveQuery returns the follow-up query of a deep-dive keyword.
func DeepDiveQuery(kw string) (string, bool) {
	if !strings.HasPrefix(kw, DeepDivePrefix) {
		return "", false
	}
	return strings.TrimPrefix(kw, DeepDivePrefix), true
}

// AppendUnique appends kw to list unless it is already present.
func AppendUnique(list []string, kw string) []string {
	for _, existing := range list {
		if existing == kw {
			return list
		}
	}
	out := make([]string, len(list), len(list)+1)
	copy(out, list)
	return append(out, kw)
}

// Without returns a copy of list with every occurrence of kw removed.
func Without(list []string, kw string) []string {
	out := make([]string, 0, len(list))
	for _, existing := range list {
		if existing != kw {
			out = append(out, existing)
		}
	}
	return out
}
