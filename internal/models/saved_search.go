package models

import "sort"

// SavedSearch is a named combination of keywords and source filters.
type SavedSearch struct {
	ID      string   `json:"id"`
	Query   []string `json:"query"`
	Sources []string `json:"sources"`
}

// SameAs reports whether both searches hold the same keywords and sources,
// ignoring order.
func (s SavedSearch) SameAs(other SavedSearch) bool {
	return sameSet(s.Query, other.Query) && sameSet(s.Sources, other.Sources)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
