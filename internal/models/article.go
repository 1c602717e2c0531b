package models

// Article is one news item as returned by the generative API. The URL is its
// identity: two articles with the same URL are the same article.
type Article struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
	Source  string `json:"source"`
}

// Translation holds the translated fields of the article identified by URL.
type Translation struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Apply returns a copy of a with the translated title and summary. URL and
// source are never touched.
func (t Translation) Apply(a Article) Article {
	a.Title = t.Title
	a.Summary = t.Summary
	return a
}

// DedupeByURL keeps the first occurrence of every URL, preserving order.
func DedupeByURL(articles []Article) []Article {
	seen := make(map[string]bool, len(articles))
	result := make([]Article, 0, len(articles))
	for _, a := range articles {
		if seen[a.URL] {
			continue
		}
		seen[a.URL] = true
		result = append(result, a)
	}
	return result
}

// ContainsURL reports whether any article in the list has the given URL.
func ContainsURL(articles []Article, url string) bool {
	for _, a := range articles {
		if a.URL == url {
			return true
		}
	}
	return false
}
