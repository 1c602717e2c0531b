package news

import (
	"sync"

	"github.com/johnrirwin/ainewsdesk/internal/models"
)

// TranslationCache maps article URLs to their translations. Entries are
// never invalidated; the map is replaced wholesale on every write.
type TranslationCache struct {
	mu      sync.RWMutex
	entries map[string]models.Translation
}

func NewTranslationCache() *TranslationCache {
	return &TranslationCache{entries: map[string]models.Translation{}}
}

// Missing returns the articles that have no cached translation.
func (c *TranslationCache) Missing(articles []models.Article) []models.Article {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		if _, ok := c.entries[a.URL]; !ok {
			out = append(out, a)
		}
	}
	return out
}

// Put adds translations, keeping any existing entry for the same URL.
func (c *TranslationCache) Put(translations []models.Translation) {
	if len(translations) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := make(map[string]models.Translation, len(c.entries)+len(translations))
	for k, v := range c.entries {
		next[k] = v
	}
	for _, t := range translations {
		if _, ok := next[t.URL]; ok {
			continue
		}
		next[t.URL] = t
	}
	c.entries = next
}

// Overlay returns copies of articles with cached translations applied.
// Articles without a translation are returned unchanged.
func (c *TranslationCache) Overlay(articles []models.Article) []models.Article {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Article, len(articles))
	for i, a := range articles {
		if t, ok := c.entries[a.URL]; ok {
			out[i] = t.Apply(a)
			continue
		}
		out[i] = a
	}
	return out
}

// Get returns the cached translation for url.
func (c *TranslationCache) Get(url string) (models.Translation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.entries[url]
	return t, ok
}

func (c *TranslationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
