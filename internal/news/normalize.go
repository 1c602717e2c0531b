package news

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/johnrirwin/ainewsdesk/internal/models"
)

// Normalize parses a raw generative API response into validated, URL-unique
// articles. The response must be a JSON array; elements that are not objects
// with string title, summary, url and source are dropped.
func Normalize(raw string) ([]models.Article, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedResponse, err)
	}
	if elems == nil {
		// "null" unmarshals without error into a nil slice.
		return nil, models.ErrMalformedResponse
	}

	articles := make([]models.Article, 0, len(elems))
	for _, elem := range elems {
		a, ok := toArticle(elem)
		if !ok {
			continue
		}
		articles = append(articles, a)
	}
	return models.DedupeByURL(articles), nil
}

func toArticle(elem json.RawMessage) (models.Article, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal(elem, &obj); err != nil || obj == nil {
		return models.Article{}, false
	}

	url, ok := stringField(obj, "url")
	if !ok || url == "" {
		return models.Article{}, false
	}
	title, ok := stringField(obj, "title")
	if !ok {
		return models.Article{}, false
	}
	summary, ok := stringField(obj, "summary")
	if !ok {
		return models.Article{}, false
	}
	source, ok := stringField(obj, "source")
	if !ok {
		return models.Article{}, false
	}

	return models.Article{
		Title:   stripMarkup(title),
		Summary: stripMarkup(summary),
		URL:     url,
		Source:  source,
	}, true
}

func stringField(obj map[string]interface{}, key string) (string, bool) {
	v, ok := obj[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// inlineMarkup lists the elements the model emits when it formats a field
// as HTML. Anything else that parses as a tag (Vec<T>, <think>) is text.
const inlineMarkup = "a, b, i, u, em, strong, p, br, span, code, small, sub, sup"

// stripMarkup reduces HTML the model occasionally emits to its text. Input
// without any of the inline elements is returned verbatim.
func stripMarkup(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	if doc.Find(inlineMarkup).Length() == 0 {
		return s
	}
	return strings.TrimSpace(doc.Text())
}
