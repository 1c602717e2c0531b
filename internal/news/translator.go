package news

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/johnrirwin/ainewsdesk/internal/logging"
	"github.com/johnrirwin/ainewsdesk/internal/metrics"
	"github.com/johnrirwin/ainewsdesk/internal/models"
)

const DefaultTargetLanguage = "Japanese"

const translatePrompt = `
Translate the 'title' and 'summary' fields of every article object in the JSON array below into natural %s.
Do not translate the 'url' and 'source' fields; copy them verbatim.
Return the whole array of translated objects, keeping the original JSON structure and field names exactly as they are.

JSON data to translate:
%s
`

// Translator translates article titles and summaries in one batched request.
type Translator struct {
	gen    Generator
	target string
	logger *logging.Logger
}

func NewTranslator(gen Generator, targetLanguage string, logger *logging.Logger) *Translator {
	if strings.TrimSpace(targetLanguage) == "" {
		targetLanguage = DefaultTargetLanguage
	}
	return &Translator{gen: gen, target: targetLanguage, logger: logger}
}

// TargetLanguage returns the language articles are translated into.
func (t *Translator) TargetLanguage() string {
	return t.target
}

// Translate returns one translation per usable element of the response. An
// empty input returns immediately without consulting the credential.
func (t *Translator) Translate(ctx context.Context, articles []models.Article, credential string) ([]models.Translation, error) {
	if len(articles) == 0 {
		return []models.Translation{}, nil
	}
	if credential == "" {
		return nil, models.ErrMissingCredential
	}

	payload, err := json.MarshalIndent(articles, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode articles: %w", err)
	}

	raw, err := t.gen.GenerateJSON(ctx, credential, fmt.Sprintf(translatePrompt, t.target, payload))
	if err != nil {
		metrics.RecordTranslate("error")
		t.logger.Error("Translation request failed", logging.WithFields(map[string]interface{}{
			"articles": len(articles),
			"error":    err.Error(),
		}))
		return nil, fmt.Errorf("%w: %v", models.ErrTranslationFailed, err)
	}

	translations, err := parseTranslations(raw, articles)
	if err != nil {
		metrics.RecordTranslate("error")
		t.logger.Error("Translation response unusable", logging.WithField("error", err.Error()))
		return nil, err
	}

	metrics.RecordTranslate("ok")
	t.logger.Debug("Translated articles", logging.WithFields(map[string]interface{}{
		"requested":  len(articles),
		"translated": len(translations),
		"language":   t.target,
	}))
	return translations, nil
}

// parseTranslations maps response elements back to the input articles by
// URL. Elements whose URL matches no input article are dropped.
func parseTranslations(raw string, articles []models.Article) ([]models.Translation, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTranslationFailed, err)
	}
	if elems == nil {
		return nil, fmt.Errorf("%w: response is not an array", models.ErrTranslationFailed)
	}

	known := make(map[string]bool, len(articles))
	for _, a := range articles {
		known[a.URL] = true
	}

	out := make([]models.Translation, 0, len(elems))
	for _, elem := range elems {
		var obj map[string]interface{}
		if err := json.Unmarshal(elem, &obj); err != nil || obj == nil {
			continue
		}
		title, ok := stringField(obj, "title")
		if !ok {
			continue
		}
		summary, ok := stringField(obj, "summary")
		if !ok {
			continue
		}

		url, _ := stringField(obj, "url")
		if !known[url] {
			continue
		}
		out = append(out, models.Translation{URL: url, Title: title, Summary: summary})
	}
	return out, nil
}
