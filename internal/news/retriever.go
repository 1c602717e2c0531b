// Package news retrieves, validates and translates AI news articles through a
// generative API.
package news

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/johnrirwin/ainewsdesk/internal/logging"
	"github.com/johnrirwin/ainewsdesk/internal/metrics"
	"github.com/johnrirwin/ainewsdesk/internal/models"
	"github.com/johnrirwin/ainewsdesk/internal/prompt"
)

// Generator sends a prompt to a generative API and returns the raw JSON text
// of its answer.
type Generator interface {
	GenerateJSON(ctx context.Context, apiKey, prompt string) (string, error)
}

// Filters are the user's source and region selections.
type Filters struct {
	Sources []string `json:"sources"`
	Regions []string `json:"regions"`
}

// Target is one keyword to retrieve. Article is the bound article of a
// deep-dive keyword, nil otherwise.
type Target struct {
	Keyword string
	Article *models.Article
}

// Outcome is the settled result of one keyword. Exactly one of Articles or
// Err is meaningful.
type Outcome struct {
	Keyword  string
	Articles []models.Article
	Err      *models.FetchError
}

// OK reports whether the keyword was retrieved successfully.
func (o Outcome) OK() bool {
	return o.Err == nil
}

type Retriever struct {
	gen    Generator
	logger *logging.Logger
}

func NewRetriever(gen Generator, logger *logging.Logger) *Retriever {
	return &Retriever{gen: gen, logger: logger}
}

// RequestFor maps a target onto a prompt request.
func RequestFor(target Target, filters Filters) prompt.Request {
	req := prompt.Request{
		Sources: filters.Sources,
		Regions: filters.Regions,
	}

	if models.IsTrending(target.Keyword) {
		req.Intent = prompt.IntentTrending
		return req
	}

	if q, ok := models.DeepDiveQuery(target.Keyword); ok {
		req.Query = q
		if target.Article != nil {
			req.Intent = prompt.IntentDeepDive
			req.Article = target.Article
			return req
		}
		req.Intent = prompt.IntentQuery
		return req
	}

	if target.Keyword == "" {
		req.Intent = prompt.IntentDefault
		return req
	}

	req.Intent = prompt.IntentQuery
	req.Query = target.Keyword
	return req
}

// Fetch retrieves the articles for one target. A missing credential is
// reported as models.ErrMissingCredential before any call is made; every other
// failure is a *models.FetchError carrying the cause.
func (r *Retriever) Fetch(ctx context.Context, target Target, filters Filters, credential string) ([]models.Article, error) {
	if credential == "" {
		return nil, models.ErrMissingCredential
	}

	req := RequestFor(target, filters)
	start := time.Now()

	raw, err := r.gen.GenerateJSON(ctx, credential, prompt.Build(req))
	if err == nil {
		var articles []models.Article
		articles, err = Normalize(raw)
		if err == nil {
			metrics.RecordFetch(req.Intent.String(), "ok", time.Since(start).Seconds(), len(articles))
			r.logger.Debug("Fetched articles", logging.WithFields(map[string]interface{}{
				"keyword":  target.Keyword,
				"intent":   req.Intent.String(),
				"articles": len(articles),
			}))
			return articles, nil
		}
	}

	metrics.RecordFetch(req.Intent.String(), "error", time.Since(start).Seconds(), 0)
	r.logger.Error("Failed to fetch articles", logging.WithFields(map[string]interface{}{
		"keyword": target.Keyword,
		"intent":  req.Intent.String(),
		"error":   err.Error(),
	}))
	return nil, &models.FetchError{Keyword: target.Keyword, Err: err}
}

// FetchAll retrieves every target concurrently and returns once all of them
// have settled. Outcomes are in input order; one failure never cancels the
// others.
func (r *Retriever) FetchAll(ctx context.Context, targets []Target, filters Filters, credential string) []Outcome {
	outcomes := make([]Outcome, len(targets))

	var g errgroup.Group
	for i, target := range targets {
		g.Go(func() error {
			articles, err := r.Fetch(ctx, target, filters, credential)
			o := Outcome{Keyword: target.Keyword, Articles: articles}
			if err != nil {
				var fe *models.FetchError
				if !errors.As(err, &fe) {
					fe = &models.FetchError{Keyword: target.Keyword, Err: err}
				}
				o.Articles = nil
				o.Err = fe
			}
			outcomes[i] = o
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
