package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingCredential is returned before any API call when no API key is configured.
	ErrMissingCredential = errors.New("Gemini API key is not configured; set one in the settings before searching")
	// ErrMalformedResponse is returned when the API response is not a JSON array.
	ErrMalformedResponse = errors.New("the API did not return a valid array of articles")
	// ErrTranslationFailed is returned when a translation response cannot be used.
	ErrTranslationFailed = errors.New("failed to translate articles; the model may be unavailable or returned an invalid response")
)

// fetchFailedMessage is the user-facing text for any single-keyword failure.
const fetchFailedMessage = "failed to fetch news from the AI; check that the API key is valid or the model may be unavailable"

// FetchError reports that retrieval for one keyword failed.
type FetchError struct {
	Keyword string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Keyword, fetchFailedMessage)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// CycleError aggregates the failed keywords of one retrieval cycle.
type CycleError struct {
	Failed []*FetchError
}

func (e *CycleError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("Search for %q failed.", f.Keyword))
	}
	return strings.Join(parts, " ")
}

// Keywords lists the failed keywords in cycle order.
func (e *CycleError) Keywords() []string {
	out := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		out = append(out, f.Keyword)
	}
	return out
}

func (e *CycleError) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		out = append(out, f)
	}
	return out
}
