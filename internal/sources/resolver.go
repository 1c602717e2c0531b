package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// FeedResolver turns a custom source given as a feed URL into the feed's
// title, so prompts name the publication rather than a link.
type FeedResolver struct {
	parser  *gofeed.Parser
	timeout time.Duration
}

func NewFeedResolver(timeout time.Duration) *FeedResolver {
	parser := gofeed.NewParser()
	parser.UserAgent = "AINewsDesk/1.0"
	return &FeedResolver{parser: parser, timeout: timeout}
}

// IsFeedURL reports whether raw looks like an http(s) URL.
func IsFeedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Resolve returns the feed title for URL input and the input unchanged
// otherwise. On a fetch or parse failure it returns the input together with
// the error.
func (r *FeedResolver) Resolve(ctx context.Context, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !IsFeedURL(raw) {
		return raw, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	feed, err := r.parser.ParseURLWithContext(raw, ctx)
	if err != nil {
		return raw, fmt.Errorf("failed to parse feed %s: %w", raw, err)
	}

	title := strings.TrimSpace(feed.Title)
	if title == "" {
		return raw, nil
	}
	return title, nil
}
