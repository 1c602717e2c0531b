// Package prompt builds the instruction text sent to the generative API for
// one retrieval request.
package prompt

import (
	"fmt"
	"strings"

	"github.com/johnrirwin/ainewsdesk/internal/models"
	"github.com/johnrirwin/ainewsdesk/internal/sources"
)

// Intent selects which of the four templates a request uses.
type Intent int

const (
	IntentDefault Intent = iota
	IntentTrending
	IntentQuery
	IntentDeepDive
)

func (i Intent) String() string {
	switch i {
	case IntentTrending:
		return "trending"
	case IntentQuery:
		return "query"
	case IntentDeepDive:
		return "deep_dive"
	default:
		return "default"
	}
}

// Request is everything a prompt depends on. Article is only read for
// IntentDeepDive; Query is the keyword for IntentQuery and the follow-up
// question for IntentDeepDive.
type Request struct {
	Intent  Intent
	Query   string
	Article *models.Article
	Sources []string
	Regions []string
}

const popularityInstruction = `

**Popularity ranking is mandatory:** when scanning sources such as YouTube, Note, Qiita and Zenn, prioritise content by its visible popularity signals. Actively look for posts, articles and videos with high view counts and many likes, favorites or bookmarks, or that appear in official ranking lists (for example daily or weekly trending). For such items, the 'summary' must briefly state why the item was selected (for example "Trending on Zenn with 10k likes...").`

const contractTemplate = `
You are an advanced AI news aggregator. Your absolute top priority is to return, to the best of your current knowledge, a list of articles whose URLs are valid and publicly accessible.%s

**Important rules:**
1. **Accessibility**: every URL must lead directly to publicly accessible content. Do not include links to hard-paywalled pages or pages that require a login.
2. **Validity**: to the best of your knowledge, make sure each URL belongs to a live web page. Avoid URLs that are likely to be broken.

**Output format:**
- Your response must be a single valid JSON array of objects conforming to the given schema.
- Each object must contain exactly the keys "title", "summary", "url" and "source".
`

const deepDiveTemplate = `
You are an expert AI research assistant. The user wants to "deep dive" into a specific article and find more information about it.

**Original article:**
**Title:** %q
**Summary:** %q

**The user's specific research request:** %q

Your task is to find the 5 most relevant in-depth articles, technical blog posts or research papers that directly answer the user's request in the context of the original article. The results must be highly relevant to what the user is asking for.

Scan the following sources: %s.%s
%s`

const trendingTemplate = `
You are an expert AI news watcher. Your task is to identify the 5 most trending, most talked-about and most widely discussed topics or news items related to artificial intelligence from the last 24 hours. Focus on what the community is talking about right now.
Scan the following sources: %s.%s
%s`

const queryTemplate = `
You are an expert AI news aggregator. Your task is to find the 5 most important news items, articles and content related to artificial intelligence and the keyword %q from the last 24 hours.
Scan the following sources: %s.%s
%s`

const defaultTemplate = `
You are an expert AI news aggregator. Your task is to find the 5 most important and talked-about news items, articles and content related to artificial intelligence from the last 24 hours.
Scan the following sources: %s.%s
%s`

// Build renders the prompt for req. It never fails: a deep-dive request
// without an article falls back to the query template.
func Build(req Request) string {
	sourceList := sourceList(req.Sources)
	region := regionClause(req.Regions)

	popularity := ""
	if sources.WantsPopularity(req.Sources) {
		popularity = popularityInstruction
	}
	contract := fmt.Sprintf(contractTemplate, popularity)

	switch {
	case req.Intent == IntentDeepDive && req.Article != nil:
		return fmt.Sprintf(deepDiveTemplate, req.Article.Title, req.Article.Summary, req.Query, sourceList, region, contract)
	case req.Intent == IntentTrending:
		return fmt.Sprintf(trendingTemplate, sourceList, region, contract)
	case (req.Intent == IntentQuery || req.Intent == IntentDeepDive) && req.Query != "":
		return fmt.Sprintf(queryTemplate, req.Query, sourceList, region, contract)
	default:
		return fmt.Sprintf(defaultTemplate, sourceList, region, contract)
	}
}

func sourceList(selected []string) string {
	if sources.AnySource(selected) {
		return strings.Join(sources.WellKnown(), ", ")
	}
	return strings.Join(selected, ", ")
}

func regionClause(regions []string) string {
	if sources.AnyRegion(regions) {
		return ""
	}
	return " In particular, focus on content published in, or primarily aimed at, the following languages/regions: " + strings.Join(regions, ", ") + "."
}
