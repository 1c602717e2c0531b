package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/johnrirwin/ainewsdesk/internal/logging"
	"github.com/johnrirwin/ainewsdesk/internal/metrics"
	"github.com/johnrirwin/ainewsdesk/internal/models"
	"github.com/johnrirwin/ainewsdesk/internal/news"
)

const resultsStoreKey = "results"

// ErrCycleInFlight is returned when a cycle is requested while another one is
// still running. The request is dropped, not queued.
var ErrCycleInFlight = errors.New("a news search is already in progress")

// Mode decides what happens to existing results when a cycle completes.
type Mode int

const (
	// ModeReplace discards existing results (a new search).
	ModeReplace Mode = iota
	// ModeAppend merges into existing results (a deep dive).
	ModeAppend
)

// Fetcher retrieves several keywords concurrently.
type Fetcher interface {
	FetchAll(ctx context.Context, targets []news.Target, filters news.Filters, credential string) []news.Outcome
}

// Translator translates a batch of articles.
type Translator interface {
	Translate(ctx context.Context, articles []models.Article, credential string) ([]models.Translation, error)
}

// Settings supplies the current credential and filter selections.
type Settings interface {
	Credential() string
	Filters() news.Filters
}

// StateStore persists the last results across restarts.
type StateStore interface {
	Load(ctx context.Context, key string) (string, bool, error)
	Save(ctx context.Context, key, value string) error
}

type Aggregator struct {
	fetcher    Fetcher
	translator Translator
	settings   Settings
	store      StateStore
	cache      *news.TranslationCache
	logger     *logging.Logger
	guard      *semaphore.Weighted
	now        func() time.Time

	mu          sync.RWMutex
	keywords    []string
	results     resultSet
	bindings    map[string]models.Article
	activeTab   string
	lastUpdated time.Time
}

func New(fetcher Fetcher, translator Translator, settings Settings, store StateStore, logger *logging.Logger) *Aggregator {
	return &Aggregator{
		fetcher:    fetcher,
		translator: translator,
		settings:   settings,
		store:      store,
		cache:      news.NewTranslationCache(),
		logger:     logger,
		guard:      semaphore.NewWeighted(1),
		now:        time.Now,
		keywords:   []string{},
		results:    newResultSet(),
		bindings:   map[string]models.Article{},
		activeTab:  models.ConsolidatedTab,
	}
}

// Run executes one retrieval cycle over keywords. All keywords are fetched
// concurrently and the results are merged once, after every fetch settled.
// Keywords that failed get an empty entry and are listed in the returned
// *models.CycleError; successful keywords are applied regardless.
func (a *Aggregator) Run(ctx context.Context, keywords []string, mode Mode) error {
	credential := a.settings.Credential()
	if credential == "" {
		return models.ErrMissingCredential
	}
	if len(keywords) == 0 {
		return nil
	}
	if !a.guard.TryAcquire(1) {
		metrics.RecordSkippedCycle()
		a.logger.Debug("Dropped retrieval cycle while another is in flight", logging.WithField("keywords", keywords))
		return ErrCycleInFlight
	}
	defer a.guard.Release(1)

	start := a.now()
	targets := a.targetsFor(keywords)
	outcomes := a.fetcher.FetchAll(ctx, targets, a.settings.Filters(), credential)

	var failed []*models.FetchError
	firstNewTab := ""

	a.mu.Lock()
	next := newResultSet()
	if mode == ModeAppend {
		next = a.results.clone()
	}
	for _, o := range outcomes {
		if o.OK() {
			next.set(o.Keyword, o.Articles)
			if firstNewTab == "" {
				firstNewTab = o.Keyword
			}
			continue
		}
		failed = append(failed, o.Err)
		next.set(o.Keyword, nil)
	}
	a.results = next
	a.lastUpdated = a.now()
	switch {
	case mode == ModeReplace:
		a.activeTab = models.ConsolidatedTab
	case firstNewTab != "":
		a.activeTab = firstNewTab
	}
	finished := a.lastUpdated
	snapshot := a.snapshotLocked()
	a.mu.Unlock()

	metrics.RecordCycle(finished.Sub(start).Seconds(), finished.Unix())
	a.logger.Info("Retrieval cycle complete", logging.WithFields(map[string]interface{}{
		"keywords": len(keywords),
		"failed":   len(failed),
		"append":   mode == ModeAppend,
		"duration": finished.Sub(start).String(),
	}))

	a.persist(ctx, snapshot)

	if len(failed) > 0 {
		return &models.CycleError{Failed: failed}
	}
	return nil
}

// Refresh re-runs the current keyword set, replacing results. It is what the
// refresh scheduler calls.
func (a *Aggregator) Refresh(ctx context.Context) error {
	return a.Run(ctx, a.Keywords(), ModeReplace)
}

func (a *Aggregator) targetsFor(keywords []string) []news.Target {
	a.mu.RLock()
	defer a.mu.RUnlock()

	targets := make([]news.Target, 0, len(keywords))
	for _, kw := range keywords {
		t := news.Target{Keyword: kw}
		if article, ok := a.bindings[kw]; ok {
			bound := article
			t.Article = &bound
		}
		targets = append(targets, t)
	}
	return targets
}

// Search adds input to the keyword set when it is new and non-empty, then
// runs a replacing cycle over the whole set.
func (a *Aggregator) Search(ctx context.Context, input string) error {
	a.AddKeyword(input)
	keywords := a.Keywords()
	if len(keywords) == 0 {
		return nil
	}
	return a.Run(ctx, keywords, ModeReplace)
}

// Trending replaces the keyword set with the trending sentinel and runs it.
func (a *Aggregator) Trending(ctx context.Context) error {
	a.SetKeywords([]string{models.TrendingKeyword})
	return a.Run(ctx, []string{models.TrendingKeyword}, ModeReplace)
}

// SearchKeyword replaces the keyword set with kw alone and runs it.
func (a *Aggregator) SearchKeyword(ctx context.Context, kw string) error {
	kw = models.NormalizeKeyword(kw)
	if kw == "" {
		return nil
	}
	a.SetKeywords([]string{kw})
	return a.Run(ctx, []string{kw}, ModeReplace)
}

// DeepDive binds article to a tagged follow-up keyword, adds it to the set
// and fetches only that keyword, merging into the existing results. It
// returns the tagged keyword.
func (a *Aggregator) DeepDive(ctx context.Context, article models.Article, query string) (string, error) {
	query = models.NormalizeKeyword(query)
	if query == "" {
		return "", nil
	}
	kw := models.DeepDiveKeyword(query)

	a.mu.Lock()
	prevArticle, hadBinding := a.bindings[kw]
	hadKeyword := slices.Contains(a.keywords, kw)
	a.bindings = withBinding(a.bindings, kw, &article)
	a.keywords = models.AppendUnique(a.keywords, kw)
	a.mu.Unlock()

	err := a.Run(ctx, []string{kw}, ModeAppend)
	if errors.Is(err, ErrCycleInFlight) {
		// A dropped deep dive leaves the keyword set and bindings as they were.
		a.mu.Lock()
		if hadBinding {
			a.bindings = withBinding(a.bindings, kw, &prevArticle)
		} else {
			a.bindings = withBinding(a.bindings, kw, nil)
		}
		if !hadKeyword {
			a.keywords = models.Without(a.keywords, kw)
		}
		a.mu.Unlock()
	}
	return kw, err
}

// withBinding returns a copy of bindings with kw bound to article, or
// unbound when article is nil.
func withBinding(bindings map[string]models.Article, kw string, article *models.Article) map[string]models.Article {
	next := make(map[string]models.Article, len(bindings)+1)
	for k, v := range bindings {
		next[k] = v
	}
	if article == nil {
		delete(next, kw)
	} else {
		next[kw] = *article
	}
	return next
}

// AddKeyword adds kw to the active set. It reports false for empty or
// already-present keywords.
func (a *Aggregator) AddKeyword(kw string) bool {
	kw = models.NormalizeKeyword(kw)
	if kw == "" {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	before := len(a.keywords)
	a.keywords = models.AppendUnique(a.keywords, kw)
	return len(a.keywords) > before
}

// RemoveKeyword drops kw from the active set. Its results stay visible until
// the next replacing cycle.
func (a *Aggregator) RemoveKeyword(kw string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keywords = models.Without(a.keywords, kw)
}

// SetKeywords replaces the active set, normalising and dropping duplicates.
func (a *Aggregator) SetKeywords(keywords []string) {
	next := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = models.NormalizeKeyword(kw); kw != "" {
			next = models.AppendUnique(next, kw)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.keywords = next
}

func (a *Aggregator) Keywords() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.keywords))
	copy(out, a.keywords)
	return out
}

// Tabs returns the result keywords in the order they were first filled.
func (a *Aggregator) Tabs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.results.tabs()
}

// Articles returns the articles of one tab. models.ConsolidatedTab (or an
// empty tab name) selects the deduplicated union. Unknown tabs are empty.
func (a *Aggregator) Articles(tab string) []models.Article {
	a.mu.RLock()
	results := a.results
	a.mu.RUnlock()

	if tab == "" || tab == models.ConsolidatedTab {
		return results.consolidated()
	}
	articles, _ := results.get(tab)
	out := make([]models.Article, len(articles))
	copy(out, articles)
	return out
}

// ActiveTab is the tab a client should show after the last cycle: the
// consolidated view after a new search, the first new tab after a deep dive.
func (a *Aggregator) ActiveTab() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.activeTab
}

// LastUpdated is the completion time of the last cycle, zero before the first.
func (a *Aggregator) LastUpdated() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastUpdated
}

// Translate makes sure every article has a cached translation. Articles
// already cached are never sent again.
func (a *Aggregator) Translate(ctx context.Context, articles []models.Article) error {
	credential := a.settings.Credential()
	if credential == "" {
		return models.ErrMissingCredential
	}

	missing := a.cache.Missing(articles)
	if len(missing) == 0 {
		return nil
	}

	translations, err := a.translator.Translate(ctx, missing, credential)
	if err != nil {
		return err
	}
	a.cache.Put(translations)
	return nil
}

// Display overlays cached translations onto articles.
func (a *Aggregator) Display(articles []models.Article) []models.Article {
	return a.cache.Overlay(articles)
}

type snapshot struct {
	Keywords    []string                  `json:"keywords"`
	Tabs        []snapshotTab             `json:"tabs"`
	Bindings    map[string]models.Article `json:"bindings,omitempty"`
	LastUpdated time.Time                 `json:"lastUpdated"`
}

func (a *Aggregator) snapshotLocked() snapshot {
	return snapshot{
		Keywords:    append([]string(nil), a.keywords...),
		Tabs:        a.results.snapshot(),
		Bindings:    a.bindings,
		LastUpdated: a.lastUpdated,
	}
}

func (a *Aggregator) persist(ctx context.Context, s snapshot) {
	if a.store == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		a.logger.Error("Failed to encode results snapshot", logging.WithField("error", err.Error()))
		return
	}
	if err := a.store.Save(ctx, resultsStoreKey, string(data)); err != nil {
		a.logger.Warn("Failed to persist results snapshot", logging.WithField("error", err.Error()))
	}
}

// Restore loads the results of the last cycle saved by a previous process.
// A missing or unreadable snapshot leaves the aggregator empty.
func (a *Aggregator) Restore(ctx context.Context) {
	if a.store == nil {
		return
	}

	raw, ok, err := a.store.Load(ctx, resultsStoreKey)
	if err != nil {
		a.logger.Warn("Failed to load results snapshot", logging.WithField("error", err.Error()))
		return
	}
	if !ok {
		return
	}

	var s snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		a.logger.Warn("Ignoring corrupt results snapshot", logging.WithField("error", err.Error()))
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if s.Keywords != nil {
		a.keywords = s.Keywords
	}
	a.results = fromSnapshot(s.Tabs)
	if s.Bindings != nil {
		a.bindings = s.Bindings
	}
	a.lastUpdated = s.LastUpdated

	a.logger.Info("Restored results snapshot", logging.WithFields(map[string]interface{}{
		"tabs":         len(s.Tabs),
		"last_updated": s.LastUpdated.Format(time.RFC3339),
	}))
}
