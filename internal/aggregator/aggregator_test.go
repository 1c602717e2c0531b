package aggregator

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/johnrirwin/ainewsdesk/internal/models"
	"github.com/johnrirwin/ainewsdesk/internal/news"
	"github.com/johnrirwin/ainewsdesk/internal/testutil"
)

type fakeFetcher struct {
	mu      sync.Mutex
	results map[string][]models.Article
	fail    map[string]bool
	calls   [][]news.Target
	filters []news.Filters
	started chan struct{}
	release chan struct{}
}

func (f *fakeFetcher) FetchAll(ctx context.Context, targets []news.Target, filters news.Filters, credential string) []news.Outcome {
	f.mu.Lock()
	f.calls = append(f.calls, targets)
	f.filters = append(f.filters, filters)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}

	out := make([]news.Outcome, len(targets))
	for i, t := range targets {
		if f.fail[t.Keyword] {
			out[i] = news.Outcome{Keyword: t.Keyword, Err: &models.FetchError{Keyword: t.Keyword, Err: errors.New("boom")}}
			continue
		}
		out[i] = news.Outcome{Keyword: t.Keyword, Articles: f.results[t.Keyword]}
	}
	return out
}

func (f *fakeFetcher) lastCall() []news.Target {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeTranslator struct {
	calls [][]models.Article
	err   error
}

func (f *fakeTranslator) Translate(ctx context.Context, articles []models.Article, credential string) ([]models.Translation, error) {
	f.calls = append(f.calls, articles)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Translation, 0, len(articles))
	for _, a := range articles {
		out = append(out, models.Translation{URL: a.URL, Title: "JA " + a.Title, Summary: "JA " + a.Summary})
	}
	return out, nil
}

type fakeSettings struct {
	credential string
	filters    news.Filters
}

func (s *fakeSettings) Credential() string    { return s.credential }
func (s *fakeSettings) Filters() news.Filters { return s.filters }

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memStore) Load(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Save(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]string{}
	}
	m.data[key] = value
	return nil
}

func art(url string) models.Article {
	return models.Article{Title: "T " + url, Summary: "S " + url, URL: url, Source: "X"}
}

func newTestAggregator(f *fakeFetcher, tr *fakeTranslator, s *fakeSettings) *Aggregator {
	if tr == nil {
		tr = &fakeTranslator{}
	}
	return New(f, tr, s, &memStore{}, testutil.NullLogger())
}

func TestRun_MissingCredential(t *testing.T) {
	f := &fakeFetcher{}
	a := newTestAggregator(f, nil, &fakeSettings{})

	err := a.Run(context.Background(), []string{"Sora"}, ModeReplace)
	if !errors.Is(err, models.ErrMissingCredential) {
		t.Fatalf("Run() error = %v, want ErrMissingCredential", err)
	}
	if len(f.calls) != 0 {
		t.Error("no fetch may happen without a credential")
	}
}

func TestRun_EmptyKeywords(t *testing.T) {
	f := &fakeFetcher{}
	a := newTestAggregator(f, nil, &fakeSettings{credential: "k"})

	if err := a.Run(context.Background(), nil, ModeReplace); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(f.calls) != 0 {
		t.Error("empty keyword list must be a no-op")
	}
	if !a.LastUpdated().IsZero() {
		t.Error("a no-op must not touch LastUpdated")
	}
}

func TestRun_PartialFailure(t *testing.T) {
	f := &fakeFetcher{
		results: map[string][]models.Article{
			"a": {art("u1"), art("u2")},
			"c": {art("u2"), art("u3")},
		},
		fail: map[string]bool{"b": true},
	}
	a := newTestAggregator(f, nil, &fakeSettings{credential: "k"})

	err := a.Run(context.Background(), []string{"a", "b", "c"}, ModeReplace)

	var ce *models.CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("Run() error = %v, want *CycleError", err)
	}
	if kws := ce.Keywords(); len(kws) != 1 || kws[0] != "b" {
		t.Errorf("failed keywords = %v, want [b]", kws)
	}

	tabs := a.Tabs()
	if len(tabs) != 3 || tabs[0] != "a" || tabs[1] != "b" || tabs[2] != "c" {
		t.Errorf("Tabs() = %v, want one entry per keyword in order", tabs)
	}
	if got := a.Articles("b"); len(got) != 0 {
		t.Errorf("failed keyword should have an empty entry, got %v", got)
	}

	consolidated := a.Articles(models.ConsolidatedTab)
	if len(consolidated) != 3 {
		t.Fatalf("consolidated = %d articles, want 3", len(consolidated))
	}
	for i, u := range []string{"u1", "u2", "u3"} {
		if consolidated[i].URL != u {
			t.Errorf("consolidated[%d] = %q, want %q", i, consolidated[i].URL, u)
		}
	}
	if a.LastUpdated().IsZero() {
		t.Error("LastUpdated should be set after a cycle")
	}
	if a.ActiveTab() != models.ConsolidatedTab {
		t.Errorf("ActiveTab() = %q", a.ActiveTab())
	}
}

func TestRun_ReplaceResetsMapping(t *testing.T) {
	f := &fakeFetcher{results: map[string][]models.Article{
		"a": {art("u1")},
		"b": {art("u2")},
	}}
	a := newTestAggregator(f, nil, &fakeSettings{credential: "k"})

	if err := a.Run(context.Background(), []string{"a"}, ModeReplace); err != nil {
		t.Fatal(err)
	}
	if err := a.Run(context.Background(), []string{"b"}, ModeReplace); err != nil {
		t.Fatal(err)
	}

	if tabs := a.Tabs(); len(tabs) != 1 || tabs[0] != "b" {
		t.Errorf("Tabs() = %v, want [b]", tabs)
	}
}

func TestRun_AppendMerges(t *testing.T) {
	f := &fakeFetcher{results: map[string][]models.Article{
		"a": {art("u1")},
		"b": {art("u2")},
	}}
	a := newTestAggregator(f, nil, &fakeSettings{credential: "k"})

	if err := a.Run(context.Background(), []string{"a"}, ModeReplace); err != nil {
		t.Fatal(err)
	}
	if err := a.Run(context.Background(), []string{"b"}, ModeAppend); err != nil {
		t.Fatal(err)
	}

	if tabs := a.Tabs(); len(tabs) != 2 {
		t.Errorf("Tabs() = %v, want [a b]", tabs)
	}
	if a.ActiveTab() != "b" {
		t.Errorf("ActiveTab() = %q, want first new tab", a.ActiveTab())
	}
}

func TestRun_InFlightGuard(t *testing.T) {
	f := &fakeFetcher{
		results: map[string][]models.Article{"a": {art("u1")}},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	a := newTestAggregator(f, nil, &fakeSettings{credential: "k"})

	done := make(chan error, 1)
	go func() {
		done <- a.Run(context.Background(), []string{"a"}, ModeReplace)
	}()

	select {
	case <-f.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle never started")
	}

	if err := a.Run(context.Background(), []string{"a"}, ModeReplace); !errors.Is(err, ErrCycleInFlight) {
		t.Errorf("second Run() error = %v, want ErrCycleInFlight", err)
	}

	close(f.release)
	if err := <-done; err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	f.started = nil
	if err := a.Run(context.Background(), []string{"a"}, ModeReplace); err != nil {
		t.Errorf("Run() after the first completed error = %v", err)
	}
}

func TestSearch(t *testing.T) {
	f := &fakeFetcher{results: map[string][]models.Article{}}
	s := &fakeSettings{credential: "k", filters: news.Filters{Sources: []string{"Zenn"}}}
	a := newTestAggregator(f, nil, s)

	a.AddKeyword("a")
	if err := a.Search(context.Background(), "  b "); err != nil {
		t.Fatal(err)
	}

	call := f.lastCall()
	if len(call) != 2 || call[0].Keyword != "a" || call[1].Keyword != "b" {
		t.Errorf("Search() fetched %+v, want [a b]", call)
	}
	if f.filters[0].Sources[0] != "Zenn" {
		t.Errorf("filters not passed through: %+v", f.filters[0])
	}

	if err := a.Search(context.Background(), "b"); err != nil {
		t.Fatal(err)
	}
	if kws := a.Keywords(); len(kws) != 2 {
		t.Errorf("duplicate input must not be added, got %v", kws)
	}
}

func TestSearch_EmptySet(t *testing.T) {
	f := &fakeFetcher{}
	a := newTestAggregator(f, nil, &fakeSettings{})

	if err := a.Search(context.Background(), "   "); err != nil {
		t.Fatalf("Search() with nothing to search error = %v", err)
	}
	if len(f.calls) != 0 {
		t.Error("no fetch expected")
	}
}

func TestTrending(t *testing.T) {
	f := &fakeFetcher{}
	a := newTestAggregator(f, nil, &fakeSettings{credential: "k"})
	a.SetKeywords([]string{"x", "y"})

	if err := a.Trending(context.Background()); err != nil {
		t.Fatal(err)
	}

	if kws := a.Keywords(); len(kws) != 1 || kws[0] != models.TrendingKeyword {
		t.Errorf("Keywords() = %v", kws)
	}
	if call := f.lastCall(); len(call) != 1 || call[0].Keyword != models.TrendingKeyword {
		t.Errorf("Trending() fetched %+v", call)
	}
}

func TestSearchKeyword(t *testing.T) {
	f := &fakeFetcher{}
	a := newTestAggregator(f, nil, &fakeSettings{credential: "k"})
	a.SetKeywords([]string{"x", "y"})

	if err := a.SearchKeyword(context.Background(), "Sora"); err != nil {
		t.Fatal(err)
	}
	if kws := a.Keywords(); len(kws) != 1 || kws[0] != "Sora" {
		t.Errorf("Keywords() = %v", kws)
	}
}

func TestDeepDive(t *testing.T) {
	article := art("https://orig.com")
	f := &fakeFetcher{results: map[string][]models.Article{
		"a":                  {art("u1")},
		"Deep dive: pricing": {art("u2")},
	}}
	a := newTestAggregator(f, nil, &fakeSettings{credential: "k"})

	if err := a.Search(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}

	kw, err := a.DeepDive(context.Background(), article, " pricing ")
	if err != nil {
		t.Fatalf("DeepDive() error = %v", err)
	}
	if kw != "Deep dive: pricing" {
		t.Errorf("DeepDive() keyword = %q", kw)
	}

	call := f.lastCall()
	if len(call) != 1 || call[0].Keyword != kw {
		t.Fatalf("DeepDive() should fetch only its keyword, got %+v", call)
	}
	if call[0].Article == nil || call[0].Article.URL != article.URL {
		t.Error("DeepDive() must pass the bound article to the fetch")
	}

	if tabs := a.Tabs(); len(tabs) != 2 {
		t.Errorf("deep dive should append, Tabs() = %v", tabs)
	}
	if a.ActiveTab() != kw {
		t.Errorf("ActiveTab() = %q, want %q", a.ActiveTab(), kw)
	}

	// A later refresh of the whole set still resolves the binding.
	if err := a.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, target := range f.lastCall() {
		if target.Keyword == kw && target.Article == nil {
			t.Error("binding lost on refresh")
		}
	}
}

func TestDeepDive_InFlightLeavesStateUntouched(t *testing.T) {
	f := &fakeFetcher{
		results: map[string][]models.Article{"a": {art("u1")}},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	a := newTestAggregator(f, nil, &fakeSettings{credential: "k"})
	a.AddKeyword("a")

	done := make(chan error, 1)
	go func() {
		done <- a.Refresh(context.Background())
	}()

	select {
	case <-f.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle never started")
	}

	kw, err := a.DeepDive(context.Background(), art("https://orig.com"), "pricing")
	if !errors.Is(err, ErrCycleInFlight) {
		t.Fatalf("DeepDive() error = %v, want ErrCycleInFlight", err)
	}
	if slices.Contains(a.Keywords(), kw) {
		t.Errorf("dropped deep dive left %q in Keywords() = %v", kw, a.Keywords())
	}

	close(f.release)
	if err := <-done; err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	f.started = nil
	if err := a.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, target := range f.lastCall() {
		if target.Keyword == kw || target.Article != nil {
			t.Errorf("dropped deep dive still bound: %+v", target)
		}
	}
}

func TestKeywordSet(t *testing.T) {
	a := newTestAggregator(&fakeFetcher{}, nil, &fakeSettings{})

	if !a.AddKeyword(" Sora ") {
		t.Error("AddKeyword() should accept a new keyword")
	}
	if a.AddKeyword("Ｓｏｒａ") {
		t.Error("AddKeyword() should reject a normalised duplicate")
	}
	if a.AddKeyword("  ") {
		t.Error("AddKeyword() should reject empty input")
	}
	a.AddKeyword("Gemini")
	a.RemoveKeyword("Sora")

	if kws := a.Keywords(); len(kws) != 1 || kws[0] != "Gemini" {
		t.Errorf("Keywords() = %v", kws)
	}

	a.SetKeywords([]string{"a", "a", " ", "b"})
	if kws := a.Keywords(); len(kws) != 2 {
		t.Errorf("SetKeywords() should dedupe and drop empty, got %v", kws)
	}
}

func TestTranslate_UsesCache(t *testing.T) {
	tr := &fakeTranslator{}
	a := newTestAggregator(&fakeFetcher{}, tr, &fakeSettings{credential: "k"})
	articles := []models.Article{art("u1"), art("u2")}

	if err := a.Translate(context.Background(), articles); err != nil {
		t.Fatal(err)
	}
	if err := a.Translate(context.Background(), articles); err != nil {
		t.Fatal(err)
	}
	if len(tr.calls) != 1 {
		t.Errorf("cached URLs must not trigger a second call, got %d calls", len(tr.calls))
	}

	if err := a.Translate(context.Background(), append(articles, art("u3"))); err != nil {
		t.Fatal(err)
	}
	if last := tr.calls[len(tr.calls)-1]; len(last) != 1 || last[0].URL != "u3" {
		t.Errorf("only the uncached article should be sent, got %+v", last)
	}

	shown := a.Display(articles)
	if shown[0].Title != "JA T u1" || shown[0].URL != "u1" {
		t.Errorf("Display() = %+v", shown[0])
	}
}

func TestTranslate_Errors(t *testing.T) {
	a := newTestAggregator(&fakeFetcher{}, &fakeTranslator{}, &fakeSettings{})
	if err := a.Translate(context.Background(), []models.Article{art("u1")}); !errors.Is(err, models.ErrMissingCredential) {
		t.Errorf("Translate() error = %v, want ErrMissingCredential", err)
	}

	tr := &fakeTranslator{err: models.ErrTranslationFailed}
	a = newTestAggregator(&fakeFetcher{}, tr, &fakeSettings{credential: "k"})
	if err := a.Translate(context.Background(), []models.Article{art("u1")}); !errors.Is(err, models.ErrTranslationFailed) {
		t.Errorf("Translate() error = %v, want ErrTranslationFailed", err)
	}
	if shown := a.Display([]models.Article{art("u1")}); shown[0].Title != "T u1" {
		t.Error("a failed translation must leave the original text")
	}
}

func TestRestore(t *testing.T) {
	store := &memStore{}
	f := &fakeFetcher{results: map[string][]models.Article{"a": {art("u1")}}}
	first := New(f, &fakeTranslator{}, &fakeSettings{credential: "k"}, store, testutil.NullLogger())

	if err := first.Search(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}

	second := New(f, &fakeTranslator{}, &fakeSettings{credential: "k"}, store, testutil.NullLogger())
	second.Restore(context.Background())

	if kws := second.Keywords(); len(kws) != 1 || kws[0] != "a" {
		t.Errorf("restored Keywords() = %v", kws)
	}
	if got := second.Articles("a"); len(got) != 1 || got[0].URL != "u1" {
		t.Errorf("restored Articles(a) = %v", got)
	}
	if !second.LastUpdated().Equal(first.LastUpdated()) {
		t.Errorf("restored LastUpdated = %v, want %v", second.LastUpdated(), first.LastUpdated())
	}
}

func TestRestore_Corrupt(t *testing.T) {
	store := &memStore{data: map[string]string{resultsStoreKey: "{not json"}}
	a := New(&fakeFetcher{}, &fakeTranslator{}, &fakeSettings{}, store, testutil.NullLogger())

	a.Restore(context.Background())

	if len(a.Tabs()) != 0 {
		t.Error("a corrupt snapshot should be ignored")
	}
}
