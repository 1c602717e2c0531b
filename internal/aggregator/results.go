package aggregator

import "github.com/johnrirwin/ainewsdesk/internal/models"

// resultSet is an insertion-ordered keyword to articles mapping. It is never
// modified after it has been published to readers; writers clone it first.
type resultSet struct {
	order    []string
	articles map[string][]models.Article
}

func newResultSet() resultSet {
	return resultSet{articles: map[string][]models.Article{}}
}

func (r resultSet) clone() resultSet {
	next := resultSet{
		order:    make([]string, len(r.order)),
		articles: make(map[string][]models.Article, len(r.articles)),
	}
	copy(next.order, r.order)
	for k, v := range r.articles {
		next.articles[k] = v
	}
	return next
}

// set stores articles under kw, keeping kw's position if it already exists.
func (r *resultSet) set(kw string, articles []models.Article) {
	if _, ok := r.articles[kw]; !ok {
		r.order = append(r.order, kw)
	}
	if articles == nil {
		articles = []models.Article{}
	}
	r.articles[kw] = articles
}

func (r resultSet) get(kw string) ([]models.Article, bool) {
	a, ok := r.articles[kw]
	return a, ok
}

// consolidated is the union of all keywords' articles in keyword order,
// deduplicated by URL with the first occurrence kept.
func (r resultSet) consolidated() []models.Article {
	var all []models.Article
	for _, kw := range r.order {
		all = append(all, r.articles[kw]...)
	}
	return models.DedupeByURL(all)
}

func (r resultSet) tabs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

type snapshotTab struct {
	Keyword  string           `json:"keyword"`
	Articles []models.Article `json:"articles"`
}

func (r resultSet) snapshot() []snapshotTab {
	out := make([]snapshotTab, 0, len(r.order))
	for _, kw := range r.order {
		out = append(out, snapshotTab{Keyword: kw, Articles: r.articles[kw]})
	}
	return out
}

func fromSnapshot(tabs []snapshotTab) resultSet {
	r := newResultSet()
	for _, t := range tabs {
		r.set(t.Keyword, t.Articles)
	}
	return r
}
