package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/johnrirwin/ainewsdesk/internal/logging"
	"github.com/johnrirwin/ainewsdesk/internal/models"
)

const (
	langOriginal   = "original"
	langTranslated = "translated"
)

type articleView struct {
	models.Article
	IsFavorite bool `json:"isFavorite"`
}

type resultsResponse struct {
	Keywords       []string      `json:"keywords"`
	Tabs           []string      `json:"tabs"`
	ActiveTab      string        `json:"activeTab"`
	Tab            string        `json:"tab"`
	Lang           string        `json:"lang"`
	Articles       []articleView `json:"articles"`
	LastUpdated    *time.Time    `json:"lastUpdated,omitempty"`
	Error          string        `json:"error,omitempty"`
	FailedKeywords []string      `json:"failedKeywords,omitempty"`
}

type keywordRequest struct {
	Keyword string `json:"keyword"`
}

type deepDiveRequest struct {
	Article models.Article `json:"article"`
	Query   string         `json:"query"`
}

// resultsView renders the current results for the tab and language named in
// the query string. An empty tab means the tab the last cycle activated.
func (s *Server) resultsView(r *http.Request) resultsResponse {
	query := r.URL.Query()

	tab := query.Get("tab")
	active := s.agg.ActiveTab()
	if tab == "" {
		tab = active
	}

	lang := langOriginal
	articles := s.agg.Articles(tab)
	if query.Get("lang") == langTranslated {
		lang = langTranslated
		articles = s.agg.Display(articles)
	}

	views := make([]articleView, 0, len(articles))
	for _, a := range articles {
		views = append(views, articleView{Article: a, IsFavorite: s.sessions.IsFavorite(a.URL)})
	}

	resp := resultsResponse{
		Keywords:  s.agg.Keywords(),
		Tabs:      s.agg.Tabs(),
		ActiveTab: active,
		Tab:       tab,
		Lang:      lang,
		Articles:  views,
	}
	if last := s.agg.LastUpdated(); !last.IsZero() {
		resp.LastUpdated = &last
	}
	return resp
}

func (s *Server) handleGetKeywords(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"keywords": s.agg.Keywords(),
	})
}

func (s *Server) handleAddKeyword(w http.ResponseWriter, r *http.Request) {
	var req keywordRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if models.NormalizeKeyword(req.Keyword) == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_input", "keyword is required")
		return
	}

	added := s.agg.AddKeyword(req.Keyword)
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, map[string]interface{}{
		"added":    added,
		"keywords": s.agg.Keywords(),
	})
}

func (s *Server) handleRemoveKeyword(w http.ResponseWriter, r *http.Request) {
	s.agg.RemoveKeyword(pathParam(r, "keyword"))
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"keywords": s.agg.Keywords(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req keywordRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := s.cycleContext(r)
	defer cancel()

	s.writeCycleResult(w, r, s.agg.Search(ctx, req.Keyword))
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.cycleContext(r)
	defer cancel()

	s.writeCycleResult(w, r, s.agg.Trending(ctx))
}

func (s *Server) handleSearchKeyword(w http.ResponseWriter, r *http.Request) {
	kw := pathParam(r, "keyword")
	if models.NormalizeKeyword(kw) == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_input", "keyword is required")
		return
	}

	ctx, cancel := s.cycleContext(r)
	defer cancel()

	s.writeCycleResult(w, r, s.agg.SearchKeyword(ctx, kw))
}

func (s *Server) handleDeepDive(w http.ResponseWriter, r *http.Request) {
	var req deepDiveRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_input", "query is required")
		return
	}
	if req.Article.URL == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_input", "article url is required")
		return
	}

	ctx, cancel := s.cycleContext(r)
	defer cancel()

	kw, err := s.agg.DeepDive(ctx, req.Article, req.Query)
	if kw != "" && r.URL.Query().Get("tab") == "" {
		q := r.URL.Query()
		q.Set("tab", kw)
		r.URL.RawQuery = q.Encode()
	}
	s.writeCycleResult(w, r, err)
}

func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.resultsView(r))
}

// handleTranslate translates the articles of the requested tab. On failure
// the client keeps showing the original text.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	tab := r.URL.Query().Get("tab")
	if tab == "" {
		tab = s.agg.ActiveTab()
	}

	ctx, cancel := s.cycleContext(r)
	defer cancel()

	err := s.agg.Translate(ctx, s.agg.Articles(tab))
	switch {
	case err == nil:
		q := r.URL.Query()
		q.Set("tab", tab)
		q.Set("lang", langTranslated)
		r.URL.RawQuery = q.Encode()
		s.writeJSON(w, http.StatusOK, s.resultsView(r))
	case errors.Is(err, models.ErrMissingCredential):
		s.writeError(w, http.StatusUnauthorized, "missing_credential", err.Error())
	default:
		s.logger.Warn("Translation failed", logging.WithField("error", err.Error()))
		s.writeJSON(w, http.StatusBadGateway, map[string]string{
			"code":    "translation_failed",
			"message": models.ErrTranslationFailed.Error(),
			"lang":    langOriginal,
		})
	}
}
