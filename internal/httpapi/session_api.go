package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/johnrirwin/ainewsdesk/internal/auth"
	"github.com/johnrirwin/ainewsdesk/internal/logging"
	"github.com/johnrirwin/ainewsdesk/internal/models"
	"github.com/johnrirwin/ainewsdesk/internal/news"
	"github.com/johnrirwin/ainewsdesk/internal/session"
	"github.com/johnrirwin/ainewsdesk/internal/sources"
)

type credentialRequest struct {
	APIKey string `json:"apiKey"`
}

type sourceRequest struct {
	Source string `json:"source"`
}

type saveSearchRequest struct {
	Query   []string `json:"query"`
	Sources []string `json:"sources"`
}

type loginRequest struct {
	Service string `json:"service"`
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, logging.WithField("error", err.Error()))
	s.writeError(w, http.StatusInternalServerError, "internal_error", msg)
}

func (s *Server) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{
		"configured": s.sessions.HasCredential(),
	})
}

func (s *Server) handlePutCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	s.setCredential(w, r, req.APIKey)
}

func (s *Server) handleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	s.setCredential(w, r, "")
}

func (s *Server) setCredential(w http.ResponseWriter, r *http.Request, key string) {
	if err := s.sessions.SetCredential(r.Context(), key); err != nil {
		s.internalError(w, "failed to save credential", err)
		return
	}
	s.sched.CredentialChanged()

	s.writeJSON(w, http.StatusOK, map[string]bool{
		"configured": s.sessions.HasCredential(),
	})
}

func (s *Server) handleGetFavorites(w http.ResponseWriter, r *http.Request) {
	favorites := s.sessions.Favorites()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"favorites": favorites,
		"count":     len(favorites),
	})
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var article models.Article
	if !s.decodeJSON(w, r, &article) {
		return
	}

	favorite, err := s.sessions.ToggleFavorite(r.Context(), article)
	if errors.Is(err, session.ErrInvalidInput) {
		s.writeError(w, http.StatusBadRequest, "invalid_input", "article url is required")
		return
	}
	if err != nil {
		s.internalError(w, "failed to save favorites", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"favorite":  favorite,
		"favorites": s.sessions.Favorites(),
	})
}

func (s *Server) handleExportFavorites(w http.ResponseWriter, r *http.Request) {
	data, err := s.sessions.ExportFavorites()
	if errors.Is(err, session.ErrNothingToExport) {
		s.writeError(w, http.StatusNotFound, "nothing_to_export", err.Error())
		return
	}
	if err != nil {
		s.internalError(w, "failed to export favorites", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", session.ExportFileName))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleGetFavoriteKeywords(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"keywords": s.sessions.FavoriteKeywords(),
	})
}

func (s *Server) handleAddFavoriteKeyword(w http.ResponseWriter, r *http.Request) {
	var req keywordRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	added, err := s.sessions.AddFavoriteKeyword(r.Context(), req.Keyword)
	if err != nil {
		s.internalError(w, "failed to save favorite keywords", err)
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, map[string]interface{}{
		"added":    added,
		"keywords": s.sessions.FavoriteKeywords(),
	})
}

func (s *Server) handleRemoveFavoriteKeyword(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.RemoveFavoriteKeyword(r.Context(), pathParam(r, "keyword")); err != nil {
		s.internalError(w, "failed to save favorite keywords", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"keywords": s.sessions.FavoriteKeywords(),
	})
}

func (s *Server) sourcesView() map[string]interface{} {
	return map[string]interface{}{
		"options":  s.sessions.SourceOptions(),
		"defaults": sources.Defaults(),
		"custom":   s.sessions.CustomSources(),
		"selected": s.sessions.Filters().Sources,
	}
}

func (s *Server) handleGetSources(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sourcesView())
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	name, added, err := s.sessions.AddCustomSource(r.Context(), req.Source)
	if err != nil {
		s.internalError(w, "failed to save custom sources", err)
		return
	}
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_input", "source is required")
		return
	}

	view := s.sourcesView()
	view["added"] = added
	view["source"] = name
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, view)
}

func (s *Server) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.RemoveCustomSource(r.Context(), pathParam(r, "source")); err != nil {
		s.internalError(w, "failed to save custom sources", err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.sourcesView())
}

func (s *Server) handleGetFilters(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sessions.Filters())
}

func (s *Server) handlePutFilters(w http.ResponseWriter, r *http.Request) {
	var req news.Filters
	if !s.decodeJSON(w, r, &req) {
		return
	}
	s.sessions.SetFilters(req)
	s.writeJSON(w, http.StatusOK, s.sessions.Filters())
}

func (s *Server) handleGetRegions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"options":  append([]string{sources.AllRegions}, sources.Regions()...),
		"selected": s.sessions.Filters().Regions,
	})
}

func (s *Server) handleGetSavedSearches(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"savedSearches": s.sessions.SavedSearches(),
	})
}

// handleSaveSearch saves the given keywords, or the active keyword set when
// the body names none.
func (s *Server) handleSaveSearch(w http.ResponseWriter, r *http.Request) {
	var req saveSearchRequest
	if r.ContentLength != 0 && !s.decodeJSON(w, r, &req) {
		return
	}
	query := req.Query
	if len(query) == 0 {
		query = s.agg.Keywords()
	}
	if len(query) == 0 {
		s.writeError(w, http.StatusBadRequest, "invalid_input", "there are no keywords to save")
		return
	}

	search, saved, err := s.sessions.SaveSearch(r.Context(), query, req.Sources)
	if err != nil {
		s.internalError(w, "failed to save searches", err)
		return
	}

	status := http.StatusOK
	if saved {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, map[string]interface{}{
		"saved":         saved,
		"search":        search,
		"savedSearches": s.sessions.SavedSearches(),
	})
}

func (s *Server) handleRemoveSavedSearch(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.RemoveSearch(r.Context(), pathParam(r, "id")); err != nil {
		s.internalError(w, "failed to save searches", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"savedSearches": s.sessions.SavedSearches(),
	})
}

// handleLoadSavedSearch restores the keywords and sources of a saved search
// without running it.
func (s *Server) handleLoadSavedSearch(w http.ResponseWriter, r *http.Request) {
	search, ok := s.sessions.LoadSearch(pathParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "saved search not found")
		return
	}
	s.agg.SetKeywords(search.Query)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"keywords": s.agg.Keywords(),
		"filters":  s.sessions.Filters(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	user := s.sessions.Session()
	resp := map[string]interface{}{
		"loggedIn":      user != nil,
		"authenticated": auth.GetUsername(r.Context()) != "",
		"services":      sources.LoginServices(),
	}
	if user != nil {
		resp["user"] = models.Session{Username: user.Username, Service: user.Service}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	sess, err := s.sessions.Login(r.Context(), req.Service)
	if err != nil {
		var authErr *auth.AuthError
		if errors.As(err, &authErr) {
			s.writeError(w, http.StatusBadRequest, authErr.Code, authErr.Message)
			return
		}
		s.internalError(w, "login failed", err)
		return
	}

	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context()); err != nil {
		s.internalError(w, "logout failed", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{
		"loggedIn": false,
	})
}
