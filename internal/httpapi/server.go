package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/johnrirwin/ainewsdesk/internal/aggregator"
	"github.com/johnrirwin/ainewsdesk/internal/auth"
	"github.com/johnrirwin/ainewsdesk/internal/logging"
	"github.com/johnrirwin/ainewsdesk/internal/models"
	"github.com/johnrirwin/ainewsdesk/internal/scheduler"
	"github.com/johnrirwin/ainewsdesk/internal/session"
)

const (
	defaultCycleTimeout = 3 * time.Minute
	maxBodyBytes        = 1 << 20
)

type Server struct {
	agg            *aggregator.Aggregator
	sessions       *session.Manager
	sched          *scheduler.Scheduler
	authMiddleware *auth.Middleware
	logger         *logging.Logger
	cycleTimeout   time.Duration
	router         chi.Router
	server         *http.Server
}

func New(agg *aggregator.Aggregator, sessions *session.Manager, sched *scheduler.Scheduler, authMiddleware *auth.Middleware, logger *logging.Logger) *Server {
	s := &Server{
		agg:            agg,
		sessions:       sessions,
		sched:          sched,
		authMiddleware: authMiddleware,
		logger:         logger,
		cycleTimeout:   defaultCycleTimeout,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Credential
		r.Get("/credential", s.handleGetCredential)
		r.Put("/credential", s.handlePutCredential)
		r.Delete("/credential", s.handleDeleteCredential)

		// Keywords and retrieval cycles
		r.Get("/keywords", s.handleGetKeywords)
		r.Post("/keywords", s.handleAddKeyword)
		r.Delete("/keywords/{keyword}", s.handleRemoveKeyword)
		r.Post("/keywords/{keyword}/search", s.handleSearchKeyword)
		r.Post("/search", s.handleSearch)
		r.Post("/trending", s.handleTrending)
		r.Post("/deep-dive", s.handleDeepDive)
		r.Get("/results", s.handleGetResults)
		r.Post("/translate", s.handleTranslate)

		// Favorites
		r.Get("/favorites", s.handleGetFavorites)
		r.Post("/favorites", s.handleToggleFavorite)
		r.Get("/favorites/export", s.handleExportFavorites)
		r.Get("/favorite-keywords", s.handleGetFavoriteKeywords)
		r.Post("/favorite-keywords", s.handleAddFavoriteKeyword)
		r.Delete("/favorite-keywords/{keyword}", s.handleRemoveFavoriteKeyword)

		// Sources and filters
		r.Get("/sources", s.handleGetSources)
		r.Post("/sources", s.handleAddSource)
		r.Delete("/sources/{source}", s.handleRemoveSource)
		r.Get("/filters", s.handleGetFilters)
		r.Put("/filters", s.handlePutFilters)
		r.Get("/regions", s.handleGetRegions)

		// Saved searches
		r.Get("/saved-searches", s.handleGetSavedSearches)
		r.Post("/saved-searches", s.handleSaveSearch)
		r.Delete("/saved-searches/{id}", s.handleRemoveSavedSearch)
		r.Post("/saved-searches/{id}/load", s.handleLoadSavedSearch)

		// Mock login
		r.With(s.authMiddleware.OptionalAuth).Get("/session", s.handleGetSession)
		r.Post("/login", s.handleLogin)
		r.With(s.authMiddleware.RequireAuth).Post("/logout", s.handleLogout)

		// Auto-refresh
		r.Get("/refresh", s.handleGetRefresh)
		r.Put("/refresh", s.handlePutRefresh)
	})

	s.router = r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.cycleTimeout + 15*time.Second,
	}

	s.logger.Info("HTTP API server starting", logging.WithField("addr", addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("HTTP request", logging.WithFields(map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return false
	}
	return true
}

// pathParam returns the unescaped value of a route parameter.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// cycleContext bounds a retrieval cycle started by a request. The cycle is
// detached from the request: a client that goes away does not cancel the
// API calls, and their results are still applied.
func (s *Server) cycleContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), s.cycleTimeout)
}

// writeCycleResult maps the outcome of a retrieval cycle to a response. A
// partially failed cycle still returns 200 with the results that succeeded.
func (s *Server) writeCycleResult(w http.ResponseWriter, r *http.Request, err error) {
	var cycleErr *models.CycleError
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, s.resultsView(r))
	case errors.Is(err, models.ErrMissingCredential):
		s.writeError(w, http.StatusUnauthorized, "missing_credential", err.Error())
	case errors.Is(err, aggregator.ErrCycleInFlight):
		s.writeError(w, http.StatusConflict, "cycle_in_flight", err.Error())
	case errors.As(err, &cycleErr):
		view := s.resultsView(r)
		view.Error = cycleErr.Error()
		view.FailedKeywords = cycleErr.Keywords()
		s.writeJSON(w, http.StatusOK, view)
	default:
		s.logger.Error("Retrieval cycle failed", logging.WithField("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "internal_error", "retrieval cycle failed")
	}
}
