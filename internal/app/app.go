package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/johnrirwin/ainewsdesk/internal/aggregator"
	"github.com/johnrirwin/ainewsdesk/internal/auth"
	"github.com/johnrirwin/ainewsdesk/internal/config"
	"github.com/johnrirwin/ainewsdesk/internal/crypto"
	"github.com/johnrirwin/ainewsdesk/internal/database"
	"github.com/johnrirwin/ainewsdesk/internal/gemini"
	"github.com/johnrirwin/ainewsdesk/internal/httpapi"
	"github.com/johnrirwin/ainewsdesk/internal/logging"
	"github.com/johnrirwin/ainewsdesk/internal/models"
	"github.com/johnrirwin/ainewsdesk/internal/news"
	"github.com/johnrirwin/ainewsdesk/internal/scheduler"
	"github.com/johnrirwin/ainewsdesk/internal/session"
	"github.com/johnrirwin/ainewsdesk/internal/sources"
	"github.com/johnrirwin/ainewsdesk/internal/store"
)

const feedResolveTimeout = 10 * time.Second

// App holds all application dependencies
type App struct {
	Config         *config.Config
	Logger         *logging.Logger
	Store          store.Store
	Sessions       *session.Manager
	Aggregator     *aggregator.Aggregator
	Scheduler      *scheduler.Scheduler
	AuthService    *auth.Service
	AuthMiddleware *auth.Middleware
	HTTPServer     *httpapi.Server
	out            io.Writer
	closers        []func() error
}

// New creates and initializes a new App instance
func New(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}
	app.Logger = app.initLogger()

	client := gemini.New(gemini.Config{
		Model:   cfg.Gemini.Model,
		Timeout: cfg.Gemini.RequestTimeout,
		BaseURL: cfg.Gemini.BaseURL,
	})
	app.Logger.Info("Using generative model", logging.WithField("model", client.Model()))

	if err := app.init(context.Background(), client); err != nil {
		return nil, err
	}
	return app, nil
}

// init wires everything behind the generator. Split from New so tests can
// supply their own generator.
func (a *App) init(ctx context.Context, gen news.Generator) error {
	if a.out == nil {
		a.out = os.Stdout
	}

	a.Store = a.initStore(ctx)

	sealer, err := crypto.NewSealer(a.Config.Crypto.SealKey)
	if err != nil {
		return fmt.Errorf("failed to initialize credential sealing: %w", err)
	}

	a.AuthService = auth.NewService(a.Config.Auth, a.Logger)
	a.AuthMiddleware = auth.NewMiddleware(a.AuthService)

	a.Sessions = session.NewManager(a.Store, sealer, a.AuthService, sources.NewFeedResolver(feedResolveTimeout), a.Logger)
	a.Sessions.Load(ctx)
	if err := a.Sessions.SeedCredential(ctx, a.Config.Gemini.APIKey); err != nil {
		a.Logger.Warn("Failed to store API key from environment", logging.WithField("error", err.Error()))
	}
	if !a.Sessions.HasCredential() {
		a.Logger.Warn("No Gemini API key configured; searches fail until one is set")
	}

	retriever := news.NewRetriever(gen, a.Logger)
	translator := news.NewTranslator(gen, a.Config.Gemini.TranslateTarget, a.Logger)
	a.Aggregator = aggregator.New(retriever, translator, a.Sessions, a.Store, a.Logger)
	a.Aggregator.Restore(ctx)

	a.Scheduler = scheduler.New(a.Aggregator, a.Sessions, a.Logger, scheduler.Options{})
	a.HTTPServer = httpapi.New(a.Aggregator, a.Sessions, a.Scheduler, a.AuthMiddleware, a.Logger)
	return nil
}

// Run starts the application in the appropriate mode
func (a *App) Run(ctx context.Context) error {
	if a.Config.Server.RefreshOnceMode {
		return a.runOnceMode(ctx)
	}
	return a.runHTTPMode(ctx)
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTP server shutdown error", logging.WithField("error", err.Error()))
		}
	}

	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.Logger.Error("Store close error", logging.WithField("error", err.Error()))
		}
	}

	return nil
}

func (a *App) initLogger() *logging.Logger {
	level := logging.ParseLevel(a.Config.Logging.Level)
	if a.Config.Logging.Format == "json" {
		return logging.NewJSON(level)
	}
	return logging.New(level)
}

func (a *App) initStore(ctx context.Context) store.Store {
	cfg := a.Config.Store

	switch cfg.Backend {
	case "memory":
		a.Logger.Info("Using in-memory state store; nothing survives a restart")
		return store.NewMemory()

	case "redis":
		a.Logger.Info("Using Redis state store", logging.WithField("addr", cfg.RedisAddr))
		redisStore, err := store.NewRedis(store.RedisConfig{
			Addr:   cfg.RedisAddr,
			Prefix: cfg.Prefix,
		})
		if err != nil {
			a.Logger.Error("Failed to connect to Redis, falling back to memory store", logging.WithField("error", err.Error()))
			return store.NewMemory()
		}
		a.closers = append(a.closers, redisStore.Close)
		return redisStore

	case "postgres":
		db, err := database.New(database.Config{
			Host:     a.Config.Database.Host,
			Port:     a.Config.Database.Port,
			User:     a.Config.Database.User,
			Password: a.Config.Database.Password,
			Database: a.Config.Database.Database,
			SSLMode:  a.Config.Database.SSLMode,
		})
		if err != nil {
			a.Logger.Error("Failed to connect to PostgreSQL, falling back to memory store", logging.WithField("error", err.Error()))
			return store.NewMemory()
		}
		pgStore, err := store.NewPostgres(ctx, db)
		if err != nil {
			a.Logger.Error("Failed to run migrations, falling back to memory store", logging.WithField("error", err.Error()))
			db.Close()
			return store.NewMemory()
		}
		a.Logger.Info("Using PostgreSQL state store")
		a.closers = append(a.closers, db.Close)
		return pgStore

	default:
		fileStore, err := store.NewFile(cfg.FilePath)
		if err != nil {
			a.Logger.Error("Failed to open state file, falling back to memory store", logging.WithFields(map[string]interface{}{
				"path":  cfg.FilePath,
				"error": err.Error(),
			}))
			return store.NewMemory()
		}
		a.Logger.Info("Using file state store", logging.WithField("path", cfg.FilePath))
		return fileStore
	}
}

type onceTab struct {
	Keyword  string           `json:"keyword"`
	Articles []models.Article `json:"articles"`
}

type onceOutput struct {
	Keywords     []string         `json:"keywords"`
	Tabs         []onceTab        `json:"tabs"`
	Consolidated []models.Article `json:"consolidated"`
	Error        string           `json:"error,omitempty"`
}

// runOnceMode runs a single cycle over the configured keywords (trending when
// none are given), prints the results as JSON and returns the cycle's error.
func (a *App) runOnceMode(ctx context.Context) error {
	keywords := a.Config.Server.OnceKeywords
	if len(keywords) == 0 {
		keywords = []string{models.TrendingKeyword}
	}
	a.Aggregator.SetKeywords(keywords)
	keywords = a.Aggregator.Keywords()

	a.Logger.Info("Running a single retrieval cycle", logging.WithField("keywords", keywords))
	err := a.Aggregator.Run(ctx, keywords, aggregator.ModeReplace)

	var cycleErr *models.CycleError
	if err != nil && !errors.As(err, &cycleErr) {
		return err
	}

	out := onceOutput{
		Keywords:     keywords,
		Tabs:         make([]onceTab, 0, len(keywords)),
		Consolidated: a.Aggregator.Articles(models.ConsolidatedTab),
	}
	for _, tab := range a.Aggregator.Tabs() {
		out.Tabs = append(out.Tabs, onceTab{Keyword: tab, Articles: a.Aggregator.Articles(tab)})
	}
	if cycleErr != nil {
		out.Error = cycleErr.Error()
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(out); encErr != nil {
		return fmt.Errorf("failed to write results: %w", encErr)
	}
	return err
}

func (a *App) runHTTPMode(ctx context.Context) error {
	if hours := a.Config.Refresh.IntervalHours; hours > 0 {
		if !sources.IsValidInterval(hours) {
			a.Logger.Warn("Ignoring unsupported refresh interval", logging.WithField("hours", hours))
		} else if err := a.Scheduler.SetInterval(hours); err != nil {
			a.Logger.Warn("Failed to start auto-refresh", logging.WithField("error", err.Error()))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.HTTPServer.Start(a.Config.Server.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
