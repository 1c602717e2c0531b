// Package session keeps the per-user state that outlives a retrieval cycle:
// favorites, favorite keywords, custom sources, saved searches, the mock
// login and the API credential. Every slice is loaded once at startup and
// rewritten in full whenever it changes.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/johnrirwin/ainewsdesk/internal/auth"
	"github.com/johnrirwin/ainewsdesk/internal/crypto"
	"github.com/johnrirwin/ainewsdesk/internal/logging"
	"github.com/johnrirwin/ainewsdesk/internal/models"
	"github.com/johnrirwin/ainewsdesk/internal/news"
	"github.com/johnrirwin/ainewsdesk/internal/sources"
	"github.com/johnrirwin/ainewsdesk/internal/store"
)

// Storage keys
const (
	KeyFavorites        = "favorites"
	KeyFavoriteKeywords = "favoriteKeywords"
	KeyCustomSources    = "customSources"
	KeySavedSearches    = "savedSearches"
	KeyUser             = "user"
	KeyAPIKey           = "apiKey"
)

// ExportFileName is the suggested download name of exported favorites.
const ExportFileName = "ai-news-favorites.json"

var (
	// ErrNothingToExport is returned when exporting an empty favorites list.
	ErrNothingToExport = errors.New("there are no favorites to export")
	// ErrInvalidInput is returned for empty or otherwise unusable input.
	ErrInvalidInput = errors.New("invalid input")
)

// SourceResolver turns user input for a custom source into a display name.
type SourceResolver interface {
	Resolve(ctx context.Context, raw string) (string, error)
}

type Manager struct {
	store    store.Store
	sealer   *crypto.Sealer
	auth     *auth.Service
	resolver SourceResolver
	logger   *logging.Logger
	newID    func() string

	mu               sync.RWMutex
	favorites        []models.Article
	favoriteKeywords []string
	customSources    []string
	savedSearches    []models.SavedSearch
	user             *models.Session
	credential       string
	selectedSources  []string
	selectedRegions  []string
}

func NewManager(st store.Store, sealer *crypto.Sealer, authService *auth.Service, resolver SourceResolver, logger *logging.Logger) *Manager {
	return &Manager{
		store:            st,
		sealer:           sealer,
		auth:             authService,
		resolver:         resolver,
		logger:           logger,
		newID:            newSearchID,
		favorites:        []models.Article{},
		favoriteKeywords: []string{},
		customSources:    []string{},
		savedSearches:    []models.SavedSearch{},
		selectedSources:  []string{sources.AllSources},
		selectedRegions:  []string{sources.AllRegions},
	}
}

func newSearchID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Load reads every persisted slice. Entries that cannot be read or decoded
// are logged and skipped; Load itself never fails.
func (m *Manager) Load(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loadJSON(ctx, KeyFavorites, &m.favorites)
	m.loadJSON(ctx, KeyFavoriteKeywords, &m.favoriteKeywords)
	m.loadJSON(ctx, KeyCustomSources, &m.customSources)
	m.loadJSON(ctx, KeySavedSearches, &m.savedSearches)

	if m.favorites == nil {
		m.favorites = []models.Article{}
	}
	if m.favoriteKeywords == nil {
		m.favoriteKeywords = []string{}
	}
	if m.customSources == nil {
		m.customSources = []string{}
	}
	if m.savedSearches == nil {
		m.savedSearches = []models.SavedSearch{}
	}

	var user models.Session
	if m.loadJSON(ctx, KeyUser, &user) && user.Username != "" {
		m.user = &user
	}

	raw, ok, err := m.store.Load(ctx, KeyAPIKey)
	switch {
	case err != nil:
		m.logger.Warn("Failed to load stored credential", logging.WithField("error", err.Error()))
	case ok:
		plain, err := m.sealer.Open(KeyAPIKey, raw)
		if err != nil {
			m.logger.Warn("Ignoring unreadable stored credential", logging.WithField("error", err.Error()))
			break
		}
		m.credential = strings.TrimSpace(plain)
	}
}

func (m *Manager) loadJSON(ctx context.Context, key string, dst interface{}) bool {
	raw, ok, err := m.store.Load(ctx, key)
	if err != nil {
		m.logger.Warn("Failed to load stored state", logging.WithFields(map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		}))
		return false
	}
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		m.logger.Warn("Ignoring corrupt stored state", logging.WithFields(map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		}))
		return false
	}
	return true
}

func (m *Manager) saveJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := m.store.Save(ctx, key, string(data)); err != nil {
		m.logger.Error("Failed to persist state", logging.WithFields(map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		}))
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// SeedCredential stores key as the credential unless one is already set.
// It is how a key from the environment reaches a fresh install.
func (m *Manager) SeedCredential(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" || m.Credential() != "" {
		return nil
	}
	return m.SetCredential(ctx, key)
}

// SetCredential replaces the API key. Surrounding whitespace is trimmed and
// an empty key deletes the stored one.
func (m *Manager) SetCredential(ctx context.Context, raw string) error {
	key := strings.TrimSpace(raw)

	m.mu.Lock()
	defer m.mu.Unlock()

	if key == "" {
		m.credential = ""
		if err := m.store.Delete(ctx, KeyAPIKey); err != nil {
			return fmt.Errorf("failed to delete credential: %w", err)
		}
		return nil
	}

	sealed, err := m.sealer.Seal(KeyAPIKey, key)
	if err != nil {
		return fmt.Errorf("failed to seal credential: %w", err)
	}
	if err := m.store.Save(ctx, KeyAPIKey, sealed); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	m.credential = key
	return nil
}

// Credential returns the plaintext API key, empty when none is configured.
func (m *Manager) Credential() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.credential
}

// HasCredential reports whether an API key is configured.
func (m *Manager) HasCredential() bool {
	return m.Credential() != ""
}

// ToggleFavorite adds article to the front of the favorites, or removes it
// when an article with the same URL is already there. It reports whether the
// article is a favorite afterwards.
func (m *Manager) ToggleFavorite(ctx context.Context, article models.Article) (bool, error) {
	if strings.TrimSpace(article.URL) == "" {
		return false, ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var next []models.Article
	added := !models.ContainsURL(m.favorites, article.URL)
	if added {
		next = make([]models.Article, 0, len(m.favorites)+1)
		next = append(next, article)
		next = append(next, m.favorites...)
	} else {
		next = make([]models.Article, 0, len(m.favorites))
		for _, f := range m.favorites {
			if f.URL != article.URL {
				next = append(next, f)
			}
		}
	}
	m.favorites = next
	return added, m.saveJSON(ctx, KeyFavorites, next)
}

func (m *Manager) Favorites() []models.Article {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.favorites)
}

func (m *Manager) IsFavorite(url string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.ContainsURL(m.favorites, url)
}

// ExportFavorites renders the favorites as indented JSON.
func (m *Manager) ExportFavorites() ([]byte, error) {
	favorites := m.Favorites()
	if len(favorites) == 0 {
		return nil, ErrNothingToExport
	}
	return json.MarshalIndent(favorites, "", "  ")
}

// AddFavoriteKeyword stores kw for one-click searches. It reports false when
// kw is empty or already stored.
func (m *Manager) AddFavoriteKeyword(ctx context.Context, kw string) (bool, error) {
	kw = models.NormalizeKeyword(kw)
	if kw == "" {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if slices.Contains(m.favoriteKeywords, kw) {
		return false, nil
	}
	m.favoriteKeywords = models.AppendUnique(m.favoriteKeywords, kw)
	return true, m.saveJSON(ctx, KeyFavoriteKeywords, m.favoriteKeywords)
}

func (m *Manager) RemoveFavoriteKeyword(ctx context.Context, kw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.favoriteKeywords = models.Without(m.favoriteKeywords, kw)
	return m.saveJSON(ctx, KeyFavoriteKeywords, m.favoriteKeywords)
}

func (m *Manager) FavoriteKeywords() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.favoriteKeywords)
}

// AddCustomSource adds a user-defined source. Feed URLs are resolved to the
// feed title when the feed can be read; otherwise the input is kept as typed.
// It returns the stored name and false when nothing was added.
func (m *Manager) AddCustomSource(ctx context.Context, raw string) (string, bool, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", false, nil
	}

	if m.resolver != nil {
		resolved, err := m.resolver.Resolve(ctx, name)
		if err != nil {
			m.logger.Warn("Could not resolve custom source feed", logging.WithFields(map[string]interface{}{
				"source": name,
				"error":  err.Error(),
			}))
		}
		if resolved = strings.TrimSpace(resolved); resolved != "" {
			name = resolved
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sources.IsDefault(name) || slices.Contains(m.customSources, name) {
		return name, false, nil
	}
	m.customSources = models.AppendUnique(m.customSources, name)
	return name, true, m.saveJSON(ctx, KeyCustomSources, m.customSources)
}

// RemoveCustomSource deletes a custom source and deselects it.
func (m *Manager) RemoveCustomSource(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.customSources = models.Without(m.customSources, name)
	m.selectedSources = normalizeSelection(models.Without(m.selectedSources, name), sources.AllSources)
	return m.saveJSON(ctx, KeyCustomSources, m.customSources)
}

func (m *Manager) CustomSources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.customSources)
}

// SourceOptions lists every selectable source: the sentinel, the defaults
// and the custom sources.
func (m *Manager) SourceOptions() []string {
	return sources.Options(m.CustomSources())
}

// Filters returns the current source and region selection.
func (m *Manager) Filters() news.Filters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return news.Filters{
		Sources: slices.Clone(m.selectedSources),
		Regions: slices.Clone(m.selectedRegions),
	}
}

// SetFilters replaces the selection. An empty list selects everything.
func (m *Manager) SetFilters(f news.Filters) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selectedSources = normalizeSelection(f.Sources, sources.AllSources)
	m.selectedRegions = normalizeSelection(f.Regions, sources.AllRegions)
}

func normalizeSelection(selected []string, sentinel string) []string {
	out := make([]string, 0, len(selected))
	for _, s := range selected {
		if s = strings.TrimSpace(s); s != "" {
			out = models.AppendUnique(out, s)
		}
	}
	if len(out) == 0 {
		return []string{sentinel}
	}
	return out
}

// SaveSearch stores keywords together with a source selection; nil selected
// means the current one. An empty keyword list or a search equal to a stored
// one (ignoring order) is not saved. New searches go to the front.
func (m *Manager) SaveSearch(ctx context.Context, keywords, selected []string) (*models.SavedSearch, bool, error) {
	if len(keywords) == 0 {
		return nil, false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	search := models.SavedSearch{
		ID:      m.newID(),
		Query:   slices.Clone(keywords),
		Sources: slices.Clone(m.selectedSources),
	}
	if selected != nil {
		search.Sources = normalizeSelection(selected, sources.AllSources)
	}
	for _, existing := range m.savedSearches {
		if existing.SameAs(search) {
			return &existing, false, nil
		}
	}

	next := make([]models.SavedSearch, 0, len(m.savedSearches)+1)
	next = append(next, search)
	next = append(next, m.savedSearches...)
	m.savedSearches = next
	return &search, true, m.saveJSON(ctx, KeySavedSearches, next)
}

func (m *Manager) RemoveSearch(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make([]models.SavedSearch, 0, len(m.savedSearches))
	for _, s := range m.savedSearches {
		if s.ID != id {
			next = append(next, s)
		}
	}
	m.savedSearches = next
	return m.saveJSON(ctx, KeySavedSearches, next)
}

// LoadSearch selects the sources of a saved search and returns it so the
// caller can restore its keywords.
func (m *Manager) LoadSearch(id string) (*models.SavedSearch, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.savedSearches {
		if s.ID == id {
			m.selectedSources = normalizeSelection(s.Sources, sources.AllSources)
			found := s
			return &found, true
		}
	}
	return nil, false
}

func (m *Manager) SavedSearches() []models.SavedSearch {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.savedSearches)
}

// Login simulates signing in with service and persists the session.
func (m *Manager) Login(ctx context.Context, service string) (*models.Session, error) {
	sess, err := m.auth.Login(service)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.user = sess
	return sess, m.saveJSON(ctx, KeyUser, sess)
}

func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.user = nil
	if err := m.store.Delete(ctx, KeyUser); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Session returns the logged-in user, nil when logged out.
func (m *Manager) Session() *models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	sess := *m.user
	return &sess
}
