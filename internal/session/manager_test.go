package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/johnrirwin/ainewsdesk/internal/auth"
	"github.com/johnrirwin/ainewsdesk/internal/config"
	"github.com/johnrirwin/ainewsdesk/internal/crypto"
	"github.com/johnrirwin/ainewsdesk/internal/models"
	"github.com/johnrirwin/ainewsdesk/internal/news"
	"github.com/johnrirwin/ainewsdesk/internal/sources"
	"github.com/johnrirwin/ainewsdesk/internal/store"
	"github.com/johnrirwin/ainewsdesk/internal/testutil"
)

type fakeResolver struct {
	names map[string]string
	err   error
}

func (r *fakeResolver) Resolve(ctx context.Context, raw string) (string, error) {
	if r.err != nil {
		return raw, r.err
	}
	if name, ok := r.names[raw]; ok {
		return name, nil
	}
	return raw, nil
}

func newTestManager(t *testing.T, st store.Store) *Manager {
	t.Helper()
	sealer, err := crypto.NewSealer("test-passphrase")
	if err != nil {
		t.Fatalf("NewSealer() error = %v", err)
	}
	authService := auth.NewService(config.AuthConfig{
		SessionSecret: "test-secret-key-minimum-32-chars-long",
		Issuer:        "ainewsdesk-test",
		TokenTTL:      time.Hour,
	}, testutil.NullLogger())

	m := NewManager(st, sealer, authService, &fakeResolver{}, testutil.NullLogger())
	n := 0
	m.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return m
}

func article(url string) models.Article {
	return models.Article{Title: "T " + url, Summary: "S", URL: url, Source: "Zenn"}
}

func TestCredential(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := newTestManager(t, st)

	if m.HasCredential() {
		t.Fatal("new manager should have no credential")
	}

	if err := m.SetCredential(ctx, "  AIza-secret \n"); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}
	if got := m.Credential(); got != "AIza-secret" {
		t.Errorf("Credential() = %q, want trimmed key", got)
	}

	raw, ok, _ := st.Load(ctx, KeyAPIKey)
	if !ok || !crypto.IsSealed(raw) || strings.Contains(raw, "AIza-secret") {
		t.Errorf("stored credential = %q, want sealed value", raw)
	}

	reloaded := newTestManager(t, st)
	reloaded.Load(ctx)
	if got := reloaded.Credential(); got != "AIza-secret" {
		t.Errorf("reloaded Credential() = %q", got)
	}

	if err := m.SetCredential(ctx, "   "); err != nil {
		t.Fatalf("SetCredential(empty) error = %v", err)
	}
	if m.HasCredential() {
		t.Error("empty key should clear the credential")
	}
	if _, ok, _ := st.Load(ctx, KeyAPIKey); ok {
		t.Error("empty key should delete the stored credential")
	}
}

func TestSeedCredential(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, store.NewMemory())

	if err := m.SeedCredential(ctx, "from-env"); err != nil {
		t.Fatal(err)
	}
	if m.Credential() != "from-env" {
		t.Errorf("Credential() = %q", m.Credential())
	}

	if err := m.SeedCredential(ctx, "other"); err != nil {
		t.Fatal(err)
	}
	if m.Credential() != "from-env" {
		t.Errorf("seed should not replace an existing key, got %q", m.Credential())
	}
}

func TestLoad_LegacyPlaintextCredential(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	_ = st.Save(ctx, KeyAPIKey, "plain-key")

	m := newTestManager(t, st)
	m.Load(ctx)
	if m.Credential() != "plain-key" {
		t.Errorf("Credential() = %q, want plain-key", m.Credential())
	}
}

func TestLoad_CorruptEntriesIgnored(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	_ = st.Save(ctx, KeyFavorites, "{not json")
	_ = st.Save(ctx, KeyFavoriteKeywords, `["Sora","Gemini"]`)
	_ = st.Save(ctx, KeySavedSearches, `42`)
	_ = st.Save(ctx, KeyUser, `[]`)

	m := newTestManager(t, st)
	m.Load(ctx)

	if got := m.Favorites(); len(got) != 0 {
		t.Errorf("Favorites() = %v, want empty", got)
	}
	if got := m.FavoriteKeywords(); !reflect.DeepEqual(got, []string{"Sora", "Gemini"}) {
		t.Errorf("FavoriteKeywords() = %v", got)
	}
	if got := m.SavedSearches(); len(got) != 0 {
		t.Errorf("SavedSearches() = %v, want empty", got)
	}
	if m.Session() != nil {
		t.Error("Session() should be nil for a corrupt user entry")
	}
}

func TestToggleFavorite(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := newTestManager(t, st)

	for _, url := range []string{"https://a", "https://b"} {
		added, err := m.ToggleFavorite(ctx, article(url))
		if err != nil || !added {
			t.Fatalf("ToggleFavorite(%s) = %v, %v", url, added, err)
		}
	}

	got := m.Favorites()
	if len(got) != 2 || got[0].URL != "https://b" || got[1].URL != "https://a" {
		t.Fatalf("Favorites() = %v, want newest first", got)
	}
	if !m.IsFavorite("https://a") {
		t.Error("IsFavorite(a) = false")
	}

	added, err := m.ToggleFavorite(ctx, article("https://a"))
	if err != nil || added {
		t.Fatalf("second toggle = %v, %v, want removal", added, err)
	}
	if m.IsFavorite("https://a") {
		t.Error("a should no longer be a favorite")
	}

	raw, _, _ := st.Load(ctx, KeyFavorites)
	var stored []models.Article
	if err := json.Unmarshal([]byte(raw), &stored); err != nil || len(stored) != 1 {
		t.Errorf("stored favorites = %s", raw)
	}

	if _, err := m.ToggleFavorite(ctx, models.Article{Title: "no url"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ToggleFavorite(no url) error = %v", err)
	}
}

func TestExportFavorites(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, store.NewMemory())

	if _, err := m.ExportFavorites(); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("ExportFavorites() on empty = %v", err)
	}

	_, _ = m.ToggleFavorite(ctx, article("https://a"))
	data, err := m.ExportFavorites()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\n  {\n    \"title\"") {
		t.Errorf("export is not 2-space indented:\n%s", data)
	}
	var decoded []models.Article
	if err := json.Unmarshal(data, &decoded); err != nil || len(decoded) != 1 {
		t.Errorf("export does not decode: %v", err)
	}
}

func TestFavoriteKeywords(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, store.NewMemory())

	tests := []struct {
		input string
		added bool
	}{
		{" Sora ", true},
		{"Sora", false},
		{"", false},
		{"Gemini", true},
	}
	for _, tt := range tests {
		added, err := m.AddFavoriteKeyword(ctx, tt.input)
		if err != nil || added != tt.added {
			t.Errorf("AddFavoriteKeyword(%q) = %v, %v, want %v", tt.input, added, err, tt.added)
		}
	}

	if err := m.RemoveFavoriteKeyword(ctx, "Sora"); err != nil {
		t.Fatal(err)
	}
	if got := m.FavoriteKeywords(); !reflect.DeepEqual(got, []string{"Gemini"}) {
		t.Errorf("FavoriteKeywords() = %v", got)
	}
}

func TestCustomSources(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, store.NewMemory())
	m.resolver = &fakeResolver{names: map[string]string{"https://example.com/feed": "Example Blog"}}

	tests := []struct {
		name  string
		input string
		want  string
		added bool
	}{
		{"plain", " My Blog ", "My Blog", true},
		{"duplicate", "My Blog", "My Blog", false},
		{"default source", "Qiita", "Qiita", false},
		{"empty", "   ", "", false},
		{"feed url", "https://example.com/feed", "Example Blog", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, added, err := m.AddCustomSource(ctx, tt.input)
			if err != nil {
				t.Fatal(err)
			}
			if name != tt.want || added != tt.added {
				t.Errorf("AddCustomSource(%q) = %q, %v, want %q, %v", tt.input, name, added, tt.want, tt.added)
			}
		})
	}

	if got := m.CustomSources(); !reflect.DeepEqual(got, []string{"My Blog", "Example Blog"}) {
		t.Errorf("CustomSources() = %v", got)
	}
	opts := m.SourceOptions()
	if opts[0] != sources.AllSources || opts[len(opts)-1] != "Example Blog" {
		t.Errorf("SourceOptions() = %v", opts)
	}
}

func TestAddCustomSource_ResolverFailureKeepsInput(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, store.NewMemory())
	m.resolver = &fakeResolver{err: errors.New("unreachable")}

	name, added, err := m.AddCustomSource(ctx, "https://down.example/rss")
	if err != nil || !added || name != "https://down.example/rss" {
		t.Errorf("AddCustomSource() = %q, %v, %v", name, added, err)
	}
}

func TestRemoveCustomSource_Deselects(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, store.NewMemory())
	_, _, _ = m.AddCustomSource(ctx, "My Blog")
	m.SetFilters(news.Filters{Sources: []string{"My Blog", "Zenn"}})

	if err := m.RemoveCustomSource(ctx, "My Blog"); err != nil {
		t.Fatal(err)
	}
	if got := m.Filters().Sources; !reflect.DeepEqual(got, []string{"Zenn"}) {
		t.Errorf("selected sources = %v, want [Zenn]", got)
	}

	_, _, _ = m.AddCustomSource(ctx, "Only")
	m.SetFilters(news.Filters{Sources: []string{"Only"}})
	_ = m.RemoveCustomSource(ctx, "Only")
	if got := m.Filters().Sources; !reflect.DeepEqual(got, []string{sources.AllSources}) {
		t.Errorf("selected sources = %v, want sentinel", got)
	}
}

func TestFilters_Defaults(t *testing.T) {
	m := newTestManager(t, store.NewMemory())

	f := m.Filters()
	if !reflect.DeepEqual(f.Sources, []string{sources.AllSources}) || !reflect.DeepEqual(f.Regions, []string{sources.AllRegions}) {
		t.Errorf("Filters() = %+v, want sentinels", f)
	}

	m.SetFilters(news.Filters{Sources: []string{"Zenn", " Zenn", ""}, Regions: nil})
	f = m.Filters()
	if !reflect.DeepEqual(f.Sources, []string{"Zenn"}) || !reflect.DeepEqual(f.Regions, []string{sources.AllRegions}) {
		t.Errorf("Filters() = %+v", f)
	}
}

func TestSavedSearches(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, store.NewMemory())

	if s, saved, err := m.SaveSearch(ctx, nil, nil); s != nil || saved || err != nil {
		t.Fatalf("SaveSearch(empty) = %v, %v, %v", s, saved, err)
	}

	first, saved, err := m.SaveSearch(ctx, []string{"Sora", "Gemini"}, []string{"Zenn", "Qiita"})
	if err != nil || !saved {
		t.Fatalf("SaveSearch() = %v, %v", saved, err)
	}

	dup, saved, err := m.SaveSearch(ctx, []string{"Gemini", "Sora"}, []string{"Qiita", "Zenn"})
	if err != nil || saved || dup.ID != first.ID {
		t.Errorf("duplicate SaveSearch() = %+v, %v, %v", dup, saved, err)
	}

	second, saved, _ := m.SaveSearch(ctx, []string{"Claude"}, nil)
	if !saved || !reflect.DeepEqual(second.Sources, []string{sources.AllSources}) {
		t.Errorf("SaveSearch() with current selection = %+v", second)
	}

	list := m.SavedSearches()
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("SavedSearches() = %+v, want newest first", list)
	}

	loaded, ok := m.LoadSearch(first.ID)
	if !ok || !reflect.DeepEqual(loaded.Query, []string{"Sora", "Gemini"}) {
		t.Errorf("LoadSearch() = %+v, %v", loaded, ok)
	}
	if got := m.Filters().Sources; !reflect.DeepEqual(got, []string{"Zenn", "Qiita"}) {
		t.Errorf("LoadSearch should select its sources, got %v", got)
	}
	if _, ok := m.LoadSearch("missing"); ok {
		t.Error("LoadSearch(missing) should fail")
	}

	if err := m.RemoveSearch(ctx, first.ID); err != nil {
		t.Fatal(err)
	}
	if got := m.SavedSearches(); len(got) != 1 || got[0].ID != second.ID {
		t.Errorf("SavedSearches() after remove = %+v", got)
	}
}

func TestLoginLogout(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := newTestManager(t, st)

	if _, err := m.Login(ctx, "MySpace"); err == nil {
		t.Fatal("Login(unsupported) should fail")
	}

	sess, err := m.Login(ctx, "Qiita")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !strings.HasPrefix(sess.Username, "Qiita_User_") || sess.Token == "" {
		t.Errorf("Login() = %+v", sess)
	}

	reloaded := newTestManager(t, st)
	reloaded.Load(ctx)
	if got := reloaded.Session(); got == nil || got.Username != sess.Username {
		t.Errorf("reloaded Session() = %+v", got)
	}

	if err := m.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if m.Session() != nil {
		t.Error("Session() should be nil after logout")
	}
	if _, ok, _ := st.Load(ctx, KeyUser); ok {
		t.Error("logout should delete the stored user")
	}
}
