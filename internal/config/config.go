package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Gemini   GeminiConfig
	Refresh  RefreshConfig
	Auth     AuthConfig
	Crypto   CryptoConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr        string
	RefreshOnceMode bool
	OnceKeywords    []string
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Backend   string // "memory", "file", "redis" or "postgres"
	FilePath  string
	RedisAddr string
	Prefix    string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // "console" or "json"
}

// GeminiConfig holds generative API settings
type GeminiConfig struct {
	// APIKey seeds the stored credential on first start. A key saved through
	// the API takes precedence.
	APIKey          string
	Model           string
	TranslateTarget string
	RequestTimeout  time.Duration
	// BaseURL overrides the API endpoint, e.g. for a proxy.
	BaseURL         string
}

// RefreshConfig holds the auto-refresh default
type RefreshConfig struct {
	IntervalHours int
}

// AuthConfig holds mock login token settings
type AuthConfig struct {
	SessionSecret string
	Issuer        string
	TokenTTL      time.Duration
}

// CryptoConfig holds the passphrase the stored API key is sealed with
type CryptoConfig struct {
	SealKey string
}

// Load parses flags and environment variables to build configuration
func Load() *Config {
	cfg := &Config{}

	httpAddr := flag.String("http", ":8080", "HTTP server address")
	refreshOnce := flag.Bool("refresh-once", false, "Run one retrieval cycle, print the results and exit")
	onceKeywords := flag.String("keywords", "", "Comma-separated keywords for -refresh-once (empty means trending)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "console", "Log format (console, json)")
	storeBackend := flag.String("store", "file", "Persistence backend: memory, file, redis or postgres")
	storeFile := flag.String("store-file", "data/state.json", "State file for the file backend")
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis server address")
	dbHost := flag.String("db-host", "localhost", "PostgreSQL host")
	dbPort := flag.Int("db-port", 5432, "PostgreSQL port")
	dbUser := flag.String("db-user", "postgres", "PostgreSQL user")
	dbPassword := flag.String("db-password", "postgres", "PostgreSQL password")
	dbName := flag.String("db-name", "ainewsdesk", "PostgreSQL database name")
	dbSSLMode := flag.String("db-sslmode", "disable", "PostgreSQL SSL mode")
	model := flag.String("model", "gemini-2.5-flash", "Generative model name")
	translateTarget := flag.String("translate-target", "Japanese", "Target language for translation")
	requestTimeout := flag.Duration("request-timeout", 90*time.Second, "Timeout of a single generative API call")
	refreshHours := flag.Int("refresh-hours", 0, "Auto-refresh interval in hours (0 disables)")

	flag.Parse()

	applyEnvOverrides(envTargets{
		httpAddr:        httpAddr,
		refreshOnce:     refreshOnce,
		onceKeywords:    onceKeywords,
		logLevel:        logLevel,
		logFormat:       logFormat,
		storeBackend:    storeBackend,
		storeFile:       storeFile,
		redisAddr:       redisAddr,
		dbHost:          dbHost,
		dbPort:          dbPort,
		dbUser:          dbUser,
		dbPassword:      dbPassword,
		dbName:          dbName,
		dbSSLMode:       dbSSLMode,
		model:           model,
		translateTarget: translateTarget,
		requestTimeout:  requestTimeout,
		refreshHours:    refreshHours,
	})

	cfg.Server = ServerConfig{
		HTTPAddr:        *httpAddr,
		RefreshOnceMode: *refreshOnce,
		OnceKeywords:    splitList(*onceKeywords),
	}

	cfg.Store = StoreConfig{
		Backend:   strings.ToLower(*storeBackend),
		FilePath:  *storeFile,
		RedisAddr: *redisAddr,
		Prefix:    getEnvOrDefault("STORE_PREFIX", "ainewsdesk:"),
	}

	cfg.Database = DatabaseConfig{
		Host:     *dbHost,
		Port:     *dbPort,
		User:     *dbUser,
		Password: *dbPassword,
		Database: *dbName,
		SSLMode:  *dbSSLMode,
	}

	cfg.Logging = LoggingConfig{
		Level:  *logLevel,
		Format: *logFormat,
	}

	cfg.Gemini = GeminiConfig{
		APIKey:          strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		Model:           *model,
		TranslateTarget: *translateTarget,
		RequestTimeout:  *requestTimeout,
		BaseURL:         os.Getenv("GEMINI_BASE_URL"),
	}

	cfg.Refresh = RefreshConfig{IntervalHours: *refreshHours}

	cfg.Auth = loadAuthConfig()
	cfg.Crypto = CryptoConfig{
		// Development default only; override in any shared deployment.
		SealKey: getEnvOrDefault("CREDENTIAL_SEAL_KEY", "change-me-in-production"),
	}

	return cfg
}

func loadAuthConfig() AuthConfig {
	ttl := 30 * 24 * time.Hour
	if v := os.Getenv("SESSION_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			ttl = d
		}
	}

	return AuthConfig{
		SessionSecret: getEnvOrDefault("SESSION_SECRET", "change-me-in-production"),
		Issuer:        getEnvOrDefault("SESSION_ISSUER", "ainewsdesk"),
		TokenTTL:      ttl,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type envTargets struct {
	httpAddr        *string
	refreshOnce     *bool
	onceKeywords    *string
	logLevel        *string
	logFormat       *string
	storeBackend    *string
	storeFile       *string
	redisAddr       *string
	dbHost          *string
	dbPort          *int
	dbUser          *string
	dbPassword      *string
	dbName          *string
	dbSSLMode       *string
	model           *string
	translateTarget *string
	requestTimeout  *time.Duration
	refreshHours    *int
}

func applyEnvOverrides(t envTargets) {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		*t.httpAddr = v
	}
	if v := os.Getenv("REFRESH_ONCE_MODE"); v == "true" || v == "1" {
		*t.refreshOnce = true
	}
	if v := os.Getenv("ONCE_KEYWORDS"); v != "" {
		*t.onceKeywords = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		*t.logLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		*t.logFormat = v
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		*t.storeBackend = v
	}
	if v := os.Getenv("STORE_FILE"); v != "" {
		*t.storeFile = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		*t.redisAddr = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		*t.dbHost = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			*t.dbPort = p
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		*t.dbUser = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		*t.dbPassword = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		*t.dbName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		*t.dbSSLMode = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		*t.model = v
	}
	if v := os.Getenv("TRANSLATE_TARGET"); v != "" {
		*t.translateTarget = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*t.requestTimeout = d
		}
	}
	if v := os.Getenv("REFRESH_HOURS"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h >= 0 {
			*t.refreshHours = h
		}
	}
}
