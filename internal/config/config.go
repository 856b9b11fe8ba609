package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port            int
	Environment     string
	AppURL          string
	Database        DatabaseConfig
	Telegram        TelegramConfig
	Trello          TrelloConfig
	Log             LogConfig
	TokenKey        string
	CSRFSecret      string
	AdminToken      string
	CORSOrigins     []string
	UpstreamTimeout time.Duration
	CacheTTL        time.Duration
	CacheSize       int
	ReportSchedule  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type         string // postgres
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// TelegramConfig holds chat bot settings
type TelegramConfig struct {
	BotToken         string
	GroupID          int64
	FallbackUsername string
	APIEndpoint      string
}

// TrelloConfig holds board platform settings
type TrelloConfig struct {
	APIKey       string
	Token        string
	BoardID      string
	WebhookURL   string
	APIURL       string
	AuthorizeURL string
	SiteURL      string
}

// LogConfig selects the zap level and encoder
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	env := getEnv("ENVIRONMENT", "production")
	appURL := strings.TrimRight(os.Getenv("APP_URL"), "/")

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		Environment: env,
		AppURL:      appURL,
		Database: DatabaseConfig{
			Type:         getEnv("DATABASE_TYPE", "postgres"),
			DSN:          getEnv("DATABASE_DSN", buildPostgresDSN()),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		Telegram: TelegramConfig{
			BotToken:         os.Getenv("TELEGRAM_BOT_TOKEN"),
			FallbackUsername: getEnv("TELEGRAM_BOT_USERNAME_FALLBACK", "BoardRelayBot"),
			APIEndpoint:      getEnv("TELEGRAM_API_ENDPOINT", "https://api.telegram.org/bot%s/%s"),
		},
		Trello: TrelloConfig{
			APIKey:       os.Getenv("TRELLO_API_KEY"),
			Token:        os.Getenv("TRELLO_TOKEN"),
			BoardID:      os.Getenv("TRELLO_BOARD_ID"),
			WebhookURL:   os.Getenv("TRELLO_WEBHOOK_URL"),
			APIURL:       strings.TrimRight(getEnv("TRELLO_API_URL", "https://api.trello.com/1"), "/"),
			AuthorizeURL: getEnv("TRELLO_AUTHORIZE_URL", "https://trello.com/1/authorize"),
			SiteURL:      getEnv("TRELLO_SITE_URL", "https://trello.com/"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		TokenKey:        os.Getenv("TOKEN_ENCRYPTION_KEY"),
		CSRFSecret:      loadCSRFSecret(env),
		AdminToken:      os.Getenv("ADMIN_API_TOKEN"),
		CORSOrigins:     loadCORSOrigins(appURL),
		UpstreamTimeout: getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		CacheTTL:        getEnvDuration("CACHE_TTL", 300*time.Second),
		CacheSize:       getEnvInt("CACHE_SIZE", 1024),
		ReportSchedule:  os.Getenv("REPORT_SCHEDULE"),
	}

	groupID, err := parseChatID(os.Getenv("TELEGRAM_GROUP_ID"))
	if err != nil {
		return nil, err
	}
	cfg.Telegram.GroupID = groupID

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func buildPostgresDSN() string {
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "boardrelay")
	password := getEnv("POSTGRES_PASSWORD", "secret")
	dbName := getEnv("POSTGRES_DB", "boardrelay")
	sslMode := getEnv("POSTGRES_SSLMODE", "disable")

	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(user, password),
		Host:   fmt.Sprintf("%s:%s", host, port),
		Path:   dbName,
	}

	query := u.Query()
	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()

	return u.String()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var missing []string
	required := map[string]string{
		"APP_URL":              c.AppURL,
		"TELEGRAM_BOT_TOKEN":   c.Telegram.BotToken,
		"TRELLO_API_KEY":       c.Trello.APIKey,
		"TRELLO_TOKEN":         c.Trello.Token,
		"TRELLO_BOARD_ID":      c.Trello.BoardID,
		"TRELLO_WEBHOOK_URL":   c.Trello.WebhookURL,
		"TOKEN_ENCRYPTION_KEY": c.TokenKey,
	}
	for _, name := range []string{
		"APP_URL", "TELEGRAM_BOT_TOKEN", "TRELLO_API_KEY", "TRELLO_TOKEN",
		"TRELLO_BOARD_ID", "TRELLO_WEBHOOK_URL", "TOKEN_ENCRYPTION_KEY",
	} {
		if strings.TrimSpace(required[name]) == "" {
			missing = append(missing, name)
		}
	}
	if c.Telegram.GroupID == 0 {
		missing = append(missing, "TELEGRAM_GROUP_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	if _, err := url.ParseRequestURI(c.AppURL); err != nil {
		return fmt.Errorf("APP_URL is not a valid URL: %w", err)
	}

	if len(c.TokenKey) < 16 {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be at least 16 characters")
	}

	if c.CSRFSecret == "" {
		return fmt.Errorf("CSRF_SECRET is required in production")
	}

	if c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}

	if c.CacheTTL <= 0 || c.CacheSize <= 0 {
		return fmt.Errorf("CACHE_TTL and CACHE_SIZE must be positive")
	}

	return nil
}

// TelegramWebhookURL is the address registered with the chat platform.
func (c *Config) TelegramWebhookURL() string {
	return c.AppURL + "/telegram/webhook"
}

// CallbackURL is the token-capture page the board platform redirects to.
func (c *Config) CallbackURL() string {
	return c.AppURL + "/trello/callback"
}

func loadCSRFSecret(env string) string {
	if secret := os.Getenv("CSRF_SECRET"); secret != "" {
		return secret
	}
	if env == "production" {
		return ""
	}
	return generateRandomSecret()
}

func loadCORSOrigins(appURL string) []string {
	if appURL != "" {
		return []string{appURL}
	}
	return []string{"http://localhost:8080"}
}

func parseChatID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("TELEGRAM_GROUP_ID must be a numeric chat id: %w", err)
	}
	return id, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Bare integers are seconds.
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

func generateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		panic(fmt.Sprintf("failed to generate random secret: %v", err))
	}
	return base64.URLEncoding.EncodeToString(bytes)
}
