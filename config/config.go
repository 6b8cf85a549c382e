// Package config loads client settings from the environment, an optional
// .env file and an optional config file. Settings are read once at startup.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/chimerakang/learnhub-go/logging"
)

// Token store kinds.
const (
	TokenStoreFile   = "file"
	TokenStoreRedis  = "redis"
	TokenStoreMemory = "memory"
)

// Config holds every setting consumed at startup.
type Config struct {
	BackendURL string
	// AuthURL serves the /auth endpoints. Defaults to BackendURL.
	AuthURL string
	// AuthSecret signs the token at rest in the cookie file store. Empty disables signing.
	AuthSecret string

	TokenStore    string
	TokenFile     string
	RedisAddr     string
	RedisPassword string

	RequestTimeout time.Duration
	// TokenTTL is how long the token store keeps a saved token.
	TokenTTL       time.Duration
	MetricsEnabled bool

	Log    logging.Config
	Social Social
}

// Social holds the OAuth2 client used for third-party sign-in.
type Social struct {
	Provider     string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	Scopes       []string
}

// Enabled reports whether enough settings are present to run the flow.
func (s Social) Enabled() bool {
	return s.ClientID != "" && s.AuthURL != "" && s.TokenURL != ""
}

// env maps viper keys to environment variable names.
var env = map[string]string{
	"backend_url":          "BACKEND_URL",
	"auth_url":             "NEXTAUTH_URL",
	"auth_secret":          "NEXTAUTH_SECRET",
	"token_store":          "LEARNHUB_TOKEN_STORE",
	"token_file":           "LEARNHUB_TOKEN_FILE",
	"redis_addr":           "LEARNHUB_REDIS_ADDR",
	"redis_password":       "LEARNHUB_REDIS_PASSWORD",
	"request_timeout":      "LEARNHUB_REQUEST_TIMEOUT",
	"token_ttl":            "LEARNHUB_TOKEN_TTL",
	"metrics_enabled":      "LEARNHUB_METRICS_ENABLED",
	"log_level":            "LOG_LEVEL",
	"log_dev":              "LOG_DEV",
	"log_output":           "LOG_OUTPUT",
	"social_provider":      "LEARNHUB_SOCIAL_PROVIDER",
	"social_client_id":     "LEARNHUB_SOCIAL_CLIENT_ID",
	"social_client_secret": "LEARNHUB_SOCIAL_CLIENT_SECRET",
	"social_auth_url":      "LEARNHUB_SOCIAL_AUTH_URL",
	"social_token_url":     "LEARNHUB_SOCIAL_TOKEN_URL",
	"social_scopes":        "LEARNHUB_SOCIAL_SCOPES",
}

// Load reads configuration. A .env file in the working directory is loaded
// first when present; path, when non-empty, names a config file (yaml, json,
// toml) whose values are overridden by the environment.
func Load(path string) (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, fmt.Errorf("config: load .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", name, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := Config{
		BackendURL:     strings.TrimRight(v.GetString("backend_url"), "/"),
		AuthURL:        strings.TrimRight(v.GetString("auth_url"), "/"),
		AuthSecret:     v.GetString("auth_secret"),
		TokenStore:     strings.ToLower(v.GetString("token_store")),
		TokenFile:      v.GetString("token_file"),
		RedisAddr:      v.GetString("redis_addr"),
		RedisPassword:  v.GetString("redis_password"),
		RequestTimeout: v.GetDuration("request_timeout"),
		TokenTTL:       v.GetDuration("token_ttl"),
		MetricsEnabled: v.GetBool("metrics_enabled"),
		Log: logging.Config{
			Level:  v.GetString("log_level"),
			Dev:    v.GetBool("log_dev"),
			Output: v.GetString("log_output"),
		},
		Social: Social{
			Provider:     v.GetString("social_provider"),
			ClientID:     v.GetString("social_client_id"),
			ClientSecret: v.GetString("social_client_secret"),
			AuthURL:      v.GetString("social_auth_url"),
			TokenURL:     v.GetString("social_token_url"),
			Scopes:       splitList(v.GetString("social_scopes")),
		},
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = cfg.BackendURL
	}
	if cfg.TokenFile == "" {
		cfg.TokenFile = defaultTokenFile()
	}
	return cfg, cfg.validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend_url", "http://localhost:3001")
	v.SetDefault("token_store", TokenStoreFile)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("token_ttl", 7*24*time.Hour)
	v.SetDefault("log_level", "info")
	v.SetDefault("social_provider", "google")
	v.SetDefault("social_scopes", "openid profile email")
}

func (c Config) validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: invalid BACKEND_URL %q", c.BackendURL)
	}
	if u, err := url.Parse(c.AuthURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: invalid NEXTAUTH_URL %q", c.AuthURL)
	}
	switch c.TokenStore {
	case TokenStoreFile, TokenStoreMemory:
	case TokenStoreRedis:
		if c.RedisAddr == "" {
			return errors.New("config: LEARNHUB_REDIS_ADDR is required for the redis token store")
		}
	default:
		return fmt.Errorf("config: unknown token store %q", c.TokenStore)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("config: negative request timeout %s", c.RequestTimeout)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: token ttl must be positive, got %s", c.TokenTTL)
	}
	return nil
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "learnhub", "auth-token")
}
