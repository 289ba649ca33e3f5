package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Profile store backends.
const (
	ProfileStoreFirestore = "firestore"
	ProfileStoreMemory    = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	Port                             string        `mapstructure:"PORT"`
	GinMode                          string        `mapstructure:"GIN_MODE"`
	FirebaseProjectID                string        `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string        `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string        `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	FirebaseWebAPIKey                string        `mapstructure:"FIREBASE_WEB_API_KEY"`
	ClientURL                        string        `mapstructure:"CLIENT_URL"`
	ArticlesFile                     string        `mapstructure:"ARTICLES_FILE"`
	ChecklistDebounce                time.Duration `mapstructure:"CHECKLIST_DEBOUNCE"`
	RemoteTimeout                    time.Duration `mapstructure:"REMOTE_TIMEOUT"`
	ProfileStore                     string        `mapstructure:"PROFILE_STORE"`
	RedisAddr                        string        `mapstructure:"REDIS_ADDR"`
	RedisPassword                    string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB                          int           `mapstructure:"REDIS_DB"`
	CatalogCacheTTL                  time.Duration `mapstructure:"CATALOG_CACHE_TTL"`
	AuthRateLimit                    float64       `mapstructure:"AUTH_RATE_LIMIT"`
	AuthRateBurst                    int           `mapstructure:"AUTH_RATE_BURST"`
}

var envKeys = []string{
	"PORT",
	"GIN_MODE",
	"FIREBASE_PROJECT_ID",
	"GOOGLE_APPLICATION_CREDENTIALS",
	"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"FIREBASE_WEB_API_KEY",
	"CLIENT_URL",
	"ARTICLES_FILE",
	"CHECKLIST_DEBOUNCE",
	"REMOTE_TIMEOUT",
	"PROFILE_STORE",
	"REDIS_ADDR",
	"REDIS_PASSWORD",
	"REDIS_DB",
	"CATALOG_CACHE_TTL",
	"AUTH_RATE_LIMIT",
	"AUTH_RATE_BURST",
}

// LoadConfig loads configuration from environment variables using Viper.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("ARTICLES_FILE", "data/articles.json")
	v.SetDefault("CHECKLIST_DEBOUNCE", "1500ms")
	v.SetDefault("REMOTE_TIMEOUT", "10s")
	v.SetDefault("PROFILE_STORE", ProfileStoreFirestore)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CATALOG_CACHE_TTL", "10m")
	v.SetDefault("AUTH_RATE_LIMIT", 1.0)
	v.SetDefault("AUTH_RATE_BURST", 5)

	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, errors.New("failed to bind env " + key + ": " + err.Error())
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	switch c.ProfileStore {
	case ProfileStoreFirestore:
		if c.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required")
		}
		if c.FirebaseWebAPIKey == "" {
			return errors.New("FIREBASE_WEB_API_KEY is required")
		}
	case ProfileStoreMemory:
	default:
		return errors.New("PROFILE_STORE must be one of firestore, memory")
	}
	if c.ChecklistDebounce <= 0 {
		return errors.New("CHECKLIST_DEBOUNCE must be positive")
	}
	if c.RemoteTimeout <= 0 {
		return errors.New("REMOTE_TIMEOUT must be positive")
	}
	if c.AuthRateLimit <= 0 || c.AuthRateBurst <= 0 {
		return errors.New("AUTH_RATE_LIMIT and AUTH_RATE_BURST must be positive")
	}
	return nil
}

// UsesFirebase reports whether the Firebase SDKs must be initialized.
func (c *Config) UsesFirebase() bool {
	return c.ProfileStore == ProfileStoreFirestore
}
