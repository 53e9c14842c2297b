package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoreMongo     = "mongo"
	StoreFirestore = "firestore"
	StoreMemory    = "memory"
)

var ErrStoreNotConfigured = errors.New("store not configured")

type Config struct {
	Env            string `envconfig:"APP_ENV" default:"development"`
	ServerAddr     string `envconfig:"SERVER_ADDR" default:":8080"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	FrontendOrigin string `envconfig:"FRONTEND_ORIGIN" default:"http://localhost:3000"`
	TimezoneName   string `envconfig:"TZ" default:"Africa/Johannesburg"`

	StoreDriver        string `envconfig:"STORE_DRIVER" default:"mongo"`
	MongoURI           string `envconfig:"MONGO_URI"`
	MongoDB            string `envconfig:"MONGO_DB"`
	FirestoreProjectID string `envconfig:"FIRESTORE_PROJECT_ID"`
	GoogleCredentials  string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`

	RedisURL        string `envconfig:"REDIS_URL"`
	RedisAddr       string `envconfig:"REDIS_ADDR"`
	RedisPassword   string `envconfig:"REDIS_PASSWORD"`
	RedisDB         int    `envconfig:"REDIS_DB" default:"0"`
	CacheTTLSeconds int    `envconfig:"CACHE_TTL_SECONDS" default:"60"`

	AdminAPIKey       string `envconfig:"ADMIN_API_KEY"`
	AdminUser         string `envconfig:"ADMIN_USER" default:"admin"`
	AdminPassword     string `envconfig:"ADMIN_PASSWORD"`
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`
	JWTSecret         string `envconfig:"JWT_SECRET"`
	AccessTTLMinutes  int    `envconfig:"ACCESS_TTL_MINUTES" default:"15"`
	RefreshTTLMinutes int    `envconfig:"REFRESH_TTL_MINUTES" default:"43200"`
	CookieSecure      bool   `envconfig:"COOKIE_SECURE" default:"false"`

	RateLimitForms     int `envconfig:"RATE_LIMIT_FORMS" default:"5"`
	RateLimitWindowSec int `envconfig:"RATE_LIMIT_WINDOW_SEC" default:"60"`

	BlobDriver        string `envconfig:"BLOB_DRIVER"`
	BlobS3Bucket      string `envconfig:"BLOB_S3_BUCKET"`
	BlobS3Region      string `envconfig:"BLOB_S3_REGION" default:"us-east-1"`
	BlobS3Endpoint    string `envconfig:"BLOB_S3_ENDPOINT"`
	BlobS3PathStyle   bool   `envconfig:"BLOB_S3_PATH_STYLE" default:"false"`
	BlobS3AccessKey   string `envconfig:"BLOB_S3_ACCESS_KEY_ID"`
	BlobS3SecretKey   string `envconfig:"BLOB_S3_SECRET_ACCESS_KEY"`
	BlobPublicBaseURL string `envconfig:"BLOB_PUBLIC_BASE_URL"`

	IconsAPIKey          string `envconfig:"ICONS_API_KEY"`
	IconsModel           string `envconfig:"ICONS_MODEL" default:"gemini-2.0-flash-preview-image-generation"`
	IconsCacheSize       int    `envconfig:"ICONS_CACHE_SIZE" default:"256"`
	IconsCacheTTLMinutes int    `envconfig:"ICONS_CACHE_TTL_MINUTES" default:"1440"`

	BrevoAPIKey      string `envconfig:"BREVO_API_KEY"`
	BrevoSenderEmail string `envconfig:"BREVO_SENDER_EMAIL"`
	BrevoSenderName  string `envconfig:"BREVO_SENDER_NAME" default:"The Junks"`
	BrevoSandbox     bool   `envconfig:"BREVO_SANDBOX" default:"false"`

	Timezone *time.Location `ignored:"true"`
}

// Load reads .env files when present, then the process environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		// existing environment variables win over the file
		_ = godotenv.Load(f)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	loc, err := time.LoadLocation(cfg.TimezoneName)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.TimezoneName, err)
	}
	cfg.Timezone = loc

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if cfg.MongoDB == "" {
		cfg.MongoDB = mongoDBFromURI(cfg.MongoURI)
	}
	if cfg.MongoDB == "" {
		cfg.MongoDB = "junks"
	}
	return &cfg, nil
}

// StoreConfigured reports whether the selected store driver has what it
// needs to connect. The error carries remediation text for operators.
func (c *Config) StoreConfigured() error {
	switch c.StoreDriver {
	case StoreMemory:
		return nil
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("%w: set MONGO_URI (and optionally MONGO_DB) for the mongo driver", ErrStoreNotConfigured)
		}
		return nil
	case StoreFirestore:
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("%w: set FIRESTORE_PROJECT_ID and GOOGLE_APPLICATION_CREDENTIALS for the firestore driver", ErrStoreNotConfigured)
		}
		return nil
	default:
		return fmt.Errorf("%w: STORE_DRIVER must be one of mongo, firestore or memory, got %q", ErrStoreNotConfigured, c.StoreDriver)
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMinutes) * time.Minute
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLMinutes) * time.Minute
}

func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func mongoDBFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return ""
	}
	// mongodb URIs sometimes include extra path segments; we only support the first one as db name.
	if idx := strings.Index(db, "/"); idx >= 0 {
		db = db[:idx]
	}
	return db
}
