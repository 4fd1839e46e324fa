// Package config loads service settings from environment variables.
// Defaults come from struct tags and everything is validated at startup so
// a misconfigured deployment fails before it accepts traffic.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Images   ImagesConfig
	Shop     ShopConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	// WriteTimeout stays 0 so cart event streams are not cut off.
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	// RequestTimeout applies to every route except the event streams.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"120s"`
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig selects and tunes the catalog store.
type DatabaseConfig struct {
	// Driver is postgres or sqlite.
	Driver string `env:"DATABASE_DRIVER" default:"postgres"`

	// URL is a PostgreSQL connection string or a SQLite file path.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate creates missing tables on startup.
	Migrate bool `env:"DB_MIGRATE" default:"true"`
}

// UploadConfig bounds spreadsheet uploads.
type UploadConfig struct {
	MaxFileSize   int64         `env:"UPLOAD_MAX_FILE_SIZE" default:"26214400"`
	MaxConcurrent int           `env:"UPLOAD_MAX_CONCURRENT" default:"5"`
	MaxWaitTime   time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`
	// Timeout bounds one commit stage once it has started.
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"10m"`
}

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	// TaxonomyFailure is abort or isolate.
	TaxonomyFailure string `env:"IMPORT_TAXONOMY_FAILURE" default:"abort"`

	// AliasesFile is an optional YAML file of extra header aliases.
	AliasesFile string `env:"IMPORT_ALIASES_FILE"`

	// StrictGate rejects files containing any invalid row unless the caller
	// asks for a partial import.
	StrictGate bool `env:"IMPORT_STRICT_GATE" default:"true"`
}

// RateLimitConfig holds per-IP request budgets.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
	// UploadLimit is requests per minute for import and image upload routes.
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds authentication and browser-facing settings.
type SecurityConfig struct {
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
	EnableCSP      bool     `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey protects the import and image routes with X-API-Key.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"true"`
	APIKeys       []string `env:"API_KEYS"`

	// AllowedOrigins enables CORS for the listed origins.
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// ImagesConfig points product image uploads at S3 or an S3-compatible store.
// Image upload is disabled when Bucket is empty.
type ImagesConfig struct {
	Bucket        string `env:"IMAGES_S3_BUCKET"`
	Region        string `env:"AWS_REGION" default:"us-east-1"`
	Endpoint      string `env:"AWS_S3_ENDPOINT"`
	PublicBaseURL string `env:"IMAGES_PUBLIC_BASE_URL"`
	KeyPrefix     string `env:"IMAGES_KEY_PREFIX" default:"product-images/"`
	MaxSize       int64  `env:"IMAGES_MAX_SIZE" default:"5242880"`
}

// Enabled reports whether an image bucket is configured.
func (c ImagesConfig) Enabled() bool {
	return c.Bucket != ""
}

// ShopConfig locates the cart and favorites store.
type ShopConfig struct {
	Dir      string `env:"SHOP_DATA_DIR" default:"data/shop"`
	InMemory bool   `env:"SHOP_IN_MEMORY" default:"false"`
}

// Addr returns the listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
