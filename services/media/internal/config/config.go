package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	pkgconfig "github.com/utafrali/ClassifiedsGo/pkg/config"
	"github.com/utafrali/ClassifiedsGo/pkg/database"
	"github.com/utafrali/ClassifiedsGo/pkg/tracing"
)

// supportedTypes are the MIME types the imaging package can decode and encode.
var supportedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Config holds all configuration for the media service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"MEDIA_HTTP_PORT" envDefault:"8011"`
	ShutdownTimeout time.Duration `env:"MEDIA_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Peers allowed to reach /debug/pprof; empty disables the endpoints.
	PprofCIDRs        []string `env:"MEDIA_PPROF_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`
	// Proxies whose X-Forwarded-For is trusted when keying the upload limit.
	TrustedProxyCIDRs []string `env:"MEDIA_TRUSTED_PROXY_CIDRS" envSeparator:","`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"classifieds"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"classifieds_secret"`
	PostgresDB   string `env:"MEDIA_DB_NAME" envDefault:"media_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	SlowQueryThreshold time.Duration `env:"MEDIA_DB_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Redis backs the per-owner upload lock and the consumer idempotency store.
	RedisHost     string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	OwnerLock     bool          `env:"MEDIA_OWNER_LOCK_ENABLED" envDefault:"true"`
	OwnerLockTTL  time.Duration `env:"MEDIA_OWNER_LOCK_TTL" envDefault:"30s"`

	// Kafka
	KafkaBrokers       []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup string   `env:"MEDIA_CONSUMER_GROUP" envDefault:"media-service"`
	ConsumersEnabled   bool     `env:"MEDIA_CONSUMERS_ENABLED" envDefault:"true"`

	// Media pipeline
	StorageRoot      string   `env:"MEDIA_STORAGE_ROOT" envDefault:"./data/media"`
	AllowedTypes     []string `env:"MEDIA_ALLOWED_TYPES" envDefault:"image/jpeg,image/png,image/gif,image/webp" envSeparator:","`
	MaxUploadBytes   int64    `env:"MEDIA_MAX_UPLOAD_BYTES" envDefault:"10485760"`
	MaxPixels        int      `env:"MEDIA_MAX_PIXELS" envDefault:"40000000"`
	AvatarWidth      int      `env:"MEDIA_AVATAR_WIDTH" envDefault:"200"`
	AvatarHeight     int      `env:"MEDIA_AVATAR_HEIGHT" envDefault:"200"`
	ListingWidth     int      `env:"MEDIA_LISTING_WIDTH" envDefault:"800"`
	ListingHeight    int      `env:"MEDIA_LISTING_HEIGHT" envDefault:"800"`
	JPEGQuality      int      `env:"MEDIA_JPEG_QUALITY" envDefault:"85"`
	ImageCacheMaxAge int      `env:"MEDIA_IMAGE_CACHE_MAX_AGE" envDefault:"86400"`

	// Per-client limit on image uploads; 0 disables it.
	UploadRateLimit float64 `env:"MEDIA_UPLOAD_RATE_LIMIT" envDefault:"2"`
	UploadBurst     int     `env:"MEDIA_UPLOAD_BURST" envDefault:"10"`

	Tracing tracing.Config
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load media config: %w", err)
	}
	return finish(cfg)
}

// LoadFrom is Load over an explicit variable set.
func LoadFrom(environment map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, environment); err != nil {
		return nil, fmt.Errorf("load media config: %w", err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.Tracing.ServiceName = "media-service"
	for i, t := range cfg.AllowedTypes {
		cfg.AllowedTypes[i] = strings.ToLower(strings.TrimSpace(t))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.PostgresHost == "" {
		errs = append(errs, errors.New("POSTGRES_HOST is required"))
	}
	if c.StorageRoot == "" {
		errs = append(errs, errors.New("MEDIA_STORAGE_ROOT is required"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MEDIA_MAX_UPLOAD_BYTES must be positive"))
	}
	if c.MaxPixels <= 0 {
		errs = append(errs, errors.New("MEDIA_MAX_PIXELS must be positive"))
	}
	if c.AvatarWidth <= 0 || c.AvatarHeight <= 0 {
		errs = append(errs, errors.New("avatar canvas dimensions must be positive"))
	}
	if c.ListingWidth <= 0 || c.ListingHeight <= 0 {
		errs = append(errs, errors.New("listing canvas dimensions must be positive"))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, errors.New("MEDIA_JPEG_QUALITY must be between 1 and 100"))
	}
	if c.UploadRateLimit < 0 {
		errs = append(errs, errors.New("MEDIA_UPLOAD_RATE_LIMIT must not be negative"))
	}
	if len(c.AllowedTypes) == 0 {
		errs = append(errs, errors.New("MEDIA_ALLOWED_TYPES must not be empty"))
	}
	for _, t := range c.AllowedTypes {
		if !slices.Contains(supportedTypes, t) {
			errs = append(errs, fmt.Errorf("MEDIA_ALLOWED_TYPES: unsupported type %q", t))
		}
	}
	return errors.Join(errs...)
}

// Postgres returns pool settings for the media database.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	return pg
}

// Redis returns the Redis connection settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}
