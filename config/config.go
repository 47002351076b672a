package config

import (
	"strings"
	"time"
)

// Config is the full service configuration, loaded from environment
// variables at startup.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Cache     CacheConfig     `json:"cache"`
	Upstream  UpstreamConfig  `json:"upstream"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	CORS      CORSConfig      `json:"cors"`
	APIKeys   APIKeysConfig   `json:"api_keys"`
}

type ServerConfig struct {
	Port            int           `json:"port" env:"PORT" default:"8080"`
	Host            string        `json:"host" env:"HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" default:"15s"`
}

type LoggingConfig struct {
	Level  string `json:"level" env:"LOG_LEVEL" default:"info"`
	Format string `json:"format" env:"LOG_FORMAT" default:"json"`
}

type StorageConfig struct {
	// Backend selects the persistent store: fs, s3, or r2 (S3-compatible
	// with a custom endpoint).
	Backend     string `json:"backend" env:"STORAGE_BACKEND" default:"fs"`
	CacheDir    string `json:"cache_dir" env:"CACHE_DIR" default:"./cache"`
	S3Bucket    string `json:"s3_bucket" env:"S3_BUCKET"`
	S3Region    string `json:"s3_region" env:"S3_REGION" default:"us-east-1"`
	S3Endpoint  string `json:"s3_endpoint" env:"S3_ENDPOINT"`
	S3AccessKey string `json:"-" env:"S3_ACCESS_KEY"`
	S3SecretKey string `json:"-" env:"S3_SECRET_KEY"`
}

type CacheConfig struct {
	RedisURL   string        `json:"redis_url" env:"REDIS_URL"`
	TTL        time.Duration `json:"ttl" env:"CACHE_TTL" default:"24h"`
	MaxEntries int           `json:"max_entries" env:"CACHE_MAX_ENTRIES" default:"1000"`
	MaxBytes   int64         `json:"max_bytes" env:"CACHE_MAX_BYTES" default:"536870912"`
}

type UpstreamConfig struct {
	AllowedDomains    string        `json:"allowed_domains" env:"ALLOWED_DOMAINS" default:"prod-files-secure.s3.us-west-2.amazonaws.com"`
	MaxImageSizeBytes int64         `json:"max_image_size_bytes" env:"MAX_IMAGE_SIZE_BYTES" default:"26214400"`
	Timeout           time.Duration `json:"timeout" env:"UPSTREAM_TIMEOUT_MS" default:"15000" unit:"ms"`
}

type RateLimitConfig struct {
	PerMinute int `json:"per_minute" env:"RATE_LIMIT_PER_MINUTE" default:"120"`
}

type CORSConfig struct {
	Origins string `json:"origins" env:"CORS_ORIGINS" default:"*"`
}

type APIKeysConfig struct {
	Enabled bool   `json:"enabled" env:"API_KEYS_ENABLED" default:"false"`
	Keys    string `json:"-" env:"API_KEYS"`
}

// NewConfig loads configuration from environment variables with fallback to
// defaults, then validates. Validation failures are fatal at startup.
func NewConfig() (*Config, error) {
	config := &Config{}

	if err := loadFromEnvironment(config); err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// AllowedDomainList splits the comma-separated allowlist.
func (c *Config) AllowedDomainList() []string {
	return splitAndTrim(c.Upstream.AllowedDomains)
}

// CORSOriginList splits the comma-separated CORS origins.
func (c *Config) CORSOriginList() []string {
	return splitAndTrim(c.CORS.Origins)
}

// APIKeyList splits the comma-separated API keys.
func (c *Config) APIKeyList() []string {
	return splitAndTrim(c.APIKeys.Keys)
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
