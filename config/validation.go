package config

import (
	"fmt"
)

// Storage backend identifiers.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
	BackendR2 = "r2"
)

// validateConfig rejects configurations the service cannot run with.
// Called once at startup; any error aborts the process.
func validateConfig(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", config.Server.Port)
	}

	switch config.Storage.Backend {
	case BackendFS:
		if config.Storage.CacheDir == "" {
			return fmt.Errorf("CACHE_DIR is required for the fs storage backend")
		}
	case BackendS3, BackendR2:
		if config.Storage.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the %s storage backend", config.Storage.Backend)
		}
		if config.Storage.S3AccessKey == "" || config.Storage.S3SecretKey == "" {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required for the %s storage backend", config.Storage.Backend)
		}
		if config.Storage.Backend == BackendR2 && config.Storage.S3Endpoint == "" {
			return fmt.Errorf("S3_ENDPOINT is required for the r2 storage backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", config.Storage.Backend)
	}

	if len(config.AllowedDomainList()) == 0 {
		return fmt.Errorf("ALLOWED_DOMAINS must list at least one host")
	}

	if config.Upstream.MaxImageSizeBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_SIZE_BYTES must be positive")
	}
	if config.Upstream.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT_MS must be positive")
	}
	if config.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if config.RateLimit.PerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}

	if config.APIKeys.Enabled && len(config.APIKeyList()) == 0 {
		return fmt.Errorf("API_KEYS must list at least one key when API_KEYS_ENABLED is true")
	}

	return nil
}
