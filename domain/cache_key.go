package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// CachePrefix returns the key prefix shared by every variant of one source
// image. The prefix is the unit of invalidation.
func CachePrefix(baseURL string) string {
	sum := sha256.Sum256([]byte(baseURL))
	return hex.EncodeToString(sum[:]) + "/"
}

// CacheKey derives the content-addressed cache key for (baseURL, opts).
// The base URL must already be stripped of its query string so volatile
// signing parameters never enter the key.
func CacheKey(baseURL string, opts TransformOptions) string {
	return CachePrefix(baseURL) + opts.VariantSuffix()
}
