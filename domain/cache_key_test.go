package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testBaseURL = "https://prod-files-secure.s3.us-west-2.amazonaws.com/ws1/block1/photo.jpg"

func TestCacheKey_Deterministic(t *testing.T) {
	opts := TransformOptions{Width: 300, Format: FormatWebP}

	first := CacheKey(testBaseURL, opts)
	second := CacheKey(testBaseURL, opts)

	assert.Equal(t, first, second)
}

func TestCacheKey_EquivalentOptionsProduceIdenticalKeys(t *testing.T) {
	explicit := TransformOptions{Width: 300, Format: FormatOriginal}
	implicit := TransformOptions{Width: 300}

	assert.Equal(t, CacheKey(testBaseURL, implicit), CacheKey(testBaseURL, explicit))
}

func TestCacheKey_BeginsWithCachePrefix(t *testing.T) {
	variants := []TransformOptions{
		{},
		{Width: 100},
		{Height: 50, Format: FormatAVIF},
		{Width: 300, Height: 200, Format: FormatWebP, Quality: 75, Fit: FitCover},
	}

	prefix := CachePrefix(testBaseURL)
	for _, opts := range variants {
		key := CacheKey(testBaseURL, opts)
		assert.True(t, strings.HasPrefix(key, prefix), "key %q must begin with prefix %q", key, prefix)
	}
}

func TestCacheKey_DifferentBaseURLsDiverge(t *testing.T) {
	other := "https://prod-files-secure.s3.us-west-2.amazonaws.com/ws1/block1/other.jpg"

	assert.NotEqual(t, CacheKey(testBaseURL, TransformOptions{}), CacheKey(other, TransformOptions{}))
}

func TestCacheKey_EmptyOptionsUseOriginalSuffix(t *testing.T) {
	key := CacheKey(testBaseURL, TransformOptions{})

	assert.True(t, strings.HasSuffix(key, "/original"))
}

func TestCachePrefix_Is64HexPlusSlash(t *testing.T) {
	prefix := CachePrefix(testBaseURL)

	assert.Len(t, prefix, 65)
	assert.True(t, strings.HasSuffix(prefix, "/"))
}
