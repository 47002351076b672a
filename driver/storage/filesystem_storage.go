// Package storage provides the persistent L3 tier implementations: a local
// filesystem backend with JSON metadata sidecars, and an S3-compatible object
// store backend.
package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"imgcdn/domain"
	"imgcdn/port/storage_port"
)

const (
	binSuffix  = ".bin"
	metaSuffix = ".json"
)

// FilesystemStorage stores entries as <root>/<K[0:2]>/<K[2:]_sanitised>.bin
// with a .json metadata sidecar. Sharding by the first two key characters
// keeps directories small.
type FilesystemStorage struct {
	root string
	log  *slog.Logger
}

// NewFilesystemStorage creates the root directory if needed.
func NewFilesystemStorage(root string, log *slog.Logger) (*FilesystemStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FilesystemStorage{root: root, log: log}, nil
}

// sanitizeKeyPart replaces every character outside [A-Za-z0-9_-] with '_'.
// Mapping '/' as well means one key resolves to exactly one file pair and no
// key can traverse outside the shard directory.
func sanitizeKeyPart(part string) string {
	var b strings.Builder
	b.Grow(len(part))
	for _, c := range part {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// entryPaths resolves the bytes and sidecar paths for a key.
func (s *FilesystemStorage) entryPaths(key string) (string, string) {
	shard, rest := shardKey(key)
	base := filepath.Join(s.root, shard, rest)
	return base + binSuffix, base + metaSuffix
}

func shardKey(key string) (string, string) {
	sanitized := sanitizeKeyPart(key)
	if len(sanitized) <= 2 {
		return "00", sanitized
	}
	return sanitized[:2], sanitized[2:]
}

// Get reads bytes and metadata. Missing entries yield ErrNotFound; a missing
// or corrupt sidecar degrades to synthesized metadata rather than failing the
// read. Access tracking updates are best-effort.
func (s *FilesystemStorage) Get(ctx context.Context, key string) (*domain.CachedEntry, error) {
	binPath, metaPath := s.entryPaths(key)

	data, err := os.ReadFile(binPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage_port.ErrNotFound
		}
		return nil, err
	}

	meta := domain.CacheMetadata{CachedSize: int64(len(data))}
	if raw, err := os.ReadFile(metaPath); err == nil {
		if err := json.Unmarshal(raw, &meta); err != nil {
			s.log.Warn("corrupt metadata sidecar", "key", key, "error", err)
		}
	}

	s.touch(metaPath, &meta)

	return &domain.CachedEntry{Data: data, Metadata: meta}, nil
}

// touch updates access metadata; failures are logged and swallowed.
func (s *FilesystemStorage) touch(metaPath string, meta *domain.CacheMetadata) {
	meta.LastAccessedAt = time.Now().UTC()
	meta.AccessCount++
	raw, err := json.Marshal(meta)
	if err != nil {
		return
	}
	if err := os.WriteFile(metaPath, raw, 0o644); err != nil {
		s.log.Debug("access metadata update failed", "path", metaPath, "error", err)
	}
}

// Put writes bytes and metadata concurrently. Atomicity across the pair is
// not required.
func (s *FilesystemStorage) Put(ctx context.Context, key string, data []byte, meta domain.CacheMetadata) error {
	binPath, metaPath := s.entryPaths(key)
	if err := os.MkdirAll(filepath.Dir(binPath), 0o755); err != nil {
		return err
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error { return os.WriteFile(binPath, data, 0o644) })
	g.Go(func() error { return os.WriteFile(metaPath, raw, 0o644) })
	return g.Wait()
}

// Exists reports whether the bytes file is present.
func (s *FilesystemStorage) Exists(ctx context.Context, key string) (bool, error) {
	binPath, _ := s.entryPaths(key)
	if _, err := os.Stat(binPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes the file pair.
func (s *FilesystemStorage) Delete(ctx context.Context, key string) error {
	binPath, metaPath := s.entryPaths(key)
	if err := os.Remove(binPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// DeleteByPrefix removes every entry whose key starts with prefix and returns
// the number of entries removed.
func (s *FilesystemStorage) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	shard, rest := shardKey(prefix)
	dir := filepath.Join(s.root, shard)

	names, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, entry := range names {
		name := entry.Name()
		if !strings.HasPrefix(name, rest) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		if strings.HasSuffix(name, binSuffix) {
			removed++
		}
	}
	return removed, nil
}

// HealthCheck verifies the root is writable.
func (s *FilesystemStorage) HealthCheck(ctx context.Context) bool {
	probe := filepath.Join(s.root, ".healthcheck")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return false
	}
	_ = os.Remove(probe)
	return true
}

// Name identifies this implementation.
func (s *FilesystemStorage) Name() string {
	return "filesystem"
}
