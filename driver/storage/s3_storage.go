package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"

	"imgcdn/domain"
	"imgcdn/port/storage_port"
)

// Custom metadata keys on stored objects.
const (
	metaOriginalURL  = "x-original-url"
	metaContentType  = "x-content-type"
	metaOriginalSize = "x-original-size"
	metaCachedSize   = "x-cached-size"
	metaWidth        = "x-width"
	metaHeight       = "x-height"
	metaWorkspaceID  = "x-workspace-id"
	metaBlockID      = "x-block-id"
	metaCachedAt     = "x-cached-at"
	metaAccessCount  = "x-access-count"
)

const defaultObjectPrefix = "images/"

// deleteBatchSize is the S3 DeleteObjects limit per call.
const deleteBatchSize = 1000

// S3Config configures the object-store backend. Endpoint is set for
// S3-compatible stores (R2, MinIO); empty means AWS.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
}

// S3Storage stores entries as objects under a key prefix with the metadata
// record serialised into string-valued custom metadata.
type S3Storage struct {
	client *s3.Client
	bucket string
	prefix string
	log    *slog.Logger
}

// NewS3Storage builds the client. Static credentials are used when provided;
// otherwise the default AWS chain applies.
func NewS3Storage(ctx context.Context, cfg S3Config, log *slog.Logger) (*S3Storage, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultObjectPrefix
	}

	return &S3Storage{
		client: client,
		bucket: cfg.Bucket,
		prefix: prefix,
		log:    log,
	}, nil
}

func (s *S3Storage) objectKey(key string) string {
	return s.prefix + key
}

// Get fetches the object and decodes its custom metadata. Access tracking is
// skipped: rewriting object metadata costs a copy per read.
func (s *S3Storage) Get(ctx context.Context, key string) (*domain.CachedEntry, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, storage_port.ErrNotFound
		}
		return nil, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}

	meta := decodeMetadata(out.Metadata)
	meta.CachedSize = int64(len(data))
	if meta.ContentType == "" && out.ContentType != nil {
		meta.ContentType = *out.ContentType
	}

	return &domain.CachedEntry{Data: data, Metadata: meta}, nil
}

// Put uploads bytes with the metadata record as custom metadata.
func (s *S3Storage) Put(ctx context.Context, key string, data []byte, meta domain.CacheMetadata) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(meta.ContentType),
		Metadata:    encodeMetadata(meta),
	})
	return err
}

// Exists heads the object.
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes one object.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	return err
}

// DeleteByPrefix paginates a list call and issues batched deletes in
// parallel.
func (s *S3Storage) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(prefix)),
	})

	var batches [][]types.ObjectIdentifier
	total := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		var batch []types.ObjectIdentifier
		for _, obj := range page.Contents {
			batch = append(batch, types.ObjectIdentifier{Key: obj.Key})
			total++
			if len(batch) == deleteBatchSize {
				batches = append(batches, batch)
				batch = nil
			}
		}
		if len(batch) > 0 {
			batches = append(batches, batch)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, batch := range batches {
		g.Go(func() error {
			_, err := s.client.DeleteObjects(gctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s.bucket),
				Delete: &types.Delete{
					Objects: batch,
					Quiet:   aws.Bool(true),
				},
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return total, nil
}

// HealthCheck heads a probe key; the bucket being reachable is healthy even
// when the probe object does not exist.
func (s *S3Storage) HealthCheck(ctx context.Context) bool {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(".healthcheck")),
	})
	return err == nil || isNotFound(err)
}

// Name identifies this implementation.
func (s *S3Storage) Name() string {
	return "s3_object_store"
}

func encodeMetadata(meta domain.CacheMetadata) map[string]string {
	m := map[string]string{
		metaOriginalURL:  meta.OriginalURL,
		metaContentType:  meta.ContentType,
		metaOriginalSize: strconv.FormatInt(meta.OriginalSize, 10),
		metaCachedSize:   strconv.FormatInt(meta.CachedSize, 10),
		metaCachedAt:     meta.CachedAt.UTC().Format(time.RFC3339Nano),
		metaAccessCount:  strconv.FormatInt(meta.AccessCount, 10),
	}
	if meta.Width > 0 {
		m[metaWidth] = strconv.Itoa(meta.Width)
	}
	if meta.Height > 0 {
		m[metaHeight] = strconv.Itoa(meta.Height)
	}
	if meta.WorkspaceID != "" {
		m[metaWorkspaceID] = meta.WorkspaceID
	}
	if meta.BlockID != "" {
		m[metaBlockID] = meta.BlockID
	}
	return m
}

func decodeMetadata(m map[string]string) domain.CacheMetadata {
	meta := domain.CacheMetadata{
		OriginalURL: m[metaOriginalURL],
		ContentType: m[metaContentType],
		WorkspaceID: m[metaWorkspaceID],
		BlockID:     m[metaBlockID],
	}
	meta.OriginalSize, _ = strconv.ParseInt(m[metaOriginalSize], 10, 64)
	meta.CachedSize, _ = strconv.ParseInt(m[metaCachedSize], 10, 64)
	meta.Width, _ = strconv.Atoi(m[metaWidth])
	meta.Height, _ = strconv.Atoi(m[metaHeight])
	meta.AccessCount, _ = strconv.ParseInt(m[metaAccessCount], 10, 64)
	meta.CachedAt, _ = time.Parse(time.RFC3339Nano, m[metaCachedAt])
	return meta
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "404":
			return true
		}
	}
	return false
}
