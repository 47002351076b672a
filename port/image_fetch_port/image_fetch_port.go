package image_fetch_port

import (
	"context"

	"imgcdn/domain"
)

// ImageFetchPort defines the upstream fetch operation. Errors are always
// *errors.ProxyError values carrying the HTTP status to relay.
type ImageFetchPort interface {
	Fetch(ctx context.Context, rawURL string) (*domain.FetchResult, error)
}
