// Package image_fetch_gateway fetches image bytes from upstream origins.
// It acts as an anti-corruption layer between the pipeline and the network:
// redirects are chased manually with re-validation of every hop, the body is
// read under a streaming size cap, and all failures come back as structured
// proxy errors.
package image_fetch_gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"imgcdn/domain"
	apperrors "imgcdn/utils/errors"
	"imgcdn/utils/logger"
	"imgcdn/utils/security"
)

const (
	maxRedirects = 5
	userAgent    = "imgcdn/1.0 (+https://github.com/imgcdn)"
)

// ImageFetchGateway implements image_fetch_port.ImageFetchPort.
type ImageFetchGateway struct {
	client    *http.Client
	validator *security.URLValidator
	timeout   time.Duration
	maxSize   int64
}

// NewImageFetchGateway creates a gateway with the given global deadline and
// size cap. Redirects are handled by the gateway itself, never by the client.
func NewImageFetchGateway(validator *security.URLValidator, timeout time.Duration, maxSize int64) *ImageFetchGateway {
	return &ImageFetchGateway{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		validator: validator,
		timeout:   timeout,
		maxSize:   maxSize,
	}
}

// Fetch issues GET requests until a non-redirect response arrives, then gates
// the response. One deadline covers DNS, connect, TLS, every redirect hop,
// and the body read.
func (g *ImageFetchGateway) Fetch(ctx context.Context, rawURL string) (*domain.FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if verr := g.validator.Validate(rawURL); verr != nil {
		return nil, verr
	}

	current, err := url.Parse(rawURL)
	if err != nil {
		return nil, apperrors.Wrap(http.StatusBadRequest, apperrors.CodeInvalidURL, "url is not parseable", err)
	}

	for hop := 0; hop <= maxRedirects; hop++ {
		resp, ferr := g.doRequest(ctx, current.String())
		if ferr != nil {
			return nil, ferr
		}

		if isRedirect(resp.StatusCode) {
			next, rerr := g.resolveRedirect(current, resp)
			drainAndClose(resp.Body)
			if rerr != nil {
				return nil, rerr
			}
			current = next
			continue
		}

		defer drainAndClose(resp.Body)
		return g.readResponse(resp)
	}

	return nil, apperrors.New(http.StatusBadGateway, apperrors.CodeTooManyRedirects,
		fmt.Sprintf("more than %d redirects", maxRedirects))
}

func (g *ImageFetchGateway) doRequest(ctx context.Context, target string) (*http.Response, *apperrors.ProxyError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apperrors.Wrap(http.StatusBadRequest, apperrors.CodeInvalidURL, "failed to build request", err)
	}

	// Exactly two headers; client headers are never forwarded upstream.
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, apperrors.Wrap(http.StatusGatewayTimeout, apperrors.CodeUpstreamTimeout,
				"upstream fetch exceeded deadline", err)
		}
		return nil, apperrors.Wrap(http.StatusBadGateway, apperrors.CodeFetchFailed,
			"upstream fetch failed", err)
	}
	return resp, nil
}

// resolveRedirect resolves the Location header against the current URL and
// re-runs validation on the absolute target.
func (g *ImageFetchGateway) resolveRedirect(current *url.URL, resp *http.Response) (*url.URL, *apperrors.ProxyError) {
	location := resp.Header.Get("Location")
	if location == "" {
		return nil, apperrors.New(http.StatusBadGateway, apperrors.CodeInvalidRedirect,
			"redirect without location header")
	}

	next, err := current.Parse(location)
	if err != nil {
		return nil, apperrors.Wrap(http.StatusBadGateway, apperrors.CodeInvalidRedirect,
			"redirect location is not parseable", err)
	}

	if verr := g.validator.Validate(next.String()); verr != nil {
		logger.Logger.Warn("blocked redirect target",
			"from", current.String(), "to", next.String(), "code", verr.Code)
		return nil, apperrors.Wrap(http.StatusForbidden, apperrors.CodeRedirectBlocked,
			"redirect target is not allowed", verr)
	}

	return next, nil
}

func (g *ImageFetchGateway) readResponse(resp *http.Response) (*domain.FetchResult, error) {
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		status := resp.StatusCode
		if status == http.StatusForbidden {
			// Do not leak upstream authentication behaviour to clients.
			status = http.StatusBadGateway
		}
		return nil, apperrors.New(status, apperrors.CodeUpstreamError,
			fmt.Sprintf("upstream returned status %d", resp.StatusCode))
	}

	contentType := normalizeContentType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperrors.New(http.StatusBadRequest, apperrors.CodeInvalidContentType,
			fmt.Sprintf("upstream content type %q is not an image", contentType))
	}

	// Fail fast on a declared oversize body, but never trust the declaration
	// as ground truth for the streamed read below.
	if resp.ContentLength > g.maxSize {
		// Close without draining: not a single body byte is read.
		_ = resp.Body.Close()
		return nil, apperrors.New(http.StatusRequestEntityTooLarge, apperrors.CodeImageTooLarge,
			fmt.Sprintf("declared size %d exceeds limit %d", resp.ContentLength, g.maxSize))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, g.maxSize+1))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Wrap(http.StatusGatewayTimeout, apperrors.CodeUpstreamTimeout,
				"upstream body read exceeded deadline", err)
		}
		return nil, apperrors.Wrap(http.StatusBadGateway, apperrors.CodeFetchFailed,
			"failed to read upstream body", err)
	}
	if int64(len(data)) > g.maxSize {
		return nil, apperrors.New(http.StatusRequestEntityTooLarge, apperrors.CodeImageTooLarge,
			fmt.Sprintf("body exceeded limit %d mid-stream", g.maxSize))
	}
	if len(data) == 0 {
		return nil, apperrors.New(http.StatusBadGateway, apperrors.CodeEmptyBody,
			"upstream returned an empty body")
	}

	return &domain.FetchResult{
		Data:         data,
		ContentType:  contentType,
		OriginalSize: int64(len(data)),
	}, nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// normalizeContentType strips parameters and lowercases the media type.
func normalizeContentType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
