package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgcdn/config"
	"imgcdn/di"
	"imgcdn/domain"
	"imgcdn/utils/logger"
)

type testEnv struct {
	echo      *echo.Echo
	container *di.ApplicationComponents
	upstream  *httptest.Server
	fetches   *atomic.Int64
}

// newTestEnv wires the real component graph (fs storage in a temp dir,
// in-process edge cache, real fetcher) against a local image origin.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger.InitLogger()

	var fetches atomic.Int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		img := image.NewRGBA(image.Rect(0, 0, 20, 10))
		for y := 0; y < 10; y++ {
			for x := 0; x < 20; x++ {
				img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
			}
		}
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, img))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(upstream.Close)

	upstreamHost, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Server.Port = 8080
	cfg.Storage.Backend = config.BackendFS
	cfg.Storage.CacheDir = t.TempDir()
	cfg.Cache.TTL = time.Minute
	cfg.Cache.MaxEntries = 100
	cfg.Cache.MaxBytes = 1 << 20
	cfg.Upstream.AllowedDomains = upstreamHost.Hostname() + "," + domain.CanonicalUpstreamHost
	cfg.Upstream.MaxImageSizeBytes = 1 << 20
	cfg.Upstream.Timeout = 5 * time.Second
	cfg.RateLimit.PerMinute = 0
	cfg.CORS.Origins = "*"

	container, err := di.NewApplicationComponents(context.Background(), cfg, logger.Logger)
	require.NoError(t, err)
	container.URLValidator.SetTestingMode(true)

	e := echo.New()
	RegisterRoutes(e, container, cfg)

	return &testEnv{echo: e, container: container, upstream: upstream, fetches: &fetches}
}

func (env *testEnv) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return decoded["error"]
}

func TestProxyHandler_MissingURL(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/proxy")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorBody(t, rec)
	assert.Equal(t, "MISSING_URL", body["code"])
	assert.NotEmpty(t, body["requestId"])
}

func TestProxyHandler_DomainNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/proxy?url="+url.QueryEscape("https://evil.example/a.jpg"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "DOMAIN_NOT_ALLOWED", decodeErrorBody(t, rec)["code"])
}

func TestProxyHandler_MissThenHit(t *testing.T) {
	env := newTestEnv(t)
	target := "/api/v1/proxy?url=" + url.QueryEscape(env.upstream.URL+"/w/b/photo.png?sig=one")

	first := env.do(http.MethodGet, target)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "ORIGIN", first.Header().Get("X-Cache-Tier"))
	assert.NotEmpty(t, first.Header().Get("X-Original-Size"))
	assert.NotEmpty(t, first.Header().Get("X-Optimized-Size"))
	assert.Contains(t, first.Header().Get("Cache-Control"), "public, max-age=3600")
	assert.Contains(t, first.Header().Get("Cache-Control"), "stale-while-revalidate=3600")
	assert.NotEmpty(t, first.Header().Get("X-Request-Id"))

	// The edge write is fire-and-forget; poll until the hit lands.
	require.Eventually(t, func() bool {
		rec := env.do(http.MethodGet, target)
		return rec.Header().Get("X-Cache") == "HIT"
	}, 2*time.Second, 10*time.Millisecond)

	hit := env.do(http.MethodGet, target)
	assert.Equal(t, "HIT", hit.Header().Get("X-Cache"))
	assert.Equal(t, "L2_EDGE", hit.Header().Get("X-Cache-Tier"))
	assert.Empty(t, hit.Header().Get("X-Original-Size"), "hits never report the original size")
	assert.Equal(t, int64(1), env.fetches.Load())
}

func TestProxyHandler_SignatureChangeStillHits(t *testing.T) {
	env := newTestEnv(t)
	base := env.upstream.URL + "/w/b/photo.png"

	first := env.do(http.MethodGet, "/api/v1/proxy?url="+url.QueryEscape(base+"?sig=aaa"))
	require.Equal(t, http.StatusOK, first.Code)

	require.Eventually(t, func() bool {
		rec := env.do(http.MethodGet, "/api/v1/proxy?url="+url.QueryEscape(base+"?sig=bbb"))
		return rec.Header().Get("X-Cache") == "HIT"
	}, 2*time.Second, 10*time.Millisecond, "a different signature must map to the same cache identity")

	assert.Equal(t, int64(1), env.fetches.Load())
}

func TestProxyHandler_InvalidTransformParamsSilentlyDropped(t *testing.T) {
	env := newTestEnv(t)
	encoded := url.QueryEscape(env.upstream.URL + "/w/b/photo.png")

	params := []string{"w=0", "w=-1", "w=10001", "w=abc", "fmt=xyz", "fit=stretch", "q=0", "q=101"}
	for _, param := range params {
		t.Run(param, func(t *testing.T) {
			rec := env.do(http.MethodGet, "/api/v1/proxy?url="+encoded+"&"+param)
			assert.Equal(t, http.StatusOK, rec.Code, "invalid parameter %q must be ignored", param)
		})
	}
}

func TestProxyHandler_ResizeParamProducesSmallerVariant(t *testing.T) {
	env := newTestEnv(t)
	encoded := url.QueryEscape(env.upstream.URL + "/w/b/photo.png")

	rec := env.do(http.MethodGet, "/api/v1/proxy?url="+encoded+"&w=10&fmt=png")

	require.Equal(t, http.StatusOK, rec.Code)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 10, cfg.Width)
	assert.Equal(t, 5, cfg.Height)
}

func TestPurgeHandler_ByPageIDNotImplemented(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodDelete, "/api/v1/cache?page_id=abc123")

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, "NOT_IMPLEMENTED", decodeErrorBody(t, rec)["code"])
}

func TestPurgeHandler_PurgeThenRefetchIsOrigin(t *testing.T) {
	env := newTestEnv(t)
	rawURL := env.upstream.URL + "/w/b/photo.png?sig=zzz"
	target := "/api/v1/proxy?url=" + url.QueryEscape(rawURL)

	require.Equal(t, http.StatusOK, env.do(http.MethodGet, target).Code)
	require.Eventually(t, func() bool {
		return env.do(http.MethodGet, target).Header().Get("X-Cache-Tier") == "L2_EDGE"
	}, 2*time.Second, 10*time.Millisecond)

	purge := env.do(http.MethodDelete, "/api/v1/cache?url="+url.QueryEscape(rawURL))
	require.Equal(t, http.StatusOK, purge.Code)

	refetch := env.do(http.MethodGet, target)
	assert.Equal(t, "MISS", refetch.Header().Get("X-Cache"))
	assert.Equal(t, "ORIGIN", refetch.Header().Get("X-Cache-Tier"))
}

func TestStablePathHandler_ServedFromPrimedCache(t *testing.T) {
	env := newTestEnv(t)

	// Prime the persistent store at the stable-path identity directly, as if
	// an earlier explicit-URL request had captured the bytes.
	baseURL := domain.StablePathBaseURL("ws1", "block1", "photo.jpg")
	key := domain.CacheKey(baseURL, domain.TransformOptions{})
	require.NoError(t, env.container.Storage.Put(context.Background(), key,
		[]byte("primed-bytes"), domain.CacheMetadata{
			OriginalURL: baseURL,
			ContentType: "image/jpeg",
			CachedSize:  12,
		}))

	rec := env.do(http.MethodGet, "/img/ws1/block1/photo.jpg")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, "L3_PERSISTENT", rec.Header().Get("X-Cache-Tier"))
	assert.Equal(t, "primed-bytes", rec.Body.String())
	assert.Zero(t, env.fetches.Load(), "a primed stable path never touches upstream")
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestStatsHandler(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/stats")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "filesystem", body["storage"])
	assert.Equal(t, "memory_lru", body["cache"])
}

func TestAPIKeyMiddleware_GatesAPIRoutes(t *testing.T) {
	env := newTestEnv(t)

	cfg := &config.Config{}
	cfg.APIKeys.Enabled = true
	cfg.APIKeys.Keys = "secret-key"
	cfg.CORS.Origins = "*"
	e := echo.New()
	RegisterRoutes(e, env.container, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("X-Api-Key", "secret-key")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The health route stays key-free.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
