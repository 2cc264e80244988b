package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/wkimage/pkg/cache"
	"github.com/matzehuels/wkimage/pkg/converter"
	"github.com/matzehuels/wkimage/pkg/errors"
	"github.com/matzehuels/wkimage/pkg/imageinfo"
	"github.com/matzehuels/wkimage/pkg/native/nativetest"
	"github.com/matzehuels/wkimage/pkg/observability"
	"github.com/matzehuels/wkimage/pkg/observability/prom"
	"github.com/matzehuels/wkimage/pkg/render"
	"github.com/matzehuels/wkimage/pkg/settings"
)

type fixture struct {
	engine  *nativetest.Engine
	runtime *converter.Runtime
	handler http.Handler
}

func newFixture(t *testing.T, c cache.Cache, opts ...Option) *fixture {
	t.Helper()
	engine := nativetest.New()
	rt := converter.NewRuntime(engine)
	t.Cleanup(func() { _ = rt.Shutdown() })

	logger := log.New(io.Discard)
	runner := render.NewRunner(rt, c, nil, logger)
	opts = append([]Option{WithLogger(logger)}, opts...)
	return &fixture{
		engine:  engine,
		runtime: rt,
		handler: New(runner, opts...).Handler(),
	}
}

func (f *fixture) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/render", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRenderHTML(t *testing.T) {
	f := newFixture(t, nil)

	w := f.post(t, `{"html": "<h1>hi</h1>", "settings": {"screenWidth": 200, "screenHeight": 100}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "miss", w.Header().Get("X-Cache"))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	info, err := imageinfo.Detect(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, imageinfo.Info{Format: imageinfo.FormatPNG, Width: 200, Height: 100}, info)
}

func TestRenderCacheHit(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)
	f := newFixture(t, fc)

	body := `{"html": "<p>cached</p>"}`
	first := f.post(t, body)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "miss", first.Header().Get("X-Cache"))

	second := f.post(t, body)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "hit", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	assert.Equal(t, 1, f.engine.CallCount("convert"))
}

func TestRenderJPEG(t *testing.T) {
	f := newFixture(t, nil)

	w := f.post(t, `{"html": "<p>x</p>", "settings": {"fmt": "jpg", "quality": "80"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
}

func TestRenderIgnoresOutputPath(t *testing.T) {
	f := newFixture(t, nil)

	w := f.post(t, `{"html": "<p>x</p>", "settings": {"out": "/tmp/should-not-exist.png"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Body.Bytes())
	assert.Equal(t, "", f.engine.Settings()["out"])
}

func TestRenderRestrictsLocalAccess(t *testing.T) {
	f := newFixture(t, nil)

	w := f.post(t, `{
		"url": "https://example.com",
		"settings": {
			"loadGlobal": {"cookieJar": "/tmp/jar.txt"},
			"loadPage": {"blockLocalFileAccess": false, "proxy": "http://attacker:8080"}
		}
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := f.engine.Settings()
	assert.Equal(t, "https://example.com", got["in"])
	assert.Equal(t, "", got["loadGlobal.cookieJar"])
	assert.Equal(t, "", got["loadPage.proxy"])
	assert.Equal(t, "true", got["loadPage.blockLocalFileAccess"])
}

func TestRenderKeepsServerProxy(t *testing.T) {
	defaults := settings.Default()
	defaults.LoadPage.Proxy = "http://egress:3128"
	defaults.LoadGlobal.CookieJar = "/var/lib/wkimage/cookies.txt"
	f := newFixture(t, nil, WithDefaults(defaults))

	w := f.post(t, `{"html": "<p>x</p>", "settings": {"loadPage": {"proxy": "http://other:1"}}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := f.engine.Settings()
	assert.Equal(t, "http://egress:3128", got["loadPage.proxy"])
	assert.Equal(t, "/var/lib/wkimage/cookies.txt", got["loadGlobal.cookieJar"])
}

func TestValidateRemoteURL(t *testing.T) {
	for _, raw := range []string{"http://example.com", "HTTPS://example.com/a?b=c"} {
		assert.NoError(t, validateRemoteURL(raw), raw)
	}
	for _, raw := range []string{"/etc/passwd", "file:///etc/passwd", "ftp://example.com", "example.com", "https://"} {
		err := validateRemoteURL(raw)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput), "%q: %v", raw, err)
	}
}

func TestRenderKeepsRequestID(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/render", strings.NewReader(`{}`))
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", decodeError(t, w).RequestID)
}

func TestRenderErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		setup  func(*nativetest.Engine)
		status int
		code   errors.Code
	}{
		{
			name:   "malformed json",
			body:   `{"html":`,
			status: http.StatusBadRequest,
			code:   errors.ErrCodeInvalidInput,
		},
		{
			name:   "no input",
			body:   `{}`,
			status: http.StatusBadRequest,
			code:   errors.ErrCodeInvalidInput,
		},
		{
			name:   "html and url",
			body:   `{"html": "<p>x</p>", "url": "https://example.com"}`,
			status: http.StatusBadRequest,
			code:   errors.ErrCodeInvalidInput,
		},
		{
			name:   "local path",
			body:   `{"url": "/etc/hostname"}`,
			status: http.StatusBadRequest,
			code:   errors.ErrCodeInvalidInput,
		},
		{
			name:   "file url",
			body:   `{"url": "file:///etc/hostname"}`,
			status: http.StatusBadRequest,
			code:   errors.ErrCodeInvalidInput,
		},
		{
			name:   "url without host",
			body:   `{"url": "http:///index.html"}`,
			status: http.StatusBadRequest,
			code:   errors.ErrCodeInvalidInput,
		},
		{
			name:   "unknown setting",
			body:   `{"html": "<p>x</p>", "settings": {"bogus": 1}}`,
			status: http.StatusBadRequest,
			code:   errors.ErrCodeInvalidSettings,
		},
		{
			name:   "invalid format",
			body:   `{"html": "<p>x</p>", "settings": {"fmt": "tiff"}}`,
			status: http.StatusBadRequest,
			code:   errors.ErrCodeInvalidFormat,
		},
		{
			name:   "rejected by engine",
			body:   `{"html": "<p>x</p>"}`,
			setup:  func(e *nativetest.Engine) { e.RejectKey = "screenWidth" },
			status: http.StatusUnprocessableEntity,
			code:   errors.ErrCodeEngineSetting,
		},
		{
			name: "conversion failed",
			body: `{"url": "https://example.com/missing"}`,
			setup: func(e *nativetest.Engine) {
				e.FailConvert = true
				e.Errors = []string{"page not found"}
				e.HTTPCode = 404
			},
			status: http.StatusBadGateway,
			code:   errors.ErrCodeConversion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			if tt.setup != nil {
				tt.setup(f.engine)
			}

			w := f.post(t, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
			assert.Equal(t, w.Header().Get(RequestIDHeader), resp.RequestID)
		})
	}
}

func TestRenderAfterShutdown(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.runtime.Shutdown())

	w := f.post(t, `{"html": "<p>x</p>"}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, errors.ErrCodeClosed, decodeError(t, w).Code)
}

func TestRenderBodyTooLarge(t *testing.T) {
	f := newFixture(t, nil, WithMaxBodyBytes(64))

	body := `{"html": "` + strings.Repeat("x", 256) + `"}`
	w := f.post(t, body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestVersion(t *testing.T) {
	f := newFixture(t, nil)

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/version", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "0.12.6-test", resp["engine"])
	assert.NotEmpty(t, resp["version"])
	assert.Contains(t, resp, "built")
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Zero(t, f.engine.Inits(), "health checks must not touch the engine")
}

func TestMetrics(t *testing.T) {
	t.Cleanup(observability.Reset)
	reg := prometheus.NewRegistry()
	prom.New(reg).Install()

	f := newFixture(t, nil, WithMetrics(reg))
	require.Equal(t, http.StatusOK, f.post(t, `{"html": "<p>x</p>"}`).Code)

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `wkimage_http_requests_total{method="POST",route="/v1/render",status="200"} 1`)
	assert.Contains(t, body, "wkimage_renders_total")
}

func TestMetricsDisabled(t *testing.T) {
	f := newFixture(t, nil)

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(bytes.ErrTooLarge))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(&errors.InitError{}))
	assert.Equal(t, http.StatusBadGateway, statusFor(&errors.ConversionError{}))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&errors.SettingError{Key: "k"}))
}
