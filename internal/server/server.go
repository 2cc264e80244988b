// Package server exposes the render runner over HTTP.
//
// Routes:
//
//	POST /v1/render   render html or a url, respond with the image bytes
//	GET  /v1/version  engine and build versions
//	GET  /healthz     liveness
//	GET  /metrics     Prometheus metrics, when a gatherer is configured
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/wkimage/pkg/buildinfo"
	"github.com/matzehuels/wkimage/pkg/errors"
	"github.com/matzehuels/wkimage/pkg/observability"
	"github.com/matzehuels/wkimage/pkg/render"
	"github.com/matzehuels/wkimage/pkg/settings"
)

// RequestIDHeader carries the id assigned to every request.
const RequestIDHeader = "X-Request-ID"

const (
	defaultMaxBodyBytes   = 4 << 20
	defaultRequestTimeout = 2 * time.Minute
	shutdownGrace         = 10 * time.Second
)

// Server serves the HTTP API.
type Server struct {
	runner         *render.Runner
	defaults       *settings.Image
	logger         *log.Logger
	gatherer       prometheus.Gatherer
	maxBodyBytes   int64
	requestTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaults sets the settings that request payloads are decoded over.
func WithDefaults(img *settings.Image) Option {
	return func(s *Server) {
		if img != nil {
			s.defaults = img.Clone()
		}
	}
}

// WithMetrics serves g on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithMaxBodyBytes limits request bodies. Zero keeps the default.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithRequestTimeout bounds how long a request may wait for the engine.
// Zero keeps the default.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// New creates a server around runner.
func New(runner *render.Runner, opts ...Option) *Server {
	s := &Server{
		runner:         runner,
		defaults:       settings.Default(),
		logger:         log.Default(),
		maxBodyBytes:   defaultMaxBodyBytes,
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/version", s.version)
		r.Post("/render", s.render)
	})
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// renderRequest is the POST /v1/render payload.
type renderRequest struct {
	HTML     string         `json:"html"`
	URL      string         `json:"url"`
	Settings map[string]any `json:"settings"`
	Refresh  bool           `json:"refresh"`
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Code      errors.Code `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id"`
}

func (s *Server) render(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	var body renderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.fail(w, r, http.StatusRequestEntityTooLarge,
				errors.New(errors.ErrCodeInvalidInput, "request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.fail(w, r, http.StatusBadRequest, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request body"))
		return
	}

	if body.URL != "" {
		if err := validateRemoteURL(body.URL); err != nil {
			s.fail(w, r, http.StatusBadRequest, err)
			return
		}
	}

	img := s.defaults.Clone()
	if err := settings.Decode(body.Settings, img); err != nil {
		s.fail(w, r, statusFor(err), err)
		return
	}
	s.restrict(img)

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()
	res, err := s.runner.Render(ctx, render.Request{
		HTML:     body.HTML,
		Input:    body.URL,
		Settings: img,
		Refresh:  body.Refresh,
	})
	if err != nil {
		s.fail(w, r, statusFor(err), err)
		return
	}

	cacheStatus := "miss"
	if res.CacheHit {
		cacheStatus = "hit"
	}
	w.Header().Set("Content-Type", res.Info.MIME())
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("X-Cache", cacheStatus)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		s.logger.Debug("write response", "error", err)
	}
}

// restrict drops the settings a remote client may not choose. Images are
// always returned in the response, local files stay unreadable, and the cookie
// jar and proxy come only from the server's own defaults.
func (s *Server) restrict(img *settings.Image) {
	img.Out = ""
	img.In = ""
	img.LoadGlobal.CookieJar = s.defaults.LoadGlobal.CookieJar
	img.LoadPage.Proxy = s.defaults.LoadPage.Proxy
	img.LoadPage.BlockLocalFileAccess = true
}

// validateRemoteURL accepts absolute http and https URLs only.
func validateRemoteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid url")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return errors.New(errors.ErrCodeInvalidInput, "url must use http or https, got %q", raw)
	}
	if u.Host == "" {
		return errors.New(errors.ErrCodeInvalidInput, "url has no host: %q", raw)
	}
	return nil
}

func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	engine, err := s.runner.Runtime.Version()
	if err != nil {
		s.fail(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, buildinfo.Current().WithEngine(engine))
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	id := RequestIDFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "request_id", id, "status", status, "error", err)
	} else {
		s.logger.Debug("request rejected", "request_id", id, "status", status, "error", err)
	}
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, status, errorResponse{
		Code:      code,
		Message:   errors.UserMessage(err),
		RequestID: id,
	})
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidFormat,
		errors.ErrCodeInvalidSettings, errors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case errors.ErrCodeEngineSetting:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeConversion:
		return http.StatusBadGateway
	case errors.ErrCodeClosed, errors.ErrCodeLibrary, errors.ErrCodeEngineInit:
		return http.StatusServiceUnavailable
	}
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case stderrors.Is(err, context.Canceled):
		// Client went away; the status is only logged.
		return 499
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// instrument reports every request to the HTTP hooks.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		observability.HTTP().OnRequest(r.Context(), r.Method, r.URL.Path)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		observability.HTTP().OnResponse(r.Context(), r.Method, route, status, elapsed)
		s.logger.Debug("request",
			"request_id", RequestIDFromContext(r.Context()),
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed.Round(time.Millisecond))
	})
}

type ctxKey int

const requestIDKey ctxKey = 0

// requestID assigns a uuid to the request unless the client sent one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// RequestIDFromContext returns the request id, or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
