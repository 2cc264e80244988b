package render

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/wkimage/pkg/cache"
	"github.com/matzehuels/wkimage/pkg/converter"
	"github.com/matzehuels/wkimage/pkg/errors"
	"github.com/matzehuels/wkimage/pkg/imageinfo"
	"github.com/matzehuels/wkimage/pkg/observability"
	"github.com/matzehuels/wkimage/pkg/settings"
)

// DefaultTTL is how long rendered images stay cached.
const DefaultTTL = 24 * time.Hour

// cacheKeyType labels render entries in cache metrics.
const cacheKeyType = "render"

// Request describes one render. Exactly one of HTML and Input is set.
type Request struct {
	// HTML is inline markup.
	HTML string `json:"html,omitempty"`
	// Input is a URL or local path handed to the engine as "in".
	Input string `json:"url,omitempty"`
	// Settings defaults to settings.Default().
	Settings *settings.Image `json:"-"`
	// Refresh skips the cache lookup but still stores the result.
	Refresh bool `json:"refresh,omitempty"`
	// Observer, when set, receives the conversion events.
	Observer converter.Observer `json:"-"`
}

// Validate checks the request and fills in default settings.
func (r *Request) Validate() error {
	switch {
	case r.HTML == "" && r.Input == "":
		return errors.New(errors.ErrCodeInvalidInput, "either html or url is required")
	case r.HTML != "" && r.Input != "":
		return errors.New(errors.ErrCodeInvalidInput, "html and url are mutually exclusive")
	case r.Input != "":
		if err := errors.ValidateInput(r.Input); err != nil {
			return err
		}
	}
	if r.Settings == nil {
		r.Settings = settings.Default()
	}
	return r.Settings.Validate()
}

// Result is the outcome of a render.
type Result struct {
	// Data is nil when the settings name an output file.
	Data     []byte
	Info     imageinfo.Info
	CacheHit bool
	Key      string
	Duration time.Duration
}

// Runner renders requests through a converter runtime.
type Runner struct {
	Runtime *converter.Runtime
	Cache   cache.Cache
	Keyer   cache.Keyer
	Logger  *log.Logger
	TTL     time.Duration
}

// NewRunner creates a runner. A nil cache disables caching and a nil keyer
// selects cache.DefaultKeyer.
func NewRunner(rt *converter.Runtime, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Runtime: rt,
		Cache:   c,
		Keyer:   keyer,
		Logger:  logger,
		TTL:     DefaultTTL,
	}
}

// Render validates req, serves it from the cache when possible and
// otherwise converts it. The context is checked before conversion starts;
// a started conversion always runs to completion.
func (r *Runner) Render(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	img := req.Settings.Clone()
	start := time.Now()

	cacheable := req.HTML != "" && img.Out == ""
	var key string
	if cacheable {
		key = r.Keyer.RenderKey(req.HTML, settingPairs(img))
		if !req.Refresh {
			if res, ok := r.lookup(ctx, key); ok {
				res.Duration = time.Since(start)
				return res, nil
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	observability.Render().OnRenderStart(ctx, img.Fmt)
	data, err := r.convert(req, img)
	observability.Render().OnRenderComplete(ctx, img.Fmt, len(data), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	res := &Result{Data: data, Key: key, Duration: time.Since(start)}
	if data != nil {
		if info, err := imageinfo.Detect(data); err == nil {
			res.Info = info
		} else {
			res.Info = imageinfo.Info{Format: img.Fmt}
		}
	}
	r.Logger.Debug("rendered", "format", res.Info.Format, "bytes", len(data), "duration", res.Duration)

	if cacheable && data != nil {
		r.store(ctx, key, data)
	}
	return res, nil
}

func (r *Runner) convert(req Request, img *settings.Image) ([]byte, error) {
	if req.Input != "" {
		img.In = req.Input
	}
	opts := []converter.Option{converter.WithSettings(img)}
	if req.Observer != nil {
		opts = append(opts, converter.WithObserver(req.Observer))
	}

	conv, err := r.Runtime.NewConverter(opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := conv.Close(); err != nil {
			r.Logger.Warn("close converter", "error", err)
		}
	}()

	if req.HTML != "" {
		return conv.ConvertHTML(req.HTML)
	}
	return conv.Convert()
}

func (r *Runner) lookup(ctx context.Context, key string) (*Result, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache lookup failed", "key", key, "error", err)
		return nil, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, cacheKeyType)
		return nil, false
	}
	info, err := imageinfo.Detect(data)
	if err != nil {
		// Unreadable entry; render again and overwrite it.
		observability.Cache().OnCacheMiss(ctx, cacheKeyType)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, cacheKeyType)
	return &Result{Data: data, Info: info, CacheHit: true, Key: key}, true
}

func (r *Runner) store(ctx context.Context, key string, data []byte) {
	err := cache.RetryWithBackoff(ctx, 2, 100*time.Millisecond, func() error {
		return r.Cache.Set(ctx, key, data, r.TTL)
	})
	if err != nil {
		r.Logger.Warn("cache write failed", "key", key, "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, cacheKeyType, len(data))
}

// settingPairs returns the flattened settings in key=value form.
func settingPairs(img *settings.Image) []string {
	flat := settings.Flatten("", img)
	out := make([]string, len(flat))
	for i, s := range flat {
		out[i] = s.String()
	}
	return out
}
