package settings

import (
	"github.com/matzehuels/wkimage/pkg/errors"
)

// Defaults applied by [Default].
const (
	DefaultScreenWidth = 1024
	DefaultQuality     = 94
)

// Output formats accepted by the "fmt" setting. FormatDefault lets the
// engine infer the format from the output file name.
const (
	FormatDefault = ""
	FormatJPG     = "jpg"
	FormatPNG     = "png"
	FormatBMP     = "bmp"
	FormatSVG     = "svg"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatDefault: true,
	FormatJPG:     true,
	FormatPNG:     true,
	FormatBMP:     true,
	FormatSVG:     true,
}

// Load error handling strategies for [LoadPage.LoadErrorHandling].
var validLoadErrorHandling = map[string]bool{
	"":       true,
	"abort":  true,
	"skip":   true,
	"ignore": true,
}

// Image is the root of the configuration tree for one converter.
type Image struct {
	LoadGlobal LoadGlobal `json:"loadGlobal" toml:"loadGlobal" yaml:"loadGlobal" mapstructure:"loadGlobal"`
	LoadPage   LoadPage   `json:"loadPage" toml:"loadPage" yaml:"loadPage" mapstructure:"loadPage"`

	// Quiet suppresses the engine's own error output.
	Quiet bool `json:"quiet" toml:"quiet" yaml:"quiet" mapstructure:"quiet"`

	// Transparent makes the white background transparent for PNG and SVG output.
	Transparent bool `json:"transparent" toml:"transparent" yaml:"transparent" mapstructure:"transparent"`

	// UseGraphics enables the graphical backend while rendering.
	UseGraphics bool `json:"useGraphics" toml:"useGraphics" yaml:"useGraphics" mapstructure:"useGraphics"`

	// In is the URL or path of the input; "-" reads standard input.
	In string `json:"in" toml:"in" yaml:"in" mapstructure:"in"`

	// Out is the output path. Empty keeps the result in the engine's buffer
	// so Convert can return it.
	Out string `json:"out" toml:"out" yaml:"out" mapstructure:"out"`

	// Fmt is one of "", "jpg", "png", "bmp" or "svg".
	Fmt string `json:"fmt" toml:"fmt" yaml:"fmt" mapstructure:"fmt"`

	ScreenHeight int `json:"screenHeight" toml:"screenHeight" yaml:"screenHeight" mapstructure:"screenHeight"`
	ScreenWidth  int `json:"screenWidth" toml:"screenWidth" yaml:"screenWidth" mapstructure:"screenWidth"`

	// Quality is the JPEG compression factor.
	Quality int `json:"quality" toml:"quality" yaml:"quality" mapstructure:"quality"`
}

// LoadGlobal holds load options shared by every page of a conversion.
type LoadGlobal struct {
	CookieJar string `json:"cookieJar" toml:"cookieJar" yaml:"cookieJar" mapstructure:"cookieJar"`
}

// LoadPage holds options controlling how the input page is fetched.
type LoadPage struct {
	Username             string  `json:"username" toml:"username" yaml:"username" mapstructure:"username"`
	Password             string  `json:"password" toml:"password" yaml:"password" mapstructure:"password"`
	JSDelay              int     `json:"jsdelay" toml:"jsdelay" yaml:"jsdelay" mapstructure:"jsdelay"`
	ZoomFactor           float64 `json:"zoomFactor" toml:"zoomFactor" yaml:"zoomFactor" mapstructure:"zoomFactor"`
	BlockLocalFileAccess bool    `json:"blockLocalFileAccess" toml:"blockLocalFileAccess" yaml:"blockLocalFileAccess" mapstructure:"blockLocalFileAccess"`
	StopSlowScripts      bool    `json:"stopSlowScripts" toml:"stopSlowScripts" yaml:"stopSlowScripts" mapstructure:"stopSlowScripts"`
	DebugJavascript      bool    `json:"debugJavascript" toml:"debugJavascript" yaml:"debugJavascript" mapstructure:"debugJavascript"`
	LoadErrorHandling    string  `json:"loadErrorHandling" toml:"loadErrorHandling" yaml:"loadErrorHandling" mapstructure:"loadErrorHandling"`
	Proxy                string  `json:"proxy" toml:"proxy" yaml:"proxy" mapstructure:"proxy"`
}

// Default returns an Image with the engine defaults applied.
func Default() *Image {
	return &Image{
		ScreenWidth: DefaultScreenWidth,
		Quality:     DefaultQuality,
		LoadPage: LoadPage{
			JSDelay:    200,
			ZoomFactor: 1,
		},
	}
}

// Clone returns a deep copy of img.
func (img *Image) Clone() *Image {
	c := *img
	return &c
}

// VisitSettings implements Node.
func (img *Image) VisitSettings(v *Visitor) {
	v.Group("LoadGlobal", &img.LoadGlobal)
	v.Group("LoadPage", &img.LoadPage)
	v.Bool("Quiet", img.Quiet)
	v.Bool("Transparent", img.Transparent)
	v.Bool("UseGraphics", img.UseGraphics)
	v.String("In", img.In)
	v.String("Out", img.Out)
	v.String("Fmt", img.Fmt)
	v.Int("ScreenHeight", img.ScreenHeight)
	v.Int("ScreenWidth", img.ScreenWidth)
	v.Int("Quality", img.Quality)
}

// VisitSettings implements Node.
func (g *LoadGlobal) VisitSettings(v *Visitor) {
	v.String("CookieJar", g.CookieJar)
}

// VisitSettings implements Node.
func (p *LoadPage) VisitSettings(v *Visitor) {
	v.String("Username", p.Username)
	v.String("Password", p.Password)
	v.Int("jsdelay", p.JSDelay)
	v.Float("ZoomFactor", p.ZoomFactor)
	v.Bool("BlockLocalFileAccess", p.BlockLocalFileAccess)
	v.Bool("StopSlowScripts", p.StopSlowScripts)
	v.Bool("DebugJavascript", p.DebugJavascript)
	v.String("LoadErrorHandling", p.LoadErrorHandling)
	v.String("Proxy", p.Proxy)
}

// Validate checks option values before they reach the engine.
// The engine performs its own validation through the setter; this catches
// obvious mistakes with a clearer message.
func (img *Image) Validate() error {
	if !ValidFormats[img.Fmt] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid fmt: %q (must be one of: jpg, png, bmp, svg)", img.Fmt)
	}
	if img.ScreenWidth < 0 || img.ScreenHeight < 0 {
		return errors.New(errors.ErrCodeInvalidSettings, "screen size cannot be negative (%dx%d)", img.ScreenWidth, img.ScreenHeight)
	}
	if img.Quality < 0 || img.Quality > 100 {
		return errors.New(errors.ErrCodeInvalidSettings, "quality must be between 0 and 100, got %d", img.Quality)
	}
	if img.LoadPage.ZoomFactor < 0 {
		return errors.New(errors.ErrCodeInvalidSettings, "zoom factor cannot be negative")
	}
	if !validLoadErrorHandling[img.LoadPage.LoadErrorHandling] {
		return errors.New(errors.ErrCodeInvalidSettings, "invalid loadErrorHandling: %q (must be one of: abort, skip, ignore)", img.LoadPage.LoadErrorHandling)
	}
	return errors.ValidateOutputPath(img.Out)
}
