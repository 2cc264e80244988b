package settings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/wkimage/pkg/errors"
)

func keysOf(pairs []Setting) []string {
	keys := make([]string, len(pairs))
	for i, p := range pairs {
		keys[i] = p.Key
	}
	return keys
}

func TestFlattenDefaultOrder(t *testing.T) {
	pairs := Flatten("", Default())

	assert.Equal(t, []string{
		"loadGlobal.cookieJar",
		"loadPage.username",
		"loadPage.password",
		"loadPage.jsdelay",
		"loadPage.zoomFactor",
		"loadPage.blockLocalFileAccess",
		"loadPage.stopSlowScripts",
		"loadPage.debugJavascript",
		"loadPage.loadErrorHandling",
		"loadPage.proxy",
		"quiet",
		"transparent",
		"useGraphics",
		"in",
		"out",
		"fmt",
		"screenHeight",
		"screenWidth",
		"quality",
	}, keysOf(pairs))
}

func TestFlattenValues(t *testing.T) {
	img := Default()
	img.Fmt = FormatPNG
	img.ScreenWidth = 800
	img.ScreenHeight = 600
	img.Transparent = true
	img.LoadPage.ZoomFactor = 1.25

	got := map[string]string{}
	for _, p := range Flatten("", img) {
		got[p.Key] = p.Value
	}

	assert.Equal(t, "png", got["fmt"])
	assert.Equal(t, "800", got["screenWidth"])
	assert.Equal(t, "600", got["screenHeight"])
	assert.Equal(t, "94", got["quality"])
	assert.Equal(t, "true", got["transparent"])
	assert.Equal(t, "false", got["quiet"])
	assert.Equal(t, "1.25", got["loadPage.zoomFactor"])
	assert.Equal(t, "", got["out"])
}

func TestFlattenDeterministic(t *testing.T) {
	img := Default()
	img.In = "https://example.com"
	img.LoadGlobal.CookieJar = "/tmp/jar"

	first := Flatten("", img)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Flatten("", img))
	}
}

func TestFlattenBooleansAreLowercase(t *testing.T) {
	for _, b := range []bool{true, false} {
		img := Default()
		img.Quiet = b
		img.Transparent = b
		img.UseGraphics = b
		img.LoadPage.BlockLocalFileAccess = b
		img.LoadPage.StopSlowScripts = b
		img.LoadPage.DebugJavascript = b

		for _, p := range Flatten("", img) {
			if p.Value == "True" || p.Value == "False" {
				t.Errorf("%s = %q, want lowercase", p.Key, p.Value)
			}
		}
	}
}

func TestFlattenPrefix(t *testing.T) {
	pairs := Flatten("web.", &LoadGlobal{CookieJar: "jar"})
	require.Len(t, pairs, 1)
	assert.Equal(t, Setting{Key: "web.cookieJar", Value: "jar"}, pairs[0])
}

// nested is a three-level tree used to check dotted paths below two groups.
type nested struct{ Inner inner }
type inner struct{ Leaf leaf }
type leaf struct{ Value int }

func (n *nested) VisitSettings(v *Visitor) { v.Group("Inner", &n.Inner) }
func (i *inner) VisitSettings(v *Visitor)  { v.Group("Leaf", &i.Leaf) }
func (l *leaf) VisitSettings(v *Visitor)   { v.Int("Value", l.Value) }

func TestFlattenNestedPath(t *testing.T) {
	pairs := Flatten("", &nested{Inner: inner{Leaf: leaf{Value: 7}}})
	require.Len(t, pairs, 1)
	assert.Equal(t, "inner.leaf.value", pairs[0].Key)
	assert.Equal(t, "7", pairs[0].Value)
}

func TestFlattenKeysUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range Flatten("", Default()) {
		assert.False(t, seen[p.Key], "duplicate key %s", p.Key)
		seen[p.Key] = true
	}
}

func TestLowerFirst(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ScreenWidth", "screenWidth"},
		{"In", "in"},
		{"already", "already"},
		{"X", "x"},
		{"", ""},
		{"Ärger", "ärger"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, lowerFirst(tt.in))
		})
	}
}

func TestSettingString(t *testing.T) {
	assert.Equal(t, "fmt=png", Setting{Key: "fmt", Value: "png"}.String())
}

func TestClone(t *testing.T) {
	img := Default()
	c := img.Clone()
	c.ScreenWidth = 10
	c.LoadPage.Proxy = "http://proxy"

	assert.Equal(t, DefaultScreenWidth, img.ScreenWidth)
	assert.Empty(t, img.LoadPage.Proxy)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Image)
		code   errors.Code
	}{
		{"defaults", func(*Image) {}, ""},
		{"png", func(i *Image) { i.Fmt = FormatPNG }, ""},
		{"gif", func(i *Image) { i.Fmt = "gif" }, errors.ErrCodeInvalidFormat},
		{"negative width", func(i *Image) { i.ScreenWidth = -1 }, errors.ErrCodeInvalidSettings},
		{"quality too high", func(i *Image) { i.Quality = 101 }, errors.ErrCodeInvalidSettings},
		{"bad load handling", func(i *Image) { i.LoadPage.LoadErrorHandling = "retry" }, errors.ErrCodeInvalidSettings},
		{"skip load handling", func(i *Image) { i.LoadPage.LoadErrorHandling = "skip" }, ""},
		{"directory output", func(i *Image) { i.Out = "/tmp/" }, errors.ErrCodeInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := Default()
			tt.mutate(img)
			err := img.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestDecode(t *testing.T) {
	img := Default()
	err := Decode(map[string]any{
		"fmt":          "jpg",
		"screenWidth":  float64(800), // JSON numbers
		"screenHeight": "600",
		"transparent":  "true",
		"loadPage": map[string]any{
			"jsdelay": 50,
			"proxy":   "http://proxy:3128",
		},
	}, img)
	require.NoError(t, err)

	assert.Equal(t, "jpg", img.Fmt)
	assert.Equal(t, 800, img.ScreenWidth)
	assert.Equal(t, 600, img.ScreenHeight)
	assert.True(t, img.Transparent)
	assert.Equal(t, 50, img.LoadPage.JSDelay)
	assert.Equal(t, "http://proxy:3128", img.LoadPage.Proxy)
	// Untouched values keep their defaults.
	assert.Equal(t, DefaultQuality, img.Quality)
	assert.Equal(t, float64(1), img.LoadPage.ZoomFactor)
}

func TestDecodeUnknownKey(t *testing.T) {
	err := Decode(map[string]any{"smartWidth": true}, Default())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidSettings))
	assert.True(t, strings.Contains(err.Error(), "smartWidth"))
}

func TestDecodeEmpty(t *testing.T) {
	img := Default()
	require.NoError(t, Decode(nil, img))
	assert.Equal(t, Default(), img)
}
