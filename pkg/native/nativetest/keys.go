package nativetest

// ImageKeys are the global setting names libwkhtmltox's image settings
// reflect (imagesettings.cc and loadsettings.cc). SetGlobalSetting refuses any
// other key, as the real setter does.
var ImageKeys = map[string]bool{
	"screenWidth":  true,
	"screenHeight": true,
	"smartWidth":   true,
	"quality":      true,
	"fmt":          true,
	"transparent":  true,
	"useGraphics":  true,
	"quiet":        true,
	"in":           true,
	"out":          true,

	"crop.left":   true,
	"crop.top":    true,
	"crop.width":  true,
	"crop.height": true,

	"loadGlobal.cookieJar": true,

	"loadPage.username":             true,
	"loadPage.password":             true,
	"loadPage.jsdelay":              true,
	"loadPage.windowStatus":         true,
	"loadPage.zoomFactor":           true,
	"loadPage.blockLocalFileAccess": true,
	"loadPage.stopSlowScripts":      true,
	"loadPage.debugJavascript":      true,
	"loadPage.loadErrorHandling":    true,
	"loadPage.proxy":                true,

	"web.background":                 true,
	"web.loadImages":                 true,
	"web.enableJavascript":           true,
	"web.enableIntelligentShrinking": true,
	"web.minimumFontSize":            true,
	"web.defaultEncoding":            true,
	"web.userStyleSheet":             true,
	"web.enablePlugins":              true,
}
