// Package buildinfo reports which wkimage build is running.
//
// Variables are set via ldflags during build:
//
//	go build -ldflags "-X github.com/matzehuels/wkimage/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/matzehuels/wkimage/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/matzehuels/wkimage/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package buildinfo

import "fmt"

// Set via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is the identity reported by `wkimage version` and GET /v1/version.
// Engine is the libwkhtmltox version, empty when the library is not loaded.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"built"`
	Engine  string `json:"engine,omitempty"`
}

// Current returns the build identity without an engine version.
func Current() Info {
	return Info{Version: Version, Commit: Commit, Date: Date}
}

// WithEngine returns a copy of i reporting engine.
func (i Info) WithEngine(engine string) Info {
	i.Engine = engine
	return i
}

// Fields returns the label/value pairs in display order.
func (i Info) Fields() [][2]string {
	engine := i.Engine
	if engine == "" {
		engine = "unavailable"
	}
	return [][2]string{
		{"Version", i.Version},
		{"Commit", i.Commit},
		{"Built", i.Date},
		{"Engine", engine},
	}
}

// Template returns the version template string for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}
