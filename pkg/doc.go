// Package pkg provides the libraries behind wkimage, an HTML-to-image
// renderer built on the wkhtmltox engine.
//
// # Overview
//
// The engine is a C library with process-wide state, a main-thread
// affinity requirement, and a callback interface. The pkg directory wraps
// it in layers, from the ABI up:
//
//  1. [native] - The engine's C functions, loaded at runtime without cgo
//  2. [affinity] - A single OS thread that runs every engine call
//  3. [converter] - Sessions, the process-lifetime engine guard, converters
//  4. [render] - Cached, validated renders for the CLI and HTTP API
//  5. [settings] - The configuration tree and its flattening to key/value pairs
//
// # Architecture
//
// A render flows through the layers like this:
//
//	render.Request (html or url + settings.Image)
//	         ↓
//	    [cache] lookup (file, Redis or MongoDB)
//	         ↓
//	    [converter] Converter → Session on the engine thread
//	         ↓
//	    [native] wkhtmltoimage_* calls, callbacks → converter.Observer
//	         ↓
//	    image bytes → [imageinfo] format and size
//
// # Quick Start
//
// Render markup to PNG:
//
//	lib, err := native.Open(native.LibraryPath())
//	if err != nil {
//	    return err
//	}
//	defer lib.Close()
//
//	rt := converter.NewRuntime(lib)
//	defer rt.Shutdown()
//
//	conv, err := rt.NewConverter(converter.WithSettings(settings.Default()))
//	if err != nil {
//	    return err
//	}
//	defer conv.Close()
//
//	png, err := conv.ConvertHTML("<h1>Hello</h1>")
//
// # Main Packages
//
// [native] - The Engine interface mirroring the C ABI, the dynamic library
// binding, and nativetest, a recording test double.
//
// [affinity] - Executor: one goroutine locked to its OS thread, a FIFO
// queue, and panic propagation back to the caller.
//
// [converter] - Runtime initializes the engine once and deinitializes it
// once, on Shutdown. Converter multiplexes conversions onto the engine
// thread and forwards events to observers.
//
// [settings] - Image, LoadGlobal and LoadPage, flattened to engine keys
// such as "screenWidth" and "loadPage.jsdelay".
//
// [errors] - Coded errors plus the engine's InitError, SettingError and
// ConversionError.
//
// ## Infrastructure
//
// [cache] - Render cache with null, file, Redis and MongoDB backends.
//
// [config] - TOML or YAML configuration file.
//
// [observability] - Hook registry; [observability/prom] implements it with
// Prometheus metrics.
//
// [imageinfo] - Output format and pixel size detection.
//
// # Testing
//
// Every converter test runs against nativetest.Engine, so the suite needs
// no native library:
//
//	go test ./...
//
// [native]: https://pkg.go.dev/github.com/matzehuels/wkimage/pkg/native
// [affinity]: https://pkg.go.dev/github.com/matzehuels/wkimage/pkg/affinity
// [converter]: https://pkg.go.dev/github.com/matzehuels/wkimage/pkg/converter
// [render]: https://pkg.go.dev/github.com/matzehuels/wkimage/pkg/render
// [settings]: https://pkg.go.dev/github.com/matzehuels/wkimage/pkg/settings
// [errors]: https://pkg.go.dev/github.com/matzehuels/wkimage/pkg/errors
// [cache]: https://pkg.go.dev/github.com/matzehuels/wkimage/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/wkimage/pkg/config
// [observability]: https://pkg.go.dev/github.com/matzehuels/wkimage/pkg/observability
// [observability/prom]: https://pkg.go.dev/github.com/matzehuels/wkimage/pkg/observability/prom
// [imageinfo]: https://pkg.go.dev/github.com/matzehuels/wkimage/pkg/imageinfo
package pkg
