// Package native binds the wkhtmltox rendering library's image API.
//
// # Design Principles
//
//  1. Isolation: every symbol lookup and raw pointer conversion lives in this
//     package. Callers see opaque handles and Go strings.
//
//  2. Minimal Surface: only the wkhtmltoimage_* functions the converter needs
//     are bound. See [Engine] for the full list.
//
//  3. Callbacks: the five native callback slots are served by trampolines
//     created once per process. They dispatch to Go functions through a
//     registry keyed by converter handle. Passing nil unregisters a slot.
//
//  4. No cgo: the library is opened at runtime with purego, so binaries build
//     without a C toolchain and a missing library is reported as an error
//     instead of a link failure.
//
// # Threading
//
// The library is NOT thread-safe and every call touching a converter must be
// made from the OS thread that initialized the library. This package does not
// enforce that; route all calls through an affinity executor.
//
// # Test Double
//
// Package [github.com/matzehuels/wkimage/pkg/native/nativetest] provides an
// in-memory [Engine] that records every call.
package native
