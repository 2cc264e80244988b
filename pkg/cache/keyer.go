package cache

// Keyer derives cache keys for renders.
type Keyer interface {
	// RenderKey returns the key for rendering input with the given
	// flattened settings ("key=value" pairs, in flattening order).
	RenderKey(input string, settings []string) string
}

// DefaultKeyer hashes the input and settings into "render:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// RenderKey implements Keyer.
func (DefaultKeyer) RenderKey(input string, settings []string) string {
	return "render:" + renderDigest(input, settings)
}

// ScopedKeyer wraps a Keyer with a prefix, separating tenants or engine
// versions that share one backend.
//
//	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "wk-0.12.6:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// RenderKey implements Keyer.
func (k *ScopedKeyer) RenderKey(input string, settings []string) string {
	return k.prefix + k.inner.RenderKey(input, settings)
}
