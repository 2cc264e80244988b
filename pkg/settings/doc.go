// Package settings defines the image configuration tree handed to the
// rendering engine and flattens it into the key/value pairs accepted by the
// native global-settings setter.
//
// # Configuration Tree
//
// [Image] is the root. Leaves are booleans, integers, floats, and strings;
// nested groups ([LoadGlobal], [LoadPage]) are written under a dotted prefix.
// Each type describes its own fields by implementing [Node], so the mapping
// from Go fields to engine keys is explicit and checked by the compiler:
//
//	func (p *LoadPage) VisitSettings(v *settings.Visitor) {
//	    v.String("Username", p.Username)
//	    v.Int("jsdelay", p.JSDelay)
//	}
//
// # Flattening
//
// [Flatten] walks a [Node] in declaration order. Every field name has its
// first letter lowered and is prefixed with its ancestors' names:
//
//	pairs := settings.Flatten("", settings.Default())
//	// quiet=false, ..., screenWidth=1024, quality=94,
//	// loadGlobal.cookieJar=, loadPage.username=, ...
//
// Booleans are always written as "true" or "false"; numbers use a
// locale-independent representation. The flattener does not de-duplicate
// keys: the schema is the source of truth for uniqueness.
//
// # Decoding
//
// [Decode] fills an [Image] from a loosely typed map (an HTTP payload or a
// configuration section) using the same key names the engine sees.
package settings
