package settings

import (
	"strconv"
	"unicode"
	"unicode/utf8"
)

// Setting is one flattened key/value pair for the native setter.
type Setting struct {
	Key   string
	Value string
}

// String returns the pair in key=value form.
func (s Setting) String() string {
	return s.Key + "=" + s.Value
}

// Node is implemented by every type in the configuration tree.
// VisitSettings must report each field exactly once, in a stable order.
type Node interface {
	VisitSettings(v *Visitor)
}

// Visitor collects flattened settings while a Node describes its fields.
type Visitor struct {
	prefix string
	out    []Setting
}

// Flatten walks n and returns its leaves as ordered key/value pairs.
// prefix is prepended verbatim to every key.
func Flatten(prefix string, n Node) []Setting {
	v := &Visitor{prefix: prefix}
	n.VisitSettings(v)
	return v.out
}

// Bool records a boolean leaf as "true" or "false".
func (v *Visitor) Bool(name string, value bool) {
	v.emit(name, strconv.FormatBool(value))
}

// Int records an integer leaf.
func (v *Visitor) Int(name string, value int) {
	v.emit(name, strconv.Itoa(value))
}

// Float records a floating point leaf using the shortest exact decimal form.
func (v *Visitor) Float(name string, value float64) {
	v.emit(name, strconv.FormatFloat(value, 'f', -1, 64))
}

// String records a string leaf unchanged.
func (v *Visitor) String(name, value string) {
	v.emit(name, value)
}

// Group descends into a nested node, prefixing its keys with name + ".".
func (v *Visitor) Group(name string, n Node) {
	saved := v.prefix
	v.prefix = v.key(name) + "."
	n.VisitSettings(v)
	v.prefix = saved
}

func (v *Visitor) emit(name, value string) {
	v.out = append(v.out, Setting{Key: v.key(name), Value: value})
}

func (v *Visitor) key(name string) string {
	return v.prefix + lowerFirst(name)
}

// lowerFirst lowers the first rune of name ("ScreenWidth" -> "screenWidth").
func lowerFirst(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError || unicode.IsLower(r) {
		return name
	}
	return string(unicode.ToLower(r)) + name[size:]
}
