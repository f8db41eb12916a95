package cache

import (
	"strconv"
	"strings"

	"dfchart/pkg/window"
)

// quantumMask forces the three low bits of a pivot to one, so every pivot in
// the same 8-second bucket maps to the same key.
const quantumMask = 0b111

// Key identifies an artifact. Pivot is already quantized.
type Key struct {
	Mount string
	Pivot int64
	Delta int64
}

// Quantize coarsens a pivot to its 8-second bucket.
func Quantize(pivot int64) int64 {
	return pivot | quantumMask
}

// NewKey derives the cache key of a resolved window.
func NewKey(mount string, w window.Window) Key {
	return Key{Mount: mount, Pivot: Quantize(w.Pivot), Delta: w.Delta}
}

// FileName renders the key as "<mount with / as _>-0b<pivot in binary>-<delta>.<ext>".
func (k Key) FileName(ext string) string {
	var b strings.Builder
	b.WriteString(strings.ReplaceAll(k.Mount, "/", "_"))
	b.WriteString("-")
	if k.Pivot < 0 {
		b.WriteString("-0b")
		b.WriteString(strconv.FormatInt(-k.Pivot, 2))
	} else {
		b.WriteString("0b")
		b.WriteString(strconv.FormatInt(k.Pivot, 2))
	}
	b.WriteString("-")
	b.WriteString(strconv.FormatInt(k.Delta, 10))
	b.WriteString(".")
	b.WriteString(ext)
	return b.String()
}
