// Package order converts the order labels seen on the wire ("#1001", "1001",
// "1001.1") into the canonical key tracking records are stored under.
package order

import (
	"regexp"
	"strings"
)

// sequenceSuffix matches fulfillment sequence suffixes such as ".1" or ".2"
// at the end of a label. Repeated suffixes ("1001.1.2") are matched as one run
// so that a single pass reaches the fixed point.
var sequenceSuffix = regexp.MustCompile(`(\.[0-9]+)+$`)

// Normalize returns the canonical order key for a raw label.
//
// Only two transformations apply: the leading '#' marker is removed and a
// trailing fulfillment sequence suffix is removed. There is no case folding
// and no whitespace trimming. Normalize is idempotent.
func Normalize(raw string) string {
	key := strings.TrimLeft(raw, "#")
	return sequenceSuffix.ReplaceAllString(key, "")
}

// DisplayNumber returns the human-facing label for raw, always carrying
// exactly one leading '#'.
func DisplayNumber(raw string) string {
	return "#" + Normalize(raw)
}
