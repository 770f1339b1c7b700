package compositor

import (
	"image/color"
	"strconv"
	"strings"
)

var white = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

// ParseHex parses a 6 or 8 digit hex colour with an optional leading '#'.
// The last two digits of an 8 digit value are the alpha channel. Malformed
// input yields opaque white.
func ParseHex(s string) color.NRGBA {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 && len(s) != 8 {
		return white
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return white
	}
	if len(s) == 6 {
		return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
}
