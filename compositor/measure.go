package compositor

import "math"

// Measurer decides how much text fits on one line of a slot.
type Measurer interface {
	// MaxChars returns the number of characters that fit in width pixels at
	// the given font size. It is at least 1.
	MaxChars(width int, size float64) int
}

// DefaultGlyphRatio is the average glyph width as a fraction of the font size.
const DefaultGlyphRatio = 0.5

// Approx estimates line capacity from an average glyph width. It has no
// knowledge of the actual font.
type Approx struct {
	// Ratio is the average glyph width divided by the font size. Zero means
	// DefaultGlyphRatio.
	Ratio float64
}

// MaxChars implements Measurer.
func (a Approx) MaxChars(width int, size float64) int {
	ratio := a.Ratio
	if ratio <= 0 {
		ratio = DefaultGlyphRatio
	}
	glyph := size * ratio
	if glyph <= 0 || width <= 0 {
		return 1
	}
	return max(int(math.Floor(float64(width)/glyph)), 1)
}
