package compositor

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/xalatechnologies/aplus/templates"
)

// LineSpacing is the line height as a multiple of the font size.
const LineSpacing = 1.2

// drawText draws pre-wrapped lines into r, clipped to r. Lines that would
// start below the bottom of r are dropped.
func drawText(dst *image.NRGBA, r image.Rectangle, lines []string, face font.Face, c color.Color, align templates.Align, size float64) {
	clip, ok := dst.SubImage(r).(*image.NRGBA)
	if !ok || clip.Bounds().Empty() {
		return
	}
	d := &font.Drawer{
		Dst:  clip,
		Src:  image.NewUniform(c),
		Face: face,
	}
	ascent := face.Metrics().Ascent.Ceil()
	step := int(math.Ceil(size * LineSpacing))
	for i, line := range lines {
		top := r.Min.Y + i*step
		if top >= r.Max.Y {
			return
		}
		if line == "" {
			continue
		}
		x := r.Min.X
		switch align {
		case templates.AlignCenter:
			x += (r.Dx() - d.MeasureString(line).Ceil()) / 2
		case templates.AlignRight:
			x = r.Max.X - d.MeasureString(line).Ceil()
		}
		d.Dot = fixed.P(x, top+ascent)
		d.DrawString(line)
	}
}
