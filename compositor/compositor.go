// Package compositor rasterises a filled template into a single image.
//
// Rendering is pure: the same template, slot content and theme always give
// the same pixels. Slots are drawn in declaration order onto a canvas of
// exactly the template's size, so a later slot covers an earlier one where
// they overlap. Missing or empty slot content is skipped without error.
package compositor

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"

	"github.com/xalatechnologies/aplus/templates"
)

// Compositor renders templates. The zero value is not usable; call New.
type Compositor struct {
	measurer Measurer
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithMeasurer replaces the line-capacity estimate used for wrapping.
func WithMeasurer(m Measurer) Option {
	return func(c *Compositor) {
		c.measurer = m
	}
}

// New returns a Compositor using Approx measurement unless overridden.
func New(opts ...Option) *Compositor {
	c := &Compositor{measurer: Approx{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const defaultFontSize = 16

var std = New()

// Render draws t with the given image bytes and text, both keyed by slot id.
// A nil theme keeps the template's own styling.
func (c *Compositor) Render(t templates.Template, images map[string][]byte, texts map[string]string, theme *templates.Theme) (*image.NRGBA, error) {
	t = templates.ApplyTheme(t, theme)
	canvas := image.NewNRGBA(image.Rect(0, 0, t.Width, t.Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(ParseHex(t.Background)), image.Point{}, draw.Src)

	fs := newFaces()
	defer fs.close()

	for _, s := range t.Slots {
		r := s.Rect.Image().Intersect(canvas.Bounds())
		if r.Empty() {
			continue
		}
		switch s.Kind {
		case templates.KindImage:
			b := images[s.ID]
			if len(b) == 0 {
				continue
			}
			img, err := decodeImage(b)
			if err != nil {
				return nil, fmt.Errorf("slot %s: %w", s.ID, err)
			}
			drawFitted(canvas, r, img)
		case templates.KindText:
			text := texts[s.ID]
			if strings.TrimSpace(text) == "" {
				continue
			}
			size := s.Style.FontSize
			if size <= 0 {
				size = defaultFontSize
			}
			face, err := fs.get(t.Palette.FontFamily, s.Style.Weight, size)
			if err != nil {
				return nil, fmt.Errorf("slot %s: %w", s.ID, err)
			}
			lines := Wrap(text, c.measurer.MaxChars(s.Rect.W, size))
			drawText(canvas, r, lines, face, ParseHex(t.TextColor(s)), s.Style.Align, size)
		}
	}
	return canvas, nil
}

// RenderModule renders t and returns it PNG-encoded.
func (c *Compositor) RenderModule(t templates.Template, images map[string][]byte, texts map[string]string, theme *templates.Theme) ([]byte, error) {
	img, err := c.Render(t, images, texts, theme)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, img, PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Render draws t with the default Compositor.
func Render(t templates.Template, images map[string][]byte, texts map[string]string, theme *templates.Theme) (*image.NRGBA, error) {
	return std.Render(t, images, texts, theme)
}

// RenderModule renders t to PNG with the default Compositor.
func RenderModule(t templates.Template, images map[string][]byte, texts map[string]string, theme *templates.Theme) ([]byte, error) {
	return std.RenderModule(t, images, texts, theme)
}
