// Package templates holds the concrete layouts that implement module specs.
//
// A Template is a fixed-size canvas with an ordered list of slots. Slots are
// drawn in declaration order, so a slot declared later paints over an
// earlier one where they overlap.
package templates

import (
	"fmt"
	"image"

	"github.com/xalatechnologies/aplus/registry"
)

// Kind tells image slots from text slots.
type Kind int

const (
	KindImage Kind = iota
	KindText
)

func (k Kind) String() string {
	if k == KindText {
		return "text"
	}
	return "image"
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes "image" or "text".
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "image":
		*k = KindImage
	case "text":
		*k = KindText
	default:
		return fmt.Errorf("unknown slot kind %q", b)
	}
	return nil
}

// Align is the horizontal alignment of a text block.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Weight is a font weight.
type Weight string

const (
	WeightRegular Weight = "regular"
	WeightMedium  Weight = "medium"
	WeightBold    Weight = "bold"
)

// Tone selects a palette colour for text that has no explicit colour.
type Tone string

const (
	TonePrimary   Tone = "primary"
	ToneSecondary Tone = "secondary"
	ToneAccent    Tone = "accent"
)

// Rect is a slot rectangle in canvas pixels.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Image returns r as an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Style is the text styling of a slot.
type Style struct {
	FontSize float64 `json:"font_size"`
	Weight   Weight  `json:"weight"`
	Tone     Tone    `json:"tone,omitempty"`
	// Color overrides Tone when set.
	Color string `json:"color,omitempty"`
	Align Align  `json:"align"`
}

// Slot is a named region of a template.
type Slot struct {
	ID       string        `json:"id"`
	Kind     Kind          `json:"kind"`
	Rect     Rect          `json:"rect"`
	Required bool          `json:"required"`
	Role     registry.Role `json:"role"`
	Style    Style         `json:"style"`
	Default  string        `json:"default,omitempty"`
}

// Palette is the default styling of a template.
type Palette struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Accent     string `json:"accent"`
	FontFamily string `json:"font_family"`
}

// Template is a concrete layout for one spec.
type Template struct {
	ID         string  `json:"id"`
	SpecID     string  `json:"spec_id"`
	Variant    string  `json:"variant"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Background string  `json:"background"`
	Palette    Palette `json:"palette"`
	Slots      []Slot  `json:"slots"`
}

// ImageSlots returns the image slots in declaration order.
func (t Template) ImageSlots() []Slot {
	return t.slotsOf(KindImage)
}

// TextSlots returns the text slots in declaration order.
func (t Template) TextSlots() []Slot {
	return t.slotsOf(KindText)
}

func (t Template) slotsOf(k Kind) []Slot {
	var out []Slot
	for _, s := range t.Slots {
		if s.Kind == k {
			out = append(out, s)
		}
	}
	return out
}

// TextColor resolves the hex colour used for a text slot.
func (t Template) TextColor(s Slot) string {
	if s.Style.Color != "" {
		return s.Style.Color
	}
	switch s.Style.Tone {
	case ToneSecondary:
		return t.Palette.Secondary
	case ToneAccent:
		return t.Palette.Accent
	default:
		return t.Palette.Primary
	}
}

// Validate reports slots that do not fit the canvas or are malformed.
// Problems are returned rather than enforced; rendering clips to the canvas.
func (t Template) Validate() []string {
	var out []string
	canvas := image.Rect(0, 0, t.Width, t.Height)
	seen := make(map[string]bool, len(t.Slots))
	if t.Width <= 0 || t.Height <= 0 {
		out = append(out, fmt.Sprintf("%s: canvas %dx%d is empty", t.ID, t.Width, t.Height))
	}
	for _, s := range t.Slots {
		if seen[s.ID] {
			out = append(out, fmt.Sprintf("%s: duplicate slot %q", t.ID, s.ID))
		}
		seen[s.ID] = true
		if s.Rect.W <= 0 || s.Rect.H <= 0 {
			out = append(out, fmt.Sprintf("%s: slot %q has an empty rectangle", t.ID, s.ID))
			continue
		}
		if !s.Rect.Image().In(canvas) {
			out = append(out, fmt.Sprintf("%s: slot %q extends outside the %dx%d canvas", t.ID, s.ID, t.Width, t.Height))
		}
		if s.Kind == KindText && s.Style.FontSize <= 0 {
			out = append(out, fmt.Sprintf("%s: text slot %q has no font size", t.ID, s.ID))
		}
	}
	return out
}

func (t Template) clone() Template {
	t.Slots = append([]Slot(nil), t.Slots...)
	return t
}

// Theme is a brand-level override of a template's palette. Empty fields keep
// the template's own value.
type Theme struct {
	Primary    string `json:"primary,omitempty"`
	Secondary  string `json:"secondary,omitempty"`
	Accent     string `json:"accent,omitempty"`
	FontFamily string `json:"font_family,omitempty"`
	Background string `json:"background,omitempty"`
}

// IsZero reports whether the theme overrides nothing.
func (th *Theme) IsZero() bool {
	return th == nil || *th == (Theme{})
}

// ApplyTheme returns a copy of t with the theme's non-empty fields applied.
// The input template is not modified.
func ApplyTheme(t Template, th *Theme) Template {
	out := t.clone()
	if th.IsZero() {
		return out
	}
	if th.Primary != "" {
		out.Palette.Primary = th.Primary
	}
	if th.Secondary != "" {
		out.Palette.Secondary = th.Secondary
	}
	if th.Accent != "" {
		out.Palette.Accent = th.Accent
	}
	if th.FontFamily != "" {
		out.Palette.FontFamily = th.FontFamily
	}
	if th.Background != "" {
		out.Background = th.Background
	}
	return out
}
