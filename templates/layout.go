package templates

import (
	"math"
	"strconv"

	"github.com/xalatechnologies/aplus/registry"
)

const (
	margin = 32
	gap    = 16
)

var (
	standardPalette = Palette{Primary: "#1A1A2E", Secondary: "#3D3D4E", Accent: "#E94560", FontFamily: "Go"}
	premiumPalette  = Palette{Primary: "#0F172A", Secondary: "#334155", Accent: "#0EA5E9", FontFamily: "Go"}
	overlayPalette  = Palette{Primary: "#FFFFFF", Secondary: "#F1F5F9", Accent: "#FACC15", FontFamily: "Go"}
)

// staticText is the default text of static slots, keyed by spec.
var staticText = map[string]string{
	"standard-tech-specs": "Technical specifications",
	"premium-comparison":  "At a glance",
}

type layoutFunc func(s registry.Spec) []Slot

type variant struct {
	name   string
	layout layoutFunc
}

// variantsFor lists the visual variants generated for a spec. The first one
// is the spec's default template.
func variantsFor(s registry.Spec) []variant {
	switch {
	case s.Overlay:
		return []variant{
			{"panel-left", overlayPanel(AlignLeft)},
			{"panel-right", mirrored(overlayPanel(AlignLeft), true)},
			{"centered", overlayPanel(AlignCenter)},
		}
	case len(s.Text) == 0:
		return []variant{
			{"full", imageOnly(1)},
			{"left", imageOnly(0.6)},
			{"right", mirrored(imageOnly(0.6), false)},
		}
	case s.Images.Max > 0 && s.ImageSize.W >= s.Width:
		return []variant{
			{"stacked", stacked},
			{"classic", split},
			{"mirrored", mirrored(split, false)},
		}
	default:
		return []variant{
			{"classic", split},
			{"mirrored", mirrored(split, false)},
			{"stacked", stacked},
		}
	}
}

func build(s registry.Spec, v variant) Template {
	pal, bg := standardPalette, "#FFFFFF"
	switch {
	case s.Overlay:
		pal, bg = overlayPalette, "#111827"
	case s.Category == registry.Premium:
		pal, bg = premiumPalette, "#F8FAFC"
	}
	return Template{
		ID:         s.ID + "-" + v.name,
		SpecID:     s.ID,
		Variant:    v.name,
		Width:      s.Width,
		Height:     s.Height,
		Background: bg,
		Palette:    pal,
		Slots:      v.layout(s),
	}
}

func inner(s registry.Spec) Rect {
	return Rect{X: margin, Y: margin, W: s.Width - 2*margin, H: s.Height - 2*margin}
}

// split puts the images in a column on the left and the text on the right.
func split(s registry.Spec) []Slot {
	in := inner(s)
	n := s.Images.Max
	if n == 0 {
		return textColumn(s, Rect{X: in.X, Y: in.Y, W: in.W * 3 / 5, H: in.H}, AlignLeft)
	}
	cols, iw := 1, (in.W-gap)*2/5
	if n >= 3 {
		cols, iw = 2, (in.W-gap)/2
	}
	imgs := imageSlots(s, tile(Rect{X: in.X, Y: in.Y, W: iw, H: in.H}, n, cols))
	text := textColumn(s, Rect{X: in.X + iw + gap, Y: in.Y, W: in.W - iw - gap, H: in.H}, AlignLeft)
	return append(imgs, text...)
}

// stacked puts the images in a row on top and centred text below.
func stacked(s registry.Spec) []Slot {
	in := inner(s)
	n := s.Images.Max
	if n == 0 {
		return textColumn(s, in, AlignCenter)
	}
	if s.ImageSize.W >= s.Width {
		h := s.ImageSize.H
		imgs := imageSlots(s, []Rect{{X: 0, Y: 0, W: s.Width, H: h}})
		top := h + gap
		text := textColumn(s, Rect{X: in.X, Y: top, W: in.W, H: s.Height - margin - top}, AlignCenter)
		return append(imgs, text...)
	}
	ih := in.H * 11 / 20
	imgs := imageSlots(s, tile(Rect{X: in.X, Y: in.Y, W: in.W, H: ih}, n, n))
	text := textColumn(s, Rect{X: in.X, Y: in.Y + ih + gap, W: in.W, H: in.H - ih - gap}, AlignCenter)
	return append(imgs, text...)
}

// overlayPanel declares a full-bleed image first so the text panel paints
// over it.
func overlayPanel(align Align) layoutFunc {
	return func(s registry.Spec) []Slot {
		in := inner(s)
		full := imageSlots(s, []Rect{{X: 0, Y: 0, W: s.Width, H: s.Height}})
		panel := Rect{X: in.X, Y: in.Y, W: in.W * 9 / 20, H: in.H}
		if align == AlignCenter {
			w := in.W * 7 / 10
			panel = Rect{X: in.X + (in.W-w)/2, Y: in.Y, W: w, H: in.H}
		}
		return append(full, textColumn(s, panel, align)...)
	}
}

func imageOnly(frac float64) layoutFunc {
	return func(s registry.Spec) []Slot {
		in := inner(s)
		w := in.W
		if frac < 1 {
			w = int(float64(in.W) * frac)
		}
		return imageSlots(s, []Rect{{X: in.X, Y: in.Y, W: w, H: in.H}})
	}
}

// mirrored flips a layout horizontally. With flipAlign, left and right
// aligned text swap sides too.
func mirrored(f layoutFunc, flipAlign bool) layoutFunc {
	return func(s registry.Spec) []Slot {
		slots := f(s)
		for i := range slots {
			r := &slots[i].Rect
			r.X = s.Width - r.X - r.W
			if !flipAlign {
				continue
			}
			switch slots[i].Style.Align {
			case AlignLeft:
				slots[i].Style.Align = AlignRight
			case AlignRight:
				slots[i].Style.Align = AlignLeft
			}
		}
		return slots
	}
}

func tile(r Rect, n, cols int) []Rect {
	if n <= 0 {
		return nil
	}
	rows := (n + cols - 1) / cols
	w := (r.W - gap*(cols-1)) / cols
	h := (r.H - gap*(rows-1)) / rows
	out := make([]Rect, 0, n)
	for i := 0; i < n; i++ {
		c, row := i%cols, i/cols
		out = append(out, Rect{X: r.X + c*(w+gap), Y: r.Y + row*(h+gap), W: w, H: h})
	}
	return out
}

func imageSlots(s registry.Spec, rects []Rect) []Slot {
	out := make([]Slot, 0, len(rects))
	for i, r := range rects {
		out = append(out, Slot{
			ID:       imageSlotID(i),
			Kind:     KindImage,
			Rect:     r,
			Required: i < s.Images.Min,
		})
	}
	return out
}

func imageSlotID(i int) string {
	return "image-" + strconv.Itoa(i+1)
}

// textColumn stacks the spec's text roles top to bottom inside r. Headline
// and static slots get a fixed height; the rest share what is left.
func textColumn(s registry.Spec, r Rect, align Align) []Slot {
	premium := s.Category == registry.Premium
	heights := make([]int, len(s.Text))
	remaining := r.H - gap*(len(s.Text)-1)
	flex := 0
	for i, b := range s.Text {
		st := styleFor(b.Role, premium, align)
		switch b.Role {
		case registry.RoleHeadline:
			heights[i] = lineHeight(st.FontSize)*2 + 8
		case registry.RoleStatic:
			heights[i] = lineHeight(st.FontSize) + 8
		default:
			flex++
			continue
		}
		remaining -= heights[i]
	}
	if flex > 0 {
		each := max(remaining/flex, 1)
		for i := range heights {
			if heights[i] == 0 {
				heights[i] = each
			}
		}
	}

	slots := make([]Slot, 0, len(s.Text))
	y := r.Y
	for i, b := range s.Text {
		slot := Slot{
			ID:       textSlotID(b.Role),
			Kind:     KindText,
			Rect:     Rect{X: r.X, Y: y, W: r.W, H: heights[i]},
			Required: b.Required,
			Role:     b.Role,
			Style:    styleFor(b.Role, premium, align),
		}
		if b.Role == registry.RoleStatic {
			slot.Default = staticText[s.ID]
		}
		slots = append(slots, slot)
		y += heights[i] + gap
	}
	return slots
}

func textSlotID(r registry.Role) string {
	if r == registry.RoleStatic {
		return "caption"
	}
	return r.String()
}

func styleFor(r registry.Role, premium bool, align Align) Style {
	switch r {
	case registry.RoleHeadline:
		size := 34.0
		if premium {
			size = 40
		}
		return Style{FontSize: size, Weight: WeightBold, Tone: TonePrimary, Align: align}
	case registry.RoleSidebar:
		return Style{FontSize: 16, Weight: WeightMedium, Tone: ToneAccent, Align: align}
	case registry.RoleSpecifications:
		return Style{FontSize: 16, Weight: WeightRegular, Tone: ToneSecondary, Align: align}
	case registry.RoleStatic:
		return Style{FontSize: 14, Weight: WeightBold, Tone: ToneAccent, Align: align}
	default:
		return Style{FontSize: 18, Weight: WeightRegular, Tone: ToneSecondary, Align: align}
	}
}

func lineHeight(size float64) int {
	return int(math.Ceil(size * 1.2))
}
