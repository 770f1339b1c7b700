package templates

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/xalatechnologies/aplus/registry"
)

// hclCatalogue is the top-level structure of a template catalogue file:
//
//	template "brand-header" {
//	  spec       = "standard-header-image-text"
//	  variant    = "brand"
//	  width      = 970
//	  height     = 900
//	  background = "#FAFAFA"
//
//	  palette {
//	    primary = "#111111"
//	  }
//
//	  slot "image-1" {
//	    kind = "image"
//	    x = 0
//	    y = 0
//	    w = 970
//	    h = 600
//	    required = true
//	  }
//	}
type hclCatalogue struct {
	Templates []*hclTemplate `hcl:"template,block"`
}

type hclTemplate struct {
	ID         string      `hcl:"id,label"`
	Spec       string      `hcl:"spec"`
	Variant    string      `hcl:"variant,optional"`
	Width      int         `hcl:"width"`
	Height     int         `hcl:"height"`
	Background string      `hcl:"background,optional"`
	Palette    *hclPalette `hcl:"palette,block"`
	Slots      []*hclSlot  `hcl:"slot,block"`
}

type hclPalette struct {
	Primary    string `hcl:"primary,optional"`
	Secondary  string `hcl:"secondary,optional"`
	Accent     string `hcl:"accent,optional"`
	FontFamily string `hcl:"font_family,optional"`
}

type hclSlot struct {
	ID       string  `hcl:"id,label"`
	Kind     string  `hcl:"kind"`
	X        int     `hcl:"x"`
	Y        int     `hcl:"y"`
	W        int     `hcl:"w"`
	H        int     `hcl:"h"`
	Required bool    `hcl:"required,optional"`
	Role     string  `hcl:"role,optional"`
	FontSize float64 `hcl:"font_size,optional"`
	Weight   string  `hcl:"weight,optional"`
	Tone     string  `hcl:"tone,optional"`
	Color    string  `hcl:"color,optional"`
	Align    string  `hcl:"align,optional"`
	Default  string  `hcl:"default,optional"`
}

// LoadHCL reads templates from an .hcl file, or from every .hcl file in a
// directory in lexical order.
func LoadHCL(path string) ([]Template, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.hcl"))
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
	}

	parser := hclparse.NewParser()
	var out []Template
	for _, f := range files {
		hclFile, diags := parser.ParseHCLFile(f)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parse template catalogue %s: %w", f, diags)
		}
		ts, err := decodeBody(f, hclFile.Body)
		if err != nil {
			return nil, err
		}
		out = append(out, ts...)
	}
	return out, nil
}

// DecodeHCL decodes templates from catalogue source. filename is used in
// diagnostics only.
func DecodeHCL(filename string, src []byte) ([]Template, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse template catalogue %s: %w", filename, diags)
	}
	return decodeBody(filename, hclFile.Body)
}

func decodeBody(filename string, body hcl.Body) ([]Template, error) {
	var parsed hclCatalogue
	if diags := gohcl.DecodeBody(body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("decode template catalogue %s: %w", filename, diags)
	}
	out := make([]Template, 0, len(parsed.Templates))
	for _, ht := range parsed.Templates {
		t, err := ht.template()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (ht *hclTemplate) template() (Template, error) {
	spec, ok := registry.Lookup(ht.Spec)
	if !ok {
		return Template{}, fmt.Errorf("template %q: unknown spec %q", ht.ID, ht.Spec)
	}
	pal := standardPalette
	if spec.Category == registry.Premium {
		pal = premiumPalette
	}
	if p := ht.Palette; p != nil {
		pal = Palette{
			Primary:    or(p.Primary, pal.Primary),
			Secondary:  or(p.Secondary, pal.Secondary),
			Accent:     or(p.Accent, pal.Accent),
			FontFamily: or(p.FontFamily, pal.FontFamily),
		}
	}
	t := Template{
		ID:         ht.ID,
		SpecID:     ht.Spec,
		Variant:    or(ht.Variant, ht.ID),
		Width:      ht.Width,
		Height:     ht.Height,
		Background: or(ht.Background, "#FFFFFF"),
		Palette:    pal,
	}
	for _, hs := range ht.Slots {
		s, err := hs.slot()
		if err != nil {
			return Template{}, fmt.Errorf("template %q: %w", ht.ID, err)
		}
		t.Slots = append(t.Slots, s)
	}
	return t, nil
}

func (hs *hclSlot) slot() (Slot, error) {
	s := Slot{
		ID:       hs.ID,
		Rect:     Rect{X: hs.X, Y: hs.Y, W: hs.W, H: hs.H},
		Required: hs.Required,
		Default:  hs.Default,
	}
	if err := s.Kind.UnmarshalText([]byte(strings.ToLower(hs.Kind))); err != nil {
		return Slot{}, fmt.Errorf("slot %q: %w", hs.ID, err)
	}
	if s.Kind == KindImage {
		return s, nil
	}
	if hs.Role != "" {
		r, ok := registry.ParseRole(hs.Role)
		if !ok {
			return Slot{}, fmt.Errorf("slot %q: unknown role %q", hs.ID, hs.Role)
		}
		s.Role = r
	}
	s.Style = Style{
		FontSize: hs.FontSize,
		Weight:   Weight(or(hs.Weight, string(WeightRegular))),
		Tone:     Tone(or(hs.Tone, string(TonePrimary))),
		Color:    hs.Color,
		Align:    Align(or(hs.Align, string(AlignLeft))),
	}
	if s.Style.FontSize == 0 {
		s.Style.FontSize = 18
	}
	return s, nil
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
