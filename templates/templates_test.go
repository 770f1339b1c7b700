package templates

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xalatechnologies/aplus/registry"
)

func TestBuiltinCatalogueIsValid(t *testing.T) {
	for _, tpl := range Default().All() {
		assert.Empty(t, tpl.Validate(), "template %s", tpl.ID)
	}
}

func TestEverySpecHasThreeVariants(t *testing.T) {
	for _, s := range registry.All() {
		ts := ForSpec(s.ID)
		require.GreaterOrEqual(t, len(ts), 3, "spec %s", s.ID)

		variants := map[string]bool{}
		for _, tpl := range ts {
			assert.Equal(t, s.ID, tpl.SpecID)
			assert.Equal(t, s.Width, tpl.Width, "template %s", tpl.ID)
			assert.Equal(t, s.Height, tpl.Height, "template %s", tpl.ID)
			variants[tpl.Variant] = true
		}
		assert.Len(t, variants, len(ts), "spec %s has duplicate variants", s.ID)
	}
}

func TestTemplatesMatchSpecSlots(t *testing.T) {
	for _, s := range registry.All() {
		for _, tpl := range ForSpec(s.ID) {
			assert.Len(t, tpl.ImageSlots(), s.Images.Max, "template %s", tpl.ID)
			assert.Len(t, tpl.TextSlots(), len(s.Text), "template %s", tpl.ID)
			for _, slot := range tpl.TextSlots() {
				b, ok := s.Bound(slot.Role)
				require.True(t, ok, "template %s slot %s", tpl.ID, slot.ID)
				assert.Equal(t, b.Required, slot.Required)
			}
		}
	}
}

func TestDefaultID(t *testing.T) {
	assert.Equal(t, "standard-single-image-sidebar-classic", DefaultID("standard-single-image-sidebar"))
	assert.Equal(t, "standard-header-image-text-stacked", DefaultID("standard-header-image-text"))
	assert.Equal(t, "premium-full-image-panel-left", DefaultID("premium-full-image"))
	assert.Empty(t, DefaultID("no-such-spec"))
}

func TestLookupUnknown(t *testing.T) {
	tpl, ok := Lookup("does-not-exist")
	assert.False(t, ok)
	assert.Empty(t, tpl.ID)

	_, ok = Pick("does-not-exist")
	assert.False(t, ok)
}

func TestLookupReturnsCopy(t *testing.T) {
	tpl, ok := Lookup("standard-single-image-sidebar-classic")
	require.True(t, ok)
	tpl.Slots[0].Rect.X = 999

	again, _ := Lookup("standard-single-image-sidebar-classic")
	assert.NotEqual(t, 999, again.Slots[0].Rect.X)
}

func TestPickWithIsReproducible(t *testing.T) {
	spec := "standard-four-images-text"
	a, ok := Default().PickWith(spec, rand.New(rand.NewPCG(1, 2)))
	require.True(t, ok)
	b, _ := Default().PickWith(spec, rand.New(rand.NewPCG(1, 2)))
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, spec, a.SpecID)
}

func TestPickCoversVariants(t *testing.T) {
	seen := map[string]bool{}
	r := rand.New(rand.NewPCG(7, 7))
	for range 200 {
		tpl, _ := Default().PickWith("standard-three-images-text", r)
		seen[tpl.ID] = true
	}
	assert.Len(t, seen, 3)
}

func TestMirroredVariant(t *testing.T) {
	classic, _ := Lookup("standard-single-image-highlights-classic")
	mirror, _ := Lookup("standard-single-image-highlights-mirrored")
	require.Len(t, mirror.Slots, len(classic.Slots))
	for i := range classic.Slots {
		c, m := classic.Slots[i].Rect, mirror.Slots[i].Rect
		assert.Equal(t, classic.Width-c.X-c.W, m.X, "slot %s", classic.Slots[i].ID)
		assert.Equal(t, c.Y, m.Y)
	}
}

func TestOverlayImageDeclaredFirst(t *testing.T) {
	for _, tpl := range ForSpec("standard-image-text-overlay") {
		require.NotEmpty(t, tpl.Slots)
		first := tpl.Slots[0]
		assert.Equal(t, KindImage, first.Kind)
		assert.Equal(t, Rect{X: 0, Y: 0, W: tpl.Width, H: tpl.Height}, first.Rect)
	}
}

func TestApplyTheme(t *testing.T) {
	tpl, _ := Lookup("standard-tech-specs-classic")
	orig := tpl.Palette

	themed := ApplyTheme(tpl, &Theme{Primary: "#FF0000", Background: "#000000"})
	assert.Equal(t, "#FF0000", themed.Palette.Primary)
	assert.Equal(t, orig.Secondary, themed.Palette.Secondary)
	assert.Equal(t, orig.Accent, themed.Palette.Accent)
	assert.Equal(t, orig.FontFamily, themed.Palette.FontFamily)
	assert.Equal(t, "#000000", themed.Background)

	assert.Equal(t, orig, tpl.Palette, "input template must not change")
	assert.Equal(t, "#FFFFFF", tpl.Background)

	themed.Slots[0].Default = "changed"
	assert.NotEqual(t, "changed", tpl.Slots[0].Default)

	assert.Equal(t, tpl, ApplyTheme(tpl, nil))
}

func TestTextColor(t *testing.T) {
	tpl := Template{Palette: Palette{Primary: "#111111", Secondary: "#222222", Accent: "#333333"}}
	assert.Equal(t, "#111111", tpl.TextColor(Slot{Style: Style{Tone: TonePrimary}}))
	assert.Equal(t, "#222222", tpl.TextColor(Slot{Style: Style{Tone: ToneSecondary}}))
	assert.Equal(t, "#333333", tpl.TextColor(Slot{Style: Style{Tone: ToneAccent}}))
	assert.Equal(t, "#ABCDEF", tpl.TextColor(Slot{Style: Style{Tone: ToneAccent, Color: "#ABCDEF"}}))
}

func TestValidateReportsOutOfBounds(t *testing.T) {
	tpl := Template{
		ID:     "broken",
		Width:  100,
		Height: 100,
		Slots: []Slot{
			{ID: "a", Kind: KindImage, Rect: Rect{X: 50, Y: 50, W: 80, H: 10}},
			{ID: "a", Kind: KindText, Rect: Rect{W: 10, H: 10}},
			{ID: "b", Kind: KindImage},
		},
	}
	problems := tpl.Validate()
	assert.Len(t, problems, 4)
}

const catalogue = `
template "brand-header" {
  spec       = "standard-header-image-text"
  variant    = "brand"
  width      = 970
  height     = 900
  background = "#FAFAFA"

  palette {
    primary = "#111111"
  }

  slot "image-1" {
    kind     = "image"
    x        = 0
    y        = 0
    w        = 970
    h        = 600
    required = true
  }

  slot "headline" {
    kind      = "text"
    role      = "headline"
    x         = 32
    y         = 632
    w         = 906
    h         = 90
    font_size = 36
    weight    = "bold"
    align     = "center"
  }
}
`

func TestDecodeHCL(t *testing.T) {
	ts, err := DecodeHCL("brand.hcl", []byte(catalogue))
	require.NoError(t, err)
	require.Len(t, ts, 1)

	tpl := ts[0]
	assert.Equal(t, "brand-header", tpl.ID)
	assert.Equal(t, "brand", tpl.Variant)
	assert.Equal(t, "#FAFAFA", tpl.Background)
	assert.Equal(t, "#111111", tpl.Palette.Primary)
	assert.Equal(t, standardPalette.Accent, tpl.Palette.Accent)
	require.Len(t, tpl.Slots, 2)
	assert.Equal(t, KindImage, tpl.Slots[0].Kind)
	assert.Equal(t, registry.RoleHeadline, tpl.Slots[1].Role)
	assert.Equal(t, AlignCenter, tpl.Slots[1].Style.Align)
	assert.Equal(t, TonePrimary, tpl.Slots[1].Style.Tone)
	assert.Empty(t, tpl.Validate())

	lib, err := NewLibrary(ts...)
	require.NoError(t, err)
	assert.Equal(t, Default().Len()+1, lib.Len())
	got, ok := lib.Lookup("brand-header")
	require.True(t, ok)
	assert.Equal(t, tpl, got)
	assert.Equal(t, "brand-header", lib.ForSpec("standard-header-image-text")[3].ID)
}

func TestDecodeHCLErrors(t *testing.T) {
	_, err := DecodeHCL("bad.hcl", []byte(`template "x" {
  spec   = "nope"
  width  = 1
  height = 1
}`))
	assert.ErrorContains(t, err, "unknown spec")

	_, err = DecodeHCL("bad.hcl", []byte(`template "x" {`))
	assert.Error(t, err)

	_, err = DecodeHCL("bad.hcl", []byte(`template "x" {
  spec   = "standard-tech-specs"
  width  = 10
  height = 10
  slot "s" {
    kind = "text"
    role = "tagline"
    x = 0
    y = 0
    w = 1
    h = 1
  }
}`))
	assert.ErrorContains(t, err, "unknown role")
}

func TestNewLibraryRejectsDuplicates(t *testing.T) {
	tpl, _ := Lookup("standard-tech-specs-classic")
	_, err := NewLibrary(tpl)
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewLibrary(Template{ID: "x", SpecID: "nope"})
	assert.ErrorContains(t, err, "unknown spec")
}

func TestLoadHCLDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "brand.hcl"), []byte(catalogue), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	ts, err := LoadHCL(dir)
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, "brand-header", ts[0].ID)

	_, err = LoadHCL(filepath.Join(dir, "missing.hcl"))
	assert.Error(t, err)
}
