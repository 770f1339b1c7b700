package compositor

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/xalatechnologies/aplus/templates"
)

type fontKey struct {
	mono   bool
	weight templates.Weight
}

var parsed = sync.OnceValues(func() (map[fontKey]*opentype.Font, error) {
	srcs := map[fontKey][]byte{
		{false, templates.WeightRegular}: goregular.TTF,
		{false, templates.WeightMedium}:  gomedium.TTF,
		{false, templates.WeightBold}:    gobold.TTF,
		{true, templates.WeightRegular}:  gomono.TTF,
		{true, templates.WeightMedium}:   gomono.TTF,
		{true, templates.WeightBold}:     gomonobold.TTF,
	}
	out := make(map[fontKey]*opentype.Font, len(srcs))
	for k, src := range srcs {
		f, err := opentype.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse font: %w", err)
		}
		out[k] = f
	}
	return out, nil
})

// isMono reports whether a font family maps to the monospaced face. Every
// other family renders with the proportional Go font.
func isMono(family string) bool {
	f := strings.ToLower(family)
	return strings.Contains(f, "mono") || strings.Contains(f, "courier")
}

type faceKey struct {
	fontKey
	size float64
}

// faces hands out font faces for one render. Faces are not safe for
// concurrent use, so each render owns its set and closes it when done.
type faces struct {
	m map[faceKey]font.Face
}

func newFaces() *faces {
	return &faces{m: make(map[faceKey]font.Face)}
}

func (fs *faces) get(family string, w templates.Weight, size float64) (font.Face, error) {
	if w != templates.WeightMedium && w != templates.WeightBold {
		w = templates.WeightRegular
	}
	k := faceKey{fontKey{isMono(family), w}, size}
	if f, ok := fs.m[k]; ok {
		return f, nil
	}
	fonts, err := parsed()
	if err != nil {
		return nil, err
	}
	f, err := opentype.NewFace(fonts[k.fontKey], &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("new face: %w", err)
	}
	fs.m[k] = f
	return f, nil
}

func (fs *faces) close() {
	for _, f := range fs.m {
		f.Close()
	}
}
