package compositor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/draw"
)

// Format is an output raster format.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

// JPEGQuality is the fixed quality of lossy output.
const JPEGQuality = 85

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat accepts png, jpeg and their aliases. An empty string is PNG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png", "lossless":
		return PNG, nil
	case "jpeg", "jpg", "lossy":
		return JPEG, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownFormat, s)
	}
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string {
	if f == JPEG {
		return "jpg"
	}
	return "png"
}

// ContentType returns the MIME type.
func (f Format) ContentType() string {
	if f == JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Encode writes img in format f. JPEG output is flattened onto white.
func Encode(w io.Writer, img image.Image, f Format) error {
	if f != JPEG {
		return png.Encode(w, img)
	}
	flat := image.NewRGBA(img.Bounds())
	draw.Draw(flat, flat.Bounds(), image.NewUniform(white), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, img.Bounds().Min, draw.Over)
	return jpeg.Encode(w, flat, &jpeg.Options{Quality: JPEGQuality})
}

// Convert re-encodes PNG bytes in format f. PNG input is returned unchanged
// when f is PNG.
func Convert(src []byte, f Format) ([]byte, error) {
	if f != JPEG {
		return src, nil
	}
	img, err := png.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeImage, err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, img, f); err != nil {
		return nil, fmt.Errorf("encode %s: %w", f, err)
	}
	return buf.Bytes(), nil
}
