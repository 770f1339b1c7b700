package compositor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrDecodeImage is returned for image bytes in an unknown or corrupt format,
// or for images larger than MaxPixels.
var ErrDecodeImage = errors.New("decode image")

// MaxPixels bounds the declared width×height of any decoded image.
const MaxPixels = 40_000_000

func decodeImage(b []byte) (image.Image, error) {
	if err := CheckImage(b); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeImage, err)
	}
	return img, nil
}

// CheckImage reports whether b holds an image the compositor can decode
// within MaxPixels. It reads only the header.
func CheckImage(b []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: empty %dx%d image", ErrDecodeImage, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecodeImage, cfg.Width, cfg.Height, MaxPixels)
	}
	return nil
}

// fitRect returns the largest rectangle with the aspect ratio of a size that
// fits inside r, centred in r.
func fitRect(size image.Point, r image.Rectangle) image.Rectangle {
	if size.X <= 0 || size.Y <= 0 || r.Empty() {
		return image.Rectangle{}
	}
	w, h := r.Dx(), size.Y*r.Dx()/size.X
	if h > r.Dy() {
		w, h = size.X*r.Dy()/size.Y, r.Dy()
	}
	w, h = max(w, 1), max(h, 1)
	x := r.Min.X + (r.Dx()-w)/2
	y := r.Min.Y + (r.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// drawFitted scales src to fit r without cropping. The uncovered part of r is
// left as it was.
func drawFitted(dst draw.Image, r image.Rectangle, src image.Image) {
	target := fitRect(src.Bounds().Size(), r)
	if target.Empty() {
		return
	}
	draw.CatmullRom.Scale(dst, target, src, src.Bounds(), draw.Over, nil)
}
