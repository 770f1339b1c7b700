package aplus

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/xalatechnologies/aplus/compositor"
	"github.com/xalatechnologies/aplus/storage"
)

// processImage decodes an uploaded image of at most compositor.MaxPixels,
// scales it down to maxWidth when it is wider, and re-encodes it. Opaque
// images become JPEG; images with transparency stay PNG so cut-outs keep
// their alpha.
func processImage(src io.Reader, originalName string, maxWidth int) (ImageResponse, []byte, compositor.Format, error) {
	raw, err := io.ReadAll(src)
	if err != nil {
		return ImageResponse{}, nil, "", fmt.Errorf("read image: %w", err)
	}
	if err := compositor.CheckImage(raw); err != nil {
		return ImageResponse{}, nil, "", err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return ImageResponse{}, nil, "", fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if maxWidth > 0 && w > maxWidth {
		newH := h * maxWidth / w
		dst := image.NewNRGBA(image.Rect(0, 0, maxWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
		img = dst
		w = maxWidth
		h = newH
	}

	format := compositor.JPEG
	if !opaque(img) {
		format = compositor.PNG
	}
	var buf bytes.Buffer
	if err := compositor.Encode(&buf, img, format); err != nil {
		return ImageResponse{}, nil, "", fmt.Errorf("encode %s: %w", format, err)
	}

	base := Slugify(strings.TrimSuffix(originalName, filepath.Ext(originalName)))
	if base == "" {
		base = "image"
	}
	filename := base + "-" + uuid.NewString()[:8] + "." + format.Ext()

	return ImageResponse{
		Filename:     filename,
		OriginalName: originalName,
		Width:        w,
		Height:       h,
		Size:         buf.Len(),
	}, buf.Bytes(), format, nil
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return true
}

// storeUpload reads the "image" form file, processes it and stores it in
// the upload bucket under the owner's prefix.
func (a *App) storeUpload(c echo.Context) (ImageResponse, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return ImageResponse{}, echo.NewHTTPError(http.StatusBadRequest, "no image file provided")
	}
	if file.Size > a.Config.MaxUploadBytes {
		return ImageResponse{}, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}

	src, err := file.Open()
	if err != nil {
		return ImageResponse{}, err
	}
	defer src.Close()

	img, data, format, err := processImage(src, file.Filename, a.Config.MaxSourceWidth)
	if err != nil {
		return ImageResponse{}, echo.NewHTTPError(http.StatusBadRequest, "invalid image: "+err.Error())
	}

	loc, err := a.Objects.Put(c.Request().Context(), a.Config.UploadBucket, ownerPrefix(ownerOf(c))+"/"+img.Filename, data, format.ContentType())
	if err != nil {
		return ImageResponse{}, fmt.Errorf("store image: %w", err)
	}
	img.Locator = loc
	a.Logger.Info("image uploaded", "owner", ownerOf(c), "locator", loc, "bytes", img.Size)
	return img, nil
}

// ownerPrefix is the upload directory of an owner. The hash keeps owners
// whose names slugify alike apart.
func ownerPrefix(owner string) string {
	sum := sha256.Sum256([]byte(owner))
	slug := Slugify(owner)
	if slug == "" {
		slug = "owner"
	}
	return slug + "-" + hex.EncodeToString(sum[:6])
}

// sourceAllowed reports whether owner may use src as an image source. Remote
// URLs are always allowed; storage locators only within the owner's own
// uploads.
func (a *App) sourceAllowed(owner, src string) bool {
	bucket, p, ok := storage.ParseLocator(src)
	if !ok {
		return true
	}
	if owner == "" || bucket != a.Config.UploadBucket {
		return false
	}
	clean, err := storage.Clean(bucket, p)
	if err != nil {
		return false
	}
	return strings.HasPrefix(clean, ownerPrefix(owner)+"/")
}

func (a *App) handleImageUpload(c echo.Context) error {
	img, err := a.storeUpload(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, img)
}

// handleDocumentImageUpload stores an image and appends it to the
// document's source images.
func (a *App) handleDocumentImageUpload(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := a.Store.GetDocument(ctx, ownerOf(c), c.Param("id")); err != nil {
		return err
	}
	img, err := a.storeUpload(c)
	if err != nil {
		return err
	}
	if err := a.Store.AddSourceImage(ctx, ownerOf(c), c.Param("id"), img.Locator); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, img)
}
