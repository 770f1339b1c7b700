package exporter

import (
	"archive/zip"
	"bytes"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
)

// buildArchive zips assets in the given order. Entries carry modTime so two
// archives of the same assets differ only where the assets do.
func buildArchive(assets []Asset, modTime time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	for _, a := range assets {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     a.Name,
			Method:   zip.Deflate,
			Modified: modTime,
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(a.Data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
