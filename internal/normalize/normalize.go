// Package normalize resolves the accepted scan input forms into a single
// decoded image ready for projection.
//
// Already-decoded inputs (image.Image, *canvas.Surface) are borrowed and
// pass through unchanged. Encoded inputs (bytes, readers, files, paths,
// URLs) are loaded here; every resource acquired for them (open files,
// response bodies) is released before returning, success or failure.
package normalize

import (
	"bytes"
	"context"
	"image"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/qrscan-dev/qrscan/internal/canvas"
	"github.com/qrscan-dev/qrscan/internal/scanerr"
)

// fetchTimeout bounds URL input loads.
const fetchTimeout = 30 * time.Second

var httpClient = &http.Client{Timeout: fetchTimeout}

// Image resolves input into an image.Image.
//
// Accepted shapes: image.Image, *canvas.Surface, []byte, io.Reader
// (including *os.File), and string (filesystem path or http(s) URL).
// Anything else fails with scanerr.ErrUnsupportedImageType; load and
// decode failures fail with scanerr.ErrImageLoad.
func Image(ctx context.Context, input any) (image.Image, error) {
	switch v := input.(type) {
	case image.Image:
		return v, nil
	case *canvas.Surface:
		if v == nil || v.Image() == nil {
			return nil, scanerr.ErrUnsupportedImageType
		}
		return v.Image(), nil
	case []byte:
		return decode(bytes.NewReader(v))
	case io.Reader:
		return decode(v)
	case string:
		if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			return fetchURL(ctx, v)
		}
		return loadFile(v)
	default:
		return nil, scanerr.ErrUnsupportedImageType
	}
}

// decode decodes encoded image bytes. The result is cloned into a
// uniform NRGBA representation so downstream projection never depends on
// the source pixel format.
func decode(r io.Reader) (image.Image, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		slog.Debug("Image decode failed", "error", err)
		return nil, scanerr.ErrImageLoad
	}
	slog.Debug("Image decoded", "format", format,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return imaging.Clone(img), nil
}

func loadFile(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // G304: reading a caller-provided image path is the point
	if err != nil {
		slog.Debug("Image file open failed", "path", path, "error", err)
		return nil, scanerr.ErrImageLoad
	}
	defer func() { _ = f.Close() }()
	return decode(f)
}

func fetchURL(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, scanerr.ErrImageLoad
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		slog.Debug("Image fetch failed", "url", url, "error", err)
		return nil, scanerr.ErrImageLoad
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		slog.Debug("Image fetch returned non-OK status", "url", url, "status", resp.StatusCode)
		return nil, scanerr.ErrImageLoad
	}
	return decode(resp.Body)
}
