package normalize

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrscan-dev/qrscan/internal/canvas"
	"github.com/qrscan-dev/qrscan/internal/scanerr"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImagePassThrough(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))

	got, err := Image(context.Background(), src)
	require.NoError(t, err)
	assert.Same(t, image.Image(src), got, "decoded inputs are borrowed, not copied")
}

func TestSurfacePassThrough(t *testing.T) {
	surface := canvas.NewSurface(4, 4)

	got, err := Image(context.Background(), surface)
	require.NoError(t, err)
	assert.Same(t, image.Image(surface.Image()), got)
}

func TestEmptySurfaceRejected(t *testing.T) {
	_, err := Image(context.Background(), canvas.NewSurface(0, 0))
	assert.ErrorIs(t, err, scanerr.ErrUnsupportedImageType)
}

func TestBytesDecoded(t *testing.T) {
	got, err := Image(context.Background(), pngBytes(t))
	require.NoError(t, err)
	assert.Equal(t, 4, got.Bounds().Dx())
}

func TestReaderDecoded(t *testing.T) {
	got, err := Image(context.Background(), bytes.NewReader(pngBytes(t)))
	require.NoError(t, err)
	assert.Equal(t, 4, got.Bounds().Dx())
}

func TestFilePathDecoded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t), 0o600))

	got, err := Image(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Bounds().Dx())
}

func TestURLFetched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(pngBytes(t))
	}))
	defer srv.Close()

	got, err := Image(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Bounds().Dx())
}

func TestLoadFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tests := []struct {
		name  string
		input any
	}{
		{name: "corrupt bytes", input: []byte("not an image")},
		{name: "missing file", input: filepath.Join(t.TempDir(), "missing.png")},
		{name: "http error status", input: srv.URL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Image(context.Background(), tt.input)
			require.ErrorIs(t, err, scanerr.ErrImageLoad)
			assert.Equal(t, "Image load error", err.Error())
		})
	}
}

func TestUnsupportedInputs(t *testing.T) {
	for _, input := range []any{nil, 42, struct{}{}, []int{1}} {
		_, err := Image(context.Background(), input)
		require.ErrorIs(t, err, scanerr.ErrUnsupportedImageType)
		assert.Equal(t, "Unsupported image type.", err.Error())
	}
}
