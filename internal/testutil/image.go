// Package testutil generates image fixtures for scanner tests,
// including real decodable QR codes.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/require"
)

// EncodeQR renders text as a QR code raster of the given edge length.
func EncodeQR(t *testing.T, text string, size int) image.Image {
	t.Helper()

	writer := qrcode.NewQRCodeWriter()
	matrix, err := writer.Encode(text, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	require.NoError(t, err, "encode QR fixture")

	img := image.NewGray(image.Rect(0, 0, matrix.GetWidth(), matrix.GetHeight()))
	for y := 0; y < matrix.GetHeight(); y++ {
		for x := 0; x < matrix.GetWidth(); x++ {
			if matrix.Get(x, y) {
				img.SetGray(x, y, color.Gray{Y: 0})
			} else {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

// EncodeQRPNG returns a PNG-encoded QR code fixture.
func EncodeQRPNG(t *testing.T, text string, size int) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, EncodeQR(t, text, size)))
	return buf.Bytes()
}

// EmbedQR pastes a QR code fixture into a larger white canvas at the
// given offset, for region-scan tests.
func EmbedQR(t *testing.T, text string, qrSize, width, height, offsetX, offsetY int) image.Image {
	t.Helper()

	background := imaging.New(width, height, color.White)
	return imaging.Paste(background, imaging.Clone(EncodeQR(t, text, qrSize)), image.Pt(offsetX, offsetY))
}

// InvertedQR returns a color-inverted QR code fixture (light modules on
// dark), which only decodes when inversion is attempted.
func InvertedQR(t *testing.T, text string, size int) image.Image {
	t.Helper()

	return imaging.Invert(EncodeQR(t, text, size))
}

// BlankImage returns a uniform image containing no QR code.
func BlankImage(width, height int) image.Image {
	return imaging.New(width, height, color.White)
}

// Checkerboard returns an alternating two-color raster, used to verify
// nearest-neighbor projection keeps hard edges.
func Checkerboard(width, height, cell int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if ((x/cell)+(y/cell))%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}
