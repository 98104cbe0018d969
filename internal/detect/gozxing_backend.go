//go:build !qrscan_nonative

package detect

import (
	"image"

	"github.com/qrscan-dev/qrscan/internal/decode"
)

// newBackend returns the gozxing-backed detector in the default build.
func newBackend() (Detector, error) {
	return &gozxingDetector{dec: decode.New()}, nil
}

type gozxingDetector struct {
	dec *decode.Decoder
}

func (d *gozxingDetector) SupportedFormats() ([]string, error) {
	return []string{FormatQR}, nil
}

func (d *gozxingDetector) Detect(img image.Image) ([]Detection, error) {
	sym, ok := d.dec.DecodeSymbol(img)
	if !ok {
		return nil, nil
	}
	return []Detection{{RawValue: sym.Text, CornerPoints: sym.Points}}, nil
}

// SetInversionMode forwards the inversion mode to the decoder.
func (d *gozxingDetector) SetInversionMode(mode string) {
	d.dec.SetInversionMode(mode)
}

func (d *gozxingDetector) Close() error { return nil }
