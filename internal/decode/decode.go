// Package decode extracts QR symbols from rasters via gozxing. Both
// backends end up here: the worker process calls it for decode requests
// and the default in-process detector wraps it. From the orchestrator's
// point of view it stays an opaque capability.
package decode

import (
	"image"
	"log/slog"
	"sync"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Inversion modes controlling whether decoding also tries the
// color-inverted raster (light-on-dark QR codes).
const (
	InversionOriginal = "original"
	InversionInvert   = "invert"
	InversionBoth     = "both"
)

// Symbol is one decoded QR code.
type Symbol struct {
	Text   string
	Points []image.Point
}

// Decoder decodes QR symbols from images. Safe for concurrent use; the
// underlying gozxing reader is stateful and is serialized internally.
type Decoder struct {
	mu        sync.Mutex
	reader    gozxing.Reader
	inversion string
}

// New returns a decoder with inversion disabled.
func New() *Decoder {
	return &Decoder{
		reader:    qrcode.NewQRCodeReader(),
		inversion: InversionOriginal,
	}
}

// SetInversionMode selects which rasters decode attempts run against.
// Unknown modes fall back to InversionOriginal.
func (d *Decoder) SetInversionMode(mode string) {
	switch mode {
	case InversionOriginal, InversionInvert, InversionBoth:
	default:
		slog.Warn("Unknown inversion mode, using original", "mode", mode)
		mode = InversionOriginal
	}
	d.mu.Lock()
	d.inversion = mode
	d.mu.Unlock()
}

// InversionMode returns the currently configured inversion mode.
func (d *Decoder) InversionMode() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inversion
}

// Decode returns the text of the first QR symbol found in img, or false
// when no symbol is present.
func (d *Decoder) Decode(img image.Image) (string, bool) {
	sym, ok := d.DecodeSymbol(img)
	if !ok {
		return "", false
	}
	return sym.Text, true
}

// DecodeSymbol decodes the first QR symbol of img including its corner
// points. The inversion mode decides which rasters are attempted.
func (d *Decoder) DecodeSymbol(img image.Image) (*Symbol, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	source := gozxing.NewLuminanceSourceFromImage(img)
	var attempts []gozxing.LuminanceSource
	switch d.inversion {
	case InversionInvert:
		attempts = []gozxing.LuminanceSource{source.Invert()}
	case InversionBoth:
		attempts = []gozxing.LuminanceSource{source, source.Invert()}
	default:
		attempts = []gozxing.LuminanceSource{source}
	}

	for _, src := range attempts {
		if sym, ok := d.decodeOnce(src); ok {
			return sym, true
		}
	}
	return nil, false
}

func (d *Decoder) decodeOnce(src gozxing.LuminanceSource) (*Symbol, bool) {
	bmp, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(src))
	if err != nil {
		return nil, false
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	d.reader.Reset()
	result, err := d.reader.Decode(bmp, hints)
	if err != nil || result == nil {
		return nil, false
	}

	sym := &Symbol{Text: result.GetText()}
	for _, p := range result.GetResultPoints() {
		sym.Points = append(sym.Points, image.Pt(int(p.GetX()), int(p.GetY())))
	}
	return sym, true
}
