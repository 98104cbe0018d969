// Package wire implements the correlation-id request/response protocol
// spoken with the out-of-process decode worker over a websocket channel.
package wire

import (
	"encoding/json"
	"image"
	"sync/atomic"
)

// Message types understood by the worker.
const (
	TypeDecode        = "decode"
	TypeInversionMode = "inversionMode"
	TypeClose         = "close"
)

// Message is the envelope sent to the worker.
type Message struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Reply is the envelope received from the worker. A nil Data means the
// worker found no QR code in the submitted raster.
type Reply struct {
	ID   int64   `json:"id"`
	Data *string `json:"data"`
}

// DecodePayload carries a projected RGBA raster to the worker.
type DecodePayload struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Pix    []byte `json:"pix"`
}

// NewDecodePayload wraps a raster without copying its pixels.
func NewDecodePayload(img *image.RGBA) *DecodePayload {
	return &DecodePayload{
		Width:  img.Rect.Dx(),
		Height: img.Rect.Dy(),
		Pix:    img.Pix,
	}
}

// Image reconstructs the raster on the worker side.
func (p *DecodePayload) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    p.Pix,
		Stride: 4 * p.Width,
		Rect:   image.Rect(0, 0, p.Width, p.Height),
	}
}

// nextID issues process-wide correlation ids. Strictly increasing and
// never reused, so a stale reply can never be matched to a newer request.
var nextID atomic.Int64

// NextID returns the next correlation id.
func NextID() int64 { return nextID.Add(1) }
