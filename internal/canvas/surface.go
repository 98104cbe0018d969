// Package canvas provides the reusable raster surface scan inputs are
// projected onto before decoding, and the projection itself.
package canvas

import "image"

// Region selects a sub-rectangle of a source image, with an optional
// down-scale target for the projected raster. Zero fields default to the
// full remaining source extent, and a zero down-scale target defaults to
// the region's own size.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int

	DownScaledWidth  int
	DownScaledHeight int
}

// Surface is a reusable 2-D RGBA raster. Reallocating the backing pixels
// clears them, so SetSize only reallocates when the dimensions actually
// change; previously drawn content survives same-size calls.
type Surface struct {
	img *image.RGBA
}

// NewSurface returns a surface with the given initial dimensions.
// Dimensions of zero are valid; the first SetSize allocates the raster.
func NewSurface(width, height int) *Surface {
	s := &Surface{}
	if width > 0 && height > 0 {
		s.img = image.NewRGBA(image.Rect(0, 0, width, height))
	}
	return s
}

// Width returns the current raster width, 0 when unallocated.
func (s *Surface) Width() int {
	if s.img == nil {
		return 0
	}
	return s.img.Rect.Dx()
}

// Height returns the current raster height, 0 when unallocated.
func (s *Surface) Height() int {
	if s.img == nil {
		return 0
	}
	return s.img.Rect.Dy()
}

// SetSize resizes the raster. A no-op when the dimensions are unchanged.
func (s *Surface) SetSize(width, height int) {
	if s.img != nil && s.Width() == width && s.Height() == height {
		return
	}
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

// Image exposes the backing raster for pixel extraction and drawing.
func (s *Surface) Image() *image.RGBA {
	return s.img
}
