package canvas

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Project draws the selected region of img onto the surface and returns
// the surface together with its backing raster.
//
// With resizing allowed (the default) the surface is sized to the
// region's down-scale target, falling back to the region's own size.
// Scaling uses nearest-neighbor interpolation: smoothing blurs module
// edges and degrades decode accuracy. Drawing uses the Src operator, so
// alpha in the source never blends with stale surface content.
func Project(img image.Image, region *Region, surface *Surface, disallowResize bool) (*Surface, *image.RGBA) {
	if surface == nil {
		surface = NewSurface(0, 0)
	}

	bounds := img.Bounds()
	r := Region{Width: bounds.Dx(), Height: bounds.Dy()}
	if region != nil {
		r = *region
	}
	if r.Width <= 0 {
		r.Width = bounds.Dx() - r.X
	}
	if r.Height <= 0 {
		r.Height = bounds.Dy() - r.Y
	}

	if !disallowResize {
		width := r.DownScaledWidth
		if width <= 0 {
			width = r.Width
		}
		height := r.DownScaledHeight
		if height <= 0 {
			height = r.Height
		}
		surface.SetSize(width, height)
	}
	if surface.Image() == nil {
		// Resizing disallowed on a never-sized surface; fall back to the
		// region extent so there is something to draw into.
		surface.SetSize(r.Width, r.Height)
	}

	src := image.Rect(
		bounds.Min.X+r.X,
		bounds.Min.Y+r.Y,
		bounds.Min.X+r.X+r.Width,
		bounds.Min.Y+r.Y+r.Height,
	)
	dst := surface.Image()
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, src, xdraw.Src, nil)
	return surface, dst
}
