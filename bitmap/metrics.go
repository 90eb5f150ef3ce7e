// Package bitmap defines the rasterized glyph data model shared by the CPU
// and GPU backends: pixel metrics, the Empty/Raw/Image data variants and
// ImageView, an ownership-tracking handle over GPU images.
package bitmap

import (
	"math"

	"github.com/gogpu/glyphraster/outline"
)

// Metrics describes a glyph bitmap in pixel units.
//
// BearingX is the horizontal distance from the pen position to the left
// column. BearingY is the vertical distance from the baseline up to the top
// row (positive above the baseline).
type Metrics struct {
	Width    uint32
	Height   uint32
	BearingX int32
	BearingY int32
}

// IsZero reports whether the bitmap has no pixels.
func (m Metrics) IsZero() bool {
	return m.Width == 0 || m.Height == 0
}

// Placement maps design-unit coordinates into the pixel grid of a bitmap.
// Rows grow downward:
//
//	px = x*Scale - OriginX
//	py = OriginY - y*Scale
type Placement struct {
	Scale   float32
	OriginX float32
	OriginY float32
}

// Affine returns the placement as an outline transform.
func (p Placement) Affine() outline.Affine {
	return outline.Affine{
		A: p.Scale, C: -p.OriginX,
		E: -p.Scale, F: p.OriginY,
	}
}

// ComputeMetrics scales bounds (design units, y up) by scale and derives
// the bitmap size and bearings.
//
// With align set the box is expanded outward to whole pixels, so every
// sample of the scaled outline lands inside the bitmap and the placement
// origin is integral. Without align the bitmap keeps the fractional box
// origin and its size is the rounded-up box extent.
func ComputeMetrics(bounds outline.Rect, scale float32, align bool) (Metrics, Placement) {
	x0, x1 := float64(bounds.MinX*scale), float64(bounds.MaxX*scale)
	y0, y1 := float64(bounds.MinY*scale), float64(bounds.MaxY*scale)
	if !(scale > 0) || !(x1 > x0) || !(y1 > y0) || isBad(x0, x1, y0, y1) {
		return Metrics{}, Placement{Scale: scale}
	}

	m := Metrics{
		BearingX: int32(math.Floor(x0)),
		BearingY: int32(math.Ceil(y1)),
	}
	var p Placement
	if align {
		left, right := math.Floor(x0), math.Ceil(x1)
		bottom, top := math.Floor(y0), math.Ceil(y1)
		m.Width = uint32(right - left)
		m.Height = uint32(top - bottom)
		p = Placement{Scale: scale, OriginX: float32(left), OriginY: float32(top)}
	} else {
		m.Width = uint32(math.Ceil(x1 - x0))
		m.Height = uint32(math.Ceil(y1 - y0))
		p = Placement{Scale: scale, OriginX: float32(x0), OriginY: float32(y1)}
	}
	return m, p
}

func isBad(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
