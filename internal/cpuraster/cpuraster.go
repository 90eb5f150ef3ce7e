// Package cpuraster implements the contour rasterizer on the host.
//
// The scan converter walks the sample rows of the supersampling grid with
// an active edge table and fills the sample columns between crossings
// whose accumulated winding is nonzero. It produces grayscale coverage
// only: gain curve, subpixel filtering and output format negotiation are
// features of the GPU backend.
package cpuraster

import (
	"math"

	"github.com/gogpu/glyphraster/bitmap"
	"github.com/gogpu/glyphraster/raster"
)

// Rasterize converts job into an RGBA8 Raw bitmap, or Empty when the job
// has no area. A job with area but no edges yields a blank bitmap. Jobs
// beyond raster.MaxDimension fail with raster.ErrResourceAllocation.
func Rasterize(job *raster.Job) (bitmap.Data, error) {
	if err := job.Validate(); err != nil {
		return bitmap.Data{}, err
	}
	if job.IsEmpty() {
		return bitmap.EmptyData(), nil
	}

	counts := Coverage(job.Edges, job.Width, job.Height, job.Samples)
	total := float32(job.Samples * job.Samples)

	pix := make([]byte, job.Width*job.Height*bitmap.BytesPerPixel)
	for i, n := range counts {
		v := raster.Quantize(float32(n) / total)
		o := i * bitmap.BytesPerPixel
		// Grayscale: alpha equals the common color value.
		pix[o+0] = v
		pix[o+1] = v
		pix[o+2] = v
		pix[o+3] = v
	}
	return bitmap.RawData(pix, bitmap.FormatRGBA8), nil
}

// Coverage returns, for each pixel of a width×height grid in row-major
// order, the number of its n×n samples inside the edges under the nonzero
// winding rule.
func Coverage(el *raster.EdgeList, width, height, n int) []uint16 {
	counts := make([]uint16, width*height)
	if el == nil || el.Len() == 0 || width <= 0 || height <= 0 {
		return counts
	}

	aet := raster.NewActiveEdgeTable(el)
	columns := width * n
	fn := float64(n)

	for py := range height {
		row := counts[py*width : (py+1)*width]
		for j := range n {
			y := float32(py) + (float32(j)+0.5)/float32(n)
			crossings := aet.Advance(y)

			var winding int
			for k := 0; k+1 < len(crossings); k++ {
				winding += int(crossings[k].Winding)
				if winding == 0 {
					continue
				}
				// Sample column s sits at x = (s+0.5)/n and is inside when
				// crossings[k].X < x <= crossings[k+1].X.
				lo := int(math.Floor(float64(crossings[k].X)*fn-0.5)) + 1
				hi := int(math.Floor(float64(crossings[k+1].X)*fn - 0.5))
				lo = max(lo, 0)
				hi = min(hi, columns-1)
				for s := lo; s <= hi; s++ {
					row[s/n]++
				}
			}
		}
	}
	return counts
}
