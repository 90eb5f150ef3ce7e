package gpuraster

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/glyphraster/bitmap"
	"github.com/gogpu/glyphraster/raster"
)

// SoftwareDevice runs the glyph kernels on the host.
//
// Each pass visits the full grid exactly as a dispatch would, and the
// arithmetic follows glyph.wgsl operation for operation. It backs headless
// use and is the reference the hal device is tested against.
type SoftwareDevice struct {
	caps       raster.Capabilities
	dispatches atomic.Uint64
}

// NewSoftwareDevice returns a host device reporting caps.
func NewSoftwareDevice(caps raster.Capabilities) *SoftwareDevice {
	return &SoftwareDevice{caps: caps}
}

// Capabilities implements Device.
func (d *SoftwareDevice) Capabilities() raster.Capabilities { return d.caps }

// Dispatches returns the number of kernel passes run so far.
func (d *SoftwareDevice) Dispatches() uint64 { return d.dispatches.Load() }

// Destroy implements Device.
func (d *SoftwareDevice) Destroy() {}

// Run implements Device.
func (d *SoftwareDevice) Run(p *Plan) (bitmap.Data, error) {
	k := &kernels{
		plan:     p,
		coverage: make([][4]float32, int(p.Width)*int(p.Height)),
		pixels:   make([]byte, p.pixelBytes()),
	}
	if p.Subpixel != raster.SubpixelNone {
		k.filtered = make([][4]float32, len(k.coverage))
	}

	for _, entry := range p.Passes() {
		k.dispatch(entry)
		d.dispatches.Add(1)
	}

	if !p.EmitImage {
		return bitmap.RawData(p.unpad(k.pixels), p.Format), nil
	}
	img := &HostImage{
		width:  p.Width,
		height: p.Height,
		stride: p.RowStride() * bitmap.BytesPerPixel,
		format: p.Format,
		pix:    k.pixels,
	}
	return bitmap.ImageData(bitmap.NewOwned(img, nil)), nil
}

// kernels holds the buffers bound to one run.
type kernels struct {
	plan     *Plan
	coverage [][4]float32
	filtered [][4]float32
	pixels   []byte
}

func (k *kernels) dispatch(entry string) {
	var fn func(x, y uint32)
	switch entry {
	case entryCoverage:
		fn = k.coverageMain
	case entryGain:
		fn = k.gainMain
	case entrySubpixel:
		fn = k.subpixelMain
	case entryResolve:
		fn = k.resolveMain
	default:
		return
	}
	for y := range k.plan.Height {
		for x := range k.plan.Width {
			fn(x, y)
		}
	}
}

func (k *kernels) inside(x, y float32) float32 {
	var winding int32
	for i := range k.plan.Edges {
		e := &k.plan.Edges[i]
		if y >= e.YMin && y < e.YMax {
			xc := e.XAtYMin + (y-e.YMin)*e.DXDY
			if xc < x {
				winding += int32(e.Winding)
			}
		}
	}
	if winding != 0 {
		return 1
	}
	return 0
}

func (k *kernels) coverageMain(gx, gy uint32) {
	p := k.plan
	n := p.Samples
	nf := float32(n)
	px, py := float32(gx), float32(gy)

	var acc [3]float32
	for j := range n {
		yoff := (float32(j) + 0.5) / nf
		for i := range n {
			xoff := (float32(i) + 0.5) / nf
			switch {
			case p.Subpixel == raster.SubpixelNone:
				s := k.inside(px+xoff, py+yoff)
				acc[0] += s
				acc[1] += s
				acc[2] += s
			case p.Subpixel.Vertical():
				acc[0] += k.inside(px+xoff, py+yoff/3)
				acc[1] += k.inside(px+xoff, py+(1+yoff)/3)
				acc[2] += k.inside(px+xoff, py+(2+yoff)/3)
			default:
				acc[0] += k.inside(px+xoff/3, py+yoff)
				acc[1] += k.inside(px+(1+xoff)/3, py+yoff)
				acc[2] += k.inside(px+(2+xoff)/3, py+yoff)
			}
		}
	}
	total := nf * nf
	k.coverage[gy*p.Width+gx] = [4]float32{acc[0] / total, acc[1] / total, acc[2] / total, 0}
}

func (k *kernels) gainMain(gx, gy uint32) {
	idx := gy*k.plan.Width + gx
	c := k.coverage[idx]
	g := k.plan.Gain
	k.coverage[idx] = [4]float32{raster.GainCurve(c[0], g), raster.GainCurve(c[1], g), raster.GainCurve(c[2], g), 0}
}

func (k *kernels) subpixelMain(gx, gy uint32) {
	w := k.plan.Width
	idx := gy*w + gx
	c := k.coverage[idx]
	// prev and next are the neighbors along the subpixel axis.
	var prev, next [4]float32
	if k.plan.Subpixel.Vertical() {
		if gy > 0 {
			prev = k.coverage[idx-w]
		}
		if gy+1 < k.plan.Height {
			next = k.coverage[idx+w]
		}
	} else {
		if gx > 0 {
			prev = k.coverage[idx-1]
		}
		if gx+1 < w {
			next = k.coverage[idx+1]
		}
	}
	k.filtered[idx] = [4]float32{
		(prev[2] + c[0] + c[1]) / 3,
		(c[0] + c[1] + c[2]) / 3,
		(c[1] + c[2] + next[0]) / 3,
		0,
	}
}

func (k *kernels) resolveMain(gx, gy uint32) {
	p := k.plan
	idx := gy*p.Width + gx
	c := k.coverage[idx]
	if p.Subpixel != raster.SubpixelNone {
		c = k.filtered[idx]
	}

	r, g, b := raster.Quantize(c[0]), raster.Quantize(c[1]), raster.Quantize(c[2])
	if p.Subpixel.Reversed() {
		r, b = b, r
	}
	a := max(r, g, b)

	o := int(gy*p.RowStride()+gx) * bitmap.BytesPerPixel
	if p.Format == bitmap.FormatBGRA8 {
		r, b = b, r
	}
	k.pixels[o+0] = r
	k.pixels[o+1] = g
	k.pixels[o+2] = b
	k.pixels[o+3] = a
}

// HostImage is a device image produced by SoftwareDevice. Rows are padded
// to the copy pitch alignment exactly as on a GPU.
type HostImage struct {
	mu     sync.Mutex
	width  uint32
	height uint32
	stride uint32
	format bitmap.PixelFormat
	pix    []byte
}

// Width implements bitmap.Image.
func (h *HostImage) Width() uint32 { return h.width }

// Height implements bitmap.Image.
func (h *HostImage) Height() uint32 { return h.height }

// Format implements bitmap.Image.
func (h *HostImage) Format() bitmap.PixelFormat { return h.format }

// Stride returns the number of bytes per row.
func (h *HostImage) Stride() uint32 { return h.stride }

// Pix returns the padded pixel rows, or nil after Destroy.
func (h *HostImage) Pix() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pix
}

// Destroy implements bitmap.Image.
func (h *HostImage) Destroy() {
	h.mu.Lock()
	h.pix = nil
	h.mu.Unlock()
}
