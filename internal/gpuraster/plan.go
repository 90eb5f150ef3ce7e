package gpuraster

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/glyphraster/bitmap"
	"github.com/gogpu/glyphraster/raster"
)

// Kernel entry points in glyph.wgsl.
const (
	entryCoverage = "coverage_main"
	entryGain     = "gain_main"
	entrySubpixel = "subpixel_main"
	entryResolve  = "resolve_main"
)

const (
	// paramsSize is the byte size of the Params uniform.
	paramsSize = 32

	// edgeSize is the byte size (and array stride) of one Edge.
	edgeSize = 32

	// coverageTexel is the byte size of one vec4<f32> coverage value.
	coverageTexel = 16

	// copyPitchAlignment is the required BytesPerRow alignment for
	// buffer-texture copies.
	copyPitchAlignment = 256

	workgroupSize = 8
)

// Plan is a validated GPU job with the output format resolved.
type Plan struct {
	Width     uint32
	Height    uint32
	Samples   uint32
	Subpixel  raster.Subpixel
	Gain      float32 // 1 skips the gain pass
	Format    bitmap.PixelFormat
	EmitImage bool
	Edges     []raster.Edge
}

// Passes returns the kernel entry points to dispatch, in order.
func (p *Plan) Passes() []string {
	passes := []string{entryCoverage}
	if p.Gain != 1 {
		passes = append(passes, entryGain)
	}
	if p.Subpixel != raster.SubpixelNone {
		passes = append(passes, entrySubpixel)
	}
	return append(passes, entryResolve)
}

// RowStride returns the number of pixels per output row. Image output rows
// are padded to the copy pitch alignment.
func (p *Plan) RowStride() uint32 {
	if !p.EmitImage {
		return p.Width
	}
	bytesPerRow := p.Width * bitmap.BytesPerPixel
	aligned := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	return aligned / bitmap.BytesPerPixel
}

// Workgroups returns the dispatch size for a full-grid pass.
func (p *Plan) Workgroups() (x, y uint32) {
	return (p.Width + workgroupSize - 1) / workgroupSize, (p.Height + workgroupSize - 1) / workgroupSize
}

// coverageBytes is the size of the coverage buffer.
func (p *Plan) coverageBytes() uint64 {
	return uint64(p.Width) * uint64(p.Height) * coverageTexel
}

// pixelBytes is the size of the packed output buffer.
func (p *Plan) pixelBytes() uint64 {
	return uint64(p.RowStride()) * uint64(p.Height) * bitmap.BytesPerPixel
}

// encodeParams serializes the Params uniform.
func (p *Plan) encodeParams() []byte {
	var swap uint32
	if p.Format == bitmap.FormatBGRA8 {
		swap = 1
	}
	buf := make([]byte, paramsSize)
	le := binary.LittleEndian
	le.PutUint32(buf[0:], p.Width)
	le.PutUint32(buf[4:], p.Height)
	le.PutUint32(buf[8:], p.Samples)
	le.PutUint32(buf[12:], uint32(len(p.Edges))) //nolint:gosec // edge count bounded by outline size
	le.PutUint32(buf[16:], uint32(p.Subpixel))
	le.PutUint32(buf[20:], p.RowStride())
	le.PutUint32(buf[24:], swap)
	le.PutUint32(buf[28:], math.Float32bits(p.Gain))
	return buf
}

// encodeEdges serializes the edge array. An empty array still occupies one
// element because zero-sized storage bindings are invalid.
func (p *Plan) encodeEdges() []byte {
	buf := make([]byte, max(len(p.Edges), 1)*edgeSize)
	le := binary.LittleEndian
	for i, e := range p.Edges {
		o := i * edgeSize
		le.PutUint32(buf[o+0:], math.Float32bits(e.YMin))
		le.PutUint32(buf[o+4:], math.Float32bits(e.YMax))
		le.PutUint32(buf[o+8:], math.Float32bits(e.XAtYMin))
		le.PutUint32(buf[o+12:], math.Float32bits(e.DXDY))
		le.PutUint32(buf[o+16:], uint32(int32(e.Winding))) //nolint:gosec // two's complement i32
	}
	return buf
}

// unpad strips row padding from packed output.
func (p *Plan) unpad(packed []byte) []byte {
	stride := int(p.RowStride()) * bitmap.BytesPerPixel
	row := int(p.Width) * bitmap.BytesPerPixel
	if stride == row {
		return packed[:row*int(p.Height)]
	}
	out := make([]byte, row*int(p.Height))
	for y := range int(p.Height) {
		copy(out[y*row:(y+1)*row], packed[y*stride:])
	}
	return out
}
