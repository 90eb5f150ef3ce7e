package glyphraster

import (
	"log/slog"
	"math"

	"github.com/gogpu/glyphraster/bitmap"
	"github.com/gogpu/glyphraster/raster"
	"github.com/gogpu/glyphraster/text"
)

// Backend selects where a glyph is rasterized.
type Backend uint8

const (
	// BackendCPU scan-converts on the host. It is the zero value.
	BackendCPU Backend = iota
	// BackendGPU runs the compute pipeline of the backend passed to WithGPU.
	BackendGPU
)

// String returns the backend name.
func (b Backend) String() string {
	switch b {
	case BackendCPU:
		return "CPU"
	case BackendGPU:
		return "GPU"
	default:
		return "Unknown"
	}
}

// Quality and format types shared with the backends.
type (
	FillQuality   = raster.FillQuality
	SampleQuality = raster.SampleQuality
	Subpixel      = raster.Subpixel
	PixelFormat   = bitmap.PixelFormat
)

// Re-exported quality, subpixel and format values.
const (
	FillNormal = raster.FillNormal
	FillCoarse = raster.FillCoarse
	FillFine   = raster.FillFine

	SampleNormal = raster.SampleNormal
	SampleCoarse = raster.SampleCoarse
	SampleFine   = raster.SampleFine

	SubpixelNone = raster.SubpixelNone
	SubpixelRGB  = raster.SubpixelRGB
	SubpixelBGR  = raster.SubpixelBGR
	SubpixelVRGB = raster.SubpixelVRGB
	SubpixelVBGR = raster.SubpixelVBGR

	FormatDefault = bitmap.FormatDefault
	FormatRGBA8   = bitmap.FormatRGBA8
	FormatBGRA8   = bitmap.FormatBGRA8
)

// RasterOptions configures one rasterization. The zero value renders
// grayscale on the CPU with normal qualities.
//
// RasterOptions is a comparable value and is part of the cache key; two
// calls differing in any field are cached separately.
type RasterOptions struct {
	Backend       Backend
	FillQuality   FillQuality
	SampleQuality SampleQuality

	// AlignWholePixels snaps the bitmap box outward to whole pixels.
	AlignWholePixels bool

	// OutputFormat forces the GPU output channel order. FormatDefault lets
	// the device choose, which requires FeatureStorageWriteWithoutFormat.
	OutputFormat PixelFormat

	// EmitImage returns GPU results as an Owned ImageView instead of
	// reading them back into a Raw buffer.
	EmitImage bool

	// Subpixel enables LCD filtering on the GPU backend.
	Subpixel Subpixel

	// Gain is the GPU gain curve exponent. Zero selects the default
	// (raster.DefaultGain); 1 disables the curve.
	Gain float32
}

// gpuOnly reports whether o sets options the CPU backend ignores.
func (o RasterOptions) gpuOnly() bool {
	return o.Subpixel != SubpixelNone || o.Gain != 0 || o.OutputFormat != FormatDefault || o.EmitImage
}

// key packs o into an integer for shard hashing.
func (o RasterOptions) key() uint64 {
	var align, emit uint64
	if o.AlignWholePixels {
		align = 1
	}
	if o.EmitImage {
		emit = 1
	}
	return uint64(o.Backend) |
		uint64(o.FillQuality)<<4 |
		uint64(o.SampleQuality)<<8 |
		align<<12 |
		uint64(o.OutputFormat)<<13 |
		emit<<17 |
		uint64(o.Subpixel)<<18 |
		uint64(math.Float32bits(o.Gain))<<32
}

// GPUBackend executes rasterization jobs on a GPU. *gpu.Backend
// implements it.
type GPUBackend interface {
	Capabilities() raster.Capabilities
	Rasterize(job *raster.Job) (bitmap.Data, error)
	Close()
}

// Option configures a Rasterizer or Library.
type Option func(*options)

type options struct {
	gpu     GPUBackend
	workers int
	logger  *slog.Logger
	shaper  text.Shaper
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithGPU attaches a GPU backend used for BackendGPU requests. The caller
// keeps ownership: Close on the Rasterizer or Library does not close it.
func WithGPU(b GPUBackend) Option {
	return func(o *options) {
		o.gpu = b
	}
}

// WithWorkers sets the number of workers that rasterize the glyphs of a
// run. Zero or negative uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithLogger sets a logger for this Rasterizer or Library instead of the
// package logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithShaper replaces the shaper used by Library.GlyphsForText.
// The default is a text.HarfbuzzShaper.
func WithShaper(s text.Shaper) Option {
	return func(o *options) {
		o.shaper = s
	}
}
