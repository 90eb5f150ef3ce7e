// Package gpu provides the GPU glyph rasterization backend.
//
// The backend runs the coverage, gain, subpixel and resolve kernels as
// wgpu compute passes. Pass it to glyphraster.New with WithGPU:
//
//	b, err := gpu.New()
//	if err != nil {
//	    // no usable GPU: keep rendering on the CPU
//	}
//	r, err := glyphraster.New(font, glyphraster.WithGPU(b))
//
// Applications that already own a device share it with NewFromProvider.
// NewSoftware runs the same kernels on the host and needs no GPU.
//
// Build with the nogpu tag to drop the wgpu dependency; New and
// NewFromProvider then report raster.ErrUnsupportedDevice.
package gpu

import (
	"log/slog"

	"github.com/gogpu/glyphraster/bitmap"
	"github.com/gogpu/glyphraster/internal/gpuraster"
	"github.com/gogpu/glyphraster/raster"
)

// Backend is a GPU glyph rasterizer. It is safe for concurrent use;
// submissions to the device are serialized.
type Backend struct {
	impl *gpuraster.Backend
}

// Capabilities reports the device features used for format negotiation.
func (b *Backend) Capabilities() raster.Capabilities {
	return b.impl.Capabilities()
}

// Rasterize renders one glyph job.
func (b *Backend) Rasterize(job *raster.Job) (bitmap.Data, error) {
	return b.impl.Rasterize(job)
}

// SetLogger sets the logger for GPU diagnostics. nil disables logging.
func (b *Backend) SetLogger(l *slog.Logger) {
	b.impl.SetLogger(l)
}

// Close waits for outstanding GPU work and releases the device. A shared
// device is left to its owner.
func (b *Backend) Close() {
	b.impl.Close()
}

// Option configures a Backend.
type Option func(*config)

type config struct {
	formatless *bool
	preferred  bitmap.PixelFormat
	logger     *slog.Logger
}

// WithStorageWriteWithoutFormat declares whether the device may write
// storage images without a declared format, overriding detection. Hosts
// that enabled the feature on a shared device should set it.
func WithStorageWriteWithoutFormat(enabled bool) Option {
	return func(c *config) { c.formatless = &enabled }
}

// WithPreferredFormat sets the output format used when a job leaves the
// format unspecified.
func WithPreferredFormat(f bitmap.PixelFormat) Option {
	return func(c *config) { c.preferred = f }
}

// WithLogger sets the logger for GPU diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func newConfig(opts []Option) config {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// apply merges option overrides into detected capabilities.
func (c *config) apply(caps raster.Capabilities) raster.Capabilities {
	if c.formatless != nil {
		caps.StorageWriteWithoutFormat = *c.formatless
	}
	if c.preferred != bitmap.FormatDefault {
		caps.PreferredFormat = c.preferred
	}
	return caps
}

func wrap(dev gpuraster.Device, c config) *Backend {
	b := &Backend{impl: gpuraster.New(dev)}
	if c.logger != nil {
		b.SetLogger(c.logger)
	}
	return b
}

// NewSoftware returns a backend that runs the GPU kernels on the host with
// the given capabilities. Output matches the hardware backend.
func NewSoftware(caps raster.Capabilities, opts ...Option) *Backend {
	c := newConfig(opts)
	return wrap(gpuraster.NewSoftwareDevice(c.apply(caps)), c)
}
