// Package gpuraster implements the contour rasterizer as a GPU compute
// pipeline.
//
// A Backend validates jobs, negotiates the output format and serializes
// submissions to a Device. Two devices exist: a wgpu hal device that runs
// the WGSL kernels in shaders/glyph.wgsl, and SoftwareDevice, which runs
// the same kernels on the host for headless use and testing.
package gpuraster

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/glyphraster/bitmap"
	"github.com/gogpu/glyphraster/raster"
)

// ErrClosed is returned by a Backend after Close.
var ErrClosed = errors.New("gpuraster: backend is closed")

// Device executes planned glyph jobs.
type Device interface {
	// Capabilities reports the device features relevant to format
	// negotiation.
	Capabilities() raster.Capabilities

	// Run dispatches the kernels of p and returns Raw pixels in p.Format,
	// or an Owned image when p.EmitImage is set. Run is never called
	// concurrently on one device.
	Run(p *Plan) (bitmap.Data, error)

	// Destroy releases the device resources.
	Destroy()
}

// Backend is a GPU rasterization backend over one Device.
//
// Submissions are serialized by a mutex; distinct Backends are independent.
type Backend struct {
	mu     sync.Mutex
	dev    Device
	closed bool
	runs   uint64
}

// New returns a backend that takes ownership of dev.
func New(dev Device) *Backend {
	return &Backend{dev: dev}
}

// Capabilities reports the device capabilities.
func (b *Backend) Capabilities() raster.Capabilities {
	return b.dev.Capabilities()
}

// Rasterize runs job on the device. Jobs without area return Empty
// without touching the device; jobs with area but no edges still run and
// return a blank bitmap. A job without an explicit format on a device that
// cannot write format-less storage images fails with
// raster.ErrUnsupportedDevice.
func (b *Backend) Rasterize(job *raster.Job) (bitmap.Data, error) {
	if err := job.Validate(); err != nil {
		return bitmap.Data{}, err
	}
	if job.IsEmpty() {
		return bitmap.EmptyData(), nil
	}
	format, err := raster.NegotiateFormat(job.Format, b.dev.Capabilities())
	if err != nil {
		return bitmap.Data{}, err
	}

	plan := &Plan{
		Width:     uint32(job.Width),   //nolint:gosec // bounded by raster.MaxDimension
		Height:    uint32(job.Height),  //nolint:gosec // bounded by raster.MaxDimension
		Samples:   uint32(job.Samples), //nolint:gosec // 2, 4 or 8
		Subpixel:  job.Subpixel,
		Gain:      job.EffectiveGain(),
		Format:    format,
		EmitImage: job.EmitImage,
		Edges:     job.Edges.Edges(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return bitmap.Data{}, ErrClosed
	}
	b.runs++
	slogger().Debug("gpuraster: dispatch",
		slog.Int("width", job.Width), slog.Int("height", job.Height),
		slog.Int("edges", len(plan.Edges)), slog.Any("passes", plan.Passes()))

	data, err := b.dev.Run(plan)
	if err != nil {
		return bitmap.Data{}, fmt.Errorf("gpuraster: run %dx%d glyph: %w", job.Width, job.Height, err)
	}
	return data, nil
}

// Runs returns the number of jobs dispatched to the device.
func (b *Backend) Runs() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runs
}

// SetLogger sets the logger used by the GPU backend.
func (b *Backend) SetLogger(l *slog.Logger) {
	SetLogger(l)
}

// Close waits for outstanding work and destroys the device.
// Close is safe to call multiple times.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.dev.Destroy()
}
