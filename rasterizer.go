package glyphraster

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/gogpu/glyphraster/bitmap"
	"github.com/gogpu/glyphraster/cache"
	"github.com/gogpu/glyphraster/internal/cpuraster"
	"github.com/gogpu/glyphraster/internal/parallel"
	"github.com/gogpu/glyphraster/outline"
	"github.com/gogpu/glyphraster/raster"
	"github.com/gogpu/glyphraster/text"
)

// Font supplies glyph outlines and font-wide properties. *text.FontSource
// implements it.
type Font interface {
	// Outline returns the glyph outline in design units, y up.
	Outline(gid text.GlyphID) (*outline.Outline, error)

	// Properties returns font-wide values. NumGlyphs, when non-zero,
	// bounds the valid glyph IDs.
	Properties() text.Properties

	// ID identifies the font for caching. Distinct fonts must have
	// distinct IDs.
	ID() uint64
}

// Glyph is a rasterized glyph. Cached glyphs are shared between callers
// and must not be modified.
type Glyph struct {
	Metrics bitmap.Metrics
	Data    bitmap.Data
}

// glyphKey identifies a cache entry. Size holds the float32 bits so that
// every size, NaN included, is a valid map key.
type glyphKey struct {
	FontID uint64
	GID    text.GlyphID
	Size   uint32
	Opts   RasterOptions
}

func hashGlyphKey(k glyphKey) uint64 {
	return cache.HashUint64s(k.FontID, uint64(k.GID), uint64(k.Size), k.Opts.key())
}

// Stats holds Rasterizer counters.
type Stats struct {
	// Glyphs is the number of cached glyphs.
	Glyphs int

	Hits   uint64
	Misses uint64

	// Dispatches counts backend invocations.
	Dispatches uint64
}

// Rasterizer renders and caches the glyphs of one font.
//
// Rasterizer is safe for concurrent use. Concurrent requests for the same
// glyph, size and options run the backend once; other requests proceed
// independently.
type Rasterizer struct {
	font  Font
	props text.Properties

	gpu    GPUBackend
	log    *slog.Logger
	cache  *cache.ShardedCache[glyphKey, *Glyph]
	pool   *parallel.WorkerPool
	shared bool // pool belongs to a Library

	dispatches atomic.Uint64
	closed     atomic.Bool
}

// New creates a Rasterizer for font.
func New(font Font, opts ...Option) (*Rasterizer, error) {
	return newRasterizer(font, newOptions(opts), nil)
}

func newRasterizer(font Font, o options, pool *parallel.WorkerPool) (*Rasterizer, error) {
	if font == nil {
		return nil, errors.New("glyphraster: nil font")
	}
	props := font.Properties()
	if props.UnitsPerEm == 0 {
		return nil, fmt.Errorf("glyphraster: font %d has zero units per em", font.ID())
	}

	r := &Rasterizer{
		font:   font,
		props:  props,
		gpu:    o.gpu,
		log:    o.logger,
		cache:  cache.NewSharded[glyphKey, *Glyph](hashGlyphKey),
		pool:   pool,
		shared: pool != nil,
	}
	if r.pool == nil {
		r.pool = parallel.NewWorkerPool(o.workers)
	}
	if r.gpu != nil {
		registerBackend(r.gpu, r.logger())
	}
	return r, nil
}

// logger returns the Rasterizer's own logger or the package logger.
func (r *Rasterizer) logger() *slog.Logger {
	if r.log != nil {
		return r.log
	}
	return Logger()
}

// Font returns the font this Rasterizer renders.
func (r *Rasterizer) Font() Font {
	return r.font
}

// Rasterize returns the glyph gid at size pixels per em.
//
// A glyph without contours, or a size too small to cover a pixel, yields
// Empty data. Unknown glyph IDs fail with ErrInvalidGlyph. Results are
// cached only when the backend succeeds.
func (r *Rasterizer) Rasterize(gid text.GlyphID, size float32, opts RasterOptions) (*Glyph, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if n := r.props.NumGlyphs; n > 0 && int(gid) >= n {
		return nil, &GlyphError{Op: "rasterize", GID: gid, Err: ErrInvalidGlyph}
	}

	key := glyphKey{FontID: r.font.ID(), GID: gid, Size: math.Float32bits(size), Opts: opts}
	g, created, err := r.cache.GetOrCreate(key, func() (*Glyph, error) {
		return r.rasterize(gid, size, opts)
	})
	if err != nil {
		return nil, err
	}
	if created {
		r.logger().Debug("glyphraster: glyph rasterized",
			"gid", gid, "size", size, "backend", opts.Backend,
			"width", g.Metrics.Width, "height", g.Metrics.Height, "kind", g.Data.Kind())
	}
	return g, nil
}

// rasterize runs the backend for one cache miss.
func (r *Rasterizer) rasterize(gid text.GlyphID, size float32, opts RasterOptions) (*Glyph, error) {
	o, err := r.font.Outline(gid)
	if err != nil {
		return nil, &GlyphError{Op: "outline", GID: gid, Err: err}
	}

	scale := size / float32(r.props.UnitsPerEm)
	var m bitmap.Metrics
	var p bitmap.Placement
	if !o.IsEmpty() {
		m, p = bitmap.ComputeMetrics(o.Bounds(), scale, opts.AlignWholePixels)
	}

	job := &raster.Job{
		Width:     int(m.Width),
		Height:    int(m.Height),
		Samples:   opts.SampleQuality.Samples(),
		Subpixel:  opts.Subpixel,
		Gain:      opts.Gain,
		Format:    opts.OutputFormat,
		EmitImage: opts.EmitImage,
	}
	if !m.IsZero() {
		job.Edges = raster.BuildEdges(o, p, opts.FillQuality)
	}

	data, err := r.dispatch(job, opts)
	if err != nil {
		return nil, &GlyphError{Op: "rasterize", GID: gid, Err: err}
	}
	data, err = bitmap.Finish(m, data)
	if err != nil {
		return nil, &GlyphError{Op: "rasterize", GID: gid, Err: err}
	}
	return &Glyph{Metrics: m, Data: data}, nil
}

func (r *Rasterizer) dispatch(job *raster.Job, opts RasterOptions) (bitmap.Data, error) {
	switch opts.Backend {
	case BackendCPU:
		if opts.gpuOnly() {
			r.logger().Debug("glyphraster: CPU backend ignores GPU-only options",
				"subpixel", opts.Subpixel, "gain", opts.Gain,
				"format", opts.OutputFormat, "emitImage", opts.EmitImage)
		}
		r.dispatches.Add(1)
		return cpuraster.Rasterize(job)
	case BackendGPU:
		if r.gpu == nil {
			return bitmap.Data{}, fmt.Errorf("%w: no GPU backend configured", ErrUnsupportedDevice)
		}
		r.dispatches.Add(1)
		return r.gpu.Rasterize(job)
	default:
		return bitmap.Data{}, fmt.Errorf("glyphraster: unknown backend %d", opts.Backend)
	}
}

// RasterizeRun rasterizes a shaped run. Repeated glyph IDs are rasterized
// once; unique glyphs are rendered in parallel on the worker pool. The
// result has one entry per input ID, in input order; entries of failed
// glyphs are nil and their errors are joined.
func (r *Rasterizer) RasterizeRun(gids []text.GlyphID, size float32, opts RasterOptions) ([]*Glyph, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}

	index := make(map[text.GlyphID]int, len(gids))
	var unique []text.GlyphID
	for _, gid := range gids {
		if _, ok := index[gid]; !ok {
			index[gid] = len(unique)
			unique = append(unique, gid)
		}
	}

	glyphs := make([]*Glyph, len(unique))
	err := r.pool.ForEach(len(unique), func(i int) error {
		g, err := r.Rasterize(unique[i], size, opts)
		glyphs[i] = g
		return err
	})
	if errors.Is(err, parallel.ErrClosed) {
		return nil, ErrClosed
	}
	if err != nil {
		r.logger().Warn("glyphraster: run had failed glyphs", "glyphs", len(gids), "err", err)
	}

	out := make([]*Glyph, len(gids))
	for i, gid := range gids {
		out[i] = glyphs[index[gid]]
	}
	return out, err
}

// Stats returns cache and dispatch counters.
func (r *Rasterizer) Stats() Stats {
	s := r.cache.Stats()
	return Stats{
		Glyphs:     s.Len,
		Hits:       s.Hits,
		Misses:     s.Misses,
		Dispatches: r.dispatches.Load(),
	}
}

// Capabilities returns the capabilities of the GPU backend, and false when
// none is configured.
func (r *Rasterizer) Capabilities() (raster.Capabilities, bool) {
	if r.gpu == nil {
		return raster.Capabilities{}, false
	}
	return r.gpu.Capabilities(), true
}

// Close drops every cached glyph, destroying Owned images, and stops the
// worker pool. The GPU backend passed with WithGPU stays open.
// Close is safe to call multiple times. Requests racing with Close may
// still return glyphs.
func (r *Rasterizer) Close() {
	if r.closed.Swap(true) {
		return
	}
	if !r.shared {
		r.pool.Close()
	}
	r.cache.Clear(func(g *Glyph) {
		g.Data.Release()
	})
	if r.gpu != nil {
		unregisterBackend(r.gpu)
	}
}
