// Package glyphraster converts font glyph outlines into pixel bitmaps.
//
// # Overview
//
// A Rasterizer renders the glyphs of one font. Each call names a glyph,
// a size in pixels per em and RasterOptions. Results are cached per
// (font, glyph, size, options); concurrent requests for the same key run
// the backend once and share the result.
//
// # Quick Start
//
//	src, err := text.NewFontSource(goregular.TTF)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r, err := glyphraster.New(src)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	gid, _ := src.GlyphIndex('g')
//	g, err := r.Rasterize(gid, 32, glyphraster.RasterOptions{})
//	// g.Metrics: size and bearings; g.Data.Pix(): RGBA8 pixels
//
// # Backends
//
// The CPU backend (default) scan-converts on the host and parallelizes
// across the glyphs of a run. The GPU backend, constructed by package gpu
// and passed with WithGPU, runs the same coverage algorithm as compute
// passes and adds a gain curve and LCD subpixel filtering. The CPU backend
// ignores Gain, Subpixel, OutputFormat and EmitImage, so mixing backends
// for one piece of text can change its appearance.
//
// The GPU backend needs a device that can write storage images without a
// declared format; see RequiredFeatures. Without it, callers must set
// RasterOptions.OutputFormat or use the CPU backend.
//
// # Fonts and text
//
// Library manages fonts by family and weight, answers HasFont and shapes
// strings into positioned, rasterized glyphs.
//
// # Architecture
//
// The module is organized into:
//   - outline: glyph contours in design units
//   - raster: the shared coverage contract (qualities, edges, jobs)
//   - bitmap: metrics, Empty/Raw/Image data and ImageView
//   - gpu: GPU backends over wgpu/hal or a host-side software device
//   - text: font parsing and shaping collaborators
//   - cache: sharded cache with per-key locks
package glyphraster
