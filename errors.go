package glyphraster

import (
	"errors"
	"fmt"

	"github.com/gogpu/glyphraster/raster"
	"github.com/gogpu/glyphraster/text"
)

// Sentinel errors. Backend and font errors wrap these, so callers can test
// them with errors.Is.
var (
	// ErrUnsupportedDevice is returned when the GPU backend was requested
	// but the device cannot write the output without a declared format and
	// no OutputFormat was given, or when no GPU backend is configured.
	// Fall back to the CPU backend or set OutputFormat.
	ErrUnsupportedDevice = raster.ErrUnsupportedDevice

	// ErrResourceAllocation is returned when host or device memory for a
	// glyph cannot be allocated.
	ErrResourceAllocation = raster.ErrResourceAllocation

	// ErrInvalidGlyph is returned for glyph IDs the font does not have.
	ErrInvalidGlyph = text.ErrInvalidGlyph

	// ErrInvalidGain is returned when RasterOptions.Gain is negative, NaN
	// or infinite.
	ErrInvalidGain = raster.ErrInvalidGain

	// ErrClosed is returned by a Rasterizer or Library after Close.
	ErrClosed = errors.New("glyphraster: closed")

	// ErrFontNotFound is returned by Library for unknown family/weight pairs.
	ErrFontNotFound = errors.New("glyphraster: font not found")
)

// GlyphError records a failed glyph operation.
type GlyphError struct {
	Op  string
	GID text.GlyphID
	Err error
}

func (e *GlyphError) Error() string {
	return fmt.Sprintf("glyphraster: %s glyph %d: %v", e.Op, e.GID, e.Err)
}

func (e *GlyphError) Unwrap() error { return e.Err }
