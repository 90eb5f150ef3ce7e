// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/glyphraster/bitmap"
)

// Errors shared by the backends.
var (
	// ErrUnsupportedDevice is returned when the GPU device cannot write the
	// output image without a fixed format and no explicit format was given.
	ErrUnsupportedDevice = errors.New("raster: device cannot write storage images without a declared format")

	// ErrResourceAllocation is returned when host or device memory for a
	// glyph cannot be allocated.
	ErrResourceAllocation = errors.New("raster: resource allocation failed")

	// ErrInvalidGain is returned for a negative, NaN or infinite gain.
	ErrInvalidGain = errors.New("raster: gain must be finite and non-negative")
)

// MaxDimension is the largest bitmap width or height a backend accepts.
const MaxDimension = 4096

// DefaultGain is the gain curve exponent used when a Job leaves Gain zero.
const DefaultGain = 1.4

// Job is the backend input for one glyph.
type Job struct {
	// Width and Height of the bitmap in pixels.
	Width, Height int

	// Samples is N of the N×N supersampling grid.
	Samples int

	// Edges in pixel space. A job with area but no edges renders blank.
	Edges *EdgeList

	// Subpixel, Gain and Format are honored by the GPU backend only.
	Subpixel Subpixel
	Gain     float32
	Format   bitmap.PixelFormat

	// EmitImage asks the GPU backend for a device image instead of a host
	// buffer.
	EmitImage bool
}

// IsEmpty reports whether the job produces the Empty bitmap, which is the
// case exactly when it has no area. Edges that vanish after flattening at
// tiny sizes still yield a blank bitmap of the requested size.
func (j *Job) IsEmpty() bool {
	return j.Width <= 0 || j.Height <= 0
}

// Validate checks the gain and the job limits. Limits are not checked for
// empty jobs.
func (j *Job) Validate() error {
	if g := float64(j.Gain); g < 0 || math.IsNaN(g) || math.IsInf(g, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidGain, j.Gain)
	}
	if j.IsEmpty() {
		return nil
	}
	if j.Width > MaxDimension || j.Height > MaxDimension {
		return fmt.Errorf("%w: %dx%d bitmap exceeds %d pixels per side",
			ErrResourceAllocation, j.Width, j.Height, MaxDimension)
	}
	if j.Samples < 1 {
		return fmt.Errorf("raster: invalid sample count %d", j.Samples)
	}
	return nil
}

// EffectiveGain returns the gain exponent to apply, resolving zero to
// DefaultGain.
func (j *Job) EffectiveGain() float32 {
	if j.Gain == 0 {
		return DefaultGain
	}
	return j.Gain
}

// Capabilities describes what a GPU device supports.
type Capabilities struct {
	// StorageWriteWithoutFormat reports whether compute shaders may write a
	// storage image whose format is not declared in the shader.
	StorageWriteWithoutFormat bool

	// PreferredFormat is the format used when the caller does not choose one.
	PreferredFormat bitmap.PixelFormat
}

// NegotiateFormat resolves the output format for a GPU job. An explicit
// request always wins. Otherwise the device's preferred format is used if
// the device can write it without a declared format.
func NegotiateFormat(requested bitmap.PixelFormat, caps Capabilities) (bitmap.PixelFormat, error) {
	if requested != bitmap.FormatDefault {
		return requested, nil
	}
	if !caps.StorageWriteWithoutFormat {
		return bitmap.FormatDefault, ErrUnsupportedDevice
	}
	if caps.PreferredFormat == bitmap.FormatDefault {
		return bitmap.FormatRGBA8, nil
	}
	return caps.PreferredFormat, nil
}

// Quantize converts coverage in [0, 1] to an 8-bit channel value.
func Quantize(c float32) uint8 {
	if !(c > 0) {
		return 0
	}
	if c >= 1 {
		return 255
	}
	return uint8(c*255 + 0.5)
}

// GainCurve remaps coverage c with exponent k, pushing mid-tones toward
// full or empty while fixing 0, 0.5 and 1. k == 1 is the identity.
func GainCurve(c, k float32) float32 {
	c = min(max(c, 0), 1)
	if c <= 0.5 {
		return 0.5 * float32(math.Pow(float64(2*c), float64(k)))
	}
	return 1 - 0.5*float32(math.Pow(float64(2-2*c), float64(k)))
}
