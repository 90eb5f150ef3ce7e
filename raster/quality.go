// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

// SampleQuality selects the supersampling grid size.
type SampleQuality uint8

const (
	// SampleNormal uses a 4×4 grid. It is the zero value.
	SampleNormal SampleQuality = iota
	// SampleCoarse uses a 2×2 grid.
	SampleCoarse
	// SampleFine uses an 8×8 grid.
	SampleFine
)

// Samples returns N, the per-axis sample count.
func (q SampleQuality) Samples() int {
	switch q {
	case SampleCoarse:
		return 2
	case SampleFine:
		return 8
	default:
		return 4
	}
}

// String returns the quality name.
func (q SampleQuality) String() string {
	return qualityName(uint8(q))
}

// FillQuality selects the curve flattening tolerance.
type FillQuality uint8

const (
	// FillNormal flattens within 0.2 px. It is the zero value.
	FillNormal FillQuality = iota
	// FillCoarse flattens within 0.5 px.
	FillCoarse
	// FillFine flattens within 0.05 px.
	FillFine
)

// Tolerance returns the maximum distance in pixels between a curve and
// its flattened polyline.
func (q FillQuality) Tolerance() float32 {
	switch q {
	case FillCoarse:
		return 0.5
	case FillFine:
		return 0.05
	default:
		return 0.2
	}
}

// String returns the quality name.
func (q FillQuality) String() string {
	return qualityName(uint8(q))
}

func qualityName(q uint8) string {
	switch q {
	case 0:
		return "Normal"
	case 1:
		return "Coarse"
	case 2:
		return "Fine"
	default:
		return "Unknown"
	}
}

// Subpixel selects LCD subpixel rendering.
type Subpixel uint8

const (
	// SubpixelNone renders grayscale coverage.
	SubpixelNone Subpixel = iota
	// SubpixelRGB assumes red on the left of each pixel.
	SubpixelRGB
	// SubpixelBGR assumes blue on the left of each pixel.
	SubpixelBGR
	// SubpixelVRGB assumes red on top of each pixel, as on a display
	// rotated clockwise to portrait.
	SubpixelVRGB
	// SubpixelVBGR assumes blue on top of each pixel.
	SubpixelVBGR
)

// Vertical reports whether the subpixels are stacked top to bottom.
func (s Subpixel) Vertical() bool {
	return s == SubpixelVRGB || s == SubpixelVBGR
}

// Reversed reports whether the first subpixel is blue.
func (s Subpixel) Reversed() bool {
	return s == SubpixelBGR || s == SubpixelVBGR
}

// String returns the layout name.
func (s Subpixel) String() string {
	switch s {
	case SubpixelNone:
		return "None"
	case SubpixelRGB:
		return "RGB"
	case SubpixelBGR:
		return "BGR"
	case SubpixelVRGB:
		return "VRGB"
	case SubpixelVBGR:
		return "VBGR"
	default:
		return "Unknown"
	}
}
