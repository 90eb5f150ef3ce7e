// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package raster defines the contour rasterization contract shared by the
// CPU and GPU backends.
//
// A glyph outline is placed into a pixel grid and flattened into an
// EdgeList. Each pixel is supersampled on an N×N grid, with N chosen by
// SampleQuality (2, 4 or 8). Sample (i, j) of pixel (px, py) sits at
//
//	x = px + (i+0.5)/N
//	y = py + (j+0.5)/N
//
// and is inside the glyph when the signed sum of edge windings crossing
// its row strictly to its left is nonzero (the nonzero winding rule). An
// edge crosses row y when YMin <= y < YMax. Coverage is the fraction of
// inside samples and is quantized to 8 bits with Quantize.
//
// Pixels store coverage in R, G and B, with A = max(R, G, B). With
// subpixel rendering enabled each color channel is sampled over its own
// horizontal third of the pixel instead.
//
// Backends are independent implementations of this contract; a Job
// carries everything a backend needs for one glyph.
package raster
