// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package outline provides a font-format independent model of glyph
// vector outlines.
//
// An Outline is an ordered set of closed contours. Each contour is a
// sequence of line, quadratic and cubic Bézier segments in font design
// units (y grows upward). Outlines are produced by a font parser and
// consumed by the rasterizer backends, which flatten curves into line
// edges at a tolerance chosen by the caller.
//
// An Outline with zero contours is valid and describes a glyph without
// visible marks, such as a space.
package outline

import "math"

// Point is a 2D point in font design units.
type Point struct {
	X, Y float32
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float32) Point {
	return Point{X: x, Y: y}
}

// Kind identifies the segment type.
type Kind uint8

const (
	// Line is a straight segment to Points[0].
	Line Kind = iota
	// Quad is a quadratic Bézier with control Points[0] ending at Points[1].
	Quad
	// Cubic is a cubic Bézier with controls Points[0], Points[1] ending at Points[2].
	Cubic
)

// String returns the segment kind name.
func (k Kind) String() string {
	switch k {
	case Line:
		return "Line"
	case Quad:
		return "Quad"
	case Cubic:
		return "Cubic"
	default:
		return "Unknown"
	}
}

// Segment is one piece of a contour. The start point is the end point of
// the previous segment (or the contour start).
type Segment struct {
	Kind   Kind
	Points [3]Point
}

// End returns the segment end point.
func (s Segment) End() Point {
	switch s.Kind {
	case Quad:
		return s.Points[1]
	case Cubic:
		return s.Points[2]
	default:
		return s.Points[0]
	}
}

// Direction is the winding direction of a contour in design space.
type Direction int8

const (
	// CounterClockwise contours have positive signed area (y up).
	CounterClockwise Direction = 1
	// Clockwise contours have negative signed area (y up).
	Clockwise Direction = -1
)

// String returns the direction name.
func (d Direction) String() string {
	if d == Clockwise {
		return "Clockwise"
	}
	return "CounterClockwise"
}

// Contour is a closed sequence of segments.
type Contour struct {
	Start     Point
	Segments  []Segment
	Direction Direction
}

// Outline is an ordered set of closed contours.
type Outline struct {
	Contours []Contour
}

// IsEmpty reports whether the outline has no contours.
func (o *Outline) IsEmpty() bool {
	return o == nil || len(o.Contours) == 0
}

// Rect is an axis-aligned box.
type Rect struct {
	MinX, MinY, MaxX, MaxY float32
}

// Empty reports whether the box has no area.
func (r Rect) Empty() bool {
	return !(r.MaxX > r.MinX) || !(r.MaxY > r.MinY)
}

// Bounds returns the box enclosing every on- and off-curve point of the
// outline. Bézier curves lie inside the hull of their control points, so
// the result encloses the filled shape. An empty outline has a zero Rect.
func (o *Outline) Bounds() Rect {
	if o.IsEmpty() {
		return Rect{}
	}
	r := Rect{
		MinX: float32(math.Inf(1)), MinY: float32(math.Inf(1)),
		MaxX: float32(math.Inf(-1)), MaxY: float32(math.Inf(-1)),
	}
	add := func(p Point) {
		r.MinX = min(r.MinX, p.X)
		r.MinY = min(r.MinY, p.Y)
		r.MaxX = max(r.MaxX, p.X)
		r.MaxY = max(r.MaxY, p.Y)
	}
	for i := range o.Contours {
		c := &o.Contours[i]
		add(c.Start)
		for _, s := range c.Segments {
			n := pointCount(s.Kind)
			for j := 0; j < n; j++ {
				add(s.Points[j])
			}
		}
	}
	return r
}

func pointCount(k Kind) int {
	switch k {
	case Quad:
		return 2
	case Cubic:
		return 3
	default:
		return 1
	}
}

// Transform returns a copy of the outline with m applied to every point.
// Contour directions are recomputed, since a reflection flips them.
func (o *Outline) Transform(m Affine) *Outline {
	if o.IsEmpty() {
		return &Outline{}
	}
	out := &Outline{Contours: make([]Contour, len(o.Contours))}
	for i := range o.Contours {
		src := &o.Contours[i]
		dst := Contour{
			Start:    m.Apply(src.Start),
			Segments: make([]Segment, len(src.Segments)),
		}
		for j, s := range src.Segments {
			n := pointCount(s.Kind)
			for k := 0; k < n; k++ {
				s.Points[k] = m.Apply(s.Points[k])
			}
			dst.Segments[j] = s
		}
		dst.Direction = dst.direction()
		out.Contours[i] = dst
	}
	return out
}

// direction computes the winding direction from the signed area of the
// control polygon.
func (c *Contour) direction() Direction {
	var area float64
	prev := c.Start
	for _, s := range c.Segments {
		n := pointCount(s.Kind)
		for k := 0; k < n; k++ {
			p := s.Points[k]
			area += float64(prev.X)*float64(p.Y) - float64(p.X)*float64(prev.Y)
			prev = p
		}
	}
	if area < 0 {
		return Clockwise
	}
	return CounterClockwise
}

// Affine is a 2x3 transformation matrix:
//
//	x' = a*x + b*y + c
//	y' = d*x + e*y + f
type Affine struct {
	A, B, C float32
	D, E, F float32
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{A: 1, E: 1}
}

// Apply transforms p.
func (m Affine) Apply(p Point) Point {
	return Point{
		X: m.A*p.X + m.B*p.Y + m.C,
		Y: m.D*p.X + m.E*p.Y + m.F,
	}
}
