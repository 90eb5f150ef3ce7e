// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package outline

// Builder accumulates path commands into an Outline.
//
// Contours are closed implicitly: MoveTo and Outline close any open
// contour with a line back to its start point when the last point
// differs. A MoveTo without following segments is discarded.
//
//	var b outline.Builder
//	b.MoveTo(0, 0)
//	b.LineTo(100, 0)
//	b.LineTo(50, 80)
//	o := b.Outline()
type Builder struct {
	contours []Contour
	cur      *Contour
	last     Point
}

// MoveTo starts a new contour at (x, y).
func (b *Builder) MoveTo(x, y float32) {
	b.Close()
	b.cur = &Contour{Start: Pt(x, y)}
	b.last = b.cur.Start
}

// LineTo appends a line to (x, y).
func (b *Builder) LineTo(x, y float32) {
	b.add(Segment{Kind: Line, Points: [3]Point{Pt(x, y)}})
}

// QuadTo appends a quadratic Bézier with control (cx, cy) ending at (x, y).
func (b *Builder) QuadTo(cx, cy, x, y float32) {
	b.add(Segment{Kind: Quad, Points: [3]Point{Pt(cx, cy), Pt(x, y)}})
}

// CubeTo appends a cubic Bézier with controls (c1x, c1y), (c2x, c2y) ending at (x, y).
func (b *Builder) CubeTo(c1x, c1y, c2x, c2y, x, y float32) {
	b.add(Segment{Kind: Cubic, Points: [3]Point{Pt(c1x, c1y), Pt(c2x, c2y), Pt(x, y)}})
}

func (b *Builder) add(s Segment) {
	if b.cur == nil {
		b.cur = &Contour{Start: b.last}
	}
	b.cur.Segments = append(b.cur.Segments, s)
	b.last = s.End()
}

// Close closes the current contour, if any.
func (b *Builder) Close() {
	c := b.cur
	b.cur = nil
	if c == nil || len(c.Segments) == 0 {
		return
	}
	if b.last != c.Start {
		c.Segments = append(c.Segments, Segment{Kind: Line, Points: [3]Point{c.Start}})
	}
	b.last = c.Start
	c.Direction = c.direction()
	b.contours = append(b.contours, *c)
}

// Outline closes any open contour and returns the accumulated outline.
// The Builder is reset and can be reused.
func (b *Builder) Outline() *Outline {
	b.Close()
	o := &Outline{Contours: b.contours}
	b.contours = nil
	return o
}
