// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package outline

import "math"

// maxSubdivisions caps the number of lines a single curve is split into.
const maxSubdivisions = 64

// Flatten transforms the outline by m and approximates every curve with
// line segments whose distance from the true curve is at most tolerance,
// measured in the transformed space. emit is called once per line in
// contour order. Zero-length lines are skipped.
//
// Subdivision counts follow Wang's formula for uniform parameter steps.
func (o *Outline) Flatten(m Affine, tolerance float32, emit func(p0, p1 Point)) {
	if o.IsEmpty() {
		return
	}
	if !(tolerance > 0) {
		tolerance = 0.25
	}
	line := func(a, b Point) {
		if a != b {
			emit(a, b)
		}
	}
	for i := range o.Contours {
		c := &o.Contours[i]
		p0 := m.Apply(c.Start)
		for _, s := range c.Segments {
			switch s.Kind {
			case Line:
				p1 := m.Apply(s.Points[0])
				line(p0, p1)
				p0 = p1
			case Quad:
				c1, p2 := m.Apply(s.Points[0]), m.Apply(s.Points[1])
				n := QuadSubdivisions(p0, c1, p2, tolerance)
				prev := p0
				for k := 1; k <= n; k++ {
					next := p2
					if k < n {
						next = evalQuad(p0, c1, p2, float32(k)/float32(n))
					}
					line(prev, next)
					prev = next
				}
				p0 = p2
			case Cubic:
				c1, c2, p3 := m.Apply(s.Points[0]), m.Apply(s.Points[1]), m.Apply(s.Points[2])
				n := CubicSubdivisions(p0, c1, c2, p3, tolerance)
				prev := p0
				for k := 1; k <= n; k++ {
					next := p3
					if k < n {
						next = evalCubic(p0, c1, c2, p3, float32(k)/float32(n))
					}
					line(prev, next)
					prev = next
				}
				p0 = p3
			}
		}
	}
}

// QuadSubdivisions returns the number of uniform steps needed to keep a
// quadratic curve within tol of its polyline.
func QuadSubdivisions(p0, p1, p2 Point, tol float32) int {
	dx := p0.X - 2*p1.X + p2.X
	dy := p0.Y - 2*p1.Y + p2.Y
	dd := math.Hypot(float64(dx), float64(dy))
	return clampSteps(math.Sqrt(dd / (4 * float64(tol))))
}

// CubicSubdivisions returns the number of uniform steps needed to keep a
// cubic curve within tol of its polyline.
func CubicSubdivisions(p0, p1, p2, p3 Point, tol float32) int {
	d1 := math.Hypot(float64(p0.X-2*p1.X+p2.X), float64(p0.Y-2*p1.Y+p2.Y))
	d2 := math.Hypot(float64(p1.X-2*p2.X+p3.X), float64(p1.Y-2*p2.Y+p3.Y))
	return clampSteps(math.Sqrt(3 * max(d1, d2) / (4 * float64(tol))))
}

func clampSteps(n float64) int {
	steps := int(math.Ceil(n))
	if steps < 1 {
		return 1
	}
	if steps > maxSubdivisions {
		return maxSubdivisions
	}
	return steps
}

func evalQuad(p0, p1, p2 Point, t float32) Point {
	mt := 1 - t
	a, b, c := mt*mt, 2*mt*t, t*t
	return Point{
		X: a*p0.X + b*p1.X + c*p2.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y,
	}
}

func evalCubic(p0, p1, p2, p3 Point, t float32) Point {
	mt := 1 - t
	a, b, c, d := mt*mt*mt, 3*mt*mt*t, 3*mt*t*t, t*t*t
	return Point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}
