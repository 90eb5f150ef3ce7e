// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import (
	"github.com/gogpu/glyphraster/bitmap"
	"github.com/gogpu/glyphraster/outline"
)

// Edge is a line segment in pixel space, normalized so that YMin < YMax.
// Rows grow downward.
type Edge struct {
	// YMin is the top of the edge.
	YMin float32

	// YMax is the bottom of the edge.
	YMax float32

	// XAtYMin is the X coordinate at YMin.
	XAtYMin float32

	// DXDY is the inverse slope.
	DXDY float32

	// Winding is +1 when the source line runs downward, -1 when upward.
	Winding int8
}

// Epsilon is the minimum vertical extent of an edge.
const Epsilon = 1e-6

// NewEdge creates an edge from (x0, y0) to (x1, y1), deriving the winding
// from the direction of travel. It returns false for horizontal lines,
// which never cross a sample row.
func NewEdge(x0, y0, x1, y1 float32) (Edge, bool) {
	var winding int8 = 1
	if y0 > y1 {
		x0, x1 = x1, x0
		y0, y1 = y1, y0
		winding = -1
	}
	dy := y1 - y0
	if dy < Epsilon {
		return Edge{}, false
	}
	return Edge{
		YMin:    y0,
		YMax:    y1,
		XAtYMin: x0,
		DXDY:    (x1 - x0) / dy,
		Winding: winding,
	}, true
}

// XAtY returns the X coordinate of the edge at y.
func (e *Edge) XAtY(y float32) float32 {
	return e.XAtYMin + (y-e.YMin)*e.DXDY
}

// IsActiveAt reports whether a sample row at y crosses the edge.
// The interval is half-open, YMin <= y < YMax, so a vertex shared by two
// edges of one contour is counted exactly once.
func (e *Edge) IsActiveAt(y float32) bool {
	return y >= e.YMin && y < e.YMax
}

// EdgeList is the flattened, pixel-space form of a glyph outline.
type EdgeList struct {
	edges []Edge
}

// NewEdgeList creates an empty edge list.
func NewEdgeList() *EdgeList {
	return &EdgeList{edges: make([]Edge, 0, 64)}
}

// BuildEdges places o into the pixel grid described by p and flattens it at
// the tolerance of quality.
func BuildEdges(o *outline.Outline, p bitmap.Placement, quality FillQuality) *EdgeList {
	el := NewEdgeList()
	o.Flatten(p.Affine(), quality.Tolerance(), func(a, b outline.Point) {
		el.AddLine(a.X, a.Y, b.X, b.Y)
	})
	return el
}

// AddLine adds a line. Horizontal lines are dropped.
func (el *EdgeList) AddLine(x0, y0, x1, y1 float32) {
	if e, ok := NewEdge(x0, y0, x1, y1); ok {
		el.edges = append(el.edges, e)
	}
}

// Len returns the number of edges. A nil list has none.
func (el *EdgeList) Len() int {
	if el == nil {
		return 0
	}
	return len(el.edges)
}

// Edges returns the underlying slice.
func (el *EdgeList) Edges() []Edge {
	if el == nil {
		return nil
	}
	return el.edges
}

// SortByYMin sorts edges by their top coordinate.
func (el *EdgeList) SortByYMin() {
	// Insertion sort; contour order is mostly sorted already.
	for i := 1; i < len(el.edges); i++ {
		j := i
		for j > 0 && el.edges[j].YMin < el.edges[j-1].YMin {
			el.edges[j], el.edges[j-1] = el.edges[j-1], el.edges[j]
			j--
		}
	}
}

// Crossing is the intersection of an edge with a sample row.
type Crossing struct {
	X       float32
	Winding int8
}

// ActiveEdgeTable tracks the edges crossing the current sample row.
// Edges must be fed in YMin order.
type ActiveEdgeTable struct {
	edges   []*Edge
	next    int
	source  []Edge
	crosses []Crossing
}

// NewActiveEdgeTable creates a table over el, which is sorted in place.
func NewActiveEdgeTable(el *EdgeList) *ActiveEdgeTable {
	el.SortByYMin()
	return &ActiveEdgeTable{
		edges:   make([]*Edge, 0, 32),
		source:  el.edges,
		crosses: make([]Crossing, 0, 32),
	}
}

// Advance moves to sample row y, which must not decrease between calls, and
// returns the crossings sorted by X. The returned slice is reused.
func (aet *ActiveEdgeTable) Advance(y float32) []Crossing {
	for aet.next < len(aet.source) && aet.source[aet.next].YMin <= y {
		aet.edges = append(aet.edges, &aet.source[aet.next])
		aet.next++
	}

	j := 0
	for _, e := range aet.edges {
		if e.YMax > y {
			aet.edges[j] = e
			j++
		}
	}
	aet.edges = aet.edges[:j]

	aet.crosses = aet.crosses[:0]
	for _, e := range aet.edges {
		if !e.IsActiveAt(y) {
			continue
		}
		c := Crossing{X: e.XAtY(y), Winding: e.Winding}
		// Insertion sort by X; crossings stay nearly sorted row to row.
		i := len(aet.crosses)
		aet.crosses = append(aet.crosses, c)
		for i > 0 && aet.crosses[i-1].X > c.X {
			aet.crosses[i] = aet.crosses[i-1]
			i--
		}
		aet.crosses[i] = c
	}
	return aet.crosses
}
