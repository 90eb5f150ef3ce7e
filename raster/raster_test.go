// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package raster

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/glyphraster/bitmap"
	"github.com/gogpu/glyphraster/outline"
)

func TestNewEdge_Winding(t *testing.T) {
	tests := []struct {
		name        string
		x0, y0      float32
		x1, y1      float32
		wantOK      bool
		wantWinding int8
	}{
		{"downward", 0, 0, 5, 10, true, 1},
		{"upward", 5, 10, 0, 0, true, -1},
		{"horizontal", 0, 3, 9, 3, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := NewEdge(tt.x0, tt.y0, tt.x1, tt.y1)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if e.Winding != tt.wantWinding {
				t.Errorf("Winding = %d, want %d", e.Winding, tt.wantWinding)
			}
			if e.YMin != 0 || e.YMax != 10 || e.XAtYMin != 0 {
				t.Errorf("edge = %+v, want normalized 0..10 starting at x=0", e)
			}
			if got := e.XAtY(5); got != 2.5 {
				t.Errorf("XAtY(5) = %v, want 2.5", got)
			}
		})
	}
}

func TestEdge_HalfOpenInterval(t *testing.T) {
	e, _ := NewEdge(0, 2, 0, 4)
	for _, tt := range []struct {
		y    float32
		want bool
	}{{1.9, false}, {2, true}, {3.9, true}, {4, false}} {
		if got := e.IsActiveAt(tt.y); got != tt.want {
			t.Errorf("IsActiveAt(%v) = %v, want %v", tt.y, got, tt.want)
		}
	}
}

func TestActiveEdgeTable_SquareCrossings(t *testing.T) {
	var b outline.Builder
	b.MoveTo(1, 1)
	b.LineTo(5, 1)
	b.LineTo(5, 5)
	b.LineTo(1, 5)
	el := BuildEdges(b.Outline(), bitmap.Placement{Scale: 1, OriginY: 6}, FillNormal)
	if el.Len() != 2 {
		t.Fatalf("edges = %d, want 2 (horizontals dropped)", el.Len())
	}

	aet := NewActiveEdgeTable(el)
	if got := aet.Advance(0.5); len(got) != 0 {
		t.Errorf("row 0.5: %d crossings, want 0", len(got))
	}
	got := aet.Advance(3)
	if len(got) != 2 {
		t.Fatalf("row 3: %d crossings, want 2", len(got))
	}
	if got[0].X != 1 || got[1].X != 5 {
		t.Errorf("crossings at %v, %v, want 1, 5", got[0].X, got[1].X)
	}
	if got[0].Winding+got[1].Winding != 0 {
		t.Errorf("windings %d, %d do not cancel", got[0].Winding, got[1].Winding)
	}
	if got := aet.Advance(5.5); len(got) != 0 {
		t.Errorf("row 5.5: %d crossings, want 0", len(got))
	}
}

func TestQuality(t *testing.T) {
	if got := []int{SampleCoarse.Samples(), SampleNormal.Samples(), SampleFine.Samples()}; got[0] != 2 || got[1] != 4 || got[2] != 8 {
		t.Errorf("Samples() = %v, want [2 4 8]", got)
	}
	if !(FillCoarse.Tolerance() > FillNormal.Tolerance() && FillNormal.Tolerance() > FillFine.Tolerance()) {
		t.Error("fill tolerances are not decreasing with quality")
	}
}

func TestJob_Validate(t *testing.T) {
	el := NewEdgeList()
	el.AddLine(0, 0, 0, 1)
	tests := []struct {
		name    string
		job     Job
		wantErr error
	}{
		{"empty", Job{}, nil},
		{"ok", Job{Width: 8, Height: 8, Samples: 4, Edges: el}, nil},
		{"too wide", Job{Width: MaxDimension + 1, Height: 8, Samples: 4, Edges: el}, ErrResourceAllocation},
		{"no edges", Job{Width: 1, Height: 1, Samples: 4}, nil},
		{"default gain", Job{Width: 8, Height: 8, Samples: 4, Edges: el, Gain: 0}, nil},
		{"negative gain", Job{Width: 8, Height: 8, Samples: 4, Edges: el, Gain: -1}, ErrInvalidGain},
		{"nan gain", Job{Width: 8, Height: 8, Samples: 4, Edges: el, Gain: float32(math.NaN())}, ErrInvalidGain},
		{"inf gain", Job{Width: 8, Height: 8, Samples: 4, Edges: el, Gain: float32(math.Inf(1))}, ErrInvalidGain},
		{"bad gain on empty job", Job{Gain: -2}, ErrInvalidGain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestJob_IsEmpty(t *testing.T) {
	tests := []struct {
		name string
		job  Job
		want bool
	}{
		{"zero", Job{}, true},
		{"zero height", Job{Width: 4}, true},
		{"area without edges", Job{Width: 4, Height: 1}, false},
		{"area with empty list", Job{Width: 4, Height: 1, Edges: NewEdgeList()}, false},
	}
	for _, tt := range tests {
		if got := tt.job.IsEmpty(); got != tt.want {
			t.Errorf("%s: IsEmpty() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSubpixel_Layout(t *testing.T) {
	tests := []struct {
		s        Subpixel
		name     string
		vertical bool
		reversed bool
	}{
		{SubpixelNone, "None", false, false},
		{SubpixelRGB, "RGB", false, false},
		{SubpixelBGR, "BGR", false, true},
		{SubpixelVRGB, "VRGB", true, false},
		{SubpixelVBGR, "VBGR", true, true},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
		if got := tt.s.Vertical(); got != tt.vertical {
			t.Errorf("%s.Vertical() = %v, want %v", tt.name, got, tt.vertical)
		}
		if got := tt.s.Reversed(); got != tt.reversed {
			t.Errorf("%s.Reversed() = %v, want %v", tt.name, got, tt.reversed)
		}
	}
}

func TestNegotiateFormat(t *testing.T) {
	tests := []struct {
		name      string
		requested bitmap.PixelFormat
		caps      Capabilities
		want      bitmap.PixelFormat
		wantErr   error
	}{
		{"explicit without capability", bitmap.FormatBGRA8, Capabilities{}, bitmap.FormatBGRA8, nil},
		{"default without capability", bitmap.FormatDefault, Capabilities{}, bitmap.FormatDefault, ErrUnsupportedDevice},
		{"default uses preferred", bitmap.FormatDefault, Capabilities{StorageWriteWithoutFormat: true, PreferredFormat: bitmap.FormatBGRA8}, bitmap.FormatBGRA8, nil},
		{"default falls back to RGBA", bitmap.FormatDefault, Capabilities{StorageWriteWithoutFormat: true}, bitmap.FormatRGBA8, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NegotiateFormat(tt.requested, tt.caps)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("format = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGainCurve(t *testing.T) {
	for _, k := range []float32{1, 1.4, 2.2} {
		for _, c := range []float32{0, 0.5, 1} {
			if got := GainCurve(c, k); got != c {
				t.Errorf("GainCurve(%v, %v) = %v, want fixed point", c, k, got)
			}
		}
		prev := float32(-1)
		for i := 0; i <= 100; i++ {
			got := GainCurve(float32(i)/100, k)
			if got < prev {
				t.Errorf("k=%v: not monotonic at %v", k, float32(i)/100)
			}
			prev = got
		}
	}
	if got := GainCurve(0.25, 2); got >= 0.25 {
		t.Errorf("GainCurve(0.25, 2) = %v, want darker than 0.25", got)
	}
	if got := GainCurve(0.3, 1); got < 0.2999 || got > 0.3001 {
		t.Errorf("GainCurve(0.3, 1) = %v, want identity", got)
	}
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		c    float32
		want uint8
	}{{-1, 0}, {0, 0}, {0.5, 128}, {1, 255}, {2, 255}}
	for _, tt := range tests {
		if got := Quantize(tt.c); got != tt.want {
			t.Errorf("Quantize(%v) = %d, want %d", tt.c, got, tt.want)
		}
	}
}
