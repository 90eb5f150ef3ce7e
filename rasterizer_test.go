package glyphraster

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/gogpu/glyphraster/bitmap"
	"github.com/gogpu/glyphraster/gpu"
	"github.com/gogpu/glyphraster/outline"
	"github.com/gogpu/glyphraster/raster"
	"github.com/gogpu/glyphraster/text"
)

var capable = raster.Capabilities{StorageWriteWithoutFormat: true, PreferredFormat: bitmap.FormatRGBA8}

// shapeFont is a two-glyph font: glyph 0 is empty, glyph 1 is shape.
type shapeFont struct {
	id    uint64
	upem  uint16
	shape *outline.Outline

	outlines atomic.Int64
}

var nextShapeFontID atomic.Uint64

func newShapeFont(upem uint16, shape *outline.Outline) *shapeFont {
	// Keep clear of text.FontSource IDs.
	return &shapeFont{id: 1<<63 | nextShapeFontID.Add(1), upem: upem, shape: shape}
}

func (f *shapeFont) Outline(gid text.GlyphID) (*outline.Outline, error) {
	f.outlines.Add(1)
	if gid == 1 {
		return f.shape, nil
	}
	return &outline.Outline{}, nil
}

func (f *shapeFont) Properties() text.Properties {
	b := f.shape.Bounds()
	return text.Properties{
		UnitsPerEm: f.upem,
		MinX:       b.MinX,
		MaxX:       b.MaxX,
		MinY:       b.MinY,
		MaxY:       b.MaxY,
		NumGlyphs:  2,
	}
}

func (f *shapeFont) ID() uint64 { return f.id }

// triangle returns the convex triangle (x,y), (x+64,y), (x+32,y+64).
func triangle(x, y float32) *outline.Outline {
	var b outline.Builder
	b.MoveTo(x, y)
	b.LineTo(x+64, y)
	b.LineTo(x+32, y+64)
	return b.Outline()
}

// countingGPU wraps a backend and counts calls. It fails when fail is set
// and sleeps delay per call.
type countingGPU struct {
	GPUBackend
	calls atomic.Int64
	fail  atomic.Bool
	delay time.Duration
}

func (c *countingGPU) Rasterize(job *raster.Job) (bitmap.Data, error) {
	c.calls.Add(1)
	time.Sleep(c.delay)
	if c.fail.Load() {
		return bitmap.Data{}, errors.New("device lost")
	}
	return c.GPUBackend.Rasterize(job)
}

func newCountingGPU(caps raster.Capabilities) *countingGPU {
	return &countingGPU{GPUBackend: gpu.NewSoftware(caps)}
}

func mustNew(t *testing.T, font Font, opts ...Option) *Rasterizer {
	t.Helper()
	r, err := New(font, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func loadGoRegular(t *testing.T) *text.FontSource {
	t.Helper()
	src, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	return src
}

func mustGlyph(t *testing.T, src *text.FontSource, r rune) text.GlyphID {
	t.Helper()
	gid, ok := src.GlyphIndex(r)
	if !ok {
		t.Fatalf("no glyph for %q", r)
	}
	return gid
}

func alphaAt(g *Glyph, x, y int) uint8 {
	return g.Data.Pix()[(y*int(g.Metrics.Width)+x)*bitmap.BytesPerPixel+3]
}

var bothBackends = []struct {
	name string
	opts RasterOptions
}{
	{"cpu", RasterOptions{Backend: BackendCPU}},
	{"gpu", RasterOptions{Backend: BackendGPU, Gain: 1}},
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("nil font: expected error")
	}
	f := newShapeFont(0, triangle(0, 0))
	if _, err := New(f); err == nil {
		t.Error("zero units per em: expected error")
	}
}

func TestRasterize_Empty(t *testing.T) {
	src := loadGoRegular(t)
	r := mustNew(t, src, WithGPU(gpu.NewSoftware(raster.Capabilities{})))
	space := mustGlyph(t, src, ' ')
	a := mustGlyph(t, src, 'a')

	tests := []struct {
		name string
		gid  text.GlyphID
		size float32
	}{
		{"no contours", space, 32},
		{"zero size", a, 0},
		{"negative size", a, -12},
		{"nan size", a, float32(math.NaN())},
	}
	for _, be := range bothBackends {
		for _, tt := range tests {
			t.Run(be.name+"/"+tt.name, func(t *testing.T) {
				// The GPU device here lacks format-less writes: empty glyphs
				// must short-circuit before format negotiation.
				g, err := r.Rasterize(tt.gid, tt.size, be.opts)
				if err != nil {
					t.Fatalf("Rasterize: %v", err)
				}
				if !g.Data.IsEmpty() || !g.Metrics.IsZero() {
					t.Errorf("got %v %+v, want Empty with zero metrics", g.Data.Kind(), g.Metrics)
				}
			})
		}
	}
}

func TestRasterize_NeverEmptyForInk(t *testing.T) {
	src := loadGoRegular(t)
	r := mustNew(t, src, WithGPU(gpu.NewSoftware(capable)))

	for _, be := range bothBackends {
		for _, ch := range "Ag.,|-" {
			for _, size := range []float32{1, 7.5, 16, 48} {
				g, err := r.Rasterize(mustGlyph(t, src, ch), size, be.opts)
				if err != nil {
					t.Fatalf("%s %q@%v: %v", be.name, ch, size, err)
				}
				if g.Data.IsEmpty() || g.Metrics.IsZero() {
					t.Errorf("%s %q@%v: got Empty", be.name, ch, size)
				}
			}
		}
	}
}

func TestRasterize_Cached(t *testing.T) {
	src := loadGoRegular(t)
	r := mustNew(t, src)
	gid := mustGlyph(t, src, 'R')

	first, err := r.Rasterize(gid, 24, RasterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Rasterize(gid, 24, RasterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("second call returned a different glyph, want the cached one")
	}
	if s := r.Stats(); s.Dispatches != 1 || s.Glyphs != 1 || s.Hits != 1 {
		t.Errorf("stats = %+v, want 1 dispatch, 1 glyph, 1 hit", s)
	}

	// Any option change is a different key.
	if _, err := r.Rasterize(gid, 24, RasterOptions{AlignWholePixels: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Rasterize(gid, 25, RasterOptions{}); err != nil {
		t.Fatal(err)
	}
	if s := r.Stats(); s.Dispatches != 3 || s.Glyphs != 3 {
		t.Errorf("stats = %+v, want 3 dispatches and glyphs", s)
	}
}

func TestRasterize_SingleFlight(t *testing.T) {
	f := newShapeFont(64, triangle(0, 0))
	dev := newCountingGPU(capable)
	dev.delay = 20 * time.Millisecond
	r := mustNew(t, f, WithGPU(dev))

	const callers = 16
	results := make([]*Glyph, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := r.Rasterize(1, 64, RasterOptions{Backend: BackendGPU})
			if err != nil {
				t.Errorf("Rasterize: %v", err)
			}
			results[i] = g
		}()
	}
	wg.Wait()

	if n := dev.calls.Load(); n != 1 {
		t.Errorf("backend calls = %d, want 1", n)
	}
	for i, g := range results {
		if g != results[0] {
			t.Errorf("caller %d observed a different glyph", i)
		}
	}
}

func TestRasterize_IndependentKeys(t *testing.T) {
	f := newShapeFont(64, triangle(0, 0))
	dev := newCountingGPU(capable)
	dev.delay = 50 * time.Millisecond
	r := mustNew(t, f, WithGPU(dev))

	start := time.Now()
	var wg sync.WaitGroup
	for size := float32(10); size < 18; size++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Rasterize(1, size, RasterOptions{Backend: BackendGPU}); err != nil {
				t.Errorf("Rasterize: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := dev.calls.Load(); n != 8 {
		t.Errorf("backend calls = %d, want 8", n)
	}
	// Eight serialized calls would take 400ms.
	if d := time.Since(start); d > 300*time.Millisecond {
		t.Errorf("distinct keys took %v, want them to run concurrently", d)
	}
}

func TestRasterize_ConvexScenario(t *testing.T) {
	f := newShapeFont(64, triangle(0, 0))
	r := mustNew(t, f, WithGPU(gpu.NewSoftware(capable)))

	for _, be := range bothBackends {
		t.Run(be.name, func(t *testing.T) {
			opts := be.opts
			opts.SampleQuality = SampleFine
			opts.AlignWholePixels = true
			g, err := r.Rasterize(1, 64, opts)
			if err != nil {
				t.Fatal(err)
			}
			if g.Metrics.Width != 64 || g.Metrics.Height != 64 {
				t.Fatalf("metrics = %+v, want 64x64", g.Metrics)
			}
			// Centroid (32, 21.33) y up is row 42.
			if a := alphaAt(g, 32, 42); a != 255 {
				t.Errorf("centroid alpha = %d, want 255", a)
			}
			// Top corners lie inside the box but outside the triangle.
			if a := alphaAt(g, 0, 0); a != 0 {
				t.Errorf("corner alpha = %d, want 0", a)
			}
			if a := alphaAt(g, 63, 0); a != 0 {
				t.Errorf("corner alpha = %d, want 0", a)
			}
		})
	}
}

func TestRasterize_AlignWholePixelsKeepsInk(t *testing.T) {
	// Fractional offsets: unaligned boxes would have to be snapped.
	f := newShapeFont(64, triangle(0.3, 0.6))
	r := mustNew(t, f)

	for _, align := range []bool{false, true} {
		g, err := r.Rasterize(1, 64, RasterOptions{SampleQuality: SampleFine, FillQuality: FillFine, AlignWholePixels: align})
		if err != nil {
			t.Fatal(err)
		}
		var sum float64
		for i := 3; i < len(g.Data.Pix()); i += 4 {
			sum += float64(g.Data.Pix()[i]) / 255
		}
		// Triangle area is 2048 px; clipped samples would lose ink.
		if math.Abs(sum-2048) > 2048*0.01 {
			t.Errorf("align=%v: ink = %.1f px, want ~2048", align, sum)
		}
		if align {
			if g.Metrics.Width != 65 || g.Metrics.Height != 65 {
				t.Errorf("aligned metrics = %+v, want 65x65", g.Metrics)
			}
			if g.Metrics.BearingX != 0 || g.Metrics.BearingY != 65 {
				t.Errorf("aligned bearings = %d,%d, want 0,65", g.Metrics.BearingX, g.Metrics.BearingY)
			}
		}
	}
}

func TestRasterize_BackendsConverge(t *testing.T) {
	src := loadGoRegular(t)
	r := mustNew(t, src, WithGPU(gpu.NewSoftware(capable)))

	for _, q := range []SampleQuality{SampleCoarse, SampleNormal, SampleFine} {
		for _, ch := range "gQ&" {
			gid := mustGlyph(t, src, ch)
			cpu, err := r.Rasterize(gid, 28, RasterOptions{SampleQuality: q})
			if err != nil {
				t.Fatal(err)
			}
			gpuGlyph, err := r.Rasterize(gid, 28, RasterOptions{Backend: BackendGPU, SampleQuality: q, Gain: 1})
			if err != nil {
				t.Fatal(err)
			}
			if cpu.Metrics != gpuGlyph.Metrics {
				t.Fatalf("%q: metrics %+v vs %+v", ch, cpu.Metrics, gpuGlyph.Metrics)
			}
			n := q.Samples()
			tol := 255/(n*n) + 1
			a, b := cpu.Data.Pix(), gpuGlyph.Data.Pix()
			for i := range a {
				if d := int(a[i]) - int(b[i]); d > tol || d < -tol {
					t.Fatalf("%q %v: byte %d: cpu %d, gpu %d (tol %d)", ch, q, i, a[i], b[i], tol)
				}
			}
		}
	}
}

func TestRasterize_AlphaIsMaxChannel(t *testing.T) {
	src := loadGoRegular(t)
	r := mustNew(t, src, WithGPU(gpu.NewSoftware(capable)))

	for _, opts := range []RasterOptions{
		{},
		{Backend: BackendGPU, Subpixel: SubpixelRGB},
		{Backend: BackendGPU, Subpixel: SubpixelBGR, OutputFormat: FormatRGBA8},
		{Backend: BackendGPU, Subpixel: SubpixelVRGB},
		{Backend: BackendGPU, Subpixel: SubpixelVBGR, OutputFormat: FormatBGRA8},
	} {
		g, err := r.Rasterize(mustGlyph(t, src, 'W'), 20, opts)
		if err != nil {
			t.Fatal(err)
		}
		pix := g.Data.Pix()
		for i := 0; i < len(pix); i += 4 {
			want := max(pix[i], pix[i+1], pix[i+2])
			if pix[i+3] != want {
				t.Fatalf("%+v: pixel %d = %v, want alpha %d", opts, i/4, pix[i:i+4], want)
			}
		}
	}
}

func TestRasterize_Errors(t *testing.T) {
	src := loadGoRegular(t)
	gid := mustGlyph(t, src, 'x')

	t.Run("invalid glyph", func(t *testing.T) {
		r := mustNew(t, src)
		_, err := r.Rasterize(text.GlyphID(src.Properties().NumGlyphs), 16, RasterOptions{})
		if !errors.Is(err, ErrInvalidGlyph) {
			t.Fatalf("err = %v, want ErrInvalidGlyph", err)
		}
		var ge *GlyphError
		if !errors.As(err, &ge) || ge.Op != "rasterize" {
			t.Errorf("err = %#v, want *GlyphError", err)
		}
	})

	t.Run("no gpu", func(t *testing.T) {
		r := mustNew(t, src)
		if _, err := r.Rasterize(gid, 16, RasterOptions{Backend: BackendGPU}); !errors.Is(err, ErrUnsupportedDevice) {
			t.Errorf("err = %v, want ErrUnsupportedDevice", err)
		}
	})

	t.Run("unsupported device", func(t *testing.T) {
		r := mustNew(t, src, WithGPU(gpu.NewSoftware(raster.Capabilities{})))
		if _, err := r.Rasterize(gid, 16, RasterOptions{Backend: BackendGPU}); !errors.Is(err, ErrUnsupportedDevice) {
			t.Fatalf("err = %v, want ErrUnsupportedDevice", err)
		}
		if n := r.Stats().Glyphs; n != 0 {
			t.Errorf("cached glyphs = %d, want 0", n)
		}
		g, err := r.Rasterize(gid, 16, RasterOptions{Backend: BackendGPU, OutputFormat: FormatBGRA8})
		if err != nil {
			t.Fatalf("explicit format: %v", err)
		}
		if g.Data.Format() != FormatBGRA8 {
			t.Errorf("format = %v, want BGRA8", g.Data.Format())
		}
	})

	t.Run("invalid gain", func(t *testing.T) {
		r := mustNew(t, newShapeFont(64, triangle(0, 0)), WithGPU(gpu.NewSoftware(capable)))
		for _, tt := range bothBackends {
			for _, g := range []float32{-1, float32(math.NaN()), float32(math.Inf(1))} {
				opts := tt.opts
				opts.Gain = g
				if _, err := r.Rasterize(1, 64, opts); !errors.Is(err, ErrInvalidGain) {
					t.Errorf("%s gain %v: err = %v, want ErrInvalidGain", tt.name, g, err)
				}
			}
		}
		if n := r.Stats().Glyphs; n != 0 {
			t.Errorf("cached glyphs = %d, want 0", n)
		}
	})

	t.Run("oversized", func(t *testing.T) {
		r := mustNew(t, src)
		if _, err := r.Rasterize(gid, 20000, RasterOptions{}); !errors.Is(err, ErrResourceAllocation) {
			t.Errorf("err = %v, want ErrResourceAllocation", err)
		}
	})

	t.Run("failure not cached", func(t *testing.T) {
		dev := newCountingGPU(capable)
		dev.fail.Store(true)
		r := mustNew(t, src, WithGPU(dev))
		opts := RasterOptions{Backend: BackendGPU}

		if _, err := r.Rasterize(gid, 16, opts); err == nil {
			t.Fatal("expected error")
		}
		if n := r.Stats().Glyphs; n != 0 {
			t.Fatalf("cached glyphs after failure = %d, want 0", n)
		}
		dev.fail.Store(false)
		if _, err := r.Rasterize(gid, 16, opts); err != nil {
			t.Fatalf("retry: %v", err)
		}
		if n := dev.calls.Load(); n != 2 {
			t.Errorf("backend calls = %d, want 2", n)
		}
	})
}

func TestRasterize_TinySizeIsBlank(t *testing.T) {
	// A 500x1 unit bar at 0.0005 px per em flattens to edges below the
	// minimum edge height; the glyph still has ink, so it gets a blank
	// bitmap rather than Empty.
	var b outline.Builder
	b.MoveTo(0, 0)
	b.LineTo(500, 0)
	b.LineTo(500, 1)
	b.LineTo(0, 1)
	font := newShapeFont(1000, b.Outline())

	for _, tt := range bothBackends {
		t.Run(tt.name, func(t *testing.T) {
			r := mustNew(t, font, WithGPU(gpu.NewSoftware(capable)))
			g, err := r.Rasterize(1, 0.0005, tt.opts)
			if err != nil {
				t.Fatalf("Rasterize: %v", err)
			}
			if g.Data.IsEmpty() || g.Metrics.IsZero() {
				t.Fatalf("glyph = %+v, want a non-empty bitmap", g.Metrics)
			}
			for i, v := range g.Data.Pix() {
				if v != 0 {
					t.Errorf("byte %d = %d, want 0", i, v)
				}
			}
		})
	}
}

func TestRasterizeRun_Dedup(t *testing.T) {
	src := loadGoRegular(t)
	r := mustNew(t, src, WithWorkers(4))
	a, b := mustGlyph(t, src, 'a'), mustGlyph(t, src, 'b')

	glyphs, err := r.RasterizeRun([]text.GlyphID{a, b, a, a, b}, 18, RasterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(glyphs) != 5 {
		t.Fatalf("len = %d, want 5", len(glyphs))
	}
	if glyphs[0] != glyphs[2] || glyphs[0] != glyphs[3] || glyphs[1] != glyphs[4] {
		t.Error("repeated glyph IDs returned different glyphs")
	}
	if glyphs[0] == glyphs[1] {
		t.Error("distinct glyph IDs returned the same glyph")
	}
	if n := r.Stats().Dispatches; n != 2 {
		t.Errorf("dispatches = %d, want 2", n)
	}

	if g, err := r.RasterizeRun(nil, 18, RasterOptions{}); err != nil || len(g) != 0 {
		t.Errorf("empty run = %v, %v", g, err)
	}
}

func TestRasterizeRun_PartialFailure(t *testing.T) {
	src := loadGoRegular(t)
	r := mustNew(t, src)
	a := mustGlyph(t, src, 'a')
	bad := text.GlyphID(src.Properties().NumGlyphs)

	glyphs, err := r.RasterizeRun([]text.GlyphID{a, bad, a}, 18, RasterOptions{})
	if !errors.Is(err, ErrInvalidGlyph) {
		t.Fatalf("err = %v, want ErrInvalidGlyph", err)
	}
	if glyphs[0] == nil || glyphs[2] == nil || glyphs[1] != nil {
		t.Errorf("glyphs = %v, want only the invalid entry nil", glyphs)
	}
}

func TestRasterizer_Close(t *testing.T) {
	f := newShapeFont(64, triangle(0, 0))
	dev := gpu.NewSoftware(capable)
	defer dev.Close()
	r, err := New(f, WithGPU(dev))
	if err != nil {
		t.Fatal(err)
	}

	g, err := r.Rasterize(1, 32, RasterOptions{Backend: BackendGPU, EmitImage: true})
	if err != nil {
		t.Fatal(err)
	}
	if g.Data.Kind() != bitmap.KindImage {
		t.Fatalf("kind = %v, want Image", g.Data.Kind())
	}
	view := g.Data.View()
	if view.Origin() != bitmap.Owned {
		t.Errorf("origin = %v, want Owned", view.Origin())
	}

	r.Close()
	r.Close()
	if !view.Destroyed() {
		t.Error("Owned view survived Close")
	}
	if _, err := r.Rasterize(1, 32, RasterOptions{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Rasterize after Close: err = %v, want ErrClosed", err)
	}
	if _, err := r.RasterizeRun([]text.GlyphID{1}, 32, RasterOptions{}); !errors.Is(err, ErrClosed) {
		t.Errorf("RasterizeRun after Close: err = %v, want ErrClosed", err)
	}

	// The caller's backend stays usable.
	if _, err := dev.Rasterize(&raster.Job{}); err != nil {
		t.Errorf("backend closed by Rasterizer: %v", err)
	}
}

func TestRasterizer_Capabilities(t *testing.T) {
	f := newShapeFont(64, triangle(0, 0))
	if _, ok := mustNew(t, f).Capabilities(); ok {
		t.Error("CPU-only rasterizer reported GPU capabilities")
	}
	caps, ok := mustNew(t, f, WithGPU(gpu.NewSoftware(capable))).Capabilities()
	if !ok || caps != capable {
		t.Errorf("caps = %+v, %v; want %+v", caps, ok, capable)
	}
}

func TestRequiredFeatures(t *testing.T) {
	got := RequiredFeatures()
	if len(got) != 1 || got[0] != FeatureStorageWriteWithoutFormat {
		t.Fatalf("RequiredFeatures = %v", got)
	}
	if s := got[0].String(); s != "StorageWriteWithoutFormat" {
		t.Errorf("String = %q", s)
	}
	if s := Feature(0).String(); s != "Unknown" {
		t.Errorf("String = %q, want Unknown", s)
	}
}

func TestBackend_String(t *testing.T) {
	tests := []struct {
		b    Backend
		want string
	}{
		{BackendCPU, "CPU"},
		{BackendGPU, "GPU"},
		{Backend(7), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.b.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.b, got, tt.want)
		}
	}
}

func TestRasterOptions_Key(t *testing.T) {
	base := RasterOptions{}
	variants := []RasterOptions{
		{Backend: BackendGPU},
		{FillQuality: FillFine},
		{SampleQuality: SampleCoarse},
		{AlignWholePixels: true},
		{OutputFormat: FormatBGRA8},
		{EmitImage: true},
		{Subpixel: SubpixelRGB},
		{Gain: 1.4},
	}
	seen := map[uint64]RasterOptions{base.key(): base}
	for _, v := range variants {
		k := v.key()
		if prev, ok := seen[k]; ok {
			t.Errorf("%+v and %+v share key %#x", v, prev, k)
		}
		seen[k] = v
	}
}
