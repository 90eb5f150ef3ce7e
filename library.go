package glyphraster

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gogpu/glyphraster/internal/parallel"
	"github.com/gogpu/glyphraster/text"
)

// Weight is a font weight on the CSS scale (100 to 900).
type Weight uint16

// Common weights.
const (
	WeightThin    Weight = 100
	WeightLight   Weight = 300
	WeightRegular Weight = 400
	WeightMedium  Weight = 500
	WeightBold    Weight = 700
	WeightBlack   Weight = 900
)

type fontKey struct {
	family string
	weight Weight
}

func makeFontKey(family string, weight Weight) fontKey {
	return fontKey{family: strings.ToLower(family), weight: weight}
}

type libraryFont struct {
	src *text.FontSource
	r   *Rasterizer
}

// PositionedGlyph is a shaped glyph with its pen position and bitmap.
// X and Y are the pen position in pixels, y up, relative to the start of
// the text; the glyph is drawn at (X+XOffset, Y+YOffset).
type PositionedGlyph struct {
	text.ShapedGlyph
	X, Y  float32
	Glyph *Glyph
}

// Library manages fonts by family and weight. Each font has its own
// Rasterizer and glyph cache; removing a font drops its cache. All fonts
// share one worker pool and the GPU backend passed with WithGPU.
//
// Library is safe for concurrent use.
type Library struct {
	opts   options
	shaper text.Shaper
	pool   *parallel.WorkerPool

	mu     sync.RWMutex
	fonts  map[fontKey]*libraryFont
	closed bool
}

// NewLibrary creates an empty Library.
func NewLibrary(opts ...Option) *Library {
	o := newOptions(opts)
	shaper := o.shaper
	if shaper == nil {
		shaper = text.NewHarfbuzzShaper()
	}
	return &Library{
		opts:   o,
		shaper: shaper,
		pool:   parallel.NewWorkerPool(o.workers),
		fonts:  make(map[fontKey]*libraryFont),
	}
}

func (l *Library) logger() *slog.Logger {
	if l.opts.logger != nil {
		return l.opts.logger
	}
	return Logger()
}

// AddFont parses data and registers it under family and weight. Family
// names are matched case-insensitively. A font already registered under
// the same name is replaced and its cache dropped.
func (l *Library) AddFont(family string, weight Weight, data []byte) (*text.FontSource, error) {
	src, err := text.NewFontSource(data)
	if err != nil {
		return nil, fmt.Errorf("glyphraster: add font %q: %w", family, err)
	}
	r, err := newRasterizer(src, l.opts, l.pool)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		r.Close()
		return nil, ErrClosed
	}
	key := makeFontKey(family, weight)
	old := l.fonts[key]
	l.fonts[key] = &libraryFont{src: src, r: r}
	l.mu.Unlock()

	if old != nil {
		l.release(old)
	}
	l.logger().Info("glyphraster: font added",
		"family", family, "weight", weight, "name", src.Name(), "glyphs", src.Properties().NumGlyphs)
	return src, nil
}

// HasFont reports whether a font is registered under family and weight.
func (l *Library) HasFont(family string, weight Weight) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.fonts[makeFontKey(family, weight)]
	return ok
}

// RemoveFont unregisters a font and drops its glyph cache. It reports
// whether the font was registered.
func (l *Library) RemoveFont(family string, weight Weight) bool {
	key := makeFontKey(family, weight)
	l.mu.Lock()
	f, ok := l.fonts[key]
	delete(l.fonts, key)
	l.mu.Unlock()

	if ok {
		l.release(f)
	}
	return ok
}

func (l *Library) release(f *libraryFont) {
	f.r.Close()
	if hs, ok := l.shaper.(*text.HarfbuzzShaper); ok {
		hs.RemoveSource(f.src)
	}
}

func (l *Library) lookup(family string, weight Weight) (*libraryFont, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrClosed
	}
	f, ok := l.fonts[makeFontKey(family, weight)]
	if !ok {
		return nil, fmt.Errorf("%w: %s %d", ErrFontNotFound, family, weight)
	}
	return f, nil
}

// Rasterizer returns the Rasterizer of a registered font. It stays owned
// by the Library.
func (l *Library) Rasterizer(family string, weight Weight) (*Rasterizer, error) {
	f, err := l.lookup(family, weight)
	if err != nil {
		return nil, err
	}
	return f.r, nil
}

// GlyphsForText shapes s with the font registered under family and weight
// and rasterizes the resulting run at size pixels per em. Glyphs are
// returned in visual order with accumulated pen positions.
//
// A glyph that fails to rasterize keeps a nil Glyph; the errors of all
// failed glyphs are joined and returned with the positions.
func (l *Library) GlyphsForText(family string, weight Weight, size float32, s string, opts RasterOptions) ([]PositionedGlyph, error) {
	f, err := l.lookup(family, weight)
	if err != nil {
		return nil, err
	}

	shaped, err := l.shaper.Shape(f.src, s, size, text.ShapeOptions{})
	if err != nil {
		return nil, fmt.Errorf("glyphraster: shape %q: %w", s, err)
	}

	gids := make([]text.GlyphID, len(shaped))
	for i, g := range shaped {
		gids[i] = g.GID
	}
	glyphs, err := f.r.RasterizeRun(gids, size, opts)
	if glyphs == nil && err != nil {
		return nil, err
	}

	out := make([]PositionedGlyph, len(shaped))
	var x, y float32
	for i, sg := range shaped {
		out[i] = PositionedGlyph{ShapedGlyph: sg, X: x, Y: y, Glyph: glyphs[i]}
		x += sg.XAdvance
		y += sg.YAdvance
	}
	return out, err
}

// Close removes every font, dropping their caches, and stops the worker
// pool. The GPU backend passed with WithGPU stays open.
func (l *Library) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	fonts := l.fonts
	l.fonts = make(map[fontKey]*libraryFont)
	l.mu.Unlock()

	for _, f := range fonts {
		l.release(f)
	}
	l.pool.Close()
}
