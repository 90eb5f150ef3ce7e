package text

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/norm"
)

// ShapeOptions controls shaping of one string.
type ShapeOptions struct {
	// Direction of the text. DirectionAuto resolves it per run.
	Direction Direction

	// Script forces a script for the whole text. The zero value detects
	// scripts per run.
	Script language.Script

	// Language is a BCP 47 tag. Empty means "en".
	Language string
}

// Shaper converts text into positioned glyphs.
type Shaper interface {
	// Shape shapes text at size pixels per em. Glyphs are returned in
	// visual order.
	Shape(src *FontSource, text string, size float32, opts ShapeOptions) ([]ShapedGlyph, error)
}

// HarfbuzzShaper shapes text with the HarfBuzz port in go-text/typesetting.
//
// HarfbuzzShaper is safe for concurrent use. It caches one parsed font.Font
// per FontSource (font.Font is read-only) and creates a font.Face per call,
// since font.Face is not safe for concurrent use.
type HarfbuzzShaper struct {
	mu        sync.RWMutex
	fontCache map[uint64]*font.Font

	shaperPool sync.Pool
}

// NewHarfbuzzShaper creates a new HarfbuzzShaper.
func NewHarfbuzzShaper() *HarfbuzzShaper {
	return &HarfbuzzShaper{
		shaperPool: sync.Pool{
			New: func() any {
				return &shaping.HarfbuzzShaper{}
			},
		},
		fontCache: make(map[uint64]*font.Font),
	}
}

// Shape implements Shaper. The text is normalized to NFC first; Cluster
// values index runes of the normalized text.
func (s *HarfbuzzShaper) Shape(src *FontSource, text string, size float32, opts ShapeOptions) ([]ShapedGlyph, error) {
	if src == nil {
		return nil, fmt.Errorf("text: shape: nil font source")
	}
	if text == "" {
		return nil, nil
	}

	f, err := s.font(src)
	if err != nil {
		return nil, err
	}
	face := font.NewFace(f)

	text = norm.NFC.String(text)
	runes := []rune(text)

	lang := opts.Language
	if lang == "" {
		lang = "en"
	}

	hb := s.shaperPool.Get().(*shaping.HarfbuzzShaper)
	defer s.shaperPool.Put(hb)

	var glyphs []ShapedGlyph
	for _, r := range splitRuns(text, runes, opts.Direction) {
		script := r.Script
		if opts.Script != 0 {
			script = opts.Script
		}
		out := hb.Shape(shaping.Input{
			Text:      runes,
			RunStart:  r.Start,
			RunEnd:    r.End,
			Direction: mapDirection(r.Direction),
			Face:      face,
			Size:      fixed.Int26_6(size * 64),
			Script:    script,
			Language:  language.NewLanguage(lang),
		})
		glyphs = appendGlyphs(glyphs, out.Glyphs, r.Direction.IsVertical())
	}
	return glyphs, nil
}

// font returns the cached go-text font for src, parsing it on first use.
func (s *HarfbuzzShaper) font(src *FontSource) (*font.Font, error) {
	id := src.ID()

	s.mu.RLock()
	f, ok := s.fontCache[id]
	s.mu.RUnlock()
	if ok {
		return f, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.fontCache[id]; ok {
		return f, nil
	}
	face, err := font.ParseTTF(bytes.NewReader(src.rawData()))
	if err != nil {
		return nil, fmt.Errorf("text: shaper parse font: %w", err)
	}
	s.fontCache[id] = face.Font
	return face.Font, nil
}

// RemoveSource drops the cached parsed font for src.
func (s *HarfbuzzShaper) RemoveSource(src *FontSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fontCache, src.ID())
}

func mapDirection(d Direction) di.Direction {
	switch d {
	case DirectionRTL:
		return di.DirectionRTL
	case DirectionTTB:
		return di.DirectionTTB
	default:
		return di.DirectionLTR
	}
}

func appendGlyphs(dst []ShapedGlyph, glyphs []shaping.Glyph, vertical bool) []ShapedGlyph {
	for _, g := range glyphs {
		sg := ShapedGlyph{
			GID:     GlyphID(uint16(g.GlyphID)), //nolint:gosec // glyph ids fit in 16 bits
			XOffset: fixedToFloat(g.XOffset),
			YOffset: fixedToFloat(g.YOffset),
			Cluster: g.TextIndex(),
		}
		if vertical {
			sg.YAdvance = fixedToFloat(g.Advance)
		} else {
			sg.XAdvance = fixedToFloat(g.Advance)
		}
		dst = append(dst, sg)
	}
	return dst
}
