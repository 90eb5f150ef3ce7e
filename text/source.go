package text

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// nextSourceID hands out process-unique font identities.
var nextSourceID atomic.Uint64

// FontSource represents a loaded font file.
// It is heavyweight and should be shared across the application.
// FontSource is safe for concurrent use.
type FontSource struct {
	// addr is a self-pointer for copy detection.
	addr *FontSource

	id   uint64
	name string
	data []byte

	font  *sfnt.Font
	props Properties

	// bufs pools sfnt.Buffer values; sfnt.Font methods are not safe to
	// call concurrently with a shared buffer.
	bufs sync.Pool
}

// NewFontSource creates a FontSource from font data (TTF or OTF).
// The data is copied internally.
func NewFontSource(data []byte) (*FontSource, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFontData
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	f, err := opentype.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("text: parse font: %w", err)
	}

	s := &FontSource{
		id:   nextSourceID.Add(1),
		data: buf,
		font: f,
	}
	s.addr = s
	s.bufs.New = func() any { return new(sfnt.Buffer) }

	b := s.getBuffer()
	defer s.putBuffer(b)

	s.name, err = f.Name(b, sfnt.NameIDFamily)
	if err != nil || s.name == "" {
		s.name = "Unknown"
	}
	if err := s.loadProperties(b); err != nil {
		return nil, err
	}
	return s, nil
}

// NewFontSourceFromFile loads a FontSource from a file path.
func NewFontSourceFromFile(path string) (*FontSource, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided
	if err != nil {
		return nil, fmt.Errorf("text: read font file: %w", err)
	}
	return NewFontSource(data)
}

// loadProperties reads design-unit metrics. Loading at ppem equal to
// UnitsPerEm makes the 26.6 results exact design units.
func (s *FontSource) loadProperties(b *sfnt.Buffer) error {
	upem := s.font.UnitsPerEm()
	ppem := fixed.I(int(upem))

	bounds, err := s.font.Bounds(b, ppem, font.HintingNone)
	if err != nil {
		return fmt.Errorf("text: font bounds: %w", err)
	}
	m, err := s.font.Metrics(b, ppem, font.HintingNone)
	if err != nil {
		return fmt.Errorf("text: font metrics: %w", err)
	}

	// sfnt reports y down; Properties are y up.
	s.props = Properties{
		UnitsPerEm: uint16(upem),
		MinX:       fixedToFloat(bounds.Min.X),
		MaxX:       fixedToFloat(bounds.Max.X),
		MinY:       -fixedToFloat(bounds.Max.Y),
		MaxY:       -fixedToFloat(bounds.Min.Y),
		Ascender:   fixedToFloat(m.Ascent),
		Descender:  -fixedToFloat(m.Descent),
		NumGlyphs:  s.font.NumGlyphs(),
	}
	return nil
}

// ID returns the process-unique identity of this source. Two sources
// parsed from identical bytes still have different IDs.
func (s *FontSource) ID() uint64 {
	s.copyCheck()
	return s.id
}

// Name returns the font family name.
func (s *FontSource) Name() string {
	s.copyCheck()
	return s.name
}

// Properties returns font-wide values in design units.
func (s *FontSource) Properties() Properties {
	s.copyCheck()
	return s.props
}

// GlyphIndex returns the glyph for a rune. It returns 0 and false when the
// font has no mapping for r.
func (s *FontSource) GlyphIndex(r rune) (GlyphID, bool) {
	s.copyCheck()
	b := s.getBuffer()
	defer s.putBuffer(b)

	idx, err := s.font.GlyphIndex(b, r)
	if err != nil || idx == 0 {
		return 0, false
	}
	return GlyphID(idx), true
}

// Advance returns the horizontal advance of a glyph in design units.
func (s *FontSource) Advance(gid GlyphID) (float32, error) {
	s.copyCheck()
	if int(gid) >= s.props.NumGlyphs {
		return 0, fmt.Errorf("%w: %d", ErrInvalidGlyph, gid)
	}
	b := s.getBuffer()
	defer s.putBuffer(b)

	adv, err := s.font.GlyphAdvance(b, sfnt.GlyphIndex(gid), fixed.I(int(s.props.UnitsPerEm)), font.HintingNone)
	if err != nil {
		return 0, fmt.Errorf("text: glyph %d advance: %w", gid, err)
	}
	return fixedToFloat(adv), nil
}

// rawData returns the raw font bytes. The slice must not be modified.
func (s *FontSource) rawData() []byte {
	return s.data
}

func (s *FontSource) getBuffer() *sfnt.Buffer {
	return s.bufs.Get().(*sfnt.Buffer)
}

func (s *FontSource) putBuffer(b *sfnt.Buffer) {
	s.bufs.Put(b)
}

// copyCheck panics if the FontSource has been copied by value.
func (s *FontSource) copyCheck() {
	if s.addr != s {
		panic("text: FontSource copied by value")
	}
}

func fixedToFloat(v fixed.Int26_6) float32 {
	return float32(v) / 64
}
