package text

import "errors"

// Sentinel errors for text package.
var (
	// ErrEmptyFontData is returned when font data is empty.
	ErrEmptyFontData = errors.New("text: empty font data")

	// ErrInvalidGlyph is returned for glyph IDs outside the font.
	ErrInvalidGlyph = errors.New("text: invalid glyph id")

	// ErrColoredGlyph is returned for glyphs that only have bitmap or
	// color-layer data and no outline.
	ErrColoredGlyph = errors.New("text: glyph has no outline")
)
