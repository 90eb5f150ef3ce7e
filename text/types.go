package text

// unknownStr is the string returned for unknown enum values.
const unknownStr = "Unknown"

// GlyphID is a glyph index within a font.
type GlyphID uint16

// Direction specifies text direction.
type Direction int

const (
	// DirectionAuto resolves direction per run with the Unicode
	// bidirectional algorithm.
	DirectionAuto Direction = iota
	// DirectionLTR is left-to-right text (English, French, etc.)
	DirectionLTR
	// DirectionRTL is right-to-left text (Arabic, Hebrew)
	DirectionRTL
	// DirectionTTB is top-to-bottom text (traditional Chinese, Japanese)
	DirectionTTB
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionAuto:
		return "Auto"
	case DirectionLTR:
		return "LTR"
	case DirectionRTL:
		return "RTL"
	case DirectionTTB:
		return "TTB"
	default:
		return unknownStr
	}
}

// IsVertical returns true if the direction is vertical.
func (d Direction) IsVertical() bool {
	return d == DirectionTTB
}

// Properties holds font-wide values in design units.
type Properties struct {
	UnitsPerEm uint16

	// Union of all glyph bounding boxes, y up.
	MinX, MaxX float32
	MinY, MaxY float32

	// Ascender is positive above the baseline; Descender is negative
	// below it.
	Ascender  float32
	Descender float32

	NumGlyphs int
}

// ShapedGlyph is a positioned glyph produced by a Shaper.
// Advances and offsets are in pixels at the shaping size, y up.
type ShapedGlyph struct {
	GID GlyphID

	XAdvance float32
	YAdvance float32
	XOffset  float32
	YOffset  float32

	// Cluster is the rune index in the normalized input text that produced
	// this glyph.
	Cluster int
}
