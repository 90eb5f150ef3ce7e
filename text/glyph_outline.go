package text

import (
	"errors"
	"fmt"

	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/glyphraster/outline"
)

// Outline returns the outline of a glyph in design units, y up.
// Glyphs without contours (space) return an empty outline.
func (s *FontSource) Outline(gid GlyphID) (*outline.Outline, error) {
	s.copyCheck()
	if int(gid) >= s.props.NumGlyphs {
		return nil, fmt.Errorf("%w: %d (font has %d glyphs)", ErrInvalidGlyph, gid, s.props.NumGlyphs)
	}

	b := s.getBuffer()
	defer s.putBuffer(b)

	ppem := fixed.I(int(s.props.UnitsPerEm))
	segments, err := s.font.LoadGlyph(b, sfnt.GlyphIndex(gid), ppem, nil)
	if err != nil {
		if errors.Is(err, sfnt.ErrColoredGlyph) {
			return nil, fmt.Errorf("%w: %d", ErrColoredGlyph, gid)
		}
		return nil, fmt.Errorf("text: load glyph %d: %w", gid, err)
	}
	return segmentsToOutline(segments), nil
}

// segmentsToOutline converts sfnt segments (y down) into an outline (y up).
func segmentsToOutline(segments sfnt.Segments) *outline.Outline {
	var b outline.Builder
	for _, seg := range segments {
		a := seg.Args
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			b.MoveTo(px(a[0]), py(a[0]))
		case sfnt.SegmentOpLineTo:
			b.LineTo(px(a[0]), py(a[0]))
		case sfnt.SegmentOpQuadTo:
			b.QuadTo(px(a[0]), py(a[0]), px(a[1]), py(a[1]))
		case sfnt.SegmentOpCubeTo:
			b.CubeTo(px(a[0]), py(a[0]), px(a[1]), py(a[1]), px(a[2]), py(a[2]))
		}
	}
	return b.Outline()
}

func px(p fixed.Point26_6) float32 { return fixedToFloat(p.X) }
func py(p fixed.Point26_6) float32 { return -fixedToFloat(p.Y) }
