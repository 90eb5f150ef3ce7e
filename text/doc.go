// Package text provides the font collaborators of the glyph rasterizer.
//
// The package follows a separation of concerns:
//
//   - FontSource: a parsed TTF/OTF font. It supplies glyph outlines in
//     design units, font-wide properties and a process-unique identity.
//     Parsing uses golang.org/x/image/font/opentype.
//   - Shaper: converts a string into positioned glyph IDs. HarfbuzzShaper
//     wraps go-text/typesetting and splits text into bidi runs with
//     golang.org/x/text/unicode/bidi.
//
// # Example usage
//
//	src, err := text.NewFontSource(goregular.TTF)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	gid, _ := src.GlyphIndex('g')
//	o, err := src.Outline(gid)
//
//	shaper := text.NewHarfbuzzShaper()
//	glyphs, err := shaper.Shape(src, "Hello", 16, text.ShapeOptions{})
//
// FontSource and HarfbuzzShaper are safe for concurrent use.
package text
