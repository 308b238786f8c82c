// Package fontengine provides the font-backend abstraction (component
// §6.1): pixel size selection, glyph index lookup, outline decomposition,
// kerning, variation axes, and layered color glyphs. A concrete Engine is
// wired on top of golang.org/x/image/font/sfnt the way the teacher's
// text/glyph_outline.go and text/color_font.go consume sfnt.Buffer.
package fontengine

// GlyphID identifies a glyph within one font's glyph table.
type GlyphID uint16

// Point is a single outline coordinate in font design units (or pixels,
// once scaled by the caller).
type Point struct {
	X, Y float32
}

// OutlineSink receives the callbacks of an outline decomposition walk, one
// contour at a time. It mirrors golang.org/x/image/font/sfnt's own
// Segment model and FreeType's FT_Outline_Decompose callback set
// (move_to/line_to/conic_to/cubic_to), which original_source/src/font's
// GPU rasterizer builds its curve buffers from.
type OutlineSink interface {
	// MoveTo starts a new contour at p, implicitly closing the previous
	// one (a caller that needs an explicit closing segment must add it
	// itself before the next MoveTo, since sfnt.Segments do not emit one).
	MoveTo(p Point)
	// LineTo appends a straight segment from the current point to p.
	LineTo(p Point)
	// QuadTo appends a quadratic Bezier segment with control point ctrl.
	QuadTo(ctrl, p Point)
	// CubicTo appends a cubic Bezier segment with control points c1, c2.
	CubicTo(c1, c2, p Point)
}
