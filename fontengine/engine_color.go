package fontengine

// Paint returns a PaintIterator over gid's color layers, or ErrNoOutline
// if gid is not a color glyph. SFNTEngine always returns ErrNoOutline:
// golang.org/x/image/font/sfnt parses no COLR/CPAL table, matching
// text/color_font.go's DetectGlyphType falling back to GlyphTypeOutline
// for any ParsedFont that doesn't additionally implement ColorFont.
func (e *SFNTEngine) Paint(gid GlyphID) (PaintIterator, error) {
	return nil, ErrNoOutline
}
