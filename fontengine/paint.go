package fontengine

// Color is a resolved RGBA color, either read from a font's CPAL palette
// or the caller's current foreground text color.
type Color struct {
	R, G, B, A uint8
}

// Layer is one colored layer of a COLR/CPAL color glyph: a sub-glyph id
// paired with the color it should be filled with.
type Layer struct {
	GlyphID GlyphID
	Color   Color
	// Foreground is true when the layer should use the caller's current
	// text color instead of Color (PaletteIndex 0xFFFF in the COLR spec).
	Foreground bool
}

// PaintIterator walks the ordered layer list of a color glyph, bottom to
// top, mirroring text/color_font.go's COLRGlyph.Layers (ColorFont.COLRGlyph)
// but exposed as a pull iterator so a caller can stop early without the
// font engine allocating the full layer slice up front.
type PaintIterator interface {
	// Next advances to the next layer and reports whether one was
	// available. Must be called once before the first Layer() read.
	Next() bool
	// Layer returns the layer the iterator currently points at. Only
	// valid after a Next call that returned true.
	Layer() Layer
}

// slicePaintIterator is the only PaintIterator implementation this module
// ships: golang.org/x/image/font/sfnt exposes no COLR/CPAL table reader,
// so SFNTEngine.Paint always returns ErrNoOutline (see engine_color.go);
// a font backend that does parse COLR (e.g. one grounded in
// text/emoji/colr.go's ParseCOLR/ParseCPAL) would build this iterator
// from its own resolved []Layer.
type slicePaintIterator struct {
	layers []Layer
	idx    int
}

// NewPaintIterator wraps a pre-resolved layer slice (bottom to top) as a
// PaintIterator.
func NewPaintIterator(layers []Layer) PaintIterator {
	return &slicePaintIterator{layers: layers, idx: -1}
}

func (it *slicePaintIterator) Next() bool {
	it.idx++
	return it.idx < len(it.layers)
}

func (it *slicePaintIterator) Layer() Layer {
	if it.idx < 0 || it.idx >= len(it.layers) {
		return Layer{}
	}
	return it.layers[it.idx]
}
