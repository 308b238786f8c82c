package glyphatlas

// Current-state setters: spec.md §6 models text layout as operating
// against one mutable "current state" (font, size, spacing, blur, align,
// hinting, kerning, subpixel mode, direction, color space) rather than
// threading every parameter through each call. Grounded in
// _examples/gogpu-gg/context.go's Context, which holds its drawing state
// (fill color, stroke width, font, transform) the same way and exposes
// one setter per field.

import (
	"github.com/gogpu/glyphatlas/atlas"
	"github.com/gogpu/glyphatlas/shapecache"
)

// SetFont selects id as the current font for subsequent text iteration.
func (s *System) SetFont(id FontID) error {
	s.fontMu.RLock()
	_, ok := s.fonts[id]
	s.fontMu.RUnlock()
	if !ok {
		return ErrUnknownFont
	}
	s.state.fontID = id
	return nil
}

// SetSize sets the current font size in pixels.
func (s *System) SetSize(px float32) { s.state.sizePx = px }

// SetSpacing sets the additional tracking applied between glyphs, in
// pixels.
func (s *System) SetSpacing(px float32) { s.state.spacing = px }

// SetBlur sets the current glyph blur radius in pixels (0 disables it).
func (s *System) SetBlur(px float32) { s.state.blur = px }

// SetAlign sets how TextIterInit positions a run relative to its origin.
func (s *System) SetAlign(a Align) { s.state.align = a }

// SetHinting sets the current hinting mode, folded into every glyph cache
// fingerprint.
func (s *System) SetHinting(mode uint8) { s.state.hinting = mode }

// SetKerning enables or disables pairwise kerning lookups during shaping.
func (s *System) SetKerning(enabled bool) { s.state.kerningEnabled = enabled }

// SetBidi enables or disables bidirectional run reordering.
func (s *System) SetBidi(enabled bool) { s.state.bidiEnabled = enabled }

// SetDirection sets the base paragraph direction (0 = LTR, 1 = RTL) used
// when bidi is enabled, and whether layout runs vertically.
func (s *System) SetDirection(baseDirection uint8, vertical bool) {
	s.state.baseDirection = baseDirection
	s.state.vertical = vertical
}

// SetSubpixelMode sets the current subpixel rendering mode. This changes
// which atlas.Key family subsequent glyphs land in.
func (s *System) SetSubpixelMode(mode atlas.SubpixelMode) { s.state.subpixel = mode }

// SetColorSpace sets the source and destination color spaces glyph
// pixels are produced and composited in.
func (s *System) SetColorSpace(src, dst atlas.ColorSpace) {
	s.state.srcColorSpace = src
	s.state.dstColorSpace = dst
}

// SetPixelFormat sets the atlas pixel format new glyphs rasterize into
// (FormatA8 for grayscale/blurred text, FormatRGBA8 for subpixel or
// color-layer glyphs).
func (s *System) SetPixelFormat(f atlas.PixelFormat) { s.state.pixelFormat = f }

// SetFeatures sets the OpenType feature list applied to subsequent shape
// calls. Features are canonicalized (sorted by tag) so that two
// differently-ordered but equal feature sets share one shape cache entry
// (spec.md §8 property: feature-reorder canonicalization).
func (s *System) SetFeatures(features []shapecache.Feature) {
	s.state.features = shapecache.CanonicalizeFeatures(features)
}
