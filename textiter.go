package glyphatlas

// TextIterInit/Next/Free/TextBounds: the text layout half of the
// caller-facing API, delegating to iter.Iterator for the actual
// segmentation/shaping/cache-lookup work and supplying the four callback
// functions (FontForCodepoint, Shape, GlyphMetrics) iter.Config needs to
// stay font-engine-agnostic.
//
// Grounded in _examples/gogpu-gg/text/layout.go's TextLayout, which walks
// a shaped run accumulating a pen position the same way iter.Iterator
// does here, and text/glyph_outline.go's bounding-box accumulation over
// decomposed outline points (reused below as boundsSink).

import (
	"github.com/gogpu/glyphatlas/fontengine"
	"github.com/gogpu/glyphatlas/glyphcache"
	"github.com/gogpu/glyphatlas/iter"
	"github.com/gogpu/glyphatlas/loader"
	"github.com/gogpu/glyphatlas/shapecache"
	"github.com/gogpu/glyphatlas/shaping"
)

// CachedGlyph is re-exported so callers don't need to import iter
// directly for the result of Next.
type CachedGlyph = iter.CachedGlyph

// TextIterInit begins iterating text at pen position (x, y) using the
// current state (font, size, features, direction, ...), returning the
// atlas.Key the resulting glyphs will land in so the caller can bind the
// matching atlas texture before drawing.
func (s *System) TextIterInit(x, y float32, text string) error {
	if err := s.checkBroken(); err != nil {
		return err
	}
	key := s.currentAtlasKey()
	it := s.iteratorForKey(key)
	it.Init(x, y, text, s.iterConfig())
	s.activeIter = it
	return nil
}

// TextIterNext returns the next cached glyph from the iteration started
// by TextIterInit, or ok=false once the run is exhausted. A glyph that
// was just inserted into the glyph cache (State == StateLoading) is
// submitted to the background loader here, deduplicated against any load
// already in flight for the same fingerprint.
func (s *System) TextIterNext() (CachedGlyph, bool) {
	if s.activeIter == nil {
		return CachedGlyph{}, false
	}
	cg, ok := s.activeIter.Next()
	if ok && cg.State == glyphcache.StateLoading {
		s.maybeSubmitLoad(cg)
	}
	return cg, ok
}

// maybeSubmitLoad submits a rasterization request for the glyph most
// recently resolved by glyphMetrics (see lastFontID/lastGID), unless a
// load for its fingerprint is already in flight.
func (s *System) maybeSubmitLoad(cg CachedGlyph) {
	fp := glyphcache.Fingerprint{
		FontID:           uint64(s.lastFontID),
		GlyphIndex:       uint32(s.lastGID),
		SizePx:           s.state.sizePx,
		HintingMode:      s.state.hinting,
		SubpixelMode:     uint8(s.state.subpixel),
		VariationStateID: s.currentVariationState(),
		SrcColorSpace:    uint8(s.state.srcColorSpace),
		DstColorSpace:    uint8(s.state.dstColorSpace),
		PixelFormat:      uint8(s.state.pixelFormat),
		SyntheticEmbolden: s.state.syntheticEmbolden,
	}

	s.pendingMu.Lock()
	if s.pendingLoads[fp] {
		s.pendingMu.Unlock()
		return
	}
	s.pendingLoads[fp] = true
	s.pendingMu.Unlock()

	if err := s.ld.Submit(loader.Request{Key: fp, Size: int(cg.X1 - cg.X0)}); err != nil {
		s.pendingMu.Lock()
		delete(s.pendingLoads, fp)
		s.pendingMu.Unlock()
	}
}

// TextIterFree releases the active iteration. The underlying
// *iter.Iterator itself is cached per atlas.Key and reused by the next
// TextIterInit, so this only clears the reference to it.
func (s *System) TextIterFree() {
	if s.activeIter != nil {
		s.activeIter.Free()
		s.activeIter = nil
	}
}

// TextBounds measures text at the current state without touching either
// cache, for layout passes that only need dimensions.
func (s *System) TextBounds(text string) (width, height float32) {
	return iter.Bounds(text, s.iterConfig())
}

func (s *System) iterConfig() iter.Config {
	return iter.Config{
		FontForCodepoint: s.fontForCodepoint,
		Shape:            s.shapeRun,
		GlyphMetrics:     s.glyphMetrics,
		SizePx:           s.state.sizePx,
		HintingMode:      s.state.hinting,
		SubpixelMode:     uint8(s.state.subpixel),
		VariationStateID: s.currentVariationState(),
		Features:         s.state.features,
		KerningEnabled:   s.state.kerningEnabled,
		BidiEnabled:      s.state.bidiEnabled,
		BaseDirection:    s.state.baseDirection,
		SrcColorSpace:    uint8(s.state.srcColorSpace),
		DstColorSpace:    uint8(s.state.dstColorSpace),
		PixelFormat:      uint8(s.state.pixelFormat),
		Vertical:         s.state.vertical,
	}
}

func (s *System) currentVariationState() uint64 {
	s.fontMu.RLock()
	defer s.fontMu.RUnlock()
	if e, ok := s.fonts[s.state.fontID]; ok {
		return e.variationState
	}
	return 0
}

// fontForCodepoint implements iter.FontForCodepoint, resolving the
// current font's fallback chain for r.
func (s *System) fontForCodepoint(r rune) uint64 {
	fid, _, ok := s.resolveFont(s.state.fontID, r)
	if !ok {
		return uint64(s.state.fontID)
	}
	return uint64(fid)
}

// shapeRun implements iter.ShapeFunc.
func (s *System) shapeRun(fontID uint64, runText string, cfg iter.Config) []shapecache.ShapedGlyph {
	s.fontMu.RLock()
	entry, ok := s.fonts[FontID(fontID)]
	s.fontMu.RUnlock()
	if !ok {
		return nil
	}

	var dir shaping.Direction
	switch {
	case cfg.Vertical && cfg.BaseDirection == 1:
		dir = shaping.DirectionBTT
	case cfg.Vertical:
		dir = shaping.DirectionTTB
	case cfg.BaseDirection == 1:
		dir = shaping.DirectionRTL
	default:
		dir = shaping.DirectionLTR
	}

	return s.shaper.Shape(shaping.Input{
		FontData:  entry.data,
		Text:      runText,
		Direction: dir,
		SizePx:    cfg.SizePx,
		Features:  cfg.Features,
	})
}

// glyphMetrics implements iter.GlyphMetricsFunc: decomposes gid's outline
// at sizePx to recover its pixel bounding box and advance. Glyphs with no
// outline (space) report a zero-size box with their advance intact, which
// iter.Iterator treats as "nothing to allocate, just move the pen"
// (spec.md §8 scenario S1).
func (s *System) glyphMetrics(fontID uint64, gid shapecache.GlyphID, sizePx float32) (w, h int, bearingX, bearingY, advanceX float32) {
	s.lastFontID = FontID(fontID)
	s.lastGID = gid

	s.fontMu.RLock()
	entry, ok := s.fonts[FontID(fontID)]
	s.fontMu.RUnlock()
	if !ok {
		return 0, 0, 0, 0, 0
	}

	entry.metrics.SetPixelSize(sizePx)
	advanceX = entry.metrics.Advance(fontengine.GlyphID(gid))

	var bb boundsSink
	bb.reset()
	if err := entry.metrics.Decompose(fontengine.GlyphID(gid), &bb); err != nil || !bb.has {
		if union, ok := colorGlyphBounds(entry.metrics, fontengine.GlyphID(gid)); ok {
			bb = union
		} else {
			return 0, 0, 0, 0, advanceX
		}
	}

	w = int(ceilFloat32(bb.maxX - bb.minX))
	h = int(ceilFloat32(bb.maxY - bb.minY))
	bearingX = bb.minX
	bearingY = bb.maxY
	return w, h, bearingX, bearingY, advanceX
}

func ceilFloat32(v float32) float32 {
	i := float32(int(v))
	if i < v {
		return i + 1
	}
	return i
}

// boundsSink accumulates the bounding box of a decomposed outline over
// every point it sees, including control points: a conservative
// over-approximation, same tradeoff text/glyph_outline.go's own bounds
// accumulation makes, since a curve never exceeds its control polygon's
// bounding box.
type boundsSink struct {
	minX, minY, maxX, maxY float32
	has                    bool
}

func (b *boundsSink) reset() { *b = boundsSink{} }

func (b *boundsSink) expand(p fontengine.Point) {
	if !b.has {
		b.minX, b.minY, b.maxX, b.maxY = p.X, p.Y, p.X, p.Y
		b.has = true
		return
	}
	if p.X < b.minX {
		b.minX = p.X
	}
	if p.X > b.maxX {
		b.maxX = p.X
	}
	if p.Y < b.minY {
		b.minY = p.Y
	}
	if p.Y > b.maxY {
		b.maxY = p.Y
	}
}

func (b *boundsSink) MoveTo(p fontengine.Point)          { b.expand(p) }
func (b *boundsSink) LineTo(p fontengine.Point)          { b.expand(p) }
func (b *boundsSink) QuadTo(c, p fontengine.Point)       { b.expand(c); b.expand(p) }
func (b *boundsSink) CubicTo(c1, c2, p fontengine.Point) { b.expand(c1); b.expand(c2); b.expand(p) }
