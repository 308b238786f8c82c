// Package iter implements the text iterator (component C10): a lazy,
// forward-only walk over a shaped run that emits one textured quad per
// glyph, driving the shape cache (C9) and glyph cache (C5) lookups behind
// the scenes.
//
// Grounded in _examples/gogpu-gg/text/glyph_run.go's GlyphRunBuilder
// (batching shaped glyphs into draw commands via pen-position accumulation)
// and text/face.go / text/layout.go's run-segmentation idiom, generalized
// to the spec's explicit Init/Next/Free operations plus a Go 1.23+
// iter.Seq adapter the way text/face.go's own Glyphs(s string)
// iter.Seq[Glyph] exposes a range-over-func view of the same data.
package iter

import (
	"iter"

	"github.com/gogpu/glyphatlas/glyphcache"
	"github.com/gogpu/glyphatlas/shapecache"
)

// FontForCodepoint maps a rune to the font ID that should render it,
// segmenting mixed-font runs the way spec.md §4.9 requires.
type FontForCodepoint func(r rune) uint64

// ShapeFunc invokes the external shaper (§6.2) for one single-font run.
type ShapeFunc func(fontID uint64, runText string, cfg Config) []shapecache.ShapedGlyph

// GlyphMetricsFunc returns a glyph's pixel bitmap size and font-engine
// metrics at the iterator's configured size, independent of whether that
// glyph's atlas entry has been rasterized yet.
type GlyphMetricsFunc func(fontID uint64, gid shapecache.GlyphID, sizePx float32) (w, h int, bearingX, bearingY, advanceX float32)

// Config bundles the shaping/cache parameters that are constant for one
// iterator walk (but vary across callers/frames), mirroring the fields
// spec.md §9 requires in both the shape and glyph cache fingerprints.
type Config struct {
	FontForCodepoint FontForCodepoint
	Shape            ShapeFunc
	GlyphMetrics     GlyphMetricsFunc

	SizePx           float32
	HintingMode      uint8
	SubpixelMode     uint8
	VariationStateID uint64
	Features         []shapecache.Feature
	KerningEnabled   bool
	BidiEnabled      bool
	BaseDirection    uint8

	SrcColorSpace uint8
	DstColorSpace uint8
	PixelFormat   uint8

	Vertical bool
}

// CachedGlyph is one glyph ready to be drawn: screen-space quad corners,
// atlas UV corners, the atlas it lives in, and the generation counter that
// invalidates stale references after a Reset.
type CachedGlyph struct {
	X0, Y0, X1, Y1 float32
	S0, T0, S1, T1 float32
	AtlasID        uint32
	Generation     uint64
	State          glyphcache.State
}

// Ready reports whether this glyph's atlas texture has finished uploading
// and is safe to sample from a draw command.
func (g CachedGlyph) Ready() bool { return g.State == glyphcache.StateUploaded }

type run struct {
	fontID uint64
	glyphs []shapecache.ShapedGlyph
}

// Iterator walks one shaped text run, lazily resolving each glyph through
// the shape and glyph caches. It is forward-only and not restartable: a
// caller that needs measurement without populating the caches must use
// Bounds instead.
type Iterator struct {
	cfg    Config
	shapes *shapecache.Cache
	glyphs *glyphcache.Cache
	alloc  glyphcache.Allocator

	runs      []run
	runIdx    int
	glyphIdx  int
	originX   float32
	originY   float32
	penX      float32
	penY      float32
	started   bool
}

// New creates an iterator bound to a shape cache and glyph cache (and the
// allocator the glyph cache uses to reserve atlas space on a miss).
func New(shapes *shapecache.Cache, glyphs *glyphcache.Cache, alloc glyphcache.Allocator) *Iterator {
	return &Iterator{shapes: shapes, glyphs: glyphs, alloc: alloc}
}

// Init begins a new walk over text starting at pen position (x, y),
// building a shape fingerprint per font-segmented run and consulting the
// shape cache for each: on hit the iterator points at the cached glyph
// array, on miss cfg.Shape is invoked and its result inserted.
func (it *Iterator) Init(x, y float32, text string, cfg Config) {
	it.cfg = cfg
	it.originX, it.originY = x, y
	it.penX, it.penY = x, y
	it.runIdx = 0
	it.glyphIdx = 0
	it.started = true
	it.runs = it.runs[:0]

	for _, seg := range segmentByFont(text, cfg.FontForCodepoint) {
		fp := shapecache.Fingerprint{
			Text:             seg.text,
			FontID:           seg.fontID,
			SizePx:           cfg.SizePx,
			HintingMode:      cfg.HintingMode,
			SubpixelMode:     cfg.SubpixelMode,
			VariationStateID: cfg.VariationStateID,
			Features:         shapecache.CanonicalizeFeatures(cfg.Features),
			KerningEnabled:   cfg.KerningEnabled,
			BidiEnabled:      cfg.BidiEnabled,
			BaseDirection:    cfg.BaseDirection,
		}

		var glyphs []shapecache.ShapedGlyph
		if entry, ok := it.shapes.Lookup(fp); ok {
			glyphs = entry.Glyphs
		} else if cfg.Shape != nil {
			glyphs = cfg.Shape(seg.fontID, seg.text, cfg)
			it.shapes.Insert(fp, glyphs)
		}

		it.runs = append(it.runs, run{fontID: seg.fontID, glyphs: glyphs})
	}
}

// fontSegment is one contiguous stretch of text mapped to a single font.
type fontSegment struct {
	fontID uint64
	text   string
}

// segmentByFont splits text into maximal runs sharing the same font,
// using fontForCodepoint per spec.md §4.9's mixed-font-run rule. A nil
// fontForCodepoint yields a single run with fontID 0.
func segmentByFont(text string, fontForCodepoint FontForCodepoint) []fontSegment {
	if text == "" {
		return nil
	}
	if fontForCodepoint == nil {
		return []fontSegment{{fontID: 0, text: text}}
	}

	var segments []fontSegment
	runes := []rune(text)
	start := 0
	curFont := fontForCodepoint(runes[0])

	for i := 1; i < len(runes); i++ {
		f := fontForCodepoint(runes[i])
		if f != curFont {
			segments = append(segments, fontSegment{fontID: curFont, text: string(runes[start:i])})
			start = i
			curFont = f
		}
	}
	segments = append(segments, fontSegment{fontID: curFont, text: string(runes[start:])})
	return segments
}

// Next yields the next glyph in the walk as a textured quad, or
// (CachedGlyph{}, false) once the run is exhausted or before Init has been
// called.
func (it *Iterator) Next() (CachedGlyph, bool) {
	if !it.started {
		return CachedGlyph{}, false
	}

	for it.runIdx < len(it.runs) {
		r := &it.runs[it.runIdx]
		if it.glyphIdx >= len(r.glyphs) {
			it.runIdx++
			it.glyphIdx = 0
			continue
		}

		g := r.glyphs[it.glyphIdx]
		it.glyphIdx++

		cg := it.resolveGlyph(r.fontID, g)
		return cg, true
	}

	return CachedGlyph{}, false
}

func (it *Iterator) resolveGlyph(fontID uint64, g shapecache.ShapedGlyph) CachedGlyph {
	x := it.originX + float32(g.X)
	y := it.originY + float32(g.Y)

	var w, h int
	var bearingX, bearingY, advanceX float32
	if it.cfg.GlyphMetrics != nil {
		w, h, bearingX, bearingY, advanceX = it.cfg.GlyphMetrics(fontID, g.GID, it.cfg.SizePx)
	}

	fp := glyphcache.Fingerprint{
		FontID:           fontID,
		GlyphIndex:       uint32(g.GID),
		SizePx:           it.cfg.SizePx,
		HintingMode:      it.cfg.HintingMode,
		SubpixelMode:     it.cfg.SubpixelMode,
		VariationStateID: it.cfg.VariationStateID,
		SrcColorSpace:    it.cfg.SrcColorSpace,
		DstColorSpace:    it.cfg.DstColorSpace,
		PixelFormat:      it.cfg.PixelFormat,
	}

	entry, ok := it.glyphs.Lookup(fp)
	if !ok && w > 0 && h > 0 {
		if inserted, err := it.glyphs.RequestInsert(fp, w, h, it.alloc); err == nil {
			inserted.MarkLoading()
			entry = inserted
		}
	}

	cg := CachedGlyph{
		X0: x + bearingX,
		Y0: y - bearingY,
	}
	cg.X1 = cg.X0 + float32(w)
	cg.Y1 = cg.Y0 + float32(h)

	if entry != nil {
		cg.AtlasID = entry.AtlasID
		cg.State = entry.State()
		uv := entry.UV
		cg.S0, cg.T0, cg.S1, cg.T1 = uv.S0, uv.T0, uv.S1, uv.T1
	}

	if it.cfg.Vertical {
		it.penY += float32(g.YAdvance)
	} else {
		it.penX += advanceX
		if advanceX == 0 {
			it.penX += float32(g.XAdvance)
		}
	}

	return cg
}

// Free releases this iterator's per-walk state so it can be reused for
// another Init call (or garbage collected, if discarded).
func (it *Iterator) Free() {
	it.runs = nil
	it.started = false
}

// Bounds measures the total advance of text without touching the shape or
// glyph caches: it re-invokes the shaper directly so a caller measuring
// text for layout purposes never allocates cache space it will not
// otherwise need, per spec.md §4.9.
func Bounds(text string, cfg Config) (width, height float32) {
	if cfg.Shape == nil {
		return 0, 0
	}
	for _, seg := range segmentByFont(text, cfg.FontForCodepoint) {
		for _, g := range cfg.Shape(seg.fontID, seg.text, cfg) {
			if cfg.Vertical {
				height += float32(g.YAdvance)
			} else {
				width += float32(g.XAdvance)
			}
		}
	}
	return width, height
}

// Seq returns a range-over-func view of the remaining glyphs, for callers
// that prefer `for g := range it.Seq() { ... }` over manual Next polling,
// mirroring text/face.go's Glyphs(s string) iter.Seq[Glyph].
func (it *Iterator) Seq() iter.Seq[CachedGlyph] {
	return func(yield func(CachedGlyph) bool) {
		for {
			g, ok := it.Next()
			if !ok {
				return
			}
			if !yield(g) {
				return
			}
		}
	}
}
