package glyphatlas

// Color-glyph (COLR/CPAL) rasterization: each layer of a color glyph is
// rasterized into its own coverage mask, tinted by its resolved palette
// color, then composited bottom to top into one straight-alpha RGBA8
// bitmap. This is the consumer side of fontengine.PaintIterator/Layer,
// which SFNTEngine always reports empty for (engine_color.go - no COLR/CPAL
// table reader) but which a COLR-aware Engine can drive, the same way
// text/color_font.go's ColorFont.COLRGlyph feeds a layer list into a
// drawing loop.
//
// Grounded in backend/software.go's layer-by-layer compositing and
// internal/image's DrawImage (alpha-over blend) and internal/color's
// sRGB<->linear conversion (CPAL palette entries are always sRGB; the
// atlas may target either space per atlas.Key.DstColorSpace). Per-layer
// masks are independent until composite, so they rasterize concurrently
// on System's colorPool (internal/parallel.WorkerPool) rather than one at
// a time.
import (
	"github.com/gogpu/glyphatlas/atlas"
	"github.com/gogpu/glyphatlas/fontengine"
	"github.com/gogpu/glyphatlas/glyphcache"
	internalcolor "github.com/gogpu/glyphatlas/internal/color"
	internalimage "github.com/gogpu/glyphatlas/internal/image"
	internalpath "github.com/gogpu/glyphatlas/internal/path"
	"github.com/gogpu/glyphatlas/internal/raster"
	"github.com/gogpu/glyphatlas/loader"
)

// colorGlyphBounds computes the union pixel bounding box of every layer
// gid resolves to, for the owner-thread glyph-metrics probe (textiter.go's
// glyphMetrics) to size the glyph cache's reserved rectangle before the
// loader ever runs. A glyph engine.Decompose reports empty (the usual
// case for a COLR base glyph, which carries no outline of its own) may
// still need atlas space once its layers are accounted for.
func colorGlyphBounds(engine fontengine.Engine, gid fontengine.GlyphID) (boundsSink, bool) {
	pi, err := engine.Paint(gid)
	if err != nil || pi == nil {
		return boundsSink{}, false
	}
	var union boundsSink
	for pi.Next() {
		var bb boundsSink
		if engine.Decompose(fontengine.GlyphID(pi.Layer().GlyphID), &bb) != nil || !bb.has {
			continue
		}
		union.expand(fontengine.Point{X: bb.minX, Y: bb.minY})
		union.expand(fontengine.Point{X: bb.maxX, Y: bb.maxY})
	}
	return union, union.has
}

// rasterizeColorGlyph renders gid's color layers against fp's target
// color space and returns the composited loader.Result, or a zero-size
// result if gid carries no color layers or none of them have an outline.
func (s *System) rasterizeColorGlyph(engine fontengine.Engine, gid fontengine.GlyphID, fp glyphcache.Fingerprint, advanceX float32) (loader.Result, error) {
	pi, err := engine.Paint(gid)
	if err != nil || pi == nil {
		return loader.Result{AdvanceX: advanceX}, nil
	}

	type resolved struct {
		gid    fontengine.GlyphID
		color  fontengine.Color
		bounds boundsSink
	}
	var layers []resolved
	for pi.Next() {
		l := pi.Layer()
		var bb boundsSink
		if engine.Decompose(l.GlyphID, &bb) != nil || !bb.has {
			continue
		}
		layers = append(layers, resolved{gid: l.GlyphID, color: resolveLayerColor(l), bounds: bb})
	}
	if len(layers) == 0 {
		return loader.Result{AdvanceX: advanceX}, nil
	}

	var union boundsSink
	for _, l := range layers {
		union.expand(fontengine.Point{X: l.bounds.minX, Y: l.bounds.minY})
		union.expand(fontengine.Point{X: l.bounds.maxX, Y: l.bounds.maxY})
	}
	w := int(ceilFloat32(union.maxX - union.minX))
	h := int(ceilFloat32(union.maxY - union.minY))
	if w <= 0 || h <= 0 {
		return loader.Result{AdvanceX: advanceX}, nil
	}

	dstCS := toInternalColorSpace(atlas.ColorSpace(fp.DstColorSpace))
	masks := make([]*internalimage.ImageBuf, len(layers))
	jobs := make([]func(), len(layers))
	for i, l := range layers {
		i, l := i, l
		jobs[i] = func() {
			mask, err := rasterizeLayerMask(engine, l.gid, union.minX, union.maxY, w, h, l.color, dstCS)
			if err == nil {
				masks[i] = mask
			}
		}
	}
	s.colorPool.ExecuteAll(jobs)

	dst, err := internalimage.NewImageBuf(w, h, internalimage.FormatRGBA8)
	if err != nil {
		return loader.Result{}, err
	}
	for _, mask := range masks {
		if mask == nil {
			continue
		}
		internalimage.DrawImage(dst, mask, internalimage.DrawParams{
			DstRect: internalimage.Rect{X: 0, Y: 0, Width: w, Height: h},
			Interp:  internalimage.InterpNearest,
			Opacity: 1,
			BlendMode: internalimage.BlendNormal,
		})
	}

	return loader.Result{
		Pixels:   dst.Data(),
		Width:    w,
		Height:   h,
		BearingX: union.minX,
		BearingY: union.maxY,
		AdvanceX: advanceX,
	}, nil
}

// rasterizeLayerMask rasterizes gid's outline at the glyph's overall
// bearing/size, filled with color (already converted to dstCS), as a
// straight-alpha RGBA8 internal/image.ImageBuf.
func rasterizeLayerMask(engine fontengine.Engine, gid fontengine.GlyphID, bearingX, bearingY float32, w, h int, color fontengine.Color, dstCS internalcolor.ColorSpace) (*internalimage.ImageBuf, error) {
	var pb pathBuilderSink
	pb.bearingX, pb.bearingY = bearingX, bearingY
	if err := engine.Decompose(gid, &pb); err != nil {
		return nil, err
	}

	edges := internalpath.CollectEdges(pb.elements)
	rasterEdges := make([]raster.PathEdge, len(edges))
	for i, e := range edges {
		rasterEdges[i] = raster.PathEdge{
			P0: raster.Point{X: e.P0.X, Y: e.P0.Y},
			P1: raster.Point{X: e.P1.X, Y: e.P1.Y},
		}
	}

	cov := newCoverageBitmap(w, h, atlas.FormatA8)
	rz := raster.NewRasterizer(w, h)
	rz.FillAAFromEdges(cov, rasterEdges, raster.FillRuleNonZero, raster.RGBA{R: 1, G: 1, B: 1, A: 1})

	rgb := tintColor(color, dstCS)
	buf, err := internalimage.NewImageBuf(w, h, internalimage.FormatRGBA8)
	if err != nil {
		return nil, err
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := cov.pixels[y*w+x]
			buf.SetRGBA(x, y, rgb.R, rgb.G, rgb.B, a)
		}
	}
	return buf, nil
}

// resolveLayerColor returns l's fill color, substituting opaque black for
// a Foreground layer: System tracks no "current text color" of its own
// (spec.md's current state stops at color space and pixel format), and
// black is the same default a renderer falls back to when the caller
// never set one, matching DefaultConfig's own zero-value conventions.
func resolveLayerColor(l fontengine.Layer) fontengine.Color {
	if l.Foreground {
		return fontengine.Color{R: 0, G: 0, B: 0, A: 255}
	}
	return l.Color
}

// tintColor converts a CPAL palette color (always sRGB, per the OpenType
// COLR/CPAL spec) into dstCS.
func tintColor(c fontengine.Color, dstCS internalcolor.ColorSpace) internalcolor.ColorU8 {
	u8 := internalcolor.ColorU8{R: c.R, G: c.G, B: c.B, A: c.A}
	if dstCS != internalcolor.ColorSpaceLinear {
		return u8
	}
	return internalcolor.F32ToU8(internalcolor.SRGBToLinearColor(internalcolor.U8ToF32(u8)))
}

// toInternalColorSpace maps atlas.ColorSpace onto internal/color.ColorSpace:
// the two enums share the same two members but not the same iota order
// (atlas.ColorSpaceLinear == 0, internalcolor.ColorSpaceLinear == 1).
func toInternalColorSpace(cs atlas.ColorSpace) internalcolor.ColorSpace {
	if cs == atlas.ColorSpaceLinear {
		return internalcolor.ColorSpaceLinear
	}
	return internalcolor.ColorSpaceSRGB
}
