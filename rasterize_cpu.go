package glyphatlas

// The default CPU rasterization path: turns a glyphcache.Fingerprint into
// pixel coverage by decomposing the glyph's outline and scan-converting
// it with the teacher's own anti-aliased software rasterizer, rather than
// leaving loader.RasterizeFunc an unwired caller-supplied stub.
//
// Pipeline: fontengine.Engine.Decompose -> internal/path.PathElement ->
// internal/path.EdgeIter (subpath-correct edges) -> internal/raster.PathEdge
// -> internal/raster.Rasterizer.FillAAFromEdges. Grounded in software.go's
// SoftwareRenderer/pixmapAdapter, which already bridges this module's own
// path/pixmap types across the same internal/raster package; deliberately
// avoids internal/raster.FillAA and Path.Flatten, both of which connect
// separate subpaths together and so would mis-render any glyph with a
// counter (the hole in 'A', 'o', 'e', ...).
//
// Runs on the loader's single background goroutine (loader.go), using
// each font's dedicated raster fontengine.Engine instance rather than the
// one the owner thread uses for metrics lookups — see fontEntry's doc
// comment in glyphatlas.go for why they must not be shared.

import (
	"fmt"

	"github.com/gogpu/glyphatlas/atlas"
	"github.com/gogpu/glyphatlas/fontengine"
	"github.com/gogpu/glyphatlas/glyphcache"
	"github.com/gogpu/glyphatlas/internal/clip"
	internalpath "github.com/gogpu/glyphatlas/internal/path"
	"github.com/gogpu/glyphatlas/internal/raster"
	"github.com/gogpu/glyphatlas/loader"
)

// rasterizeOnLoader is the loader.RasterizeFunc wired into NewSystem's
// *loader.Loader. It never touches the owner thread's font-engine
// instance, the atlas manager, or the glyph/shape caches directly: it
// only reads font bytes (immutable once added) and the per-font raster
// engine it exclusively owns.
func (s *System) rasterizeOnLoader(req loader.Request) (loader.Result, error) {
	fp, ok := req.Key.(glyphcache.Fingerprint)
	if !ok {
		return loader.Result{}, fmt.Errorf("glyphatlas: unexpected loader request key %T", req.Key)
	}

	s.fontMu.RLock()
	entry, ok := s.fonts[FontID(fp.FontID)]
	s.fontMu.RUnlock()
	if !ok {
		return loader.Result{}, fmt.Errorf("%w: %d", ErrUnknownFont, fp.FontID)
	}

	engine := entry.raster
	engine.SetPixelSize(fp.SizePx)
	gid := fontengine.GlyphID(fp.GlyphIndex)

	advanceX := engine.Advance(gid)

	var bb boundsSink
	if err := engine.Decompose(gid, &bb); err != nil || !bb.has {
		// No plain outline: either a space, or a COLR color glyph whose
		// base gid carries no 'glyf' outline of its own.
		if result, cerr := s.rasterizeColorGlyph(engine, gid, fp, advanceX); cerr == nil && result.Width > 0 {
			return result, nil
		}
		return loader.Result{AdvanceX: advanceX}, nil
	}

	w := int(ceilFloat32(bb.maxX - bb.minX))
	h := int(ceilFloat32(bb.maxY - bb.minY))
	w, h = clampGlyphBounds(w, h, s.atlasCfg.AtlasSize)
	if w <= 0 || h <= 0 {
		return loader.Result{AdvanceX: advanceX}, nil
	}

	var pb pathBuilderSink
	pb.bearingX, pb.bearingY = bb.minX, bb.maxY
	if err := engine.Decompose(gid, &pb); err != nil {
		return loader.Result{}, err
	}

	elements := emboldenElements(pb.elements, fp.SyntheticEmbolden)
	edges := internalpath.CollectEdges(elements)
	rasterEdges := make([]raster.PathEdge, len(edges))
	for i, e := range edges {
		rasterEdges[i] = raster.PathEdge{
			P0: raster.Point{X: e.P0.X, Y: e.P0.Y},
			P1: raster.Point{X: e.P1.X, Y: e.P1.Y},
		}
	}

	bmp := newCoverageBitmap(w, h, atlas.PixelFormat(fp.PixelFormat))
	rz := raster.NewRasterizer(w, h)
	rz.FillAAFromEdges(bmp, rasterEdges, raster.FillRuleNonZero, raster.RGBA{R: 1, G: 1, B: 1, A: 1})

	return loader.Result{
		Pixels:   bmp.bytes(),
		Width:    w,
		Height:   h,
		BearingX: bb.minX,
		BearingY: bb.maxY,
		AdvanceX: advanceX,
	}, nil
}

// onLoadFailure frees the glyph cache entry's reserved atlas rectangle
// when rasterization fails, per loader.FailureFunc's contract.
func (s *System) onLoadFailure(key any, err error) {
	fp, ok := key.(glyphcache.Fingerprint)
	if !ok {
		return
	}
	s.clearPending(fp)

	alloc := s.allocatorFor(atlasKeyFromFingerprint(fp))
	s.glyphs.MarkFailed(fp, alloc)
}

func (s *System) clearPending(fp glyphcache.Fingerprint) {
	s.pendingMu.Lock()
	delete(s.pendingLoads, fp)
	s.pendingMu.Unlock()
}

// clampGlyphBounds clips a glyph's computed pixel bounds against maxSize
// (an atlas instance's texture dimension): a malformed font can report an
// outline bbox far larger than any atlas cell could ever hold, which
// would otherwise size a multi-megabyte coverage bitmap for one glyph
// atlas.Manager.Alloc is going to reject anyway (atlas.go's own w/h >
// AtlasSize check).
func clampGlyphBounds(w, h, maxSize int) (int, int) {
	if maxSize <= 0 {
		return w, h
	}
	r := clip.NewRect(0, 0, float64(w), float64(h)).Intersect(clip.NewRect(0, 0, float64(maxSize), float64(maxSize)))
	return int(r.W), int(r.H)
}

func atlasKeyFromFingerprint(fp glyphcache.Fingerprint) atlas.Key {
	return atlas.Key{
		SrcColorSpace: atlas.ColorSpace(fp.SrcColorSpace),
		DstColorSpace: atlas.ColorSpace(fp.DstColorSpace),
		Format:        atlas.PixelFormat(fp.PixelFormat),
		Subpixel:      atlas.SubpixelMode(fp.SubpixelMode),
	}
}

// pathBuilderSink implements fontengine.OutlineSink, translating font-unit
// outline coordinates into the glyph's own w x h pixel bitmap space
// (origin at the glyph's top-left bearing point, Y flipped since raster
// coordinates increase downward while font coordinates increase upward)
// and recording the result as internal/path.PathElement values.
type pathBuilderSink struct {
	elements           []internalpath.PathElement
	bearingX, bearingY float32
}

func (p *pathBuilderSink) translate(pt fontengine.Point) internalpath.Point {
	return internalpath.Point{
		X: float64(pt.X - p.bearingX),
		Y: float64(p.bearingY - pt.Y),
	}
}

func (p *pathBuilderSink) MoveTo(pt fontengine.Point) {
	p.elements = append(p.elements, internalpath.MoveTo{Point: p.translate(pt)})
}

func (p *pathBuilderSink) LineTo(pt fontengine.Point) {
	p.elements = append(p.elements, internalpath.LineTo{Point: p.translate(pt)})
}

func (p *pathBuilderSink) QuadTo(ctrl, pt fontengine.Point) {
	p.elements = append(p.elements, internalpath.QuadTo{
		Control: p.translate(ctrl),
		Point:   p.translate(pt),
	})
}

func (p *pathBuilderSink) CubicTo(c1, c2, pt fontengine.Point) {
	p.elements = append(p.elements, internalpath.CubicTo{
		Control1: p.translate(c1),
		Control2: p.translate(c2),
		Point:    p.translate(pt),
	})
}

// coverageBitmap implements internal/raster.AAPixmap, accumulating
// straight (non-premultiplied-by-anything-else) glyph coverage into a
// byte buffer matching the atlas pixel format: one coverage byte per
// pixel for FormatA8, or an opaque-white-times-coverage RGBA quad for
// FormatRGBA8 (subpixel and color-glyph atlases both store full-color
// texels even for a monochrome fill).
type coverageBitmap struct {
	width, height int
	format        atlas.PixelFormat
	pixels        []uint8 // one coverage byte per pixel, 0-255
}

func newCoverageBitmap(w, h int, format atlas.PixelFormat) *coverageBitmap {
	return &coverageBitmap{width: w, height: h, format: format, pixels: make([]uint8, w*h)}
}

func (b *coverageBitmap) Width() int  { return b.width }
func (b *coverageBitmap) Height() int { return b.height }

func (b *coverageBitmap) SetPixel(x, y int, c raster.RGBA) {
	b.blend(x, y, uint8(clamp01(c.A)*255))
}

func (b *coverageBitmap) BlendPixelAlpha(x, y int, c raster.RGBA, alpha uint8) {
	b.blend(x, y, alpha)
}

func (b *coverageBitmap) blend(x, y int, coverage uint8) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return
	}
	idx := y*b.width + x
	if existing := b.pixels[idx]; coverage > existing {
		b.pixels[idx] = coverage
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// bytes renders the accumulated coverage into the final pixel buffer.
func (b *coverageBitmap) bytes() []byte {
	if b.format == atlas.FormatRGBA8 {
		out := make([]byte, len(b.pixels)*4)
		for i, cov := range b.pixels {
			out[i*4+0] = 255
			out[i*4+1] = 255
			out[i*4+2] = 255
			out[i*4+3] = cov
		}
		return out
	}
	out := make([]byte, len(b.pixels))
	copy(out, b.pixels)
	return out
}
