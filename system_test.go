package glyphatlas

// End-to-end scenarios exercising System through its public API, grounded
// on the teacher's own preference for synthetic test fixtures over real
// font/GPU dependencies (text/glyph_outline_test.go's hand-built outlines,
// internal/gpu/renderer_test.go's null-backend pattern). fakeEngine and
// fakeShaper stand in for a real SFNT font and a real HarfBuzz shaper so
// these tests need neither a font file nor a GPU device.

import (
	"testing"
	"time"

	"github.com/gogpu/glyphatlas/fontengine"
	"github.com/gogpu/glyphatlas/glyphcache"
	"github.com/gogpu/glyphatlas/gpu"
	"github.com/gogpu/glyphatlas/shapecache"
	"github.com/gogpu/glyphatlas/shaping"
)

// fakeEngine implements fontengine.Engine for a font with exactly one
// glyph: 'A' maps to GlyphID(1), a 10x10 square outline.
type fakeEngine struct {
	px float32
}

func (e *fakeEngine) SetPixelSize(px float32) { e.px = px }

func (e *fakeEngine) GlyphIndexFor(r rune) (fontengine.GlyphID, bool) {
	if r == 'A' {
		return 1, true
	}
	return 0, false
}

func (e *fakeEngine) Advance(gid fontengine.GlyphID) float32 {
	if gid == 1 {
		return 12
	}
	return 0
}

func (e *fakeEngine) Decompose(gid fontengine.GlyphID, sink fontengine.OutlineSink) error {
	if gid != 1 {
		return fontengine.ErrNoOutline
	}
	sink.MoveTo(fontengine.Point{X: 0, Y: 0})
	sink.LineTo(fontengine.Point{X: 10, Y: 0})
	sink.LineTo(fontengine.Point{X: 10, Y: 10})
	sink.LineTo(fontengine.Point{X: 0, Y: 10})
	sink.LineTo(fontengine.Point{X: 0, Y: 0})
	return nil
}

func (e *fakeEngine) Paint(gid fontengine.GlyphID) (fontengine.PaintIterator, error) {
	return nil, fontengine.ErrNoOutline
}

func (e *fakeEngine) Kern(left, right fontengine.GlyphID) float32 { return 0 }

func (e *fakeEngine) SetVariations(coords map[string]float32) uint64 { return uint64(len(coords)) }

func (e *fakeEngine) VariationStateID() uint64 { return 0 }

// fakeShaper implements shaping.Shaper, mapping each rune of its input
// text straight through fakeEngine's single glyph id 1:1, advancing by a
// fixed 12 units per character.
type fakeShaper struct{}

func (fakeShaper) Shape(in shaping.Input) []shapecache.ShapedGlyph {
	glyphs := make([]shapecache.ShapedGlyph, 0, len(in.Text))
	var pen float64
	for i := range in.Text {
		glyphs = append(glyphs, shapecache.ShapedGlyph{
			GID:      1,
			Cluster:  i,
			X:        pen,
			XAdvance: 12,
		})
		pen += 12
	}
	return glyphs
}

// newTestSystem builds a System wired to gpu.NullBackend with a single
// fake font registered as FontID 1, and fakeShaper installed in place of
// the real go-text/typesetting shaper.
func newTestSystem(t *testing.T) (*System, FontID) {
	t.Helper()

	sys, err := NewSystem(DefaultConfig(gpu.NewNullBackend()))
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	t.Cleanup(sys.Close)

	sys.shaper = fakeShaper{}

	sys.fontMu.Lock()
	sys.nextFontID++
	id := sys.nextFontID
	sys.fonts[id] = &fontEntry{
		data:    []byte("fake-font"),
		metrics: &fakeEngine{},
		raster:  &fakeEngine{},
	}
	sys.fontMu.Unlock()

	sys.SetFont(id)
	return sys, id
}

// S1: an iterator over empty text yields nothing on the first Next, and
// allocates no atlas space.
func TestTextIterEmptyString(t *testing.T) {
	sys, _ := newTestSystem(t)

	if err := sys.TextIterInit(0, 0, ""); err != nil {
		t.Fatalf("TextIterInit: %v", err)
	}

	if _, ok := sys.TextIterNext(); ok {
		t.Fatal("expected no glyph from empty text")
	}

	if n := len(sys.atlasMgr.Instances(sys.currentAtlasKey())); n != 0 {
		t.Fatalf("expected no atlas instances allocated, got %d", n)
	}
}

// S2: a single ASCII glyph produces one CachedGlyph with a non-empty
// screen rect and a UV rect strictly inside (0,1)x(0,1) once uploaded,
// and the iterator is exhausted after it.
func TestTextIterSingleGlyph(t *testing.T) {
	sys, _ := newTestSystem(t)
	sys.SetSize(32)

	if err := sys.TextIterInit(0, 0, "A"); err != nil {
		t.Fatalf("TextIterInit: %v", err)
	}

	cg, ok := sys.TextIterNext()
	if !ok {
		t.Fatal("expected one glyph")
	}
	if cg.X1-cg.X0 <= 0 {
		t.Fatalf("expected positive screen width, got x0=%v x1=%v", cg.X0, cg.X1)
	}

	waitForLoader(t, sys)

	enc := sys.backend.NewCommandEncoder()
	if n := sys.ProcessUploads(enc); n == 0 {
		t.Fatal("expected at least one processed upload")
	}

	entry, ok := sys.glyphs.Lookup(sys.lastFingerprint())
	if !ok {
		t.Fatal("expected glyph cache entry to exist after upload")
	}
	if entry.UV.S0 <= 0 || entry.UV.S1 >= 1 || entry.UV.T0 <= 0 || entry.UV.T1 >= 1 {
		t.Fatalf("expected UV strictly inside (0,1)x(0,1), got %+v", entry.UV)
	}

	if _, ok := sys.TextIterNext(); ok {
		t.Fatal("expected iterator exhausted after one glyph")
	}
}

// Variation changes bump the font's variation state and invalidate its
// shape-cache entries, matching spec.md's S4 rule extended to the font
// table rather than a raw font-version counter.
func TestSetVariationsInvalidatesShapeCache(t *testing.T) {
	sys, id := newTestSystem(t)

	if err := sys.TextIterInit(0, 0, "A"); err != nil {
		t.Fatalf("TextIterInit: %v", err)
	}
	for {
		if _, ok := sys.TextIterNext(); !ok {
			break
		}
	}

	before := sys.currentVariationState()
	if err := sys.SetVariations(id, map[string]float32{"wght": 700}); err != nil {
		t.Fatalf("SetVariations: %v", err)
	}
	after := sys.currentVariationState()

	if before == after {
		t.Fatal("expected VariationStateID to change")
	}
}

// AddFallback lets a base font with no glyph for a codepoint defer to its
// fallback chain, per spec.md's mixed-font-run segmentation rule.
func TestFontFallbackResolution(t *testing.T) {
	sys, base := newTestSystem(t)

	sys.fontMu.Lock()
	sys.nextFontID++
	fallbackID := sys.nextFontID
	sys.fonts[fallbackID] = &fontEntry{data: []byte("fallback"), metrics: &alwaysHasGlyph{}, raster: &alwaysHasGlyph{}}
	sys.fontMu.Unlock()

	if err := sys.AddFallback(base, fallbackID); err != nil {
		t.Fatalf("AddFallback: %v", err)
	}

	resolved := sys.fontForCodepoint('Z')
	if FontID(resolved) != fallbackID {
		t.Fatalf("expected fallback font %d to resolve 'Z', got %d", fallbackID, resolved)
	}
}

// alwaysHasGlyph is a minimal fontengine.Engine stub that reports a glyph
// for every rune, used only to exercise fallback resolution.
type alwaysHasGlyph struct{ fakeEngine }

func (a *alwaysHasGlyph) GlyphIndexFor(r rune) (fontengine.GlyphID, bool) { return 1, true }

// waitForLoader polls until the background loader has finished processing
// every submitted request, bounded to avoid hanging the test suite if the
// loader ever deadlocks.
func waitForLoader(t *testing.T, sys *System) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sys.ld.PendingLoads() == 0 && sys.ld.PendingUploads() > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for loader to finish rasterizing")
}

// lastFingerprint rebuilds the fingerprint TextIterNext most recently
// submitted, using the same bridge fields maybeSubmitLoad reads.
func (s *System) lastFingerprint() glyphcache.Fingerprint {
	return glyphcache.Fingerprint{
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
}
