package iter

import (
	"testing"

	"github.com/gogpu/glyphatlas/glyphcache"
	"github.com/gogpu/glyphatlas/shapecache"
)

type fakeAllocator struct {
	next atlasCursor
}

type atlasCursor struct{ x, y int }

func (a *fakeAllocator) Alloc(w, h int) (uint32, int, int, error) {
	x, y := a.next.x, a.next.y
	a.next.x += w
	return 1, x, y, nil
}
func (a *fakeAllocator) Free(atlasID uint32, x, y, w, h int) {}

func fixedShape(fontID uint64, text string, cfg Config) []shapecache.ShapedGlyph {
	glyphs := make([]shapecache.ShapedGlyph, len(text))
	var x float64
	for i, r := range text {
		glyphs[i] = shapecache.ShapedGlyph{
			GID:      shapecache.GlyphID(r),
			Cluster:  i,
			X:        x,
			XAdvance: 10,
		}
		x += 10
	}
	return glyphs
}

func fixedMetrics(fontID uint64, gid shapecache.GlyphID, sizePx float32) (int, int, float32, float32, float32) {
	return 8, 8, 0, 8, 10
}

func baseConfig() Config {
	return Config{
		Shape:        fixedShape,
		GlyphMetrics: fixedMetrics,
		SizePx:       16,
	}
}

func TestIteratorYieldsOneGlyphPerCharacter(t *testing.T) {
	shapes := shapecache.New(8)
	glyphs := glyphcache.New(64)
	alloc := &fakeAllocator{}

	it := New(shapes, glyphs, alloc)
	it.Init(0, 0, "ab", baseConfig())

	var got []CachedGlyph
	for {
		g, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, g)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 glyphs, got %d", len(got))
	}
	if got[0].X1-got[0].X0 != 8 {
		t.Fatalf("expected quad width 8, got %v", got[0].X1-got[0].X0)
	}
}

func TestIteratorSecondCallHitsShapeCache(t *testing.T) {
	shapes := shapecache.New(8)
	glyphs := glyphcache.New(64)
	alloc := &fakeAllocator{}

	calls := 0
	cfg := baseConfig()
	cfg.Shape = func(fontID uint64, text string, c Config) []shapecache.ShapedGlyph {
		calls++
		return fixedShape(fontID, text, c)
	}

	it := New(shapes, glyphs, alloc)
	it.Init(0, 0, "hi", cfg)
	for ok := true; ok; _, ok = it.Next() {
	}

	it.Init(0, 0, "hi", cfg)
	for ok := true; ok; _, ok = it.Next() {
	}

	if calls != 1 {
		t.Fatalf("expected shaper invoked once (second Init should hit shape cache), got %d calls", calls)
	}
	_, misses, _, _ := shapes.Stats()
	if misses != 1 {
		t.Fatalf("expected exactly 1 shape cache miss, got %d", misses)
	}
}

func TestIteratorSegmentsMixedFontRuns(t *testing.T) {
	shapes := shapecache.New(8)
	glyphs := glyphcache.New(64)
	alloc := &fakeAllocator{}

	var fontsSeen []uint64
	cfg := baseConfig()
	cfg.FontForCodepoint = func(r rune) uint64 {
		if r < 'a' {
			return 1
		}
		return 2
	}
	cfg.Shape = func(fontID uint64, text string, c Config) []shapecache.ShapedGlyph {
		fontsSeen = append(fontsSeen, fontID)
		return fixedShape(fontID, text, c)
	}

	it := New(shapes, glyphs, alloc)
	it.Init(0, 0, "ABab", cfg)
	var n int
	for ok := true; ok; {
		var g CachedGlyph
		g, ok = it.Next()
		if ok {
			n++
			_ = g
		}
	}

	if n != 4 {
		t.Fatalf("expected 4 glyphs total across both runs, got %d", n)
	}
	if len(fontsSeen) != 2 || fontsSeen[0] != 1 || fontsSeen[1] != 2 {
		t.Fatalf("expected two shape calls for fonts [1 2], got %v", fontsSeen)
	}
}

func TestIteratorRequestsGlyphCacheEntryOnMiss(t *testing.T) {
	shapes := shapecache.New(8)
	glyphs := glyphcache.New(64)
	alloc := &fakeAllocator{}

	it := New(shapes, glyphs, alloc)
	it.Init(0, 0, "a", baseConfig())

	g, ok := it.Next()
	if !ok {
		t.Fatal("expected one glyph")
	}
	if g.AtlasID != 1 {
		t.Fatalf("expected requested atlas ID 1, got %d", g.AtlasID)
	}
	if glyphs.Len() != 1 {
		t.Fatalf("expected 1 glyph cache entry created, got %d", glyphs.Len())
	}
}

func TestFreeResetsIterator(t *testing.T) {
	shapes := shapecache.New(8)
	glyphs := glyphcache.New(64)
	alloc := &fakeAllocator{}

	it := New(shapes, glyphs, alloc)
	it.Init(0, 0, "ab", baseConfig())
	it.Free()

	if _, ok := it.Next(); ok {
		t.Fatal("expected Next to return false after Free")
	}
}

func TestBoundsDoesNotPopulateCaches(t *testing.T) {
	cfg := baseConfig()
	w, h := Bounds("abc", cfg)
	if w != 30 {
		t.Fatalf("expected width 30 (3 glyphs x 10 advance), got %v", w)
	}
	if h != 0 {
		t.Fatalf("expected 0 height for horizontal text, got %v", h)
	}
}

func TestSeqYieldsSameGlyphsAsNext(t *testing.T) {
	shapes := shapecache.New(8)
	glyphs := glyphcache.New(64)
	alloc := &fakeAllocator{}

	it := New(shapes, glyphs, alloc)
	it.Init(0, 0, "xyz", baseConfig())

	var n int
	for range it.Seq() {
		n++
	}
	if n != 3 {
		t.Fatalf("expected 3 glyphs via Seq, got %d", n)
	}
}
