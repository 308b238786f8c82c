package fontengine

import (
	"testing"

	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

type recordingSink struct {
	moves, lines, quads, cubics int
}

func (s *recordingSink) MoveTo(p Point)          { s.moves++ }
func (s *recordingSink) LineTo(p Point)          { s.lines++ }
func (s *recordingSink) QuadTo(ctrl, p Point)    { s.quads++ }
func (s *recordingSink) CubicTo(c1, c2, p Point) { s.cubics++ }

func TestSFNTEngineDecomposesRealGlyph(t *testing.T) {
	e, err := NewSFNTEngine(goregular.TTF)
	if err != nil {
		t.Fatalf("failed to parse font: %v", err)
	}
	e.SetPixelSize(32)

	gid, ok := e.GlyphIndexFor('A')
	if !ok {
		t.Fatal("expected a glyph for 'A'")
	}

	var sink recordingSink
	if err := e.Decompose(gid, &sink); err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}
	if sink.moves == 0 {
		t.Fatal("expected at least one MoveTo call")
	}

	if adv := e.Advance(gid); adv <= 0 {
		t.Fatalf("expected positive advance for 'A', got %v", adv)
	}
}

func TestSFNTEngineDecomposeSpaceHasNoOutline(t *testing.T) {
	e, err := NewSFNTEngine(goregular.TTF)
	if err != nil {
		t.Fatalf("failed to parse font: %v", err)
	}
	e.SetPixelSize(16)

	gid, ok := e.GlyphIndexFor(' ')
	if !ok {
		t.Fatal("expected a glyph for space")
	}

	var sink recordingSink
	if err := e.Decompose(gid, &sink); err != ErrNoOutline {
		t.Fatalf("expected ErrNoOutline for space, got %v", err)
	}
}

func TestFixed26_6ToFloat32(t *testing.T) {
	got := fixed26_6ToFloat32(fixed.I(12))
	if got != 12 {
		t.Fatalf("expected 12, got %v", got)
	}
	half := fixed26_6ToFloat32(fixed.Int26_6(32))
	if half != 0.5 {
		t.Fatalf("expected 0.5, got %v", half)
	}
}

func TestFixedPointToPoint(t *testing.T) {
	p := fixedPointToPoint(fixed.Point26_6{X: fixed.I(3), Y: fixed.I(-4)})
	if p.X != 3 || p.Y != -4 {
		t.Fatalf("unexpected point: %+v", p)
	}
}

func TestHashVariationsDeterministicRegardlessOfInsertOrder(t *testing.T) {
	a := hashVariations(0, map[string]float32{"wght": 700, "wdth": 100})
	b := hashVariations(0, map[string]float32{"wdth": 100, "wght": 700})
	if a != b {
		t.Fatalf("expected identical hash regardless of map order, got %d vs %d", a, b)
	}
}

func TestHashVariationsChangesWithValue(t *testing.T) {
	a := hashVariations(0, map[string]float32{"wght": 400})
	b := hashVariations(0, map[string]float32{"wght": 700})
	if a == b {
		t.Fatal("expected different weight values to hash differently")
	}
}

func TestSFNTEngineSetVariationsAdvancesState(t *testing.T) {
	e := &SFNTEngine{}
	if e.VariationStateID() != 0 {
		t.Fatal("expected initial variation state id to be 0")
	}
	id1 := e.SetVariations(map[string]float32{"wght": 400})
	if id1 == 0 {
		t.Fatal("expected non-zero state id after SetVariations")
	}
	if e.VariationStateID() != id1 {
		t.Fatal("expected VariationStateID to reflect the last SetVariations call")
	}
	id2 := e.SetVariations(map[string]float32{"wght": 700})
	if id2 == id1 {
		t.Fatal("expected different coordinates to produce a different state id")
	}
}

func TestSFNTEngineKernIsAlwaysZero(t *testing.T) {
	e := &SFNTEngine{}
	if k := e.Kern(1, 2); k != 0 {
		t.Fatalf("expected 0 kerning, got %v", k)
	}
}

func TestSFNTEnginePaintReturnsNoOutline(t *testing.T) {
	e := &SFNTEngine{}
	_, err := e.Paint(1)
	if err != ErrNoOutline {
		t.Fatalf("expected ErrNoOutline, got %v", err)
	}
}

func TestPaintIteratorWalksLayersInOrder(t *testing.T) {
	layers := []Layer{
		{GlyphID: 5, Color: Color{R: 255}, Foreground: false},
		{GlyphID: 6, Foreground: true},
	}
	it := NewPaintIterator(layers)

	if !it.Next() {
		t.Fatal("expected first layer")
	}
	if it.Layer().GlyphID != 5 {
		t.Fatalf("expected glyph 5 first, got %d", it.Layer().GlyphID)
	}
	if !it.Next() {
		t.Fatal("expected second layer")
	}
	if !it.Layer().Foreground {
		t.Fatal("expected second layer to be foreground")
	}
	if it.Next() {
		t.Fatal("expected iterator to be exhausted")
	}
}

func TestPaintIteratorEmptyLayersYieldsNothing(t *testing.T) {
	it := NewPaintIterator(nil)
	if it.Next() {
		t.Fatal("expected empty iterator to report no layers")
	}
}
