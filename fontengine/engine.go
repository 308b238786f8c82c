// Package fontengine abstracts the font backend (spec component §6.1):
// glyph indexing, metrics, outline decomposition, kerning, and variable-font
// coordinates, behind an interface the rest of this module programs
// against instead of a concrete font library.
//
// Grounded in golang.org/x/image/font/sfnt (via the opentype.Font wrapper)
// and _examples/gogpu-gg/text/parser_ximage.go's ximageParsedFont, which
// already exposes this exact surface (Name, NumGlyphs, UnitsPerEm,
// GlyphIndex, GlyphAdvance, GlyphBounds) over the same library.
package fontengine

import (
	"errors"
	"math"
	"sort"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// ErrNoOutline is returned by Decompose for a glyph with no vector outline
// (space, or a bitmap/color glyph handled through PaintIterator instead).
var ErrNoOutline = errors.New("fontengine: glyph has no outline")

// Kerning is a single advance-width adjustment between two glyphs.
type Kerning struct {
	Left, Right GlyphID
	Adjust      float32
}

// Engine is the font backend contract: load a glyph's outline, query its
// metrics, and (for variable fonts) read or write the active variation
// coordinates. One Engine wraps exactly one font file at one variation
// instance; a font with multiple named instances needs one Engine per
// instance, keyed by VariationStateID in the caller's font table.
type Engine interface {
	// SetPixelSize fixes the ppem (pixels per em) used by subsequent
	// Decompose/Advance calls.
	SetPixelSize(px float32)

	// GlyphIndexFor maps a Unicode codepoint to this font's glyph id,
	// returning (0, false) if the font has no glyph for it.
	GlyphIndexFor(r rune) (GlyphID, bool)

	// Advance returns the horizontal advance width of gid at the engine's
	// current pixel size.
	Advance(gid GlyphID) float32

	// Decompose walks gid's outline, in font units scaled to the engine's
	// current pixel size, emitting MoveTo/LineTo/QuadTo/CubicTo calls to
	// sink. Returns ErrNoOutline for glyphs with no vector outline.
	Decompose(gid GlyphID, sink OutlineSink) error

	// Paint returns a PaintIterator over gid's color layers (COLR/CPAL),
	// or ErrNoOutline if gid is not a color glyph.
	Paint(gid GlyphID) (PaintIterator, error)

	// Kern returns the kerning adjustment between two adjacent glyphs, or
	// 0 if the font has no kerning data for that pair.
	Kern(left, right GlyphID) float32

	// SetVariations applies a set of variation axis coordinates (e.g.
	// "wght", "wdth"), returning the VariationStateID callers must fold
	// into every cache fingerprint after this call. SFNTEngine derives a
	// new id from the previous one on every call, whether or not the font
	// has an fvar table.
	SetVariations(coords map[string]float32) uint64

	// VariationStateID returns the id most recently returned by
	// SetVariations (or 0 for a font with no variations applied yet).
	VariationStateID() uint64
}

// SFNTEngine is the only concrete Engine this module ships: a thin
// adapter over golang.org/x/image/font/sfnt via opentype.Font, matching
// how ximageParsedFont wraps the same library.
type SFNTEngine struct {
	font *opentype.Font
	buf  sfnt.Buffer

	ppem      fixed.Int26_6
	variation uint64
}

// NewSFNTEngine parses font file data (TrueType, OpenType, or a TrueType
// collection member) into an Engine.
func NewSFNTEngine(data []byte) (*SFNTEngine, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, err
	}
	return &SFNTEngine{font: f}, nil
}

// SetPixelSize implements Engine.
func (e *SFNTEngine) SetPixelSize(px float32) {
	e.ppem = fixed.Int26_6(px * 64)
}

// GlyphIndexFor implements Engine.
func (e *SFNTEngine) GlyphIndexFor(r rune) (GlyphID, bool) {
	idx, err := e.font.GlyphIndex(&e.buf, r)
	if err != nil || idx == 0 {
		return 0, false
	}
	return GlyphID(idx), true
}

// Advance implements Engine.
func (e *SFNTEngine) Advance(gid GlyphID) float32 {
	adv, err := e.font.GlyphAdvance(&e.buf, sfnt.GlyphIndex(gid), e.ppem, font.HintingNone)
	if err != nil {
		return 0
	}
	return fixed26_6ToFloat32(adv)
}

// Decompose implements Engine, converting sfnt's own Segment model into
// OutlineSink calls the same way text/glyph_outline.go's
// extractFromSFNT converts it into OutlineSegment values.
func (e *SFNTEngine) Decompose(gid GlyphID, sink OutlineSink) error {
	segments, err := e.font.LoadGlyph(&e.buf, sfnt.GlyphIndex(gid), e.ppem, nil)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return ErrNoOutline
	}

	for _, seg := range segments {
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			sink.MoveTo(fixedPointToPoint(seg.Args[0]))
		case sfnt.SegmentOpLineTo:
			sink.LineTo(fixedPointToPoint(seg.Args[0]))
		case sfnt.SegmentOpQuadTo:
			sink.QuadTo(fixedPointToPoint(seg.Args[0]), fixedPointToPoint(seg.Args[1]))
		case sfnt.SegmentOpCubeTo:
			sink.CubicTo(fixedPointToPoint(seg.Args[0]), fixedPointToPoint(seg.Args[1]), fixedPointToPoint(seg.Args[2]))
		}
	}
	return nil
}

// Kern implements Engine. sfnt exposes no standalone kern-table query, so
// this reports 0 for every pair: fonts relying on GPOS pair adjustments
// get that behavior from the shaper (§6.2) instead, which is the layer
// spec.md's kerning flag actually gates for those fonts.
func (e *SFNTEngine) Kern(left, right GlyphID) float32 {
	return 0
}

// SetVariations implements Engine. golang.org/x/image/font/sfnt has no
// variable-font axis API, so this is a bookkeeping-only implementation:
// it hashes the requested coordinates into a new state id so callers
// still observe a fingerprint change, but LoadGlyph/GlyphAdvance above
// always read the font's default instance.
func (e *SFNTEngine) SetVariations(coords map[string]float32) uint64 {
	e.variation = hashVariations(e.variation, coords)
	return e.variation
}

// VariationStateID implements Engine.
func (e *SFNTEngine) VariationStateID() uint64 { return e.variation }

func fixedPointToPoint(p fixed.Point26_6) Point {
	return Point{X: fixed26_6ToFloat32(p.X), Y: fixed26_6ToFloat32(p.Y)}
}

func fixed26_6ToFloat32(v fixed.Int26_6) float32 {
	return float32(v) / 64
}

// hashVariations folds a coordinate set into a new state id. Axes are
// sorted by name first so that two calls with the same coordinates (in
// any map iteration order) always land on the same id.
func hashVariations(seed uint64, coords map[string]float32) uint64 {
	axes := make([]string, 0, len(coords))
	for axis := range coords {
		axes = append(axes, axis)
	}
	sort.Strings(axes)

	h := seed*1099511628211 + 14695981039346656037
	for _, axis := range axes {
		for i := 0; i < len(axis); i++ {
			h ^= uint64(axis[i])
			h *= 1099511628211
		}
		h ^= uint64(math.Float32bits(coords[axis]))
		h *= 1099511628211
	}
	return h
}
