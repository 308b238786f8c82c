// Package shaping implements the external shaper contract (spec
// component §6.2): turning a run of text plus a font into positioned
// glyphs. GoTextShaper is the one production implementation, wired over
// github.com/go-text/typesetting's HarfBuzz shaping engine.
//
// Adapted closely from _examples/gogpu-gg/text/shaper_gotext.go, which
// already wires this exact library for this exact purpose; the
// adaptation swaps the teacher's Face/FontSource/Direction types for
// this module's shapecache.ShapedGlyph/shapecache.Feature vocabulary.
package shaping

import (
	"bytes"
	"sync"

	gotextfont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/language"
	gotextshaping "github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/glyphatlas/shapecache"
)

// Direction is the paragraph/run direction to shape with.
type Direction uint8

const (
	DirectionLTR Direction = iota
	DirectionRTL
	DirectionTTB
	DirectionBTT
)

// Input bundles one shaping request: the font-engine-independent raw
// font bytes (go-text parses its own font representation rather than
// sharing fontengine.Engine's sfnt one), the text run, its direction,
// target size, and the canonicalized OpenType features to apply.
type Input struct {
	FontData []byte
	Text     string
	Direction
	SizePx   float32
	Script   string // BCP-47-ish script tag; empty means auto-detect
	Language string // BCP-47 language tag; empty means "en"

	// Features is carried for cache-fingerprint purposes (see shapecache)
	// but is not yet applied to the shaping call itself: go-text's
	// per-feature override field is not exercised anywhere in the
	// retrieval pack, so this shaper follows the teacher's own
	// GoTextShaper in shaping with the font's default feature set.
	Features []shapecache.Feature
}

// Shaper is the external shaping contract: turn an Input into a
// positioned glyph stream.
type Shaper interface {
	Shape(in Input) []shapecache.ShapedGlyph
}

// GoTextShaper shapes via go-text/typesetting's HarfbuzzShaper, caching
// parsed font.Font objects (thread-safe, read-only) keyed by the font
// byte slice's address and pooling HarfbuzzShaper instances (which are
// not safe for concurrent use) the same way the teacher does.
type GoTextShaper struct {
	shaperPool sync.Pool

	mu        sync.RWMutex
	fontCache map[*byte]*gotextfont.Font
}

// NewGoTextShaper creates a shaper ready for concurrent use.
func NewGoTextShaper() *GoTextShaper {
	return &GoTextShaper{
		shaperPool: sync.Pool{
			New: func() any { return &gotextshaping.HarfbuzzShaper{} },
		},
		fontCache: make(map[*byte]*gotextfont.Font),
	}
}

// Shape implements Shaper.
func (s *GoTextShaper) Shape(in Input) []shapecache.ShapedGlyph {
	if in.Text == "" || len(in.FontData) == 0 {
		return nil
	}

	goTextFont, err := s.getOrCreateFont(in.FontData)
	if err != nil {
		return nil
	}
	goTextFace := gotextfont.NewFace(goTextFont)

	runes := []rune(in.Text)
	dir := mapDirection(in.Direction)
	script := resolveScript(in.Script, runes)
	lang := in.Language
	if lang == "" {
		lang = "en"
	}

	input := gotextshaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: dir,
		Face:      goTextFace,
		Size:      floatToFixed(in.SizePx),
		Script:    script,
		Language:  language.NewLanguage(lang),
	}

	hbShaper := s.shaperPool.Get().(*gotextshaping.HarfbuzzShaper)
	output := hbShaper.Shape(input)
	s.shaperPool.Put(hbShaper)

	return convertGlyphs(output.Glyphs, dir)
}

// getOrCreateFont returns a cached go-text font.Font for fontData,
// keyed by the address of its first byte so repeated Shape calls
// against the same backing array (the common case: one caller holding
// one font's bytes for its lifetime) avoid re-parsing.
func (s *GoTextShaper) getOrCreateFont(fontData []byte) (*gotextfont.Font, error) {
	key := &fontData[0]

	s.mu.RLock()
	if f, ok := s.fontCache[key]; ok {
		s.mu.RUnlock()
		return f, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.fontCache[key]; ok {
		return f, nil
	}

	face, err := gotextfont.ParseTTF(bytes.NewReader(fontData))
	if err != nil {
		return nil, err
	}
	s.fontCache[key] = face.Font
	return face.Font, nil
}

// ClearCache drops every cached parsed font.
func (s *GoTextShaper) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fontCache = make(map[*byte]*gotextfont.Font)
}

func mapDirection(d Direction) di.Direction {
	switch d {
	case DirectionRTL:
		return di.DirectionRTL
	case DirectionTTB:
		return di.DirectionTTB
	case DirectionBTT:
		return di.DirectionBTT
	default:
		return di.DirectionLTR
	}
}

// resolveScript uses an explicit script tag if given, otherwise detects
// it from the first non-space rune, matching the teacher's heuristic.
func resolveScript(tag string, runes []rune) language.Script {
	if tag != "" {
		return language.Script(tag)
	}
	for _, r := range runes {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}

func floatToFixed(px float32) fixed.Int26_6 {
	return fixed.Int26_6(px * 64)
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64.0
}

// convertGlyphs mirrors the teacher's convertGlyphs, targeting
// shapecache.ShapedGlyph instead of the teacher's own type.
func convertGlyphs(glyphs []gotextshaping.Glyph, dir di.Direction) []shapecache.ShapedGlyph {
	if len(glyphs) == 0 {
		return nil
	}

	result := make([]shapecache.ShapedGlyph, len(glyphs))
	var x, y float64

	for i, g := range glyphs {
		xOff := fixedToFloat(g.XOffset)
		yOff := fixedToFloat(g.YOffset)

		result[i] = shapecache.ShapedGlyph{
			GID:     shapecache.GlyphID(uint16(g.GlyphID)),
			Cluster: g.TextIndex(),
			X:       x + xOff,
			Y:       y + yOff,
		}

		adv := fixedToFloat(g.Advance)
		if dir.IsVertical() {
			result[i].YAdvance = adv
			y += adv
		} else {
			result[i].XAdvance = adv
			x += adv
		}
	}

	return result
}
