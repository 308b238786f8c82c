package glyphatlas

// Font management: AddFont/FindFont/AddFallback plus the per-font
// variation/feature setters SPEC_FULL.md §6 lists, each of which bumps
// the font's variationStateId and invalidates its shape-cache entries.
//
// Grounded in _examples/gogpu-gg/text/font_manager.go's FontManager,
// which keeps the same two responsibilities (a font table keyed by a
// caller-stable id, plus a fallback chain per font) over the same
// underlying font-parsing library.

import (
	"fmt"

	"github.com/gogpu/glyphatlas/fontengine"
)

// AddFont parses data as a font and registers it, returning the FontID
// callers use to reference it from SetFont/AddFallback and from
// TextIterInit's per-glyph font lookup.
func (s *System) AddFont(data []byte) (FontID, error) {
	if err := s.checkBroken(); err != nil {
		return 0, err
	}

	metrics, err := fontengine.NewSFNTEngine(data)
	if err != nil {
		return 0, err
	}
	raster, err := fontengine.NewSFNTEngine(data)
	if err != nil {
		return 0, err
	}

	s.fontMu.Lock()
	defer s.fontMu.Unlock()

	s.nextFontID++
	id := s.nextFontID
	s.fonts[id] = &fontEntry{data: data, metrics: metrics, raster: raster}
	return id, nil
}

// FindFont looks up a previously added font by id.
func (s *System) FindFont(id FontID) (FontID, bool) {
	s.fontMu.RLock()
	defer s.fontMu.RUnlock()
	_, ok := s.fonts[id]
	if !ok {
		return 0, false
	}
	return id, true
}

// AddFallback appends fallback to base's fallback chain: a codepoint the
// base font can't resolve is tried against each fallback in order.
func (s *System) AddFallback(base, fallback FontID) error {
	s.fontMu.Lock()
	defer s.fontMu.Unlock()

	entry, ok := s.fonts[base]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownFont, base)
	}
	if _, ok := s.fonts[fallback]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownFont, fallback)
	}
	entry.fallbacks = append(entry.fallbacks, fallback)
	return nil
}

// SetVariations applies variation axis coordinates to id's metrics and
// rasterization engines and records the resulting VariationStateID, which
// folds into every glyph and shape cache fingerprint referencing this
// font from now on. Existing shape-cache entries for id are invalidated
// since their glyph ids may no longer mean the same outline.
func (s *System) SetVariations(id FontID, coords map[string]float32) error {
	s.fontMu.Lock()
	defer s.fontMu.Unlock()

	entry, ok := s.fonts[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownFont, id)
	}

	entry.variationState = entry.metrics.SetVariations(coords)
	entry.raster.SetVariations(coords)
	s.shapes.InvalidateFont(uint64(id))
	return nil
}

// resolveFont returns id's font entry if it has a glyph for r, otherwise
// the first entry along its fallback chain (searched depth-first, in the
// order fallbacks were added) that does. Used by the text iterator
// to segment a run by font (see textiter.go).
func (s *System) resolveFont(id FontID, r rune) (FontID, *fontEntry, bool) {
	s.fontMu.RLock()
	defer s.fontMu.RUnlock()
	return s.resolveFontLocked(id, r, 0)
}

func (s *System) resolveFontLocked(id FontID, r rune, depth int) (FontID, *fontEntry, bool) {
	if depth > 8 {
		return 0, nil, false
	}
	entry, ok := s.fonts[id]
	if !ok {
		return 0, nil, false
	}
	if _, has := entry.metrics.GlyphIndexFor(r); has {
		return id, entry, true
	}
	for _, fb := range entry.fallbacks {
		if fid, fentry, ok := s.resolveFontLocked(fb, r, depth+1); ok {
			return fid, fentry, true
		}
	}
	return 0, nil, false
}
