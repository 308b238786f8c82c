package glyphatlas

// Synthetic bold: when a caller has no bold weight of a font (spec.md's
// font table holds whatever faces were added with AddFont, and not every
// family ships every weight), SetSyntheticEmboldenPx embolds the glyph
// outline by stroking it and filling the stroked band together with the
// original fill, the same simplified embolden-by-stroking technique
// FreeType's FT_Outline_Embolden and many lightweight text stacks use in
// place of a true multi-master bold instance.
//
// Grounded in internal/stroke's StrokeExpander (kurbo-style stroke-to-fill
// conversion), already present in the teacher's tree but never driven by
// any teacher caller outside its own tests.

import (
	internalpath "github.com/gogpu/glyphatlas/internal/path"
	"github.com/gogpu/glyphatlas/internal/stroke"
)

// SetSyntheticEmboldenPx sets the stroke width (in glyph-space pixels)
// applied to outlines whose font has no bold weight of its own. Zero (the
// default) disables it.
func (s *System) SetSyntheticEmbolden(px float32) { s.state.syntheticEmbolden = px }

// emboldenElements returns elements with embolden's stroke-expanded band
// appended to it when embolden > 0, so the caller's rasterizer fills both
// with one nonzero-rule pass.
func emboldenElements(elements []internalpath.PathElement, embolden float32) []internalpath.PathElement {
	if embolden <= 0 {
		return elements
	}

	style := stroke.Stroke{
		Width:      float64(embolden),
		Cap:        stroke.LineCapRound,
		Join:       stroke.LineJoinRound,
		MiterLimit: 4,
	}
	expander := stroke.NewStrokeExpander(style)

	out := make([]internalpath.PathElement, len(elements))
	copy(out, elements)
	for _, sub := range splitSubpaths(elements) {
		if len(sub) == 0 {
			continue
		}
		band := expander.Expand(toStrokeElements(sub))
		out = append(out, fromStrokeElements(band)...)
	}
	return out
}

// splitSubpaths breaks a flat element list into one slice per subpath,
// each starting at a MoveTo, mirroring internal/path.CollectEdges' own
// subpath-boundary convention.
func splitSubpaths(elements []internalpath.PathElement) [][]internalpath.PathElement {
	var subpaths [][]internalpath.PathElement
	var cur []internalpath.PathElement
	for _, el := range elements {
		if _, ok := el.(internalpath.MoveTo); ok && len(cur) > 0 {
			subpaths = append(subpaths, cur)
			cur = nil
		}
		cur = append(cur, el)
	}
	if len(cur) > 0 {
		subpaths = append(subpaths, cur)
	}
	return subpaths
}

func toStrokeElements(elements []internalpath.PathElement) []stroke.PathElement {
	out := make([]stroke.PathElement, len(elements))
	for i, el := range elements {
		switch e := el.(type) {
		case internalpath.MoveTo:
			out[i] = stroke.MoveTo{Point: toStrokePoint(e.Point)}
		case internalpath.LineTo:
			out[i] = stroke.LineTo{Point: toStrokePoint(e.Point)}
		case internalpath.QuadTo:
			out[i] = stroke.QuadTo{Control: toStrokePoint(e.Control), Point: toStrokePoint(e.Point)}
		case internalpath.CubicTo:
			out[i] = stroke.CubicTo{
				Control1: toStrokePoint(e.Control1),
				Control2: toStrokePoint(e.Control2),
				Point:    toStrokePoint(e.Point),
			}
		}
	}
	return out
}

func fromStrokeElements(elements []stroke.PathElement) []internalpath.PathElement {
	out := make([]internalpath.PathElement, 0, len(elements))
	for _, el := range elements {
		switch e := el.(type) {
		case stroke.MoveTo:
			out = append(out, internalpath.MoveTo{Point: fromStrokePoint(e.Point)})
		case stroke.LineTo:
			out = append(out, internalpath.LineTo{Point: fromStrokePoint(e.Point)})
		case stroke.QuadTo:
			out = append(out, internalpath.QuadTo{Control: fromStrokePoint(e.Control), Point: fromStrokePoint(e.Point)})
		case stroke.CubicTo:
			out = append(out, internalpath.CubicTo{
				Control1: fromStrokePoint(e.Control1),
				Control2: fromStrokePoint(e.Control2),
				Point:    fromStrokePoint(e.Point),
			})
		case stroke.Close:
			// internal/path has no Close element; CollectEdges closes each
			// subpath implicitly between MoveTo boundaries.
		}
	}
	return out
}

func toStrokePoint(p internalpath.Point) stroke.Point   { return stroke.Point{X: p.X, Y: p.Y} }
func fromStrokePoint(p stroke.Point) internalpath.Point { return internalpath.Point{X: p.X, Y: p.Y} }
