// Package glyphatlas manages a GPU glyph atlas: it shapes runs of text,
// caches shaped glyph placements and rasterized glyph bitmaps, packs them
// into one or more atlas textures, uploads newly rasterized glyphs, and
// defragments an atlas once it fills with evictable garbage.
//
// # Quick Start
//
//	import "github.com/gogpu/glyphatlas"
//
//	sys, err := glyphatlas.NewSystem(glyphatlas.DefaultConfig(backend))
//	id, err := sys.AddFont(fontBytes)
//	sys.SetFont(id)
//	sys.SetSize(16)
//
//	sys.TextIterInit(0, 0, "Hello, world")
//	for {
//		cg, ok := sys.TextIterNext()
//		if !ok {
//			break
//		}
//		// draw cg at (cg.X0, cg.Y0)-(cg.X1, cg.Y1) sampling (cg.S0, cg.T0)-(cg.S1, cg.T1)
//	}
//
//	sys.ProcessUploads(enc) // once per frame, before drawing
//
// # Architecture
//
//   - System (glyphatlas.go): the caller-facing facade bundling every
//     component below into one handle with one owner thread.
//   - atlas: rectangle packing and per-configuration atlas instances.
//   - glyphcache / shapecache: LRU caches keyed by glyph fingerprint and
//     shaped-run signature.
//   - fontengine / shaping: font outline decomposition and HarfBuzz-style
//     text shaping.
//   - loader: the single background goroutine that rasterizes glyphs
//     off the owner thread.
//   - upload: the per-frame GPU texture write-through pipeline.
//   - defrag: atlas defragmentation once fragmentation crosses a
//     threshold.
//
// # Coordinate System
//
// Uses standard computer graphics coordinates: origin (0,0) at top-left,
// X increases right, Y increases down.
package glyphatlas
