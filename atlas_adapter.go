package glyphatlas

// Bridges glyphcache.Allocator (key-less: one allocator per cache Reset
// call) to atlas.Manager.Alloc/Free (keyed: one Manager serves every
// atlas.Key family at once). Grounded in
// _examples/gogpu-gg/internal/gpu/atlas.go's AtlasManager, which also
// fronts several independently-packed texture families behind one handle.

import (
	"github.com/gogpu/glyphatlas/atlas"
	"github.com/gogpu/glyphatlas/glyphcache"
	"github.com/gogpu/glyphatlas/iter"
)

// atlasAdapter implements glyphcache.Allocator for exactly one atlas.Key
// family, encoding/decoding that family's index into the composite
// atlasID glyphcache.Entry stores.
//
// atlas.Manager looks instances up and frees rectangles by (Key, ID), so
// a bare atlas.ID can't be round-tripped back to the Manager
// without also knowing which Key it came from. The composite id packs a
// 16-bit family index into the high half of the uint32, leaving the low
// 16 bits for the real atlas.ID (comfortably wide for MaxAtlases=16).
// Because Free can always decode its owning Key from the id it is given,
// any single adapter's Free is correct regardless of which family
// actually allocated the entry — which is what lets glyphcache.Cache.Reset
// (one Allocator parameter) safely sweep entries spanning multiple keys.
type atlasAdapter struct {
	sys      *System
	key      atlas.Key
	keyIndex uint16
}

func encodeAtlasID(keyIndex uint16, id atlas.ID) uint32 {
	return uint32(keyIndex)<<16 | uint32(uint16(id))
}

func decodeAtlasID(composite uint32) (keyIndex uint16, id atlas.ID) {
	return uint16(composite >> 16), atlas.ID(uint16(composite))
}

// allocatorFor returns the cached atlasAdapter for key, assigning it a new
// family index and registering it in both directions of the key<->index
// map the first time key is seen.
func (s *System) allocatorFor(key atlas.Key) *atlasAdapter {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()

	if a, ok := s.adapters[key]; ok {
		return a
	}

	idx := s.nextKeyIdx
	s.nextKeyIdx++
	s.keyIndex[key] = idx
	s.indexKey[idx] = key

	a := &atlasAdapter{sys: s, key: key, keyIndex: idx}
	s.adapters[key] = a
	return a
}

// Alloc implements glyphcache.Allocator.
func (a *atlasAdapter) Alloc(w, h int) (atlasID uint32, x, y int, err error) {
	id, rect, err := a.sys.atlasMgr.Alloc(a.key, w, h)
	if err != nil {
		return 0, 0, 0, err
	}
	a.sys.noteAtlasInstance(a.key, id)
	return encodeAtlasID(a.keyIndex, id), rect.X, rect.Y, nil
}

// Free implements glyphcache.Allocator. The keyIndex encoded in atlasID
// may belong to a different family than a's own (see the Reset note
// above), so Free always resolves the owning Key from atlasID rather than
// assuming it matches a.key.
func (a *atlasAdapter) Free(atlasID uint32, x, y, w, h int) {
	keyIndex, id := decodeAtlasID(atlasID)

	a.sys.keyMu.Lock()
	key, ok := a.sys.indexKey[keyIndex]
	a.sys.keyMu.Unlock()
	if !ok {
		return
	}

	a.sys.atlasMgr.Free(key, id, atlas.Rect{X: x, Y: y, W: w, H: h})
}

// noteAtlasInstance invokes the caller's AtlasGrowCallback the first time
// id is observed for key, so the caller can bind the new texture before
// the next draw.
func (s *System) noteAtlasInstance(key atlas.Key, id atlas.ID) {
	s.keyMu.Lock()
	seen, ok := s.seenAtlases[key]
	if !ok {
		seen = make(map[atlas.ID]bool)
		s.seenAtlases[key] = seen
	}
	alreadySeen := seen[id]
	seen[id] = true
	cb := s.growCB
	s.keyMu.Unlock()

	if alreadySeen || cb == nil {
		return
	}

	inst, ok := s.atlasMgr.InstanceByID(key, id)
	if !ok {
		return
	}
	tex := inst.Texture()
	cb(key, id, tex.Width(), tex.Height())
}

// currentAtlasKey derives the atlas.Key the active render state targets.
func (s *System) currentAtlasKey() atlas.Key {
	return atlas.Key{
		SrcColorSpace: s.state.srcColorSpace,
		DstColorSpace: s.state.dstColorSpace,
		Format:        s.state.pixelFormat,
		Subpixel:      s.state.subpixel,
	}
}

// iteratorForKey returns the cached *iter.Iterator bound to key's
// allocator, creating it the first time key is used. iter.Iterator binds
// its glyphcache.Allocator at construction and never updates it, so each
// distinct atlas.Key needs its own Iterator instance sharing the same
// shape/glyph caches.
func (s *System) iteratorForKey(key atlas.Key) *iter.Iterator {
	if it, ok := s.textIters[key]; ok {
		return it
	}
	alloc := s.allocatorFor(key)
	it := iter.New(s.shapes, s.glyphs, alloc)
	s.textIters[key] = it
	return it
}
