// Package shapecache implements the shape cache (component C9): a
// fixed-size array cache memoizing shaper output keyed by every input that
// can change a shaped glyph stream.
//
// Grounded directly in original_source/src/font/nvg_font_shape_cache.c
// (NVGShapedTextCache's fixed NVG_SHAPED_TEXT_CACHE_SIZE array, FNV-1a key
// hashing with a cheap hash-then-field compare, nvgShapeCache_sortFeatures's
// canonicalization) and _examples/gogpu-gg/text/cache/shaping.go
// (ShapingKey's field set and CacheStats shape). Per spec.md §9's design
// note ("array indices, not pointers... Same for the shape cache"), LRU
// eviction here reuses the teacher's internal/lru-style array-index list
// (see glyphcache, which this package's Cache closely mirrors) instead of
// the original C source's linear lastUsed-timestamp scan.
package shapecache

import (
	"math"
	"sort"

	"github.com/gogpu/glyphatlas/internal/lru"
)

// DefaultCapacity matches NVG_SHAPED_TEXT_CACHE_SIZE.
const DefaultCapacity = 256

// GlyphID identifies a glyph within one font's glyph table.
type GlyphID uint16

// ShapedGlyph is one positioned glyph produced by a shaper, matching
// text.ShapedGlyph's field set (GID, cluster, pen position, advance).
type ShapedGlyph struct {
	GID      GlyphID
	Cluster  int
	X, Y     float64
	XAdvance float64
	YAdvance float64
}

// Feature is one OpenType feature tag/value pair.
type Feature struct {
	Tag   [4]byte
	Value int32
}

// CanonicalizeFeatures returns features sorted lexicographically by tag,
// matching nvgShapeCache_sortFeatures — callers must canonicalize a
// feature set the same way before building a Fingerprint, or two
// logically-identical requests in different tag order will miss each
// other (scenario S5).
func CanonicalizeFeatures(features []Feature) []Feature {
	sorted := append([]Feature(nil), features...)
	sort.Slice(sorted, func(i, j int) bool {
		return string(sorted[i].Tag[:]) < string(sorted[j].Tag[:])
	})
	return sorted
}

// Fingerprint is the shape cache key: every input that can change the
// shaped glyph stream, per spec.md §9's correctness invariant.
type Fingerprint struct {
	Text             string
	FontID           uint64
	SizePx           float32
	HintingMode      uint8
	SubpixelMode     uint8
	VariationStateID uint64
	Features         []Feature // must already be canonicalized
	KerningEnabled   bool
	BidiEnabled      bool
	BaseDirection    uint8
}

func (fp *Fingerprint) equal(o *Fingerprint) bool {
	if fp.FontID != o.FontID || fp.SizePx != o.SizePx ||
		fp.HintingMode != o.HintingMode || fp.SubpixelMode != o.SubpixelMode ||
		fp.VariationStateID != o.VariationStateID ||
		fp.KerningEnabled != o.KerningEnabled || fp.BidiEnabled != o.BidiEnabled ||
		fp.BaseDirection != o.BaseDirection {
		return false
	}
	if fp.Text != o.Text {
		return false
	}
	if len(fp.Features) != len(o.Features) {
		return false
	}
	for i := range fp.Features {
		if fp.Features[i] != o.Features[i] {
			return false
		}
	}
	return true
}

// hash computes an FNV-1a hash over every fingerprint field, following
// nvgShapeCache_hash field-by-field: the cache stores this alongside each
// entry for cheap rejection before the full equal() compare.
func hash(fp *Fingerprint) uint64 {
	h := uint64(14695981039346656037)
	mix := func(b byte) {
		h ^= uint64(b)
		h *= 1099511628211
	}
	mixU64 := func(v uint64) {
		for i := 0; i < 8; i++ {
			mix(byte(v >> (8 * i)))
		}
	}

	for i := 0; i < len(fp.Text); i++ {
		mix(fp.Text[i])
	}
	mixU64(fp.FontID)
	mixU64(uint64(math.Float32bits(fp.SizePx)))
	mix(fp.HintingMode)
	mix(fp.SubpixelMode)
	mixU64(fp.VariationStateID)
	for _, f := range fp.Features {
		for _, b := range f.Tag {
			mix(b)
		}
		mixU64(uint64(uint32(f.Value)))
	}
	if fp.KerningEnabled {
		mix(1)
	} else {
		mix(0)
	}
	if fp.BidiEnabled {
		mix(1)
	} else {
		mix(0)
	}
	mix(fp.BaseDirection)

	return h
}

// Entry is one cached shaping result.
type Entry struct {
	used  bool
	fp    Fingerprint
	fpHash uint64
	Glyphs []ShapedGlyph
}

// Fingerprint returns this entry's key.
func (e *Entry) Fingerprint() Fingerprint { return e.fp }

// Cache is the fixed-size, array-backed shape cache.
type Cache struct {
	slots    []Entry
	nodes    []lru.Node
	lru      lru.List
	capacity int

	hits, misses, evictions, insertions uint64
}

// New creates a shape cache with the given capacity (0 or negative falls
// back to DefaultCapacity).
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		slots:    make([]Entry, capacity),
		nodes:    make([]lru.Node, capacity),
		lru:      lru.New(),
		capacity: capacity,
	}
}

// Lookup scans every used slot for a fingerprint match, rejecting on the
// cached hash before falling back to a full field compare (the shape
// cache is a small fixed array, not a hash table — linear scan with a
// cheap hash pre-check is the original's own strategy). On hit, the entry
// moves to the front of the LRU list.
func (c *Cache) Lookup(fp Fingerprint) (*Entry, bool) {
	h := hash(&fp)
	for i := range c.slots {
		e := &c.slots[i]
		if !e.used || e.fpHash != h {
			continue
		}
		if !e.fp.equal(&fp) {
			continue
		}
		c.lru.MoveToFront(c.nodes, i)
		c.hits++
		return e, true
	}
	c.misses++
	return nil, false
}

// Insert stores a shaping result, evicting the least-recently-used entry
// if the cache is full. glyphs is copied so the caller's slice may be
// reused or mutated afterward.
func (c *Cache) Insert(fp Fingerprint, glyphs []ShapedGlyph) *Entry {
	idx := c.selectSlot()

	e := &c.slots[idx]
	e.used = true
	e.fp = fp
	e.fpHash = hash(&fp)
	e.Glyphs = append([]ShapedGlyph(nil), glyphs...)

	c.lru.PushFront(c.nodes, idx)
	c.insertions++
	return e
}

func (c *Cache) selectSlot() int {
	for i := range c.slots {
		if !c.slots[i].used {
			return i
		}
	}
	tail := c.lru.RemoveTail(c.nodes)
	if tail == lru.None {
		// Every node is free and every slot marked unused is a
		// contradiction with the loop above; fall back to slot 0.
		return 0
	}
	c.slots[tail] = Entry{}
	c.evictions++
	return tail
}

// InvalidateFont removes every cached entry for fontID, in O(N). Callers
// must invoke this whenever a font's variation coordinates change: the
// VariationStateID field already makes the old entries unreachable by
// lookup, but without this call they sit dead in the cache, wasting a
// slot and the heap-owned glyph copy until evicted (spec.md §9).
func (c *Cache) InvalidateFont(fontID uint64) int {
	removed := 0
	for i := range c.slots {
		if c.slots[i].used && c.slots[i].fp.FontID == fontID {
			c.lru.Remove(c.nodes, i)
			c.slots[i] = Entry{}
			removed++
		}
	}
	return removed
}

// Clear empties the cache.
func (c *Cache) Clear() {
	for i := range c.slots {
		c.slots[i] = Entry{}
		c.nodes[i] = lru.Node{}
	}
	c.lru = lru.New()
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int { return c.lru.Len }

// Capacity returns the maximum number of entries this cache can hold.
func (c *Cache) Capacity() int { return c.capacity }

// Stats returns cumulative cache counters.
func (c *Cache) Stats() (hits, misses, evictions, insertions uint64) {
	return c.hits, c.misses, c.evictions, c.insertions
}
