// Package glyphcache implements the virtual glyph cache (spec component
// C5): an open-addressed hash table keyed by glyph fingerprint, threaded
// with an array-indexed LRU list, that maps a (font, glyph, size,
// rendering-mode) request onto a location inside one of the atlas
// manager's textures.
//
// Structural mutations (insert, evict, LRU touch) must only happen on the
// cache's owner goroutine. The background loader (see the loader package)
// is only allowed to write an entry's State and per-glyph metrics/pixel
// dimensions once, going from Loading to Ready or back to Empty on
// failure; that single transition is synchronized with the owner via the
// entry's atomic state word, per SPEC_FULL.md §5.
package glyphcache

import (
	"errors"
	"math"
	"sync/atomic"

	"github.com/gogpu/glyphatlas/internal/lru"
)

// ErrCacheFull is returned when no slot and no evictable entry is
// available (practically unreachable once LRU eviction is enabled, but
// guards a capacity of zero).
var ErrCacheFull = errors.New("glyphcache: no slot available")

// ErrAllocFailed is returned by RequestInsert/AddDirect when the atlas
// allocator could not place the requested rectangle.
var ErrAllocFailed = errors.New("glyphcache: atlas allocation failed")

// DefaultCapacity is the default table size (must be a power of two).
const DefaultCapacity = 8192

// State is a glyph cache entry's lifecycle stage.
type State uint32

const (
	// StateEmpty means the slot holds no live glyph.
	StateEmpty State = iota
	// StateLoading means a background raster request is in flight.
	StateLoading
	// StateReady means pixels are available but not yet uploaded to the GPU.
	StateReady
	// StateUploaded means the GPU texture region has been written in some
	// earlier command submission and is safe to sample.
	StateUploaded
)

// Fingerprint is the primary key into the glyph cache. Every field that
// can change the rasterized result for a glyph must appear here.
type Fingerprint struct {
	FontID           uint64
	GlyphIndex       uint32
	SizePx           float32
	HintingMode      uint8
	SubpixelMode     uint8
	VariationStateID uint64
	SrcColorSpace    uint8
	DstColorSpace    uint8
	PixelFormat      uint8
	SyntheticEmbolden float32
}

// Metrics holds the glyph placement metrics independent of atlas location.
type Metrics struct {
	BearingX, BearingY float32
	AdvanceX           float32
}

// Rect is a pixel rectangle inside an atlas texture.
type Rect struct {
	X, Y, W, H int
}

// UV is a normalized texture-coordinate rectangle, inset by 0.5 texel for
// bilinear-filtering safety.
type UV struct {
	S0, T0, S1, T1 float32
}

// Entry is one live (or previously live) glyph cache slot.
type Entry struct {
	used bool
	fp   Fingerprint

	AtlasID uint32
	Rect    Rect
	UV      UV
	Metrics Metrics

	// DirectWrite is true for entries filled by the GPU rasterizer
	// (compute write-through), which skips Ready and goes straight to
	// Uploaded once the triggering command buffer has been submitted; it
	// is false for entries filled by the CPU background loader, which
	// pass through Ready before the upload pipeline moves them to
	// Uploaded. See SPEC_FULL.md §9.
	DirectWrite bool

	state atomic.Uint32
}

// State returns the entry's current lifecycle state. Safe to call from any
// goroutine.
func (e *Entry) State() State { return State(e.state.Load()) }

// setState atomically updates the entry's lifecycle state.
func (e *Entry) setState(s State) { e.state.Store(uint32(s)) }

// Fingerprint returns the key this entry is currently populated with. The
// zero Fingerprint is returned for an entry that has never been used.
func (e *Entry) Fingerprint() Fingerprint { return e.fp }

// Allocator is the subset of the atlas manager's behavior the glyph cache
// needs: allocate a rectangle for a new glyph, and return one to the
// packer on eviction. It is expressed with primitive types only so that
// glyphcache has no import-time dependency on the atlas package; the
// top-level System wires a concrete *atlas.Manager into it.
type Allocator interface {
	// Alloc reserves a (w, h) rectangle, returning the atlas id and
	// top-left coordinates it was placed at.
	Alloc(w, h int) (atlasID uint32, x, y int, err error)
	// Free returns a previously allocated rectangle to its atlas's packer.
	Free(atlasID uint32, x, y, w, h int)
}

// Cache is the glyph fingerprint -> atlas location table.
//
// Cache is NOT safe for concurrent structural mutation: Lookup,
// RequestInsert, AddDirect, Evict and Reset must all be called from a
// single owner goroutine. Entry.State is safe to read from any goroutine,
// and the background loader may call Entry-level setters exposed to it
// (see MarkReady/MarkFailed) from its own goroutine.
type Cache struct {
	slots    []Entry
	nodes    []lru.Node
	lru      lru.List
	capacity int

	generation uint64

	hits, misses, evictions, insertions uint64
}

// New creates a glyph cache with the given power-of-two capacity. A
// non-positive or non-power-of-two capacity falls back to DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		capacity = DefaultCapacity
	}
	c := &Cache{
		slots:    make([]Entry, capacity),
		nodes:    make([]lru.Node, capacity),
		lru:      lru.New(),
		capacity: capacity,
	}
	return c
}

// hash computes an FNV-1a hash of a Fingerprint.
func hash(fp Fingerprint) uint64 {
	const offset = 14695981039346656037
	const prime = 1099511628211

	h := uint64(offset)
	mix := func(v uint64) {
		h ^= v
		h *= prime
	}
	mix(fp.FontID)
	mix(uint64(fp.GlyphIndex))
	mix(uint64(math.Float32bits(fp.SizePx)))
	mix(uint64(fp.HintingMode))
	mix(uint64(fp.SubpixelMode))
	mix(fp.VariationStateID)
	mix(uint64(fp.SrcColorSpace))
	mix(uint64(fp.DstColorSpace))
	mix(uint64(fp.PixelFormat))
	return h
}

// probeSequence calls visit(idx) for every slot index in the table,
// starting at the fingerprint's natural hash position and wrapping around
// exactly once. Eviction can place an entry outside of its natural
// neighborhood (the globally least-recently-used slot, not necessarily one
// reachable by a short forward probe), so both lookup and insertion scan
// the full table in hash order rather than stopping at the first free
// slot; see DESIGN.md for this tradeoff.
func (c *Cache) probeSequence(fp Fingerprint, visit func(idx int) bool) {
	start := int(hash(fp) % uint64(c.capacity))
	for i := 0; i < c.capacity; i++ {
		idx := (start + i) % c.capacity
		if !visit(idx) {
			return
		}
	}
}

// Lookup returns the live entry for fp, touching the LRU if found.
func (c *Cache) Lookup(fp Fingerprint) (*Entry, bool) {
	var found *Entry
	var foundIdx = -1

	c.probeSequence(fp, func(idx int) bool {
		slot := &c.slots[idx]
		if slot.used && slot.fp == fp {
			found = slot
			foundIdx = idx
			return false
		}
		return true
	})

	if found == nil || found.State() == StateEmpty {
		c.misses++
		return nil, false
	}

	c.lru.MoveToFront(c.nodes, foundIdx)
	c.hits++
	return found, true
}

// RequestInsert returns the existing entry for fp if present (as Lookup
// does), otherwise selects a slot (first empty slot found while probing,
// or the globally least-recently-used entry if the table has none),
// allocates an atlas rectangle for (w, h) via alloc, and returns the
// freshly initialized entry in StateEmpty (callers transition it to
// Loading themselves before handing it to the background loader, or
// straight through to Ready/Uploaded via AddDirect).
func (c *Cache) RequestInsert(fp Fingerprint, w, h int, alloc Allocator) (*Entry, error) {
	if entry, ok := c.Lookup(fp); ok {
		return entry, nil
	}

	idx, err := c.selectSlotForInsert(fp, alloc)
	if err != nil {
		return nil, err
	}

	atlasID, x, y, err := alloc.Alloc(w, h)
	if err != nil {
		return nil, ErrAllocFailed
	}

	slot := &c.slots[idx]
	*slot = Entry{
		used:    true,
		fp:      fp,
		AtlasID: atlasID,
		Rect:    Rect{X: x, Y: y, W: w, H: h},
	}
	slot.setState(StateEmpty)

	c.lru.PushFront(c.nodes, idx)
	c.insertions++

	return slot, nil
}

// selectSlotForInsert finds a slot to populate for fp: an unused slot
// discovered during probing, or (if the table has no unused slot left) the
// least-recently-used live entry, which is evicted and its atlas
// rectangle returned to the packer.
func (c *Cache) selectSlotForInsert(fp Fingerprint, alloc Allocator) (int, error) {
	firstEmpty := -1
	c.probeSequence(fp, func(idx int) bool {
		if !c.slots[idx].used {
			firstEmpty = idx
			return false
		}
		return true
	})

	if firstEmpty >= 0 {
		return firstEmpty, nil
	}

	evictIdx := c.lru.RemoveTail(c.nodes)
	if evictIdx == lru.None {
		return 0, ErrCacheFull
	}

	evicted := &c.slots[evictIdx]
	alloc.Free(evicted.AtlasID, evicted.Rect.X, evicted.Rect.Y, evicted.Rect.W, evicted.Rect.H)
	evicted.used = false
	evicted.setState(StateEmpty)
	c.evictions++

	return evictIdx, nil
}

// MarkLoading transitions a freshly inserted entry from Empty to Loading,
// once the caller has handed its rasterization request off to the
// background loader. Safe to call from the owner goroutine only; the
// loader itself never calls this, since by the time it observes the
// entry the transition has already happened.
func (e *Entry) MarkLoading() { e.setState(StateLoading) }

// MarkReady is called on the owner goroutine (System.ProcessUploads) once
// a successful loader result is drained. It writes the finished metrics and UV rect, then publishes the
// Ready state. The Rect itself (position/dimensions) must already have
// been set by RequestInsert and is never modified here.
func (e *Entry) MarkReady(metrics Metrics, uv UV) {
	e.Metrics = metrics
	e.UV = uv
	e.setState(StateReady)
}

// MarkUploaded is called by the upload pipeline once the region has been
// written into the atlas texture in a recorded command buffer.
func (e *Entry) MarkUploaded() {
	e.setState(StateUploaded)
}

// MarkFailed is called when rasterization fails. It frees the entry's
// atlas rectangle through alloc (the Allocator used to create it,
// mirroring the eviction path), unlinks the entry from the LRU list, and
// marks its slot unused.
func (c *Cache) MarkFailed(fp Fingerprint, alloc Allocator) {
	c.probeSequence(fp, func(idx int) bool {
		slot := &c.slots[idx]
		if slot.used && slot.fp == fp {
			alloc.Free(slot.AtlasID, slot.Rect.X, slot.Rect.Y, slot.Rect.W, slot.Rect.H)
			c.lru.Remove(c.nodes, idx)
			slot.used = false
			slot.setState(StateEmpty)
			return false
		}
		return true
	})
}

// AddDirect installs a GPU-rasterized glyph that never passes through the
// CPU loader: the entry moves straight from Empty to Uploaded once the
// triggering compute dispatch has been recorded (the caller is expected to
// have already written the pixels via a compute write-through, so there is
// no staging-buffer copy to perform).
func (c *Cache) AddDirect(fp Fingerprint, w, h int, metrics Metrics, uv UV, alloc Allocator) (*Entry, error) {
	entry, err := c.RequestInsert(fp, w, h, alloc)
	if err != nil {
		return nil, err
	}
	entry.DirectWrite = true
	entry.Metrics = metrics
	entry.UV = uv
	entry.setState(StateUploaded)
	return entry, nil
}

// Generation returns the cache's current generation counter. External
// references (e.g. a renderer's cached quad) taken before a Reset should
// compare against the generation they observed to detect invalidation.
func (c *Cache) Generation() uint64 { return c.generation }

// Reset invalidates every entry, bumps the generation counter, and
// releases all atlas rectangles back to alloc.
func (c *Cache) Reset(alloc Allocator) {
	for i := range c.slots {
		slot := &c.slots[i]
		if slot.used {
			alloc.Free(slot.AtlasID, slot.Rect.X, slot.Rect.Y, slot.Rect.W, slot.Rect.H)
		}
		*slot = Entry{}
	}
	for i := range c.nodes {
		c.nodes[i] = lru.Node{}
	}
	c.lru.Reset()
	c.generation++
}

// Len returns the number of live entries.
func (c *Cache) Len() int { return c.lru.Len }

// Capacity returns the table's fixed capacity.
func (c *Cache) Capacity() int { return c.capacity }

// Stats returns cumulative cache counters.
func (c *Cache) Stats() (hits, misses, evictions, insertions uint64) {
	return c.hits, c.misses, c.evictions, c.insertions
}
