package glyphatlas

// This file wires the spec's root-level facade (SPEC_FULL.md's
// "glyphatlas.System") on top of the packages built under atlas/,
// glyphcache/, shapecache/, iter/, loader/, upload/, defrag/, fontengine/,
// shaping/, and rasterize/.
//
// Grounded in _examples/gogpu-gg/internal/gpu/atlas.go's Manager (the atlas
// allocation policy this facade drives) and backend/software.go's
// SoftwareRenderer (a Config-struct-plus-constructor facade bundling
// several owned subsystems, the same shape System follows here).

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gogpu/glyphatlas/atlas"
	"github.com/gogpu/glyphatlas/fontengine"
	"github.com/gogpu/glyphatlas/glyphcache"
	"github.com/gogpu/glyphatlas/gpu"
	"github.com/gogpu/glyphatlas/internal/parallel"
	"github.com/gogpu/glyphatlas/iter"
	"github.com/gogpu/glyphatlas/loader"
	"github.com/gogpu/glyphatlas/rasterize"
	"github.com/gogpu/glyphatlas/shapecache"
	"github.com/gogpu/glyphatlas/shaping"
	"github.com/gogpu/glyphatlas/upload"
)

// FontID identifies one loaded font within a System.
type FontID uint64

// Align selects how TextIterInit positions a run relative to the pen x
// coordinate it is given.
type Align uint8

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Errors returned by System's public methods.
var (
	ErrNoBackend    = errors.New("glyphatlas: Config.Backend is required")
	ErrUnknownFont  = errors.New("glyphatlas: unknown font id")
	ErrSystemBroken = errors.New("glyphatlas: system is in a broken state and must be recreated")
)

// TextureCallback is invoked once a glyph's pixels have been recorded into
// an atlas texture (via the CPU upload pipeline or a GPU compute
// write-through), mirroring spec.md §6's texture-upload callback.
type TextureCallback func(atlasID atlas.ID, x, y, w, h int, pixels []byte, srcCS, dstCS atlas.ColorSpace, format atlas.PixelFormat)

// AtlasGrowCallback is invoked the first time a new atlas instance is
// created for a given rendering configuration, so the caller can bind the
// new texture for sampling before the next draw.
type AtlasGrowCallback func(key atlas.Key, id atlas.ID, width, height int)

// fontEntry is one loaded font: its metrics-path engine (used from the
// owner thread), its dedicated rasterization-path engine (used from the
// loader's background goroutine), and its fallback chain.
//
// fontengine.Engine implementations hold mutable per-call state
// (SFNTEngine's ppem/variation fields), so sharing one Engine across the
// owner thread and the loader thread would race per SPEC_FULL.md §5's
// two-thread model. Two independent Engine instances over the same font
// bytes give each thread exclusive ownership of its own without adding a
// mutex to the hot glyph-metrics path.
type fontEntry struct {
	data      []byte
	metrics   fontengine.Engine
	raster    fontengine.Engine
	fallbacks []FontID

	variationState uint64
}

// Config configures a System.
type Config struct {
	// Backend is the GPU surface atlases, uploads, and GPU rasterization
	// are recorded through. Required.
	Backend gpu.Backend

	AtlasConfig atlas.Config

	GlyphCacheCapacity int
	ShapeCacheCapacity int

	LoadQueueSize   int
	UploadQueueSize int
	StagingSize     uint64

	// RasterPipeline/RasterBindGroup, if both non-nil, enable the GPU
	// rasterization path (rasterize.Rasterizer) alongside the CPU loader.
	// Left nil, every glyph rasterizes on the CPU loader thread.
	RasterPipeline gpu.ComputePipeline
	RasterBindGroup gpu.BindGroup
}

// DefaultStagingSize is used when Config.StagingSize is zero: enough for a
// handful of large glyph bitmaps per frame.
const DefaultStagingSize = 1 << 20

// DefaultConfig returns a Config with every size defaulted, wired to
// backend.
func DefaultConfig(backend gpu.Backend) Config {
	return Config{
		Backend:     backend,
		AtlasConfig: atlas.DefaultConfig(),
		StagingSize: DefaultStagingSize,
	}
}

// renderState bundles every current-state field spec.md §6 lists
// ("current font id, size, spacing, blur, align, hinting mode, kerning
// flag, subpixel mode, text direction, target color space").
type renderState struct {
	fontID FontID

	sizePx  float32
	spacing float32
	blur    float32
	align   Align

	hinting        uint8
	kerningEnabled bool
	bidiEnabled    bool
	baseDirection  uint8
	vertical       bool

	subpixel      atlas.SubpixelMode
	srcColorSpace atlas.ColorSpace
	dstColorSpace atlas.ColorSpace
	pixelFormat   atlas.PixelFormat

	// syntheticEmbolden is the stroke width (glyph-space pixels) applied
	// to outlines via emboldenElements (synthetic_bold.go) when non-zero.
	syntheticEmbolden float32

	features []shapecache.Feature
}

func defaultRenderState() renderState {
	return renderState{
		sizePx:      16,
		pixelFormat: atlas.FormatA8,
	}
}

// System is the facade bundling every component (C1-C10) into one
// caller-facing handle: one font table, one current render state, one
// shape cache, one glyph cache keyed across however many atlas
// configurations (atlas.Key families) the caller exercises, one background
// loader, one upload pipeline, and an optional GPU rasterizer.
//
// System is not safe for concurrent use by multiple callers except where
// individually documented (font-table reads, the loader's own goroutine):
// per SPEC_FULL.md §5 it has exactly one owner thread, plus the loader's
// single background goroutine it starts internally.
type System struct {
	backend gpu.Backend

	atlasMgr *atlas.Manager
	atlasCfg atlas.Config
	glyphs   *glyphcache.Cache
	shapes   *shapecache.Cache
	shaper   shaping.Shaper
	ld       *loader.Loader
	uploader *upload.Pipeline
	raster   *rasterize.Rasterizer

	// colorPool rasterizes a color glyph's independent layer masks
	// concurrently (color_glyph.go); owned by System so it is started once
	// rather than per glyph.
	colorPool *parallel.WorkerPool

	fontMu     sync.RWMutex
	fonts      map[FontID]*fontEntry
	fontsByKey map[string]FontID
	nextFontID FontID

	keyMu       sync.Mutex
	keyIndex    map[atlas.Key]uint16
	indexKey    map[uint16]atlas.Key
	adapters    map[atlas.Key]*atlasAdapter
	seenAtlases map[atlas.Key]map[atlas.ID]bool
	nextKeyIdx  uint16

	state      renderState
	textIters  map[atlas.Key]*iter.Iterator
	activeIter *iter.Iterator

	// lastFontID/lastGID record the font/glyph most recently resolved by
	// glyphMetrics, so TextIterNext's caller-facing wrapper can recover
	// which fingerprint a freshly StateLoading CachedGlyph belongs to
	// without iter.CachedGlyph itself needing to carry that information.
	lastFontID FontID
	lastGID    shapecache.GlyphID

	pendingMu     sync.Mutex
	pendingLoads  map[glyphcache.Fingerprint]bool

	textureCB TextureCallback
	growCB    AtlasGrowCallback

	broken atomic.Bool
}

// NewSystem creates a System from cfg, starting its background loader
// goroutine and (if cfg.StagingSize allows) its upload pipeline's staging
// buffer.
func NewSystem(cfg Config) (*System, error) {
	if cfg.Backend == nil {
		return nil, ErrNoBackend
	}

	atlasCfg := cfg.AtlasConfig
	if atlasCfg.AtlasSize == 0 {
		atlasCfg = atlas.DefaultConfig()
	}
	stagingSize := cfg.StagingSize
	if stagingSize == 0 {
		stagingSize = DefaultStagingSize
	}

	up, err := upload.New(cfg.Backend, stagingSize, cfg.UploadQueueSize)
	if err != nil {
		return nil, err
	}

	sys := &System{
		backend:     cfg.Backend,
		atlasMgr:    atlas.NewManager(cfg.Backend, atlasCfg),
		atlasCfg:    atlasCfg,
		glyphs:      glyphcache.New(cfg.GlyphCacheCapacity),
		shapes:      shapecache.New(cfg.ShapeCacheCapacity),
		shaper:      shaping.NewGoTextShaper(),
		uploader:    up,
		fonts:       make(map[FontID]*fontEntry),
		fontsByKey:  make(map[string]FontID),
		keyIndex:    make(map[atlas.Key]uint16),
		indexKey:    make(map[uint16]atlas.Key),
		adapters:    make(map[atlas.Key]*atlasAdapter),
		seenAtlases: make(map[atlas.Key]map[atlas.ID]bool),
		state:        defaultRenderState(),
		textIters:    make(map[atlas.Key]*iter.Iterator),
		pendingLoads: make(map[glyphcache.Fingerprint]bool),
		colorPool:    parallel.NewWorkerPool(4),
	}

	if cfg.RasterPipeline != nil && cfg.RasterBindGroup != nil {
		sys.raster = rasterize.New(cfg.Backend, cfg.RasterPipeline, cfg.RasterBindGroup)
	}

	sys.ld = loader.New(cfg.LoadQueueSize, cfg.UploadQueueSize, sys.rasterizeOnLoader, sys.onLoadFailure)

	return sys, nil
}

// Close shuts the system down: drains the loader (per SPEC_FULL.md §5's
// shutdown sequence, background requests are never cancelled, only
// drained) and releases its queued pixel buffers.
func (s *System) Close() {
	if s.broken.Swap(true) {
		return
	}
	s.ld.Close()
	s.colorPool.Close()
}

// checkBroken returns ErrSystemBroken once Close has run, matching the
// teacher's backend-fatal-condition check pattern (backend/gogpu/errors.go
// / backend/rust/errors.go). AddFont and TextIterInit call it; the other
// public methods do not check the flag.
func (s *System) checkBroken() error {
	if s.broken.Load() {
		return ErrSystemBroken
	}
	return nil
}
