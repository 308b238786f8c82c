package glyphatlas

// Atlas control: ResetAtlas, SetTextureCallback, SetAtlasGrowCallback,
// SetRasterMode, FlushGPURasterJobs — the remaining quarter of
// SPEC_FULL.md §6's caller-facing API, covering atlas lifecycle and the
// GPU rasterization path's command-buffer integration points.

import (
	"errors"

	"github.com/gogpu/glyphatlas/atlas"
	"github.com/gogpu/glyphatlas/gpu"
	"github.com/gogpu/glyphatlas/iter"
	"github.com/gogpu/glyphatlas/rasterize"
)

// ErrNoGPURasterizer is returned by SetRasterMode when a mode other than
// ModeCPUOnly is requested but Config never supplied a compute pipeline.
var ErrNoGPURasterizer = errors.New("glyphatlas: no GPU rasterizer configured")

// ResetAtlas discards every atlas texture and glyph cache entry and
// starts fresh at the given atlas size. Existing text iterators and
// per-key allocators are invalidated since they reference atlases that no
// longer exist.
func (s *System) ResetAtlas(width, height int) {
	s.keyMu.Lock()
	var anyAdapter *atlasAdapter
	for _, a := range s.adapters {
		anyAdapter = a
		break
	}
	s.keyMu.Unlock()

	if anyAdapter != nil {
		s.glyphs.Reset(anyAdapter)
	}

	size := width
	if height > size {
		size = height
	}
	cfg := s.atlasCfg
	cfg.AtlasSize = size

	s.keyMu.Lock()
	s.atlasMgr = atlas.NewManager(s.backend, cfg)
	s.atlasCfg = cfg
	s.keyIndex = make(map[atlas.Key]uint16)
	s.indexKey = make(map[uint16]atlas.Key)
	s.adapters = make(map[atlas.Key]*atlasAdapter)
	s.seenAtlases = make(map[atlas.Key]map[atlas.ID]bool)
	s.nextKeyIdx = 0
	s.textIters = make(map[atlas.Key]*iter.Iterator)
	s.keyMu.Unlock()
}

// SetTextureCallback installs the callback invoked whenever new glyph
// pixels are written into an atlas texture.
func (s *System) SetTextureCallback(cb TextureCallback) {
	s.keyMu.Lock()
	s.textureCB = cb
	s.keyMu.Unlock()
}

// SetAtlasGrowCallback installs the callback invoked the first time a new
// atlas instance is created for some rendering configuration.
func (s *System) SetAtlasGrowCallback(cb AtlasGrowCallback) {
	s.keyMu.Lock()
	s.growCB = cb
	s.keyMu.Unlock()
}

// SetRasterMode switches between CPU-only, GPU-forced, and automatic
// glyph rasterization. Non-CPU modes require Config.RasterPipeline and
// Config.RasterBindGroup to have been supplied to NewSystem.
func (s *System) SetRasterMode(mode rasterize.Mode) error {
	if mode == rasterize.ModeCPUOnly {
		if s.raster != nil {
			s.raster.SetMode(mode)
		}
		return nil
	}
	if s.raster == nil {
		return ErrNoGPURasterizer
	}
	s.raster.SetMode(mode)
	return nil
}

// FlushGPURasterJobs records every pending GPU rasterization job onto enc,
// returning the number flushed. It is a no-op returning 0 when no GPU
// rasterizer is configured.
func (s *System) FlushGPURasterJobs(enc gpu.CommandEncoder) int {
	if s.raster == nil {
		return 0
	}
	return s.raster.Flush(enc)
}
