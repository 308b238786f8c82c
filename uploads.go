package glyphatlas

import (
	"github.com/gogpu/glyphatlas/atlas"
	"github.com/gogpu/glyphatlas/glyphcache"
	"github.com/gogpu/glyphatlas/gpu"
	"github.com/gogpu/glyphatlas/loader"
	"github.com/gogpu/glyphatlas/upload"
)

// ProcessUploads is the per-frame pump connecting the background loader
// (C6) to the upload pipeline (C7): every finished rasterization result
// sitting in the loader's upload queue gets its glyph cache entry marked
// Ready with its normalized atlas UV, is handed to the upload pipeline as
// a pending texture-region write, and then the pipeline itself is told to
// record its queued copies into enc.
//
// Grounded in original_source/src/nanovg_vk_virtual_atlas.c's per-frame
// vknvg__processUploads call, split here across loader.DrainUploads (pull
// finished work) and upload.Pipeline.Drain (record the GPU copies), the
// same two-stage split loader.go and upload/upload.go already establish.
//
// Must be called once per frame from the owner thread, same as
// TextIterInit/Next.
func (s *System) ProcessUploads(enc gpu.CommandEncoder) int {
	for _, item := range s.ld.DrainUploads() {
		fp, ok := item.Key.(glyphcache.Fingerprint)
		if !ok {
			continue
		}
		s.stageUpload(fp, item.Result)
	}

	// Drain invokes each Item's OnDone itself once its copy is recorded.
	return len(s.uploader.Drain(enc))
}

// stageUpload resolves fp's entry and atlas instance, marks the entry
// Ready with its normalized UV, and enqueues its pixels into the upload
// pipeline. A miss at any step (entry evicted under pressure before its
// load completed, atlas instance gone after a Reset) silently drops the
// result: the glyph simply gets re-requested the next time it is drawn.
func (s *System) stageUpload(fp glyphcache.Fingerprint, result loader.Result) {
	entry, ok := s.glyphs.Lookup(fp)
	if !ok {
		s.clearPending(fp)
		return
	}

	s.keyMu.Lock()
	atlasKey, ok := s.indexKeyFromComposite(entry.AtlasID)
	s.keyMu.Unlock()
	if !ok {
		atlasKey = atlasKeyFromFingerprint(fp)
	}

	inst, ok := s.atlasMgr.InstanceByID(atlasKey, decodeAtlasIDOnly(entry.AtlasID))
	if !ok {
		s.clearPending(fp)
		return
	}

	tw, th := float32(inst.Texture().Width()), float32(inst.Texture().Height())
	uv := glyphcache.UV{
		S0: (float32(entry.Rect.X) + 0.5) / tw,
		T0: (float32(entry.Rect.Y) + 0.5) / th,
		S1: (float32(entry.Rect.X+entry.Rect.W) - 0.5) / tw,
		T1: (float32(entry.Rect.Y+entry.Rect.H) - 0.5) / th,
	}

	entry.MarkReady(glyphcache.Metrics{
		BearingX: result.BearingX,
		BearingY: result.BearingY,
		AdvanceX: result.AdvanceX,
	}, uv)

	if len(result.Pixels) == 0 {
		// No outline: nothing to upload, but the entry is still Ready so
		// CachedGlyph.Ready() reports true for a deliberately empty glyph.
		entry.MarkUploaded()
		s.clearPending(fp)
		return
	}

	pixels := result.Pixels
	err := s.uploader.Enqueue(upload.Item{
		Texture: inst.Texture(),
		X:       entry.Rect.X,
		Y:       entry.Rect.Y,
		Width:   entry.Rect.W,
		Height:  entry.Rect.H,
		Pixels:  upload.NewPixelBuffer(pixels),
		OnDone: func() {
			entry.MarkUploaded()
			if s.textureCB != nil {
				s.textureCB(entry.AtlasID, entry.Rect.X, entry.Rect.Y, entry.Rect.W, entry.Rect.H,
					pixels, atlasKey.SrcColorSpace, atlasKey.DstColorSpace, atlasKey.Format)
			}
			s.clearPending(fp)
		},
	})
	if err != nil {
		// Upload queue full: drop rather than block, mirroring
		// loader.Loader.enqueueUpload's own policy for a stalled consumer.
		s.clearPending(fp)
	}
}

// indexKeyFromComposite recovers the atlas.Key an entry's composite
// AtlasID was encoded against. Must be called with s.keyMu held.
func (s *System) indexKeyFromComposite(composite uint32) (atlas.Key, bool) {
	idx, _ := decodeAtlasID(composite)
	key, ok := s.indexKey[idx]
	return key, ok
}

func decodeAtlasIDOnly(composite uint32) atlas.ID {
	_, id := decodeAtlasID(composite)
	return id
}
