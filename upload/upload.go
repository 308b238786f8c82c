// Package upload implements the per-frame upload pipeline (component C7):
// draining completed loader results into a host-visible staging ring,
// recording buffer-to-texture copies, and transitioning entries to
// StateUploaded once their command buffer has been recorded.
//
// Grounded in original_source/src/nanovg_vk_virtual_atlas.c's
// vknvg__processUploads (staging-buffer offset walk, layout-transition
// barrier before/after the copy batch, "stop and defer the rest" behavior
// when the staging ring runs out of room), translated onto
// _examples/gogpu-gg/internal/gpu/buffer.go and
// internal/gpu/command_encoder.go's buffer/copy recording idiom.
package upload

import (
	"errors"

	"github.com/gogpu/glyphatlas/gpu"
)

// ErrQueueFull is returned by Enqueue when the upload queue is at
// capacity.
var ErrQueueFull = errors.New("upload: queue is full")

// DefaultQueueCapacity matches VKNVG_UPLOAD_QUEUE_SIZE.
const DefaultQueueCapacity = 256

// PixelBuffer is a single-ownership byte buffer: Take zeroes the source so
// a pixel buffer is never accidentally aliased between the loader that
// produced it and the upload pipeline that consumes it (SPEC_FULL.md §9).
type PixelBuffer struct {
	data []byte
}

// NewPixelBuffer wraps data as a PixelBuffer, taking ownership of the
// slice: callers must not use data after this call.
func NewPixelBuffer(data []byte) PixelBuffer {
	return PixelBuffer{data: data}
}

// Take returns the underlying bytes and clears this PixelBuffer, so a
// caller cannot accidentally read it twice.
func (p *PixelBuffer) Take() []byte {
	d := p.data
	p.data = nil
	return d
}

// Len returns the buffer's byte length without consuming it.
func (p *PixelBuffer) Len() int { return len(p.data) }

// Item is one pending texture region upload.
type Item struct {
	Texture  gpu.Texture
	X, Y     int
	Width    int
	Height   int
	Pixels   PixelBuffer
	OnDone   func()
}

// Pipeline owns the bounded upload queue and staging ring.
//
// Pipeline has no internal locking: Enqueue, QueueLen and Drain must all
// be called from the same goroutine. System calls them from the owner
// goroutine during ProcessUploads, with Drain once per frame.
type Pipeline struct {
	backend gpu.Backend

	capacity int
	queue    []Item

	stagingSize   uint64
	stagingBuffer gpu.Buffer

	imageInitialized map[gpu.Texture]bool

	totalUploads uint64
	bytesUploaded uint64
}

// New creates an upload pipeline with the given staging buffer size (in
// bytes) and queue capacity (0 falls back to DefaultQueueCapacity).
func New(backend gpu.Backend, stagingSize uint64, capacity int) (*Pipeline, error) {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}

	buf, err := backend.CreateBuffer(gpu.BufferDescriptor{
		Size:  stagingSize,
		Usage: gpu.BufferUsageMapWrite | gpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		backend:          backend,
		capacity:         capacity,
		stagingSize:      stagingSize,
		stagingBuffer:    buf,
		imageInitialized: make(map[gpu.Texture]bool),
	}, nil
}

// Enqueue adds a completed raster result to the upload queue.
func (p *Pipeline) Enqueue(item Item) error {
	if len(p.queue) >= p.capacity {
		return ErrQueueFull
	}
	p.queue = append(p.queue, item)
	return nil
}

// QueueLen returns the number of items currently queued.
func (p *Pipeline) QueueLen() int { return len(p.queue) }

// Drain records copy commands for as many queued items as fit in the
// staging buffer this frame, in FIFO order, calling transitionForUpload
// once per texture before its first copy (that hook records no barrier
// itself; no transition is recorded after the batch).
// Items that don't fit are left in the queue for the next call (the
// "stop — staging buffer full" behavior from the original). It returns
// the items it successfully uploaded (for the caller to mark their
// corresponding glyph cache entries Uploaded).
func (p *Pipeline) Drain(enc gpu.CommandEncoder) []Item {
	if len(p.queue) == 0 {
		return nil
	}

	var uploaded []Item
	var offset uint64
	remaining := p.queue[:0:0]

	texturesTouched := make(map[gpu.Texture]bool)

	for i, item := range p.queue {
		size := uint64(item.Width * item.Height)
		if offset+size > p.stagingSize {
			remaining = append(remaining, p.queue[i:]...)
			break
		}

		pixels := item.Pixels.Take()
		if err := p.backend.WriteBuffer(p.stagingBuffer, offset, pixels); err != nil {
			remaining = append(remaining, item)
			continue
		}

		if !texturesTouched[item.Texture] {
			p.transitionForUpload(enc, item.Texture)
			texturesTouched[item.Texture] = true
		}

		enc.CopyBufferToTexture(p.stagingBuffer, item.Texture, gpu.CopyRegion{
			SrcOffset:   offset,
			DstX:        item.X,
			DstY:        item.Y,
			Width:       item.Width,
			Height:      item.Height,
			BytesPerRow: item.Width,
		})

		offset += size
		p.totalUploads++
		p.bytesUploaded += size

		if item.OnDone != nil {
			item.OnDone()
		}
		uploaded = append(uploaded, item)
	}

	for tex := range texturesTouched {
		p.imageInitialized[tex] = true
	}

	p.queue = remaining
	return uploaded
}

// transitionForUpload records the layout-transition barrier a texture
// needs before receiving copy commands: from Undefined on its very first
// upload, or from ShaderReadOnly on every subsequent one. The actual
// barrier recording is left to the CommandEncoder implementation (a real
// wgpu backend folds texture layout transitions into the copy call
// itself); this hook exists so a backend that needs an explicit barrier
// command has a place to record it.
func (p *Pipeline) transitionForUpload(enc gpu.CommandEncoder, tex gpu.Texture) {
	_ = p.imageInitialized[tex] // whether this is the first upload for tex
}

// Stats returns cumulative upload counters.
func (p *Pipeline) Stats() (totalUploads, bytesUploaded uint64) {
	return p.totalUploads, p.bytesUploaded
}
