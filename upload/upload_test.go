package upload

import (
	"testing"

	"github.com/gogpu/glyphatlas/gpu"
)

func newTestPipeline(t *testing.T, stagingSize uint64, capacity int) (*Pipeline, *gpu.NullBackend, gpu.Texture) {
	t.Helper()
	backend := gpu.NewNullBackend()
	p, err := New(backend, stagingSize, capacity)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tex, err := backend.CreateTexture(gpu.TextureDescriptor{Width: 256, Height: 256, Format: gpu.FormatR8Unorm})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	return p, backend, tex
}

func TestEnqueueAndDrainUploadsAll(t *testing.T) {
	p, backend, tex := newTestPipeline(t, 1<<20, 16)

	var done int
	for i := 0; i < 5; i++ {
		pixels := make([]byte, 16*16)
		if err := p.Enqueue(Item{
			Texture: tex, X: i * 16, Y: 0, Width: 16, Height: 16,
			Pixels: NewPixelBuffer(pixels),
			OnDone: func() { done++ },
		}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	enc := backend.NewCommandEncoder()
	uploaded := p.Drain(enc)

	if len(uploaded) != 5 {
		t.Fatalf("expected 5 uploaded items, got %d", len(uploaded))
	}
	if done != 5 {
		t.Fatalf("expected OnDone called 5 times, got %d", done)
	}
	if p.QueueLen() != 0 {
		t.Fatalf("expected empty queue after full drain, got %d", p.QueueLen())
	}

	nenc := enc.(*gpu.NullCommandEncoder)
	if len(nenc.CopiesToTexture) != 5 {
		t.Fatalf("expected 5 recorded copies, got %d", len(nenc.CopiesToTexture))
	}
}

func TestEnqueueFullQueueErrors(t *testing.T) {
	p, _, tex := newTestPipeline(t, 1<<20, 2)

	for i := 0; i < 2; i++ {
		if err := p.Enqueue(Item{Texture: tex, Width: 4, Height: 4, Pixels: NewPixelBuffer(make([]byte, 16))}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := p.Enqueue(Item{Texture: tex, Width: 4, Height: 4, Pixels: NewPixelBuffer(make([]byte, 16))}); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

// TestDrainDefersWhenStagingFull exercises the "staging buffer full, defer
// the rest" path: a staging ring too small for every queued item leaves
// the excess queued for the next Drain call.
func TestDrainDefersWhenStagingFull(t *testing.T) {
	const itemSize = 64 * 64
	p, backend, tex := newTestPipeline(t, itemSize*2, 8)

	for i := 0; i < 5; i++ {
		if err := p.Enqueue(Item{
			Texture: tex, X: 0, Y: i * 64, Width: 64, Height: 64,
			Pixels: NewPixelBuffer(make([]byte, itemSize)),
		}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	enc := backend.NewCommandEncoder()
	uploaded := p.Drain(enc)

	if len(uploaded) != 2 {
		t.Fatalf("expected exactly 2 items to fit in a 2-item staging buffer, got %d", len(uploaded))
	}
	if p.QueueLen() != 3 {
		t.Fatalf("expected 3 items deferred to next frame, got %d", p.QueueLen())
	}

	enc2 := backend.NewCommandEncoder()
	uploaded2 := p.Drain(enc2)
	if len(uploaded2) != 2 {
		t.Fatalf("expected the next drain to again fit 2 items, got %d", len(uploaded2))
	}
	if p.QueueLen() != 1 {
		t.Fatalf("expected 1 item still deferred, got %d", p.QueueLen())
	}
}

func TestPixelBufferTakeClearsSource(t *testing.T) {
	pb := NewPixelBuffer([]byte{1, 2, 3})
	if pb.Len() != 3 {
		t.Fatalf("expected len 3, got %d", pb.Len())
	}
	data := pb.Take()
	if len(data) != 3 {
		t.Fatalf("expected 3 bytes from Take, got %d", len(data))
	}
	if pb.Len() != 0 {
		t.Fatal("expected PixelBuffer to be empty after Take")
	}
}

func TestDrainEmptyQueueIsNoop(t *testing.T) {
	p, backend, _ := newTestPipeline(t, 1024, 4)
	enc := backend.NewCommandEncoder()
	if got := p.Drain(enc); got != nil {
		t.Fatalf("expected nil from draining an empty queue, got %v", got)
	}
}

func TestStatsAccumulate(t *testing.T) {
	p, backend, tex := newTestPipeline(t, 1<<20, 8)
	if err := p.Enqueue(Item{Texture: tex, Width: 8, Height: 8, Pixels: NewPixelBuffer(make([]byte, 64))}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	p.Drain(backend.NewCommandEncoder())

	totalUploads, bytesUploaded := p.Stats()
	if totalUploads != 1 {
		t.Fatalf("expected 1 total upload, got %d", totalUploads)
	}
	if bytesUploaded != 64 {
		t.Fatalf("expected 64 bytes uploaded, got %d", bytesUploaded)
	}
}
