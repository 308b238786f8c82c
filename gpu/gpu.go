// Package gpu defines the GPU backend surface the atlas, upload, and
// rasterize packages render through, plus a dependency-free NullBackend
// test double.
//
// The interface is deliberately narrow: texture/buffer creation, bind
// group wiring, command recording, and submission, shaped after
// _examples/gogpu-gg/internal/gpu's GPUTexture/Buffer/CommandEncoder and
// backed in production by github.com/gogpu/wgpu (see wgpu_backend.go).
package gpu

import "errors"

// ErrUnsupported is returned by a Backend method that cannot carry out a
// request (e.g. NullBackend.WriteBuffer given a buffer it did not create,
// or a write that runs past the buffer's end).
var ErrUnsupported = errors.New("gpu: operation unsupported by this backend")

// TextureFormat identifies a GPU texture's pixel layout.
type TextureFormat uint8

const (
	FormatR8Unorm TextureFormat = iota
	FormatRGBA8Unorm
)

// TextureUsage is a bitmask of how a texture will be used.
type TextureUsage uint32

const (
	TextureUsageTextureBinding TextureUsage = 1 << iota
	TextureUsageCopyDst
	TextureUsageStorageBinding
)

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	Width, Height int
	Format        TextureFormat
	Usage         TextureUsage
}

// Texture is an opaque handle to a GPU texture resource.
type Texture interface {
	Width() int
	Height() int
	Format() TextureFormat
}

// TextureView is an opaque handle to a texture view, used to build bind
// groups and render/compute pass attachments.
type TextureView interface {
	Texture() Texture
}

// BindGroup is an opaque handle to a bound set of resources (here, just an
// atlas's texture view; no sampler is bound) ready to be referenced from a
// draw or compute dispatch.
type BindGroup interface{}

// BufferUsage is a bitmask of how a buffer will be used.
type BufferUsage uint32

const (
	BufferUsageMapWrite BufferUsage = 1 << iota
	BufferUsageCopySrc
	BufferUsageCopyDst
	BufferUsageStorage
)

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Size  uint64
	Usage BufferUsage
}

// Buffer is an opaque handle to a GPU buffer resource.
type Buffer interface {
	Size() uint64
}

// CopyRegion describes a buffer-to-texture copy, in pixel coordinates.
type CopyRegion struct {
	SrcOffset   uint64
	DstX, DstY  int
	Width       int
	Height      int
	BytesPerRow int
}

// ComputeDispatch describes a single compute shader invocation: the
// pipeline to bind, the bind group carrying its resources, any push
// constants, and the workgroup grid to dispatch.
type ComputeDispatch struct {
	Pipeline      ComputePipeline
	BindGroup     BindGroup
	PushConstants []byte
	WorkgroupsX   int
	WorkgroupsY   int
	WorkgroupsZ   int
}

// ComputePipeline is an opaque handle to a compiled compute pipeline.
type ComputePipeline interface{}

// CommandEncoder records a sequence of GPU operations for later
// submission. Implementations are not expected to be safe for concurrent
// use; one encoder belongs to one frame on one goroutine.
type CommandEncoder interface {
	CopyBufferToTexture(src Buffer, dst Texture, region CopyRegion)
	CopyTextureToTexture(src, dst Texture, srcX, srcY, dstX, dstY, w, h int)
	DispatchCompute(d ComputeDispatch)
	Finish() CommandBuffer
}

// CommandBuffer is a finished, submittable sequence of recorded commands.
type CommandBuffer interface{}

// Backend is the GPU surface every other package in this module renders
// through. Production code wires a real implementation (WGPUBackend, over
// github.com/gogpu/wgpu); tests wire NullBackend.
type Backend interface {
	CreateTexture(desc TextureDescriptor) (Texture, error)
	CreateTextureView(t Texture) (TextureView, error)
	CreateBindGroup(v TextureView) (BindGroup, error)

	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	WriteBuffer(b Buffer, offset uint64, data []byte) error

	CreateComputePipeline(shaderSource []byte, entryPoint string) (ComputePipeline, error)

	NewCommandEncoder() CommandEncoder
	Submit(cb CommandBuffer)
}
