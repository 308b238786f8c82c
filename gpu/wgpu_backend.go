package gpu

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/types"
)

// WGPUBackend implements Backend over github.com/gogpu/wgpu's hal package:
// the handle-based device/queue surface used throughout
// _examples/gogpu-gg/backend/native/adapter.go's HALAdapter, which this type
// mirrors closely. Unlike HALAdapter, WGPUBackend needs no ID-to-handle
// maps: every Backend handle type (Texture, TextureView, BindGroup, Buffer,
// ComputePipeline) is already an opaque Go interface, so the wgpu* wrapper
// types below hold their hal handle directly.
//
// Adapter/device/queue bootstrap (core.RequestDevice, core.GetDeviceQueue,
// in _examples/gogpu-gg/backend/wgpu/device.go) is the caller's
// responsibility; NewWGPUBackend takes an already-opened hal.Device and
// hal.Queue, the same division of labor HALAdapter itself assumes.
type WGPUBackend struct {
	device hal.Device
	queue  hal.Queue

	// texBindLayout and pipelineLayout are created lazily on first use and
	// then reused for every bind group / compute pipeline this backend
	// creates. Backend.CreateBindGroup and CreateComputePipeline take no
	// explicit layout argument, so one fixed single-texture-binding layout
	// has to stand in for all of them; see DESIGN.md for why.
	texBindLayout  hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
}

// NewWGPUBackend wraps an already-opened wgpu device and queue as a Backend.
func NewWGPUBackend(device hal.Device, queue hal.Queue) *WGPUBackend {
	return &WGPUBackend{device: device, queue: queue}
}

func convertTextureFormat(f TextureFormat) types.TextureFormat {
	switch f {
	case FormatRGBA8Unorm:
		return types.TextureFormatRGBA8Unorm
	default:
		return types.TextureFormatR8Unorm
	}
}

func convertTextureUsage(u TextureUsage) types.TextureUsage {
	var out types.TextureUsage
	if u&TextureUsageTextureBinding != 0 {
		out |= types.TextureUsageTextureBinding
	}
	if u&TextureUsageCopyDst != 0 {
		out |= types.TextureUsageCopyDst
	}
	if u&TextureUsageStorageBinding != 0 {
		out |= types.TextureUsageStorageBinding
	}
	return out
}

func convertBufferUsage(u BufferUsage) types.BufferUsage {
	var out types.BufferUsage
	if u&BufferUsageMapWrite != 0 {
		out |= types.BufferUsageMapWrite
	}
	if u&BufferUsageCopySrc != 0 {
		out |= types.BufferUsageCopySrc
	}
	if u&BufferUsageCopyDst != 0 {
		out |= types.BufferUsageCopyDst
	}
	if u&BufferUsageStorage != 0 {
		out |= types.BufferUsageStorage
	}
	return out
}

type wgpuTexture struct {
	tex           hal.Texture
	width, height int
	format        TextureFormat
}

func (t *wgpuTexture) Width() int            { return t.width }
func (t *wgpuTexture) Height() int           { return t.height }
func (t *wgpuTexture) Format() TextureFormat { return t.format }

type wgpuTextureView struct {
	view    hal.TextureView
	texture *wgpuTexture
}

func (v *wgpuTextureView) Texture() Texture { return v.texture }

type wgpuBindGroup struct {
	group hal.BindGroup
}

type wgpuBuffer struct {
	buf  hal.Buffer
	size uint64
	// mirror holds the last bytes written, so CopyBufferToTexture can drive
	// queue.WriteTexture directly: hal's own CommandEncoder.CopyBufferToTexture
	// is left as an unimplemented TODO throughout the example pack (see
	// DESIGN.md), but queue.WriteTexture is a complete, load-bearing call in
	// every hal.Queue implementation in the pack.
	mirror []byte
}

func (b *wgpuBuffer) Size() uint64 { return b.size }

type wgpuComputePipeline struct {
	pipeline hal.ComputePipeline
}

// CreateTexture implements Backend.
func (b *WGPUBackend) CreateTexture(desc TextureDescriptor) (Texture, error) {
	halDesc := &hal.TextureDescriptor{
		Label: "",
		Size: hal.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     types.TextureDimension2D,
		Format:        convertTextureFormat(desc.Format),
		Usage:         convertTextureUsage(desc.Usage),
	}

	tex, err := b.device.CreateTexture(halDesc)
	if err != nil {
		return nil, fmt.Errorf("gpu: create texture: %w", err)
	}

	return &wgpuTexture{tex: tex, width: desc.Width, height: desc.Height, format: desc.Format}, nil
}

// CreateTextureView implements Backend.
func (b *WGPUBackend) CreateTextureView(t Texture) (TextureView, error) {
	wt, ok := t.(*wgpuTexture)
	if !ok {
		return nil, fmt.Errorf("gpu: CreateTextureView: %w", ErrUnsupported)
	}

	view, err := b.device.CreateTextureView(wt.tex, &hal.TextureViewDescriptor{
		Label:           "",
		Format:          convertTextureFormat(wt.format),
		Dimension:       types.TextureViewDimension2D,
		Aspect:          types.TextureAspectAll,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create texture view: %w", err)
	}

	return &wgpuTextureView{view: view, texture: wt}, nil
}

// ensureTexBindLayout lazily creates the single texture-binding layout every
// bind group and compute pipeline this backend creates is built against,
// grounded in _examples/gogpu-gg/backend/wgpu/pipeline.go's (commented-out)
// blit bind group layout shape.
func (b *WGPUBackend) ensureTexBindLayout() (hal.BindGroupLayout, error) {
	if b.texBindLayout != nil {
		return b.texBindLayout, nil
	}

	layout, err := b.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "glyphatlas_texture_layout",
		Entries: []types.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: types.ShaderStageCompute,
				Texture: &types.TextureBindingLayout{
					SampleType:    types.TextureSampleTypeFloat,
					ViewDimension: types.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create bind group layout: %w", err)
	}

	b.texBindLayout = layout
	return layout, nil
}

// CreateBindGroup implements Backend.
func (b *WGPUBackend) CreateBindGroup(v TextureView) (BindGroup, error) {
	wv, ok := v.(*wgpuTextureView)
	if !ok {
		return nil, fmt.Errorf("gpu: CreateBindGroup: %w", ErrUnsupported)
	}

	layout, err := b.ensureTexBindLayout()
	if err != nil {
		return nil, err
	}

	group, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "",
		Layout: layout,
		Entries: []types.BindGroupEntry{
			{Binding: 0, Resource: types.TextureViewBinding{TextureView: wv.view}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create bind group: %w", err)
	}

	return &wgpuBindGroup{group: group}, nil
}

// CreateBuffer implements Backend.
func (b *WGPUBackend) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label:            "",
		Size:             desc.Size,
		Usage:            convertBufferUsage(desc.Usage),
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create buffer: %w", err)
	}

	return &wgpuBuffer{buf: buf, size: desc.Size, mirror: make([]byte, desc.Size)}, nil
}

// WriteBuffer implements Backend.
func (b *WGPUBackend) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	wb, ok := buf.(*wgpuBuffer)
	if !ok {
		return ErrUnsupported
	}
	if offset+uint64(len(data)) > wb.size {
		return fmt.Errorf("gpu: WriteBuffer: offset %d + len %d exceeds buffer size %d", offset, len(data), wb.size)
	}

	// hal.Queue.WriteBuffer has no error return (see other_examples'
	// hal-metal-queue.go.go): it is a fire-and-forget mapped-memory copy.
	b.queue.WriteBuffer(wb.buf, offset, data)
	copy(wb.mirror[offset:], data)
	return nil
}

// CreateComputePipeline implements Backend. shaderSource is WGSL text,
// compiled to SPIR-V through github.com/gogpu/naga the same way
// _examples/gogpu-gg/backend/wgpu/gpu_fine.go compiles its embedded fine
// rasterizer shader.
func (b *WGPUBackend) CreateComputePipeline(shaderSource []byte, entryPoint string) (ComputePipeline, error) {
	spirvBytes, err := naga.Compile(string(shaderSource))
	if err != nil {
		return nil, fmt.Errorf("gpu: compile shader: %w", err)
	}

	spirv := make([]uint32, len(spirvBytes)/4)
	for i := range spirv {
		spirv[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	shaderModule, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  entryPoint,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create shader module: %w", err)
	}

	texLayout, err := b.ensureTexBindLayout()
	if err != nil {
		return nil, err
	}

	if b.pipelineLayout == nil {
		pl, err := b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
			Label:            "glyphatlas_pipeline_layout",
			BindGroupLayouts: []hal.BindGroupLayout{texLayout},
		})
		if err != nil {
			return nil, fmt.Errorf("gpu: create pipeline layout: %w", err)
		}
		b.pipelineLayout = pl
	}

	pipeline, err := b.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  entryPoint,
		Layout: b.pipelineLayout,
		Compute: hal.ComputeState{
			Module:     shaderModule,
			EntryPoint: entryPoint,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create compute pipeline: %w", err)
	}

	return &wgpuComputePipeline{pipeline: pipeline}, nil
}

// NewCommandEncoder implements Backend.
func (b *WGPUBackend) NewCommandEncoder() CommandEncoder {
	enc, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "glyphatlas"})
	if err != nil {
		return &wgpuCommandEncoder{backend: b, err: fmt.Errorf("gpu: create command encoder: %w", err)}
	}
	if err := enc.BeginEncoding("glyphatlas"); err != nil {
		return &wgpuCommandEncoder{backend: b, err: fmt.Errorf("gpu: begin encoding: %w", err)}
	}
	return &wgpuCommandEncoder{backend: b, encoder: enc}
}

// Submit implements Backend.
func (b *WGPUBackend) Submit(cb CommandBuffer) {
	wcb, ok := cb.(*wgpuCommandBuffer)
	if !ok || wcb.buf == nil {
		return
	}
	_ = b.queue.Submit([]hal.CommandBuffer{wcb.buf}, nil, 0)
	wcb.buf.Destroy()
}

// wgpuCommandEncoder records buffer-to-texture uploads and compute
// dispatches against one hal.CommandEncoder. Buffer/texture copies go
// straight through the queue (see wgpuBuffer.mirror); compute dispatch uses
// the real hal.ComputePassEncoder, following HALAdapter.BeginComputePass.
type wgpuCommandEncoder struct {
	backend *WGPUBackend
	encoder hal.CommandEncoder
	err     error

	pendingCopies []pendingTextureCopy
}

type pendingTextureCopy struct {
	dst         hal.Texture
	data        []byte
	width       int
	height      int
	bytesPerRow int
	dstX        int
	dstY        int
}

// CopyBufferToTexture implements CommandEncoder. The copy is deferred until
// Finish so every upload in a frame reaches the queue as one batch, matching
// upload.Pipeline's "stage everything, flush once per frame" usage.
func (e *wgpuCommandEncoder) CopyBufferToTexture(src Buffer, dst Texture, region CopyRegion) {
	if e.err != nil {
		return
	}
	wb, ok := src.(*wgpuBuffer)
	if !ok {
		return
	}
	wt, ok := dst.(*wgpuTexture)
	if !ok {
		return
	}

	data := make([]byte, region.Height*region.BytesPerRow)
	copy(data, wb.mirror[region.SrcOffset:])

	e.pendingCopies = append(e.pendingCopies, pendingTextureCopy{
		dst: wt.tex, data: data, width: region.Width, height: region.Height,
		bytesPerRow: region.BytesPerRow, dstX: region.DstX, dstY: region.DstY,
	})
}

// CopyTextureToTexture implements CommandEncoder. Every hal.CommandEncoder
// implementation in the example pack (backend/native/command_encoder.go,
// internal/gpu/command_encoder.go) leaves this call as a validation-only
// TODO pending HAL integration, and HALAdapter.ReadTexture is explicitly
// "not yet implemented" -- there is no GPU-side texture-to-texture copy or
// readback path anywhere in the pack to ground this on. defrag's compaction
// falls back to a dropped move here, same as
// backend/wgpu/gpu_fine.go's GPUFineRasterizer falling back to CPU when its
// own GPU dispatch path is incomplete; see DESIGN.md.
func (e *wgpuCommandEncoder) CopyTextureToTexture(src, dst Texture, srcX, srcY, dstX, dstY, w, h int) {
}

// DispatchCompute implements CommandEncoder.
func (e *wgpuCommandEncoder) DispatchCompute(d ComputeDispatch) {
	if e.err != nil || e.encoder == nil {
		return
	}
	pipeline, ok := d.Pipeline.(*wgpuComputePipeline)
	if !ok {
		return
	}
	group, ok := d.BindGroup.(*wgpuBindGroup)
	if !ok {
		return
	}

	pass := e.encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "glyphatlas_compute"})
	if pass == nil {
		return
	}
	pass.SetPipeline(pipeline.pipeline)
	pass.SetBindGroup(0, group.group, nil)
	pass.Dispatch(uint32(d.WorkgroupsX), uint32(d.WorkgroupsY), uint32(d.WorkgroupsZ))
	pass.End()
}

// Finish implements CommandEncoder. Buffer-to-texture uploads are flushed to
// the queue here rather than recorded on the hal.CommandEncoder itself,
// since hal's own CopyBufferToTexture command recording is unimplemented
// throughout the pack (see CopyBufferToTexture's doc comment).
func (e *wgpuCommandEncoder) Finish() CommandBuffer {
	if e.err != nil || e.encoder == nil {
		return &wgpuCommandBuffer{}
	}

	for _, c := range e.pendingCopies {
		e.backend.queue.WriteTexture(
			&hal.ImageCopyTexture{
				Texture:  c.dst,
				MipLevel: 0,
				Origin:   hal.Origin3D{X: uint32(c.dstX), Y: uint32(c.dstY), Z: 0},
				Aspect:   types.TextureAspectAll,
			},
			c.data,
			&hal.ImageDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(c.bytesPerRow),
				RowsPerImage: uint32(c.height),
			},
			&hal.Extent3D{Width: uint32(c.width), Height: uint32(c.height), DepthOrArrayLayers: 1},
		)
	}

	cb, err := e.encoder.EndEncoding()
	if err != nil {
		return &wgpuCommandBuffer{}
	}
	return &wgpuCommandBuffer{buf: cb}
}

type wgpuCommandBuffer struct {
	buf hal.CommandBuffer
}
