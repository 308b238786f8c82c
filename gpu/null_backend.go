package gpu

// NullBackend is a dependency-free Backend implementation that allocates
// nothing on an actual device: it tracks texture/buffer sizes in plain Go
// memory and records command-encoder calls without executing them.
//
// It exists for the same reason _examples/gogpu-gg/backend/software.go's
// SoftwareBackend exists alongside the GPU backends: every package that
// depends on Backend must be testable without a real adapter. Unlike
// SoftwareBackend, NullBackend does not even rasterize on the CPU; it is
// purely a recording stub for unit tests of the atlas/upload/rasterize
// packages, which only need to observe that the right calls were made
// with the right sizes.
type NullBackend struct {
	textures  []*nullTexture
	buffers   []*nullBuffer
	pipelines []*nullPipeline

	Encoders []*NullCommandEncoder
}

// NewNullBackend creates a backend with no resources allocated yet.
func NewNullBackend() *NullBackend {
	return &NullBackend{}
}

type nullTexture struct {
	width, height int
	format        TextureFormat
}

func (t *nullTexture) Width() int            { return t.width }
func (t *nullTexture) Height() int           { return t.height }
func (t *nullTexture) Format() TextureFormat { return t.format }

type nullTextureView struct {
	texture *nullTexture
}

func (v *nullTextureView) Texture() Texture { return v.texture }

type nullBindGroup struct {
	view *nullTextureView
}

type nullBuffer struct {
	size uint64
	data []byte
}

func (b *nullBuffer) Size() uint64 { return b.size }

type nullPipeline struct {
	entryPoint string
}

// CreateTexture implements Backend.
func (b *NullBackend) CreateTexture(desc TextureDescriptor) (Texture, error) {
	t := &nullTexture{width: desc.Width, height: desc.Height, format: desc.Format}
	b.textures = append(b.textures, t)
	return t, nil
}

// CreateTextureView implements Backend.
func (b *NullBackend) CreateTextureView(t Texture) (TextureView, error) {
	nt, _ := t.(*nullTexture)
	return &nullTextureView{texture: nt}, nil
}

// CreateBindGroup implements Backend.
func (b *NullBackend) CreateBindGroup(v TextureView) (BindGroup, error) {
	nv, _ := v.(*nullTextureView)
	return &nullBindGroup{view: nv}, nil
}

// CreateBuffer implements Backend.
func (b *NullBackend) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	buf := &nullBuffer{size: desc.Size, data: make([]byte, desc.Size)}
	b.buffers = append(b.buffers, buf)
	return buf, nil
}

// WriteBuffer implements Backend.
func (b *NullBackend) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	nb, ok := buf.(*nullBuffer)
	if !ok {
		return ErrUnsupported
	}
	if offset+uint64(len(data)) > nb.size {
		return ErrUnsupported
	}
	copy(nb.data[offset:], data)
	return nil
}

// CreateComputePipeline implements Backend.
func (b *NullBackend) CreateComputePipeline(shaderSource []byte, entryPoint string) (ComputePipeline, error) {
	p := &nullPipeline{entryPoint: entryPoint}
	b.pipelines = append(b.pipelines, p)
	return p, nil
}

// NewCommandEncoder implements Backend.
func (b *NullBackend) NewCommandEncoder() CommandEncoder {
	enc := &NullCommandEncoder{}
	b.Encoders = append(b.Encoders, enc)
	return enc
}

// Submit implements Backend. NullBackend has no device queue, so this is a
// no-op; tests observe effects via the returned NullCommandEncoder's
// recorded call logs instead.
func (b *NullBackend) Submit(cb CommandBuffer) {}

// NullCommandEncoder records every call made to it for test assertions,
// without touching any real device state.
type NullCommandEncoder struct {
	CopiesToTexture  []CopyRegion
	CopiesToCopyTex  int
	Dispatches       []ComputeDispatch
	Finished         bool
}

func (e *NullCommandEncoder) CopyBufferToTexture(src Buffer, dst Texture, region CopyRegion) {
	e.CopiesToTexture = append(e.CopiesToTexture, region)
}

func (e *NullCommandEncoder) CopyTextureToTexture(src, dst Texture, srcX, srcY, dstX, dstY, w, h int) {
	e.CopiesToCopyTex++
}

func (e *NullCommandEncoder) DispatchCompute(d ComputeDispatch) {
	e.Dispatches = append(e.Dispatches, d)
}

func (e *NullCommandEncoder) Finish() CommandBuffer {
	e.Finished = true
	return e
}
