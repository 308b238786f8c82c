// Package atlas implements the atlas instance (component C2) and atlas
// manager (component C3): a set of GPU-backed texture regions, keyed by
// rendering configuration, that the glyph cache allocates rectangles from.
//
// Grounded in original_source/src/nanovg_vk_multi_atlas.h (try-current,
// then-sibling, then-grow allocation policy) and
// _examples/gogpu-gg/internal/gpu/atlas.go (the Go error and region-naming
// idiom this package follows).
package atlas

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/glyphatlas/gpu"
	"github.com/gogpu/glyphatlas/packer"
)

// Errors returned by Manager.Alloc.
var (
	// ErrFull is returned when every existing atlas for a key is full and
	// the manager has already reached MaxAtlases.
	ErrFull = errors.New("atlas: manager is at capacity and all atlases are full")
	// ErrOversized is returned when the requested rectangle cannot fit in
	// any atlas of this manager's configured size, even empty.
	ErrOversized = errors.New("atlas: requested rectangle exceeds atlas size")
	// ErrTextureCreate wraps a GPU backend failure while creating a new
	// atlas's texture resources.
	ErrTextureCreate = errors.New("atlas: failed to create atlas texture")
)

// Default configuration values, matching the originating nanovg-vk
// implementation's VKNVG_DEFAULT_ATLAS_SIZE / VKNVG_MAX_ATLASES.
const (
	DefaultAtlasSize = 4096
	MinAtlasSize     = 256
	// MaxAtlases bounds the manager to SPEC_FULL.md's 16 atlases per key
	// (double the original nanovg-vk's 8, since this cache also carries
	// per-subpixel-mode and per-color-space atlas families).
	MaxAtlases = 16
	// ResizeThreshold is the utilization fraction paired with
	// Config.AllowResize. Manager.Alloc does not read it: Alloc never grows
	// a full atlas in place, it opens a sibling instead; an atlas grows only
	// through an explicit Manager.Resize call.
	ResizeThreshold = 0.85
)

// ColorSpace identifies the source or destination color interpretation of
// an atlas's pixel contents.
type ColorSpace uint8

const (
	ColorSpaceLinear ColorSpace = iota
	ColorSpaceSRGB
)

// PixelFormat identifies an atlas texture's storage format.
type PixelFormat uint8

const (
	FormatA8 PixelFormat = iota
	FormatRGBA8
)

// SubpixelMode identifies the antialiasing/subpixel rendering mode the
// atlas's contents were rasterized for.
type SubpixelMode uint8

const (
	SubpixelNone SubpixelMode = iota
	SubpixelRGB
	SubpixelBGR
)

// Key partitions atlases into independent families. Glyphs rasterized
// under different keys can never share a texture region, since their
// pixel contents are not comparable (different color space, format, or
// subpixel geometry).
type Key struct {
	SrcColorSpace ColorSpace
	DstColorSpace ColorSpace
	Format        PixelFormat
	Subpixel      SubpixelMode
}

// Rect is a pixel rectangle inside an atlas texture.
type Rect struct {
	X, Y, W, H int
}

// Config configures a Manager.
type Config struct {
	// AtlasSize is the width and height of each atlas texture.
	AtlasSize int
	// Heuristic and SplitRule configure every atlas's packer.
	Heuristic packer.Heuristic
	SplitRule packer.SplitRule
	// MaxAtlasesPerKey bounds how many sibling atlases a single Key may
	// accumulate before allocation fails.
	MaxAtlasesPerKey int
	// AllowResize records whether in-place atlas growth is enabled.
	// Manager.Alloc does not consult it: when every atlas for a key is
	// full, Alloc opens a sibling (up to MaxAtlasesPerKey) and never
	// resizes; see Manager.Resize.
	AllowResize bool
}

// DefaultConfig returns the manager configuration used by the reference
// nanovg-vk allocation policy, scaled up per SPEC_FULL.md.
func DefaultConfig() Config {
	return Config{
		AtlasSize:        DefaultAtlasSize,
		Heuristic:        packer.BestAreaFit,
		SplitRule:        packer.SplitShorterAxis,
		MaxAtlasesPerKey: MaxAtlases,
		AllowResize:      true,
	}
}

// ID identifies one atlas instance within a Manager. IDs come from a single
// counter per Manager, so they are unique across every key of that Manager
// but not across Managers.
type ID uint32

// Instance is a single GPU-backed atlas texture plus its packer.
type Instance struct {
	id ID

	packer *packer.Packer

	texture gpu.Texture
	view    gpu.TextureView
	binding gpu.BindGroup

	glyphCount      uint32
	allocationCount uint32
	active          bool
}

// ID returns the instance's identifier.
func (inst *Instance) ID() ID { return inst.id }

// Texture exposes the GPU texture handle for rendering.
func (inst *Instance) Texture() gpu.Texture { return inst.texture }

// View exposes the GPU texture view used to build sampling descriptors.
func (inst *Instance) View() gpu.TextureView { return inst.view }

// BindGroup exposes the descriptor/bind group wired to this atlas's
// texture view, for recording draw commands that sample it.
func (inst *Instance) BindGroup() gpu.BindGroup { return inst.binding }

// Utilization returns the instance's packer utilization in [0, 1].
func (inst *Instance) Utilization() float64 { return inst.packer.Utilization() }

// Fragmentation returns the instance's packer fragmentation score.
func (inst *Instance) Fragmentation() float64 { return inst.packer.Fragmentation() }

// Packer exposes the instance's packer for the defrag engine, which needs
// direct access to replan and re-seed it.
func (inst *Instance) Packer() *packer.Packer { return inst.packer }

// family groups every atlas instance sharing one Key.
type family struct {
	instances []*Instance
	current   int // index into instances, mirroring nanovg-vk's currentAtlas
}

// Manager owns every atlas instance across every Key, implementing the
// try-current, then-sibling, then-grow-or-fail allocation policy from
// original_source/src/nanovg_vk_multi_atlas.h's vknvg__atlasManagerAllocate.
//
// Manager is safe for concurrent use; all mutation is guarded by mu, since
// the background loader's upload pipeline reads atlas texture handles
// concurrently with the owner thread allocating new glyphs.
type Manager struct {
	mu sync.Mutex

	cfg     Config
	backend gpu.Backend

	families map[Key]*family
	nextID   ID

	totalAllocations  uint64
	failedAllocations uint64
}

// NewManager creates an atlas manager backed by the given GPU backend.
func NewManager(backend gpu.Backend, cfg Config) *Manager {
	if cfg.AtlasSize < MinAtlasSize {
		cfg.AtlasSize = DefaultAtlasSize
	}
	if cfg.MaxAtlasesPerKey <= 0 {
		cfg.MaxAtlasesPerKey = MaxAtlases
	}
	return &Manager{
		cfg:      cfg,
		backend:  backend,
		families: make(map[Key]*family),
	}
}

// Alloc reserves a (w, h) rectangle for key, trying the family's current
// atlas first, then its other siblings, then opening a new atlas, and
// finally failing once MaxAtlasesPerKey is reached.
func (m *Manager) Alloc(key Key, w, h int) (ID, Rect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w <= 0 || h <= 0 || w > m.cfg.AtlasSize || h > m.cfg.AtlasSize {
		m.failedAllocations++
		return 0, Rect{}, ErrOversized
	}

	fam := m.families[key]
	if fam == nil {
		fam = &family{}
		m.families[key] = fam
	}

	if inst, r, ok := m.tryCurrent(fam, w, h); ok {
		return inst, r, nil
	}
	if inst, r, ok := m.trySiblings(fam, w, h); ok {
		return inst, r, nil
	}
	if inst, r, ok := m.tryGrow(key, fam, w, h); ok {
		return inst, r, nil
	}

	m.failedAllocations++
	return 0, Rect{}, ErrFull
}

func (m *Manager) tryCurrent(fam *family, w, h int) (ID, Rect, bool) {
	if len(fam.instances) == 0 {
		return 0, Rect{}, false
	}
	inst := fam.instances[fam.current]
	return m.tryPack(inst, w, h)
}

func (m *Manager) trySiblings(fam *family, w, h int) (ID, Rect, bool) {
	for i, inst := range fam.instances {
		if i == fam.current {
			continue
		}
		if id, r, ok := m.tryPack(inst, w, h); ok {
			fam.current = i
			return id, r, true
		}
	}
	return 0, Rect{}, false
}

func (m *Manager) tryPack(inst *Instance, w, h int) (ID, Rect, bool) {
	r, err := inst.packer.Pack(w, h)
	if err != nil {
		return 0, Rect{}, false
	}
	inst.glyphCount++
	inst.allocationCount++
	m.totalAllocations++
	return inst.id, Rect{X: r.X, Y: r.Y, W: r.W, H: r.H}, true
}

func (m *Manager) tryGrow(key Key, fam *family, w, h int) (ID, Rect, bool) {
	if len(fam.instances) >= m.cfg.MaxAtlasesPerKey {
		return 0, Rect{}, false
	}

	inst, err := m.createInstance(key)
	if err != nil {
		return 0, Rect{}, false
	}

	fam.instances = append(fam.instances, inst)
	fam.current = len(fam.instances) - 1

	return m.tryPack(inst, w, h)
}

func (m *Manager) createInstance(key Key) (*Instance, error) {
	size := m.cfg.AtlasSize
	texture, err := m.backend.CreateTexture(gpu.TextureDescriptor{
		Width:  size,
		Height: size,
		Format: textureFormat(key.Format),
		Usage:  gpu.TextureUsageTextureBinding | gpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTextureCreate, err)
	}

	view, err := m.backend.CreateTextureView(texture)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTextureCreate, err)
	}

	binding, err := m.backend.CreateBindGroup(view)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTextureCreate, err)
	}

	m.nextID++
	inst := &Instance{
		id:      m.nextID,
		packer:  packer.New(size, size, m.cfg.Heuristic, m.cfg.SplitRule),
		texture: texture,
		view:    view,
		binding: binding,
		active:  true,
	}
	return inst, nil
}

// textureFormat maps an atlas pixel format to the GPU backend's format
// enum.
func textureFormat(f PixelFormat) gpu.TextureFormat {
	switch f {
	case FormatRGBA8:
		return gpu.FormatRGBA8Unorm
	default:
		return gpu.FormatR8Unorm
	}
}

// InstanceByID returns the atlas instance with the given id within key's
// family, if present.
func (m *Manager) InstanceByID(key Key, id ID) (*Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fam := m.families[key]
	if fam == nil {
		return nil, false
	}
	for _, inst := range fam.instances {
		if inst.id == id {
			return inst, true
		}
	}
	return nil, false
}

// Instances returns every atlas instance for key, in allocation order.
func (m *Manager) Instances(key Key) []*Instance {
	m.mu.Lock()
	defer m.mu.Unlock()

	fam := m.families[key]
	if fam == nil {
		return nil
	}
	out := make([]*Instance, len(fam.instances))
	copy(out, fam.instances)
	return out
}

// Free records that a rectangle previously allocated for key has been
// released. It is the glyph cache's eviction path. It only decrements the
// owning instance's glyph count: the rectangle is not returned to the
// packer's free-rectangle table, so its space is not offered to later
// Alloc calls.
//
// Free never fails: a rectangle that cannot be located (because its atlas
// was already reset) is simply a no-op, matching the glyph cache's own
// best-effort eviction bookkeeping.
func (m *Manager) Free(key Key, id ID, r Rect) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fam := m.families[key]
	if fam == nil {
		return
	}
	for _, inst := range fam.instances {
		if inst.id == id {
			// The packer has no targeted free, so the space stays
			// allocated until the packer is reset or the Manager is
			// replaced (System.ResetAtlas).
			// Tracking glyph count lets Manager estimate live occupancy
			// without a per-rectangle free list.
			if inst.glyphCount > 0 {
				inst.glyphCount--
			}
			return
		}
	}
}

// Resize replaces an atlas's backing texture, view and bind group with new
// ones of newSize x newSize, and re-seeds its packer so that the old
// top-left region stays reserved. It records no GPU copy: the new texture
// does not receive the old texture's pixels, and the old texture handle is
// dropped.
func (m *Manager) Resize(key Key, id ID, newSize int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fam := m.families[key]
	if fam == nil {
		return ErrFull
	}
	for _, inst := range fam.instances {
		if inst.id != id {
			continue
		}
		texture, err := m.backend.CreateTexture(gpu.TextureDescriptor{
			Width:  newSize,
			Height: newSize,
			Format: textureFormat(key.Format),
			Usage:  gpu.TextureUsageTextureBinding | gpu.TextureUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTextureCreate, err)
		}
		view, err := m.backend.CreateTextureView(texture)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTextureCreate, err)
		}
		binding, err := m.backend.CreateBindGroup(view)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTextureCreate, err)
		}

		oldSize := inst.packer.Width()
		inst.packer.ResetPreserving(newSize, newSize, oldSize, oldSize)
		inst.texture = texture
		inst.view = view
		inst.binding = binding
		return nil
	}
	return ErrFull
}

// Stats returns cumulative manager-wide allocation counters.
func (m *Manager) Stats() (totalAllocations, failedAllocations uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalAllocations, m.failedAllocations
}

// Efficiency returns the aggregate utilization across every atlas for key,
// mirroring vknvg__getMultiAtlasEfficiency.
func (m *Manager) Efficiency(key Key) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	fam := m.families[key]
	if fam == nil || len(fam.instances) == 0 {
		return 0
	}

	var allocated, total int
	for _, inst := range fam.instances {
		area, totalArea, _, _ := inst.packer.Stats()
		allocated += area
		total += totalArea
	}
	if total == 0 {
		return 0
	}
	return float64(allocated) / float64(total)
}
