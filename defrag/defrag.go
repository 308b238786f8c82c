// Package defrag implements idle-frame atlas defragmentation (component
// C4): a per-atlas state machine that detects fragmentation, plans a
// bounded list of glyph moves, and executes them across one or more
// frames under a time budget.
//
// Grounded in original_source/src/nanovg_vk_atlas_defrag.h, translating
// its VKNVGdefragContext state machine (Idle/Analyzing/Planning/
// Executing/Complete) into Go, and
// _examples/gogpu-gg/internal/gpu/compute_pass.go /
// backend/wgpu/pipeline.go for the compute-dispatch recording shape.
package defrag

import (
	"time"

	"github.com/gogpu/glyphatlas/atlas"
	"github.com/gogpu/glyphatlas/gpu"
	"github.com/gogpu/glyphatlas/packer"
)

// Tuning constants, matching VKNVG_DEFRAG_TIME_BUDGET_MS /
// VKNVG_DEFRAG_THRESHOLD / VKNVG_MIN_FREE_RECTS_FOR_DEFRAG /
// the 256-entry move array.
const (
	DefaultTimeBudget       = 2 * time.Millisecond
	FragmentationThreshold  = 0.3
	MinFreeRectsForDefrag   = 50
	MaxUtilizationForDefrag = 0.9
	MaxMoves                = 256
)

// State is a defrag pass's current stage.
type State int

const (
	StateIdle State = iota
	StateAnalyzing
	StatePlanning
	StateExecuting
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAnalyzing:
		return "Analyzing"
	case StatePlanning:
		return "Planning"
	case StateExecuting:
		return "Executing"
	case StateComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Move is a single glyph relocation within an atlas.
type Move struct {
	SrcX, SrcY int
	DstX, DstY int
	Width      int
	Height     int
	GlyphID    uint64
}

// LiveGlyph describes one glyph currently occupying space in the atlas
// being defragmented, as reported by the caller's glyph cache.
type LiveGlyph struct {
	GlyphID    uint64
	X, Y       int
	Width      int
	Height     int
}

// UpdateCallback is invoked once a batch of moves has been recorded, so
// the caller (the glyph cache) can update each glyph's Entry.Rect/UV to
// the new location.
type UpdateCallback func(moves []Move)

// ShouldDefragment reports whether an atlas instance's current
// fragmentation warrants a defrag pass, mirroring
// vknvg__shouldDefragmentAtlas: more than MinFreeRectsForDefrag free
// rectangles, fragmentation above FragmentationThreshold, and utilization
// still below MaxUtilizationForDefrag (defragmenting a nearly-full atlas
// buys nothing and risks starving live allocations of packer headroom).
func ShouldDefragment(freeRectCount int, fragmentation, utilization float64) bool {
	return freeRectCount > MinFreeRectsForDefrag &&
		fragmentation > FragmentationThreshold &&
		utilization < MaxUtilizationForDefrag
}

// Context drives one atlas instance's defragmentation across frames.
//
// Context is not safe for concurrent use; it is owned by the same
// goroutine that drives the frame loop and calls Update once per frame.
type Context struct {
	state   State
	atlasID atlas.ID

	moves       []Move
	currentMove int

	timeBudget time.Duration

	totalMoves  uint64
	bytesMoved  uint64

	useCompute bool
	pipeline   gpu.ComputePipeline

	glyphs   []LiveGlyph
	onUpdate UpdateCallback

	now func() time.Time
}

// New creates a defrag context for the given atlas, with the default time
// budget and time.Now as its clock.
func New(atlasID atlas.ID, onUpdate UpdateCallback) *Context {
	return &Context{
		atlasID:    atlasID,
		timeBudget: DefaultTimeBudget,
		onUpdate:   onUpdate,
		now:        time.Now,
	}
}

// State returns the context's current stage.
func (c *Context) State() State { return c.state }

// EnableCompute switches move execution to a compute pipeline instead of
// the image-copy fallback, mirroring vknvg__enableComputeDefrag.
func (c *Context) EnableCompute(pipeline gpu.ComputePipeline) {
	c.useCompute = true
	c.pipeline = pipeline
}

// DisableCompute reverts to the vkCmdCopyImage-equivalent fallback path.
func (c *Context) DisableCompute() {
	c.useCompute = false
	c.pipeline = nil
}

// Start transitions an Idle context into Analyzing, capturing the current
// live-glyph set to plan moves against.
func (c *Context) Start(glyphs []LiveGlyph) {
	c.state = StateAnalyzing
	c.glyphs = glyphs
	c.moves = nil
	c.currentMove = 0
}

// Plan computes a move list that repacks every live glyph into a fresh
// packer using the same dimensions and policy as the original, truncating
// at MaxMoves if the atlas holds more glyphs than that (see DESIGN.md —
// no example repo in the pack models an unbounded work queue for this
// kind of compaction pass, so the cap is a hard ceiling with no resume
// across passes; a second Start/Plan cycle simply continues making
// progress on whatever the cache's LRU order surfaces next).
func (c *Context) Plan(width, height int, heuristic packer.Heuristic, splitRule packer.SplitRule) int {
	c.state = StatePlanning

	newPacker := packer.New(width, height, heuristic, splitRule)

	moves := make([]Move, 0, len(c.glyphs))
	for _, g := range c.glyphs {
		if len(moves) >= MaxMoves {
			break
		}
		r, err := newPacker.Pack(g.Width, g.Height)
		if err != nil {
			continue
		}
		if r.X == g.X && r.Y == g.Y {
			continue // already in its optimal position, nothing to move
		}
		moves = append(moves, Move{
			SrcX: g.X, SrcY: g.Y,
			DstX: r.X, DstY: r.Y,
			Width: g.Width, Height: g.Height,
			GlyphID: g.GlyphID,
		})
	}

	c.moves = moves
	c.currentMove = 0
	return len(moves)
}

// Execute runs moves under the context's time budget, recording either a
// compute dispatch or an image-to-image copy per move onto enc. It returns
// true once every planned move has been executed (StateComplete), or false
// if the time budget ran out first (still StateExecuting, resumable by
// calling Execute again on a later frame).
func (c *Context) Execute(enc gpu.CommandEncoder, texture gpu.Texture) bool {
	c.state = StateExecuting
	start := c.now()

	batch := make([]Move, 0, len(c.moves)-c.currentMove)

	for c.currentMove < len(c.moves) {
		if c.now().Sub(start) >= c.timeBudget {
			break
		}

		m := c.moves[c.currentMove]
		c.executeSingleMove(enc, texture, m)
		batch = append(batch, m)

		c.totalMoves++
		c.bytesMoved += uint64(m.Width * m.Height)
		c.currentMove++
	}

	if len(batch) > 0 && c.onUpdate != nil {
		c.onUpdate(batch)
	}

	if c.currentMove >= len(c.moves) {
		c.state = StateComplete
		return true
	}
	return false
}

// executeSingleMove records one glyph relocation, mirroring
// vknvg__executeSingleMove's branch between a compute-shader write and a
// plain image copy.
func (c *Context) executeSingleMove(enc gpu.CommandEncoder, texture gpu.Texture, m Move) {
	if c.useCompute && c.pipeline != nil {
		enc.DispatchCompute(gpu.ComputeDispatch{
			Pipeline:      c.pipeline,
			PushConstants: encodeMovePushConstants(m),
			WorkgroupsX:   ceilDiv(m.Width, 8),
			WorkgroupsY:   ceilDiv(m.Height, 8),
			WorkgroupsZ:   1,
		})
		return
	}
	enc.CopyTextureToTexture(texture, texture, m.SrcX, m.SrcY, m.DstX, m.DstY, m.Width, m.Height)
}

// encodeMovePushConstants packs a move's coordinates into a push-constant
// buffer for the defrag compute shader: six little-endian uint32 values
// (src x, src y, dst x, dst y, width, height), 24 bytes in all.
func encodeMovePushConstants(m Move) []byte {
	buf := make([]byte, 24)
	putU32 := func(off int, v int) {
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
		buf[off+2] = byte(v >> 16)
		buf[off+3] = byte(v >> 24)
	}
	putU32(0, m.SrcX)
	putU32(4, m.SrcY)
	putU32(8, m.DstX)
	putU32(12, m.DstY)
	putU32(16, m.Width)
	putU32(20, m.Height)
	return buf
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Reset returns the context to Idle, discarding any pending moves.
func (c *Context) Reset() {
	c.state = StateIdle
	c.moves = nil
	c.currentMove = 0
	c.glyphs = nil
}

// Stats returns cumulative move statistics.
func (c *Context) Stats() (totalMoves, bytesMoved uint64) {
	return c.totalMoves, c.bytesMoved
}

// PendingMoves returns how many moves remain in the current plan.
func (c *Context) PendingMoves() int {
	if c.moves == nil {
		return 0
	}
	return len(c.moves) - c.currentMove
}
