// Package rasterize implements the GPU rasterizer (component C8): outline
// extraction into a fixed-size curve/contour buffer, quadratic-to-cubic
// Bezier conversion, signed-area winding classification, and a job queue
// that batches per-glyph compute dispatches into one command buffer flush.
//
// Grounded in original_source/src/font/nvg_font_gpu_raster.c
// (nvgFont_ExtractOutline, the gpu_moveTo/gpu_lineTo/gpu_conicTo/gpu_cubicTo
// FT_Outline_Decompose callbacks, nvgFont_RasterizeGlyphGPU's job queue, and
// nvgFont_FlushGpuRasterJobs's single bind-once/dispatch-per-job/barrier-
// between-jobs command recording) and nvg_font_gpu_types.h's
// NVG_GPU_MAX_CURVES / NVG_GPU_MAX_CONTOURS limits. The outline walk itself
// runs over fontengine.OutlineSink so any fontengine.Engine (in turn
// grounded on golang.org/x/image/font/sfnt) can feed it.
package rasterize

import (
	"errors"
	"math"

	"github.com/gogpu/glyphatlas/fontengine"
	"github.com/gogpu/glyphatlas/gpu"
)

// Hard buffer limits, matching NVG_GPU_MAX_CURVES / NVG_GPU_MAX_CONTOURS.
const (
	MaxCurves   = 256
	MaxContours = 32
)

// MaxQueuedJobs matches MAX_GPU_RASTER_JOBS: the rasterizer batches up to
// this many glyphs before a flush is required.
const MaxQueuedJobs = 256

// ErrTooComplex is returned when a glyph's outline exceeds MaxCurves or
// MaxContours; the caller should fall back to CPU rasterization.
var ErrTooComplex = errors.New("rasterize: outline exceeds GPU buffer limits")

// ErrQueueFull is returned by Enqueue once MaxQueuedJobs jobs are pending a
// Flush.
var ErrQueueFull = errors.New("rasterize: job queue is full")

// CurveType distinguishes a degenerate linear segment (used for the
// implicit contour-closing edge) from a true cubic Bezier.
type CurveType uint8

const (
	CurveLinear CurveType = iota
	CurveCubic
)

// Curve is one cubic Bezier segment (or, for CurveLinear, a line
// represented as a degenerate cubic with p1==p0 and p2==p3) belonging to
// one contour.
type Curve struct {
	Type      CurveType
	ContourID int
	P0, P1, P2, P3 [2]float32
}

// Contour is one closed outline loop: a run of curves plus its winding
// direction, computed from the signed area of its endpoints.
type Contour struct {
	FirstCurve int
	CurveCount int
	Winding    int // +1 outer (CCW), -1 hole (CW)
}

// GlyphOutline is a glyph's outline converted to the GPU rasterizer's
// fixed-size curve/contour representation, scaled to pixel-space ready for
// the compute shader.
type GlyphOutline struct {
	Curves   []Curve
	Contours []Contour
	BBox     [4]float32 // xMin, yMin, xMax, yMax
	Scale    float32
}

// outlineBuilder implements fontengine.OutlineSink, accumulating curves
// and contours the way OutlineDecomposeContext does in the C source.
type outlineBuilder struct {
	out          GlyphOutline
	haveCurrent  bool
	current      fontengine.Point
	first        fontengine.Point
	currentIdx   int // index into out.Contours of the open contour, -1 if none
	overflowed   bool
}

func newOutlineBuilder() *outlineBuilder {
	return &outlineBuilder{currentIdx: -1}
}

func (b *outlineBuilder) closeCurrentContour() {
	if b.currentIdx < 0 {
		return
	}
	dx := b.first.X - b.current.X
	dy := b.first.Y - b.current.Y
	if dx*dx+dy*dy > 0.01*0.01 {
		if len(b.out.Curves) >= MaxCurves {
			b.overflowed = true
			return
		}
		p0 := [2]float32{b.current.X, b.current.Y}
		p3 := [2]float32{b.first.X, b.first.Y}
		b.out.Curves = append(b.out.Curves, Curve{
			Type:      CurveLinear,
			ContourID: b.currentIdx,
			P0:        p0,
			P1:        p0,
			P2:        p3,
			P3:        p3,
		})
	}
	c := &b.out.Contours[b.currentIdx]
	c.CurveCount = len(b.out.Curves) - c.FirstCurve
}

func (b *outlineBuilder) MoveTo(p fontengine.Point) {
	if b.haveCurrent {
		b.closeCurrentContour()
	}
	if len(b.out.Contours) >= MaxContours {
		b.overflowed = true
		return
	}
	b.out.Contours = append(b.out.Contours, Contour{FirstCurve: len(b.out.Curves)})
	b.currentIdx = len(b.out.Contours) - 1
	b.current = p
	b.first = p
	b.haveCurrent = true
}

func (b *outlineBuilder) LineTo(p fontengine.Point) {
	if len(b.out.Curves) >= MaxCurves {
		b.overflowed = true
		return
	}
	p0 := [2]float32{b.current.X, b.current.Y}
	p3 := [2]float32{p.X, p.Y}
	b.out.Curves = append(b.out.Curves, Curve{
		Type:      CurveLinear,
		ContourID: b.currentIdx,
		P0:        p0,
		P1:        p0,
		P2:        p3,
		P3:        p3,
	})
	b.current = p
}

// QuadTo converts the quadratic Bezier (current, ctrl, p) to the
// equivalent cubic: p1 = p0 + 2/3*(ctrl-p0), p2 = p3 + 2/3*(ctrl-p3).
func (b *outlineBuilder) QuadTo(ctrl, p fontengine.Point) {
	if len(b.out.Curves) >= MaxCurves {
		b.overflowed = true
		return
	}
	p0x, p0y := b.current.X, b.current.Y
	cx, cy := ctrl.X, ctrl.Y
	p3x, p3y := p.X, p.Y

	b.out.Curves = append(b.out.Curves, Curve{
		Type:      CurveCubic,
		ContourID: b.currentIdx,
		P0:        [2]float32{p0x, p0y},
		P1:        [2]float32{p0x + (2.0/3.0)*(cx-p0x), p0y + (2.0/3.0)*(cy-p0y)},
		P2:        [2]float32{p3x + (2.0/3.0)*(cx-p3x), p3y + (2.0/3.0)*(cy-p3y)},
		P3:        [2]float32{p3x, p3y},
	})
	b.current = p
}

func (b *outlineBuilder) CubicTo(c1, c2, p fontengine.Point) {
	if len(b.out.Curves) >= MaxCurves {
		b.overflowed = true
		return
	}
	b.out.Curves = append(b.out.Curves, Curve{
		Type:      CurveCubic,
		ContourID: b.currentIdx,
		P0:        [2]float32{b.current.X, b.current.Y},
		P1:        [2]float32{c1.X, c1.Y},
		P2:        [2]float32{c2.X, c2.Y},
		P3:        [2]float32{p.X, p.Y},
	})
	b.current = p
}

// ExtractOutline decomposes a glyph's outline (via decompose, which should
// call sink methods on an fontengine.OutlineSink the way
// golang.org/x/image/font/sfnt's Buffer.LoadGlyph segments are walked) into
// the GPU rasterizer's fixed-size representation, scaled so the outline's
// bounding box width maps to outputWidth pixels. Returns ErrTooComplex if
// the outline needs more curves or contours than the GPU buffers hold.
func ExtractOutline(bbox [4]float32, outputWidth, outputHeight int, decompose func(fontengine.OutlineSink) error) (GlyphOutline, error) {
	b := newOutlineBuilder()
	b.out.BBox = bbox

	if err := decompose(b); err != nil {
		return GlyphOutline{}, err
	}
	if b.haveCurrent {
		b.closeCurrentContour()
	}
	if b.overflowed {
		return GlyphOutline{}, ErrTooComplex
	}

	glyphWidth := bbox[2] - bbox[0]
	if glyphWidth > 0 {
		b.out.Scale = float32(outputWidth) / glyphWidth
	} else {
		b.out.Scale = 1
	}

	// Signed-area (shoelace) winding per contour, using curve endpoints as
	// the polygon vertices: an exact measure for straight edges and a
	// close approximation for curved ones, matching the original's
	// comment that this "works for both linear and curves as
	// approximation".
	for i := range b.out.Contours {
		c := &b.out.Contours[i]
		var area float32
		for j := 0; j < c.CurveCount; j++ {
			curve := b.out.Curves[c.FirstCurve+j]
			area += curve.P0[0]*curve.P3[1] - curve.P3[0]*curve.P0[1]
		}
		if area > 0 {
			c.Winding = 1
		} else {
			c.Winding = -1
		}
	}

	return b.out, nil
}

// Mode selects whether glyphs are rasterized on the CPU, forced onto the
// GPU compute path, or routed automatically.
type Mode uint8

const (
	ModeCPUOnly Mode = iota
	ModeGPUForced
	ModeAuto
)

// ShouldUseGPU decides whether a glyph should be queued for GPU
// rasterization, mirroring nvgFont_ShouldUseGPU: CPU mode never uses the
// GPU; GPU and Auto mode both accept any glyph within the buffer limits
// that has positive output dimensions.
func ShouldUseGPU(mode Mode, contourCount, curveCount, width, height int) bool {
	if mode == ModeCPUOnly {
		return false
	}
	if contourCount > MaxContours || curveCount > MaxCurves {
		return false
	}
	return width > 0 && height > 0
}

// Job is one queued per-glyph rasterization dispatch, awaiting Flush.
type Job struct {
	Outline         GlyphOutline
	Width, Height   int
	AtlasX, AtlasY  int
	AtlasTexture    gpu.Texture
}

// PushConstants is the per-dispatch data passed to the compute shader,
// mirroring NVGGpuRasterPushConstants.
type PushConstants struct {
	CurveCount   uint32
	ContourCount uint32
	PxRange      float32
	UseWinding   uint32
}

// DefaultPxRange matches NVGGpuRasterParams.pxRange's default.
const DefaultPxRange = 1.5

// Rasterizer batches glyph outlines into compute-dispatch jobs and flushes
// them as one command buffer: one pipeline bind, one descriptor bind, one
// dispatch per job, with a pipeline barrier between dispatches so each
// glyph's atlas writes complete before the next one starts.
type Rasterizer struct {
	backend  gpu.Backend
	pipeline gpu.ComputePipeline
	bindings gpu.BindGroup

	mode    Mode
	pxRange float32

	jobs []Job
}

// New creates a Rasterizer bound to a compute pipeline and its resource
// bindings (typically one bind group per atlas, created once and reused
// across flushes). Mode defaults to ModeGPUForced, matching the original's
// raster->mode = NVG_RASTER_GPU default.
func New(backend gpu.Backend, pipeline gpu.ComputePipeline, bindings gpu.BindGroup) *Rasterizer {
	return &Rasterizer{
		backend:  backend,
		pipeline: pipeline,
		bindings: bindings,
		mode:     ModeGPUForced,
		pxRange:  DefaultPxRange,
	}
}

// SetMode changes the CPU/GPU/Auto rasterization mode.
func (r *Rasterizer) SetMode(m Mode) { r.mode = m }

// Mode returns the current rasterization mode.
func (r *Rasterizer) Mode() Mode { return r.mode }

// Enqueue adds a glyph rasterization job to the pending batch. It returns
// ErrQueueFull once MaxQueuedJobs jobs are pending.
func (r *Rasterizer) Enqueue(job Job) error {
	if len(r.jobs) >= MaxQueuedJobs {
		return ErrQueueFull
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// PendingJobs returns the number of jobs queued since the last Flush.
func (r *Rasterizer) PendingJobs() int { return len(r.jobs) }

// Flush records one dispatch per queued job onto enc — binding the compute
// pipeline and descriptor set once, then looping jobs with an 8x8
// shader-local-size workgroup grid and a per-job push-constant block — and
// clears the queue. It returns the number of jobs flushed.
func (r *Rasterizer) Flush(enc gpu.CommandEncoder) int {
	n := len(r.jobs)
	if n == 0 {
		return 0
	}

	for _, job := range r.jobs {
		groupsX := ceilDiv(job.Width, 8)
		groupsY := ceilDiv(job.Height, 8)

		pc := PushConstants{
			CurveCount:   uint32(len(job.Outline.Curves)),
			ContourCount: uint32(len(job.Outline.Contours)),
			PxRange:      r.pxRange,
			UseWinding:   1,
		}

		enc.DispatchCompute(gpu.ComputeDispatch{
			Pipeline:      r.pipeline,
			BindGroup:     r.bindings,
			PushConstants: encodePushConstants(pc),
			WorkgroupsX:   groupsX,
			WorkgroupsY:   groupsY,
			WorkgroupsZ:   1,
		})
	}

	r.jobs = r.jobs[:0]
	return n
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func encodePushConstants(pc PushConstants) []byte {
	buf := make([]byte, 16)
	putU32(buf[0:4], pc.CurveCount)
	putU32(buf[4:8], pc.ContourCount)
	putU32(buf[8:12], math.Float32bits(pc.PxRange))
	putU32(buf[12:16], pc.UseWinding)
	return buf
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
