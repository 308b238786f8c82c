// Package packer implements guillotine rectangle bin-packing for atlas
// allocation. It maintains a list of free rectangles within a fixed (W, H)
// region and places new rectangles using a configurable heuristic, cutting
// the remainder with a guillotine split.
package packer

import "errors"

// ErrFull is returned when a rectangle cannot be placed in the region,
// either because no free rectangle is large enough or because the request
// itself exceeds the region's dimensions.
var ErrFull = errors.New("packer: region is full")

// MaxFreeRects bounds the free-rectangle list. Once reached, a guillotine
// split drops its smaller half rather than growing the list further.
const MaxFreeRects = 1024

// Heuristic selects how a free rectangle is scored for a given request.
type Heuristic int

const (
	// BestShortSideFit minimizes the shorter leftover side.
	BestShortSideFit Heuristic = iota
	// BestLongSideFit minimizes the longer leftover side.
	BestLongSideFit
	// BestAreaFit minimizes leftover area.
	BestAreaFit
	// BottomLeft prefers rectangles closest to the bottom-left corner.
	BottomLeft
)

// SplitRule selects the guillotine cut axis after a placement.
type SplitRule int

const (
	// SplitShorterAxis cuts along the axis with less leftover space.
	SplitShorterAxis SplitRule = iota
	// SplitLongerAxis cuts along the axis with more leftover space.
	SplitLongerAxis
	// SplitMinimizeArea minimizes the area of the smaller resulting rect.
	SplitMinimizeArea
	// SplitMaximizeArea maximizes the area of the larger resulting rect.
	SplitMaximizeArea
)

// Rect is an axis-aligned rectangle within a packed region.
type Rect struct {
	X, Y, W, H int
}

// area returns the rectangle's area.
func (r Rect) area() int { return r.W * r.H }

// Packer packs rectangles into a fixed-size region via guillotine splits.
//
// Packer is not safe for concurrent use; callers (atlas.Instance) are
// responsible for serializing access.
type Packer struct {
	width, height int

	freeRects []Rect

	heuristic Heuristic
	splitRule SplitRule

	allocatedArea      int
	allocationCount    int
	failedAllocations  int
}

// New creates a packer over a (width, height) region using the given
// heuristic and split rule.
func New(width, height int, heuristic Heuristic, splitRule SplitRule) *Packer {
	p := &Packer{
		width:     width,
		height:    height,
		heuristic: heuristic,
		splitRule: splitRule,
	}
	p.reset()
	return p
}

// Width returns the region width.
func (p *Packer) Width() int { return p.width }

// Height returns the region height.
func (p *Packer) Height() int { return p.height }

// Pack allocates space for a (w, h) rectangle, returning its placement.
// Returns ErrFull if the region cannot accommodate the request, including
// when w or h is zero or negative, or exceeds the region's dimensions.
func (p *Packer) Pack(w, h int) (Rect, error) {
	if w <= 0 || h <= 0 {
		p.failedAllocations++
		return Rect{}, ErrFull
	}
	if w > p.width || h > p.height {
		p.failedAllocations++
		return Rect{}, ErrFull
	}

	idx := p.findBestRect(w, h)
	if idx < 0 {
		p.failedAllocations++
		return Rect{}, ErrFull
	}

	free := p.freeRects[idx]
	placed := Rect{X: free.X, Y: free.Y, W: w, H: h}

	p.splitFreeRect(idx, placed)

	p.allocatedArea += w * h
	p.allocationCount++

	return placed, nil
}

// scoreRect scores a free rectangle against a requested size under the
// packer's heuristic. Returns (score, fits).
func scoreRect(free Rect, w, h int, heuristic Heuristic) (int, bool) {
	leftoverHoriz := free.W - w
	leftoverVert := free.H - h
	if leftoverHoriz < 0 || leftoverVert < 0 {
		return 0, false
	}

	switch heuristic {
	case BestShortSideFit:
		if leftoverHoriz < leftoverVert {
			return leftoverHoriz, true
		}
		return leftoverVert, true
	case BestLongSideFit:
		if leftoverHoriz > leftoverVert {
			return leftoverHoriz, true
		}
		return leftoverVert, true
	case BestAreaFit:
		return leftoverHoriz * leftoverVert, true
	case BottomLeft:
		return free.Y*10000 + free.X, true
	default:
		return 0, false
	}
}

// findBestRect returns the index of the best-scoring free rectangle, or -1
// if none fits. Exits early on a perfect fit or a near-perfect fit (waste
// under 5%).
func (p *Packer) findBestRect(w, h int) int {
	bestScore := -1
	bestIdx := -1
	found := false

	for i, free := range p.freeRects {
		if free.W == w && free.H == h {
			return i
		}

		score, fits := scoreRect(free, w, h, p.heuristic)
		if !fits {
			continue
		}
		if !found || score < bestScore {
			bestScore = score
			bestIdx = i
			found = true

			rectArea := free.area()
			usedArea := w * h
			wastedArea := rectArea - usedArea
			if rectArea > 0 && wastedArea*20 < rectArea {
				break
			}
		}
	}

	return bestIdx
}

// splitFreeRect removes the free rectangle at idx and, guided by the split
// rule, inserts up to two new free rectangles covering the leftover space
// around placed.
func (p *Packer) splitFreeRect(idx int, placed Rect) {
	free := p.freeRects[idx]

	// Remove free[idx] via swap-with-last.
	last := len(p.freeRects) - 1
	p.freeRects[idx] = p.freeRects[last]
	p.freeRects = p.freeRects[:last]

	leftoverHoriz := free.W - placed.W
	leftoverVert := free.H - placed.H

	splitHorizontal := p.chooseSplitAxis(leftoverHoriz, leftoverVert)

	var bottom, right Rect
	if splitHorizontal {
		bottom = Rect{X: free.X, Y: free.Y + placed.H, W: free.W, H: leftoverVert}
		right = Rect{X: free.X + placed.W, Y: free.Y, W: leftoverHoriz, H: placed.H}
	} else {
		right = Rect{X: free.X + placed.W, Y: free.Y, W: leftoverHoriz, H: free.H}
		bottom = Rect{X: free.X, Y: free.Y + placed.H, W: placed.W, H: leftoverVert}
	}

	p.addFreeRect(bottom)
	p.addFreeRect(right)
}

// chooseSplitAxis returns true to cut horizontally (the bottom piece spans
// the full free-rect width) or false to cut vertically.
func (p *Packer) chooseSplitAxis(leftoverHoriz, leftoverVert int) bool {
	switch p.splitRule {
	case SplitLongerAxis:
		return leftoverHoriz > leftoverVert
	case SplitShorterAxis, SplitMinimizeArea, SplitMaximizeArea:
		// The spec treats minimize/maximize-area as aliases of the
		// shorter-axis rule for this packer (original_source keeps it
		// simple here too).
		return leftoverHoriz < leftoverVert
	default:
		return leftoverHoriz < leftoverVert
	}
}

// addFreeRect appends a non-degenerate free rectangle, dropping it if the
// free-rect table is already at capacity (the smaller split is discarded
// on overflow, as later-added rects are more likely to be the smaller
// piece under both split rules above).
func (p *Packer) addFreeRect(r Rect) {
	if r.W <= 0 || r.H <= 0 {
		return
	}
	if len(p.freeRects) >= MaxFreeRects {
		return
	}
	p.freeRects = append(p.freeRects, r)
}

// FreeRectCount returns the number of free rectangles currently tracked.
func (p *Packer) FreeRectCount() int { return len(p.freeRects) }

// Utilization returns the fraction of the region's area currently
// allocated, in [0, 1].
func (p *Packer) Utilization() float64 {
	total := p.width * p.height
	if total == 0 {
		return 0
	}
	return float64(p.allocatedArea) / float64(total)
}

// Fragmentation returns a score in [0, 1] that rises with the number of
// free rectangles and falls as utilization increases, returning exactly 0
// once utilization exceeds 90% (defragmenting a nearly-full atlas buys
// nothing).
func (p *Packer) Fragmentation() float64 {
	util := p.Utilization()
	if util > 0.9 {
		return 0
	}

	freeCount := len(p.freeRects)
	scatter := float64(freeCount-1) / 64
	scatter = clamp01(scatter)

	return scatter * (1 - util)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Stats returns the packer's allocation counters.
func (p *Packer) Stats() (allocatedArea, totalArea, allocationCount, failedAllocations int) {
	return p.allocatedArea, p.width * p.height, p.allocationCount, p.failedAllocations
}

// Reset discards all allocations, restoring a single free rectangle
// covering the whole region and zeroing all counters. Used on atlas clear
// and atlas resize.
func (p *Packer) Reset() {
	p.reset()
}

func (p *Packer) reset() {
	if cap(p.freeRects) == 0 {
		p.freeRects = make([]Rect, 0, 64)
	} else {
		p.freeRects = p.freeRects[:0]
	}
	p.freeRects = append(p.freeRects, Rect{X: 0, Y: 0, W: p.width, H: p.height})
	p.allocatedArea = 0
	p.allocationCount = 0
	p.failedAllocations = 0
}

// ResetPreserving re-initializes the packer over a new (possibly larger)
// region, treating a preservedWidth x preservedHeight rectangle at the
// origin as already filled (used by atlas resize, where the old contents
// are copied into the top-left corner of a larger texture). Allocation
// counters (allocationCount, failedAllocations) carry over from before the
// call; allocatedArea is seeded to the preserved area.
func (p *Packer) ResetPreserving(width, height, preservedWidth, preservedHeight int) {
	allocCount := p.allocationCount
	failedCount := p.failedAllocations

	p.width = width
	p.height = height
	p.freeRects = p.freeRects[:0]

	p.addPreservedFreeRects(preservedWidth, preservedHeight)

	p.allocatedArea = preservedWidth * preservedHeight
	p.allocationCount = allocCount
	p.failedAllocations = failedCount
}

// addPreservedFreeRects adds the free space remaining around a preserved
// top-left block within the (possibly new) region dimensions.
func (p *Packer) addPreservedFreeRects(preservedWidth, preservedHeight int) {
	if preservedWidth <= 0 || preservedHeight <= 0 {
		p.addFreeRect(Rect{X: 0, Y: 0, W: p.width, H: p.height})
		return
	}

	// Right strip: full height, to the right of the preserved block.
	if p.width > preservedWidth {
		p.addFreeRect(Rect{X: preservedWidth, Y: 0, W: p.width - preservedWidth, H: p.height})
	}
	// Bottom strip: only under the preserved block's width.
	if p.height > preservedHeight {
		p.addFreeRect(Rect{X: 0, Y: preservedHeight, W: preservedWidth, H: p.height - preservedHeight})
	}
}
