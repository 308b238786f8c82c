package packer

import "testing"

// overlaps reports whether two rectangles share any pixel area.
func overlaps(a, b Rect) bool {
	if a.X+a.W <= b.X || b.X+b.W <= a.X {
		return false
	}
	if a.Y+a.H <= b.Y || b.Y+b.H <= a.Y {
		return false
	}
	return true
}

// TestPackNonOverlap is property 1: for any sequence of pack calls on a
// fresh packer, no two returned rectangles overlap.
func TestPackNonOverlap(t *testing.T) {
	p := New(512, 512, BestAreaFit, SplitShorterAxis)

	sizes := [][2]int{
		{100, 200}, {200, 100}, {50, 50}, {30, 40}, {10, 10},
		{64, 64}, {128, 32}, {32, 128}, {16, 16}, {8, 200},
	}

	var placed []Rect
	for _, s := range sizes {
		r, err := p.Pack(s[0], s[1])
		if err != nil {
			continue
		}
		for _, other := range placed {
			if overlaps(r, other) {
				t.Fatalf("rect %+v overlaps previously placed rect %+v", r, other)
			}
		}
		placed = append(placed, r)
	}
}

// TestPackCapacity is property 2: a 256x256 packer filled with 20x20
// allocations achieves at least 140 placements (>= 85% utilization).
func TestPackCapacity(t *testing.T) {
	p := New(256, 256, BestAreaFit, SplitShorterAxis)

	count := 0
	for {
		if _, err := p.Pack(20, 20); err != nil {
			break
		}
		count++
		if count > 1000 {
			t.Fatal("packer never reported full")
		}
	}

	if count < 140 {
		t.Fatalf("expected >= 140 placements, got %d (utilization %.3f)", count, p.Utilization())
	}
}

// TestFragmentationGate is property 3: when utilization exceeds 90%,
// Fragmentation() returns 0 regardless of free-rect count.
func TestFragmentationGate(t *testing.T) {
	p := New(100, 100, BestAreaFit, SplitShorterAxis)

	for {
		if _, err := p.Pack(2, 2); err != nil {
			break
		}
		if p.Utilization() > 0.9 {
			break
		}
	}

	if p.Utilization() <= 0.9 {
		t.Skipf("could not reach 90%% utilization in this configuration (got %.3f)", p.Utilization())
	}
	if f := p.Fragmentation(); f != 0 {
		t.Fatalf("expected fragmentation 0 above 90%% utilization, got %v", f)
	}
}

// TestPackZeroDimension covers the zero-dimension edge case: requests
// return Full without modifying packer state.
func TestPackZeroDimension(t *testing.T) {
	p := New(100, 100, BestAreaFit, SplitShorterAxis)
	before := p.FreeRectCount()

	if _, err := p.Pack(0, 10); err == nil {
		t.Fatal("expected error for zero-width request")
	}
	if _, err := p.Pack(10, 0); err == nil {
		t.Fatal("expected error for zero-height request")
	}
	if p.FreeRectCount() != before {
		t.Fatalf("zero-dimension request modified free rect state: %d -> %d", before, p.FreeRectCount())
	}
}

// TestPackOversized covers requests larger than the region: they fail
// without modifying packer state.
func TestPackOversized(t *testing.T) {
	p := New(100, 100, BestAreaFit, SplitShorterAxis)
	before := p.FreeRectCount()

	if _, err := p.Pack(200, 10); err == nil {
		t.Fatal("expected error for oversized width")
	}
	if p.FreeRectCount() != before {
		t.Fatalf("oversized request modified free rect state: %d -> %d", before, p.FreeRectCount())
	}
}

// TestBestFitScenario is S3: into a 512x512 packer, pack (100,200),
// (200,100), (50,50) under best-area-fit + shorter-axis split.
func TestBestFitScenario(t *testing.T) {
	p := New(512, 512, BestAreaFit, SplitShorterAxis)

	r1, err := p.Pack(100, 200)
	if err != nil {
		t.Fatalf("pack 1: %v", err)
	}
	r2, err := p.Pack(200, 100)
	if err != nil {
		t.Fatalf("pack 2: %v", err)
	}
	r3, err := p.Pack(50, 50)
	if err != nil {
		t.Fatalf("pack 3: %v", err)
	}

	if overlaps(r1, r2) || overlaps(r1, r3) || overlaps(r2, r3) {
		t.Fatalf("placements overlap: %+v %+v %+v", r1, r2, r3)
	}

	if p.FreeRectCount() > 5 {
		t.Fatalf("expected <= 5 free rects after packing, got %d", p.FreeRectCount())
	}
}

func TestReset(t *testing.T) {
	p := New(128, 128, BestAreaFit, SplitShorterAxis)
	_, _ = p.Pack(64, 64)
	_, _ = p.Pack(32, 32)

	p.Reset()

	if p.FreeRectCount() != 1 {
		t.Fatalf("expected 1 free rect after reset, got %d", p.FreeRectCount())
	}
	allocated, _, allocCount, failed := p.Stats()
	if allocated != 0 || allocCount != 0 || failed != 0 {
		t.Fatalf("expected zeroed counters after reset, got area=%d count=%d failed=%d", allocated, allocCount, failed)
	}
	if p.Utilization() != 0 {
		t.Fatalf("expected 0 utilization after reset, got %v", p.Utilization())
	}
}

func TestResetPreservingKeepsTopLeftFree(t *testing.T) {
	p := New(64, 64, BestAreaFit, SplitShorterAxis)
	_, _ = p.Pack(64, 64) // fill completely

	p.ResetPreserving(128, 128, 64, 64)

	// The remaining free space (right + bottom strips) should still be
	// packable, while the preserved 64x64 block must not be reallocated.
	r, err := p.Pack(64, 64)
	if err != nil {
		t.Fatalf("expected space for a 64x64 rect after growth: %v", err)
	}
	if r.X < 64 && r.Y < 64 {
		t.Fatalf("new allocation overlaps preserved region: %+v", r)
	}
}

func TestHeuristicsAllPlaceWithoutOverlap(t *testing.T) {
	heuristics := []Heuristic{BestShortSideFit, BestLongSideFit, BestAreaFit, BottomLeft}
	splits := []SplitRule{SplitShorterAxis, SplitLongerAxis, SplitMinimizeArea, SplitMaximizeArea}

	for _, h := range heuristics {
		for _, s := range splits {
			p := New(256, 256, h, s)
			var placed []Rect
			for i := 0; i < 30; i++ {
				r, err := p.Pack(10+i%20, 10+i%15)
				if err != nil {
					continue
				}
				for _, other := range placed {
					if overlaps(r, other) {
						t.Fatalf("heuristic=%v split=%v: overlap %+v vs %+v", h, s, r, other)
					}
				}
				placed = append(placed, r)
			}
		}
	}
}
