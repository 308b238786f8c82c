package defrag

import (
	"testing"
	"time"

	"github.com/gogpu/glyphatlas/gpu"
	"github.com/gogpu/glyphatlas/packer"
)

// TestShouldDefragmentGating is property 8: all three conditions
// (free-rect count, fragmentation, utilization) must hold simultaneously.
func TestShouldDefragmentGating(t *testing.T) {
	cases := []struct {
		name          string
		freeRectCount int
		fragmentation float64
		utilization   float64
		want          bool
	}{
		{"all satisfied", 60, 0.5, 0.5, true},
		{"too few free rects", 10, 0.5, 0.5, false},
		{"not fragmented enough", 60, 0.1, 0.5, false},
		{"too full to bother", 60, 0.5, 0.95, false},
		{"boundary free rects exclusive", 51, 0.31, 0.5, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ShouldDefragment(c.freeRectCount, c.fragmentation, c.utilization)
			if got != c.want {
				t.Fatalf("ShouldDefragment(%d, %v, %v) = %v, want %v",
					c.freeRectCount, c.fragmentation, c.utilization, got, c.want)
			}
		})
	}
}

func sampleGlyphs() []LiveGlyph {
	return []LiveGlyph{
		{GlyphID: 1, X: 0, Y: 0, Width: 16, Height: 16},
		{GlyphID: 2, X: 100, Y: 0, Width: 16, Height: 16},
		{GlyphID: 3, X: 200, Y: 50, Width: 32, Height: 32},
		{GlyphID: 4, X: 300, Y: 80, Width: 8, Height: 8},
	}
}

func TestPlanProducesNonOverlappingDestinations(t *testing.T) {
	ctx := New(1, nil)
	ctx.Start(sampleGlyphs())

	n := ctx.Plan(512, 512, packer.BestAreaFit, packer.SplitShorterAxis)
	if n == 0 {
		t.Fatal("expected at least one move for a scattered glyph set")
	}
	if ctx.State() != StatePlanning {
		t.Fatalf("expected StatePlanning, got %v", ctx.State())
	}

	type rect struct{ x, y, w, h int }
	var placed []rect
	for _, m := range ctx.moves {
		r := rect{m.DstX, m.DstY, m.Width, m.Height}
		for _, p := range placed {
			if r.x < p.x+p.w && p.x < r.x+r.w && r.y < p.y+p.h && p.y < r.y+r.h {
				t.Fatalf("planned destinations overlap: %+v vs %+v", r, p)
			}
		}
		placed = append(placed, r)
	}
}

func TestPlanCapsAtMaxMoves(t *testing.T) {
	var glyphs []LiveGlyph
	for i := 0; i < MaxMoves+50; i++ {
		glyphs = append(glyphs, LiveGlyph{
			GlyphID: uint64(i),
			X:       (i % 50) * 20,
			Y:       (i / 50) * 20,
			Width:   8, Height: 8,
		})
	}

	ctx := New(1, nil)
	ctx.Start(glyphs)
	n := ctx.Plan(4096, 4096, packer.BestAreaFit, packer.SplitShorterAxis)

	if n > MaxMoves {
		t.Fatalf("expected at most %d moves, got %d", MaxMoves, n)
	}
}

// TestExecuteIsResumableAcrossTimeBudget is scenario S6: a plan that can't
// finish within one time slice resumes on a subsequent Execute call
// without losing or repeating moves.
func TestExecuteIsResumableAcrossTimeBudget(t *testing.T) {
	glyphs := sampleGlyphs()
	var updated [][]Move
	ctx := New(1, func(moves []Move) {
		cp := append([]Move(nil), moves...)
		updated = append(updated, cp)
	})
	ctx.Start(glyphs)
	ctx.Plan(512, 512, packer.BestAreaFit, packer.SplitShorterAxis)

	if len(ctx.moves) < 2 {
		t.Skip("not enough planned moves to exercise resumption")
	}

	// Force a budget that only allows a handful of ticks before any real
	// time passes, by making `now` advance a fixed 1ms step on every call
	// so exactly one move fits per Execute invocation.
	tick := 0
	base := time.Unix(0, 0)
	ctx.now = func() time.Time {
		t := base.Add(time.Duration(tick) * time.Millisecond)
		tick++
		return t
	}
	// Each Execute call's internal now() calls advance by 1ms per tick; a
	// 1.5ms budget lets exactly one move through before the next check
	// trips the budget, forcing resumption across calls.
	ctx.timeBudget = 1500 * time.Microsecond

	enc := &gpu.NullCommandEncoder{}
	var tex gpu.Texture

	done := ctx.Execute(enc, tex)
	if done {
		t.Fatal("expected execution to be incomplete under a tiny time budget")
	}
	if ctx.State() != StateExecuting {
		t.Fatalf("expected StateExecuting, got %v", ctx.State())
	}

	totalExecuted := 0
	for !done {
		before := ctx.PendingMoves()
		done = ctx.Execute(enc, tex)
		after := ctx.PendingMoves()
		if after >= before && !done {
			t.Fatal("expected PendingMoves to decrease across Execute calls")
		}
		totalExecuted++
		if totalExecuted > len(glyphs)+10 {
			t.Fatal("execution never completed")
		}
	}

	if ctx.State() != StateComplete {
		t.Fatalf("expected StateComplete once all moves run, got %v", ctx.State())
	}

	var totalMoves int
	for _, batch := range updated {
		totalMoves += len(batch)
	}
	if uint64(totalMoves) != ctx.totalMoves {
		t.Fatalf("update callback saw %d moves, context recorded %d", totalMoves, ctx.totalMoves)
	}
}

func TestExecuteFallsBackToImageCopyWithoutCompute(t *testing.T) {
	ctx := New(1, nil)
	ctx.Start(sampleGlyphs())
	ctx.Plan(512, 512, packer.BestAreaFit, packer.SplitShorterAxis)

	enc := &gpu.NullCommandEncoder{}
	var tex gpu.Texture

	for !ctx.Execute(enc, tex) {
	}

	if len(enc.Dispatches) != 0 {
		t.Fatalf("expected no compute dispatches without EnableCompute, got %d", len(enc.Dispatches))
	}
	if enc.CopiesToCopyTex == 0 {
		t.Fatal("expected image-copy fallback to record at least one copy")
	}
}

func TestExecuteUsesComputeWhenEnabled(t *testing.T) {
	ctx := New(1, nil)
	ctx.Start(sampleGlyphs())
	ctx.Plan(512, 512, packer.BestAreaFit, packer.SplitShorterAxis)
	ctx.EnableCompute(struct{}{})

	enc := &gpu.NullCommandEncoder{}
	var tex gpu.Texture

	for !ctx.Execute(enc, tex) {
	}

	if len(enc.Dispatches) == 0 {
		t.Fatal("expected compute dispatches once EnableCompute is called")
	}
	if enc.CopiesToCopyTex != 0 {
		t.Fatal("expected no image copies once compute defrag is enabled")
	}
}

func TestResetReturnsToIdle(t *testing.T) {
	ctx := New(1, nil)
	ctx.Start(sampleGlyphs())
	ctx.Plan(512, 512, packer.BestAreaFit, packer.SplitShorterAxis)

	ctx.Reset()

	if ctx.State() != StateIdle {
		t.Fatalf("expected StateIdle after reset, got %v", ctx.State())
	}
	if ctx.PendingMoves() != 0 {
		t.Fatalf("expected 0 pending moves after reset, got %d", ctx.PendingMoves())
	}
}
