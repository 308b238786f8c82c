package shapecache

import "testing"

func baseFingerprint() Fingerprint {
	return Fingerprint{
		Text:             "fi",
		FontID:           1,
		SizePx:           16,
		HintingMode:      0,
		SubpixelMode:     0,
		VariationStateID: 1,
		Features: CanonicalizeFeatures([]Feature{
			{Tag: [4]byte{'l', 'i', 'g', 'a'}, Value: 1},
			{Tag: [4]byte{'k', 'e', 'r', 'n'}, Value: 1},
		}),
		KerningEnabled: true,
		BidiEnabled:    false,
		BaseDirection:  0,
	}
}

func sampleGlyphs() []ShapedGlyph {
	return []ShapedGlyph{
		{GID: 10, Cluster: 0, XAdvance: 8},
		{GID: 11, Cluster: 1, XAdvance: 8},
	}
}

// TestRoundTripLookupAfterInsert is property 5: inserting a fingerprint
// and immediately looking it up returns the same shaped glyphs.
func TestRoundTripLookupAfterInsert(t *testing.T) {
	c := New(8)
	fp := baseFingerprint()
	c.Insert(fp, sampleGlyphs())

	e, ok := c.Lookup(fp)
	if !ok {
		t.Fatal("expected cache hit after insert")
	}
	if len(e.Glyphs) != 2 || e.Glyphs[0].GID != 10 || e.Glyphs[1].GID != 11 {
		t.Fatalf("unexpected glyphs: %+v", e.Glyphs)
	}
}

// TestFeatureReorderCanonicalization is scenario S5: two requests whose
// feature sets differ only in input order must canonicalize to the same
// cache entry.
func TestFeatureReorderCanonicalization(t *testing.T) {
	c := New(8)

	fpA := baseFingerprint()
	fpA.Features = CanonicalizeFeatures([]Feature{
		{Tag: [4]byte{'l', 'i', 'g', 'a'}, Value: 1},
		{Tag: [4]byte{'k', 'e', 'r', 'n'}, Value: 1},
	})
	c.Insert(fpA, sampleGlyphs())

	fpB := baseFingerprint()
	fpB.Features = CanonicalizeFeatures([]Feature{
		{Tag: [4]byte{'k', 'e', 'r', 'n'}, Value: 1},
		{Tag: [4]byte{'l', 'i', 'g', 'a'}, Value: 1},
	})

	if _, ok := c.Lookup(fpB); !ok {
		t.Fatal("expected feature-reordered fingerprint to hit the same entry")
	}
	if c.Len() != 1 {
		t.Fatalf("expected exactly 1 entry, got %d", c.Len())
	}
}

// TestVariationChangeMisses is scenario S4: bumping VariationStateID after
// a variation-coordinate change must miss the cache even though every
// other field matches.
func TestVariationChangeMisses(t *testing.T) {
	c := New(8)
	fp := baseFingerprint()
	c.Insert(fp, sampleGlyphs())

	fp2 := fp
	fp2.VariationStateID = 2

	if _, ok := c.Lookup(fp2); ok {
		t.Fatal("expected variation state change to miss the cache")
	}
	if _, ok := c.Lookup(fp); !ok {
		t.Fatal("expected the original fingerprint to still hit")
	}
}

func TestFingerprintDistinguishesEveryField(t *testing.T) {
	c := New(16)
	base := baseFingerprint()
	c.Insert(base, sampleGlyphs())

	variants := []func(*Fingerprint){
		func(f *Fingerprint) { f.Text = "fl" },
		func(f *Fingerprint) { f.FontID = 2 },
		func(f *Fingerprint) { f.SizePx = 17 },
		func(f *Fingerprint) { f.HintingMode = 1 },
		func(f *Fingerprint) { f.SubpixelMode = 1 },
		func(f *Fingerprint) { f.VariationStateID = 9 },
		func(f *Fingerprint) { f.Features = nil },
		func(f *Fingerprint) { f.KerningEnabled = false },
		func(f *Fingerprint) { f.BidiEnabled = true },
		func(f *Fingerprint) { f.BaseDirection = 1 },
	}

	for i, mutate := range variants {
		fp := base
		mutate(&fp)
		if _, ok := c.Lookup(fp); ok {
			t.Fatalf("variant %d unexpectedly hit the base entry", i)
		}
	}

	if _, ok := c.Lookup(base); !ok {
		t.Fatal("expected base fingerprint to still hit")
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(4)
	var fps []Fingerprint
	for i := 0; i < 4; i++ {
		fp := baseFingerprint()
		fp.FontID = uint64(i)
		fps = append(fps, fp)
		c.Insert(fp, sampleGlyphs())
	}

	// Touch every entry but the first, so it becomes the LRU tail.
	for _, fp := range fps[1:] {
		c.Lookup(fp)
	}

	newFP := baseFingerprint()
	newFP.FontID = 100
	c.Insert(newFP, sampleGlyphs())

	if _, ok := c.Lookup(fps[0]); ok {
		t.Fatal("expected the untouched entry to be evicted")
	}
	if c.Len() != 4 {
		t.Fatalf("expected capacity to stay at 4, got %d", c.Len())
	}
	_, _, evictions, _ := c.Stats()
	if evictions != 1 {
		t.Fatalf("expected exactly 1 eviction, got %d", evictions)
	}
}

func TestInvalidateFontRemovesOnlyThatFont(t *testing.T) {
	c := New(8)
	fpA := baseFingerprint()
	fpA.FontID = 1
	fpB := baseFingerprint()
	fpB.FontID = 2
	fpB.Text = "fl"
	c.Insert(fpA, sampleGlyphs())
	c.Insert(fpB, sampleGlyphs())

	removed := c.InvalidateFont(1)
	if removed != 1 {
		t.Fatalf("expected 1 removed entry, got %d", removed)
	}
	if _, ok := c.Lookup(fpA); ok {
		t.Fatal("expected font 1's entry to be gone")
	}
	if _, ok := c.Lookup(fpB); !ok {
		t.Fatal("expected font 2's entry to survive")
	}
}

func TestClearEmptiesCache(t *testing.T) {
	c := New(4)
	c.Insert(baseFingerprint(), sampleGlyphs())
	c.Clear()

	if c.Len() != 0 {
		t.Fatalf("expected empty cache after Clear, got %d", c.Len())
	}
	if _, ok := c.Lookup(baseFingerprint()); ok {
		t.Fatal("expected lookup to miss after Clear")
	}
}

func TestCanonicalizeFeaturesSortsByTag(t *testing.T) {
	in := []Feature{
		{Tag: [4]byte{'k', 'e', 'r', 'n'}, Value: 1},
		{Tag: [4]byte{'l', 'i', 'g', 'a'}, Value: 1},
		{Tag: [4]byte{'a', 'a', 'l', 't'}, Value: 2},
	}
	out := CanonicalizeFeatures(in)
	if string(out[0].Tag[:]) != "aalt" || string(out[1].Tag[:]) != "kern" || string(out[2].Tag[:]) != "liga" {
		t.Fatalf("unexpected order: %+v", out)
	}
	// Original slice must be unmodified.
	if string(in[0].Tag[:]) != "kern" {
		t.Fatal("CanonicalizeFeatures must not mutate its input")
	}
}
