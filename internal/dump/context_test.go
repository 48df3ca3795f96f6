package dump

import (
	"path/filepath"
	"testing"

	"cqb/internal/spans"
	"cqb/internal/store"
)

func contextTable() *spans.Table {
	return &spans.Table{Rows: []spans.Row{
		spans.NewRow(10, 11),
		spans.NewRow(50, 51),
		spans.NewRow(90, 91),
	}}
}

func TestToContextSymmetricWindow(t *testing.T) {
	e := NewEngine(&fakeRunner{}, disabledStore(t), &fakeAttrs{size: 100}, "CORPUS", testLogger())

	got, err := e.ToContext(contextTable(), ContextSpec{Left: 5, Right: 5})
	if err != nil {
		t.Fatalf("ToContext failed: %v", err)
	}

	want := [][2]int{{5, 16}, {45, 56}, {85, 96}}
	for i, w := range want {
		r := got.Rows[i]
		if r.Context != w[0] || r.ContextEnd != w[1] {
			t.Errorf("row %d context = (%d, %d), want (%d, %d)", i, r.Context, r.ContextEnd, w[0], w[1])
		}
		if r.ContextID != spans.Unset {
			t.Errorf("row %d contextID = %d, want Unset without a boundary", i, r.ContextID)
		}
	}
}

func TestToContextClampsToCorpus(t *testing.T) {
	e := NewEngine(&fakeRunner{}, disabledStore(t), &fakeAttrs{size: 100}, "CORPUS", testLogger())

	table := &spans.Table{Rows: []spans.Row{
		spans.NewRow(2, 3),
		spans.NewRow(95, 97),
	}}
	got, err := e.ToContext(table, ContextSpec{Left: 10, Right: 10})
	if err != nil {
		t.Fatalf("ToContext failed: %v", err)
	}

	if got.Rows[0].Context != 0 {
		t.Errorf("left edge context = %d, want 0", got.Rows[0].Context)
	}
	if got.Rows[1].ContextEnd != 99 {
		t.Errorf("right edge contextEnd = %d, want 99", got.Rows[1].ContextEnd)
	}
}

func TestToContextBoundary(t *testing.T) {
	// Sentences of 20 tokens each: [0,19], [20,39], ...
	e := NewEngine(&fakeRunner{}, disabledStore(t), &fakeAttrs{size: 100, sentLen: 20}, "CORPUS", testLogger())

	t.Run("window clamped to sentence", func(t *testing.T) {
		table := &spans.Table{Rows: []spans.Row{spans.NewRow(22, 23)}}
		got, err := e.ToContext(table, ContextSpec{Left: 10, Right: 30, Boundary: "s"})
		if err != nil {
			t.Fatal(err)
		}
		r := got.Rows[0]
		if r.Context != 20 || r.ContextEnd != 39 {
			t.Errorf("context = (%d, %d), want (20, 39)", r.Context, r.ContextEnd)
		}
		if r.ContextID != 1 {
			t.Errorf("contextID = %d, want 1", r.ContextID)
		}
	})

	t.Run("no width means whole sentence", func(t *testing.T) {
		table := &spans.Table{Rows: []spans.Row{spans.NewRow(45, 46)}}
		got, err := e.ToContext(table, ContextSpec{Left: -1, Right: -1, Boundary: "s"})
		if err != nil {
			t.Fatal(err)
		}
		r := got.Rows[0]
		if r.Context != 40 || r.ContextEnd != 59 {
			t.Errorf("context = (%d, %d), want (40, 59)", r.Context, r.ContextEnd)
		}
	})

	t.Run("boundary crossing match keeps the left span", func(t *testing.T) {
		// Match starts in sentence 0 and ends in sentence 1
		table := &spans.Table{Rows: []spans.Row{spans.NewRow(18, 21)}}
		got, err := e.ToContext(table, ContextSpec{Left: -1, Right: -1, Boundary: "s"})
		if err != nil {
			t.Fatal(err)
		}
		r := got.Rows[0]
		if r.ContextID != 0 || r.Context != 0 || r.ContextEnd != 19 {
			t.Errorf("context = (%d, %d) id %d, want (0, 19) id 0", r.Context, r.ContextEnd, r.ContextID)
		}
	})
}

func TestToContextIdempotent(t *testing.T) {
	e := NewEngine(&fakeRunner{}, disabledStore(t), &fakeAttrs{size: 100, sentLen: 20}, "CORPUS", testLogger())

	spec := ContextSpec{Left: 5, Right: 5, Boundary: "s"}
	once, err := e.ToContext(contextTable(), spec)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := e.ToContext(once, spec)
	if err != nil {
		t.Fatal(err)
	}
	for i := range once.Rows {
		a, b := once.Rows[i], twice.Rows[i]
		if a.Context != b.Context || a.ContextEnd != b.ContextEnd || a.ContextID != b.ContextID {
			t.Errorf("row %d changed on reapplication: %+v vs %+v", i, a, b)
		}
	}
}

func TestToContextPreservesInput(t *testing.T) {
	e := NewEngine(&fakeRunner{}, disabledStore(t), &fakeAttrs{size: 100}, "CORPUS", testLogger())

	in := contextTable()
	if _, err := e.ToContext(in, ContextSpec{Left: 5, Right: 5}); err != nil {
		t.Fatal(err)
	}
	if in.Rows[0].Context != spans.Unset {
		t.Error("ToContext mutated its input")
	}
}

func TestToContextCache(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "cache.db"), true, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	attrs := &fakeAttrs{size: 100, sentLen: 20}
	e := NewEngine(&fakeRunner{}, st, attrs, "CORPUS", testLogger())
	spec := ContextSpec{Left: 5, Right: 5, Boundary: "s"}

	first, err := e.ToContext(contextTable(), spec)
	if err != nil {
		t.Fatalf("first ToContext failed: %v", err)
	}
	calls := attrs.sizeCalls
	if calls == 0 {
		t.Fatal("first call must consult the attribute layer")
	}

	second, err := e.ToContext(contextTable(), spec)
	if err != nil {
		t.Fatalf("second ToContext failed: %v", err)
	}
	if attrs.sizeCalls != calls {
		t.Error("identical table and policy must be served from the cache")
	}
	for i := range first.Rows {
		a, b := first.Rows[i], second.Rows[i]
		if a.Context != b.Context || a.ContextEnd != b.ContextEnd || a.ContextID != b.ContextID {
			t.Errorf("row %d differs: %+v vs %+v", i, a, b)
		}
	}

	// A different policy misses and recomputes
	if _, err := e.ToContext(contextTable(), ContextSpec{Left: 6, Right: 5, Boundary: "s"}); err != nil {
		t.Fatal(err)
	}
	if attrs.sizeCalls == calls {
		t.Error("changed context policy must not reuse the cached table")
	}

	// So does a different table under the same policy
	calls = attrs.sizeCalls
	other := &spans.Table{Rows: []spans.Row{spans.NewRow(30, 31)}}
	if _, err := e.ToContext(other, spec); err != nil {
		t.Fatal(err)
	}
	if attrs.sizeCalls == calls {
		t.Error("different spans must not reuse the cached table")
	}
}

func TestCorrectAnchors(t *testing.T) {
	table := &spans.Table{
		AnchorSlots: []int{2, 3},
		Rows: []spans.Row{
			{
				Match: 10, MatchEnd: 12,
				Anchors: map[int]int{2: 11, 3: spans.Unset},
				Context: 5, ContextEnd: 17, ContextID: 0,
			},
		},
	}

	got := CorrectAnchors(table, map[int]int{2: 2, 3: 1})
	r := got.Rows[0]
	if r.Anchor(2) != 13 {
		t.Errorf("anchor 2 = %d, want 13", r.Anchor(2))
	}
	// Unset anchors are never corrected
	if r.Anchor(3) != spans.Unset {
		t.Errorf("anchor 3 = %d, want Unset", r.Anchor(3))
	}

	// A correction pushing the anchor outside the bounding interval unsets it
	got = CorrectAnchors(table, map[int]int{2: 100})
	if v := got.Rows[0].Anchor(2); v != spans.Unset {
		t.Errorf("out-of-bounds corrected anchor = %d, want Unset", v)
	}

	// Without context the match interval bounds the correction
	bare := &spans.Table{
		AnchorSlots: []int{2},
		Rows:        []spans.Row{{Match: 10, MatchEnd: 12, Anchors: map[int]int{2: 11}, Context: spans.Unset, ContextEnd: spans.Unset, ContextID: spans.Unset}},
	}
	got = CorrectAnchors(bare, map[int]int{2: 4})
	if v := got.Rows[0].Anchor(2); v != spans.Unset {
		t.Errorf("anchor outside match interval = %d, want Unset", v)
	}

	// The input table stays untouched
	if table.Rows[0].Anchor(2) != 11 {
		t.Error("CorrectAnchors mutated its input")
	}
}
