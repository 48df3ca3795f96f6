package score

import (
	"reflect"
	"testing"

	"cqb/internal/count"
	"cqb/internal/errors"
)

func freqTable(pairs map[string]int) *count.Table {
	c := make(count.Counter)
	for v, n := range pairs {
		c.Add(v, n)
	}
	return c.Table([]string{"word"})
}

func TestScoreRanksByAssociation(t *testing.T) {
	target := freqTable(map[string]int{"strong": 40, "weak": 5, "noise": 5})
	reference := freqTable(map[string]int{"strong": 50, "weak": 400, "noise": 550})

	got, err := Score(target, reference, 0, 0, Options{Measure: "log-likelihood", Digits: -1})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	if got.R1 != 50 || got.R2 != 1000 {
		t.Errorf("marginals = (%d, %d), want (50, 1000)", got.R1, got.R2)
	}
	if len(got.Rows) == 0 || got.Rows[0].Item != "strong" {
		t.Fatalf("rows = %+v, want strong first", got.Rows)
	}

	r := got.Rows[0]
	if r.O11 != 40 || r.O12 != 10 || r.O21 != 50 || r.O22 != 950 {
		t.Errorf("contingency = %+v", r)
	}
	// Every catalogue measure is present
	for _, name := range MeasureNames() {
		if _, ok := r.Scores[name]; !ok {
			t.Errorf("measure %s missing from row scores", name)
		}
	}

	// "weak" is under-represented and dropped by default
	for _, row := range got.Rows {
		if row.Item == "weak" {
			t.Error("anti-associated row kept without KeepNegative")
		}
	}
}

func TestScoreKeepNegative(t *testing.T) {
	target := freqTable(map[string]int{"strong": 40, "weak": 5, "noise": 5})
	reference := freqTable(map[string]int{"strong": 50, "weak": 400, "noise": 550})

	got, err := Score(target, reference, 0, 0, Options{Measure: "log-likelihood", Digits: -1, KeepNegative: true})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, row := range got.Rows {
		if row.Item == "weak" {
			found = true
			if row.Score >= 0 {
				t.Errorf("anti-associated row scored %g, want negative", row.Score)
			}
		}
	}
	if !found {
		t.Error("KeepNegative dropped the anti-associated row")
	}
}

func TestScoreDeterministic(t *testing.T) {
	target := freqTable(map[string]int{"a": 10, "b": 10, "c": 10, "d": 3})
	reference := freqTable(map[string]int{"a": 20, "b": 20, "c": 20, "d": 20, "e": 920})

	opts := Options{Measure: "log-likelihood", Digits: 6}
	first, err := Score(target, reference, 0, 0, opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Score(target, reference, 0, 0, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different tables")
	}

	// Ties on score and O11 break by item, ascending
	for i := 1; i < len(first.Rows); i++ {
		a, b := first.Rows[i-1], first.Rows[i]
		if a.Score == b.Score && a.O11 == b.O11 && a.Item >= b.Item {
			t.Errorf("tie broken out of order: %q before %q", a.Item, b.Item)
		}
	}
}

func TestScoreMinFreq(t *testing.T) {
	target := freqTable(map[string]int{"kept": 5, "dropped": 1})
	reference := freqTable(map[string]int{"kept": 5, "dropped": 1, "filler": 94})

	got, err := Score(target, reference, 0, 0, Options{Measure: "log-likelihood", MinFreq: 2, Digits: -1})
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range got.Rows {
		if row.Item == "dropped" {
			t.Error("item below MinFreq survived")
		}
	}
	// R1 reflects the full target, not the filtered one
	if got.R1 != 6 {
		t.Errorf("R1 = %d, want 6", got.R1)
	}
}

func TestScoreCutoff(t *testing.T) {
	target := freqTable(map[string]int{"a": 30, "b": 20, "c": 10})
	reference := freqTable(map[string]int{"a": 1, "b": 1, "c": 1, "filler": 997})

	got, err := Score(target, reference, 0, 0, Options{Measure: "log-likelihood", Cutoff: 2, Digits: -1})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(got.Rows))
	}
}

func TestScoreFoldingAggregates(t *testing.T) {
	target := freqTable(map[string]int{"Wall": 3, "wall": 2})
	reference := freqTable(map[string]int{"Wall": 10, "wall": 10, "filler": 980})

	got, err := Score(target, reference, 0, 0, Options{Measure: "log-likelihood", FoldCase: true, Digits: -1})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Rows) != 1 {
		t.Fatalf("rows = %+v, want the folded variants merged", got.Rows)
	}
	r := got.Rows[0]
	if r.Item != "wall" || r.O11 != 5 || r.O21 != 20 {
		t.Errorf("folded row = %+v", r)
	}
}

func TestScoreRounding(t *testing.T) {
	target := freqTable(map[string]int{"x": 3})
	reference := freqTable(map[string]int{"x": 1, "filler": 99})

	got, err := Score(target, reference, 0, 0, Options{Measure: "log-likelihood", Digits: 2})
	if err != nil {
		t.Fatal(err)
	}
	r := got.Rows[0]
	if r.Score != round(r.Score, 2) {
		t.Errorf("score %g not rounded to 2 digits", r.Score)
	}
	if r.E11 != round(r.E11, 2) {
		t.Errorf("E11 %g not rounded to 2 digits", r.E11)
	}
}

func TestScoreUnknownMeasure(t *testing.T) {
	_, err := Score(freqTable(nil), freqTable(nil), 0, 0, Options{Measure: "magic"})
	if !errors.HasCode(err, errors.ConfigInvalid) {
		t.Errorf("err = %v, want CONFIG_INVALID", err)
	}
}

func TestScoreExplicitMarginals(t *testing.T) {
	target := freqTable(map[string]int{"x": 3})
	reference := freqTable(map[string]int{"x": 10})

	got, err := Score(target, reference, 100, 5000, Options{Measure: "log-likelihood", Digits: -1})
	if err != nil {
		t.Fatal(err)
	}
	if got.R1 != 100 || got.R2 != 5000 {
		t.Errorf("marginals = (%d, %d), want (100, 5000)", got.R1, got.R2)
	}
	if got.Rows[0].O12 != 97 || got.Rows[0].O22 != 4990 {
		t.Errorf("row = %+v", got.Rows[0])
	}
}
