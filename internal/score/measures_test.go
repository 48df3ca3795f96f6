package score

import (
	"math"
	"testing"
)

func TestExpected(t *testing.T) {
	e11, e12, e21, e22 := Expected(10, 90, 20, 880)
	// N = 1000, R1 = 100, C1 = 30 => E11 = 3
	if math.Abs(e11-3) > 1e-9 {
		t.Errorf("e11 = %g, want 3", e11)
	}
	if math.Abs((e11+e12+e21+e22)-1000) > 1e-9 {
		t.Errorf("expected cells do not sum to N: %g", e11+e12+e21+e22)
	}

	// Degenerate all-zero table
	e11, _, _, _ = Expected(0, 0, 0, 0)
	if e11 != 0 {
		t.Errorf("empty table e11 = %g, want 0", e11)
	}
}

func TestLogLikelihoodSign(t *testing.T) {
	// Strong positive association
	if g2 := LogLikelihood(50, 50, 10, 890); g2 <= 0 {
		t.Errorf("positive association scored %g", g2)
	}
	// Anti-association: observed below expected
	if g2 := LogLikelihood(1, 99, 500, 400); g2 >= 0 {
		t.Errorf("anti-association scored %g", g2)
	}
	// Independence scores zero
	if g2 := LogLikelihood(10, 90, 10, 90); math.Abs(g2) > 1e-9 {
		t.Errorf("independent table scored %g", g2)
	}
}

func TestLogRatioDiscount(t *testing.T) {
	// A zero reference count must stay finite
	lr := LogRatio(10, 90, 0, 100)
	if math.IsInf(lr, 0) || math.IsNaN(lr) {
		t.Errorf("zero reference count gave %g", lr)
	}
	if lr <= 0 {
		t.Errorf("over-represented item scored %g", lr)
	}

	// Equal relative frequencies score zero
	if lr := LogRatio(10, 90, 10, 90); math.Abs(lr) > 1e-9 {
		t.Errorf("equal frequencies scored %g", lr)
	}
}

func TestMutualInformation(t *testing.T) {
	// O11 = 8, E11 = (10*8)/100... construct a doubling: O11 = 2*E11
	// R1 = 10, C1 = 20, N = 100 => E11 = 2; O11 = 4 => MI = 1
	mi := MutualInformation(4, 6, 16, 74)
	if math.Abs(mi-1) > 1e-9 {
		t.Errorf("MI = %g, want 1", mi)
	}
	if mi := MutualInformation(0, 10, 10, 80); mi != 0 {
		t.Errorf("MI with O11=0 = %g, want 0", mi)
	}
}

func TestTScoreAndZScore(t *testing.T) {
	// O11 = 4, E11 = 2 (same table as above)
	if ts := TScore(4, 6, 16, 74); math.Abs(ts-1) > 1e-9 {
		t.Errorf("t-score = %g, want 1", ts)
	}
	want := 2 / math.Sqrt2
	if zs := ZScore(4, 6, 16, 74); math.Abs(zs-want) > 1e-9 {
		t.Errorf("z-score = %g, want %g", zs, want)
	}
	if ts := TScore(0, 10, 10, 80); ts != 0 {
		t.Errorf("t-score with O11=0 = %g, want 0", ts)
	}
}

func TestDice(t *testing.T) {
	// R1 = 10, C1 = 10, O11 = 5 => 2*5/20 = 0.5
	if d := Dice(5, 5, 5, 85); math.Abs(d-0.5) > 1e-9 {
		t.Errorf("dice = %g, want 0.5", d)
	}
	if d := Dice(0, 0, 0, 100); d != 0 {
		t.Errorf("empty dice = %g, want 0", d)
	}
}

func TestMeasureNamesSortedAndComplete(t *testing.T) {
	names := MeasureNames()
	if len(names) != len(Measures) {
		t.Fatalf("names = %v", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("names not sorted: %v", names)
			break
		}
	}
	for _, want := range []string{"log-likelihood", "log-ratio", "dice"} {
		if _, ok := Measures[want]; !ok {
			t.Errorf("measure %q missing from catalogue", want)
		}
	}
}
