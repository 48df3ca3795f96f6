package score

import (
	"math"
	"sort"
)

// MeasureFunc is a pure function of the four contingency-table cells. All
// measures operate on the same signature so callers can request any of them
// by name.
type MeasureFunc func(o11, o12, o21, o22 float64) float64

// Measures is the measure catalogue
var Measures = map[string]MeasureFunc{
	"log-likelihood":     LogLikelihood,
	"log-ratio":          LogRatio,
	"mutual-information": MutualInformation,
	"t-score":            TScore,
	"z-score":            ZScore,
	"dice":               Dice,
}

// MeasureNames returns the catalogue's names, sorted
func MeasureNames() []string {
	names := make([]string, 0, len(Measures))
	for name := range Measures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Expected returns the expected cell counts under independence
func Expected(o11, o12, o21, o22 float64) (e11, e12, e21, e22 float64) {
	n := o11 + o12 + o21 + o22
	if n == 0 {
		return 0, 0, 0, 0
	}
	r1 := o11 + o12
	r2 := o21 + o22
	c1 := o11 + o21
	c2 := o12 + o22
	return r1 * c1 / n, r1 * c2 / n, r2 * c1 / n, r2 * c2 / n
}

// xlx is x*ln(x/e) with the 0*ln(0) = 0 convention
func xlx(o, e float64) float64 {
	if o == 0 || e == 0 {
		return 0
	}
	return o * math.Log(o/e)
}

// LogLikelihood is the signed G2 statistic: positive for association,
// negative for anti-association
func LogLikelihood(o11, o12, o21, o22 float64) float64 {
	e11, e12, e21, e22 := Expected(o11, o12, o21, o22)
	g2 := 2 * (xlx(o11, e11) + xlx(o12, e12) + xlx(o21, e21) + xlx(o22, e22))
	if o11 < e11 {
		return -g2
	}
	return g2
}

// LogRatio is the binary log of the relative-frequency ratio, with a 0.5
// discount on both observed frequencies to keep zero counts finite
func LogRatio(o11, o12, o21, o22 float64) float64 {
	r1 := o11 + o12
	r2 := o21 + o22
	if r1 == 0 || r2 == 0 {
		return 0
	}
	return math.Log2(((o11 + 0.5) / r1) / ((o21 + 0.5) / r2))
}

// MutualInformation is log2(O11/E11)
func MutualInformation(o11, o12, o21, o22 float64) float64 {
	e11, _, _, _ := Expected(o11, o12, o21, o22)
	if o11 == 0 || e11 == 0 {
		return 0
	}
	return math.Log2(o11 / e11)
}

// TScore is (O11-E11)/sqrt(O11)
func TScore(o11, o12, o21, o22 float64) float64 {
	if o11 == 0 {
		return 0
	}
	e11, _, _, _ := Expected(o11, o12, o21, o22)
	return (o11 - e11) / math.Sqrt(o11)
}

// ZScore is (O11-E11)/sqrt(E11)
func ZScore(o11, o12, o21, o22 float64) float64 {
	e11, _, _, _ := Expected(o11, o12, o21, o22)
	if e11 == 0 {
		return 0
	}
	return (o11 - e11) / math.Sqrt(e11)
}

// Dice is 2*O11/(R1+C1)
func Dice(o11, o12, o21, o22 float64) float64 {
	r1 := o11 + o12
	c1 := o11 + o21
	if r1+c1 == 0 {
		return 0
	}
	return 2 * o11 / (r1 + c1)
}
