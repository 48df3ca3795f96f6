package score

import (
	"math"
	"sort"

	"cqb/internal/count"
	"cqb/internal/errors"
)

// Options describes one scoring request
type Options struct {
	// Measure is the association measure rows are ranked by
	Measure string
	// MinFreq drops target items below this count before joining. This
	// bounds memory, not ranking correctness: dropped items would score
	// as non-significant anyway.
	MinFreq int
	// Cutoff truncates the output to the top n rows; 0 keeps everything
	Cutoff int
	// Digits rounds all numeric columns to this many decimals; negative
	// disables rounding
	Digits int
	// FoldCase and FoldDiacritics normalize item keys before aggregation
	FoldCase       bool
	FoldDiacritics bool
	// KeepNegative keeps anti-associated rows (O11 < E11)
	KeepNegative bool
}

// Row is one scored item with its contingency cells
type Row struct {
	Item  string  `json:"item"`
	O11   int     `json:"O11"`
	O12   int     `json:"O12"`
	O21   int     `json:"O21"`
	O22   int     `json:"O22"`
	E11   float64 `json:"E11"`
	Score float64 `json:"score"`
	// Scores carries every measure in the catalogue
	Scores map[string]float64 `json:"scores"`
}

// Table is a ranked association table (collocates or keywords)
type Table struct {
	Measure string `json:"measure"`
	R1      int    `json:"R1"`
	R2      int    `json:"R2"`
	Rows    []Row  `json:"rows"`
}

// Score compares a target frequency signature against a reference one and
// returns the ranked association table. It is deterministic: identical
// inputs produce identical output, including row order.
func Score(target, reference *count.Table, r1, r2 int, opts Options) (*Table, error) {
	measure, ok := Measures[opts.Measure]
	if !ok {
		return nil, errors.Newf(errors.ConfigInvalid, "unknown association measure %q (have %v)", opts.Measure, MeasureNames())
	}

	if r1 == 0 {
		r1 = target.Total()
	}
	if r2 == 0 {
		r2 = reference.Total()
	}

	// Folding precedes scoring: folded variants must be indistinguishable
	// to the measure, so both signatures collapse before the join.
	fold := NewFolder(opts.FoldCase, opts.FoldDiacritics)

	o11 := make(map[string]int)
	for _, it := range target.Items {
		if it.Count < opts.MinFreq {
			continue
		}
		o11[fold(it.Value)] += it.Count
	}

	o21 := make(map[string]int)
	for _, it := range reference.Items {
		o21[fold(it.Value)] += it.Count
	}

	rows := make([]Row, 0, len(o11))
	for item, f1 := range o11 {
		f2 := o21[item] // absent reference counts fill with 0

		row := Row{
			Item: item,
			O11:  f1,
			O12:  r1 - f1,
			O21:  f2,
			O22:  r2 - f2,
		}
		e11, _, _, _ := Expected(float64(row.O11), float64(row.O12), float64(row.O21), float64(row.O22))
		row.E11 = e11

		if !opts.KeepNegative && float64(row.O11) < e11 {
			continue
		}

		row.Scores = make(map[string]float64, len(Measures))
		for name, fn := range Measures {
			row.Scores[name] = fn(float64(row.O11), float64(row.O12), float64(row.O21), float64(row.O22))
		}
		row.Score = measure(float64(row.O11), float64(row.O12), float64(row.O21), float64(row.O22))

		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		if rows[i].O11 != rows[j].O11 {
			return rows[i].O11 > rows[j].O11
		}
		return rows[i].Item < rows[j].Item
	})

	if opts.Cutoff > 0 && len(rows) > opts.Cutoff {
		rows = rows[:opts.Cutoff]
	}

	if opts.Digits >= 0 {
		for i := range rows {
			rows[i].E11 = round(rows[i].E11, opts.Digits)
			rows[i].Score = round(rows[i].Score, opts.Digits)
			for name, v := range rows[i].Scores {
				rows[i].Scores[name] = round(v, opts.Digits)
			}
		}
	}

	return &Table{Measure: opts.Measure, R1: r1, R2: r2, Rows: rows}, nil
}

func round(x float64, digits int) float64 {
	p := math.Pow10(digits)
	return math.Round(x*p) / p
}
