package spans

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"cqb/internal/errors"
)

// DumpRow is one row of the engine's dump table: the span plus the two
// anchor registers the engine tracks natively. Target and Keyword are Unset
// when the dump carried fewer than four columns.
type DumpRow struct {
	Match    int
	MatchEnd int
	Target   int
	Keyword  int
}

// ParseDump parses the tab-separated integer table the engine emits for a
// dump command. Every row must carry the same number of columns, between two
// and four, in the fixed order (match, matchend[, target[, keyword]]).
func ParseDump(text string) ([]DumpRow, error) {
	var rows []DumpRow
	width := 0
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 || len(fields) > 4 {
			return nil, errors.Newf(errors.Parse, "dump line %d: expected 2-4 columns, got %d", i+1, len(fields))
		}
		if width == 0 {
			width = len(fields)
		} else if len(fields) != width {
			return nil, errors.Newf(errors.Parse, "dump line %d: expected %d columns, got %d", i+1, width, len(fields))
		}

		vals := make([]int, len(fields))
		for j, f := range fields {
			v, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return nil, errors.New(errors.Parse, fmt.Sprintf("dump line %d: column %d is not an integer", i+1, j+1), err)
			}
			vals[j] = v
		}

		row := DumpRow{Match: vals[0], MatchEnd: vals[1], Target: Unset, Keyword: Unset}
		if len(vals) > 2 {
			row.Target = vals[2]
		}
		if len(vals) > 3 {
			row.Keyword = vals[3]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteUndump serializes rows in the shape the engine's undump command
// expects: a row-count line followed by one tab-separated line per span.
// Anchors are included only when withAnchors is set (four-column form).
func WriteUndump(w io.Writer, rows []DumpRow, withAnchors bool) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%d\n", len(rows)); err != nil {
		return err
	}
	for _, r := range rows {
		var err error
		if withAnchors {
			_, err = fmt.Fprintf(bw, "%d\t%d\t%d\t%d\n", r.Match, r.MatchEnd, r.Target, r.Keyword)
		} else {
			_, err = fmt.Fprintf(bw, "%d\t%d\n", r.Match, r.MatchEnd)
		}
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// FromDumpRows builds a table from raw dump rows, mapping the engine's
// target and keyword registers onto the given anchor slots. A slot of Unset
// drops that register.
func FromDumpRows(rows []DumpRow, targetSlot, keywordSlot int) *Table {
	t := &Table{Rows: make([]Row, len(rows))}
	if targetSlot != Unset {
		t.AnchorSlots = append(t.AnchorSlots, targetSlot)
	}
	if keywordSlot != Unset {
		t.AnchorSlots = append(t.AnchorSlots, keywordSlot)
	}
	sort.Ints(t.AnchorSlots)
	for i, dr := range rows {
		r := NewRow(dr.Match, dr.MatchEnd)
		if targetSlot != Unset || keywordSlot != Unset {
			r.Anchors = make(map[int]int, 2)
			if targetSlot != Unset {
				r.Anchors[targetSlot] = dr.Target
			}
			if keywordSlot != Unset {
				r.Anchors[keywordSlot] = dr.Keyword
			}
		}
		t.Rows[i] = r
	}
	t.Sort()
	return t
}

// ToDumpRows converts a table back to raw dump rows, reading the given
// anchor slots into the target and keyword registers.
func (t *Table) ToDumpRows(targetSlot, keywordSlot int) []DumpRow {
	rows := make([]DumpRow, len(t.Rows))
	for i, r := range t.Rows {
		dr := DumpRow{Match: r.Match, MatchEnd: r.MatchEnd, Target: Unset, Keyword: Unset}
		if targetSlot != Unset {
			dr.Target = r.Anchor(targetSlot)
		}
		if keywordSlot != Unset {
			dr.Keyword = r.Anchor(keywordSlot)
		}
		rows[i] = dr
	}
	return rows
}
