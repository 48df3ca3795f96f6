package spans

import (
	"fmt"
	"sort"

	"cqb/internal/errors"
)

// Unset is the sentinel for absent anchors and context fields. Corpus
// positions are never negative, so -1 is unambiguously "not set" and
// distinct from an anchor at position 0.
const Unset = -1

// Row is one query match: the defining (match, matchend) interval, optional
// anchor points 0-9, and optional context fields.
type Row struct {
	Match    int `json:"match"`
	MatchEnd int `json:"matchend"`

	// Anchors maps anchor slot to corpus position; missing slots are Unset
	Anchors map[int]int `json:"anchors,omitempty"`

	// Context fields; Unset when context has not been attached
	Context    int `json:"context"`
	ContextEnd int `json:"contextend"`
	ContextID  int `json:"contextid"`
}

// NewRow creates a row with all optional fields unset
func NewRow(match, matchEnd int) Row {
	return Row{
		Match:      match,
		MatchEnd:   matchEnd,
		Context:    Unset,
		ContextEnd: Unset,
		ContextID:  Unset,
	}
}

// Anchor returns the position for an anchor slot, or Unset
func (r Row) Anchor(slot int) int {
	if r.Anchors == nil {
		return Unset
	}
	if v, ok := r.Anchors[slot]; ok {
		return v
	}
	return Unset
}

// HasContext reports whether context fields have been attached
func (r Row) HasContext() bool {
	return r.Context != Unset && r.ContextEnd != Unset
}

// Bounds returns the interval anchors are validated against: the context
// interval when present, the match interval otherwise.
func (r Row) Bounds() (int, int) {
	if r.HasContext() {
		return r.Context, r.ContextEnd
	}
	return r.Match, r.MatchEnd
}

// clone returns a deep copy of the row
func (r Row) clone() Row {
	c := r
	if r.Anchors != nil {
		c.Anchors = make(map[int]int, len(r.Anchors))
		for k, v := range r.Anchors {
			c.Anchors[k] = v
		}
	}
	return c
}

// Table is a keyed collection of rows, sorted by match position. Tables are
// treated as immutable once built: operations that change rows return a new
// table so cached copies stay reusable.
type Table struct {
	// AnchorSlots lists which anchor slots carry values, ascending
	AnchorSlots []int `json:"anchorSlots,omitempty"`
	Rows        []Row `json:"rows"`
}

// Empty reports whether the table has no rows
func (t *Table) Empty() bool {
	return len(t.Rows) == 0
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	c := &Table{}
	if t.AnchorSlots != nil {
		c.AnchorSlots = append([]int(nil), t.AnchorSlots...)
	}
	c.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		c.Rows[i] = r.clone()
	}
	return c
}

// Sort orders rows by match, then matchend
func (t *Table) Sort() {
	sort.Slice(t.Rows, func(i, j int) bool {
		if t.Rows[i].Match != t.Rows[j].Match {
			return t.Rows[i].Match < t.Rows[j].Match
		}
		return t.Rows[i].MatchEnd < t.Rows[j].MatchEnd
	})
}

// Validate checks the single-query-result invariants: match <= matchend per
// row, rows sorted by match, no duplicate (match, matchend) keys, and no
// overlap between consecutive spans.
func (t *Table) Validate() error {
	prevEnd := -1
	prevMatch := -1
	for i, r := range t.Rows {
		if r.Match > r.MatchEnd {
			return errors.Newf(errors.Parse, "row %d: match %d exceeds matchend %d", i, r.Match, r.MatchEnd)
		}
		if r.Match < prevMatch {
			return errors.Newf(errors.Parse, "row %d: table not sorted by match", i)
		}
		if r.Match == prevMatch && i > 0 && r.MatchEnd == t.Rows[i-1].MatchEnd {
			return errors.Newf(errors.Parse, "row %d: duplicate span (%d, %d)", i, r.Match, r.MatchEnd)
		}
		if r.Match <= prevEnd && i > 0 {
			return errors.Newf(errors.Parse, "row %d: span (%d, %d) overlaps previous end %d", i, r.Match, r.MatchEnd, prevEnd)
		}
		prevMatch = r.Match
		prevEnd = r.MatchEnd
	}
	return nil
}

// Restrict returns a copy of the table keeping only the given anchor slots.
// Slots the table never carried are dropped silently; the order of slots is
// preserved as requested.
func (t *Table) Restrict(slots []int) *Table {
	c := &Table{Rows: make([]Row, len(t.Rows))}
	keep := make(map[int]bool, len(slots))
	for _, s := range slots {
		for _, have := range t.AnchorSlots {
			if s == have {
				keep[s] = true
				c.AnchorSlots = append(c.AnchorSlots, s)
				break
			}
		}
	}
	sort.Ints(c.AnchorSlots)
	for i, r := range t.Rows {
		nr := r.clone()
		if nr.Anchors != nil {
			for slot := range nr.Anchors {
				if !keep[slot] {
					delete(nr.Anchors, slot)
				}
			}
			if len(nr.Anchors) == 0 {
				nr.Anchors = nil
			}
		}
		c.Rows[i] = nr
	}
	return c
}

// Join merges anchor values from other into a copy of t, matching rows by
// (match, matchend) key. Rows of other without a partner in t are dropped;
// rows of t without a partner keep Unset for the joined slots, so the row
// count of the result always equals t's.
func (t *Table) Join(other *Table, slots ...int) *Table {
	c := t.Clone()

	type key struct{ m, e int }
	index := make(map[key]Row, len(other.Rows))
	for _, r := range other.Rows {
		index[key{r.Match, r.MatchEnd}] = r
	}

	slotSet := make(map[int]bool, len(c.AnchorSlots))
	for _, s := range c.AnchorSlots {
		slotSet[s] = true
	}
	for _, s := range slots {
		if !slotSet[s] {
			c.AnchorSlots = append(c.AnchorSlots, s)
			slotSet[s] = true
		}
	}
	sort.Ints(c.AnchorSlots)

	for i := range c.Rows {
		row := &c.Rows[i]
		partner, ok := index[key{row.Match, row.MatchEnd}]
		for _, s := range slots {
			v := Unset
			if ok {
				v = partner.Anchor(s)
			}
			if row.Anchors == nil {
				row.Anchors = make(map[int]int, len(slots))
			}
			row.Anchors[s] = v
		}
	}
	return c
}

// String renders a short summary for logs
func (t *Table) String() string {
	return fmt.Sprintf("spans.Table{rows: %d, anchors: %v}", len(t.Rows), t.AnchorSlots)
}
