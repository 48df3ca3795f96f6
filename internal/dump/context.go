package dump

import (
	"encoding/json"

	"cqb/internal/spans"
	"cqb/internal/store"
)

// ContextSpec describes how to expand spans into contexts. Left and Right
// are widths in tokens; negative means "not given" (the context edge then
// sticks to the match edge, or to the structural boundary when one is
// named). Boundary names a structural attribute to clamp against.
type ContextSpec struct {
	Left     int
	Right    int
	Boundary string
}

// ToContext attaches context fields to every row, returning a new table.
// Contexts are clamped to [0, corpusSize-1] and, when a boundary attribute
// is given, to the structural span enclosing the match position. Only the
// span containing `match` is consulted, never the one containing
// `matchend`; matches crossing a boundary keep the left span's limits.
// Existing columns are preserved unchanged, and applying the same spec to
// the output again yields identical context columns.
func (e *Engine) ToContext(t *spans.Table, spec ContextSpec) (*spans.Table, error) {
	key := e.contextKey(t, spec)
	if key != "" {
		if data, hit, err := e.store.Get(key); err == nil && hit {
			var cached spans.Table
			if err := json.Unmarshal(data, &cached); err == nil {
				e.logger.Debug("context cache hit", map[string]interface{}{"key": key})
				return &cached, nil
			}
			_ = e.store.Delete(key)
		}
	}

	size, err := e.attrs.Size()
	if err != nil {
		return nil, err
	}

	out := t.Clone()
	for i := range out.Rows {
		row := &out.Rows[i]

		left := row.Match
		if spec.Left >= 0 {
			left = row.Match - spec.Left
		}
		right := row.MatchEnd
		if spec.Right >= 0 {
			right = row.MatchEnd + spec.Right
		}
		contextID := spans.Unset

		if spec.Boundary != "" {
			s, ok, err := e.attrs.Enclosing(spec.Boundary, row.Match)
			if err != nil {
				return nil, err
			}
			if ok {
				contextID = s.ID
				if spec.Left >= 0 {
					left = max(row.Match-spec.Left, s.Start)
				} else {
					left = s.Start
				}
				if spec.Right >= 0 {
					right = min(row.MatchEnd+spec.Right, s.End)
				} else {
					right = s.End
				}
			}
		}

		row.Context = max(left, 0)
		row.ContextEnd = min(right, size-1)
		row.ContextID = contextID
	}

	if key != "" {
		if data, err := json.Marshal(out); err == nil {
			if err := e.store.Set(key, data); err != nil {
				e.logger.Warn("cache write failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
	return out, nil
}

// contextKey fingerprints the input table together with the context policy,
// so a context-resolved table is itself a cache entry. The table content is
// part of the key: identical spans under identical policy yield identical
// context columns.
func (e *Engine) contextKey(t *spans.Table, spec ContextSpec) string {
	data, err := json.Marshal(t)
	if err != nil {
		return ""
	}
	return store.NewFingerprinter().
		Field("context").
		Field(e.corpusName).
		Int(spec.Left).
		Int(spec.Right).
		Field(spec.Boundary).
		Field(string(data)).
		Sum()
}

// CorrectAnchors applies per-anchor integer offsets, invalidating any
// corrected value that falls outside its row's bounding interval (the
// context interval when present, the match interval otherwise). Returns a
// new table; corrections replace rather than mutate so cached copies stay
// valid.
func CorrectAnchors(t *spans.Table, corrections map[int]int) *spans.Table {
	out := t.Clone()
	for i := range out.Rows {
		row := &out.Rows[i]
		lo, hi := row.Bounds()
		for slot, offset := range corrections {
			v := row.Anchor(slot)
			if v == spans.Unset {
				continue
			}
			v += offset
			if v < lo || v > hi {
				v = spans.Unset
			}
			row.Anchors[slot] = v
		}
	}
	return out
}
