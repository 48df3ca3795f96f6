package concord

import (
	"cqb/internal/corpus"
	"cqb/internal/spans"
)

// Token is one corpus position with its attribute value
type Token struct {
	Cpos  int    `json:"cpos"`
	Value string `json:"value"`
}

// Line is one concordance row: the tokens left of the match, the match
// itself, and the tokens to its right, within the row's context interval.
type Line struct {
	Match   int         `json:"match"`
	Left    []Token     `json:"left"`
	Node    []Token     `json:"node"`
	Right   []Token     `json:"right"`
	Anchors map[int]int `json:"anchors,omitempty"`
}

// Build assembles display rows from a context-resolved span table. Rows
// without context fields render the match tokens only. At most limit lines
// are built; limit <= 0 keeps everything.
func Build(t *spans.Table, attrs corpus.Attributes, attribute string, limit int) ([]Line, error) {
	n := t.Len()
	if limit > 0 && n > limit {
		n = limit
	}

	lines := make([]Line, 0, n)
	for _, row := range t.Rows[:n] {
		start, end := row.Match, row.MatchEnd
		if row.HasContext() {
			start, end = row.Context, row.ContextEnd
		}

		values, err := attrs.Values(attribute, start, end)
		if err != nil {
			return nil, err
		}

		line := Line{Match: row.Match}
		if len(row.Anchors) > 0 {
			line.Anchors = make(map[int]int, len(row.Anchors))
			for k, v := range row.Anchors {
				line.Anchors[k] = v
			}
		}
		for i, v := range values {
			tok := Token{Cpos: start + i, Value: v}
			switch {
			case tok.Cpos < row.Match:
				line.Left = append(line.Left, tok)
			case tok.Cpos > row.MatchEnd:
				line.Right = append(line.Right, tok)
			default:
				line.Node = append(line.Node, tok)
			}
		}
		lines = append(lines, line)
	}
	return lines, nil
}
