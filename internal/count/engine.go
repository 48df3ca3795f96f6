package count

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"cqb/internal/corpus"
	"cqb/internal/errors"
	"cqb/internal/logging"
	"cqb/internal/spans"
	"cqb/internal/store"
)

// Strategy selects how a frequency table is produced
type Strategy string

const (
	// PerPosition looks every position up through the attribute interface
	// and aggregates in memory. Required for multi-word-unit counting and
	// arbitrary attribute combinations.
	PerPosition Strategy = "per-position"
	// Delegated hands a range file to the external batch scanner. Faster,
	// but restricted to token-level (split) counting.
	Delegated Strategy = "delegated"
)

// Options describes one counting request
type Options struct {
	// Attributes to count; more than one yields whitespace-joined tuples
	Attributes []string
	// Split counts one token per position; unset joins each range into a
	// single multi-word item
	Split bool
	// Strategy is the counting strategy; there is no silent fallback, an
	// unsupported combination is an error
	Strategy Strategy
}

// Range is one inclusive corpus-position interval to count over
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Engine turns position ranges and match sets into frequency tables
type Engine struct {
	attrs      corpus.Attributes
	store      *store.Store
	logger     *logging.Logger
	Scanner    string // batch scanner binary
	Registry   string
	CorpusName string
}

// NewEngine creates a count engine
func NewEngine(attrs corpus.Attributes, st *store.Store, scanner, registry, corpusName string, logger *logging.Logger) *Engine {
	return &Engine{
		attrs:      attrs,
		store:      st,
		logger:     logger,
		Scanner:    scanner,
		Registry:   registry,
		CorpusName: corpusName,
	}
}

// Validate checks the request against the strategy capability matrix
func (e *Engine) Validate(opts Options) error {
	if len(opts.Attributes) == 0 {
		return errors.Newf(errors.ConfigInvalid, "at least one attribute is required")
	}
	switch opts.Strategy {
	case PerPosition:
		return nil
	case Delegated:
		if !opts.Split {
			return errors.Newf(errors.StrategyUnsupported,
				"the batch scanner counts token-level only; use %s for multi-word units", PerPosition)
		}
		if e.Scanner == "" {
			return errors.Newf(errors.StrategyUnsupported, "no batch scanner binary configured")
		}
		return nil
	default:
		return errors.Newf(errors.StrategyUnsupported, "unknown counting strategy %q", opts.Strategy)
	}
}

func (e *Engine) key(ranges []Range, opts Options) string {
	f := store.NewFingerprinter().
		Field("count").
		Field(e.CorpusName).
		Field(string(opts.Strategy)).
		Field(strconv.FormatBool(opts.Split))
	// Attribute order is semantic here: it fixes the tuple layout
	for _, a := range opts.Attributes {
		f.Field(a)
	}
	f.Int(len(opts.Attributes))
	for _, r := range ranges {
		f.Int(r.Start)
		f.Int(r.End)
	}
	f.Int(len(ranges))
	return f.Sum()
}

// Ranges counts attribute values over the given position ranges
func (e *Engine) Ranges(ranges []Range, opts Options) (*Table, error) {
	if err := e.Validate(opts); err != nil {
		return nil, err
	}

	key := e.key(ranges, opts)
	if data, hit, err := e.store.Get(key); err == nil && hit {
		var t Table
		if err := json.Unmarshal(data, &t); err == nil {
			return &t, nil
		}
		_ = e.store.Delete(key)
	}

	var t *Table
	var err error
	switch opts.Strategy {
	case PerPosition:
		t, err = e.perPosition(ranges, opts)
	case Delegated:
		t, err = e.delegated(ranges, opts)
	}
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(t); err == nil {
		if err := e.store.Set(key, data); err != nil {
			e.logger.Warn("cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return t, nil
}

// Matches counts over a span table, using the match intervals or, when
// useContext is set, the context intervals (rows without context fall back
// to their match interval).
func (e *Engine) Matches(t *spans.Table, useContext bool, opts Options) (*Table, error) {
	ranges := make([]Range, t.Len())
	for i, row := range t.Rows {
		if useContext && row.HasContext() {
			ranges[i] = Range{Start: row.Context, End: row.ContextEnd}
		} else {
			ranges[i] = Range{Start: row.Match, End: row.MatchEnd}
		}
	}
	return e.Ranges(ranges, opts)
}

// Windows counts over the collocation windows of a context-resolved span
// table: the context interval of every row minus the match interval, so
// node tokens never count as their own collocates. Rows without context
// contribute nothing.
func (e *Engine) Windows(t *spans.Table, opts Options) (*Table, error) {
	var ranges []Range
	for _, row := range t.Rows {
		if !row.HasContext() {
			continue
		}
		if row.Context < row.Match {
			ranges = append(ranges, Range{Start: row.Context, End: row.Match - 1})
		}
		if row.ContextEnd > row.MatchEnd {
			ranges = append(ranges, Range{Start: row.MatchEnd + 1, End: row.ContextEnd})
		}
	}
	return e.Ranges(ranges, opts)
}

// Marginals returns the whole-corpus frequency signature for the given
// attributes via the batch scanner (no range file means the full corpus).
func (e *Engine) Marginals(attributes []string) (*Table, error) {
	return e.Ranges(nil, Options{Attributes: attributes, Split: true, Strategy: Delegated})
}

// perPosition assembles items through attribute lookups, one range at a time
func (e *Engine) perPosition(ranges []Range, opts Options) (*Table, error) {
	counter := make(Counter)
	for _, r := range ranges {
		if r.Start > r.End {
			return nil, errors.Newf(errors.Internal, "invalid range [%d, %d]", r.Start, r.End)
		}

		// One lookup per attribute covers the whole range
		values := make([][]string, len(opts.Attributes))
		for ai, attr := range opts.Attributes {
			vals, err := e.attrs.Values(attr, r.Start, r.End)
			if err != nil {
				return nil, err
			}
			values[ai] = vals
		}

		n := r.End - r.Start + 1
		tokens := make([]string, n)
		for p := 0; p < n; p++ {
			if len(opts.Attributes) == 1 {
				tokens[p] = values[0][p]
			} else {
				parts := make([]string, len(opts.Attributes))
				for ai := range opts.Attributes {
					parts[ai] = values[ai][p]
				}
				tokens[p] = strings.Join(parts, " ")
			}
		}

		if opts.Split {
			for _, tok := range tokens {
				counter.Add(tok, 1)
			}
		} else {
			counter.Add(strings.Join(tokens, " "), 1)
		}
	}
	return counter.Table(opts.Attributes), nil
}

// delegated writes the ranges to a side-channel file and runs the batch
// scanner, parsing its "count TAB value..." stream
func (e *Engine) delegated(ranges []Range, opts Options) (*Table, error) {
	args := []string{"-r", e.Registry}

	if ranges != nil {
		f, err := os.CreateTemp("", "cqb-ranges-*.tsv")
		if err != nil {
			return nil, errors.New(errors.Internal, "cannot create range file", err)
		}
		defer os.Remove(f.Name())
		w := bufio.NewWriter(f)
		for _, r := range ranges {
			fmt.Fprintf(w, "%d\t%d\n", r.Start, r.End)
		}
		if err := w.Flush(); err != nil {
			f.Close()
			return nil, errors.New(errors.Internal, "cannot write range file", err)
		}
		if err := f.Close(); err != nil {
			return nil, errors.New(errors.Internal, "cannot close range file", err)
		}
		args = append(args, "-R", f.Name())
	}

	args = append(args, e.CorpusName)
	args = append(args, opts.Attributes...)

	cmd := exec.Command(e.Scanner, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.New(errors.Engine,
			fmt.Sprintf("batch scanner failed: %s", strings.TrimSpace(stderr.String())), err)
	}

	counter := make(Counter)
	scanner := bufio.NewScanner(&out)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, errors.Newf(errors.Parse, "malformed scanner line: %q", line)
		}
		n, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, errors.New(errors.Parse, fmt.Sprintf("scanner count is not an integer: %q", fields[0]), err)
		}
		counter.Add(strings.Join(fields[1:], " "), n)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return counter.Table(opts.Attributes), nil
}
