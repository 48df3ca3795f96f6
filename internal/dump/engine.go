package dump

import (
	"encoding/json"
	"fmt"
	"strings"

	"cqb/internal/corpus"
	"cqb/internal/cqp"
	"cqb/internal/errors"
	"cqb/internal/logging"
	"cqb/internal/spans"
	"cqb/internal/store"
)

// Query describes one pattern request
type Query struct {
	// Pattern is the query in the engine's pattern grammar
	Pattern string
	// Boundary scopes matches with "within <boundary>" when non-empty
	Boundary string
	// Anchors lists the anchor slots (0-9) to extract
	Anchors []int
	// MatchStrategy selects the engine's matching strategy ("standard",
	// "longest", ...); empty leaves the engine default untouched
	MatchStrategy string
	// PropagateError returns the engine's raw error text instead of an
	// empty table when the pattern is rejected
	PropagateError bool
}

// Runner is the slice of the process client the dump engine needs. It is
// satisfied by *cqp.Client.
type Runner interface {
	Exec(command string) (string, error)
	SetOption(name, value string)
	Activate(name string) error
	SubcorpusSize(name string) (int, error)
	QueryLocked(query string) error
	Dump(name string, first, last int) ([]spans.DumpRow, error)
	Undump(name string, rows []spans.DumpRow, withAnchors bool) error
}

var _ Runner = (*cqp.Client)(nil)

// Engine turns one logical query into a fully resolved span table: it runs
// the pattern through the process client, assembles anchors across passes,
// and memoizes results in the store.
type Engine struct {
	client Runner
	store  *store.Store
	attrs  corpus.Attributes
	logger *logging.Logger

	// corpusName is the root corpus; subcorpus scopes queries when set
	corpusName    string
	subcorpus     string
	subcorpusSize int
}

// NewEngine creates a dump engine over one client and corpus
func NewEngine(client Runner, st *store.Store, attrs corpus.Attributes, corpusName string, logger *logging.Logger) *Engine {
	return &Engine{
		client:     client,
		store:      st,
		attrs:      attrs,
		logger:     logger,
		corpusName: corpusName,
	}
}

// UseSubcorpus activates a named result set as the query scope. Its size is
// recorded so that cache keys distinguish a re-built subcorpus from a stale
// one of the same name.
func (e *Engine) UseSubcorpus(name string) error {
	if err := e.client.Activate(name); err != nil {
		return err
	}
	size, err := e.client.SubcorpusSize(name)
	if err != nil {
		return err
	}
	e.subcorpus = name
	e.subcorpusSize = size
	return nil
}

// scope is the name queries are currently scoped to
func (e *Engine) scope() string {
	if e.subcorpus != "" {
		return e.subcorpus
	}
	return e.corpusName
}

// queryKey fingerprints every parameter that affects the result
func (e *Engine) queryKey(q Query) string {
	return store.NewFingerprinter().
		Field("dump").
		Field(e.corpusName).
		Field(e.subcorpus).
		Int(e.subcorpusSize).
		Field(q.Pattern).
		Field(q.Boundary).
		Field(q.MatchStrategy).
		Ints(q.Anchors).
		Sum()
}

// resultName derives the engine-side result-set name from the cache key.
// Names are capabilities scoped to one client: deriving them from the
// fingerprint keeps logically distinct requests from colliding in the
// engine's shared namespace.
func resultName(key string) string {
	return "QD" + strings.ToUpper(key[:10])
}

// FromQuery produces the span table for one query. On a cache hit no engine
// pass runs at all. A pattern the engine rejects yields an empty table and
// a log entry by default; with PropagateError set, the raw engine text
// comes back as the error instead.
func (e *Engine) FromQuery(q Query) (*spans.Table, error) {
	key := e.queryKey(q)
	if data, hit, err := e.store.Get(key); err == nil && hit {
		var t spans.Table
		if err := json.Unmarshal(data, &t); err == nil {
			e.logger.Debug("dump cache hit", map[string]interface{}{"key": key})
			return &t, nil
		}
		// Undecodable entry: drop it and recompute
		_ = e.store.Delete(key)
	}

	t, err := e.runQuery(q, key)
	if err != nil {
		if errors.HasCode(err, errors.Engine) && !q.PropagateError {
			e.logger.Warn("query rejected by engine", map[string]interface{}{
				"pattern": q.Pattern,
				"error":   err.Error(),
			})
			return &spans.Table{}, nil
		}
		return nil, err
	}

	if data, err := json.Marshal(t); err == nil {
		if err := e.store.Set(key, data); err != nil {
			e.logger.Warn("cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return t, nil
}

// runQuery executes the base pass and any extra anchor passes. The engine
// tracks only two anchor registers at a time, so anchors beyond the native
// pair {0, 1} need ceil(k/2) additional passes, each scoped to the match
// set the base pass found; the scoping keeps the passes fast and guarantees
// identical row cardinality across passes.
func (e *Engine) runQuery(q Query, key string) (*spans.Table, error) {
	name := resultName(key)

	if q.MatchStrategy != "" {
		e.client.SetOption("MatchingStrategy", q.MatchStrategy)
	}

	within := ""
	if q.Boundary != "" {
		within = " within " + q.Boundary
	}

	// Base pass with the native anchor pair
	if _, err := e.client.Exec("set ant 0; set ank 1;"); err != nil {
		return nil, err
	}
	if err := e.client.QueryLocked(fmt.Sprintf("%s = %s%s;", name, q.Pattern, within)); err != nil {
		return nil, err
	}
	rows, err := e.client.Dump(name, -1, -1)
	if err != nil {
		return nil, err
	}
	table := spans.FromDumpRows(rows, 0, 1)
	if table.Empty() {
		return table.Restrict(q.Anchors), nil
	}

	// Extra passes for the remaining anchors, in pairs
	var rest []int
	for _, a := range q.Anchors {
		if a != 0 && a != 1 {
			rest = append(rest, a)
		}
	}

	if len(rest) > 0 {
		// Scope the re-runs to exactly the matches already found
		if err := e.client.Activate(name); err != nil {
			return nil, err
		}
		for i := 0; i < len(rest); i += 2 {
			target := rest[i]
			keyword := spans.Unset
			ankSlot := target
			if i+1 < len(rest) {
				keyword = rest[i+1]
				ankSlot = keyword
			}
			if _, err := e.client.Exec(fmt.Sprintf("set ant %d; set ank %d;", target, ankSlot)); err != nil {
				return nil, err
			}
			passName := fmt.Sprintf("%sP%d", name, i/2)
			if err := e.client.QueryLocked(fmt.Sprintf("%s = %s%s;", passName, q.Pattern, within)); err != nil {
				return nil, err
			}
			passRows, err := e.client.Dump(passName, -1, -1)
			if err != nil {
				return nil, err
			}
			pass := spans.FromDumpRows(passRows, target, keyword)
			if keyword != spans.Unset {
				table = table.Join(pass, target, keyword)
			} else {
				table = table.Join(pass, target)
			}
		}
		// Restore the previous query scope
		if err := e.client.Activate(e.scope()); err != nil {
			return nil, err
		}
	}

	out := table.Restrict(q.Anchors)
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Define feeds a span table back into the engine as a named result set and
// returns the name, so counting passes can reuse it. The name is derived
// from a fingerprint of the seed and the corpus, never a literal.
func (e *Engine) Define(t *spans.Table, seed string) (string, error) {
	key := store.NewFingerprinter().
		Field("undump").
		Field(e.corpusName).
		Field(seed).
		Sum()
	name := resultName(key)
	if err := e.client.Undump(name, t.ToDumpRows(spans.Unset, spans.Unset), false); err != nil {
		return "", err
	}
	return name, nil
}
