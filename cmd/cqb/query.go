package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cqb/internal/concord"
	"cqb/internal/dump"
	"cqb/internal/library"
)

var (
	queryBoundary  string
	queryAnchors   string
	queryLeft      int
	queryRight     int
	queryAttribute string
	queryLimit     int
	queryName      string
	queryLibrary   string
	queryStrategy  string
	queryStrict    bool
	querySave      bool
	queryMacros    string
	queryWordlists []string
)

var queryCmd = &cobra.Command{
	Use:   "query [pattern]",
	Short: "Run a pattern query and show a concordance",
	Long: `Run a pattern query against the corpus and print the matching spans with
their surrounding context.

Examples:
  cqb query '[lemma="go"] [pos="RP"]?'
  cqb query '[word="in"] @0[pos="DT"]? [pos="NN"]' --anchors=0
  cqb query '"risk"' --left=10 --right=10 --boundary=s
  cqb query --name=negation --library=queries.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryBoundary, "boundary", "", "Structural attribute to clamp context against (default from profile)")
	queryCmd.Flags().StringVar(&queryAnchors, "anchors", "", "Anchor slots to extract (comma-separated, 0-9)")
	queryCmd.Flags().IntVar(&queryLeft, "left", -1, "Left context width in tokens")
	queryCmd.Flags().IntVar(&queryRight, "right", -1, "Right context width in tokens")
	queryCmd.Flags().StringVar(&queryAttribute, "attribute", "word", "Positional attribute to display")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 20, "Maximum number of concordance lines")
	queryCmd.Flags().StringVar(&queryName, "name", "", "Run a saved query from the library instead of a pattern argument")
	queryCmd.Flags().StringVar(&queryLibrary, "library", "", "Path to a YAML query library file or directory")
	queryCmd.Flags().StringVar(&queryStrategy, "strategy", "", "Engine matching strategy (standard, longest, shortest)")
	queryCmd.Flags().BoolVar(&queryStrict, "strict", false, "Fail on engine errors instead of returning an empty result")
	queryCmd.Flags().BoolVar(&querySave, "save", false, "Persist the result set in the engine's binary storage")
	queryCmd.Flags().StringVar(&queryMacros, "macros", "", "Load engine macro definitions from a file before querying")
	queryCmd.Flags().StringArrayVar(&queryWordlists, "wordlist", nil, "Load a word list as name=file (repeatable)")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	s, err := newSession(true)
	if err != nil {
		return err
	}
	defer s.close()

	q := dump.Query{
		Boundary:       queryBoundary,
		MatchStrategy:  queryStrategy,
		PropagateError: queryStrict,
	}
	corrections := map[int]int{}

	switch {
	case queryName != "":
		if queryLibrary == "" {
			return fmt.Errorf("--name requires --library")
		}
		var lib *library.Library
		if info, statErr := os.Stat(queryLibrary); statErr == nil && info.IsDir() {
			lib, err = library.LoadDir(queryLibrary)
		} else {
			lib, err = library.Load(queryLibrary)
		}
		if err != nil {
			return err
		}
		entry, ok := lib.Get(queryName)
		if !ok {
			return fmt.Errorf("no query named %q in %s", queryName, queryLibrary)
		}
		q.Pattern = entry.Pattern
		q.Anchors = entry.Anchors
		if entry.Boundary != "" && q.Boundary == "" {
			q.Boundary = entry.Boundary
		}
		if entry.ContextLeft != nil && queryLeft < 0 {
			queryLeft = *entry.ContextLeft
		}
		if entry.ContextRight != nil && queryRight < 0 {
			queryRight = *entry.ContextRight
		}
		corrections = entry.Corrections
	case len(args) == 1:
		q.Pattern = args[0]
		if q.Anchors, err = parseIntList(queryAnchors); err != nil {
			return err
		}
	default:
		return fmt.Errorf("either a pattern argument or --name is required")
	}

	profile := s.profile()
	if q.Boundary == "" {
		q.Boundary = profile.ContextBreak
	}
	if queryLeft < 0 {
		queryLeft = profile.ContextLeft
	}
	if queryRight < 0 {
		queryRight = profile.ContextRight
	}
	if err := checkProfile(profile, []string{queryAttribute}, q.Boundary); err != nil {
		return err
	}

	if queryMacros != "" {
		if err := s.client.DefineMacro(queryMacros); err != nil {
			return err
		}
	}
	for _, spec := range queryWordlists {
		name, path, ok := strings.Cut(spec, "=")
		if !ok {
			return fmt.Errorf("invalid word list %q, want name=file", spec)
		}
		if err := s.client.DefineWordList(name, path); err != nil {
			return err
		}
	}

	table, err := s.dumps.FromQuery(q)
	if err != nil {
		return err
	}

	table, err = s.dumps.ToContext(table, dump.ContextSpec{
		Left:     queryLeft,
		Right:    queryRight,
		Boundary: q.Boundary,
	})
	if err != nil {
		return err
	}

	if len(corrections) > 0 {
		table = dump.CorrectAnchors(table, corrections)
	}

	if querySave {
		name, err := s.dumps.Define(table, q.Pattern)
		if err != nil {
			return err
		}
		if err := s.client.SaveSubcorpus(name); err != nil {
			return err
		}
		s.logger.Info("result set persisted", map[string]interface{}{"name": name})
	}

	lines, err := concord.Build(table, s.attrs, queryAttribute, queryLimit)
	if err != nil {
		return err
	}

	return printJSON(map[string]interface{}{
		"corpus":  s.corpus,
		"matches": table.Len(),
		"lines":   lines,
	})
}
