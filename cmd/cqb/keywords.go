package main

import (
	"github.com/spf13/cobra"

	"cqb/internal/count"
	"cqb/internal/dump"
	"cqb/internal/score"
)

var (
	kwAttribute string
	kwReference string
	kwBoundary  string
	kwMeasure   string
	kwMinFreq   int
	kwCutoff    int
	kwDigits    int
	kwFoldCase  bool
	kwFoldDia   bool
	kwNegative  bool
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords <pattern>",
	Short: "Rank the vocabulary distinguishing a match set from a reference",
	Long: `Run a pattern query, count the attribute values inside the matches, and
rank them against a reference frequency signature (by default the whole
corpus; --reference compares against another corpus).

Examples:
  cqb keywords '<speech>[]*</speech>' --attribute=lemma
  cqb keywords '[pos="NN"]' --reference=REFERENCE_CORPUS --measure=log-ratio`,
	Args: cobra.ExactArgs(1),
	RunE: runKeywords,
}

func init() {
	keywordsCmd.Flags().StringVar(&kwAttribute, "attribute", "lemma", "Positional attribute to count")
	keywordsCmd.Flags().StringVar(&kwReference, "reference", "", "Reference corpus for the comparison signature")
	keywordsCmd.Flags().StringVar(&kwBoundary, "boundary", "", "Structural attribute to scope matches with")
	keywordsCmd.Flags().StringVar(&kwMeasure, "measure", "", "Association measure (default from config)")
	keywordsCmd.Flags().IntVar(&kwMinFreq, "min-freq", -1, "Minimum target frequency (default from config)")
	keywordsCmd.Flags().IntVar(&kwCutoff, "cutoff", -1, "Maximum number of rows (default from config)")
	keywordsCmd.Flags().IntVar(&kwDigits, "digits", -1, "Decimal digits for rounding (default from config)")
	keywordsCmd.Flags().BoolVar(&kwFoldCase, "fold-case", false, "Case-fold items before aggregation")
	keywordsCmd.Flags().BoolVar(&kwFoldDia, "fold-diacritics", false, "Strip diacritics before aggregation")
	keywordsCmd.Flags().BoolVar(&kwNegative, "negative", false, "Keep anti-associated items")
	rootCmd.AddCommand(keywordsCmd)
}

func runKeywords(cmd *cobra.Command, args []string) error {
	s, err := newSession(true)
	if err != nil {
		return err
	}
	defer s.close()

	if err := checkProfile(s.profile(), []string{kwAttribute}, kwBoundary); err != nil {
		return err
	}

	table, err := s.dumps.FromQuery(dump.Query{Pattern: args[0], Boundary: kwBoundary})
	if err != nil {
		return err
	}

	target, err := s.counts.Matches(table, false, count.Options{
		Attributes: []string{kwAttribute},
		Split:      true,
		Strategy:   count.PerPosition,
	})
	if err != nil {
		return err
	}

	refCounts := s.counts
	refCorpus := s.corpus
	if kwReference != "" {
		refCorpus = kwReference
		refCounts = count.NewEngine(nil, s.store, s.cfg.Engine.Scanner, s.cfg.Registry, kwReference, s.logger)
	}
	reference, err := refCounts.Marginals([]string{kwAttribute})
	if err != nil {
		return err
	}

	scored, err := score.Score(target, reference, 0, 0, scoreOptions(s, kwMeasure, kwMinFreq, kwCutoff, kwDigits, kwFoldCase, kwFoldDia, kwNegative))
	if err != nil {
		return err
	}

	return printJSON(map[string]interface{}{
		"corpus":    s.corpus,
		"reference": refCorpus,
		"pattern":   args[0],
		"matches":   table.Len(),
		"attribute": kwAttribute,
		"result":    scored,
	})
}
