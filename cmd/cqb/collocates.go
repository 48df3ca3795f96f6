package main

import (
	"github.com/spf13/cobra"

	"cqb/internal/count"
	"cqb/internal/dump"
	"cqb/internal/score"
)

var (
	collWindow    int
	collBoundary  string
	collAttribute string
	collMeasure   string
	collMinFreq   int
	collCutoff    int
	collDigits    int
	collFoldCase  bool
	collFoldDia   bool
	collNegative  bool
)

var collocatesCmd = &cobra.Command{
	Use:   "collocates <pattern>",
	Short: "Rank the vocabulary co-occurring with a pattern",
	Long: `Run a pattern query, collect the tokens in a window around every match,
and rank them against the corpus-wide frequency signature with an
association measure.

Examples:
  cqb collocates '[lemma="cause"]'
  cqb collocates '"climate"' --window=10 --attribute=lemma --measure=log-ratio
  cqb collocates '"risk"' --min-freq=5 --cutoff=50 --fold-case`,
	Args: cobra.ExactArgs(1),
	RunE: runCollocates,
}

func init() {
	collocatesCmd.Flags().IntVar(&collWindow, "window", -1, "Window size in tokens on each side (default from profile)")
	collocatesCmd.Flags().StringVar(&collBoundary, "boundary", "", "Structural attribute windows may not cross (default from profile)")
	collocatesCmd.Flags().StringVar(&collAttribute, "attribute", "lemma", "Positional attribute to count")
	collocatesCmd.Flags().StringVar(&collMeasure, "measure", "", "Association measure (default from config)")
	collocatesCmd.Flags().IntVar(&collMinFreq, "min-freq", -1, "Minimum window frequency (default from config)")
	collocatesCmd.Flags().IntVar(&collCutoff, "cutoff", -1, "Maximum number of rows (default from config)")
	collocatesCmd.Flags().IntVar(&collDigits, "digits", -1, "Decimal digits for rounding (default from config)")
	collocatesCmd.Flags().BoolVar(&collFoldCase, "fold-case", false, "Case-fold items before aggregation")
	collocatesCmd.Flags().BoolVar(&collFoldDia, "fold-diacritics", false, "Strip diacritics before aggregation")
	collocatesCmd.Flags().BoolVar(&collNegative, "negative", false, "Keep anti-associated items")
	rootCmd.AddCommand(collocatesCmd)
}

func runCollocates(cmd *cobra.Command, args []string) error {
	s, err := newSession(true)
	if err != nil {
		return err
	}
	defer s.close()

	profile := s.profile()
	if collWindow < 0 {
		collWindow = profile.ContextLeft
	}
	if collBoundary == "" {
		collBoundary = profile.ContextBreak
	}
	if err := checkProfile(profile, []string{collAttribute}, collBoundary); err != nil {
		return err
	}

	table, err := s.dumps.FromQuery(dump.Query{Pattern: args[0], Boundary: collBoundary})
	if err != nil {
		return err
	}
	table, err = s.dumps.ToContext(table, dump.ContextSpec{
		Left:     collWindow,
		Right:    collWindow,
		Boundary: collBoundary,
	})
	if err != nil {
		return err
	}

	target, err := s.counts.Windows(table, count.Options{
		Attributes: []string{collAttribute},
		Split:      true,
		Strategy:   count.PerPosition,
	})
	if err != nil {
		return err
	}

	reference, err := s.counts.Marginals([]string{collAttribute})
	if err != nil {
		return err
	}

	scored, err := score.Score(target, reference, 0, 0, scoreOptions(s, collMeasure, collMinFreq, collCutoff, collDigits, collFoldCase, collFoldDia, collNegative))
	if err != nil {
		return err
	}

	return printJSON(map[string]interface{}{
		"corpus":    s.corpus,
		"pattern":   args[0],
		"matches":   table.Len(),
		"attribute": collAttribute,
		"result":    scored,
	})
}

// scoreOptions resolves scoring flags against the configured defaults
func scoreOptions(s *session, measure string, minFreq, cutoff, digits int, foldCase, foldDia, negative bool) score.Options {
	opts := score.Options{
		Measure:        s.cfg.Score.Measure,
		MinFreq:        s.cfg.Score.MinFreq,
		Cutoff:         s.cfg.Score.Cutoff,
		Digits:         s.cfg.Score.Digits,
		FoldCase:       s.cfg.Score.FoldCase || foldCase,
		FoldDiacritics: s.cfg.Score.FoldDiacritics || foldDia,
		KeepNegative:   negative,
	}
	if measure != "" {
		opts.Measure = measure
	}
	if minFreq >= 0 {
		opts.MinFreq = minFreq
	}
	if cutoff >= 0 {
		opts.Cutoff = cutoff
	}
	if digits >= 0 {
		opts.Digits = digits
	}
	return opts
}
