package main

import (
	"github.com/spf13/cobra"

	"cqb/internal/count"
	"cqb/internal/dump"
)

var (
	freqAttributes string
	freqBoundary   string
	freqMWU        bool
	freqStrategy   string
	freqLimit      int
)

var frequenciesCmd = &cobra.Command{
	Use:   "frequencies <pattern>",
	Short: "Count attribute values over the matches of a pattern",
	Long: `Run a pattern query and produce a frequency table over the matched spans.

By default each matched token counts separately; --mwu counts every match
as one whitespace-joined multi-word item (per-position strategy only).

Examples:
  cqb frequencies '[pos="NN"]'
  cqb frequencies '[lemma="take"] []? [lemma="place"]' --mwu
  cqb frequencies '[pos="JJ"]' --attributes=word,pos --strategy=delegated`,
	Args: cobra.ExactArgs(1),
	RunE: runFrequencies,
}

func init() {
	frequenciesCmd.Flags().StringVar(&freqAttributes, "attributes", "", "Attributes to count, comma-separated (default from config)")
	frequenciesCmd.Flags().StringVar(&freqBoundary, "boundary", "", "Structural attribute to scope matches with")
	frequenciesCmd.Flags().BoolVar(&freqMWU, "mwu", false, "Count whole matches as multi-word items")
	frequenciesCmd.Flags().StringVar(&freqStrategy, "strategy", "", "Counting strategy: per-position or delegated")
	frequenciesCmd.Flags().IntVar(&freqLimit, "limit", 50, "Maximum number of items to print")
	rootCmd.AddCommand(frequenciesCmd)
}

func runFrequencies(cmd *cobra.Command, args []string) error {
	s, err := newSession(true)
	if err != nil {
		return err
	}
	defer s.close()

	attributes := parseStringList(freqAttributes)
	if len(attributes) == 0 {
		attributes = s.cfg.Count.Attributes
	}
	if err := checkProfile(s.profile(), attributes, freqBoundary); err != nil {
		return err
	}

	opts := count.Options{
		Attributes: attributes,
		Split:      !freqMWU,
		Strategy:   count.PerPosition,
	}
	if freqStrategy != "" {
		opts.Strategy = count.Strategy(freqStrategy)
	}

	table, err := s.dumps.FromQuery(dump.Query{Pattern: args[0], Boundary: freqBoundary})
	if err != nil {
		return err
	}

	freqs, err := s.counts.Matches(table, false, opts)
	if err != nil {
		return err
	}

	items := freqs.Items
	if freqLimit > 0 && len(items) > freqLimit {
		items = items[:freqLimit]
	}

	return printJSON(map[string]interface{}{
		"corpus":     s.corpus,
		"pattern":    args[0],
		"matches":    table.Len(),
		"attributes": freqs.Attributes,
		"total":      freqs.Total(),
		"items":      items,
	})
}
