package main

import (
	"github.com/spf13/cobra"

	"cqb/internal/version"
)

var (
	// rootFlag is the working directory holding .cqb/
	rootFlag string
	// corpusFlag overrides the configured default corpus
	corpusFlag string
	// logLevelFlag overrides the configured log level
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "cqb",
	Short: "CQB - Corpus Query Backend",
	Long: `CQB (Corpus Query Backend) runs pattern queries against an indexed text
corpus through an external query engine, and turns the results into
concordances, frequency tables, and statistically ranked collocate and
keyword tables. Results are cached by parameter fingerprint.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("CQB version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", ".",
		"Working directory holding the .cqb configuration")
	rootCmd.PersistentFlags().StringVar(&corpusFlag, "corpus", "",
		"Corpus name (overrides the configured default)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn, error")
}
