package main

import (
	"github.com/spf13/cobra"
)

var statusProbe bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, cache and engine status",
	Long: `Show the active configuration, cache statistics and, with --probe, spawn
the engine once to verify the binary and its protocol version.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusProbe, "probe", false, "Spawn the engine to verify binary and version")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := newSession(statusProbe)
	if err != nil {
		return err
	}
	defer s.close()

	entries, sizeBytes, err := s.store.Stats()
	if err != nil {
		return err
	}

	out := map[string]interface{}{
		"corpus":   s.corpus,
		"registry": s.cfg.Registry,
		"engine":   s.cfg.Engine.Binary,
		"cache": map[string]interface{}{
			"enabled":   s.store.Enabled(),
			"entries":   entries,
			"sizeBytes": sizeBytes,
		},
	}
	if s.client != nil {
		out["engineVersion"] = s.client.Version()
		out["engineState"] = string(s.client.State())
	}
	return printJSON(out)
}
