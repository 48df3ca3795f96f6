package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"cqb/internal/config"
)

var (
	initCorpus   string
	initRegistry string
	initForce    bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .cqb configuration and a corpus profile",
	Long: `Write a default configuration to .cqb/config.json and a corpus profile
to .cqb/<corpus>.toml. Edit the profile to match the corpus's indexed
attributes.

Example:
  cqb init --corpus=BNC --registry=/corpora/registry`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initCorpus, "corpus", "", "Corpus name as known to the engine registry (required)")
	initCmd.Flags().StringVar(&initRegistry, "registry", "", "Registry directory for the engine")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration")
	_ = initCmd.MarkFlagRequired("corpus")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	existing, err := config.LoadConfig(rootFlag)
	if err == nil && existing.Corpus != "" && !initForce {
		return fmt.Errorf("configuration already exists (corpus %s); use --force to overwrite", existing.Corpus)
	}

	cfg := config.DefaultConfig()
	cfg.Corpus = initCorpus
	if initRegistry != "" {
		cfg.Registry = initRegistry
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(rootFlag); err != nil {
		return err
	}

	profilePath := filepath.Join(rootFlag, ".cqb", initCorpus+".toml")
	if err := config.DefaultProfile(initCorpus).Save(profilePath); err != nil {
		return err
	}

	fmt.Printf("Initialized CQB for corpus %s\n", initCorpus)
	fmt.Printf("  config:  %s\n", filepath.Join(rootFlag, ".cqb", "config.json"))
	fmt.Printf("  profile: %s\n", profilePath)
	return nil
}
