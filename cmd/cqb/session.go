package main

import (
	"fmt"
	"path/filepath"
	"time"

	"cqb/internal/config"
	"cqb/internal/corpus"
	"cqb/internal/count"
	"cqb/internal/cqp"
	"cqb/internal/dump"
	"cqb/internal/logging"
	"cqb/internal/store"
)

// session bundles everything one command invocation needs: configuration,
// the engine client, the cache store, and the derived engines.
type session struct {
	cfg    *config.Config
	logger *logging.Logger
	client *cqp.Client
	store  *store.Store
	attrs  *corpus.Decoder
	dumps  *dump.Engine
	counts *count.Engine
	corpus string
}

// newSession loads the configuration and opens the store; the engine
// process is spawned only when withEngine is set, since some commands
// (init, status without --probe) never talk to it.
func newSession(withEngine bool) (*session, error) {
	cfg, err := config.LoadConfig(rootFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	logger := logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.ParseLevel(level),
	})

	corpusName := cfg.Corpus
	if corpusFlag != "" {
		corpusName = corpusFlag
	}
	if corpusName == "" {
		return nil, fmt.Errorf("no corpus configured; pass --corpus or run cqb init")
	}

	cachePath := cfg.Cache.Path
	if cachePath != "" && !filepath.IsAbs(cachePath) {
		cachePath = filepath.Join(rootFlag, cachePath)
	}
	st, err := store.Open(cachePath, cfg.Cache.Compress, logger)
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:    cfg,
		logger: logger,
		store:  st,
		corpus: corpusName,
	}
	s.attrs = corpus.NewDecoder(cfg.Registry, corpusName, logger)
	s.counts = count.NewEngine(s.attrs, st, cfg.Engine.Scanner, cfg.Registry, corpusName, logger)

	if withEngine {
		client, err := cqp.Spawn(cfg.Engine.Binary, cqp.Options{
			Registry:      cfg.Registry,
			Timeout:       time.Duration(cfg.Engine.TimeoutSeconds) * time.Second,
			TimeoutFactor: cfg.Engine.TimeoutFactor,
			PollInterval:  time.Duration(cfg.Engine.PollSeconds) * time.Second,
			InitOptions:   cfg.Engine.Options,
		}, logger)
		if err != nil {
			st.Close()
			return nil, err
		}
		if err := client.Activate(corpusName); err != nil {
			client.Shutdown()
			st.Close()
			return nil, err
		}
		s.client = client
		s.dumps = dump.NewEngine(client, st, s.attrs, corpusName, logger)
	}

	return s, nil
}

func (s *session) close() {
	if s.client != nil {
		s.client.Shutdown()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}

// checkProfile rejects requests for attributes the corpus profile does not
// declare, so a typo fails here instead of as an opaque engine error
func checkProfile(p *config.CorpusProfile, positional []string, boundary string) error {
	for _, attr := range positional {
		if !p.HasPositional(attr) {
			return fmt.Errorf("attribute %q is not declared for corpus %s (have %v)",
				attr, p.Name, p.PositionalAttributes)
		}
	}
	if boundary != "" && !p.HasStructural(boundary) {
		return fmt.Errorf("boundary %q is not declared for corpus %s (have %v)",
			boundary, p.Name, p.StructuralAttributes)
	}
	return nil
}

// profile loads the corpus profile when one exists next to the config
func (s *session) profile() *config.CorpusProfile {
	path := filepath.Join(rootFlag, ".cqb", s.corpus+".toml")
	p, err := config.LoadProfile(path)
	if err != nil {
		s.logger.Debug("no corpus profile", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return config.DefaultProfile(s.corpus)
	}
	return p
}
