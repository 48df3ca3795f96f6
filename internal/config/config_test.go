package config

import (
	"os"
	"path/filepath"
	"testing"

	"cqb/internal/errors"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Engine.Binary != "cqp" {
		t.Errorf("engine.binary = %q", cfg.Engine.Binary)
	}
	if cfg.Engine.TimeoutSeconds != 900 {
		t.Errorf("engine.timeoutSeconds = %d", cfg.Engine.TimeoutSeconds)
	}
	if !cfg.Cache.Compress {
		t.Error("cache.compress should default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadConfigMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Engine.Binary != "cqp" || cfg.Version != 1 {
		t.Errorf("got %+v, want defaults", cfg)
	}
}

func TestConfigSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()

	cfg := DefaultConfig()
	cfg.Corpus = "BREXIT_V20161113"
	cfg.Registry = "/data/registry"
	cfg.Engine.TimeoutFactor = 2.5
	cfg.Score.Measure = "log-ratio"
	if err := cfg.Save(root); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got.Corpus != "BREXIT_V20161113" {
		t.Errorf("corpus = %q", got.Corpus)
	}
	if got.Registry != "/data/registry" {
		t.Errorf("registry = %q", got.Registry)
	}
	if got.Engine.TimeoutFactor != 2.5 {
		t.Errorf("timeoutFactor = %g", got.Engine.TimeoutFactor)
	}
	if got.Score.Measure != "log-ratio" {
		t.Errorf("measure = %q", got.Score.Measure)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty binary", func(c *Config) { c.Engine.Binary = "" }},
		{"empty registry", func(c *Config) { c.Registry = "" }},
		{"zero timeout", func(c *Config) { c.Engine.TimeoutSeconds = 0 }},
		{"negative factor", func(c *Config) { c.Engine.TimeoutFactor = -1 }},
		{"zero poll", func(c *Config) { c.Engine.PollSeconds = 0 }},
		{"negative minFreq", func(c *Config) { c.Score.MinFreq = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate accepted invalid config")
			}
			if !errors.HasCode(err, errors.ConfigInvalid) {
				t.Errorf("code = %q, want CONFIG_INVALID", errors.CodeOf(err))
			}
		})
	}
}

func TestProfileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "GERMAPARL.toml")

	p := DefaultProfile("GERMAPARL")
	p.PositionalAttributes = append(p.PositionalAttributes, "ner")
	p.ContextLeft = 10
	if err := p.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if got.Name != "GERMAPARL" {
		t.Errorf("name = %q", got.Name)
	}
	if !got.HasPositional("ner") || got.HasPositional("missing") {
		t.Errorf("positional attributes = %v", got.PositionalAttributes)
	}
	if !got.HasStructural("s") {
		t.Errorf("structural attributes = %v", got.StructuralAttributes)
	}
	if got.ContextLeft != 10 || got.ContextRight != 20 {
		t.Errorf("context = (%d, %d)", got.ContextLeft, got.ContextRight)
	}
}

func TestLoadProfileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	write(t, path, `
name = "TEST"
positional_attributes = ["word"]
contxt_break = "s"
`)
	if _, err := LoadProfile(path); err == nil {
		t.Error("unknown key should be rejected")
	}
}

func TestLoadProfileRequiresName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anon.toml")
	write(t, path, `positional_attributes = ["word"]`)
	if _, err := LoadProfile(path); err == nil {
		t.Error("missing name should be rejected")
	}
}
