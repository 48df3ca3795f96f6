package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	tomlv2 "github.com/pelletier/go-toml/v2"
)

// CorpusProfile describes one indexed corpus: which attributes it carries and
// the default context policy for concordancing. Stored as TOML next to the
// main config, one file per corpus.
type CorpusProfile struct {
	// Name is the corpus identifier as known to the engine registry
	Name string `toml:"name"`
	// PositionalAttributes lists the indexed token-level attributes
	PositionalAttributes []string `toml:"positional_attributes"`
	// StructuralAttributes lists the indexed span-level attributes
	StructuralAttributes []string `toml:"structural_attributes"`
	// ContextBreak is the structural attribute contexts are clamped to
	ContextBreak string `toml:"context_break"`
	// ContextLeft and ContextRight are default context widths in tokens
	ContextLeft  int `toml:"context_left"`
	ContextRight int `toml:"context_right"`
}

// DefaultProfile returns a profile with the conventional attribute set
func DefaultProfile(name string) *CorpusProfile {
	return &CorpusProfile{
		Name:                 name,
		PositionalAttributes: []string{"word", "lemma", "pos"},
		StructuralAttributes: []string{"s", "text"},
		ContextBreak:         "s",
		ContextLeft:          20,
		ContextRight:         20,
	}
}

// LoadProfile reads a corpus profile from a TOML file. Unknown keys are
// rejected so a typo in an attribute list doesn't pass silently.
func LoadProfile(path string) (*CorpusProfile, error) {
	var p CorpusProfile
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus profile %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("corpus profile %s has unknown keys: %v", path, undecoded)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("corpus profile %s is missing a corpus name", path)
	}
	return &p, nil
}

// Save writes the profile as TOML
func (p *CorpusProfile) Save(path string) error {
	data, err := tomlv2.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// HasPositional reports whether attr is an indexed positional attribute
func (p *CorpusProfile) HasPositional(attr string) bool {
	for _, a := range p.PositionalAttributes {
		if a == attr {
			return true
		}
	}
	return false
}

// HasStructural reports whether attr is an indexed structural attribute
func (p *CorpusProfile) HasStructural(attr string) bool {
	for _, a := range p.StructuralAttributes {
		if a == attr {
			return true
		}
	}
	return false
}
