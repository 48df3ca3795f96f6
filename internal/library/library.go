package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one saved query: a name, the pattern, and the policies that
// shape its span table.
type Entry struct {
	Name     string `yaml:"name"`
	Pattern  string `yaml:"pattern"`
	Boundary string `yaml:"boundary,omitempty"`
	Anchors  []int  `yaml:"anchors,omitempty"`
	// Context widths in tokens; nil means "not given"
	ContextLeft  *int `yaml:"contextLeft,omitempty"`
	ContextRight *int `yaml:"contextRight,omitempty"`
	// Corrections nudges anchors by a fixed offset after extraction
	Corrections map[int]int `yaml:"corrections,omitempty"`
}

// Library is a collection of saved queries loaded from YAML files
type Library struct {
	Queries []Entry `yaml:"queries"`
}

// Load reads a query library from a YAML file
func Load(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query library %s: %w", path, err)
	}
	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("failed to parse query library %s: %w", path, err)
	}
	for i, q := range lib.Queries {
		if q.Name == "" {
			return nil, fmt.Errorf("query library %s: entry %d has no name", path, i+1)
		}
		if strings.TrimSpace(q.Pattern) == "" {
			return nil, fmt.Errorf("query library %s: entry %q has no pattern", path, q.Name)
		}
	}
	return &lib, nil
}

// LoadDir loads and merges every .yaml file in a directory
func LoadDir(dir string) (*Library, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	merged := &Library{}
	for _, p := range paths {
		lib, err := Load(p)
		if err != nil {
			return nil, err
		}
		merged.Queries = append(merged.Queries, lib.Queries...)
	}
	return merged, nil
}

// Get returns the entry with the given name
func (l *Library) Get(name string) (Entry, bool) {
	for _, q := range l.Queries {
		if q.Name == name {
			return q, true
		}
	}
	return Entry{}, false
}

// Save writes the library as YAML
func (l *Library) Save(path string) error {
	data, err := yaml.Marshal(l)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
