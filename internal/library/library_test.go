package library

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `queries:
  - name: adjectives
    pattern: '[pos="ADJ"]'
    boundary: s
    anchors: [0, 1]
  - name: framed
    pattern: '@0[word="so"] []* @1[word="that"]'
    anchors: [0, 1, 2]
    contextLeft: 5
    contextRight: 10
    corrections:
      1: -1
`

func writeLib(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeLib(t, t.TempDir(), "lib.yaml", sampleYAML)

	lib, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(lib.Queries) != 2 {
		t.Fatalf("queries = %d, want 2", len(lib.Queries))
	}

	q, ok := lib.Get("framed")
	if !ok {
		t.Fatal("entry framed not found")
	}
	if q.ContextLeft == nil || *q.ContextLeft != 5 {
		t.Errorf("contextLeft = %v", q.ContextLeft)
	}
	if q.Corrections[1] != -1 {
		t.Errorf("corrections = %v", q.Corrections)
	}

	plain, _ := lib.Get("adjectives")
	if plain.ContextLeft != nil {
		t.Error("absent context width should stay nil")
	}

	if _, ok := lib.Get("missing"); ok {
		t.Error("Get found a nonexistent entry")
	}
}

func TestLoadRejectsInvalidEntries(t *testing.T) {
	dir := t.TempDir()

	noName := writeLib(t, dir, "noname.yaml", "queries:\n  - pattern: '[pos=\"ADJ\"]'\n")
	if _, err := Load(noName); err == nil {
		t.Error("entry without a name accepted")
	}

	noPattern := writeLib(t, dir, "nopattern.yaml", "queries:\n  - name: empty\n    pattern: '  '\n")
	if _, err := Load(noPattern); err == nil {
		t.Error("entry without a pattern accepted")
	}

	notYAML := writeLib(t, dir, "broken.yaml", "queries: [unclosed")
	if _, err := Load(notYAML); err == nil {
		t.Error("malformed YAML accepted")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeLib(t, dir, "a.yaml", "queries:\n  - name: one\n    pattern: '[word=\"x\"]'\n")
	writeLib(t, dir, "b.yaml", "queries:\n  - name: two\n    pattern: '[word=\"y\"]'\n")
	writeLib(t, dir, "ignored.txt", "not yaml")

	lib, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(lib.Queries) != 2 {
		t.Errorf("queries = %d, want 2", len(lib.Queries))
	}
	if _, ok := lib.Get("one"); !ok {
		t.Error("entry from first file missing")
	}
	if _, ok := lib.Get("two"); !ok {
		t.Error("entry from second file missing")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	left := 3
	lib := &Library{Queries: []Entry{
		{Name: "q", Pattern: `[lemma="test"]`, Boundary: "s", Anchors: []int{0, 1}, ContextLeft: &left},
	}}

	path := filepath.Join(dir, "out.yaml")
	if err := lib.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	q, ok := got.Get("q")
	if !ok {
		t.Fatal("saved entry missing")
	}
	if q.Pattern != `[lemma="test"]` || q.Boundary != "s" {
		t.Errorf("entry = %+v", q)
	}
	if q.ContextLeft == nil || *q.ContextLeft != 3 {
		t.Errorf("contextLeft = %v", q.ContextLeft)
	}
}
