package docstore

import (
	"os"
	"path/filepath"
	"testing"
)

type doc struct {
	Name  string         `json:"name"`
	Count int            `json:"count"`
	Tags  map[string]int `json:"tags"`
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	s, err := New(filepath.Join(t.TempDir(), "data", "doc.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var d doc
	ok, err := s.Load(&d)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing file")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	s, err := New(filepath.Join(t.TempDir(), "doc.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := doc{Name: "july", Count: 3, Tags: map[string]int{"a": 1, "b": 2}}
	if err := s.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var out doc
	ok, err := s.Load(&out)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true after Save")
	}
	if out.Name != in.Name || out.Count != in.Count || out.Tags["b"] != 2 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "doc.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.Save(doc{Count: i}); err != nil {
			t.Fatalf("Save #%d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "doc.json" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "doc.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var d doc
	if _, err := s.Load(&d); err == nil {
		t.Fatal("expected decode error")
	}
}
