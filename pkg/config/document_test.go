package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "bad.yaml", "database: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestMergeDeep(t *testing.T) {
	base := Document{
		"database": map[string]interface{}{
			"host": "old-host",
			"port": 5432,
		},
		"upload": map[string]interface{}{"max_size_mb": 50},
	}
	overlay := Document{
		"database": map[string]interface{}{"host": "new-host"},
	}

	Merge(base, overlay)

	db := base["database"].(map[string]interface{})
	if db["host"] != "new-host" {
		t.Errorf("host = %v, want new-host", db["host"])
	}
	if db["port"] != 5432 {
		t.Errorf("port = %v, want 5432 (sibling keys must survive)", db["port"])
	}
	if _, ok := base["upload"]; !ok {
		t.Error("unrelated top-level section was dropped")
	}
}

func TestMergeNilOverlayValuePreservesBase(t *testing.T) {
	base := Document{"database": map[string]interface{}{"host": "keep-me"}}
	overlay := Document{"database": nil}

	Merge(base, overlay)

	db, ok := base["database"].(map[string]interface{})
	if !ok || db["host"] != "keep-me" {
		t.Errorf("nil overlay value must not clear existing data, got %v", base["database"])
	}
}

func TestMergeIdempotent(t *testing.T) {
	overlay := Document{
		"database": map[string]interface{}{"host": "h", "port": 1},
	}
	base := Merge(Document{}, overlay)
	once := GetString(base, "database.host")

	Merge(base, overlay)
	if got := GetString(base, "database.host"); got != once {
		t.Errorf("second merge changed value: %q vs %q", got, once)
	}
}

func TestWriteAtomicRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "base.yaml")

	doc := Document{
		"database": map[string]interface{}{"host": "h", "port": 5432},
	}
	if err := WriteAtomic(path, doc); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := GetString(loaded, "database.host"); got != "h" {
		t.Errorf("host = %q, want h", got)
	}
	if got, _ := GetInt(loaded, "database.port"); got != 5432 {
		t.Errorf("port = %d, want 5432", got)
	}

	// No temp files may survive the write.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file: %s", e.Name())
		}
	}
}

func TestUpdateFilePreservesUnrelatedKeys(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "base.yaml",
		"database:\n  host: old\n  port: 5432\ncustom_section:\n  keep: true\n")

	updates := Document{"database": map[string]interface{}{"host": "new"}}
	if err := UpdateFile(path, updates); err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := GetString(doc, "database.host"); got != "new" {
		t.Errorf("host = %q, want new", got)
	}
	if got, _ := GetInt(doc, "database.port"); got != 5432 {
		t.Errorf("port = %d, want 5432", got)
	}
	if _, ok := Get(doc, "custom_section.keep"); !ok {
		t.Error("unrelated section was dropped by update")
	}
}

func TestGetDottedPaths(t *testing.T) {
	doc := Document{
		"a": map[string]interface{}{
			"b": map[string]interface{}{"c": "deep"},
			"n": 7,
		},
	}

	if got := GetString(doc, "a.b.c"); got != "deep" {
		t.Errorf("GetString(a.b.c) = %q", got)
	}
	if got, ok := GetInt(doc, "a.n"); !ok || got != 7 {
		t.Errorf("GetInt(a.n) = %d, %v", got, ok)
	}
	if _, ok := Get(doc, "a.missing.c"); ok {
		t.Error("expected miss for absent path")
	}
	if _, ok := Get(doc, "a.n.c"); ok {
		t.Error("expected miss when traversing through a scalar")
	}
}
