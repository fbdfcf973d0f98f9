package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a hierarchical configuration document: string keys mapping to
// scalars, nested mappings, or sequences.
type Document = map[string]interface{}

// Load reads and parses a YAML document. A missing file and malformed YAML
// are both ordinary errors for the caller to handle, never panics.
func Load(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc := Document{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return doc, nil
}

// WriteAtomic serializes the document to a temporary file in the destination
// directory and renames it over the destination. The destination is never
// observable in a partially-written state, even if the process dies between
// the temp write and the rename.
func WriteAtomic(path string, doc interface{}) error {
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", path, err)
	}
	return writeFileAtomic(path, raw, 0644)
}

// writeFileAtomic is the shared temp-then-rename primitive; the wizard state
// store reuses it for its JSON record.
func writeFileAtomic(path string, raw []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s over %s: %w", tmpPath, path, err)
	}
	return nil
}

// WriteStateAtomic writes raw bytes through the same atomic rename used for
// YAML documents. Exposed for the wizard's JSON state record.
func WriteStateAtomic(path string, raw []byte) error {
	return writeFileAtomic(path, raw, 0644)
}

// Merge deep-merges overlay into base, in place, and returns base.
//
// Nil values in overlay are "no opinion": they never clear an existing base
// value. When both sides hold a mapping the merge recurses; any other overlay
// value replaces the base value. Applying the same overlay twice is a no-op
// after the first application.
func Merge(base, overlay Document) Document {
	if base == nil {
		base = Document{}
	}
	for key, value := range overlay {
		if value == nil {
			continue
		}
		if overlayMap, ok := value.(map[string]interface{}); ok {
			if baseMap, ok := base[key].(map[string]interface{}); ok {
				base[key] = Merge(baseMap, overlayMap)
				continue
			}
		}
		base[key] = value
	}
	return base
}

// UpdateFile loads path, merges updates into it, and writes it back
// atomically. This is the read-modify-write every config mutation goes
// through.
func UpdateFile(path string, updates Document) error {
	doc, err := Load(path)
	if err != nil {
		return err
	}
	Merge(doc, updates)
	return WriteAtomic(path, doc)
}

// Get resolves a dot-separated key path like "database.host". The second
// return is false when any path segment is missing or not a mapping.
func Get(doc Document, keyPath string) (interface{}, bool) {
	var value interface{} = doc
	for _, key := range strings.Split(keyPath, ".") {
		m, ok := value.(map[string]interface{})
		if !ok {
			return nil, false
		}
		value, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return value, true
}

// GetString resolves a dotted path to a string, returning "" when the path
// is absent or the value is not a string.
func GetString(doc Document, keyPath string) string {
	v, ok := Get(doc, keyPath)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetInt resolves a dotted path to an int. YAML unmarshals integers as int,
// so no float coercion is attempted.
func GetInt(doc Document, keyPath string) (int, bool) {
	v, ok := Get(doc, keyPath)
	if !ok {
		return 0, false
	}
	n, ok := v.(int)
	return n, ok
}
