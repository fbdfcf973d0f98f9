package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// EnvLocalFile is the gitignored local-development secrets file. It is the
// only place a plaintext database password is allowed to live.
const EnvLocalFile = ".env.local"

// ReadEnvLocal parses a KEY=VALUE file. A missing file yields an empty map:
// local overrides are optional.
func ReadEnvLocal(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	values := make(map[string]string)
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return values, nil
}

// SetEnvLocal sets or replaces entries in the KEY=VALUE file, preserving
// unrelated lines and comments, and writes the result atomically.
func SetEnvLocal(path string, updates map[string]string) error {
	var lines []string
	if raw, err := os.ReadFile(path); err == nil {
		lines = strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	seen := make(map[string]bool)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, _, found := strings.Cut(trimmed, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if value, ok := updates[key]; ok {
			lines[i] = key + "=" + value
			seen[key] = true
		}
	}
	var missing []string
	for key := range updates {
		if !seen[key] {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	for _, key := range missing {
		lines = append(lines, key+"="+updates[key])
	}

	out := strings.Join(lines, "\n")
	if out != "" {
		out += "\n"
	}
	return writeFileAtomic(path, []byte(out), 0600)
}
