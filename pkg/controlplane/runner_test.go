package controlplane

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/docforge/docforge/pkg/config"
)

func TestResolveProfileFromEnvLocal(t *testing.T) {
	t.Setenv("DATABRICKS_CONFIG_PROFILE", "")
	root := t.TempDir()
	envPath := filepath.Join(root, config.EnvLocalFile)
	if err := os.WriteFile(envPath, []byte("DATABRICKS_CONFIG_PROFILE=dev\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if got := resolveProfile(root); got != "dev" {
		t.Errorf("profile = %q, want dev", got)
	}
}

func TestResolveProfilePrefersEnvironment(t *testing.T) {
	t.Setenv("DATABRICKS_CONFIG_PROFILE", "from-env")
	if got := resolveProfile(t.TempDir()); got != "from-env" {
		t.Errorf("profile = %q, want from-env", got)
	}
}
