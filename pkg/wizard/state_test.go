package wizard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/docforge/docforge/pkg/telemetry"
)

func testLogger(t *testing.T) *telemetry.Logger {
	t.Helper()
	log, err := telemetry.NewLogger(telemetry.LoggingConfig{
		Level:  "error",
		Format: "json",
		Output: "stderr",
	})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestNewStateAllPhasesPending(t *testing.T) {
	state := NewState()
	if state.Version != "1.0" {
		t.Errorf("version = %q", state.Version)
	}
	for _, key := range PhaseKeys() {
		if state.IsComplete(key) {
			t.Errorf("fresh state reports %s complete", key)
		}
	}
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), StateFile)
	store := NewStore(path, testLogger(t))

	state := NewState()
	state.MarkComplete(PhaseDatabase)
	state.SetData("catalog", "cat")
	state.SetData("job_id", int64(123456))
	if err := store.Save(state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := store.Load()
	if !loaded.IsComplete(PhaseDatabase) {
		t.Error("completed phase lost across save/load")
	}
	if loaded.IsComplete(PhaseCatalog) {
		t.Error("pending phase reported complete")
	}
	if got := loaded.GetString("catalog"); got != "cat" {
		t.Errorf("catalog = %q", got)
	}
	// JSON round-trips numbers as float64; GetInt64 must still recover it.
	if got := loaded.GetInt64("job_id"); got != 123456 {
		t.Errorf("job_id = %d, want 123456", got)
	}
}

func TestStoreLoadMissingFileStartsFresh(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), StateFile), testLogger(t))
	state := store.Load()
	for _, key := range PhaseKeys() {
		if state.IsComplete(key) {
			t.Errorf("phase %s complete without a state file", key)
		}
	}
}

func TestStoreLoadCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), StateFile)
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	state := NewStore(path, testLogger(t)).Load()
	if state == nil {
		t.Fatal("Load returned nil for corrupt file")
	}
	for _, key := range PhaseKeys() {
		if state.IsComplete(key) {
			t.Errorf("corrupt state treated phase %s as complete", key)
		}
	}
}

func TestStoreReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), StateFile)
	store := NewStore(path, testLogger(t))

	if err := store.Save(NewState()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("state file still present after reset")
	}

	// Resetting again is a no-op, not an error.
	if err := store.Reset(); err != nil {
		t.Errorf("second Reset: %v", err)
	}
}
