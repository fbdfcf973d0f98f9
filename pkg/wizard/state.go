package wizard

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/docforge/docforge/pkg/config"
	"github.com/docforge/docforge/pkg/telemetry"
)

// StateFile is the default checkpoint location, next to the project root.
const StateFile = ".setup-state.json"

// stateVersion tags the checkpoint format.
const stateVersion = "1.0"

// Phase completion keys tracked in the state file.
const (
	PhaseDependencies  = "dependencies_installed"
	PhaseAuthenticated = "databricks_authenticated"
	PhaseDatabase      = "database_configured"
	PhaseCatalog       = "catalog_configured"
	PhaseVolume        = "volume_configured"
	PhaseJobDeployed   = "job_deployed"
	PhaseAppDeployed   = "app_deployed"
)

// PhaseKeys lists the completion flags in execution order.
func PhaseKeys() []string {
	return []string{
		PhaseDependencies,
		PhaseAuthenticated,
		PhaseDatabase,
		PhaseCatalog,
		PhaseVolume,
		PhaseJobDeployed,
		PhaseAppDeployed,
	}
}

// State is the persistent setup checkpoint: which phases completed, plus the
// identifiers captured along the way that later phases need.
type State struct {
	Version     string                 `json:"version"`
	LastUpdated time.Time              `json:"last_updated"`
	Phases      map[string]bool        `json:"phases"`
	Data        map[string]interface{} `json:"data"`
}

// NewState builds a fresh checkpoint with every phase pending.
func NewState() *State {
	phases := make(map[string]bool, len(PhaseKeys()))
	for _, key := range PhaseKeys() {
		phases[key] = false
	}
	return &State{
		Version:     stateVersion,
		LastUpdated: time.Now().UTC(),
		Phases:      phases,
		Data:        map[string]interface{}{},
	}
}

// IsComplete reports whether a phase finished in a previous run.
func (s *State) IsComplete(phase string) bool {
	return s.Phases[phase]
}

// MarkComplete flags a phase as finished.
func (s *State) MarkComplete(phase string) {
	s.Phases[phase] = true
}

// SetData records an identifier for later phases.
func (s *State) SetData(key string, value interface{}) {
	s.Data[key] = value
}

// GetString reads a recorded identifier, "" when absent.
func (s *State) GetString(key string) string {
	v, _ := s.Data[key].(string)
	return v
}

// GetInt64 reads a recorded numeric identifier. JSON round-trips numbers as
// float64, so both forms are accepted.
func (s *State) GetInt64(key string) int64 {
	switch v := s.Data[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Store loads and saves the checkpoint file.
type Store struct {
	path string
	log  *telemetry.Logger
}

// NewStore builds a store for the checkpoint at path.
func NewStore(path string, log *telemetry.Logger) *Store {
	if path == "" {
		path = StateFile
	}
	return &Store{path: path, log: log.NewComponentLogger("wizard")}
}

// Load reads the checkpoint. A missing file starts fresh silently; a corrupt
// file starts fresh with a warning, losing only the resume shortcut since
// every phase re-converges safely.
func (s *Store) Load() *State {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.WithError(err).Warn("Could not read setup state, starting fresh")
		}
		return NewState()
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		s.log.WithError(err).Warn("Setup state file is corrupt, starting fresh")
		return NewState()
	}
	if state.Phases == nil {
		state.Phases = map[string]bool{}
	}
	if state.Data == nil {
		state.Data = map[string]interface{}{}
	}
	return &state
}

// Save writes the checkpoint atomically. A failed save is reported but the
// run continues: the cost is re-running converged phases next time, not
// corruption.
func (s *Store) Save(state *State) error {
	state.LastUpdated = time.Now().UTC()
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize setup state: %w", err)
	}
	if err := config.WriteStateAtomic(s.path, raw); err != nil {
		return fmt.Errorf("failed to save setup state: %w", err)
	}
	return nil
}

// Reset removes the checkpoint file. A missing file is fine.
func (s *Store) Reset() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove setup state: %w", err)
	}
	s.log.Info("Setup state reset")
	return nil
}
