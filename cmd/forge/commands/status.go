package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/docforge/docforge/pkg/wizard"
)

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show setup progress from the checkpoint file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, _, err := newTelemetry()
			if err != nil {
				return err
			}

			statePath := filepath.Join(projectRoot, wizard.StateFile)
			state := wizard.NewStore(statePath, log).Load()

			if jsonOutput {
				raw, err := json.MarshalIndent(state, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(raw))
				return nil
			}

			fmt.Println("Setup progress:")
			for _, key := range wizard.PhaseKeys() {
				status := "pending"
				if state.IsComplete(key) {
					status = "complete"
				}
				fmt.Printf("  %-26s %s\n", key, status)
			}

			if catalog := state.GetString("catalog"); catalog != "" {
				fmt.Printf("\nCatalog.Schema: %s.%s\n", catalog, state.GetString("schema"))
			}
			if volumePath := state.GetString("volume_path"); volumePath != "" {
				fmt.Printf("Volume:         %s\n", volumePath)
			}
			if workspacePath := state.GetString("workspace_path"); workspacePath != "" {
				fmt.Printf("Workspace:      %s\n", workspacePath)
			}
			if jobID := state.GetInt64("job_id"); jobID != 0 {
				fmt.Printf("Job ID:         %d\n", jobID)
			}
			if appURL := state.GetString("app_url"); appURL != "" {
				fmt.Printf("App URL:        %s\n", appURL)
			}
			return nil
		},
	}

	return cmd
}
