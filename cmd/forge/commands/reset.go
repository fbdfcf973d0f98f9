package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/docforge/docforge/pkg/wizard"
)

func newResetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard the setup checkpoint",
		Long: `Remove the .setup-state.json checkpoint so the next setup run starts
from the first phase. Provisioned resources are left untouched; setup
re-probes and skips anything that already exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, _, err := newTelemetry()
			if err != nil {
				return err
			}
			statePath := filepath.Join(projectRoot, wizard.StateFile)
			return wizard.NewStore(statePath, log).Reset()
		},
	}

	return cmd
}
