package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/docforge/docforge/pkg/config"
)

func newValidateCommand() *cobra.Command {
	var (
		autoFix      bool
		manifestPath string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate config consistency between base.yaml and app.yaml",
		Long: `Validate that the deployment manifest (app.yaml) agrees with the base
config (config/base.yaml): database settings match, and every valueFrom
pointer names a declared app resource attachment.

With --auto-fix the manifest is rewritten from the base config first.`,
		Example: `  # Report mismatches
  forge validate

  # Rewrite app.yaml from base.yaml, then re-check
  forge validate --auto-fix`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, _, err := newTelemetry()
			if err != nil {
				return err
			}

			basePath := configPath
			if basePath == "" {
				basePath = filepath.Join(projectRoot, "config", "base.yaml")
			}
			if manifestPath == "" {
				manifestPath = filepath.Join(projectRoot, "app.yaml")
			}

			if autoFix {
				if err := config.SyncManifestFile(basePath, manifestPath); err != nil {
					return err
				}
				log.WithField("manifest", manifestPath).Info("Manifest synced from base config")
			}

			base, err := config.Load(basePath)
			if err != nil {
				return err
			}
			manifest, err := config.Load(manifestPath)
			if err != nil {
				return err
			}

			// Structural validation of the typed sections that are present.
			if _, err := config.Parse(base); err != nil {
				return err
			}

			errs := config.CheckConsistency(base, manifest)
			if len(errs) == 0 {
				log.Info("Configuration is consistent")
				return nil
			}
			for _, msg := range errs {
				log.Error(msg)
			}
			return fmt.Errorf("found %d configuration inconsistencies", len(errs))
		},
	}

	cmd.Flags().BoolVar(&autoFix, "auto-fix", false, "rewrite the manifest from the base config before checking")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "deployment manifest path (default <project-root>/app.yaml)")

	return cmd
}
